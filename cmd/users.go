package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/snapetech/iptv-portal/internal/config"
	"github.com/snapetech/iptv-portal/internal/directory"
	"github.com/snapetech/iptv-portal/internal/httpclient"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List accounts from the user directory",
	RunE:  runUsers,
}

func runUsers(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DirectoryURL == "" {
		return fmt.Errorf("IPTV_PORTAL_DIRECTORY_URL is required")
	}

	dir := directory.New(cfg.DirectoryURL, cfg.DirectoryTTL,
		httpclient.WithTimeout(cfg.DirectoryTimeout), zap.NewNop())
	records, err := dir.List(cmd.Context())
	if err != nil {
		return err
	}

	for _, r := range records {
		pw := "ip-only"
		if r.PasswordHash != "" {
			pw = "password"
		}
		line := fmt.Sprintf("%-20s %-10s %s", r.Username, pw, strings.Join(r.AllowedIPs, ","))
		if r.Notes != "" {
			line += "  # " + r.Notes
		}
		fmt.Println(line)
	}
	fmt.Printf("%d account(s)\n", len(records))
	return nil
}
