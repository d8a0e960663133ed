package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/snapetech/iptv-portal/internal/config"
	"github.com/snapetech/iptv-portal/internal/httpclient"
	"github.com/snapetech/iptv-portal/internal/provider"
)

var probeCmd = &cobra.Command{
	Use:   "probe <provider-url>",
	Short: "Probe a provider URL and print the account summary",
	Args:  cobra.ExactArgs(1),
	RunE:  runProbe,
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	binder := provider.New(httpclient.WithTimeout(cfg.ProviderTimeout), cfg.UserAgent, zap.NewNop())
	b, err := binder.Bind(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("host:        %s\n", b.HostPort)
	fmt.Printf("account:     %s\n", b.AccountUsername)
	fmt.Printf("status:      %s\n", b.Status)
	if b.Indefinite() {
		fmt.Printf("expires:     never\n")
	} else {
		fmt.Printf("expires:     %s\n", time.Unix(b.ExpiresAt, 0).UTC().Format(time.RFC3339))
	}
	fmt.Printf("connections: %d active / %d max\n", b.ActiveConnections, b.MaxConnections)
	return nil
}
