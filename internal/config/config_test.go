package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_defaults(t *testing.T) {
	t.Setenv("IPTV_PORTAL_DIRECTORY_URL", "http://sheets.example/export.csv")
	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if c.AuthMode != AuthModePassword {
		t.Errorf("AuthMode = %q, want %q", c.AuthMode, AuthModePassword)
	}
	if c.DirectoryTTL != 30*time.Second {
		t.Errorf("DirectoryTTL = %v", c.DirectoryTTL)
	}
	if c.ProviderTimeout != 25*time.Second {
		t.Errorf("ProviderTimeout = %v", c.ProviderTimeout)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_envOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "portal.yaml")
	data := "listen_addr: \":7000\"\nauth_mode: ip-only\ndirectory_url: http://file.example/users.csv\n"
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("IPTV_PORTAL_CONFIG", path)
	t.Setenv("IPTV_PORTAL_LISTEN", ":9000")

	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if c.ListenAddr != ":9000" {
		t.Errorf("ListenAddr = %q, want env to win", c.ListenAddr)
	}
	if c.AuthMode != AuthModeIPOnly {
		t.Errorf("AuthMode = %q, want file value", c.AuthMode)
	}
	if c.DirectoryURL != "http://file.example/users.csv" {
		t.Errorf("DirectoryURL = %q", c.DirectoryURL)
	}
}

func TestValidate_rejectsBadMode(t *testing.T) {
	c := &Config{DirectoryURL: "http://x", AuthMode: "maybe", DirectoryTTL: time.Second, CatalogRate: 1}
	if err := c.Validate(); err == nil {
		t.Error("expected error for bad auth mode")
	}
}

func TestValidate_requiresDirectoryURL(t *testing.T) {
	c := &Config{AuthMode: AuthModePassword, DirectoryTTL: time.Second, CatalogRate: 1}
	if err := c.Validate(); err == nil {
		t.Error("expected error for missing directory URL")
	}
}
