// Package config loads portal settings from environment variables
// (IPTV_PORTAL_* prefix), an optional .env file, and an optional YAML
// config file. Environment always wins over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Auth modes. The source system has both variants; the mode is an explicit
// configuration choice, never inferred from directory contents.
const (
	AuthModePassword = "password" // sha256(password) compared against password_hash
	AuthModeIPOnly   = "ip-only"  // username + allowed IP, no password column
)

// Config holds portal settings.
type Config struct {
	AppEnv     string `yaml:"app_env"`     // "production" (default) or "development"
	ListenAddr string `yaml:"listen_addr"` // e.g. :8090
	LogLevel   string `yaml:"log_level"`

	// Directory (external tabular user store, CSV over HTTP)
	DirectoryURL     string        `yaml:"directory_url"`
	DirectoryTTL     time.Duration `yaml:"directory_ttl"`
	DirectoryTimeout time.Duration `yaml:"directory_timeout"`

	// Public IP lookup (plain-text what-is-my-ip endpoint)
	IPLookupURL     string        `yaml:"ip_lookup_url"`
	IPLookupTimeout time.Duration `yaml:"ip_lookup_timeout"`

	// Authentication
	AuthMode string `yaml:"auth_mode"` // "password" | "ip-only"

	// Provider / catalog
	ProviderTimeout time.Duration `yaml:"provider_timeout"`
	CatalogTimeout  time.Duration `yaml:"catalog_timeout"`
	CatalogRate     float64       `yaml:"catalog_rate"` // upstream catalog fetches per second, per session
	UserAgent       string        `yaml:"user_agent"`   // resellers 403 default client identifiers

	// Sessions
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`

	// Connection log (sqlite); empty path disables logging
	ConnLogPath string `yaml:"connlog_path"`
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; rv:109.0) Gecko/20100101 Firefox/115.0"

// Load reads config: .env (if present), then IPTV_PORTAL_CONFIG YAML file
// (if set and present), then environment variables on top.
func Load() (*Config, error) {
	_ = godotenv.Load()

	c := &Config{
		AppEnv:             "production",
		ListenAddr:         ":8090",
		LogLevel:           "info",
		DirectoryTTL:       30 * time.Second,
		DirectoryTimeout:   10 * time.Second,
		IPLookupURL:        "https://api.ipify.org",
		IPLookupTimeout:    5 * time.Second,
		AuthMode:           AuthModePassword,
		ProviderTimeout:    25 * time.Second,
		CatalogTimeout:     30 * time.Second,
		CatalogRate:        2,
		UserAgent:          defaultUserAgent,
		SessionIdleTimeout: time.Hour,
	}

	if path := os.Getenv("IPTV_PORTAL_CONFIG"); path != "" {
		if err := c.loadFile(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	c.AppEnv = getEnv("IPTV_PORTAL_APP_ENV", c.AppEnv)
	c.ListenAddr = getEnv("IPTV_PORTAL_LISTEN", c.ListenAddr)
	c.LogLevel = getEnv("IPTV_PORTAL_LOG_LEVEL", c.LogLevel)
	c.DirectoryURL = getEnv("IPTV_PORTAL_DIRECTORY_URL", c.DirectoryURL)
	c.DirectoryTTL = getEnvDuration("IPTV_PORTAL_DIRECTORY_TTL", c.DirectoryTTL)
	c.DirectoryTimeout = getEnvDuration("IPTV_PORTAL_DIRECTORY_TIMEOUT", c.DirectoryTimeout)
	c.IPLookupURL = getEnv("IPTV_PORTAL_IP_LOOKUP_URL", c.IPLookupURL)
	c.IPLookupTimeout = getEnvDuration("IPTV_PORTAL_IP_LOOKUP_TIMEOUT", c.IPLookupTimeout)
	c.AuthMode = getEnv("IPTV_PORTAL_AUTH_MODE", c.AuthMode)
	c.ProviderTimeout = getEnvDuration("IPTV_PORTAL_PROVIDER_TIMEOUT", c.ProviderTimeout)
	c.CatalogTimeout = getEnvDuration("IPTV_PORTAL_CATALOG_TIMEOUT", c.CatalogTimeout)
	c.CatalogRate = getEnvFloat("IPTV_PORTAL_CATALOG_RATE", c.CatalogRate)
	c.UserAgent = getEnv("IPTV_PORTAL_USER_AGENT", c.UserAgent)
	c.SessionIdleTimeout = getEnvDuration("IPTV_PORTAL_SESSION_IDLE_TIMEOUT", c.SessionIdleTimeout)
	c.ConnLogPath = getEnv("IPTV_PORTAL_CONNLOG_PATH", c.ConnLogPath)

	return c, nil
}

// Validate checks required fields and mode values.
func (c *Config) Validate() error {
	if c.DirectoryURL == "" {
		return fmt.Errorf("config: IPTV_PORTAL_DIRECTORY_URL is required")
	}
	if c.AuthMode != AuthModePassword && c.AuthMode != AuthModeIPOnly {
		return fmt.Errorf("config: IPTV_PORTAL_AUTH_MODE must be %q or %q, got %q",
			AuthModePassword, AuthModeIPOnly, c.AuthMode)
	}
	if c.DirectoryTTL <= 0 {
		return fmt.Errorf("config: directory TTL must be positive")
	}
	if c.CatalogRate <= 0 {
		return fmt.Errorf("config: catalog rate must be positive")
	}
	return nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
