// Package application assembles the portal: config, logger, directory
// client, IP resolver, provider binder, session manager and HTTP server.
package application

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/snapetech/iptv-portal/internal/auth"
	"github.com/snapetech/iptv-portal/internal/config"
	"github.com/snapetech/iptv-portal/internal/connlog"
	"github.com/snapetech/iptv-portal/internal/directory"
	"github.com/snapetech/iptv-portal/internal/httpapi"
	"github.com/snapetech/iptv-portal/internal/httpclient"
	"github.com/snapetech/iptv-portal/internal/ipresolve"
	"github.com/snapetech/iptv-portal/internal/provider"
	"github.com/snapetech/iptv-portal/internal/session"
)

const reapInterval = time.Minute

// Portal is the running portal application.
type Portal struct {
	cfg      *config.Config
	log      *zap.Logger
	srv      *http.Server
	mgr      *session.Manager
	resolver *ipresolve.Resolver
	connLog  *connlog.Log
}

// NewLogger builds the process logger. Development gets console encoding,
// everything else JSON; the level comes from config.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.AppEnv == "development" {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.LogLevel != "" {
		if err := zc.Level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			return nil, fmt.Errorf("log level %q: %w", cfg.LogLevel, err)
		}
	}
	return zc.Build()
}

// New validates config and wires the components.
func New(cfg *config.Config, log *zap.Logger) (*Portal, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dir := directory.New(cfg.DirectoryURL, cfg.DirectoryTTL,
		httpclient.WithTimeout(cfg.DirectoryTimeout), log)
	resolver := ipresolve.New(cfg.IPLookupURL,
		httpclient.WithTimeout(cfg.IPLookupTimeout), log)
	authn := auth.New(dir, cfg.AuthMode, log)
	binder := provider.New(httpclient.WithTimeout(cfg.ProviderTimeout), cfg.UserAgent, log)

	var connLog *connlog.Log
	if cfg.ConnLogPath != "" {
		var err error
		connLog, err = connlog.Open(cfg.ConnLogPath)
		if err != nil {
			return nil, fmt.Errorf("connlog: %w", err)
		}
	}

	mgr := session.NewManager(authn, resolver, binder,
		httpclient.WithTimeout(cfg.CatalogTimeout), connLog,
		session.Config{
			UserAgent:   cfg.UserAgent,
			CatalogRate: cfg.CatalogRate,
			IdleTimeout: cfg.SessionIdleTimeout,
		}, log)

	api := httpapi.NewServer(mgr, resolver, connLog, log)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Portal{cfg: cfg, log: log, srv: srv, mgr: mgr, resolver: resolver, connLog: connLog}, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled, then
// shuts down gracefully. The IP lookup is kicked at startup so the first
// login screen usually has an address ready.
func (p *Portal) Run(ctx context.Context) error {
	p.resolver.Kick(ctx)

	go p.reapLoop(ctx)

	p.log.Info("portal listening",
		zap.String("addr", p.cfg.ListenAddr),
		zap.String("auth_mode", p.cfg.AuthMode))

	errCh := make(chan error, 1)
	go func() {
		if err := p.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if p.connLog != nil {
		if err := p.connLog.Close(); err != nil {
			p.log.Warn("connlog close", zap.Error(err))
		}
	}
	return nil
}

func (p *Portal) reapLoop(ctx context.Context) {
	t := time.NewTicker(reapInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := p.mgr.ReapExpired(); n > 0 {
				p.log.Info("reaped idle sessions", zap.Int("count", n))
			}
		}
	}
}
