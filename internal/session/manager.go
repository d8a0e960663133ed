package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/snapetech/iptv-portal/internal/auth"
	"github.com/snapetech/iptv-portal/internal/catalog"
	"github.com/snapetech/iptv-portal/internal/connlog"
	"github.com/snapetech/iptv-portal/internal/errs"
	"github.com/snapetech/iptv-portal/internal/ipresolve"
	"github.com/snapetech/iptv-portal/internal/metrics"
	"github.com/snapetech/iptv-portal/internal/provider"
	"github.com/snapetech/iptv-portal/internal/search"
)

// Config carries the knobs the Manager needs to build catalog stores and
// expire idle sessions.
type Config struct {
	UserAgent   string
	CatalogRate float64
	IdleTimeout time.Duration
}

// Manager creates, finds, and drives sessions. It is the only component
// with mutable cross-request state.
type Manager struct {
	authn      *auth.Authenticator
	resolver   *ipresolve.Resolver
	binder     *provider.Binder
	catalogCli *http.Client
	connLog    *connlog.Log // nil disables connection logging
	cfg        Config
	log        *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager wires the components. catalogCli must carry the catalog
// fetch timeout; connLog may be nil.
func NewManager(authn *auth.Authenticator, resolver *ipresolve.Resolver, binder *provider.Binder,
	catalogCli *http.Client, connLog *connlog.Log, cfg Config, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = time.Hour
	}
	return &Manager{
		authn:      authn,
		resolver:   resolver,
		binder:     binder,
		catalogCli: catalogCli,
		connLog:    connLog,
		cfg:        cfg,
		log:        log,
		sessions:   make(map[string]*Session),
	}
}

// Login authenticates and creates a session in the Unbound state. The
// resolver is kicked first so a pending IP makes progress between
// retries; login never proceeds without a resolved IP.
func (m *Manager) Login(ctx context.Context, username, password string) (string, error) {
	m.resolver.Kick(ctx)
	ip, ok := m.resolver.Current()
	if !ok {
		metrics.LoginAttempts.WithLabelValues(string(errs.IPNotResolved)).Inc()
		return "", errs.New(errs.IPNotResolved)
	}

	identity, err := m.authn.Authenticate(ctx, username, password, ip)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues(string(errs.KindOf(err))).Inc()
		return "", err
	}

	s := &Session{
		Token:      uuid.NewString(),
		Identity:   identity,
		State:      StateUnbound,
		ActiveKind: catalog.Live,
		Filters:    Filters{Category: search.CategoryAll},
		LastSeen:   time.Now(),
	}
	m.mu.Lock()
	m.sessions[s.Token] = s
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	metrics.LoginAttempts.WithLabelValues("ok").Inc()
	m.log.Info("session opened", zap.String("identity", identity))
	return s.Token, nil
}

// lookup finds a live session and touches its idle clock. Expired
// sessions are dropped on access.
func (m *Manager) lookup(token string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return nil, ErrNotFound
	}
	if time.Since(s.LastSeen) > m.cfg.IdleTimeout {
		delete(m.sessions, token)
		metrics.ActiveSessions.Set(float64(len(m.sessions)))
		m.log.Info("session expired", zap.String("identity", s.Identity))
		return nil, ErrNotFound
	}
	s.LastSeen = time.Now()
	return s, nil
}

// Snapshot returns the session's current state for stateless handlers.
func (m *Manager) Snapshot(token string) (Info, error) {
	s, err := m.lookup(token)
	if err != nil {
		return Info{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info(), nil
}

// BindProvider moves an Unbound session to Browsing: normalize + probe
// the provider URL, seed a catalog store for the binding, and record the
// connection. A session that is already Browsing must log out first.
func (m *Manager) BindProvider(ctx context.Context, token, rawURL string) (*provider.Binding, error) {
	s, err := m.lookup(token)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State != StateUnbound {
		return nil, ErrWrongState
	}

	binding, err := m.binder.Bind(ctx, rawURL)
	if err != nil {
		metrics.ProviderBinds.WithLabelValues(string(errs.KindOf(err))).Inc()
		// Failed bind leaves the session exactly where it was.
		return nil, err
	}
	metrics.ProviderBinds.WithLabelValues("ok").Inc()

	s.Binding = binding
	s.Catalogs = catalog.NewStore(binding, m.catalogCli, m.cfg.UserAgent, m.cfg.CatalogRate, m.log)
	s.State = StateBrowsing
	s.ActiveKind = catalog.Live
	s.Filters = Filters{Category: search.CategoryAll}

	if m.connLog != nil {
		if err := m.connLog.Record(ctx, connlog.Entry{
			LoginUsername:    s.Identity,
			ProviderUsername: binding.AccountUsername,
			ProviderPassword: binding.AccountPassword,
			HostPort:         binding.HostPort,
		}); err != nil {
			m.log.Warn("connection log write failed", zap.Error(err))
		}
	}

	m.log.Info("provider bound",
		zap.String("identity", s.Identity),
		zap.String("host", binding.HostPort),
		zap.String("status", string(binding.Status)))
	return binding, nil
}

// BrowseResult is one browse interaction's outcome.
type BrowseResult struct {
	Kind       catalog.Kind
	Entries    []catalog.Entry
	Categories []string
	Total      int  // size of the unfiltered catalog
	Degraded   bool // catalog empty because its fetch failed
}

// Browse switches the active kind, applies filters, and returns matching
// entries. Switching kinds keeps other kinds' caches; a failed catalog
// fetch degrades to an empty result, never to a state regression.
func (m *Manager) Browse(ctx context.Context, token, kindStr, category, query string) (*BrowseResult, error) {
	s, err := m.lookup(token)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State != StateBrowsing {
		return nil, ErrWrongState
	}

	kind := s.ActiveKind
	if kindStr != "" {
		k, ok := catalog.ParseKind(kindStr)
		if !ok {
			return nil, ErrWrongState
		}
		kind = k
	}
	if category == "" {
		category = search.CategoryAll
	}
	s.ActiveKind = kind
	s.Filters = Filters{Category: category, Query: query}

	cache := s.Catalogs.Get(ctx, kind)
	return &BrowseResult{
		Kind:       kind,
		Entries:    search.Filter(cache, category, query),
		Categories: cache.CategoryNames(),
		Total:      len(cache.Entries),
		Degraded:   cache.Err != nil,
	}, nil
}

// ReloadCatalog clears one kind's cache so the next browse refetches.
func (m *Manager) ReloadCatalog(token, kindStr string) error {
	s, err := m.lookup(token)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State != StateBrowsing {
		return ErrWrongState
	}
	kind, ok := catalog.ParseKind(kindStr)
	if !ok {
		return ErrWrongState
	}
	s.Catalogs.Reset(kind)
	return nil
}

// Logout destroys the session: identity, binding, and all catalog caches.
func (m *Manager) Logout(token string) error {
	m.mu.Lock()
	s, ok := m.sessions[token]
	if ok {
		delete(m.sessions, token)
	}
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Catalogs != nil {
		s.Catalogs.ResetAll()
	}
	s.Binding = nil
	s.Identity = ""
	m.log.Info("session closed")
	return nil
}

// ReapExpired drops sessions idle past the timeout. Run from a ticker.
func (m *Manager) ReapExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for token, s := range m.sessions {
		if time.Since(s.LastSeen) > m.cfg.IdleTimeout {
			delete(m.sessions, token)
			n++
		}
	}
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	return n
}
