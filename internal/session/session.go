// Package session owns the per-client state machine:
//
//	LoggedOut → (login ok) → Unbound → (provider bind ok) → Browsing
//
// Browsing switches freely between catalog kinds; leaving Browsing only
// happens through logout, which discards identity, binding, and every
// cached catalog. Rebinding a provider requires a fresh login.
//
// Each interaction holds the session's mutex from start to finish, so a
// given session never sees concurrent mutation; independent sessions are
// fully isolated.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/snapetech/iptv-portal/internal/catalog"
	"github.com/snapetech/iptv-portal/internal/provider"
)

// State is the session's screen.
type State string

const (
	StateUnbound  State = "unbound"  // authenticated, no provider yet
	StateBrowsing State = "browsing" // provider bound, catalogs available
)

// Sentinel errors for state handling; taxonomy errors pass through from
// the components underneath.
var (
	ErrNotFound   = errors.New("session not found")
	ErrWrongState = errors.New("operation not valid in this state")
)

// Filters is the active category/search selection.
type Filters struct {
	Category string `json:"category"` // display name, or "all"
	Query    string `json:"query"`
}

// Session is one client's mutable state. Owned by the Manager; all
// mutation happens under mu inside Manager methods.
type Session struct {
	Token      string
	Identity   string
	State      State
	Binding    *provider.Binding
	Catalogs   *catalog.Store
	ActiveKind catalog.Kind
	Filters    Filters
	LastSeen   time.Time

	mu sync.Mutex
}

// Info is a read-only snapshot for handlers.
type Info struct {
	Identity   string            `json:"identity"`
	State      State             `json:"state"`
	ActiveKind catalog.Kind      `json:"active_kind,omitempty"`
	Filters    Filters           `json:"filters"`
	Binding    *provider.Binding `json:"-"` // summarized separately by handlers
}

func (s *Session) info() Info {
	return Info{
		Identity:   s.Identity,
		State:      s.State,
		ActiveKind: s.ActiveKind,
		Filters:    s.Filters,
		Binding:    s.Binding,
	}
}
