// Package ipresolve determines the caller's public IP via an external
// what-is-my-ip endpoint. The lookup is asynchronous: a true failure is
// indistinguishable from a slow lookup, so the result is modeled as
// pending-or-resolved and callers drive retries. Nothing here blocks an
// interaction, and the login flow must never proceed on a pending IP.
package ipresolve

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Resolver owns at most one in-flight lookup. Current never blocks;
// Kick starts a lookup if none is running.
type Resolver struct {
	url    string
	client *http.Client
	log    *zap.Logger

	mu       sync.Mutex
	ip       string
	inFlight bool
}

// New builds a resolver. httpc must carry the lookup timeout.
func New(url string, httpc *http.Client, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{url: url, client: httpc, log: log}
}

// Current returns the resolved IP, or ok=false while the lookup is
// pending (or has silently failed; the two are the same to callers).
func (r *Resolver) Current() (ip string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ip, r.ip != ""
}

// Kick starts a background lookup unless one is already running or the
// IP is already resolved. Safe to call on every interaction; this is the
// caller-driven retry.
func (r *Resolver) Kick(ctx context.Context) {
	r.mu.Lock()
	if r.ip != "" || r.inFlight {
		r.mu.Unlock()
		return
	}
	r.inFlight = true
	r.mu.Unlock()

	// The lookup must outlive the interaction that kicked it, otherwise a
	// short-lived request context kills every attempt before it lands.
	go r.lookup(context.WithoutCancel(ctx))
}

// Reset clears the resolved value so the next Kick refetches.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ip = ""
}

func (r *Resolver) lookup(ctx context.Context) {
	defer func() {
		r.mu.Lock()
		r.inFlight = false
		r.mu.Unlock()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		r.log.Warn("ip lookup: bad request", zap.Error(err))
		return
	}
	resp, err := r.client.Do(req)
	if err != nil {
		r.log.Warn("ip lookup failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		r.log.Warn("ip lookup: bad status", zap.Int("status", resp.StatusCode))
		return
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		r.log.Warn("ip lookup: read", zap.Error(err))
		return
	}
	ip := strings.TrimSpace(string(body))
	if !plausibleIP(ip) {
		r.log.Warn("ip lookup: implausible body", zap.String("body", ip))
		return
	}

	r.mu.Lock()
	r.ip = ip
	r.mu.Unlock()
	r.log.Info("public ip resolved", zap.String("ip", ip))
}

// plausibleIP is a cheap shape check on the plain-text reply; the endpoint
// returns bare IPv4/IPv6 literals, anything else is an error page.
func plausibleIP(s string) bool {
	if len(s) < 7 || len(s) > 45 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F':
		case c == '.' || c == ':':
		default:
			return false
		}
	}
	return true
}
