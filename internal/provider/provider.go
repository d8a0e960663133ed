// Package provider normalizes user-supplied reseller URLs to the
// canonical player_api endpoint and probes the account behind them.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/snapetech/iptv-portal/internal/errs"
)

// Status is the upstream account state reported by user_info.status.
type Status string

const (
	StatusActive   Status = "Active"
	StatusExpired  Status = "Expired"
	StatusDisabled Status = "Disabled"
	StatusUnknown  Status = "Unknown"
)

// Binding is a live association between a session and one provider
// account. APIBase is the canonical player_api endpoint including
// credentials; catalog fetches append &action=… to it.
type Binding struct {
	APIBase           string
	HostPort          string // host[:port], for display and the connection log
	AccountUsername   string
	AccountPassword   string
	Status            Status
	ExpiresAt         int64 // unix seconds; 0 = indefinite
	MaxConnections    int
	ActiveConnections int
}

// Indefinite reports whether the account has no expiry.
func (b Binding) Indefinite() bool { return b.ExpiresAt == 0 }

// Binder probes provider URLs. The User-Agent must look like a browser:
// several reseller backends 403 default client identifiers.
type Binder struct {
	client    *http.Client
	userAgent string
	log       *zap.Logger
}

func New(httpc *http.Client, userAgent string, log *zap.Logger) *Binder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Binder{client: httpc, userAgent: userAgent, log: log}
}

// Normalize rewrites a raw user-supplied URL to the canonical player_api
// endpoint and extracts account credentials from its query string.
// Known list/EPG suffixes (get.php, xmltv.php) are rewritten; unrelated
// query parameters are dropped so they are never forwarded upstream.
func Normalize(raw string) (apiBase, user, pass string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", "", fmt.Errorf("provider url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", "", "", fmt.Errorf("provider url: not an http(s) url: %q", raw)
	}

	q := u.Query()
	user = q.Get("username")
	pass = q.Get("password")

	rebuilt := url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/player_api.php"}
	// Paths other than the known suffixes are discarded as well: the API
	// endpoint is always /player_api.php on the URL's host.
	canon := rebuilt.String()
	if user != "" || pass != "" {
		canon += "?username=" + url.QueryEscape(user) + "&password=" + url.QueryEscape(pass)
	}
	return canon, user, pass, nil
}

// Bind normalizes raw, probes the canonical endpoint, and maps the
// user_info reply into a Binding. Taxonomy mapping:
//   - transport failure / timeout → ProviderUnreachable
//   - non-200 or non-JSON body   → ProviderBadResponse
//   - JSON without user_info     → ProviderLoginRejected
//
// No automatic retry; the caller re-submits.
func (b *Binder) Bind(ctx context.Context, raw string) (*Binding, error) {
	apiBase, user, pass, err := Normalize(raw)
	if err != nil {
		return nil, errs.Wrap(errs.ProviderBadResponse, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBase, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ProviderBadResponse, err)
	}
	req.Header.Set("User-Agent", b.userAgent)

	resp, err := b.client.Do(req)
	if err != nil {
		b.log.Info("provider probe failed", zap.String("host", req.URL.Host), zap.Error(err))
		return nil, errs.Wrap(errs.ProviderUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errs.Wrap(errs.ProviderBadResponse, fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errs.Wrap(errs.ProviderUnreachable, err)
	}
	var reply struct {
		UserInfo map[string]any `json:"user_info"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, errs.Wrap(errs.ProviderBadResponse, fmt.Errorf("parse: %w", err))
	}
	if reply.UserInfo == nil {
		return nil, errs.Wrap(errs.ProviderLoginRejected, fmt.Errorf("no user_info in reply"))
	}

	binding := &Binding{
		APIBase:           apiBase,
		HostPort:          req.URL.Host,
		AccountUsername:   stringVal(reply.UserInfo["username"], user),
		AccountPassword:   stringVal(reply.UserInfo["password"], pass),
		Status:            parseStatus(stringVal(reply.UserInfo["status"], "")),
		ExpiresAt:         parseExpiry(reply.UserInfo["exp_date"]),
		MaxConnections:    intVal(reply.UserInfo["max_connections"]),
		ActiveConnections: intVal(reply.UserInfo["active_cons"]),
	}
	b.log.Info("provider bound",
		zap.String("host", binding.HostPort),
		zap.String("status", string(binding.Status)),
		zap.Int64("exp", binding.ExpiresAt))
	return binding, nil
}

func parseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active":
		return StatusActive
	case "expired":
		return StatusExpired
	case "disabled", "banned":
		return StatusDisabled
	}
	return StatusUnknown
}

// parseExpiry maps exp_date to unix seconds. Absent, "null" or
// unparseable means indefinite (0). Providers send string or number.
func parseExpiry(v any) int64 {
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		return int64(x)
	case string:
		x = strings.TrimSpace(x)
		if x == "" || x == "null" {
			return 0
		}
		n, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

// stringVal and intVal tolerate the string-or-number fields player_api
// replies mix freely.
func stringVal(v any, fallback string) string {
	switch x := v.(type) {
	case string:
		if x != "" {
			return x
		}
	case float64:
		return strconv.FormatInt(int64(x), 10)
	}
	return fallback
}

func intVal(v any) int {
	switch x := v.(type) {
	case float64:
		return int(x)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(x))
		return n
	}
	return 0
}
