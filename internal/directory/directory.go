// Package directory reads the allowed-user records from the external
// tabular store. The store is exposed as a CSV endpoint (a spreadsheet
// CSV export works); rows are username, password_hash, allowed_ip, notes.
// The client is read-only; user CRUD belongs to the admin tooling.
package directory

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/snapetech/iptv-portal/internal/errs"
)

// UserRecord is one directory row. AllowedIPs holds exact IP literals
// (no CIDR matching); the source field is a comma-separated list.
type UserRecord struct {
	Username     string
	PasswordHash string // hex sha256 digest; empty in ip-only deployments
	AllowedIPs   []string
	Notes        string
}

// AllowsIP reports whether ip matches one of the record's IP literals.
func (r UserRecord) AllowsIP(ip string) bool {
	for _, a := range r.AllowedIPs {
		if a == ip {
			return true
		}
	}
	return false
}

// Client fetches and caches directory rows. The cache is process-wide
// (single directory) and refreshed wholesale on TTL expiry; a mutex
// ensures at most one refresh is in flight. During an upstream outage a
// cached copy is served for one extra TTL window before callers see
// DirectoryUnavailable.
type Client struct {
	url    string
	ttl    time.Duration
	client *http.Client
	log    *zap.Logger

	mu        sync.Mutex
	records   []UserRecord
	fetchedAt time.Time
}

// New builds a directory client. httpc must carry the directory timeout.
func New(url string, ttl time.Duration, httpc *http.Client, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{url: url, ttl: ttl, client: httpc, log: log}
}

// List returns the current directory rows, refreshing when the TTL has
// expired. An empty directory is returned as an empty slice, not an
// error; callers must treat DirectoryUnavailable as "unknown", never as
// "no users".
func (c *Client) List(ctx context.Context) ([]UserRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	age := time.Since(c.fetchedAt)
	if !c.fetchedAt.IsZero() && age < c.ttl {
		return c.records, nil
	}

	records, err := c.fetch(ctx)
	if err != nil {
		// Stale-serve grace: one extra TTL window on top of the fresh one.
		if !c.fetchedAt.IsZero() && age < 2*c.ttl {
			c.log.Warn("directory refresh failed, serving cached copy",
				zap.Error(err), zap.Duration("age", age))
			return c.records, nil
		}
		return nil, errs.Wrap(errs.DirectoryUnavailable, err)
	}
	c.records = records
	c.fetchedAt = time.Now()
	return c.records, nil
}

// Invalidate drops the cached copy so the next List refetches.
func (c *Client) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchedAt = time.Time{}
	c.records = nil
}

func (c *Client) fetch(ctx context.Context) ([]UserRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directory: HTTP %d", resp.StatusCode)
	}
	return parseCSV(resp.Body)
}

// parseCSV decodes directory rows. The header row names the columns;
// order is free and unknown columns are ignored. password_hash is
// optional (ip-only deployments omit it entirely).
func parseCSV(r io.Reader) ([]UserRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // sheets exports pad short rows inconsistently

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("directory: read header: %w", err)
	}
	col := map[string]int{}
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	userIdx, ok := col["username"]
	if !ok {
		return nil, fmt.Errorf("directory: missing username column")
	}
	ipIdx, ok := col["allowed_ip"]
	if !ok {
		return nil, fmt.Errorf("directory: missing allowed_ip column")
	}
	hashIdx, hasHash := col["password_hash"]
	notesIdx, hasNotes := col["notes"]

	var out []UserRecord
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("directory: read row: %w", err)
		}
		rec := UserRecord{Username: field(row, userIdx)}
		if rec.Username == "" {
			continue
		}
		rec.AllowedIPs = splitIPs(field(row, ipIdx))
		if hasHash {
			rec.PasswordHash = field(row, hashIdx)
		}
		if hasNotes {
			rec.Notes = field(row, notesIdx)
		}
		out = append(out, rec)
	}
	return out, nil
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func splitIPs(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
