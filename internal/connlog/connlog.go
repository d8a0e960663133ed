// Package connlog records successful provider bindings so operators can
// see which reseller accounts clients connect with. Logging is best
// effort: a write failure never fails the bind.
package connlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one recorded binding.
type Entry struct {
	LoginUsername    string
	ProviderUsername string
	ProviderPassword string
	HostPort         string
	CreatedAt        time.Time
}

// Log is a sqlite-backed connection registry.
type Log struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS connections (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	login_username TEXT NOT NULL,
	provider_username TEXT NOT NULL,
	provider_password TEXT NOT NULL,
	host_port TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_connections_provider_user ON connections(provider_username);
`

// Open creates (or opens) the registry at path.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("connlog open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("connlog schema: %w", err)
	}
	return &Log{db: db}, nil
}

func (l *Log) Close() error { return l.db.Close() }

// Record inserts one binding row.
func (l *Log) Record(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO connections (login_username, provider_username, provider_password, host_port, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.LoginUsername, e.ProviderUsername, e.ProviderPassword, e.HostPort, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("connlog record: %w", err)
	}
	return nil
}

// Recent lists recorded bindings newest first, deduplicated by provider
// username (first appearance wins, as the admin listing does).
func (l *Log) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT login_username, provider_username, provider_password, host_port, created_at
		 FROM connections ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("connlog recent: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.LoginUsername, &e.ProviderUsername, &e.ProviderPassword, &e.HostPort, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("connlog scan: %w", err)
		}
		if seen[e.ProviderUsername] {
			continue
		}
		seen[e.ProviderUsername] = true
		out = append(out, e)
		if len(out) >= limit {
			break
		}
	}
	return out, rows.Err()
}
