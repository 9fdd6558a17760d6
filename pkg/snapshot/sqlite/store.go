// Package sqlite stores snapshot payloads in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eyeonidea/contentd/pkg/snapshot"
)

// Store is a snapshot.Store backed by SQLite.
type Store struct {
	db *sql.DB
}

var _ snapshot.Store = (*Store)(nil)

const createSnapshotTable = `
CREATE TABLE IF NOT EXISTS snapshots (
	site TEXT NOT NULL,
	route TEXT NOT NULL,
	data BLOB NOT NULL,
	key_count INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (site, route)
);
`

// New opens (or creates) the snapshot table in the database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}

	if _, err := db.Exec(createSnapshotTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate snapshot db: %w", err)
	}

	return &Store{db: db}, nil
}

// Load returns the payload for route, or snapshot.ErrNotFound.
func (s *Store) Load(ctx context.Context, site, route string) (*snapshot.Payload, error) {
	route = snapshot.NormalizeRoute(route)
	var data []byte
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT data, created_at FROM snapshots WHERE site = ? AND route = ?`,
		site, route,
	).Scan(&data, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, snapshot.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	p := &snapshot.Payload{Site: site, Route: route, CreatedAt: createdAt}
	if err := json.Unmarshal(data, &p.Data); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", route, err)
	}
	return p, nil
}

// Save stores p, replacing any payload for the same route.
func (s *Store) Save(ctx context.Context, p *snapshot.Payload) error {
	data, err := json.Marshal(p.Data)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO snapshots (site, route, data, key_count, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.Site, snapshot.NormalizeRoute(p.Route), data, len(p.Data), createdAt,
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Delete removes the payload for route.
func (s *Store) Delete(ctx context.Context, site, route string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE site = ? AND route = ?`,
		site, snapshot.NormalizeRoute(route),
	)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// List returns summaries of stored payloads, optionally for one site.
func (s *Store) List(ctx context.Context, site string) ([]snapshot.Summary, error) {
	q := `SELECT site, route, key_count, created_at FROM snapshots`
	var args []any
	if site != "" {
		q += ` WHERE site = ?`
		args = append(args, site)
	}
	q += ` ORDER BY site, route`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []snapshot.Summary
	for rows.Next() {
		var sum snapshot.Summary
		if err := rows.Scan(&sum.Site, &sum.Route, &sum.Keys, &sum.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
