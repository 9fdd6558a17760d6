package hub

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eyeonidea/contentd/pkg/models"
)

// Store persists hub sessions.
type Store interface {
	// Create stores a new session.
	Create(ctx context.Context, s models.HubSession) error
	// Get returns the session with id, or ErrSessionNotFound.
	Get(ctx context.Context, id string) (models.HubSession, error)
	// Touch updates a session's last-seen time.
	Touch(ctx context.Context, id string, at time.Time) error
	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error
	// List returns sessions, optionally filtered by site, newest first.
	List(ctx context.Context, site string) ([]models.HubSession, error)
	// DeleteExpired removes sessions that expired before t.
	DeleteExpired(ctx context.Context, t time.Time) (int64, error)
	// Close releases resources.
	Close() error
}

// SQLiteStore implements Store with a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const createHubSessionsTable = `
CREATE TABLE IF NOT EXISTS hub_sessions (
	id TEXT PRIMARY KEY,
	site TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	last_seen DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_hub_sessions_site ON hub_sessions(site);
`

// NewSQLiteStore creates a SQLiteStore and runs auto-migration.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open hub db: %w", err)
	}

	if _, err := db.Exec(createHubSessionsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate hub db: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Create stores a new session.
func (s *SQLiteStore) Create(ctx context.Context, sess models.HubSession) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO hub_sessions (id, site, created_at, last_seen, expires_at) VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.Site, sess.CreatedAt.UTC(), sess.LastSeen.UTC(), sess.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Get returns the session with id, or ErrSessionNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id string) (models.HubSession, error) {
	var sess models.HubSession
	err := s.db.QueryRowContext(ctx,
		`SELECT id, site, created_at, last_seen, expires_at FROM hub_sessions WHERE id = ?`,
		id,
	).Scan(&sess.ID, &sess.Site, &sess.CreatedAt, &sess.LastSeen, &sess.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.HubSession{}, ErrSessionNotFound
	}
	if err != nil {
		return models.HubSession{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// Touch updates a session's last-seen time.
func (s *SQLiteStore) Touch(ctx context.Context, id string, at time.Time) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE hub_sessions SET last_seen = ? WHERE id = ?`, at.UTC(), id); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// Delete removes a session.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM hub_sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// List returns sessions, optionally filtered by site, newest first.
func (s *SQLiteStore) List(ctx context.Context, site string) ([]models.HubSession, error) {
	query := `SELECT id, site, created_at, last_seen, expires_at FROM hub_sessions`
	var args []any
	if site != "" {
		query += ` WHERE site = ?`
		args = append(args, site)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.HubSession
	for rows.Next() {
		var sess models.HubSession
		if err := rows.Scan(&sess.ID, &sess.Site, &sess.CreatedAt, &sess.LastSeen, &sess.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// DeleteExpired removes sessions that expired before t.
func (s *SQLiteStore) DeleteExpired(ctx context.Context, t time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM hub_sessions WHERE expires_at < ?`, t.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
