package contact

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eyeonidea/contentd/pkg/models"
)

// Ledger records delivered submissions.
type Ledger interface {
	// Record stores a submission.
	Record(ctx context.Context, sub models.Submission) error
	// CountBySender returns how many submissions sender made since a given time.
	CountBySender(ctx context.Context, sender string, since time.Time) (int64, error)
	// List returns the latest submissions, optionally filtered by site.
	List(ctx context.Context, site string, limit int) ([]models.Submission, error)
	// Close releases resources.
	Close() error
}

// SQLiteLedger implements Ledger with a SQLite database.
type SQLiteLedger struct {
	db *sql.DB
}

const createSubmissionsTable = `
CREATE TABLE IF NOT EXISTS contact_submissions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	site TEXT NOT NULL,
	sender TEXT NOT NULL,
	subject TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_submissions_sender_time ON contact_submissions(sender, created_at);
`

// NewLedger creates a SQLiteLedger and runs auto-migration.
func NewLedger(dbPath string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open contact db: %w", err)
	}

	if _, err := db.Exec(createSubmissionsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate contact db: %w", err)
	}

	return &SQLiteLedger{db: db}, nil
}

// Record stores a submission.
func (l *SQLiteLedger) Record(ctx context.Context, sub models.Submission) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO contact_submissions (site, sender, subject, created_at) VALUES (?, ?, ?, ?)`,
		sub.Site, sub.Sender, sub.Subject, sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record submission: %w", err)
	}
	return nil
}

// CountBySender returns how many submissions sender made since a given time.
func (l *SQLiteLedger) CountBySender(ctx context.Context, sender string, since time.Time) (int64, error) {
	var n int64
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM contact_submissions WHERE sender = ? AND created_at >= ?`,
		sender, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return n, nil
}

// List returns the latest submissions, optionally filtered by site.
func (l *SQLiteLedger) List(ctx context.Context, site string, limit int) ([]models.Submission, error) {
	query := `SELECT id, site, sender, subject, created_at FROM contact_submissions`
	var args []any
	if site != "" {
		query += ` WHERE site = ?`
		args = append(args, site)
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var subs []models.Submission
	for rows.Next() {
		var s models.Submission
		if err := rows.Scan(&s.ID, &s.Site, &s.Sender, &s.Subject, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// Close releases the database connection.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}
