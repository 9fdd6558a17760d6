package diag

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/eyeonidea/contentd/pkg/models"
)

// Store writes and queries diagnostic records in SQLite.
type Store struct {
	db   *sql.DB
	cfg  models.DiagnosticsConfig
	done chan struct{}
	wg   sync.WaitGroup
}

var _ Sink = (*Store)(nil)

// NewStore opens the diagnostics database, creates the schema and starts the
// retention loop.
func NewStore(cfg models.DiagnosticsConfig) (*Store, error) {
	db, err := sql.Open("sqlite", cfg.DBPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open diagnostics db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate diagnostics db: %w", err)
	}

	s := &Store{
		db:   db,
		cfg:  cfg,
		done: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.retentionLoop()

	return s, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS diagnostics (
		id         TEXT PRIMARY KEY,
		code       TEXT NOT NULL,
		cache_key  TEXT NOT NULL,
		site       TEXT,
		route      TEXT,
		error      TEXT,
		created_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_diagnostics_code ON diagnostics(code)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_diagnostics_created ON diagnostics(created_at)`)
	return err
}

// Record inserts rec, truncating its error text to MaxErrorSize.
func (s *Store) Record(ctx context.Context, rec models.DiagnosticRecord) error {
	if s == nil || s.db == nil {
		return nil
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	errText := rec.Error
	if s.cfg.MaxErrorSize > 0 && len(errText) > s.cfg.MaxErrorSize {
		errText = errText[:s.cfg.MaxErrorSize]
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO diagnostics (id, code, cache_key, site, route, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Code), rec.Key, rec.Site, rec.Route, errText, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record diagnostic: %w", err)
	}
	return nil
}

// Query returns records matching opts, newest first.
func (s *Store) Query(ctx context.Context, opts models.DiagnosticQueryOpts) ([]models.DiagnosticRecord, error) {
	q := `SELECT id, code, cache_key, site, route, error, created_at FROM diagnostics WHERE 1=1`
	var args []any

	if opts.Code != "" {
		q += " AND code = ?"
		args = append(args, string(opts.Code))
	}
	if opts.Key != "" {
		q += " AND cache_key = ?"
		args = append(args, opts.Key)
	}
	if opts.Site != "" {
		q += " AND site = ?"
		args = append(args, opts.Site)
	}
	if opts.Route != "" {
		q += " AND route = ?"
		args = append(args, opts.Route)
	}
	if !opts.Since.IsZero() {
		q += " AND created_at >= ?"
		args = append(args, opts.Since)
	}

	q += " ORDER BY created_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	q += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query diagnostics: %w", err)
	}
	defer rows.Close()

	var records []models.DiagnosticRecord
	for rows.Next() {
		var r models.DiagnosticRecord
		var code string
		var site, route, errText sql.NullString
		if err := rows.Scan(&r.ID, &code, &r.Key, &site, &route, &errText, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan diagnostic row: %w", err)
		}
		r.Code = models.DiagnosticCode(code)
		r.Site = site.String
		r.Route = route.String
		r.Error = errText.String
		records = append(records, r)
	}
	return records, rows.Err()
}

// Stats returns record counts grouped by code and day.
func (s *Store) Stats(ctx context.Context) ([]models.DiagnosticStat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT code, date(created_at) as day, count(*) as cnt
		 FROM diagnostics GROUP BY code, day ORDER BY day DESC, code`)
	if err != nil {
		return nil, fmt.Errorf("diagnostic stats: %w", err)
	}
	defer rows.Close()

	var stats []models.DiagnosticStat
	for rows.Next() {
		var st models.DiagnosticStat
		var code string
		var day sql.NullString
		if err := rows.Scan(&code, &day, &st.Count); err != nil {
			return nil, fmt.Errorf("scan diagnostic stat: %w", err)
		}
		st.Code = models.DiagnosticCode(code)
		st.Day = day.String
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// Cleanup deletes records older than the configured retention period.
func (s *Store) Cleanup(ctx context.Context) (int64, error) {
	if s.cfg.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -s.cfg.RetentionDays)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM diagnostics WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("diagnostics cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close stops the retention goroutine and closes the database.
func (s *Store) Close() error {
	close(s.done)
	s.wg.Wait()
	return s.db.Close()
}

func (s *Store) retentionLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			_, _ = s.Cleanup(context.Background())
		}
	}
}
