// Package sqlite caches content query results per site in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eyeonidea/contentd/pkg/models"
	"github.com/eyeonidea/contentd/pkg/querykey"
)

// Cache is an exact-match query result cache backed by SQLite.
type Cache struct {
	db     *sql.DB
	ttl    time.Duration
	hits   atomic.Int64
	misses atomic.Int64
}

const createCacheTable = `
CREATE TABLE IF NOT EXISTS query_cache (
	site TEXT NOT NULL,
	cache_key TEXT NOT NULL,
	result BLOB NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	ttl_seconds INTEGER NOT NULL,
	PRIMARY KEY (site, cache_key)
);
`

// New creates a Cache with the given database path and default TTL.
func New(dbPath string, ttl time.Duration) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if _, err := db.Exec(createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	return &Cache{db: db, ttl: ttl}, nil
}

// Get retrieves a cached result. Returns false if not found or expired.
func (c *Cache) Get(site, key string) (json.RawMessage, bool) {
	var result []byte
	var createdAt time.Time
	var ttlSeconds int64

	err := c.db.QueryRow(
		`SELECT result, created_at, ttl_seconds FROM query_cache WHERE site = ? AND cache_key = ?`,
		site, key,
	).Scan(&result, &createdAt, &ttlSeconds)
	if err != nil {
		c.misses.Add(1)
		return nil, false
	}

	if time.Since(createdAt) > time.Duration(ttlSeconds)*time.Second {
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return result, true
}

// Put stores a result in the cache.
func (c *Cache) Put(site, key string, result json.RawMessage) error {
	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO query_cache (site, cache_key, result, created_at, ttl_seconds)
		 VALUES (?, ?, ?, ?, ?)`,
		site, key, []byte(result), time.Now().UTC(), int64(c.ttl.Seconds()),
	)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// List returns the entries cached for site, newest first. An empty site
// lists every site.
func (c *Cache) List(site string) ([]models.CacheEntry, error) {
	query := `SELECT site, cache_key, result, created_at, ttl_seconds FROM query_cache`
	var args []any
	if site != "" {
		query += ` WHERE site = ?`
		args = append(args, site)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("cache list: %w", err)
	}
	defer rows.Close()

	var out []models.CacheEntry
	for rows.Next() {
		var e models.CacheEntry
		var result []byte
		var ttlSeconds int64
		if err := rows.Scan(&e.Site, &e.Key, &result, &e.CreatedAt, &ttlSeconds); err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		e.Result = result
		e.TTL = time.Duration(ttlSeconds) * time.Second
		out = append(out, e)
	}
	return out, rows.Err()
}

// Stats returns cache performance metrics.
func (c *Cache) Stats() (models.CacheStats, error) {
	var count int64
	err := c.db.QueryRow(`SELECT COUNT(*) FROM query_cache`).Scan(&count)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return models.CacheStats{
		Entries: count,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

// Clear removes cache entries. If expiredOnly is true, only expired entries are removed.
func (c *Cache) Clear(expiredOnly bool) error {
	var query string
	if expiredOnly {
		query = `DELETE FROM query_cache WHERE (julianday('now') - julianday(created_at)) * 86400 > ttl_seconds`
	} else {
		query = `DELETE FROM query_cache`
	}
	if _, err := c.db.Exec(query); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Querier runs content queries. *sanity.Client satisfies it.
type Querier interface {
	Query(ctx context.Context, query string, params map[string]any) (json.RawMessage, error)
}

// Backend answers queries for one site from the cache and falls through to
// the wrapped querier on a miss.
type Backend struct {
	cache *Cache
	site  string
	next  Querier
}

// Wrap returns a Backend for site in front of next.
func (c *Cache) Wrap(site string, next Querier) *Backend {
	return &Backend{cache: c, site: site, next: next}
}

// Query returns the cached result for query and params, or runs it and
// caches the result.
func (b *Backend) Query(ctx context.Context, query string, params map[string]any) (json.RawMessage, error) {
	key, err := querykey.Make(querykey.DefaultNamespace, query, params)
	if err != nil {
		return nil, err
	}
	if v, ok := b.cache.Get(b.site, key); ok {
		return v, nil
	}

	v, err := b.next.Query(ctx, query, params)
	if err != nil {
		return nil, err
	}
	if err := b.cache.Put(b.site, key, v); err != nil {
		log.Printf("cache put %s/%s: %v", b.site, key, err)
	}
	return v, nil
}
