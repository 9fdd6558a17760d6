// Package redis stores snapshot payloads in Redis so several contentd
// instances can share captured routes.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eyeonidea/contentd/pkg/snapshot"
)

const keyPrefix = "contentd:snapshot:"

// Store implements snapshot.Store using Redis.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ snapshot.Store = (*Store)(nil)

// Options holds configuration for the Redis store.
type Options struct {
	Addr     string
	Password string
	DB       int
	// TTL expires payloads; zero keeps them until replaced or deleted.
	TTL time.Duration
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, opts Options) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.Printf("redis snapshot store connected to %s", opts.Addr)
	return &Store{rdb: rdb, ttl: opts.TTL}, nil
}

func payloadKey(site, route string) string {
	return keyPrefix + site + ":" + snapshot.NormalizeRoute(route)
}

// sitePattern matches every payload key of site. Glob metacharacters in the
// name are escaped so one site's scan never covers another's keys.
func sitePattern(site string) string {
	var b strings.Builder
	b.WriteString(keyPrefix)
	for _, r := range site {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteString(":*")
	return b.String()
}

// Load returns the payload for route, or snapshot.ErrNotFound.
func (s *Store) Load(ctx context.Context, site, route string) (*snapshot.Payload, error) {
	return s.loadKey(ctx, payloadKey(site, route))
}

func (s *Store) loadKey(ctx context.Context, key string) (*snapshot.Payload, error) {
	val, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, snapshot.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("redis Get error for key '%s': %w", key, err)
	}

	var p snapshot.Payload
	if err := json.Unmarshal(val, &p); err != nil {
		return nil, fmt.Errorf("redis Unmarshal error for key '%s': %w", key, err)
	}
	return &p, nil
}

// Save stores p, replacing any payload for the same route.
func (s *Store) Save(ctx context.Context, p *snapshot.Payload) error {
	cp := *p
	cp.Route = snapshot.NormalizeRoute(p.Route)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("redis Marshal error for route '%s': %w", cp.Route, err)
	}
	key := payloadKey(cp.Site, cp.Route)
	if err := s.rdb.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis Set error for key '%s': %w", key, err)
	}
	return nil
}

// Delete removes the payload for route.
func (s *Store) Delete(ctx context.Context, site, route string) error {
	key := payloadKey(site, route)
	err := s.rdb.Del(ctx, key).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis Del error for key '%s': %w", key, err)
	}
	return nil
}

// List scans stored payloads, optionally for one site.
func (s *Store) List(ctx context.Context, site string) ([]snapshot.Summary, error) {
	pattern := keyPrefix + "*"
	if site != "" {
		pattern = sitePattern(site)
	}

	// Site and route come from the stored payload, not from splitting the key.
	var out []snapshot.Summary
	iter := s.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		p, err := s.loadKey(ctx, iter.Val())
		if errors.Is(err, snapshot.ErrNotFound) {
			continue // expired between scan and get
		}
		if err != nil {
			return nil, err
		}
		if site != "" && p.Site != site {
			continue
		}
		out = append(out, snapshot.Summary{Site: p.Site, Route: p.Route, Keys: len(p.Data), CreatedAt: p.CreatedAt})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis Scan error for pattern '%s': %w", pattern, err)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Site != out[j].Site {
			return out[i].Site < out[j].Site
		}
		return out[i].Route < out[j].Route
	})
	return out, nil
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.rdb.Close()
}
