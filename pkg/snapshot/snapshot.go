// Package snapshot stores and loads the query results captured when a route
// is rendered, so clients can resolve those queries without calling the
// content backend again.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned when no payload exists for a route.
var ErrNotFound = errors.New("snapshot: payload not found")

// Payload is the set of query results captured for one rendered route.
type Payload struct {
	Site      string                     `json:"site"`
	Route     string                     `json:"route"`
	Data      map[string]json.RawMessage `json:"data"`
	CreatedAt time.Time                  `json:"created_at"`
}

// Keys returns the payload's query keys in sorted order.
func (p *Payload) Keys() []string {
	keys := make([]string, 0, len(p.Data))
	for k := range p.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Source loads payloads by route.
type Source interface {
	Load(ctx context.Context, site, route string) (*Payload, error)
}

// Store is a Source that can also be written to.
type Store interface {
	Source
	Save(ctx context.Context, p *Payload) error
	Delete(ctx context.Context, site, route string) error
	List(ctx context.Context, site string) ([]Summary, error)
	Close() error
}

// Summary describes a stored payload without its data.
type Summary struct {
	Site      string    `json:"site"`
	Route     string    `json:"route"`
	Keys      int       `json:"keys"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizeRoute strips the query string and fragment, ensures a leading
// slash and drops a trailing one, so "/news/?page=2" and "news" name the
// same payload.
func NormalizeRoute(route string) string {
	if u, err := url.Parse(route); err == nil && u.Path != "" {
		route = u.Path
	} else if i := strings.IndexAny(route, "?#"); i >= 0 {
		route = route[:i]
	}
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	if len(route) > 1 {
		route = strings.TrimRight(route, "/")
		if route == "" {
			route = "/"
		}
	}
	return route
}

// MemoryStore keeps payloads in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	payloads map[string]*Payload
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{payloads: make(map[string]*Payload)}
}

func memoryKey(site, route string) string {
	return site + "\x00" + NormalizeRoute(route)
}

// Load returns the payload for route, or ErrNotFound.
func (m *MemoryStore) Load(_ context.Context, site, route string) (*Payload, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payloads[memoryKey(site, route)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	cp.Data = make(map[string]json.RawMessage, len(p.Data))
	for k, v := range p.Data {
		cp.Data[k] = v
	}
	return &cp, nil
}

// Save stores p, replacing any payload for the same route.
func (m *MemoryStore) Save(_ context.Context, p *Payload) error {
	cp := *p
	cp.Route = NormalizeRoute(p.Route)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	m.payloads[memoryKey(p.Site, p.Route)] = &cp
	m.mu.Unlock()
	return nil
}

// Delete removes the payload for route.
func (m *MemoryStore) Delete(_ context.Context, site, route string) error {
	m.mu.Lock()
	delete(m.payloads, memoryKey(site, route))
	m.mu.Unlock()
	return nil
}

// List returns summaries of the stored payloads, optionally for one site.
func (m *MemoryStore) List(_ context.Context, site string) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Summary
	for _, p := range m.payloads {
		if site != "" && p.Site != site {
			continue
		}
		out = append(out, Summary{Site: p.Site, Route: p.Route, Keys: len(p.Data), CreatedAt: p.CreatedAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Site != out[j].Site {
			return out[i].Site < out[j].Site
		}
		return out[i].Route < out[j].Route
	})
	return out, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
