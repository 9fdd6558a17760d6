package fetch

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/eyeonidea/contentd/pkg/snapshot"
)

// Mode says which side of a page render a scope belongs to.
type Mode int

const (
	// ModeClient resolves from memory, then the route's snapshot, then the API.
	ModeClient Mode = iota
	// ModeServer queries the content backend directly and records results
	// for snapshot extraction.
	ModeServer
)

func (m Mode) String() string {
	if m == ModeServer {
		return "server"
	}
	return "client"
}

// Scope is the cache context of one page render or client session. Keys are
// added, not removed; a fresh fetch is the only thing that replaces a value.
type Scope struct {
	mode  Mode
	site  string
	route string

	mu             sync.RWMutex
	data           map[string]json.RawMessage
	snapshotLoaded bool

	group singleflight.Group
}

// NewScope creates an empty scope for route on site.
func NewScope(mode Mode, site, route string) *Scope {
	return &Scope{
		mode:  mode,
		site:  site,
		route: snapshot.NormalizeRoute(route),
		data:  make(map[string]json.RawMessage),
	}
}

// NewServerScope creates a scope for rendering route.
func NewServerScope(site, route string) *Scope {
	return NewScope(ModeServer, site, route)
}

// NewClientScope creates a scope for a client navigating to route.
func NewClientScope(site, route string) *Scope {
	return NewScope(ModeClient, site, route)
}

// Mode returns the scope's mode.
func (s *Scope) Mode() Mode { return s.mode }

// Site returns the scope's site.
func (s *Scope) Site() string { return s.site }

// Route returns the normalized route of the scope.
func (s *Scope) Route() string { return s.route }

// Get returns the value cached under key. A cached JSON null is present.
func (s *Scope) Get(key string) (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Set stores v under key.
func (s *Scope) Set(key string, v json.RawMessage) {
	s.mu.Lock()
	s.data[key] = v
	s.mu.Unlock()
}

// Merge adds the payload's keys that the scope does not hold yet and marks
// the snapshot as loaded.
func (s *Scope) Merge(p *snapshot.Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p != nil {
		for k, v := range p.Data {
			if _, ok := s.data[k]; !ok {
				s.data[k] = v
			}
		}
	}
	s.snapshotLoaded = true
}

func (s *Scope) hasSnapshot() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLoaded
}

// Keys returns the cached keys in sorted order.
func (s *Scope) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Extract returns everything resolved in the scope as a snapshot payload.
func (s *Scope) Extract() *snapshot.Payload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data := make(map[string]json.RawMessage, len(s.data))
	for k, v := range s.data {
		data[k] = v
	}
	return &snapshot.Payload{
		Site:      s.site,
		Route:     s.route,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
}
