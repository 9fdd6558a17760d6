// Package fetch resolves content queries through a page-scoped cache.
//
// On the server a query runs against the content backend and its result is
// kept in the scope so it can be shipped to the client as a snapshot. On the
// client a query is answered, in order, from the scope's memory, from the
// route's snapshot and finally from the API, with bounded retries on the last
// two. Fetch never returns an error: failures resolve to the empty value and
// are reported to the diagnostics sink.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/eyeonidea/contentd/pkg/config"
	"github.com/eyeonidea/contentd/pkg/diag"
	"github.com/eyeonidea/contentd/pkg/models"
	"github.com/eyeonidea/contentd/pkg/querykey"
	"github.com/eyeonidea/contentd/pkg/retry"
	"github.com/eyeonidea/contentd/pkg/snapshot"
)

var (
	// ErrPayloadMissing is returned by a snapshot load with no data.
	ErrPayloadMissing = errors.New("payload-missing")
	// ErrEmptyResult is returned when the API answers a fallback query with null.
	ErrEmptyResult = errors.New("api-fetch-empty")
	// ErrNoBackend is returned when the tier needed for a scope has no backend.
	ErrNoBackend = errors.New("no backend configured")
)

// Backend runs a query and returns its raw JSON result.
type Backend interface {
	Query(ctx context.Context, query string, params map[string]any) (json.RawMessage, error)
}

// Options tune a single fetch.
type Options struct {
	// Key overrides the derived cache key.
	Key string
	// Lazy defers the fetch until Data.Refresh is called.
	Lazy bool
	// ClientOnly skips the fetch in server scopes.
	ClientOnly bool
	// Fresh bypasses the cache in client scopes.
	Fresh bool
}

// Config wires a Fetcher.
type Config struct {
	// Backend is queried by server scopes. It should only see published content.
	Backend Backend
	// API is queried by client scopes.
	API Backend
	// Snapshots supplies route payloads to client scopes.
	Snapshots snapshot.Source
	// Diagnostics receives failure records; nil logs them.
	Diagnostics diag.Sink

	Namespace      string
	SnapshotPolicy retry.Policy
	APIPolicy      retry.Policy
}

// Fetcher resolves queries for scopes.
type Fetcher struct {
	backend   Backend
	api       Backend
	snapshots snapshot.Source
	sink      diag.Sink
	namespace string

	snapshotPolicy retry.Policy
	apiPolicy      retry.Policy
}

// DefaultSnapshotPolicy tries a snapshot load twice, 150ms apart.
var DefaultSnapshotPolicy = retry.Policy{Attempts: 2, Delay: retry.Linear(150 * time.Millisecond)}

// DefaultAPIPolicy tries an API call twice, 250ms apart.
var DefaultAPIPolicy = retry.Policy{Attempts: 2, Delay: retry.Linear(250 * time.Millisecond)}

// New creates a Fetcher.
func New(cfg Config) *Fetcher {
	f := &Fetcher{
		backend:        cfg.Backend,
		api:            cfg.API,
		snapshots:      cfg.Snapshots,
		sink:           cfg.Diagnostics,
		namespace:      cfg.Namespace,
		snapshotPolicy: cfg.SnapshotPolicy,
		apiPolicy:      cfg.APIPolicy,
	}
	if f.sink == nil {
		f.sink = diag.LogSink{}
	}
	if f.namespace == "" {
		f.namespace = querykey.DefaultNamespace
	}
	if f.snapshotPolicy.Attempts == 0 {
		f.snapshotPolicy = DefaultSnapshotPolicy
	}
	if f.apiPolicy.Attempts == 0 {
		f.apiPolicy = DefaultAPIPolicy
	}
	return f
}

// Policies builds the retry policies described by fc.
func Policies(fc config.FetchConfig) (snapshotPolicy, apiPolicy retry.Policy) {
	return retry.Policy{Attempts: fc.SnapshotAttempts, Delay: retry.Linear(fc.SnapshotDelay)},
		retry.Policy{Attempts: fc.APIAttempts, Delay: retry.Linear(fc.APIDelay)}
}

// Key returns the cache key for query and params, honoring an explicit key.
func (f *Fetcher) Key(query string, params map[string]any, opts Options) (string, error) {
	if opts.Key != "" {
		return opts.Key, nil
	}
	return querykey.Make(f.namespace, query, params)
}

// Source tells where a resolved value came from.
type Source string

const (
	SourceNone     Source = "none"
	SourceMemory   Source = "memory"
	SourceSnapshot Source = "snapshot"
	SourceAPI      Source = "api"
	SourceBackend  Source = "backend"
	SourceFallback Source = "fallback"
)

type request struct {
	key    string
	query  string
	params map[string]any
	opts   Options
}

type resolution struct {
	value  json.RawMessage
	source Source
}

// resolve runs the tiers for one request and returns the raw value, or nil
// when nothing could be resolved.
func (f *Fetcher) resolve(ctx context.Context, s *Scope, r request) resolution {
	flight := s.mode.String() + "\x00" + r.key
	if r.opts.Fresh && s.mode == ModeClient {
		flight = "fresh\x00" + r.key
	}
	v, _, _ := s.group.Do(flight, func() (any, error) {
		switch {
		case s.mode == ModeServer:
			return f.render(ctx, s, r), nil
		case r.opts.Fresh:
			return f.fresh(ctx, s, r), nil
		default:
			return f.cached(ctx, s, r), nil
		}
	})
	return v.(resolution)
}

func (f *Fetcher) render(ctx context.Context, s *Scope, r request) resolution {
	if v, ok := s.Get(r.key); ok {
		return resolution{v, SourceMemory}
	}
	if r.opts.ClientOnly {
		return resolution{nil, SourceNone}
	}
	if f.backend == nil {
		f.report(ctx, models.CodeRenderFetchFailed, s, r.key, s.route, ErrNoBackend)
		return resolution{nil, SourceNone}
	}
	v, err := f.backend.Query(ctx, r.query, r.params)
	if err != nil {
		f.report(ctx, models.CodeRenderFetchFailed, s, r.key, s.route, err)
		return resolution{nil, SourceNone}
	}
	s.Set(r.key, v)
	return resolution{v, SourceBackend}
}

func (f *Fetcher) fresh(ctx context.Context, s *Scope, r request) resolution {
	err := ErrNoBackend
	if f.api != nil {
		var v json.RawMessage
		v, err = f.api.Query(ctx, r.query, r.params)
		if err == nil {
			s.Set(r.key, v)
			return resolution{v, SourceAPI}
		}
	}
	f.report(ctx, models.CodeFreshFetchFailed, s, r.key, "", err)
	if v, ok := s.Get(r.key); ok {
		return resolution{v, SourceFallback}
	}
	return resolution{nil, SourceNone}
}

func (f *Fetcher) cached(ctx context.Context, s *Scope, r request) resolution {
	if v, ok := s.Get(r.key); ok {
		return resolution{v, SourceMemory}
	}

	if f.snapshots != nil && !s.hasSnapshot() {
		f.loadSnapshot(ctx, s)
		if v, ok := s.Get(r.key); ok {
			return resolution{v, SourceSnapshot}
		}
	}

	if f.api == nil {
		f.report(ctx, models.CodeAPIFetchFailed, s, r.key, s.route, ErrNoBackend)
		return resolution{nil, SourceNone}
	}
	v, err := retry.Do(ctx, f.apiPolicy, func(ctx context.Context) (json.RawMessage, error) {
		v, err := f.api.Query(ctx, r.query, r.params)
		if err != nil {
			return nil, err
		}
		if isNull(v) {
			return nil, ErrEmptyResult
		}
		return v, nil
	})
	if err != nil {
		f.report(ctx, models.CodeAPIFetchFailed, s, r.key, s.route, err)
		return resolution{nil, SourceNone}
	}
	s.Set(r.key, v)
	return resolution{v, SourceAPI}
}

// loadSnapshot merges the route's payload into the scope. Concurrent misses
// share one load; a failed load is retried by the next miss.
func (f *Fetcher) loadSnapshot(ctx context.Context, s *Scope) {
	_, _, _ = s.group.Do("snapshot\x00"+s.route, func() (any, error) {
		if s.hasSnapshot() {
			return nil, nil
		}
		p, err := retry.Do(ctx, f.snapshotPolicy, func(ctx context.Context) (*snapshot.Payload, error) {
			p, err := f.snapshots.Load(ctx, s.site, s.route)
			if err != nil {
				return nil, err
			}
			if p == nil || p.Data == nil {
				return nil, ErrPayloadMissing
			}
			return p, nil
		})
		if err != nil {
			log.Printf("snapshot %s%s unavailable: %v", s.site, s.route, err)
			return nil, nil
		}
		s.Merge(p)
		return nil, nil
	})
}

func (f *Fetcher) report(ctx context.Context, code models.DiagnosticCode, s *Scope, key, route string, cause error) {
	rec := models.DiagnosticRecord{
		Code:      code,
		Key:       key,
		Site:      s.site,
		Route:     route,
		Error:     cause.Error(),
		CreatedAt: time.Now().UTC(),
	}
	// The caller's context may already be done; the record still matters.
	if err := f.sink.Record(context.WithoutCancel(ctx), rec); err != nil {
		log.Printf("diagnostics sink error: %v", err)
	}
}

func isNull(v json.RawMessage) bool {
	t := bytes.TrimSpace(v)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}
