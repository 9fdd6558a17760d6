package fetch

import (
	"context"
	"encoding/json"
	"log"
	"sync"
)

// Status is the lifecycle state of a Data handle.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusEmpty   Status = "empty"
)

// Data is the handle returned by Fetch. Its value is the decoded result, or
// the zero value with ok=false when the query resolved to nothing.
type Data[T any] struct {
	key  string
	run  func(ctx context.Context) resolution

	mu     sync.Mutex
	value  T
	ok     bool
	status Status
	source Source
}

// Fetch resolves query in scope s and decodes the result into T. Unless the
// fetch is lazy, or client-only in a server scope, it runs before Fetch
// returns.
func Fetch[T any](ctx context.Context, f *Fetcher, s *Scope, query string, params map[string]any, opts Options) *Data[T] {
	d := &Data[T]{status: StatusIdle, source: SourceNone}

	key, err := f.Key(query, params, opts)
	if err != nil {
		log.Printf("fetch key for %q: %v", query, err)
		d.status = StatusEmpty
		d.run = func(context.Context) resolution { return resolution{nil, SourceNone} }
		return d
	}
	d.key = key

	if query == "" {
		d.run = func(context.Context) resolution { return resolution{nil, SourceNone} }
	} else {
		r := request{key: key, query: query, params: params, opts: opts}
		d.run = func(ctx context.Context) resolution { return f.resolve(ctx, s, r) }
	}

	if opts.Lazy || (opts.ClientOnly && s.mode == ModeServer) {
		return d
	}
	d.Refresh(ctx)
	return d
}

// Key returns the cache key the handle resolves.
func (d *Data[T]) Key() string { return d.key }

// Value returns the resolved value.
func (d *Data[T]) Value() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value, d.ok
}

// Pending reports whether a resolution is in flight.
func (d *Data[T]) Pending() bool {
	return d.Status() == StatusPending
}

// Status returns the handle's state.
func (d *Data[T]) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Source returns the tier that produced the current value.
func (d *Data[T]) Source() Source {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.source
}

// Refresh resolves the query again and returns the new value.
func (d *Data[T]) Refresh(ctx context.Context) (T, bool) {
	d.mu.Lock()
	d.status = StatusPending
	d.mu.Unlock()

	res := d.run(ctx)

	var v T
	ok := false
	if !isNull(res.value) {
		if err := json.Unmarshal(res.value, &v); err != nil {
			log.Printf("fetch decode %s: %v", d.key, err)
			var zero T
			v = zero
		} else {
			ok = true
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.value, d.ok, d.source = v, ok, res.source
	if ok {
		d.status = StatusSuccess
	} else {
		d.status = StatusEmpty
	}
	return v, ok
}
