// Package prerender captures route snapshots by running each page's queries
// in a server scope.
package prerender

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/eyeonidea/contentd/pkg/config"
	"github.com/eyeonidea/contentd/pkg/fetch"
	"github.com/eyeonidea/contentd/pkg/snapshot"
)

// Saver persists captured payloads.
type Saver interface {
	Save(ctx context.Context, p *snapshot.Payload) error
}

// Capturer captures the snapshots of one site.
type Capturer struct {
	site        string
	fetcher     *fetch.Fetcher
	store       Saver
	concurrency int
}

// Result summarizes one captured route.
type Result struct {
	Route   string
	Keys    int
	Failed  int
	Skipped bool
}

// New creates a Capturer for site. concurrency bounds the queries run at
// once per page; values below 1 mean 1.
func New(site string, f *fetch.Fetcher, store Saver, concurrency int) *Capturer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Capturer{site: site, fetcher: f, store: store, concurrency: concurrency}
}

// Capture runs the page's queries and saves the resulting payload. A page
// whose queries all fail is not saved, so an earlier snapshot survives.
func (c *Capturer) Capture(ctx context.Context, page config.PageConfig) (Result, error) {
	scope := fetch.NewServerScope(c.site, page.Route)
	res := Result{Route: scope.Route()}

	var failed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, q := range page.Queries {
		g.Go(func() error {
			d := fetch.Fetch[json.RawMessage](gctx, c.fetcher, scope, q.Query, q.Params, fetch.Options{Key: q.Key})
			if _, ok := scope.Get(d.Key()); !ok {
				failed.Add(1)
				log.Printf("prerender %s%s: query %q unresolved", c.site, res.Route, q.Name)
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return res, fmt.Errorf("capture %s: %w", res.Route, err)
	}

	res.Failed = int(failed.Load())
	if len(page.Queries) > 0 && res.Failed == len(page.Queries) {
		res.Skipped = true
		return res, nil
	}

	p := scope.Extract()
	res.Keys = len(p.Data)
	if err := c.store.Save(ctx, p); err != nil {
		return res, fmt.Errorf("save snapshot %s: %w", res.Route, err)
	}
	return res, nil
}

// CaptureAll captures every page in order and stops at the first error.
func (c *Capturer) CaptureAll(ctx context.Context, pages []config.PageConfig) ([]Result, error) {
	results := make([]Result, 0, len(pages))
	for _, page := range pages {
		res, err := c.Capture(ctx, page)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}
