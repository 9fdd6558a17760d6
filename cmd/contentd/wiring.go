package main

import (
	"context"
	"fmt"
	"strings"

	cachepkg "github.com/eyeonidea/contentd/pkg/cache/sqlite"
	"github.com/eyeonidea/contentd/pkg/config"
	"github.com/eyeonidea/contentd/pkg/contact"
	"github.com/eyeonidea/contentd/pkg/diag"
	"github.com/eyeonidea/contentd/pkg/fetch"
	"github.com/eyeonidea/contentd/pkg/hub"
	"github.com/eyeonidea/contentd/pkg/sanity"
	"github.com/eyeonidea/contentd/pkg/snapshot"
	redisstore "github.com/eyeonidea/contentd/pkg/snapshot/redis"
	sqlitestore "github.com/eyeonidea/contentd/pkg/snapshot/sqlite"
)

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func openSnapshots(ctx context.Context, cfg *config.Config) (snapshot.Store, error) {
	switch cfg.Snapshot.Driver {
	case "memory":
		return snapshot.NewMemoryStore(), nil
	case "redis":
		r := cfg.Snapshot.Redis
		return redisstore.New(ctx, redisstore.Options{
			Addr:     r.Addr,
			Password: r.Password,
			DB:       r.DB,
			TTL:      r.TTL,
		})
	default:
		return sqlitestore.New(cfg.DBPath)
	}
}

// openDiagnostics returns the sink fetchers report to. With persistence
// enabled records are both logged and stored; store is nil otherwise.
func openDiagnostics(cfg *config.Config) (diag.Sink, *diag.Store, error) {
	if !cfg.Diagnostics.Enabled {
		return diag.LogSink{}, nil, nil
	}
	store, err := diag.NewStore(cfg.Diagnostics)
	if err != nil {
		return nil, nil, fmt.Errorf("init diagnostics: %w", err)
	}
	return diag.Multi{diag.LogSink{}, store}, store, nil
}

func openCache(cfg *config.Config) (*cachepkg.Cache, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	c, err := cachepkg.New(cfg.DBPath, cfg.Cache.TTL)
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}
	return c, nil
}

// siteBackends builds one content client per site, behind the result cache
// when one is given.
func siteBackends(cfg *config.Config, cache *cachepkg.Cache) map[string]fetch.Backend {
	backends := make(map[string]fetch.Backend, len(cfg.Sites))
	for _, site := range cfg.Sites {
		var b fetch.Backend = sanity.NewClient(site.Sanity, nil)
		if cache != nil {
			b = cache.Wrap(site.Name, b)
		}
		backends[site.Name] = b
	}
	return backends
}

func newFetcher(cfg *config.Config, backend, api fetch.Backend, snapshots snapshot.Source, sink diag.Sink) *fetch.Fetcher {
	snapshotPolicy, apiPolicy := fetch.Policies(cfg.Fetch)
	return fetch.New(fetch.Config{
		Backend:        backend,
		API:            api,
		Snapshots:      snapshots,
		Diagnostics:    sink,
		Namespace:      cfg.Fetch.Namespace,
		SnapshotPolicy: snapshotPolicy,
		APIPolicy:      apiPolicy,
	})
}

func openRelay(cfg *config.Config) (*contact.Relay, func(), error) {
	if !cfg.Contact.Enabled {
		return nil, func() {}, nil
	}
	ledger, err := contact.NewLedger(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("init contact ledger: %w", err)
	}
	relay := contact.NewRelay(contact.Options{
		Mailer:   contact.NewResendMailer(cfg.Contact.APIKey, cfg.Contact.Endpoint, nil),
		To:       cfg.Contact.To,
		From:     cfg.Contact.From,
		Throttle: contact.NewThrottle(cfg.Contact.Throttle, ledger),
		Ledger:   ledger,
	})
	return relay, func() { _ = ledger.Close() }, nil
}

func openHub(cfg *config.Config) (*hub.Hub, func(), error) {
	store, err := hub.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("init hub: %w", err)
	}
	return hub.New(store, cfg.Hub), func() { _ = store.Close() }, nil
}

func siteOrDefault(cfg *config.Config, name string) (config.SiteConfig, error) {
	if name == "" {
		return cfg.Sites[0], nil
	}
	site, ok := cfg.Site(name)
	if !ok {
		return config.SiteConfig{}, fmt.Errorf("unknown site %q", name)
	}
	return site, nil
}

// parseParams turns repeated key=value flags into query params. Values that
// parse as JSON keep their type, so n=3 is a number and tags=["a"] a list.
func parseParams(pairs []string) (map[string]any, error) {
	params := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid param %q: want key=value", p)
		}
		params[k] = parseValue(v)
	}
	return params, nil
}
