package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/eyeonidea/contentd/pkg/config"
	"github.com/eyeonidea/contentd/pkg/diag"
	"github.com/eyeonidea/contentd/pkg/fetch"
	"github.com/eyeonidea/contentd/pkg/prerender"
	"github.com/eyeonidea/contentd/pkg/server"
	"github.com/eyeonidea/contentd/pkg/snapshot"
	"github.com/spf13/cobra"
)

func newServeCmd(configPath *string) *cobra.Command {
	var capture bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the content API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := openSnapshots(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			sink, diagStore, err := openDiagnostics(cfg)
			if err != nil {
				return err
			}
			if diagStore != nil {
				defer func() { _ = diagStore.Close() }()
			}

			cache, err := openCache(cfg)
			if err != nil {
				return err
			}
			if cache != nil {
				defer func() { _ = cache.Close() }()
			}

			relay, closeRelay, err := openRelay(cfg)
			if err != nil {
				return err
			}
			defer closeRelay()

			h, closeHub, err := openHub(cfg)
			if err != nil {
				return err
			}
			defer closeHub()

			backends := siteBackends(cfg, cache)
			if capture {
				if err := captureSites(ctx, cfg, cfg.Sites, backends, store, sink); err != nil {
					return err
				}
			}

			srv := server.New(cfg, server.Deps{
				Backends:    backends,
				Snapshots:   store,
				Diagnostics: sink,
				Relay:       relay,
				Hub:         h,
			})

			log.Printf("starting contentd with config: %s", *configPath)
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().BoolVar(&capture, "prerender", false, "capture snapshots for all configured pages before serving")
	return cmd
}

// captureSites renders every configured page of sites into store.
func captureSites(ctx context.Context, cfg *config.Config, sites []config.SiteConfig, backends map[string]fetch.Backend, store snapshot.Store, sink diag.Sink) error {
	for _, site := range sites {
		f := newFetcher(cfg, backends[site.Name], nil, nil, sink)
		results, err := prerender.New(site.Name, f, store, cfg.Fetch.PrerenderConcurrency).CaptureAll(ctx, site.Pages)
		if err != nil {
			return err
		}
		for _, r := range results {
			if r.Skipped {
				log.Printf("prerender %s%s: all %d queries failed, keeping previous snapshot", site.Name, r.Route, r.Failed)
				continue
			}
			log.Printf("prerender %s%s: %d keys captured, %d failed", site.Name, r.Route, r.Keys, r.Failed)
		}
	}
	return nil
}
