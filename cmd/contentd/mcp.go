package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/eyeonidea/contentd/pkg/mcp"
	"github.com/spf13/cobra"
)

func newMCPCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve operator tools over MCP (stdio)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			deps := mcp.Deps{
				DefaultSite: cfg.Sites[0].Name,
				Namespace:   cfg.Fetch.Namespace,
			}

			store, err := openSnapshots(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			deps.Snapshots = store

			cache, err := openCache(cfg)
			if err != nil {
				return err
			}
			if cache != nil {
				defer func() { _ = cache.Close() }()
				deps.Cache = cache
			}

			deps.Backends = make(map[string]mcp.Querier, len(cfg.Sites))
			for name, b := range siteBackends(cfg, cache) {
				deps.Backends[name] = b
			}

			if _, diagStore, err := openDiagnostics(cfg); err != nil {
				return err
			} else if diagStore != nil {
				defer func() { _ = diagStore.Close() }()
				deps.Diagnostics = diagStore
			}

			h, closeHub, err := openHub(cfg)
			if err != nil {
				return err
			}
			defer closeHub()
			deps.Hub = h

			return mcp.New(deps, version).Run(ctx, os.Stdin, os.Stdout)
		},
	}
}
