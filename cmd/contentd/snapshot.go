package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/eyeonidea/contentd/pkg/config"
	"github.com/eyeonidea/contentd/pkg/snapshot"
	"github.com/spf13/cobra"
)

func newSnapshotCmd(configPath *string) *cobra.Command {
	var site string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture and inspect route snapshots",
	}
	cmd.PersistentFlags().StringVar(&site, "site", "", "site name (capture: all sites, others: first configured site)")

	cmd.AddCommand(
		newSnapshotCaptureCmd(configPath, &site),
		newSnapshotListCmd(configPath, &site),
		newSnapshotShowCmd(configPath, &site),
		newSnapshotDeleteCmd(configPath, &site),
	)
	return cmd
}

// withSnapshots loads the config and opens the snapshot store for fn.
func withSnapshots(configPath string, fn func(ctx context.Context, cfg *config.Config, store snapshot.Store) error) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	ctx := context.Background()
	store, err := openSnapshots(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return fn(ctx, cfg, store)
}

func newSnapshotCaptureCmd(configPath, site *string) *cobra.Command {
	return &cobra.Command{
		Use:   "capture",
		Short: "Run every configured page's queries and store the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSnapshots(*configPath, func(ctx context.Context, cfg *config.Config, store snapshot.Store) error {
				sites := cfg.Sites
				if *site != "" {
					s, err := siteOrDefault(cfg, *site)
					if err != nil {
						return err
					}
					sites = []config.SiteConfig{s}
				}

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
				return captureSites(ctx, cfg, sites, siteBackends(cfg, cache), store, sink)
			})
		},
	}
}

func newSnapshotListCmd(configPath, site *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSnapshots(*configPath, func(ctx context.Context, cfg *config.Config, store snapshot.Store) error {
				s, err := siteOrDefault(cfg, *site)
				if err != nil {
					return err
				}
				list, err := store.List(ctx, s.Name)
				if err != nil {
					return err
				}
				if len(list) == 0 {
					fmt.Println("No snapshots found.")
					return nil
				}
				w := newTable(os.Stdout)
				fmt.Fprintln(w, "SITE\tROUTE\tKEYS\tCAPTURED")
				for _, sum := range list {
					fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", sum.Site, sum.Route, sum.Keys, sum.CreatedAt.Format(timeLayout))
				}
				return w.Flush()
			})
		},
	}
}

func newSnapshotShowCmd(configPath, site *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <route>",
		Short: "Print a stored snapshot payload as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSnapshots(*configPath, func(ctx context.Context, cfg *config.Config, store snapshot.Store) error {
				s, err := siteOrDefault(cfg, *site)
				if err != nil {
					return err
				}
				p, err := store.Load(ctx, s.Name, args[0])
				if errors.Is(err, snapshot.ErrNotFound) {
					return fmt.Errorf("no snapshot for %s%s", s.Name, snapshot.NormalizeRoute(args[0]))
				}
				if err != nil {
					return err
				}
				return printJSON(p)
			})
		},
	}
}

func newSnapshotDeleteCmd(configPath, site *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <route>",
		Short: "Delete a stored snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSnapshots(*configPath, func(ctx context.Context, cfg *config.Config, store snapshot.Store) error {
				s, err := siteOrDefault(cfg, *site)
				if err != nil {
					return err
				}
				if err := store.Delete(ctx, s.Name, args[0]); err != nil {
					return err
				}
				fmt.Printf("Deleted snapshot %s%s.\n", s.Name, snapshot.NormalizeRoute(args[0]))
				return nil
			})
		},
	}
}
