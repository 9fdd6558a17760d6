package main

import (
	"fmt"
	"os"

	cachepkg "github.com/eyeonidea/contentd/pkg/cache/sqlite"
	"github.com/spf13/cobra"
)

func newCacheCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the query result cache",
	}

	openCacheFrom := func() (*cachepkg.Cache, error) {
		cfg, err := loadConfig(*configPath)
		if err != nil {
			return nil, err
		}
		return cachepkg.New(cfg.DBPath, cfg.Cache.TTL)
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCacheFrom()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			stats, err := c.Stats()
			if err != nil {
				return err
			}
			fmt.Printf("Entries: %d\nHits:    %d\nMisses:  %d\n", stats.Entries, stats.Hits, stats.Misses)
			return nil
		},
	}

	var site string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List cached keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCacheFrom()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			entries, err := c.List(site)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("Cache is empty.")
				return nil
			}
			w := newTable(os.Stdout)
			fmt.Fprintln(w, "SITE\tKEY\tSIZE\tCREATED")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", e.Site, e.Key, len(e.Result), e.CreatedAt.Format(timeLayout))
			}
			return w.Flush()
		},
	}
	listCmd.Flags().StringVar(&site, "site", "", "only list entries for this site")

	var expiredOnly bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCacheFrom()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			if err := c.Clear(expiredOnly); err != nil {
				return err
			}
			if expiredOnly {
				fmt.Println("Expired cache entries cleared.")
			} else {
				fmt.Println("All cache entries cleared.")
			}
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&expiredOnly, "expired", false, "only clear expired entries")

	cmd.AddCommand(statsCmd, listCmd, clearCmd)
	return cmd
}
