package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/eyeonidea/contentd/pkg/diag"
	"github.com/eyeonidea/contentd/pkg/models"
	"github.com/spf13/cobra"
)

func newDiagCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diag",
		Short: "Inspect recorded fetch failures",
	}

	cmd.AddCommand(
		newDiagListCmd(configPath),
		newDiagStatsCmd(configPath),
		newDiagCleanupCmd(configPath),
	)
	return cmd
}

func openDiagStore(configPath string) (*diag.Store, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if !cfg.Diagnostics.Enabled {
		return nil, fmt.Errorf("diagnostics storage is disabled in config")
	}
	return diag.NewStore(cfg.Diagnostics)
}

func newDiagListCmd(configPath *string) *cobra.Command {
	var (
		code  string
		key   string
		site  string
		route string
		since string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List diagnostic records, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openDiagStore(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			opts := models.DiagnosticQueryOpts{
				Code:  models.DiagnosticCode(code),
				Key:   key,
				Site:  site,
				Route: route,
				Limit: limit,
			}
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since date (use YYYY-MM-DD): %w", err)
				}
				opts.Since = t
			}

			records, err := s.Query(context.Background(), opts)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No diagnostic records found.")
				return nil
			}
			w := newTable(os.Stdout)
			fmt.Fprintln(w, "TIME\tCODE\tKEY\tSITE\tROUTE\tERROR")
			for _, r := range records {
				route := r.Route
				if route == "" {
					route = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.CreatedAt.Format(timeLayout), r.Code, r.Key, r.Site, route, r.Error)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "filter by code (fresh-fetch-failed, api-fetch-failed, render-fetch-failed)")
	cmd.Flags().StringVar(&key, "key", "", "filter by query key")
	cmd.Flags().StringVar(&site, "site", "", "filter by site")
	cmd.Flags().StringVar(&route, "route", "", "filter by route")
	cmd.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 50, "max records to return")
	return cmd
}

func newDiagStatsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show daily failure counts per code",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openDiagStore(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			stats, err := s.Stats(context.Background())
			if err != nil {
				return err
			}
			if len(stats) == 0 {
				fmt.Println("No diagnostic records found.")
				return nil
			}
			w := newTable(os.Stdout)
			fmt.Fprintln(w, "DAY\tCODE\tCOUNT")
			for _, st := range stats {
				fmt.Fprintf(w, "%s\t%s\t%d\n", st.Day, st.Code, st.Count)
			}
			return w.Flush()
		},
	}
}

func newDiagCleanupCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete records older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openDiagStore(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			n, err := s.Cleanup(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d diagnostic records.\n", n)
			return nil
		},
	}
}
