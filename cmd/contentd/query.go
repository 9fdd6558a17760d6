package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/eyeonidea/contentd/pkg/fetch"
	"github.com/eyeonidea/contentd/pkg/sanity"
	"github.com/eyeonidea/contentd/pkg/snapshot"
	"github.com/spf13/cobra"
)

func newQueryCmd(configPath *string) *cobra.Command {
	var (
		params  []string
		site    string
		route   string
		client  bool
		baseURL string
		fresh   bool
		key     string
	)

	cmd := &cobra.Command{
		Use:   "query <query>",
		Short: "Resolve a query the way a page render or browser would",
		Long: "Resolve a query through the fetcher. Server mode queries the content backend.\n" +
			"Client mode (--client) tries captured snapshots before the API; with --base-url\n" +
			"both come from a running contentd server instead of local storage.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			s, err := siteOrDefault(cfg, site)
			if err != nil {
				return err
			}
			p, err := parseParams(params)
			if err != nil {
				return err
			}

			ctx := context.Background()
			sink, diagStore, err := openDiagnostics(cfg)
			if err != nil {
				return err
			}
			if diagStore != nil {
				defer func() { _ = diagStore.Close() }()
			}

			var (
				f     *fetch.Fetcher
				scope *fetch.Scope
			)
			backend := sanity.NewClient(s.Sanity, nil)
			switch {
			case client && baseURL != "":
				api := sanity.NewProxyClient(baseURL, s.Name, nil)
				f = newFetcher(cfg, nil, api, snapshot.NewHTTPSource(baseURL, nil), sink)
				scope = fetch.NewClientScope(s.Name, route)
			case client:
				store, err := openSnapshots(ctx, cfg)
				if err != nil {
					return err
				}
				defer func() { _ = store.Close() }()
				f = newFetcher(cfg, nil, backend, store, sink)
				scope = fetch.NewClientScope(s.Name, route)
			default:
				f = newFetcher(cfg, backend, nil, nil, sink)
				scope = fetch.NewServerScope(s.Name, route)
			}

			d := fetch.Fetch[json.RawMessage](ctx, f, scope, args[0], p, fetch.Options{Key: key, Fresh: fresh})
			value, ok := d.Value()
			fmt.Fprintf(os.Stderr, "key=%s mode=%s source=%s status=%s\n", d.Key(), scope.Mode(), d.Source(), d.Status())
			if !ok {
				return fmt.Errorf("query unresolved")
			}
			var out bytes.Buffer
			if err := json.Indent(&out, value, "", "  "); err != nil {
				fmt.Println(string(value))
				return nil
			}
			fmt.Println(out.String())
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "query param as key=value (repeatable)")
	cmd.Flags().StringVar(&site, "site", "", "site name (default: first configured site)")
	cmd.Flags().StringVar(&route, "route", "/", "route the query is resolved for")
	cmd.Flags().BoolVar(&client, "client", false, "resolve as a browser would")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "contentd server for client mode snapshots and API")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "bypass cached values (client mode)")
	cmd.Flags().StringVar(&key, "key", "", "explicit cache key")
	return cmd
}
