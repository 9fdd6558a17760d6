package main

import (
	"encoding/json"
	"fmt"

	"github.com/eyeonidea/contentd/pkg/querykey"
	"github.com/spf13/cobra"
)

func newKeyCmd(configPath *string) *cobra.Command {
	var (
		params    []string
		namespace string
	)

	cmd := &cobra.Command{
		Use:   "key <query>",
		Short: "Print the cache key for a query and its params",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseParams(params)
			if err != nil {
				return err
			}
			if namespace == "" {
				namespace = querykey.DefaultNamespace
				if cfg, err := loadConfig(*configPath); err == nil && cfg.Fetch.Namespace != "" {
					namespace = cfg.Fetch.Namespace
				}
			}
			key, err := querykey.Make(namespace, args[0], p)
			if err != nil {
				return err
			}
			fmt.Println(key)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "query param as key=value (repeatable)")
	cmd.Flags().StringVar(&namespace, "namespace", "", "key namespace (default from config, else sanity)")
	return cmd
}

func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}
