package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "contentd",
		Short:         "contentd serves CMS content with render snapshots and client fallbacks",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "contentd.yaml", "path to config file")

	root.AddCommand(
		newServeCmd(&configPath),
		newKeyCmd(&configPath),
		newQueryCmd(&configPath),
		newSnapshotCmd(&configPath),
		newCacheCmd(&configPath),
		newDiagCmd(&configPath),
		newHubCmd(&configPath),
		newContactCmd(&configPath),
		newMCPCmd(&configPath),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
