package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newHubCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hub",
		Short: "Manage client hub sessions",
	}

	var site string
	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "List active sessions for a site",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			s, err := siteOrDefault(cfg, site)
			if err != nil {
				return err
			}
			h, closeHub, err := openHub(cfg)
			if err != nil {
				return err
			}
			defer closeHub()

			sessions, err := h.Sessions(context.Background(), s.Name)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Println("No active sessions.")
				return nil
			}
			w := newTable(os.Stdout)
			fmt.Fprintln(w, "ID\tSITE\tCREATED\tLAST SEEN\tEXPIRES")
			for _, sess := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", sess.ID, sess.Site,
					sess.CreatedAt.Format(timeLayout), sess.LastSeen.Format(timeLayout), sess.ExpiresAt.Format(timeLayout))
			}
			return w.Flush()
		},
	}
	sessionsCmd.Flags().StringVar(&site, "site", "", "site name (default: first configured site)")

	revokeCmd := &cobra.Command{
		Use:   "revoke <session-id>",
		Short: "End a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			h, closeHub, err := openHub(cfg)
			if err != nil {
				return err
			}
			defer closeHub()

			if err := h.Revoke(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Session %s revoked.\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(sessionsCmd, revokeCmd)
	return cmd
}
