package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/eyeonidea/contentd/pkg/contact"
	"github.com/spf13/cobra"
)

func newContactCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contact",
		Short: "Inspect contact form deliveries",
	}

	var (
		site  string
		limit int
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List delivered submissions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			l, err := contact.NewLedger(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = l.Close() }()

			subs, err := l.List(context.Background(), site, limit)
			if err != nil {
				return err
			}
			if len(subs) == 0 {
				fmt.Println("No submissions found.")
				return nil
			}
			w := newTable(os.Stdout)
			fmt.Fprintln(w, "TIME\tSITE\tSENDER\tSUBJECT")
			for _, s := range subs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.CreatedAt.Format(timeLayout), s.Site, s.Sender, s.Subject)
			}
			return w.Flush()
		},
	}
	listCmd.Flags().StringVar(&site, "site", "", "only list submissions for this site")
	listCmd.Flags().IntVar(&limit, "limit", 50, "max submissions to return")

	statusCmd := &cobra.Command{
		Use:   "status <email>",
		Short: "Show a sender's usage against the throttle policies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if len(cfg.Contact.Throttle) == 0 {
				fmt.Println("No throttle policies configured.")
				return nil
			}
			l, err := contact.NewLedger(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = l.Close() }()

			statuses, err := contact.NewThrottle(cfg.Contact.Throttle, l).Status(context.Background(), strings.ToLower(args[0]))
			if err != nil {
				return err
			}
			w := newTable(os.Stdout)
			fmt.Fprintln(w, "PERIOD\tMAX\tUSED\tREMAINING")
			for _, s := range statuses {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", s.Policy.Period, s.Policy.MaxSubmissions, s.Used, s.Remaining)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(listCmd, statusCmd)
	return cmd
}
