package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newRequestsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requests",
		Short: "Inspect and prune archived requests",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print the final job table of an archived request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			req, err := db.GetRequest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Request %s (%d workers)\n", req.ID, req.Workers)
			printSummary(cmd.OutOrStdout(), *req)
			return nil
		},
	})

	var olderThan time.Duration
	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete archived requests older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := db.PurgeRequests(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purged %d requests\n", n)
			return nil
		},
	}
	purge.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "age cutoff")
	cmd.AddCommand(purge)

	return cmd
}
