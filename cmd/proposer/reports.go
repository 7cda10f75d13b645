package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/proposer/internal/store"
)

func newReportsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reports",
		Aliases: []string{"report"},
		Short:   "List, show and export stored reports",
	}
	cmd.AddCommand(newReportsListCmd(a))
	cmd.AddCommand(newReportsShowCmd(a))
	cmd.AddCommand(newReportsExportCmd(a))
	cmd.AddCommand(newReportsVersionsCmd(a))
	return cmd
}

func newReportsListCmd(a *app) *cobra.Command {
	var opts store.ListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reports, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			reports, err := db.List(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if len(reports) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No reports yet. Run 'proposer generate <brief>' to create one.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "SEQ\tID\tVERSION\tCREATED\tTITLE")
			for _, r := range reports {
				fmt.Fprintf(tw, "%d\t%s\tv%d\t%s\t%s\n",
					r.Seq, r.ID, r.Version, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Title())
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if len(reports) == opts.Limit || (opts.Limit == 0 && len(reports) == store.DefaultListLimit) {
				fmt.Fprintf(cmd.OutOrStdout(), "\nMore: proposer reports list --before %d\n", reports[len(reports)-1].Seq)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, fmt.Sprintf("maximum reports (default %d)", store.DefaultListLimit))
	cmd.Flags().Int64Var(&opts.BeforeSeq, "before", 0, "only reports with a sequence below this cursor")
	return cmd
}

func newReportsShowCmd(a *app) *cobra.Command {
	var raw bool
	var width int

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			report, err := db.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if raw {
				_, err := fmt.Fprint(cmd.OutOrStdout(), report.Body)
				return err
			}

			out, err := renderMarkdown(report.Body, width)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "print markdown without terminal styling")
	cmd.Flags().IntVar(&width, "width", 100, "word wrap width")
	return cmd
}

// renderMarkdown styles md for the terminal.
func renderMarkdown(md string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("create markdown renderer: %w", err)
	}
	return r.Render(md)
}

func newReportsExportCmd(a *app) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Write a report to <Title>-v<version>.md",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			report, err := db.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if dir == "" {
				dir = a.cfg.Storage.ExportDir
			}
			path, err := store.Export(report, dir)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "output directory (default from config)")
	return cmd
}

func newReportsVersionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "versions <brief>",
		Short: "List every version generated for a brief",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			reports, err := db.Versions(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			for _, r := range reports {
				fmt.Fprintf(cmd.OutOrStdout(), "v%d\t%s\t%s\n", r.Version, r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}
