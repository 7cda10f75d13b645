package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/proposer/internal/orchestrator"
	"github.com/ShayCichocki/proposer/internal/store"
	"github.com/ShayCichocki/proposer/internal/tracker"
	"github.com/ShayCichocki/proposer/pkg/models"
)

type generateFlags struct {
	workers int
	file    string
	export  bool
	quiet   bool
}

func newGenerateCmd(a *app) *cobra.Command {
	var f generateFlags

	cmd := &cobra.Command{
		Use:   "generate [brief]",
		Short: "Generate a proposal and wait for it",
		Long: `Generate runs every specialist for the brief, prints job transitions as
they happen, and stores the resulting report.

The brief is taken from the arguments, from --file, or from stdin when the
only argument is "-". Press Ctrl-C before the integration step to cancel.`,
		Example: `  proposer generate "AI tutor for primary school maths"
  proposer generate --file brief.txt --workers 6 --export`,
		RunE: func(cmd *cobra.Command, args []string) error {
			brief, err := readBrief(args, f.file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return a.runGenerate(cmd, brief, f)
		},
	}

	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "concurrent specialist jobs (default from config)")
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "read the brief from a file")
	cmd.Flags().BoolVar(&f.export, "export", false, "write the report to the export directory")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "only print the report id")

	return cmd
}

// readBrief resolves the brief from arguments, a file, or stdin.
func readBrief(args []string, file string, stdin io.Reader) (string, error) {
	switch {
	case file != "" && len(args) > 0:
		return "", errors.New("pass the brief as arguments or --file, not both")
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read brief: %w", err)
		}
		return string(b), nil
	case len(args) == 1 && args[0] == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read brief from stdin: %w", err)
		}
		return string(b), nil
	case len(args) == 0:
		return "", errors.New("a brief is required")
	default:
		return strings.Join(args, " "), nil
	}
}

func (a *app) runGenerate(cmd *cobra.Command, brief string, f generateFlags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := a.newRuntime(ctx)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rt.Close(shutdownCtx); err != nil {
			a.logger.Warn("shutdown", "error", err)
		}
	}()

	h, err := rt.orch.Generate(ctx, brief, orchestrator.GenerateOptions{Workers: f.workers})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printed := make(chan struct{})
	if f.quiet {
		close(printed)
	} else {
		fmt.Fprintf(out, "Request %s (%d workers)\n", h.ID(), h.Snapshot().Workers)
		go func() {
			defer close(printed)
			// The stream closes once the request is terminal.
			for ev := range h.Subscribe(ctx) {
				printEvent(out, ev)
			}
		}()
	}

	req, err := h.Wait(context.Background())
	if err != nil {
		return err
	}
	<-printed

	if f.quiet {
		if req.ReportID != "" {
			fmt.Fprintln(out, req.ReportID)
		}
	} else {
		printSummary(out, req)
		if rt.usage != nil {
			fmt.Fprintln(out, formatUsage(rt.usage))
		}
	}
	rt.logUsage(a.logger)

	if f.export && req.ReportID != "" {
		report, err := rt.reports.Get(context.Background(), req.ReportID)
		if err != nil {
			return fmt.Errorf("load report for export: %w", err)
		}
		path, err := store.Export(report, a.cfg.Storage.ExportDir)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Exported %s\n", path)
	}

	switch req.Status {
	case models.RequestSucceeded, models.RequestDegraded:
		return nil
	default:
		return fmt.Errorf("request %s: %s", req.Status, req.Error)
	}
}

func stateColor(s models.JobState) *color.Color {
	switch s {
	case models.JobRunning:
		return color.New(color.FgCyan)
	case models.JobSucceeded:
		return color.New(color.FgGreen)
	case models.JobFailed:
		return color.New(color.FgRed)
	default:
		return color.New(color.Faint)
	}
}

func statusColor(s models.RequestStatus) *color.Color {
	switch s {
	case models.RequestSucceeded:
		return color.New(color.FgGreen, color.Bold)
	case models.RequestDegraded:
		return color.New(color.FgYellow, color.Bold)
	case models.RequestRunning:
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}

// printEvent writes one tracker event as a status line.
func printEvent(w io.Writer, ev tracker.Event) {
	ts := ev.Timestamp.Format("15:04:05")
	switch ev.Type {
	case tracker.EventJobTransition:
		line := fmt.Sprintf("%s  %-34s %s", ts, ev.Role.Label(), stateColor(ev.To).Sprint(ev.To))
		if ev.ErrorKind != "" {
			line += " (" + ev.ErrorKind + ")"
		}
		fmt.Fprintln(w, line)
	case tracker.EventJobAttempt:
		if ev.Attempt > 1 {
			fmt.Fprintf(w, "%s  %-34s %s\n", ts, ev.Role.Label(),
				color.YellowString("retry %d", ev.Attempt))
		}
	case tracker.EventRequestDone:
		fmt.Fprintf(w, "%s  request %s\n", ts, statusColor(ev.Status).Sprint(ev.Status))
	}
}

// printSummary writes the final per-job table.
func printSummary(w io.Writer, req models.Request) {
	fmt.Fprintln(w)
	jobs := append(append([]models.Job{}, req.Specialists...), req.Integration)
	for _, j := range jobs {
		detail := ""
		switch j.State {
		case models.JobSucceeded:
			detail = fmt.Sprintf("%d bytes", len(j.Output))
		case models.JobFailed:
			detail = j.ErrorKind
		}
		fmt.Fprintf(w, "  %-34s %-10s attempts=%d %s\n",
			j.Role.Label(), stateColor(j.State).Sprint(j.State), j.Attempts, detail)
	}
	fmt.Fprintf(w, "\nStatus: %s\n", statusColor(req.Status).Sprint(req.Status))
	if req.ReportID != "" {
		fmt.Fprintf(w, "Report: %s\n", req.ReportID)
	}
	if req.Error != "" {
		fmt.Fprintf(w, "Error:  %s\n", req.Error)
	}
}
