package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/proposer/internal/orchestrator"
	"github.com/ShayCichocki/proposer/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve starts the HTTP API used by dashboards and other clients.

Requests run in the background; poll GET /requests/{id} or follow
GET /requests/{id}/events over a websocket.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := a.newRuntime(ctx)
			if err != nil {
				return err
			}
			mgr := orchestrator.NewManager(rt.orch, rt.db, orchestrator.DefaultRetention)

			defer func() {
				// Running requests are cancelled; finished ones stay archived.
				mgr.Close()
				rt.logUsage(a.logger)
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := rt.Close(shutdownCtx); err != nil {
					a.logger.Warn("shutdown", "error", err)
				}
			}()

			return server.New(mgr, rt.reports, a.logger).Run(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}
