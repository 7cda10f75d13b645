package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ShayCichocki/proposer/internal/backend"
	"github.com/ShayCichocki/proposer/internal/orchestrator"
	"github.com/ShayCichocki/proposer/internal/specialist"
	"github.com/ShayCichocki/proposer/internal/store"
	"github.com/ShayCichocki/proposer/internal/tracing"
)

// runtime bundles everything a generating command needs.
type runtime struct {
	db      *store.DB
	reports *store.CachedStore
	tracing *tracing.Provider
	orch    *orchestrator.Orchestrator
	// usage is nil for backends that do not report tokens.
	usage *backend.TokenTracker
}

// openStore opens and migrates the configured report database.
func (a *app) openStore() (*store.DB, error) {
	path := a.cfg.Storage.DBPath
	if path == "" {
		path = store.DefaultDBPath()
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

// newRuntime wires the backend, store, tracing and orchestrator from config.
func (a *app) newRuntime(ctx context.Context) (*runtime, error) {
	client, err := backend.New(a.cfg)
	if err != nil {
		return nil, err
	}

	db, err := a.openStore()
	if err != nil {
		return nil, err
	}

	tp, err := tracing.NewProvider(ctx, a.cfg.Tracing)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("setup tracing: %w", err)
	}

	o := a.cfg.Orchestrator
	reports := store.NewCachedStore(db, a.cfg.Storage.CacheTTL)
	orch := orchestrator.New(
		orchestrator.RequiredConfig{Client: client, Store: reports},
		orchestrator.WithWorkers(o.Workers),
		orchestrator.WithRetryPolicy(specialist.RetryPolicy{
			MaxAttempts:  o.MaxAttempts,
			Timeout:      o.JobTimeout,
			InitialDelay: o.RetryInitialDelay,
			MaxDelay:     o.RetryMaxDelay,
		}),
		orchestrator.WithMaxBriefBytes(o.MaxBriefBytes),
		orchestrator.WithArchive(db),
		orchestrator.WithLogger(a.logger),
		orchestrator.WithTracer(tp.Tracer()),
	)

	return &runtime{db: db, reports: reports, tracing: tp, orch: orch, usage: backend.UsageOf(client)}, nil
}

// logUsage records the backend token spend of this process.
func (r *runtime) logUsage(logger *slog.Logger) {
	if r.usage == nil {
		return
	}
	in, out := r.usage.Total()
	logger.Info("token usage",
		"input_tokens", in,
		"output_tokens", out,
		"calls", r.usage.Calls(),
		"cost_usd", r.usage.Cost())
}

// formatUsage renders token spend for the generate summary.
func formatUsage(t *backend.TokenTracker) string {
	in, out := t.Total()
	return fmt.Sprintf("Tokens: in=%d out=%d calls=%d (est. $%.4f)", in, out, t.Calls(), t.Cost())
}

// Close flushes traces and closes the database.
func (r *runtime) Close(ctx context.Context) error {
	return errors.Join(r.tracing.Shutdown(ctx), r.db.Close())
}
