package orchestrator

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/ShayCichocki/proposer/internal/specialist"
	"github.com/ShayCichocki/proposer/internal/store"
	"github.com/ShayCichocki/proposer/pkg/models"
)

// RequiredConfig contains the minimal required configuration for an Orchestrator.
// All fields are required and have no defaults.
type RequiredConfig struct {
	// Client generates text for every job.
	Client specialist.Client
	// Store persists finished reports.
	Store store.ReportStore
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

type orchestratorOptions struct {
	workers       int
	policy        specialist.RetryPolicy
	roles         []models.Role
	maxBriefBytes int
	logger        *slog.Logger
	tracer        trace.Tracer
	archive       store.RequestArchive
	newID         func() string
}

// WithWorkers sets the default number of specialist jobs run at once.
func WithWorkers(n int) Option {
	return func(o *orchestratorOptions) { o.workers = n }
}

// WithRetryPolicy sets the per-job timeout and retry policy.
func WithRetryPolicy(p specialist.RetryPolicy) Option {
	return func(o *orchestratorOptions) { o.policy = p }
}

// WithRoles overrides the specialist roles run for every request.
// Unknown roles and the integration role are ignored.
func WithRoles(roles ...models.Role) Option {
	return func(o *orchestratorOptions) { o.roles = roles }
}

// WithMaxBriefBytes sets the largest accepted brief.
func WithMaxBriefBytes(n int) Option {
	return func(o *orchestratorOptions) { o.maxBriefBytes = n }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithTracer sets the tracer used for request, job and save spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *orchestratorOptions) { o.tracer = t }
}

// WithArchive records every terminal request snapshot.
func WithArchive(a store.RequestArchive) Option {
	return func(o *orchestratorOptions) { o.archive = a }
}

// WithIDFunc overrides request ID generation.
func WithIDFunc(fn func() string) Option {
	return func(o *orchestratorOptions) { o.newID = fn }
}
