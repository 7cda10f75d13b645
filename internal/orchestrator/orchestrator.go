package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/proposer/internal/prompt"
	"github.com/ShayCichocki/proposer/internal/specialist"
	"github.com/ShayCichocki/proposer/internal/store"
	"github.com/ShayCichocki/proposer/internal/synth"
	"github.com/ShayCichocki/proposer/internal/tracker"
	"github.com/ShayCichocki/proposer/pkg/models"
)

const (
	// DefaultWorkers is the specialist concurrency bound when none is configured.
	DefaultWorkers = 3
	// DefaultMaxBriefBytes is the largest brief accepted when none is configured.
	DefaultMaxBriefBytes = 16 * 1024
)

// Error kinds recorded on jobs that never reached the backend.
const (
	kindNoInputs    = "no_inputs"
	kindInvalidRole = "invalid_role"
)

// ErrInvalidBrief is returned when a brief is rejected before any request exists.
var ErrInvalidBrief = errors.New("invalid brief")

// GenerateOptions are per-request overrides.
type GenerateOptions struct {
	// Workers overrides the concurrency bound. Zero uses the configured default.
	Workers int
}

// Orchestrator runs requests.
type Orchestrator struct {
	retrier       *specialist.Retrier
	store         store.ReportStore
	archive       store.RequestArchive
	roles         []models.Role
	workers       int
	maxBriefBytes int
	logger        *slog.Logger
	tracer        trace.Tracer
	newID         func() string
}

// New creates an Orchestrator.
func New(cfg RequiredConfig, opts ...Option) *Orchestrator {
	o := orchestratorOptions{
		workers:       DefaultWorkers,
		policy:        specialist.DefaultRetryPolicy(),
		roles:         models.SpecialistRoles(),
		maxBriefBytes: DefaultMaxBriefBytes,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.tracer == nil {
		o.tracer = noop.NewTracerProvider().Tracer("")
	}
	if o.newID == nil {
		o.newID = func() string { return uuid.New().String() }
	}
	if o.workers < 1 {
		o.workers = DefaultWorkers
	}
	if o.maxBriefBytes < 1 {
		o.maxBriefBytes = DefaultMaxBriefBytes
	}

	return &Orchestrator{
		retrier:       specialist.NewRetrier(cfg.Client, o.policy, o.logger),
		store:         cfg.Store,
		archive:       o.archive,
		roles:         normalizeRoles(o.roles),
		workers:       o.workers,
		maxBriefBytes: o.maxBriefBytes,
		logger:        o.logger,
		tracer:        o.tracer,
		newID:         o.newID,
	}
}

// normalizeRoles keeps known specialist roles once each, in declaration order.
func normalizeRoles(roles []models.Role) []models.Role {
	seen := make(map[models.Role]bool)
	var out []models.Role
	for _, r := range roles {
		if !r.Valid() || r.IsIntegration() || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order() < out[j].Order() })
	return out
}

// Roles returns the specialist roles run for every request.
func (o *Orchestrator) Roles() []models.Role {
	out := make([]models.Role, len(o.roles))
	copy(out, o.roles)
	return out
}

// Workers returns the default concurrency bound.
func (o *Orchestrator) Workers() int {
	return o.workers
}

// Validate reports whether brief would be accepted.
func (o *Orchestrator) Validate(brief string) error {
	if strings.TrimSpace(brief) == "" {
		return fmt.Errorf("%w: brief is empty", ErrInvalidBrief)
	}
	if len(brief) > o.maxBriefBytes {
		return fmt.Errorf("%w: brief is %d bytes, limit is %d", ErrInvalidBrief, len(brief), o.maxBriefBytes)
	}
	if len(o.roles) == 0 {
		return fmt.Errorf("%w: no specialist roles configured", ErrInvalidBrief)
	}
	return nil
}

// Generate accepts brief and starts the request in the background.
// ctx bounds the whole request: cancelling it before the integration job
// starts cancels the request.
func (o *Orchestrator) Generate(ctx context.Context, brief string, opts GenerateOptions) (*Handle, error) {
	if err := o.Validate(brief); err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers < 1 {
		workers = o.workers
	}

	id := o.newID()
	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		tracker: tracker.New(id, brief, o.roles, workers),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	o.logger.Info("request accepted",
		"request_id", id,
		"workers", workers,
		"roles", len(o.roles),
		"brief_bytes", len(brief))

	go o.run(runCtx, h, brief, workers)
	return h, nil
}

func (o *Orchestrator) run(ctx context.Context, h *Handle, brief string, workers int) {
	defer close(h.done)
	defer h.cancel()

	id := h.ID()
	ctx, span := o.tracer.Start(ctx, "request.generate",
		trace.WithAttributes(
			attribute.String("request.id", id),
			attribute.Int("request.workers", workers),
		))
	defer span.End()

	// Cancel the request if the caller's context goes away first.
	go func() {
		select {
		case <-ctx.Done():
			if err := h.tracker.Cancel(ctx.Err().Error()); err == nil {
				o.logger.Info("request cancelled by context", "request_id", id)
			}
		case <-h.tracker.Done():
		}
	}()

	var g errgroup.Group
	g.SetLimit(workers)
	for _, role := range o.roles {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			o.runSpecialist(ctx, h, role, brief)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		// The watcher may not have run yet; Done must not close on a running request.
		_ = h.tracker.Cancel(err.Error())
	}

	report := o.integrate(ctx, h, brief)
	h.report.Store(report)

	final := h.tracker.Snapshot()
	span.SetAttributes(attribute.String("request.status", string(final.Status)))
	if final.Status == models.RequestFailed {
		span.SetStatus(codes.Error, final.Error)
	}
	o.logger.Info("request finished",
		"request_id", id,
		"status", final.Status,
		"report_id", final.ReportID,
		"failed_roles", final.FailedRoles())

	if o.archive != nil {
		if err := o.archive.SaveRequest(context.WithoutCancel(ctx), final); err != nil {
			o.logger.Warn("failed to archive request", "request_id", id, "error", err)
		}
	}
}

// runSpecialist executes one specialist job. Failures are recorded on the job
// and never returned, so one job cannot stop its siblings.
func (o *Orchestrator) runSpecialist(ctx context.Context, h *Handle, role models.Role, brief string) {
	id := h.ID()

	text, err := prompt.Build(role, brief)
	if err != nil {
		o.transition(h, role, models.JobFailed, tracker.Result{ErrorKind: kindInvalidRole, Err: err})
		return
	}

	if err := h.tracker.Transition(role, models.JobRunning, tracker.Result{}); err != nil {
		// Sealed by a cancel while this job was queued.
		o.logger.Debug("job not started", "request_id", id, "role", role, "error", err)
		return
	}

	ctx, span := o.tracer.Start(ctx, "job."+string(role),
		trace.WithAttributes(attribute.String("request.id", id), attribute.String("job.role", string(role))))
	defer span.End()

	output, err := o.retrier.Do(ctx, text, func(attempt int) {
		_ = h.tracker.RecordAttempt(role, attempt)
		span.SetAttributes(attribute.Int("job.attempts", attempt))
	})
	if err != nil {
		kind := specialist.KindOf(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.Warn("specialist job failed",
			"request_id", id, "role", role, "kind", kind, "error", err)
		o.transition(h, role, models.JobFailed, tracker.Result{ErrorKind: string(kind), Err: err})
		return
	}

	o.logger.Debug("specialist job succeeded", "request_id", id, "role", role, "output_bytes", len(output))
	o.transition(h, role, models.JobSucceeded, tracker.Result{Output: output})
}

// integrate runs the integration job once every specialist is terminal,
// stores the report and resolves the request. It returns the stored report,
// or nil if none was stored.
func (o *Orchestrator) integrate(ctx context.Context, h *Handle, brief string) *models.Report {
	id := h.ID()
	snap := h.tracker.Snapshot()
	if snap.Status.Terminal() {
		return nil
	}

	sections := synth.Sections(snap)
	if len(sections) == 0 {
		o.transition(h, models.RoleIntegration, models.JobFailed, tracker.Result{
			ErrorKind: kindNoInputs,
			Err:       errors.New("no specialist job succeeded"),
		})
		o.finish(h, "", nil)
		return nil
	}

	if err := h.tracker.Transition(models.RoleIntegration, models.JobRunning, tracker.Result{}); err != nil {
		o.logger.Debug("integration not started", "request_id", id, "error", err)
		return nil
	}

	// Past this point the request can no longer be cancelled.
	synthCtx := context.WithoutCancel(ctx)
	jobCtx, span := o.tracer.Start(synthCtx, "job."+string(models.RoleIntegration),
		trace.WithAttributes(attribute.String("request.id", id), attribute.Int("job.sections", len(sections))))
	integrated, err := o.retrier.Do(jobCtx, synth.IntegrationPrompt(brief, sections, snap.FailedRoles()), func(attempt int) {
		_ = h.tracker.RecordAttempt(models.RoleIntegration, attempt)
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.End()
		kind := specialist.KindOf(err)
		o.logger.Warn("integration job failed", "request_id", id, "kind", kind, "error", err)
		o.transition(h, models.RoleIntegration, models.JobFailed, tracker.Result{ErrorKind: string(kind), Err: err})
		o.finish(h, "", nil)
		return nil
	}
	span.End()
	o.transition(h, models.RoleIntegration, models.JobSucceeded, tracker.Result{Output: integrated})

	saveCtx, saveSpan := o.tracer.Start(synthCtx, "report.save",
		trace.WithAttributes(attribute.String("request.id", id)))
	report, err := o.store.Save(saveCtx, id, brief, synth.Assemble(brief, sections, integrated))
	if err != nil {
		saveSpan.SetStatus(codes.Error, err.Error())
		saveSpan.End()
		o.logger.Error("failed to store report", "request_id", id, "error", err)
		o.finish(h, "", err)
		return nil
	}
	saveSpan.SetAttributes(attribute.String("report.id", report.ID), attribute.Int("report.version", report.Version))
	saveSpan.End()

	o.finish(h, report.ID, nil)
	return report
}

func (o *Orchestrator) transition(h *Handle, role models.Role, next models.JobState, res tracker.Result) {
	if err := h.tracker.Transition(role, next, res); err != nil {
		o.logger.Debug("result discarded", "request_id", h.ID(), "role", role, "state", next, "error", err)
	}
}

func (o *Orchestrator) finish(h *Handle, reportID string, storeErr error) {
	if _, err := h.tracker.Finish(reportID, storeErr); err != nil {
		o.logger.Debug("request already resolved", "request_id", h.ID(), "error", err)
	}
}
