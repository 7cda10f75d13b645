package orchestrator

import (
	"context"
	"sync/atomic"

	"github.com/ShayCichocki/proposer/internal/tracker"
	"github.com/ShayCichocki/proposer/pkg/models"
)

const cancelReason = "cancelled by caller"

// Handle refers to one accepted request.
type Handle struct {
	tracker *tracker.Tracker
	cancel  context.CancelFunc
	done    chan struct{}
	report  atomic.Pointer[models.Report]
}

// ID returns the request identifier.
func (h *Handle) ID() string {
	return h.tracker.ID()
}

// Snapshot returns the current state of the request without blocking.
func (h *Handle) Snapshot() models.Request {
	return h.tracker.Snapshot()
}

// Subscribe streams job transitions until the request finishes or ctx is done.
func (h *Handle) Subscribe(ctx context.Context) <-chan tracker.Event {
	return h.tracker.Subscribe(ctx)
}

// Done is closed once the request is terminal and all of its work has stopped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the request finishes or ctx is done, and returns the
// latest snapshot. Giving up on the wait does not cancel the request.
func (h *Handle) Wait(ctx context.Context) (models.Request, error) {
	select {
	case <-h.done:
		return h.tracker.Snapshot(), nil
	case <-ctx.Done():
		return h.tracker.Snapshot(), ctx.Err()
	}
}

// Report returns the stored report once the request succeeded or degraded.
func (h *Handle) Report() *models.Report {
	return h.report.Load()
}

// Cancel cancels the request if its integration job has not started.
// In-flight backend calls are aborted and their results discarded.
func (h *Handle) Cancel() error {
	if err := h.tracker.Cancel(cancelReason); err != nil {
		return err
	}
	h.cancel()
	return nil
}

// DroppedEvents returns how many events slow subscribers missed.
func (h *Handle) DroppedEvents() uint64 {
	return h.tracker.DroppedEvents()
}
