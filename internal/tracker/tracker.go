// Package tracker owns the lifecycle state of every job in one request.
//
// The Tracker is the single source of truth a dashboard polls or subscribes
// to. State lives in an immutable snapshot behind an atomic pointer: writers
// serialize on a mutex, build a modified copy and swap it in; readers load the
// pointer and never take a lock. Every change is also published as an Event.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ShayCichocki/proposer/pkg/models"
)

var (
	// ErrUnknownJob is returned for a role that has no job in the request.
	ErrUnknownJob = errors.New("unknown job")
	// ErrInvalidTransition is returned when the state machine forbids a move.
	ErrInvalidTransition = errors.New("invalid job transition")
	// ErrNotReady is returned when the integration job is started before every
	// specialist job is terminal.
	ErrNotReady = errors.New("integration job gated on specialist jobs")
	// ErrSealed is returned for any mutation after the request is terminal.
	ErrSealed = errors.New("request already terminal")
	// ErrNotCancellable is returned when cancel arrives after synthesis started.
	ErrNotCancellable = errors.New("request can no longer be cancelled")
)

// Result carries the payload of a terminal transition.
type Result struct {
	// Output is the generated text for a success.
	Output string
	// ErrorKind classifies a failure.
	ErrorKind string
	// Err is the failure detail.
	Err error
}

// Tracker tracks one request and its jobs.
type Tracker struct {
	snap   atomic.Pointer[models.Request]
	mu     sync.Mutex
	broker *broker
	done   chan struct{}
	now    func() time.Time
}

// New creates a tracker with one queued job per specialist role plus a queued
// integration job.
func New(id, brief string, roles []models.Role, workers int) *Tracker {
	t := &Tracker{
		broker: newBroker(defaultBufferSize),
		done:   make(chan struct{}),
		now:    time.Now,
	}

	created := t.now()
	req := &models.Request{
		ID:          id,
		Brief:       brief,
		Status:      models.RequestRunning,
		Specialists: make([]models.Job, 0, len(roles)),
		Integration: models.Job{
			Role:     models.RoleIntegration,
			Brief:    brief,
			State:    models.JobQueued,
			QueuedAt: created,
		},
		Workers:   workers,
		CreatedAt: created,
	}
	for _, role := range roles {
		req.Specialists = append(req.Specialists, models.Job{
			Role:     role,
			Brief:    brief,
			State:    models.JobQueued,
			QueuedAt: created,
		})
	}
	t.snap.Store(req)
	return t
}

// ID returns the request identifier.
func (t *Tracker) ID() string {
	return t.snap.Load().ID
}

// Snapshot returns the current state of the request.
// It never blocks and the returned value is never modified afterwards.
func (t *Tracker) Snapshot() models.Request {
	return *t.snap.Load()
}

// Subscribe returns a channel of events that closes when ctx is done or the
// request reaches a terminal status.
func (t *Tracker) Subscribe(ctx context.Context) <-chan Event {
	return t.broker.subscribe(ctx)
}

// Done is closed when the request reaches a terminal status.
func (t *Tracker) Done() <-chan struct{} {
	return t.done
}

// DroppedEvents returns how many events were dropped for slow subscribers.
func (t *Tracker) DroppedEvents() uint64 {
	return t.broker.dropped.Load()
}

// Transition moves the job for role to next. It is the only way job state
// changes and is safe for concurrent use by multiple job goroutines.
func (t *Tracker) Transition(role models.Role, next models.JobState, res Result) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur := t.snap.Load()
	if cur.Status.Terminal() {
		return ErrSealed
	}

	req := clone(cur)
	job, err := jobFor(req, role)
	if err != nil {
		return err
	}
	if !job.State.CanTransition(next) {
		return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, role, job.State, next)
	}
	if role.IsIntegration() && next == models.JobRunning && !req.AllSpecialistsTerminal() {
		return ErrNotReady
	}

	from := job.State
	now := t.now()
	job.State = next
	switch next {
	case models.JobRunning:
		job.StartedAt = &now
	case models.JobSucceeded:
		job.Output = res.Output
		job.EndedAt = &now
	case models.JobFailed:
		job.ErrorKind = res.ErrorKind
		if res.Err != nil {
			job.Error = res.Err.Error()
		}
		job.EndedAt = &now
	}

	t.snap.Store(req)
	t.broker.publish(Event{
		Type:      EventJobTransition,
		RequestID: req.ID,
		Role:      role,
		From:      from,
		To:        next,
		Attempt:   job.Attempts,
		ErrorKind: job.ErrorKind,
		Status:    req.Status,
		Timestamp: now,
	})
	return nil
}

// RecordAttempt stores the attempt number of a running job.
func (t *Tracker) RecordAttempt(role models.Role, attempt int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur := t.snap.Load()
	if cur.Status.Terminal() {
		return ErrSealed
	}

	req := clone(cur)
	job, err := jobFor(req, role)
	if err != nil {
		return err
	}
	if job.State != models.JobRunning {
		return fmt.Errorf("%w: attempt recorded for %s job %s", ErrInvalidTransition, job.State, role)
	}
	job.Attempts = attempt

	now := t.now()
	t.snap.Store(req)
	t.broker.publish(Event{
		Type:      EventJobAttempt,
		RequestID: req.ID,
		Role:      role,
		From:      job.State,
		To:        job.State,
		Attempt:   attempt,
		Status:    req.Status,
		Timestamp: now,
	})
	return nil
}

// Finish resolves the request once the integration job is terminal.
// reportID is the stored report; storeErr is a failure to persist it.
// The derived status is returned and the tracker is sealed.
func (t *Tracker) Finish(reportID string, storeErr error) (models.RequestStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur := t.snap.Load()
	if cur.Status.Terminal() {
		return cur.Status, ErrSealed
	}
	if !cur.Integration.State.Terminal() {
		return cur.Status, fmt.Errorf("%w: integration job is %s", ErrInvalidTransition, cur.Integration.State)
	}

	req := clone(cur)
	req.Status = DeriveStatus(req, storeErr == nil && reportID != "")
	switch {
	case storeErr != nil:
		req.Error = storeErr.Error()
	case req.Status == models.RequestFailed && req.Integration.Error != "":
		req.Error = req.Integration.Error
	}
	if req.Status != models.RequestFailed {
		req.ReportID = reportID
	}
	t.sealLocked(req)
	return req.Status, nil
}

// Cancel moves the request to cancelled if the integration job has not started.
// Every job that is not yet terminal is failed with kind "cancelled" in the
// same step, after which no further transitions are accepted.
func (t *Tracker) Cancel(reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur := t.snap.Load()
	if cur.Status.Terminal() {
		return ErrSealed
	}
	if cur.Integration.State != models.JobQueued {
		return ErrNotCancellable
	}

	req := clone(cur)
	now := t.now()
	for i := range req.Specialists {
		job := &req.Specialists[i]
		if job.State.Terminal() {
			continue
		}
		cancelJob(job, reason, now)
	}
	cancelJob(&req.Integration, reason, now)

	req.Status = models.RequestCancelled
	req.Error = reason
	t.sealLocked(req)
	return nil
}

func cancelJob(job *models.Job, reason string, now time.Time) {
	job.State = models.JobFailed
	job.ErrorKind = "cancelled"
	job.Error = reason
	job.EndedAt = &now
}

// sealLocked stores the terminal snapshot, publishes the final event and
// closes subscriptions. Caller must hold t.mu.
func (t *Tracker) sealLocked(req *models.Request) {
	now := t.now()
	req.FinishedAt = &now
	t.snap.Store(req)
	t.broker.publish(Event{
		Type:      EventRequestDone,
		RequestID: req.ID,
		Status:    req.Status,
		Timestamp: now,
	})
	t.broker.close()
	close(t.done)
}

// DeriveStatus computes the overall status of a request whose integration job
// is terminal. stored reports whether the report was durably recorded.
func DeriveStatus(req *models.Request, stored bool) models.RequestStatus {
	if req.Integration.State != models.JobSucceeded || !stored {
		return models.RequestFailed
	}
	if len(req.FailedRoles()) > 0 {
		return models.RequestDegraded
	}
	return models.RequestSucceeded
}

func jobFor(req *models.Request, role models.Role) (*models.Job, error) {
	if role.IsIntegration() {
		return &req.Integration, nil
	}
	for i := range req.Specialists {
		if req.Specialists[i].Role == role {
			return &req.Specialists[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownJob, role)
}

// clone copies req deeply enough that mutating the copy never touches a
// published snapshot.
func clone(req *models.Request) *models.Request {
	c := *req
	c.Specialists = make([]models.Job, len(req.Specialists))
	copy(c.Specialists, req.Specialists)
	return &c
}
