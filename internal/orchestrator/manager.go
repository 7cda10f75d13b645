package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ShayCichocki/proposer/internal/store"
	"github.com/ShayCichocki/proposer/pkg/models"
)

// DefaultRetention is how long a finished request stays in memory.
const DefaultRetention = time.Hour

var (
	// ErrUnknownRequest is returned for an ID the manager has never seen.
	ErrUnknownRequest = errors.New("unknown request")
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("manager closed")
)

// Manager tracks concurrent requests by ID.
type Manager struct {
	orch      *Orchestrator
	archive   store.RequestArchive
	retention time.Duration

	// handles tracks in-flight and recently finished requests by ID
	handles map[string]*Handle
	mu      sync.RWMutex
	closed  bool

	// ctx and cancel for manager lifecycle
	ctx    context.Context
	cancel context.CancelFunc

	wg sync.WaitGroup
}

// NewManager creates a Manager around orch. Finished requests are evicted
// after retention; archive, if non-nil, answers status queries for them.
func NewManager(orch *Orchestrator, archive store.RequestArchive, retention time.Duration) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Manager{
		orch:      orch,
		archive:   archive,
		retention: retention,
		handles:   make(map[string]*Handle),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Orchestrator returns the underlying orchestrator.
func (m *Manager) Orchestrator() *Orchestrator {
	return m.orch
}

// Submit starts a request. Its lifetime is bound to the manager, not to the
// caller.
func (m *Manager) Submit(brief string, opts GenerateOptions) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	m.evictLocked(time.Now())

	h, err := m.orch.Generate(m.ctx, brief, opts)
	if err != nil {
		return nil, err
	}
	m.handles[h.ID()] = h

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		<-h.Done()
	}()

	return h, nil
}

// evictLocked drops finished requests older than the retention window.
func (m *Manager) evictLocked(now time.Time) {
	for id, h := range m.handles {
		snap := h.Snapshot()
		if snap.FinishedAt != nil && now.Sub(*snap.FinishedAt) > m.retention {
			delete(m.handles, id)
		}
	}
}

// Get returns the handle of a request still held in memory.
func (m *Manager) Get(id string) (*Handle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.handles[id]
	return h, ok
}

// Status returns the current snapshot of a request, falling back to the
// archive for requests no longer held in memory.
func (m *Manager) Status(ctx context.Context, id string) (models.Request, error) {
	if h, ok := m.Get(id); ok {
		return h.Snapshot(), nil
	}
	if m.archive != nil {
		req, err := m.archive.GetRequest(ctx, id)
		if err == nil {
			return *req, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return models.Request{}, fmt.Errorf("load archived request: %w", err)
		}
	}
	return models.Request{}, fmt.Errorf("%w: %s", ErrUnknownRequest, id)
}

// Cancel cancels a request held in memory.
func (m *Manager) Cancel(id string) error {
	h, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRequest, id)
	}
	return h.Cancel()
}

// List returns snapshots of all requests held in memory, newest first.
func (m *Manager) List() []models.Request {
	m.mu.RLock()
	out := make([]models.Request, 0, len(m.handles))
	for _, h := range m.handles {
		out = append(out, h.Snapshot())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Count returns the number of requests still running.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, h := range m.handles {
		if !h.Snapshot().Status.Terminal() {
			n++
		}
	}
	return n
}

// DroppedEventCount returns the total dropped events across held requests.
func (m *Manager) DroppedEventCount() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total uint64
	for _, h := range m.handles {
		total += h.DroppedEvents()
	}
	return total
}

// Close cancels every running request and waits for all of them to stop.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
	return nil
}
