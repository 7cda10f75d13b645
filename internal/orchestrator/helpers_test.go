package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ShayCichocki/proposer/internal/prompt"
	"github.com/ShayCichocki/proposer/internal/specialist"
	"github.com/ShayCichocki/proposer/internal/store"
	"github.com/ShayCichocki/proposer/pkg/models"
)

const testBrief = "Solar powered irrigation drones"

// behavior decides the result of one backend call.
type behavior func(ctx context.Context, role models.Role, attempt int) (string, error)

// fakeBackend is a specialist.Client that recognizes the role behind each prompt.
type fakeBackend struct {
	prompts map[string]models.Role
	behave  behavior

	mu                sync.Mutex
	calls             map[models.Role]int
	integrationPrompt string

	inflight    atomic.Int32
	maxInflight atomic.Int32
}

func newFakeBackend(t *testing.T, brief string, behave behavior) *fakeBackend {
	t.Helper()
	f := &fakeBackend{
		prompts: make(map[string]models.Role),
		behave:  behave,
		calls:   make(map[models.Role]int),
	}
	for _, role := range models.SpecialistRoles() {
		p, err := prompt.Build(role, brief)
		if err != nil {
			t.Fatalf("build prompt for %s: %v", role, err)
		}
		f.prompts[p] = role
	}
	return f
}

func (f *fakeBackend) Invoke(ctx context.Context, p string, _ time.Duration) (string, error) {
	role, ok := f.prompts[p]
	if !ok {
		role = models.RoleIntegration
	}

	f.mu.Lock()
	f.calls[role]++
	attempt := f.calls[role]
	if role == models.RoleIntegration {
		f.integrationPrompt = p
	}
	f.mu.Unlock()

	if role != models.RoleIntegration {
		cur := f.inflight.Add(1)
		defer f.inflight.Add(-1)
		for {
			prev := f.maxInflight.Load()
			if cur <= prev || f.maxInflight.CompareAndSwap(prev, cur) {
				break
			}
		}
	}

	if f.behave != nil {
		return f.behave(ctx, role, attempt)
	}
	return defaultOutput(role), nil
}

func (f *fakeBackend) callCount(role models.Role) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[role]
}

func (f *fakeBackend) lastIntegrationPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.integrationPrompt
}

func defaultOutput(role models.Role) string {
	return fmt.Sprintf("draft from %s", role)
}

// failRoles fails the given roles permanently and succeeds everything else.
func failRoles(roles ...models.Role) behavior {
	failed := make(map[models.Role]bool)
	for _, r := range roles {
		failed[r] = true
	}
	return func(ctx context.Context, role models.Role, attempt int) (string, error) {
		if failed[role] {
			return "", specialist.Errorf(specialist.KindBackendRejected, "rejected %s", role)
		}
		return defaultOutput(role), nil
	}
}

// memStore is an in-memory store.ReportStore.
type memStore struct {
	mu      sync.Mutex
	reports []models.Report
	err     error
}

func (s *memStore) Save(ctx context.Context, requestID, brief, body string) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrStorageFailure, s.err)
	}
	version := 1
	for _, r := range s.reports {
		if r.Lineage == models.LineageKey(brief) {
			version++
		}
	}
	r := models.Report{
		ID:        fmt.Sprintf("rep-%d", len(s.reports)+1),
		Seq:       int64(len(s.reports) + 1),
		RequestID: requestID,
		Lineage:   models.LineageKey(brief),
		Brief:     brief,
		Body:      body,
		Version:   version,
		CreatedAt: time.Now(),
	}
	s.reports = append(s.reports, r)
	return &r, nil
}

func (s *memStore) List(ctx context.Context, opts store.ListOptions) ([]models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Report, 0, len(s.reports))
	for i := len(s.reports) - 1; i >= 0; i-- {
		out = append(out, s.reports[i])
	}
	return out, nil
}

func (s *memStore) Get(ctx context.Context, id string) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reports {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reports)
}

func testPolicy() specialist.RetryPolicy {
	return specialist.RetryPolicy{
		MaxAttempts:  3,
		Timeout:      2 * time.Second,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
	}
}

func newTestOrchestrator(client specialist.Client, reports store.ReportStore, opts ...Option) *Orchestrator {
	opts = append([]Option{WithRetryPolicy(testPolicy()), WithWorkers(3)}, opts...)
	return New(RequiredConfig{Client: client, Store: reports}, opts...)
}

// generateAndWait runs brief to completion.
func generateAndWait(t *testing.T, o *Orchestrator, brief string, opts GenerateOptions) (*Handle, models.Request) {
	t.Helper()
	h, err := o.Generate(context.Background(), brief, opts)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := h.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	return h, req
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func countState(req models.Request, state models.JobState) int {
	n := 0
	for _, j := range req.Specialists {
		if j.State == state {
			n++
		}
	}
	return n
}

func sectionIndex(body, label string) int {
	return strings.Index(body, "## "+label+"\n")
}
