package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ShayCichocki/proposer/pkg/models"
)

func TestSave_AssignsLineageVersions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	tests := []struct {
		brief       string
		wantVersion int
	}{
		{"AI tutor for primary schools", 1},
		{"AI tutor for primary schools", 2},
		{"  ai TUTOR, for primary schools!", 3},
		{"Solar powered drones", 1},
		{"AI tutor for primary schools", 4},
	}

	for i, tt := range tests {
		r, err := db.Save(ctx, fmt.Sprintf("req-%d", i), tt.brief, "body")
		if err != nil {
			t.Fatalf("Save(%q) error = %v", tt.brief, err)
		}
		if r.Version != tt.wantVersion {
			t.Errorf("Save(%q) version = %d, want %d", tt.brief, r.Version, tt.wantVersion)
		}
		if r.ID == "" || r.Seq == 0 {
			t.Errorf("Save(%q) left ID/Seq unset: %+v", tt.brief, r)
		}
	}
}

func TestSave_ConcurrentVersionsUnique(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	const n = 12
	var wg sync.WaitGroup
	versions := make([]int, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := db.Save(ctx, fmt.Sprintf("req-%d", i), "Concurrent brief", "body")
			if err != nil {
				errs[i] = err
				return
			}
			versions[i] = r.Version
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("save %d failed: %v", i, err)
		}
	}
	sort.Ints(versions)
	for i, v := range versions {
		if v != i+1 {
			t.Fatalf("versions = %v, want 1..%d", versions, n)
		}
	}
}

func TestSave_StorageFailure(t *testing.T) {
	db := setupTestDB(t)
	db.Close()

	_, err := db.Save(context.Background(), "req-1", "brief", "body")
	if !errors.Is(err, ErrStorageFailure) {
		t.Fatalf("Save on closed db error = %v, want ErrStorageFailure", err)
	}
}

func TestList_NewestFirstAndRestartable(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		r, err := db.Save(ctx, "req", fmt.Sprintf("brief %d", i), "body")
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		ids = append(ids, r.ID)
	}

	page1, err := db.List(ctx, ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page1) != 2 || page1[0].ID != ids[4] || page1[1].ID != ids[3] {
		t.Fatalf("page1 = %+v, want newest two", page1)
	}
	if page1[0].Body != "" {
		t.Error("List should not load bodies")
	}

	page2, err := db.List(ctx, ListOptions{Limit: 10, BeforeSeq: page1[1].Seq})
	if err != nil {
		t.Fatalf("List page2 failed: %v", err)
	}
	if len(page2) != 3 || page2[0].ID != ids[2] || page2[2].ID != ids[0] {
		t.Fatalf("page2 = %+v, want remaining three newest first", page2)
	}

	page3, err := db.List(ctx, ListOptions{BeforeSeq: page2[2].Seq})
	if err != nil {
		t.Fatalf("List page3 failed: %v", err)
	}
	if len(page3) != 0 {
		t.Errorf("page3 = %+v, want empty", page3)
	}
}

func TestGet(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	saved, err := db.Save(ctx, "req-1", "Smart grid sensors", "# Title\n\nbody")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := db.Get(ctx, saved.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Body != saved.Body || got.RequestID != "req-1" || got.Version != 1 {
		t.Errorf("Get() = %+v, want %+v", got, saved)
	}
	if !got.CreatedAt.Equal(saved.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, saved.CreatedAt)
	}

	if _, err := db.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestVersions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := db.Save(ctx, "req", "Same idea", "body"); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	if _, err := db.Save(ctx, "req", "Other idea", "body"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := db.Versions(ctx, "same IDEA")
	if err != nil {
		t.Fatalf("Versions failed: %v", err)
	}
	if len(got) != 3 || got[0].Version != 1 || got[2].Version != 3 {
		t.Errorf("Versions() = %+v", got)
	}
}

func TestRequestArchive(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	finished := time.Now().UTC()
	req := models.Request{
		ID:     "req-1",
		Brief:  "brief",
		Status: models.RequestDegraded,
		Specialists: []models.Job{
			{Role: models.RoleBackground, State: models.JobSucceeded, Output: "text"},
			{Role: models.RoleMarket, State: models.JobFailed, ErrorKind: "timeout"},
		},
		Integration: models.Job{Role: models.RoleIntegration, State: models.JobSucceeded},
		ReportID:    "rep-1",
		FinishedAt:  &finished,
	}
	if err := db.SaveRequest(ctx, req); err != nil {
		t.Fatalf("SaveRequest failed: %v", err)
	}

	got, err := db.GetRequest(ctx, "req-1")
	if err != nil {
		t.Fatalf("GetRequest failed: %v", err)
	}
	if got.Status != models.RequestDegraded || got.ReportID != "rep-1" || len(got.Specialists) != 2 {
		t.Errorf("GetRequest() = %+v", got)
	}

	running := models.Request{ID: "req-2", Status: models.RequestRunning}
	if err := db.SaveRequest(ctx, running); err == nil {
		t.Error("expected error archiving a running request")
	}
	if _, err := db.GetRequest(ctx, "req-2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRequest(req-2) error = %v, want ErrNotFound", err)
	}

	n, err := db.PurgeRequests(ctx, -time.Hour)
	if err != nil {
		t.Fatalf("PurgeRequests failed: %v", err)
	}
	if n != 1 {
		t.Errorf("PurgeRequests() = %d, want 1", n)
	}
}

func TestExport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	r := &models.Report{Brief: "AI tutor for primary schools", Body: "# body", Version: 2}

	path, err := Export(r, dir)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if filepath.Base(path) != "AI_tutor_for_primary-v2.md" {
		t.Errorf("exported name = %q", filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if string(data) != "# body" {
		t.Errorf("exported body = %q", data)
	}
}
