package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ShayCichocki/proposer/internal/backend"
	"github.com/ShayCichocki/proposer/internal/orchestrator"
	"github.com/ShayCichocki/proposer/internal/specialist"
	"github.com/ShayCichocki/proposer/internal/store"
	"github.com/ShayCichocki/proposer/internal/tracker"
	"github.com/ShayCichocki/proposer/pkg/models"
)

const testBrief = "Low cost water quality sensors for rural wells"

func testPolicy() specialist.RetryPolicy {
	return specialist.RetryPolicy{MaxAttempts: 1, Timeout: 5 * time.Second, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

// setupServer builds a server backed by a real SQLite store.
func setupServer(t *testing.T, client specialist.Client) (*httptest.Server, *orchestrator.Manager) {
	t.Helper()

	db, err := store.Open(t.TempDir() + "/reports.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate store: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	orch := orchestrator.New(
		orchestrator.RequiredConfig{Client: client, Store: db},
		orchestrator.WithRetryPolicy(testPolicy()),
		orchestrator.WithArchive(db),
		orchestrator.WithLogger(logger),
	)
	mgr := orchestrator.NewManager(orch, db, time.Hour)
	t.Cleanup(func() { mgr.Close() })

	srv := httptest.NewServer(New(mgr, db, logger).Handler())
	t.Cleanup(srv.Close)
	return srv, mgr
}

// gatedClient blocks every call until release is closed.
func gatedClient(release <-chan struct{}) specialist.Client {
	echo := backend.NewEcho()
	return specialist.ClientFunc(func(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
		select {
		case <-release:
			return echo.Invoke(ctx, prompt, timeout)
		case <-ctx.Done():
			return "", specialist.Wrap(specialist.KindCancelled, ctx.Err())
		}
	})
}

func postGenerate(t *testing.T, srv *httptest.Server, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(srv.URL+"/generate", "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST /generate: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, r io.Reader) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestGenerate_Wait(t *testing.T) {
	srv, _ := setupServer(t, backend.NewEcho())

	resp := postGenerate(t, srv, generateRequest{Brief: testBrief, Wait: true})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	view := decode[requestView](t, resp.Body)
	if view.Status != models.RequestSucceeded {
		t.Fatalf("request status = %s, want succeeded", view.Status)
	}
	if len(view.Specialists) != len(models.SpecialistRoles()) {
		t.Errorf("got %d specialist views", len(view.Specialists))
	}
	for _, j := range view.Specialists {
		if j.OutputBytes == 0 || j.Preview == "" {
			t.Errorf("%s: missing output summary", j.Role)
		}
	}
	if view.ReportID == "" {
		t.Fatal("report id missing")
	}

	rep, err := http.Get(srv.URL + "/reports/" + view.ReportID)
	if err != nil {
		t.Fatalf("GET report: %v", err)
	}
	defer rep.Body.Close()
	body, _ := io.ReadAll(rep.Body)
	if rep.StatusCode != http.StatusOK {
		t.Fatalf("report status = %d", rep.StatusCode)
	}
	if !strings.Contains(string(body), "## Integrated Proposal") {
		t.Errorf("report body missing integrated section:\n%s", body)
	}
	if rep.Header.Get("X-Report-Version") != "1" {
		t.Errorf("X-Report-Version = %q", rep.Header.Get("X-Report-Version"))
	}
}

func TestGenerate_Async(t *testing.T) {
	srv, mgr := setupServer(t, backend.NewEcho())

	resp := postGenerate(t, srv, generateRequest{Brief: testBrief, Workers: 2})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	got := decode[generateResponse](t, resp.Body)
	if got.ID == "" {
		t.Fatal("missing request id")
	}
	if loc := resp.Header.Get("Location"); loc != "/requests/"+got.ID {
		t.Errorf("Location = %q", loc)
	}

	h, ok := mgr.Get(got.ID)
	if !ok {
		t.Fatal("request not registered")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := h.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	st, err := http.Get(srv.URL + "/requests/" + got.ID)
	if err != nil {
		t.Fatalf("GET request: %v", err)
	}
	defer st.Body.Close()
	view := decode[requestView](t, st.Body)
	if view.Status != models.RequestSucceeded || view.Workers != 2 {
		t.Errorf("view = %+v", view)
	}
}

func TestGenerate_RejectsBadInput(t *testing.T) {
	srv, mgr := setupServer(t, backend.NewEcho())

	tests := []struct {
		name string
		body string
	}{
		{"empty brief", `{"brief": ""}`},
		{"whitespace brief", `{"brief": "   \n\t"}`},
		{"oversized brief", `{"brief": "` + strings.Repeat("a", orchestrator.DefaultMaxBriefBytes+1) + `"}`},
		{"not json", `brief=hello`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/generate", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
			if e := decode[errorResponse](t, resp.Body); e.Error == "" {
				t.Error("error message missing")
			}
		})
	}

	if n := len(mgr.List()); n != 0 {
		t.Errorf("rejected briefs created %d requests", n)
	}
}

func TestRequests_NotFound(t *testing.T) {
	srv, _ := setupServer(t, backend.NewEcho())

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		req, _ := http.NewRequest(method, srv.URL+"/requests/missing", nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s: %v", method, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", method, resp.StatusCode)
		}
	}

	resp, err := http.Get(srv.URL + "/reports/missing")
	if err != nil {
		t.Fatalf("GET report: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("report status = %d, want 404", resp.StatusCode)
	}
}

func TestCancel(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	srv, mgr := setupServer(t, gatedClient(release))

	resp := postGenerate(t, srv, generateRequest{Brief: testBrief})
	id := decode[generateResponse](t, resp.Body).ID

	del := func() *http.Response {
		req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/requests/"+id, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("DELETE: %v", err)
		}
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	first := del()
	if first.StatusCode != http.StatusOK {
		t.Fatalf("cancel status = %d, want 200", first.StatusCode)
	}
	if view := decode[requestView](t, first.Body); view.Status != models.RequestCancelled {
		t.Errorf("status after cancel = %s", view.Status)
	}

	if second := del(); second.StatusCode != http.StatusConflict {
		t.Errorf("second cancel status = %d, want 409", second.StatusCode)
	}

	h, _ := mgr.Get(id)
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled request did not stop")
	}
}

func TestListReports(t *testing.T) {
	srv, _ := setupServer(t, backend.NewEcho())

	for range 3 {
		resp := postGenerate(t, srv, generateRequest{Brief: testBrief, Wait: true})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("generate status = %d", resp.StatusCode)
		}
	}

	get := func(query string) (int, []models.Report) {
		resp, err := http.Get(srv.URL + "/reports" + query)
		if err != nil {
			t.Fatalf("GET reports: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return resp.StatusCode, nil
		}
		return resp.StatusCode, decode[[]models.Report](t, resp.Body)
	}

	_, all := get("")
	if len(all) != 3 {
		t.Fatalf("got %d reports, want 3", len(all))
	}
	if all[0].Version != 3 || all[2].Version != 1 {
		t.Errorf("versions = %d..%d, want newest first", all[0].Version, all[2].Version)
	}
	if all[0].Body != "" {
		t.Error("list should omit bodies")
	}

	_, page := get("?limit=1&before=" + strconv.FormatInt(all[0].Seq, 10))
	if len(page) != 1 || page[0].ID != all[1].ID {
		t.Errorf("cursor page = %+v, want %s", page, all[1].ID)
	}

	if code, _ := get("?limit=zero"); code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", code)
	}
}

func TestEvents_Websocket(t *testing.T) {
	release := make(chan struct{})
	srv, _ := setupServer(t, gatedClient(release))

	resp := postGenerate(t, srv, generateRequest{Brief: testBrief})
	id := decode[generateResponse](t, resp.Body).ID

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/requests/" + id + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	var snap snapshotMessage
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snap.Type != "snapshot" || snap.Request.ID != id {
		t.Fatalf("first message = %+v", snap)
	}

	close(release)

	var last tracker.Event
	succeeded := 0
	for {
		var ev tracker.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Fatalf("read event: %v", err)
			}
			break
		}
		if ev.Type == tracker.EventJobTransition && ev.To == models.JobSucceeded {
			succeeded++
		}
		last = ev
	}

	if last.Type != tracker.EventRequestDone || last.Status != models.RequestSucceeded {
		t.Errorf("last event = %+v, want request_done/succeeded", last)
	}
	if succeeded == 0 {
		t.Error("no job success transitions streamed")
	}
}

func TestEvents_WebsocketOrigin(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	srv, _ := setupServer(t, gatedClient(release))

	resp := postGenerate(t, srv, generateRequest{Brief: testBrief})
	id := decode[generateResponse](t, resp.Body).ID
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/requests/" + id + "/events"

	tests := []struct {
		name   string
		origin string
		wantOK bool
	}{
		{"no origin", "", true},
		{"same origin", srv.URL, true},
		{"foreign origin", "http://evil.example", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			conn, resp, err := websocket.DefaultDialer.Dial(url, header)
			if tt.wantOK {
				if err != nil {
					t.Fatalf("dial: %v", err)
				}
				conn.Close()
				return
			}
			if err == nil {
				conn.Close()
				t.Fatal("dial with foreign origin succeeded")
			}
			if resp == nil || resp.StatusCode != http.StatusForbidden {
				t.Errorf("response = %v, want 403", resp)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	srv, _ := setupServer(t, backend.NewEcho())

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	defer resp.Body.Close()
	body := decode[map[string]any](t, resp.Body)
	if body["status"] != "ok" {
		t.Errorf("health = %v", body)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"abcdef", 3, "abc..."},
		{"héllo", 2, "h..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
