package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/proposer/internal/specialist"
)

const messageJSON = `{
  "id": "msg_01",
  "type": "message",
  "role": "assistant",
  "model": "claude-sonnet-4-20250514",
  "content": [{"type": "text", "text": "Part one. "}, {"type": "text", "text": "Part two."}],
  "stop_reason": "end_turn",
  "usage": {"input_tokens": 12, "output_tokens": 7}
}`

func newTestAnthropic(t *testing.T, handler http.HandlerFunc) *Anthropic {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewAnthropic(AnthropicConfig{APIKey: "test-key", BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("NewAnthropic failed: %v", err)
	}
	return c
}

func TestAnthropic_Invoke(t *testing.T) {
	var gotBody string
	c := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, messageJSON)
	})

	out, err := c.Invoke(context.Background(), "Write the budget", time.Second)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if out != "Part one. Part two." {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(gotBody, "Write the budget") {
		t.Errorf("request body missing prompt: %s", gotBody)
	}

	in, outTok := c.Tracker().Total()
	if in != 12 || outTok != 7 || c.Tracker().Calls() != 1 {
		t.Errorf("usage = (%d, %d, %d calls), want (12, 7, 1)", in, outTok, c.Tracker().Calls())
	}
}

func TestAnthropic_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   specialist.Kind
	}{
		{http.StatusBadRequest, specialist.KindBackendRejected},
		{http.StatusUnauthorized, specialist.KindBackendRejected},
		{http.StatusForbidden, specialist.KindBackendRejected},
		{http.StatusRequestTimeout, specialist.KindTransientUnavailable},
		{http.StatusTooManyRequests, specialist.KindTransientUnavailable},
		{http.StatusInternalServerError, specialist.KindTransientUnavailable},
		{http.StatusServiceUnavailable, specialist.KindTransientUnavailable},
		{529, specialist.KindTransientUnavailable},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			calls := 0
			c := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"type":"error","error":{"type":"api_error","message":"nope"}}`)
			})

			_, err := c.Invoke(context.Background(), "prompt", time.Second)
			if got := specialist.KindOf(err); got != tt.want {
				t.Errorf("kind = %s, want %s (err %v)", got, tt.want, err)
			}
			var apiErr *anthropic.Error
			if !errors.As(err, &apiErr) {
				t.Errorf("error should wrap *anthropic.Error: %v", err)
			}
			if calls != 1 {
				t.Errorf("server saw %d calls, want 1 (SDK retries must be off)", calls)
			}
		})
	}
}

func TestAnthropic_EmptyContent(t *testing.T) {
	c := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"m","type":"message","role":"assistant","model":"x","content":[],"usage":{"input_tokens":1,"output_tokens":0}}`)
	})

	_, err := c.Invoke(context.Background(), "prompt", time.Second)
	if !errors.Is(err, specialist.ErrMalformedResponse) {
		t.Errorf("err = %v, want malformed response", err)
	}
}

func TestAnthropic_Timeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	_, err := c.Invoke(context.Background(), "prompt", 20*time.Millisecond)
	if !errors.Is(err, specialist.ErrTimeout) {
		t.Errorf("err = %v, want timeout", err)
	}
}

func TestNewAnthropic(t *testing.T) {
	if _, err := NewAnthropic(AnthropicConfig{}); err == nil {
		t.Error("expected error without API key")
	}

	c, err := NewAnthropic(AnthropicConfig{APIKey: "k"})
	if err != nil {
		t.Fatalf("NewAnthropic failed: %v", err)
	}
	if c.Model() != anthropic.ModelClaudeSonnet4_20250514 {
		t.Errorf("default model = %q", c.Model())
	}
}

func TestBedrockModel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"claude-sonnet-4-20250514", "us.anthropic.claude-sonnet-4-20250514-v1:0"},
		{"claude-haiku-4-5-20251001", "us.anthropic.claude-haiku-4-5-20251001-v1:0"},
		{"us.anthropic.claude-opus-4-5-20251101-v1:0", "us.anthropic.claude-opus-4-5-20251101-v1:0"},
		{"custom-model", "custom-model"},
	}
	for _, tt := range tests {
		if got := bedrockModel(anthropic.Model(tt.in)); string(got) != tt.want {
			t.Errorf("bedrockModel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
