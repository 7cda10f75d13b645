package backend

import (
	"sync"

	"github.com/ShayCichocki/proposer/internal/specialist"
)

// TokenTracker accumulates token usage across calls.
type TokenTracker struct {
	mu        sync.Mutex
	inputTok  int64
	outputTok int64
	calls     int
}

// NewTokenTracker creates a new token tracker.
func NewTokenTracker() *TokenTracker {
	return &TokenTracker{}
}

// Add records token usage from one call.
func (t *TokenTracker) Add(input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok += input
	t.outputTok += output
	t.calls++
}

// Total returns the total input and output tokens.
func (t *TokenTracker) Total() (input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputTok, t.outputTok
}

// Calls returns the number of successful calls recorded.
func (t *TokenTracker) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// Cost estimates spend in USD at Sonnet list pricing ($3/1M input, $15/1M output).
func (t *TokenTracker) Cost() float64 {
	in, out := t.Total()
	return float64(in)/1_000_000*3.0 + float64(out)/1_000_000*15.0
}

// UsageOf returns the tracker of a client that records token usage, or nil.
func UsageOf(c specialist.Client) *TokenTracker {
	if u, ok := c.(interface{ Tracker() *TokenTracker }); ok {
		return u.Tracker()
	}
	return nil
}
