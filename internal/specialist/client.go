package specialist

import (
	"context"
	"time"
)

// Client sends a prompt to a text-generation backend.
type Client interface {
	// Invoke returns the generated text for prompt, or a classified *Error.
	// A positive timeout bounds the call.
	Invoke(ctx context.Context, prompt string, timeout time.Duration) (string, error)
}

// ClientFunc adapts an ordinary function to the Client interface.
type ClientFunc func(ctx context.Context, prompt string, timeout time.Duration) (string, error)

// Invoke calls f(ctx, prompt, timeout).
func (f ClientFunc) Invoke(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	return f(ctx, prompt, timeout)
}
