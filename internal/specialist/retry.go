package specialist

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy bounds how a job's backend calls are retried.
type RetryPolicy struct {
	// MaxAttempts is the total number of calls allowed, including the first.
	MaxAttempts int
	// Timeout bounds each individual call.
	Timeout time.Duration
	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration
	// MaxDelay caps the exponential backoff between retries.
	MaxDelay time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		Timeout:      5 * time.Minute,
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Timeout <= 0 {
		p.Timeout = def.Timeout
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = time.Millisecond
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	return p
}

// AttemptFunc is called before every backend call with the 1-indexed attempt number.
type AttemptFunc func(attempt int)

// Retrier applies a RetryPolicy to a Client.
type Retrier struct {
	client Client
	policy RetryPolicy
	logger *slog.Logger
}

// NewRetrier wraps client with policy.
func NewRetrier(client Client, policy RetryPolicy, logger *slog.Logger) *Retrier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrier{
		client: client,
		policy: policy.normalized(),
		logger: logger,
	}
}

// Policy returns the normalized policy in effect.
func (r *Retrier) Policy() RetryPolicy {
	return r.policy
}

// Invoke implements Client. A positive timeout overrides the policy timeout.
func (r *Retrier) Invoke(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	p := r.policy
	if timeout > 0 {
		p.Timeout = timeout
	}
	return r.do(ctx, prompt, p, nil)
}

// Do runs prompt through the client under the retry policy, reporting each
// attempt to onAttempt. The returned error is always classified.
func (r *Retrier) Do(ctx context.Context, prompt string, onAttempt AttemptFunc) (string, error) {
	return r.do(ctx, prompt, r.policy, onAttempt)
}

func (r *Retrier) do(ctx context.Context, prompt string, p RetryPolicy, onAttempt AttemptFunc) (string, error) {
	attempt := 0
	operation := func() (string, error) {
		if err := ctx.Err(); err != nil {
			return "", backoff.Permanent(Wrap(KindCancelled, err))
		}
		attempt++
		if onAttempt != nil {
			onAttempt(attempt)
		}

		text, err := r.call(ctx, prompt, p.Timeout)
		if err == nil {
			return text, nil
		}
		if !IsRetryable(err) {
			return "", backoff.Permanent(err)
		}
		return "", err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialDelay
	eb.MaxInterval = p.MaxDelay

	text, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(uint(p.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			r.logger.Warn("specialist call failed, retrying",
				"attempt", attempt,
				"max_attempts", p.MaxAttempts,
				"kind", KindOf(err),
				"retry_in", next,
				"error", err)
		}),
	)
	if err != nil {
		return "", classify(ctx, err)
	}
	return text, nil
}

// call runs one attempt under its own deadline and classifies the outcome.
func (r *Retrier) call(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	text, err := r.client.Invoke(attemptCtx, prompt, timeout)
	if err == nil {
		if text == "" {
			return "", Errorf(KindMalformedResponse, "empty response")
		}
		return text, nil
	}

	if ctx.Err() != nil {
		return "", Wrap(KindCancelled, ctx.Err())
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		var se *Error
		if !errors.As(err, &se) {
			return "", Wrap(KindTimeout, err)
		}
	}
	return "", classify(ctx, err)
}

// classify guarantees err is an *Error.
func classify(ctx context.Context, err error) error {
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	if ctx.Err() != nil {
		return Wrap(KindCancelled, err)
	}
	return Wrap(KindOf(err), err)
}
