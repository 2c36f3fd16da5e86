package modeladapter

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/germanamz/lamplighter/pkg/chats/chat"
	"github.com/germanamz/lamplighter/pkg/chats/message"
	"github.com/germanamz/lamplighter/pkg/modeladapter/usage"
	"github.com/germanamz/lamplighter/pkg/tools/toolbox"
)

var _ Completer = (*RetryCompleter)(nil)

// RetryOpts configures a RetryCompleter.
type RetryOpts struct {
	Timeout    time.Duration // Deadline for each attempt (0 = none).
	MaxRetries int           // Retries after the first attempt (0 = none).
	BaseDelay  time.Duration // Initial backoff delay (default 1s).
}

// RetryCompleter wraps a Completer so that a single call can neither hang
// forever nor fail on the first transient error. Each attempt runs under its
// own timeout; rate limits (429), attempt timeouts, and 5xx responses are
// retried with exponential backoff and jitter.
type RetryCompleter struct {
	inner      Completer
	timeout    time.Duration
	maxRetries int
	baseDelay  time.Duration

	fallbackTracker usage.Tracker

	// sleepFunc is used for testing; defaults to a context-aware sleep.
	sleepFunc func(ctx context.Context, d time.Duration) error
	// randFunc returns a random float64 in [0,1); used for jitter.
	randFunc func() float64
}

// NewRetryCompleter wraps inner with per-attempt timeouts and retries.
func NewRetryCompleter(inner Completer, opts RetryOpts) *RetryCompleter {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}

	return &RetryCompleter{
		inner:      inner,
		timeout:    opts.Timeout,
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.BaseDelay,
		sleepFunc:  contextSleep,
		randFunc:   rand.Float64,
	}
}

// SetSleepFunc overrides the sleep function (for testing).
func (r *RetryCompleter) SetSleepFunc(fn func(ctx context.Context, d time.Duration) error) {
	r.sleepFunc = fn
}

// SetRandFunc overrides the random number generator (for testing).
func (r *RetryCompleter) SetRandFunc(fn func() float64) { r.randFunc = fn }

// contextSleep sleeps for d or until ctx is cancelled.
func contextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Complete implements Completer.
func (r *RetryCompleter) Complete(ctx context.Context, c *chat.Chat, tools []toolbox.Tool) (message.Message, error) {
	var lastErr error
	for attempt := range r.maxRetries + 1 {
		msg, err := r.attempt(ctx, c, tools)
		if err == nil {
			return msg, nil
		}

		// The caller gave up; its error wins over ours.
		if ctx.Err() != nil {
			return message.Message{}, err
		}

		retryAfter, ok := retryable(err)
		if !ok {
			return message.Message{}, err
		}

		lastErr = err

		if attempt >= r.maxRetries {
			break
		}

		backoff := r.jitter(max(
			r.baseDelay*time.Duration(math.Pow(2, float64(attempt))), //nolint:mnd // exponential backoff formula
			retryAfter,
		))

		if err := r.sleepFunc(ctx, backoff); err != nil {
			return message.Message{}, err
		}
	}

	return message.Message{}, lastErr
}

func (r *RetryCompleter) attempt(ctx context.Context, c *chat.Chat, tools []toolbox.Tool) (message.Message, error) {
	if r.timeout <= 0 {
		return r.inner.Complete(ctx, c, tools)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	return r.inner.Complete(ctx, c, tools)
}

// retryable reports whether err is transient, along with any server-requested
// minimum delay.
func retryable(err error) (time.Duration, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle.RetryAfter, true
	}

	var se *StatusError
	if errors.As(err, &se) {
		return 0, se.Temporary()
	}

	return 0, errors.Is(err, context.DeadlineExceeded)
}

// jitter applies ±25% random jitter to a duration.
func (r *RetryCompleter) jitter(d time.Duration) time.Duration {
	factor := 0.75 + r.randFunc()*0.5 //nolint:mnd // jitter range: ±25%
	return time.Duration(float64(d) * factor)
}

// UsageTracker forwards to the inner completer if it implements UsageReporter.
func (r *RetryCompleter) UsageTracker() *usage.Tracker {
	if ur, ok := r.inner.(UsageReporter); ok {
		return ur.UsageTracker()
	}
	return &r.fallbackTracker
}
