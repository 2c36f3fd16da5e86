package modeladapter_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/germanamz/lamplighter/pkg/chats/chat"
	"github.com/germanamz/lamplighter/pkg/chats/message"
	"github.com/germanamz/lamplighter/pkg/chats/role"
	"github.com/germanamz/lamplighter/pkg/modeladapter"
	"github.com/germanamz/lamplighter/pkg/tools/toolbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedCompleter returns errs in order, then succeeds.
type scriptedCompleter struct {
	errs  []error
	calls int
	block bool
}

func (s *scriptedCompleter) Complete(ctx context.Context, _ *chat.Chat, _ []toolbox.Tool) (message.Message, error) {
	s.calls++
	if s.block {
		<-ctx.Done()
		return message.Message{}, ctx.Err()
	}
	if s.calls <= len(s.errs) {
		return message.Message{}, s.errs[s.calls-1]
	}
	return message.NewText("", role.Assistant, "ok"), nil
}

func newRetry(inner modeladapter.Completer, opts modeladapter.RetryOpts) (*modeladapter.RetryCompleter, *[]time.Duration) {
	rc := modeladapter.NewRetryCompleter(inner, opts)

	var sleeps []time.Duration
	rc.SetSleepFunc(func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	})
	rc.SetRandFunc(func() float64 { return 0.5 }) // no jitter

	return rc, &sleeps
}

func TestRetry_SucceedsFirstTry(t *testing.T) {
	inner := &scriptedCompleter{}
	rc, sleeps := newRetry(inner, modeladapter.RetryOpts{MaxRetries: 3})

	msg, err := rc.Complete(context.Background(), chat.New(), nil)

	require.NoError(t, err)
	assert.Equal(t, "ok", msg.TextContent())
	assert.Equal(t, 1, inner.calls)
	assert.Empty(t, *sleeps)
}

func TestRetry_RateLimitThenSuccess(t *testing.T) {
	inner := &scriptedCompleter{errs: []error{
		&modeladapter.RateLimitError{},
		&modeladapter.RateLimitError{RetryAfter: 10 * time.Second},
	}}
	rc, sleeps := newRetry(inner, modeladapter.RetryOpts{MaxRetries: 3, BaseDelay: time.Second})

	_, err := rc.Complete(context.Background(), chat.New(), nil)

	require.NoError(t, err)
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, []time.Duration{time.Second, 10 * time.Second}, *sleeps)
}

func TestRetry_ServerErrorRetried(t *testing.T) {
	inner := &scriptedCompleter{errs: []error{&modeladapter.StatusError{StatusCode: 503}}}
	rc, _ := newRetry(inner, modeladapter.RetryOpts{MaxRetries: 1})

	_, err := rc.Complete(context.Background(), chat.New(), nil)

	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestRetry_ClientErrorNotRetried(t *testing.T) {
	inner := &scriptedCompleter{errs: []error{&modeladapter.StatusError{StatusCode: 401, Body: "bad key"}}}
	rc, _ := newRetry(inner, modeladapter.RetryOpts{MaxRetries: 3})

	_, err := rc.Complete(context.Background(), chat.New(), nil)

	var se *modeladapter.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, inner.calls)
}

func TestRetry_Exhausted(t *testing.T) {
	inner := &scriptedCompleter{errs: []error{
		&modeladapter.RateLimitError{Body: "1"},
		&modeladapter.RateLimitError{Body: "2"},
		&modeladapter.RateLimitError{Body: "3"},
	}}
	rc, sleeps := newRetry(inner, modeladapter.RetryOpts{MaxRetries: 2, BaseDelay: time.Second})

	_, err := rc.Complete(context.Background(), chat.New(), nil)

	var rle *modeladapter.RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, "3", rle.Body)
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *sleeps)
}

func TestRetry_AttemptTimeoutIsRetried(t *testing.T) {
	inner := &scriptedCompleter{block: true}
	rc, sleeps := newRetry(inner, modeladapter.RetryOpts{Timeout: 10 * time.Millisecond, MaxRetries: 1})

	_, err := rc.Complete(context.Background(), chat.New(), nil)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, inner.calls)
	assert.Len(t, *sleeps, 1)
}

func TestRetry_CallerCancellationNotRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inner := &scriptedCompleter{block: true}
	rc, _ := newRetry(inner, modeladapter.RetryOpts{MaxRetries: 3})

	_, err := rc.Complete(ctx, chat.New(), nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, inner.calls)
}

func TestRetry_SleepCancelled(t *testing.T) {
	inner := &scriptedCompleter{errs: []error{&modeladapter.RateLimitError{}}}
	rc := modeladapter.NewRetryCompleter(inner, modeladapter.RetryOpts{MaxRetries: 1})
	rc.SetSleepFunc(func(context.Context, time.Duration) error { return context.Canceled })

	_, err := rc.Complete(context.Background(), chat.New(), nil)

	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRetry_UsageTrackerFallback(t *testing.T) {
	rc := modeladapter.NewRetryCompleter(&scriptedCompleter{}, modeladapter.RetryOpts{})
	assert.NotNil(t, rc.UsageTracker())

	var base modeladapter.ModelAdapter
	rc = modeladapter.NewRetryCompleter(&base, modeladapter.RetryOpts{})
	assert.Same(t, base.UsageTracker(), rc.UsageTracker())
}
