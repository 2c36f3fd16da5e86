// Package usage tracks the tokens spent on completion calls.
package usage

import (
	"log/slog"
	"sync"
)

// TokenCount holds input and output token counts.
type TokenCount struct {
	InputTokens  int
	OutputTokens int
}

// Total returns the sum of input and output tokens.
func (tc TokenCount) Total() int {
	return tc.InputTokens + tc.OutputTokens
}

// Tracker keeps running totals across completion calls. The zero value is
// ready to use and it is safe for concurrent use.
type Tracker struct {
	mu    sync.Mutex
	calls int
	last  TokenCount
	total TokenCount
}

// Add records the usage of one completion call.
func (t *Tracker) Add(tc TokenCount) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.calls++
	t.last = tc
	t.total.InputTokens += tc.InputTokens
	t.total.OutputTokens += tc.OutputTokens
}

// Last returns the usage of the most recent call.
// The bool is false when nothing has been recorded.
func (t *Tracker) Last() (TokenCount, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.last, t.calls > 0
}

// Total returns the aggregate usage across all calls.
func (t *Tracker) Total() TokenCount {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.total
}

// Count returns the number of recorded calls.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.calls
}

// LogValue implements slog.LogValuer.
func (t *Tracker) LogValue() slog.Value {
	t.mu.Lock()
	defer t.mu.Unlock()

	return slog.GroupValue(
		slog.Int("calls", t.calls),
		slog.Int("input_tokens", t.total.InputTokens),
		slog.Int("output_tokens", t.total.OutputTokens),
	)
}
