package usage_test

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/germanamz/lamplighter/pkg/modeladapter/usage"
	"github.com/stretchr/testify/assert"
)

func TestTokenCount_Total(t *testing.T) {
	tc := usage.TokenCount{InputTokens: 100, OutputTokens: 50}
	assert.Equal(t, 150, tc.Total())
}

func TestTracker_ZeroValue(t *testing.T) {
	var tr usage.Tracker

	_, ok := tr.Last()
	assert.False(t, ok)
	assert.Equal(t, 0, tr.Count())
	assert.Equal(t, usage.TokenCount{}, tr.Total())
}

func TestTracker_AddLastTotal(t *testing.T) {
	var tr usage.Tracker

	tr.Add(usage.TokenCount{InputTokens: 10, OutputTokens: 5})
	tr.Add(usage.TokenCount{InputTokens: 20, OutputTokens: 10})

	last, ok := tr.Last()
	assert.True(t, ok)
	assert.Equal(t, usage.TokenCount{InputTokens: 20, OutputTokens: 10}, last)
	assert.Equal(t, usage.TokenCount{InputTokens: 30, OutputTokens: 15}, tr.Total())
	assert.Equal(t, 2, tr.Count())
}

func TestTracker_Concurrent(t *testing.T) {
	var tr usage.Tracker

	var wg sync.WaitGroup
	for range 100 {
		wg.Go(func() {
			tr.Add(usage.TokenCount{InputTokens: 1, OutputTokens: 2})
		})
	}
	wg.Wait()

	assert.Equal(t, 100, tr.Count())
	assert.Equal(t, 300, tr.Total().Total())
}

func TestTracker_LogValue(t *testing.T) {
	var tr usage.Tracker
	tr.Add(usage.TokenCount{InputTokens: 7, OutputTokens: 3})

	var buf bytes.Buffer
	slog.New(slog.NewTextHandler(&buf, nil)).Info("done", "usage", &tr)

	assert.Contains(t, buf.String(), "usage.calls=1")
	assert.Contains(t, buf.String(), "usage.input_tokens=7")
	assert.Contains(t, buf.String(), "usage.output_tokens=3")
}
