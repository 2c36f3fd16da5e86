package engine

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_TextLevel(t *testing.T) {
	var buf bytes.Buffer

	log, closer, err := NewLogger(LogConfig{Level: "warn"}, &buf)
	require.NoError(t, err)
	defer func() { _ = closer.Close() }()

	log.Info("hidden")
	log.Warn("shown", "light", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "light=3")
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer

	log, _, err := NewLogger(LogConfig{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)

	log.Debug("tool_call_start", "tool", "get_lights")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "tool_call_start", rec["msg"])
	assert.Equal(t, "get_lights", rec["tool"])
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lamplighter.log")

	log, closer, err := NewLogger(LogConfig{File: path}, nil)
	require.NoError(t, err)

	log.Info("written to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestNewLogger_BadLevel(t *testing.T) {
	_, _, err := NewLogger(LogConfig{Level: "chatty"}, &bytes.Buffer{})

	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "log.level", ce.Field)
}
