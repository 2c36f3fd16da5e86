package azure_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/germanamz/lamplighter/pkg/chats/chat"
	"github.com/germanamz/lamplighter/pkg/chats/content"
	"github.com/germanamz/lamplighter/pkg/modeladapter"
	"github.com/germanamz/lamplighter/pkg/providers/azure"
	"github.com/germanamz/lamplighter/pkg/tools/toolbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *azure.Adapter {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return azure.New(srv.URL, "2024-10-21", "test-key", "lights-gpt")
}

func readBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()

	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)

	var req map[string]any
	require.NoError(t, json.Unmarshal(body, &req))

	return req
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func completion(msg map[string]any) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o",
		"choices": []map[string]any{
			{"index": 0, "message": msg, "finish_reason": "stop"},
		},
		"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16},
	}
}

func TestComplete_RoutesToDeployment(t *testing.T) {
	adapter := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/chat/completions")
		assert.Contains(t, r.URL.Path, "lights-gpt")
		assert.Equal(t, "2024-10-21", r.URL.Query().Get("api-version"))
		assert.Equal(t, "test-key", r.Header.Get("Api-Key"))

		req := readBody(t, r)
		msgs, ok := req["messages"].([]any)
		require.True(t, ok)
		require.Len(t, msgs, 2)

		first, _ := msgs[0].(map[string]any)
		assert.Equal(t, "system", first["role"])

		writeJSON(t, w, completion(map[string]any{"role": "assistant", "content": "Hello!"}))
	})

	c := chat.New()
	c.AppendSystem("You control the lights.")
	c.AppendUser("Hi")

	msg, err := adapter.Complete(context.Background(), c, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello!", msg.TextContent())

	last, ok := adapter.Usage.Last()
	require.True(t, ok)
	assert.Equal(t, 12, last.InputTokens)
	assert.Equal(t, 4, last.OutputTokens)
}

func TestComplete_ToolCalls(t *testing.T) {
	tools := []toolbox.Tool{
		{
			Name:        "change_state",
			Description: "Changes the state of the light",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"id":{"type":"integer"},"isOn":{"type":"boolean"}},"required":["id","isOn"]}`),
		},
	}

	adapter := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		req := readBody(t, r)

		defs, ok := req["tools"].([]any)
		require.True(t, ok)
		require.Len(t, defs, 1)
		def, _ := defs[0].(map[string]any)
		fn, _ := def["function"].(map[string]any)
		assert.Equal(t, "change_state", fn["name"])
		params, _ := fn["parameters"].(map[string]any)
		assert.Equal(t, []any{"id", "isOn"}, params["required"])

		msgs, _ := req["messages"].([]any)
		require.Len(t, msgs, 3)
		last, _ := msgs[2].(map[string]any)
		assert.Equal(t, "tool", last["role"])
		assert.Equal(t, "call_0", last["tool_call_id"])

		writeJSON(t, w, completion(map[string]any{
			"role":    "assistant",
			"content": "",
			"tool_calls": []map[string]any{
				{
					"id":       "call_1",
					"type":     "function",
					"function": map[string]any{"name": "change_state", "arguments": `{"id":3,"isOn":true}`},
				},
			},
		}))
	})

	c := chat.New()
	c.AppendUser("Turn on the chandelier")
	c.AppendToolRequest("assistant", content.ToolCall{ID: "call_0", Name: "get_lights", Arguments: `{}`})
	c.AppendToolResult("get_lights", content.ToolResult{ToolCallID: "call_0", Content: `[]`})

	msg, err := adapter.Complete(context.Background(), c, tools)
	require.NoError(t, err)

	calls := msg.ToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.Equal(t, "change_state", calls[0].Name)
	assert.JSONEq(t, `{"id":3,"isOn":true}`, calls[0].Arguments)
	assert.Empty(t, msg.TextContent())
}

func TestComplete_InvalidSchema(t *testing.T) {
	adapter := azure.New("http://127.0.0.1:0", "", "k", "d")

	_, err := adapter.Complete(context.Background(), chat.New(), []toolbox.Tool{
		{Name: "broken", InputSchema: json.RawMessage(`{`)},
	})
	assert.ErrorContains(t, err, "invalid input schema")
}

func TestComplete_RateLimitMapped(t *testing.T) {
	adapter := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "4")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit","code":"429"}}`))
	})

	c := chat.New()
	c.AppendUser("Hi")

	_, err := adapter.Complete(context.Background(), c, nil)

	var rle *modeladapter.RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, "4s", rle.RetryAfter.String())
}

func TestComplete_ServerErrorMapped(t *testing.T) {
	adapter := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"busy"}}`))
	})

	c := chat.New()
	c.AppendUser("Hi")

	_, err := adapter.Complete(context.Background(), c, nil)

	var se *modeladapter.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.True(t, se.Temporary())
}

func TestNew_TransportOwnedBySDK(t *testing.T) {
	a := azure.New("https://example.openai.azure.com", "", "secret", "lights-gpt")

	assert.Equal(t, "lights-gpt", a.Name)
	assert.Equal(t, 4096, a.MaxTokens)
	assert.Empty(t, a.BaseURL)
	assert.Equal(t, modeladapter.Auth{}, a.Auth)
}
