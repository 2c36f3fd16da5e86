package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germanamz/lamplighter/pkg/lights"
	"github.com/germanamz/lamplighter/pkg/tools/toolbox"
)

func echoHandler(_ context.Context, input json.RawMessage) (string, error) {
	return string(input), nil
}

// setupTestClient serves box over in-memory transports and returns a
// connected SDK client session.
func setupTestClient(t *testing.T, box *toolbox.ToolBox) *mcp.ClientSession {
	t.Helper()

	s := New("test-server", "1.0.0", box)

	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	ctx, cancel := context.WithCancel(context.Background())

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- s.Run(ctx, serverTransport)
	}()
	t.Cleanup(func() {
		cancel()
		<-serverDone
	})

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	return session
}

func lightsBox(t *testing.T) (*toolbox.ToolBox, *lights.Store) {
	t.Helper()

	store, err := lights.NewStore(lights.DefaultSeed()...)
	require.NoError(t, err)

	box := toolbox.New()
	require.NoError(t, box.Register(store.Tools()...))

	return box, store
}

func textOf(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()

	require.Len(t, result.Content, 1)
	tc, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)

	return tc.Text
}

func TestListTools(t *testing.T) {
	box, _ := lightsBox(t)
	session := setupTestClient(t, box)

	result, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, result.Tools, 2)

	byName := make(map[string]*mcp.Tool, len(result.Tools))
	for _, tool := range result.Tools {
		byName[tool.Name] = tool
	}

	require.Contains(t, byName, "get_lights")
	require.Contains(t, byName, "change_state")
	assert.Equal(t, "Changes the state of the light", byName["change_state"].Description)
}

func TestToolWithoutSchemaIsServed(t *testing.T) {
	box := toolbox.New()
	require.NoError(t, box.Register(toolbox.Tool{Name: "echo", Handler: echoHandler}))

	session := setupTestClient(t, box)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "echo",
		Arguments: map[string]any{"msg": "hi"},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.JSONEq(t, `{"msg":"hi"}`, textOf(t, result))
}

func TestChangeStateMutatesStore(t *testing.T) {
	box, store := lightsBox(t)
	session := setupTestClient(t, box)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "change_state",
		Arguments: map[string]any{"id": 1, "isOn": true},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.JSONEq(t, `{"id":1,"name":"Table Lamp","is_on":true}`, textOf(t, result))

	assert.True(t, *store.List()[0].IsOn)
}

func TestHandlerErrorIsToolError(t *testing.T) {
	box := toolbox.New()
	require.NoError(t, box.Register(toolbox.Tool{
		Name: "fail",
		Handler: func(context.Context, json.RawMessage) (string, error) {
			return "", errors.New("tool failed")
		},
	}))

	session := setupTestClient(t, box)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "fail",
		Arguments: map[string]any{},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "tool fail failed: tool failed", textOf(t, result))
}

func TestToolCallNotFound(t *testing.T) {
	session := setupTestClient(t, toolbox.New())

	_, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "missing",
		Arguments: map[string]any{},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}
