// Package mcpclient attaches the tools of an external MCP server to a ToolBox.
package mcpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/germanamz/lamplighter/pkg/tools/toolbox"
)

// ClientName identifies this program to MCP servers.
const ClientName = "lamplighter"

// ErrNoTransport is returned by Connect when a ServerConfig names neither a
// command nor a URL.
var ErrNoTransport = errors.New("mcpclient: server needs a command or a url")

// ServerConfig describes how to reach one MCP server. A URL selects the SSE
// transport; otherwise Command is spawned and spoken to over stdio.
type ServerConfig struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
	URL     string            `yaml:"url"`
}

// MCPClient communicates with an MCP server using the official MCP Go SDK.
type MCPClient struct {
	session *mcp.ClientSession
}

// Connect opens a session to the server cfg describes.
func Connect(ctx context.Context, cfg ServerConfig) (*MCPClient, error) {
	switch {
	case cfg.URL != "":
		return NewSSE(ctx, cfg.URL)
	case cfg.Command != "":
		cmd := exec.Command(cfg.Command, cfg.Args...) //nolint:gosec // command comes from the operator's config
		cmd.Env = mergeEnv(os.Environ(), cfg.Env)
		return newFromTransport(ctx, &mcp.CommandTransport{Command: cmd})
	default:
		return nil, ErrNoTransport
	}
}

// New spawns an MCP server process and returns a connected client.
func New(ctx context.Context, command string, args ...string) (*MCPClient, error) {
	return Connect(ctx, ServerConfig{Command: command, Args: args})
}

// NewSSE connects to an SSE-based MCP server at the given URL.
func NewSSE(ctx context.Context, url string) (*MCPClient, error) {
	return newFromTransport(ctx, &mcp.SSEClientTransport{Endpoint: url})
}

func newFromTransport(ctx context.Context, transport mcp.Transport) (*MCPClient, error) {
	client := mcp.NewClient(&mcp.Implementation{Name: ClientName, Version: "0.1.0"}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcpclient: connect: %w", err)
	}

	return &MCPClient{session: session}, nil
}

// ListTools fetches the server's tools as toolbox.Tool values whose handlers
// call back through CallTool.
func (c *MCPClient) ListTools(ctx context.Context) ([]toolbox.Tool, error) {
	result, err := c.session.ListTools(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mcpclient: list tools: %w", err)
	}

	tools := make([]toolbox.Tool, 0, len(result.Tools))
	for _, sdkTool := range result.Tools {
		t, err := fromSDKTool(sdkTool, c)
		if err != nil {
			return nil, fmt.Errorf("mcpclient: convert tool %q: %w", sdkTool.Name, err)
		}
		tools = append(tools, t)
	}

	return tools, nil
}

// CallTool calls a named tool on the server. A result flagged as an error by
// the server is returned as an error carrying the server's text.
func (c *MCPClient) CallTool(ctx context.Context, name string, arguments json.RawMessage) (string, error) {
	var args map[string]any
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &args); err != nil {
			return "", fmt.Errorf("mcpclient: unmarshal arguments: %w", err)
		}
	}

	result, err := c.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return "", fmt.Errorf("mcpclient: call tool: %w", err)
	}

	text := extractText(result)
	if result.IsError {
		return "", fmt.Errorf("mcpclient: tool error: %s", text)
	}

	return text, nil
}

// Close terminates the session. For command transports the SDK closes the
// child's stdin and reaps the process.
func (c *MCPClient) Close() error {
	return c.session.Close()
}

func fromSDKTool(sdkTool *mcp.Tool, c *MCPClient) (toolbox.Tool, error) {
	schemaBytes, err := json.Marshal(sdkTool.InputSchema)
	if err != nil {
		return toolbox.Tool{}, fmt.Errorf("marshal input schema: %w", err)
	}

	name := sdkTool.Name

	return toolbox.Tool{
		Name:        sdkTool.Name,
		Description: sdkTool.Description,
		InputSchema: json.RawMessage(schemaBytes),
		Handler: func(ctx context.Context, input json.RawMessage) (string, error) {
			return c.CallTool(ctx, name, input)
		},
	}, nil
}

// extractText joins all TextContent items with newlines.
func extractText(result *mcp.CallToolResult) string {
	var texts []string
	for _, item := range result.Content {
		if tc, ok := item.(*mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}

	return strings.Join(texts, "\n")
}

// mergeEnv appends extra to base in key order; later entries win in exec.
func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := append([]string(nil), base...)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}

	return env
}
