// Package mcpserver exposes the tools of a ToolBox over the MCP protocol.
package mcpserver

import (
	"context"
	"encoding/json"
	"io"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/germanamz/lamplighter/pkg/tools/toolbox"
)

var emptyObjectSchema = json.RawMessage(`{"type":"object"}`)

// MCPServer serves the tools of a ToolBox using the official MCP Go SDK.
// Calls go through ToolBox.Invoke, so argument defaulting and panic recovery
// behave exactly as they do inside the agent loop.
type MCPServer struct {
	server *mcp.Server
	box    *toolbox.ToolBox
}

// New creates a server named name that advertises every tool currently in box.
func New(name, version string, box *toolbox.ToolBox) *MCPServer {
	s := &MCPServer{
		server: mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil),
		box:    box,
	}

	for _, t := range box.Tools() {
		s.server.AddTool(toSDKTool(t), s.handler(t.Name))
	}

	return s
}

// Serve reads requests from in and writes responses to out until ctx is
// cancelled or the peer disconnects.
func (s *MCPServer) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	return s.Run(ctx, &mcp.IOTransport{
		Reader: io.NopCloser(in),
		Writer: nopWriteCloser{out},
	})
}

// Run serves over an arbitrary transport.
func (s *MCPServer) Run(ctx context.Context, transport mcp.Transport) error {
	return s.server.Run(ctx, transport)
}

func toSDKTool(t toolbox.Tool) *mcp.Tool {
	schema := t.InputSchema
	if len(schema) == 0 {
		schema = emptyObjectSchema
	}

	return &mcp.Tool{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: schema,
	}
}

func (s *MCPServer) handler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := s.box.Invoke(ctx, name, req.Params.Arguments)
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
				IsError: true,
			}, nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: result}},
		}, nil
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
