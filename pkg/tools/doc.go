// Package tools holds the plugin registry and its MCP (Model Context Protocol)
// bridges.
//
//   - [github.com/germanamz/lamplighter/pkg/tools/toolbox] Tool type and the ToolBox registry the agent loop resolves calls against
//   - [github.com/germanamz/lamplighter/pkg/tools/mcpclient] attaches tools served by external MCP servers to a ToolBox
//   - [github.com/germanamz/lamplighter/pkg/tools/mcpserver] exposes a ToolBox over MCP
//
// toolbox is the foundation layer; mcpclient and mcpserver depend on it but
// not on each other. Both are thin wrappers around the official MCP Go SDK
// (github.com/modelcontextprotocol/go-sdk).
package tools
