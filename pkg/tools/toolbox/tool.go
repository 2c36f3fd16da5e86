package toolbox

import (
	"context"
	"encoding/json"
)

// Handler executes a tool with the given JSON arguments and returns a text
// result, usually JSON, that is handed back to the model verbatim.
type Handler func(ctx context.Context, input json.RawMessage) (string, error)

// Tool describes a callable tool: its unique name, what it does, the JSON
// Schema of its arguments, and the handler that runs it.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     Handler
}
