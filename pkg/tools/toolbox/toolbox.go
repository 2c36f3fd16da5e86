package toolbox

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/germanamz/lamplighter/pkg/chats/content"
)

// ToolBox is the plugin registry. It maps unique tool names to their handlers
// and advertises them in registration order. It is safe for concurrent use.
type ToolBox struct {
	mu    sync.RWMutex
	order []string
	tools map[string]Tool
}

// New creates a new ToolBox ready for use.
func New() *ToolBox {
	return &ToolBox{
		tools: make(map[string]Tool),
	}
}

// Register adds one or more tools. Registration is all-or-nothing: if any
// name is empty, already registered, or repeated within tools, nothing is
// added and the previously registered handler stays active.
func (tb *ToolBox) Register(tools ...Tool) error {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	seen := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		if t.Name == "" {
			return ErrEmptyName
		}
		if _, dup := tb.tools[t.Name]; dup {
			return &DuplicateNameError{Name: t.Name}
		}
		if _, dup := seen[t.Name]; dup {
			return &DuplicateNameError{Name: t.Name}
		}
		seen[t.Name] = struct{}{}
	}

	for _, t := range tools {
		tb.tools[t.Name] = t
		tb.order = append(tb.order, t.Name)
	}

	return nil
}

// Merge registers all tools from another ToolBox into this one, with the same
// all-or-nothing semantics as Register.
func (tb *ToolBox) Merge(other *ToolBox) error {
	return tb.Register(other.Tools()...)
}

// Get returns a tool by name and a boolean indicating whether it was found.
func (tb *ToolBox) Get(name string) (Tool, bool) {
	tb.mu.RLock()
	defer tb.mu.RUnlock()

	t, ok := tb.tools[name]
	return t, ok
}

// Tools returns all registered tools in registration order.
func (tb *ToolBox) Tools() []Tool {
	tb.mu.RLock()
	defer tb.mu.RUnlock()

	result := make([]Tool, 0, len(tb.order))
	for _, name := range tb.order {
		result = append(result, tb.tools[name])
	}
	return result
}

// Len returns the number of registered tools.
func (tb *ToolBox) Len() int {
	tb.mu.RLock()
	defer tb.mu.RUnlock()

	return len(tb.order)
}

// Invoke runs the named tool with the given arguments. It returns an
// *UnknownToolError if the tool is not registered and a *ToolExecutionError if
// the handler fails or panics.
func (tb *ToolBox) Invoke(ctx context.Context, name string, input json.RawMessage) (result string, err error) {
	t, ok := tb.Get(name)
	if !ok {
		return "", &UnknownToolError{Name: name}
	}

	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}

	defer func() {
		if r := recover(); r != nil {
			result = ""
			err = &ToolExecutionError{Name: name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	result, err = t.Handler(ctx, input)
	if err != nil {
		return "", &ToolExecutionError{Name: name, Err: err}
	}

	return result, nil
}

// Call executes a tool call and returns its ToolResult. Failures never escape:
// an unknown tool or a failing handler yields a result with IsError set and
// the error message as content.
func (tb *ToolBox) Call(ctx context.Context, tc content.ToolCall) content.ToolResult {
	result, err := tb.Invoke(ctx, tc.Name, json.RawMessage(tc.Arguments))
	if err != nil {
		return content.ToolResult{
			ToolCallID: tc.ID,
			Content:    err.Error(),
			IsError:    true,
		}
	}

	return content.ToolResult{
		ToolCallID: tc.ID,
		Content:    result,
	}
}
