package toolbox

import (
	"errors"
	"fmt"
)

// ErrEmptyName is returned when registering a tool without a name.
var ErrEmptyName = errors.New("toolbox: tool name is required")

// DuplicateNameError is returned by Register when a tool name is already taken.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("toolbox: tool %q is already registered", e.Name)
}

// UnknownToolError is returned by Invoke when no tool has the requested name.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("tool not found: %s", e.Name)
}

// ToolExecutionError wraps a failure raised by a tool handler.
type ToolExecutionError struct {
	Name string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Name, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }
