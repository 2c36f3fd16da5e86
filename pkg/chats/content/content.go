// Package content defines the parts a conversation turn is made of.
package content

// Part is a piece of content within a message.
type Part interface {
	PartKind() string
}

// Text is plain text written by the user or the assistant.
type Text struct {
	Text string
}

func (t Text) PartKind() string { return "text" }

// ToolCall is a model-issued request to invoke a registered tool.
// Arguments holds the raw JSON object exactly as the model produced it.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

func (tc ToolCall) PartKind() string { return "tool_call" }

// ToolResult answers exactly one ToolCall of the same round. When IsError is
// set, Content carries the failure message instead of the tool's output.
type ToolResult struct {
	ToolCallID string
	Content    string
	IsError    bool
}

func (tr ToolResult) PartKind() string { return "tool_result" }
