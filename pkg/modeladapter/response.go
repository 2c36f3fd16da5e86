package modeladapter

import (
	"github.com/google/uuid"

	"github.com/germanamz/lamplighter/pkg/chats/content"
	"github.com/germanamz/lamplighter/pkg/chats/message"
)

// Response is what one completion round produced: either a Final answer or a
// set of ToolCalls the model wants resolved before it answers.
type Response interface {
	response()
}

// Final is the model's textual answer for the current user turn.
type Final struct {
	Text string
}

// ToolCalls lists the tools the model asked to invoke, in the order it asked.
// Text holds any commentary the model emitted alongside the calls.
type ToolCalls struct {
	Text     string
	Requests []content.ToolCall
}

func (Final) response()     {}
func (ToolCalls) response() {}

// Interpret classifies a reply from a Completer. A reply with at least one
// tool call is a ToolCalls response; anything else is Final. Calls that came
// back without an ID get a generated one so their results can be correlated.
func Interpret(reply message.Message) Response {
	calls := reply.ToolCalls()
	if len(calls) == 0 {
		return Final{Text: reply.TextContent()}
	}

	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = "call_" + uuid.NewString()
		}
	}

	return ToolCalls{Text: reply.TextContent(), Requests: calls}
}
