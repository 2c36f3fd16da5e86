// Package chat provides the append-only conversation history that is sent to
// the model on every completion call.
package chat

import (
	"sync"

	"github.com/germanamz/lamplighter/pkg/chats/content"
	"github.com/germanamz/lamplighter/pkg/chats/message"
	"github.com/germanamz/lamplighter/pkg/chats/role"
)

// Chat is an ordered, append-only log of turns, oldest first. Appended turns
// are never reordered or removed, and readers only ever receive copies.
// The zero value is ready to use. Chat is safe for concurrent use.
type Chat struct {
	mu       sync.RWMutex
	messages []message.Message
}

// New creates a Chat pre-populated with the given messages.
func New(msgs ...message.Message) *Chat {
	c := &Chat{}
	c.append(msgs...)
	return c
}

// AppendSystem appends a system instruction turn.
func (c *Chat) AppendSystem(text string) message.Message {
	return c.appendOne(message.NewText("system", role.System, text))
}

// AppendUser appends a user turn.
func (c *Chat) AppendUser(text string) message.Message {
	return c.appendOne(message.NewText("user", role.User, text))
}

// AppendAssistant appends a final assistant reply.
func (c *Chat) AppendAssistant(sender, text string) message.Message {
	return c.appendOne(message.NewText(sender, role.Assistant, text))
}

// AppendToolRequest appends the assistant turn that requested the given tool
// calls. All calls of one round live in a single turn.
func (c *Chat) AppendToolRequest(sender string, calls ...content.ToolCall) message.Message {
	parts := make([]content.Part, len(calls))
	for i, tc := range calls {
		parts[i] = tc
	}
	return c.appendOne(message.New(sender, role.Assistant, parts...))
}

// AppendToolResult appends the result of one tool call.
func (c *Chat) AppendToolResult(sender string, result content.ToolResult) message.Message {
	return c.appendOne(message.New(sender, role.Tool, result))
}

// Len returns the number of turns in the conversation.
func (c *Chat) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.messages)
}

// At returns the turn at the given index.
// It panics if the index is out of range.
func (c *Chat) At(index int) message.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.messages[index].Clone()
}

// Last returns the most recent turn and true, or a zero Message and false if
// the conversation is empty.
func (c *Chat) Last() (message.Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.messages) == 0 {
		return message.Message{}, false
	}
	return c.messages[len(c.messages)-1].Clone(), true
}

// Snapshot returns the full ordered history. Each message is a copy, so the
// caller may not alter the conversation through it.
func (c *Chat) Snapshot() []message.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cp := make([]message.Message, len(c.messages))
	for i, m := range c.messages {
		cp[i] = m.Clone()
	}
	return cp
}

// SystemPrompt returns the text of the first system turn, or an empty string
// if there is none.
func (c *Chat) SystemPrompt() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, m := range c.messages {
		if m.Role == role.System {
			return m.TextContent()
		}
	}
	return ""
}

func (c *Chat) appendOne(m message.Message) message.Message {
	c.append(m)
	return m.Clone()
}

func (c *Chat) append(msgs ...message.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, m := range msgs {
		c.messages = append(c.messages, m.Clone())
	}
}
