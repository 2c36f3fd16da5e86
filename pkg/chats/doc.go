// Package chats provides a provider-agnostic data model for the conversation.
//
// It is organized into sub-packages:
//   - [github.com/germanamz/lamplighter/pkg/chats/role]: turn authors (system, user, assistant, tool)
//   - [github.com/germanamz/lamplighter/pkg/chats/content]: turn parts (text, tool call, tool result)
//   - [github.com/germanamz/lamplighter/pkg/chats/message]: a turn: role, sender, and parts
//   - [github.com/germanamz/lamplighter/pkg/chats/chat]: the append-only conversation history
//
// No provider or API code lives here; adapters translate these types to their
// own wire formats.
package chats
