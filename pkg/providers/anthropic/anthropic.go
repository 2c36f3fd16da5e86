// Package anthropic provides a Completer implementation for the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/germanamz/lamplighter/pkg/chats/chat"
	"github.com/germanamz/lamplighter/pkg/chats/content"
	"github.com/germanamz/lamplighter/pkg/chats/message"
	"github.com/germanamz/lamplighter/pkg/chats/role"
	"github.com/germanamz/lamplighter/pkg/modeladapter"
	"github.com/germanamz/lamplighter/pkg/modeladapter/usage"
	"github.com/germanamz/lamplighter/pkg/tools/toolbox"
)

const messagesPath = "/v1/messages"

// DefaultBaseURL is the public Anthropic endpoint.
const DefaultBaseURL = "https://api.anthropic.com"

var _ modeladapter.Completer = (*Adapter)(nil)

// Adapter implements modeladapter.Completer for the Anthropic Messages API.
type Adapter struct {
	modeladapter.ModelAdapter
}

// New creates an Adapter configured for the Anthropic API. An empty baseURL
// selects DefaultBaseURL.
func New(baseURL, apiKey, model string) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	a := &Adapter{}
	a.BaseURL = strings.TrimSuffix(baseURL, "/")
	a.Auth = modeladapter.Auth{
		Key:    apiKey,
		Header: "x-api-key",
	}
	a.Name = model
	a.MaxTokens = 4096
	a.Headers = map[string]string{
		"anthropic-version": "2023-06-01",
	}

	return a
}

// Complete sends a conversation to the Anthropic Messages API and returns the
// assistant's reply. The system prompt travels in its own field; tool results
// go back as user turns.
func (a *Adapter) Complete(ctx context.Context, c *chat.Chat, tools []toolbox.Tool) (message.Message, error) {
	req := a.buildRequest(c, tools)

	var resp apiResponse
	if err := a.PostJSON(ctx, messagesPath, req, &resp); err != nil {
		return message.Message{}, fmt.Errorf("anthropic: %w", err)
	}

	a.Usage.Add(usage.TokenCount{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	})

	return parseResponse(resp), nil
}

type apiRequest struct {
	Model       string       `json:"model"`
	MaxTokens   int          `json:"max_tokens"`
	System      string       `json:"system,omitempty"`
	Messages    []apiMessage `json:"messages"`
	Temperature *float64     `json:"temperature,omitempty"`
	Tools       []apiToolDef `json:"tools,omitempty"`
}

type apiMessage struct {
	Role    string       `json:"role"`
	Content []apiContent `json:"content"`
}

type apiContent struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type apiToolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type apiResponse struct {
	Content    []apiContent `json:"content"`
	StopReason string       `json:"stop_reason"`
	Usage      apiUsage     `json:"usage"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (a *Adapter) buildRequest(c *chat.Chat, tools []toolbox.Tool) apiRequest {
	req := apiRequest{
		Model:     a.Name,
		MaxTokens: a.MaxTokens,
		System:    c.SystemPrompt(),
	}

	if a.Temperature != 0 {
		t := a.Temperature
		req.Temperature = &t
	}

	if len(tools) > 0 {
		req.Tools = make([]apiToolDef, len(tools))
		for i, t := range tools {
			schema := t.InputSchema
			if len(schema) == 0 {
				schema = json.RawMessage(`{"type":"object"}`)
			}
			req.Tools[i] = apiToolDef{
				Name:        t.Name,
				Description: t.Description,
				InputSchema: schema,
			}
		}
	}

	for _, m := range c.Snapshot() {
		if m.Role == role.System {
			continue
		}
		req.Messages = appendMessage(req.Messages, m)
	}

	return req
}

// appendMessage converts m into content blocks. Consecutive blocks with the
// same role are merged because the API requires alternating roles; this is
// what folds one round's tool results into a single user message.
func appendMessage(msgs []apiMessage, m message.Message) []apiMessage {
	msgRole := mapRole(m.Role)

	for _, p := range m.Parts {
		block, ok := partToBlock(p)
		if !ok {
			continue
		}

		if n := len(msgs); n > 0 && msgs[n-1].Role == msgRole {
			msgs[n-1].Content = append(msgs[n-1].Content, block)
			continue
		}

		msgs = append(msgs, apiMessage{Role: msgRole, Content: []apiContent{block}})
	}

	return msgs
}

func partToBlock(p content.Part) (apiContent, bool) {
	switch v := p.(type) {
	case content.Text:
		if v.Text == "" {
			return apiContent{}, false
		}
		return apiContent{Type: "text", Text: v.Text}, true
	case content.ToolCall:
		input := json.RawMessage(v.Arguments)
		if len(input) == 0 {
			input = json.RawMessage(`{}`)
		}
		return apiContent{Type: "tool_use", ID: v.ID, Name: v.Name, Input: input}, true
	case content.ToolResult:
		return apiContent{Type: "tool_result", ToolUseID: v.ToolCallID, Content: v.Content, IsError: v.IsError}, true
	default:
		return apiContent{}, false
	}
}

// mapRole maps a history role onto the two roles the API accepts.
func mapRole(r role.Role) string {
	if r == role.Assistant {
		return "assistant"
	}
	return "user"
}

func parseResponse(resp apiResponse) message.Message {
	var parts []content.Part

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			parts = append(parts, content.Text{Text: block.Text})
		case "tool_use":
			args := string(block.Input)
			if args == "" {
				args = "{}"
			}
			parts = append(parts, content.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: args,
			})
		}
	}

	return message.New("", role.Assistant, parts...)
}
