// Package openai provides a Completer implementation for the OpenAI Chat Completions API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
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

const completionsPath = "/v1/chat/completions"

// DefaultBaseURL is the public OpenAI endpoint.
const DefaultBaseURL = "https://api.openai.com"

var errEmptyChoices = errors.New("empty choices in response")

var _ modeladapter.Completer = (*Adapter)(nil)

// Adapter implements modeladapter.Completer for the OpenAI Chat Completions
// API and any server that speaks it.
type Adapter struct {
	modeladapter.ModelAdapter
}

// New creates an Adapter. baseURL has no trailing slash; an empty baseURL
// selects DefaultBaseURL.
func New(baseURL, apiKey, model string) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	a := &Adapter{}
	a.BaseURL = strings.TrimSuffix(baseURL, "/")
	a.Auth = modeladapter.Auth{Key: apiKey}
	a.Name = model
	a.MaxTokens = 4096

	return a
}

// Complete sends the whole conversation plus the tool descriptors and returns
// the assistant's reply.
func (a *Adapter) Complete(ctx context.Context, c *chat.Chat, tools []toolbox.Tool) (message.Message, error) {
	req := a.buildRequest(c, tools)

	var resp apiResponse
	if err := a.PostJSON(ctx, completionsPath, req, &resp); err != nil {
		return message.Message{}, fmt.Errorf("openai: %w", err)
	}

	a.Usage.Add(usage.TokenCount{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	})

	if len(resp.Choices) == 0 {
		return message.Message{}, fmt.Errorf("openai: %w", errEmptyChoices)
	}

	return parseChoice(resp.Choices[0]), nil
}

type apiRequest struct {
	Model       string       `json:"model"`
	Messages    []apiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature *float64     `json:"temperature,omitempty"`
	Tools       []apiToolDef `json:"tools,omitempty"`
}

type apiMessage struct {
	Role       string        `json:"role"`
	Content    *string       `json:"content"`
	ToolCalls  []apiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

type apiToolCall struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Function apiToolFunction `json:"function"`
}

type apiToolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type apiToolDef struct {
	Type     string         `json:"type"`
	Function apiToolDefFunc `json:"function"`
}

type apiToolDefFunc struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

type apiResponse struct {
	Choices []apiChoice `json:"choices"`
	Usage   apiUsage    `json:"usage"`
}

type apiChoice struct {
	Message      apiRespMessage `json:"message"`
	FinishReason string         `json:"finish_reason"`
}

type apiRespMessage struct {
	Role      string        `json:"role"`
	Content   *string       `json:"content"`
	ToolCalls []apiToolCall `json:"tool_calls,omitempty"`
}

type apiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

func (a *Adapter) buildRequest(c *chat.Chat, tools []toolbox.Tool) apiRequest {
	req := apiRequest{
		Model:     a.Name,
		MaxTokens: a.MaxTokens,
		Tools:     toolDefs(tools),
	}

	if a.Temperature != 0 {
		t := a.Temperature
		req.Temperature = &t
	}

	for _, m := range c.Snapshot() {
		req.Messages = appendMessage(req.Messages, m)
	}

	return req
}

func toolDefs(tools []toolbox.Tool) []apiToolDef {
	if len(tools) == 0 {
		return nil
	}

	defs := make([]apiToolDef, len(tools))
	for i, t := range tools {
		schema := t.InputSchema
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object"}`)
		}
		defs[i] = apiToolDef{
			Type: "function",
			Function: apiToolDefFunc{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schema,
			},
		}
	}

	return defs
}

func appendMessage(msgs []apiMessage, m message.Message) []apiMessage {
	switch m.Role {
	case role.System, role.User:
		text := m.TextContent()
		return append(msgs, apiMessage{Role: m.Role.String(), Content: &text})

	case role.Assistant:
		msg := apiMessage{Role: "assistant"}
		if text := m.TextContent(); text != "" {
			msg.Content = &text
		}
		for _, tc := range m.ToolCalls() {
			msg.ToolCalls = append(msg.ToolCalls, apiToolCall{
				ID:       tc.ID,
				Type:     "function",
				Function: apiToolFunction{Name: tc.Name, Arguments: tc.Arguments},
			})
		}
		return append(msgs, msg)

	case role.Tool:
		for _, tr := range m.ToolResults() {
			msgs = append(msgs, apiMessage{
				Role:       "tool",
				Content:    &tr.Content,
				ToolCallID: tr.ToolCallID,
			})
		}
	}

	return msgs
}

func parseChoice(choice apiChoice) message.Message {
	var parts []content.Part

	if choice.Message.Content != nil && *choice.Message.Content != "" {
		parts = append(parts, content.Text{Text: *choice.Message.Content})
	}

	for _, tc := range choice.Message.ToolCalls {
		parts = append(parts, content.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return message.New("", role.Assistant, parts...)
}
