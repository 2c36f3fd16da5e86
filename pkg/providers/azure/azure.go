// Package azure provides a Completer for Azure OpenAI deployments, built on
// the openai-go SDK and its azure request options.
package azure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/germanamz/lamplighter/pkg/chats/chat"
	"github.com/germanamz/lamplighter/pkg/chats/content"
	"github.com/germanamz/lamplighter/pkg/chats/message"
	"github.com/germanamz/lamplighter/pkg/chats/role"
	"github.com/germanamz/lamplighter/pkg/modeladapter"
	"github.com/germanamz/lamplighter/pkg/modeladapter/usage"
	"github.com/germanamz/lamplighter/pkg/tools/toolbox"
)

// DefaultAPIVersion is used when no api version is configured.
const DefaultAPIVersion = "2024-10-21"

var _ modeladapter.Completer = (*Adapter)(nil)

// Adapter talks to one Azure OpenAI deployment. Name holds the deployment
// name, which Azure uses in place of a model id.
type Adapter struct {
	modeladapter.ModelAdapter

	client openai.Client
}

// New creates an Adapter for the deployment hosted at endpoint
// (e.g. "https://my-resource.openai.azure.com"). The SDK's own retries are
// disabled; wrap the adapter in a modeladapter.RetryCompleter instead.
func New(endpoint, apiVersion, apiKey, deployment string, opts ...option.RequestOption) *Adapter {
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}

	a := &Adapter{}
	a.Name = deployment
	a.MaxTokens = 4096

	base := []option.RequestOption{
		azure.WithEndpoint(endpoint, apiVersion),
		azure.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	a.client = openai.NewClient(append(base, opts...)...)

	return a
}

// Complete sends the conversation and tool descriptors to the deployment.
func (a *Adapter) Complete(ctx context.Context, c *chat.Chat, tools []toolbox.Tool) (message.Message, error) {
	params, err := a.buildParams(c, tools)
	if err != nil {
		return message.Message{}, fmt.Errorf("azure: %w", err)
	}

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return message.Message{}, fmt.Errorf("azure: %w", mapError(err))
	}

	a.Usage.Add(usage.TokenCount{
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	})

	if len(resp.Choices) == 0 {
		return message.Message{}, errors.New("azure: empty choices in response")
	}

	return fromOpenAIMessage(resp.Choices[0].Message), nil
}

func (a *Adapter) buildParams(c *chat.Chat, tools []toolbox.Tool) (openai.ChatCompletionNewParams, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(a.Name),
	}

	if a.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(a.MaxTokens))
	}
	if a.Temperature != 0 {
		params.Temperature = openai.Float(a.Temperature)
	}

	if len(tools) > 0 {
		defs, err := toOpenAITools(tools)
		if err != nil {
			return params, err
		}
		params.Tools = defs
	}

	for _, m := range c.Snapshot() {
		params.Messages = append(params.Messages, toOpenAIMessages(m)...)
	}

	return params, nil
}

func toOpenAITools(tools []toolbox.Tool) ([]openai.ChatCompletionToolParam, error) {
	out := make([]openai.ChatCompletionToolParam, len(tools))
	for i, t := range tools {
		schema := shared.FunctionParameters{"type": "object"}
		if len(t.InputSchema) > 0 {
			if err := json.Unmarshal(t.InputSchema, &schema); err != nil {
				return nil, fmt.Errorf("tool %s: invalid input schema: %w", t.Name, err)
			}
		}

		out[i] = openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  schema,
			},
		}
	}
	return out, nil
}

// toOpenAIMessages converts one history turn. A tool turn may carry several
// results and expands to one SDK message per result.
func toOpenAIMessages(m message.Message) []openai.ChatCompletionMessageParamUnion {
	switch m.Role {
	case role.System:
		return []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(m.TextContent())}
	case role.User:
		return []openai.ChatCompletionMessageParamUnion{openai.UserMessage(m.TextContent())}
	case role.Tool:
		results := m.ToolResults()
		out := make([]openai.ChatCompletionMessageParamUnion, len(results))
		for i, tr := range results {
			out[i] = openai.ToolMessage(tr.Content, tr.ToolCallID)
		}
		return out
	case role.Assistant:
		asst := openai.ChatCompletionAssistantMessageParam{}
		if text := m.TextContent(); text != "" {
			asst.Content.OfString = openai.String(text)
		}
		for _, tc := range m.ToolCalls() {
			asst.ToolCalls = append(asst.ToolCalls, openai.ChatCompletionMessageToolCallParam{
				ID: tc.ID,
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		return []openai.ChatCompletionMessageParamUnion{{OfAssistant: &asst}}
	}
	return nil
}

func fromOpenAIMessage(m openai.ChatCompletionMessage) message.Message {
	var parts []content.Part

	if m.Content != "" {
		parts = append(parts, content.Text{Text: m.Content})
	}

	for _, tc := range m.ToolCalls {
		parts = append(parts, content.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return message.New("", role.Assistant, parts...)
}

// mapError turns SDK status errors into the modeladapter error types so that
// the retry layer treats every provider alike.
func mapError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	if apiErr.StatusCode == http.StatusTooManyRequests {
		rle := &modeladapter.RateLimitError{Body: apiErr.Message}
		if apiErr.Response != nil {
			rle.RetryAfter = modeladapter.ParseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
		}
		return rle
	}

	return &modeladapter.StatusError{StatusCode: apiErr.StatusCode, Body: apiErr.Message}
}
