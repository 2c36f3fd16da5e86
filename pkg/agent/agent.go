// Package agent runs the tool-augmented chat loop: a user turn goes to the
// model, every tool the model asks for is resolved against a ToolBox, the
// results are fed back, and the loop repeats until the model answers.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/germanamz/lamplighter/pkg/chats/chat"
	"github.com/germanamz/lamplighter/pkg/chats/content"
	"github.com/germanamz/lamplighter/pkg/chats/message"
	"github.com/germanamz/lamplighter/pkg/modeladapter"
	"github.com/germanamz/lamplighter/pkg/tools/toolbox"
)

// DefaultMaxRounds bounds the model calls of one turn when Options.MaxRounds
// is not set.
const DefaultMaxRounds = 10

// ErrMaxRounds is returned when the model keeps requesting tools for more
// rounds than allowed without producing a final answer.
var ErrMaxRounds = errors.New("agent: max rounds reached")

// CompletionError reports a failed model call. The user turn that started the
// exchange stays in the history.
type CompletionError struct {
	Round int
	Err   error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("agent: completion failed in round %d: %v", e.Round, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// Event kinds passed to an EventNotifier.
const (
	EventToolCallStart = "tool_call_start"
	EventToolCallEnd   = "tool_call_end"
)

// EventNotifier receives loop events. It is called from the goroutine that
// runs the tool, so it must be safe for concurrent use when ParallelTools is
// set.
type EventNotifier func(ctx context.Context, kind string, data any)

// ToolCallEventData is the payload of tool call events. Result is nil for
// EventToolCallStart.
type ToolCallEventData struct {
	Agent  string
	Call   content.ToolCall
	Result *content.ToolResult
}

// Options configures an Agent.
type Options struct {
	MaxRounds     int           // Model calls per turn (0 = DefaultMaxRounds).
	ParallelTools bool          // Run the calls of one round concurrently.
	Instructions  string        // System prompt; empty means none.
	Middleware    []Middleware  // Applied around every turn.
	EventNotifier EventNotifier // Optional.
}

// Agent owns one conversation. It is not safe for concurrent Send calls.
type Agent struct {
	name      string
	completer modeladapter.Completer
	tools     *toolbox.ToolBox
	chat      *chat.Chat
	options   Options
}

// New creates an Agent. A nil tools box means the model is offered no tools.
func New(name string, completer modeladapter.Completer, tools *toolbox.ToolBox, opts Options) *Agent {
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = DefaultMaxRounds
	}
	if tools == nil {
		tools = toolbox.New()
	}

	c := chat.New()
	if opts.Instructions != "" {
		c.AppendSystem(opts.Instructions)
	}

	return &Agent{
		name:      name,
		completer: completer,
		tools:     tools,
		chat:      c,
		options:   opts,
	}
}

// Name returns the agent's name.
func (a *Agent) Name() string { return a.name }

// Chat returns the agent's conversation history.
func (a *Agent) Chat() *chat.Chat { return a.chat }

// Completer returns the agent's completer.
func (a *Agent) Completer() modeladapter.Completer { return a.completer }

// Tools returns the registry the agent resolves calls against.
func (a *Agent) Tools() *toolbox.ToolBox { return a.tools }

// Send appends text as a user turn and runs the loop until the model answers.
// On success the returned message is the assistant turn that was appended.
func (a *Agent) Send(ctx context.Context, text string) (message.Message, error) {
	a.chat.AppendUser(text)

	return a.runTurn(ctx, Turn{Agent: a.name, Input: text, Chat: a.chat})
}

// Run resumes the loop over the current history with middleware applied.
func (a *Agent) Run(ctx context.Context) (message.Message, error) {
	return a.runTurn(ctx, Turn{Agent: a.name, Chat: a.chat})
}

func (a *Agent) runTurn(ctx context.Context, t Turn) (message.Message, error) {
	var runner Runner = RunnerFunc(a.run)

	// Apply middleware in reverse order so the first middleware is outermost.
	for i := len(a.options.Middleware) - 1; i >= 0; i-- {
		runner = a.options.Middleware[i](runner)
	}

	return runner.Run(ctx, t)
}

func (a *Agent) run(ctx context.Context, _ Turn) (message.Message, error) {
	for round := 1; round <= a.options.MaxRounds; round++ {
		// Descriptors are re-read every round so the model always sees the
		// registry as it is now.
		reply, err := a.completer.Complete(ctx, a.chat, a.tools.Tools())
		if err != nil {
			return message.Message{}, &CompletionError{Round: round, Err: err}
		}

		switch r := modeladapter.Interpret(reply).(type) {
		case modeladapter.Final:
			return a.chat.AppendAssistant(a.name, r.Text), nil

		case modeladapter.ToolCalls:
			a.chat.AppendToolRequest(a.name, r.Requests...)

			results := a.callTools(ctx, r.Requests)
			for i, res := range results {
				a.chat.AppendToolResult(r.Requests[i].Name, res)
			}
		}
	}

	return message.Message{}, ErrMaxRounds
}

// callTools resolves every call of one round. Results are indexed like calls
// regardless of completion order.
func (a *Agent) callTools(ctx context.Context, calls []content.ToolCall) []content.ToolResult {
	results := make([]content.ToolResult, len(calls))

	if !a.options.ParallelTools || len(calls) == 1 {
		for i, tc := range calls {
			results[i] = a.callTool(ctx, tc)
		}
		return results
	}

	var wg sync.WaitGroup
	for i, tc := range calls {
		wg.Go(func() {
			results[i] = a.callTool(ctx, tc)
		})
	}
	wg.Wait()

	return results
}

func (a *Agent) callTool(ctx context.Context, tc content.ToolCall) content.ToolResult {
	a.notify(ctx, EventToolCallStart, ToolCallEventData{Agent: a.name, Call: tc})

	result := a.tools.Call(ctx, tc)

	a.notify(ctx, EventToolCallEnd, ToolCallEventData{Agent: a.name, Call: tc, Result: &result})

	return result
}

func (a *Agent) notify(ctx context.Context, kind string, data any) {
	if a.options.EventNotifier != nil {
		a.options.EventNotifier(ctx, kind, data)
	}
}
