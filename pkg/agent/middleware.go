package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/germanamz/lamplighter/pkg/chats/chat"
	"github.com/germanamz/lamplighter/pkg/chats/message"
)

// ErrTurnTimeout is returned when a turn outlives the limit set by Timeout.
var ErrTurnTimeout = errors.New("agent: turn timed out")

// Turn describes the turn a Runner executes.
type Turn struct {
	Agent string
	// Input is the user text that opened the turn. Empty when the loop is
	// resumed over an existing history.
	Input string
	Chat  *chat.Chat
}

// Runner executes one turn and returns the final assistant message.
type Runner interface {
	Run(ctx context.Context, t Turn) (message.Message, error)
}

// RunnerFunc adapts a plain function to the Runner interface.
type RunnerFunc func(ctx context.Context, t Turn) (message.Message, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, t Turn) (message.Message, error) {
	return f(ctx, t)
}

// Middleware wraps a Runner. The first middleware in Options.Middleware is the
// outermost.
type Middleware func(next Runner) Runner

// Timeout bounds a whole turn, tool calls included. A non-positive d
// disables it. Expiry is reported as ErrTurnTimeout wrapping the deadline
// error; a deadline inherited from the caller is returned unchanged.
func Timeout(d time.Duration) Middleware {
	return func(next Runner) Runner {
		if d <= 0 {
			return next
		}

		return RunnerFunc(func(ctx context.Context, t Turn) (message.Message, error) {
			tctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			msg, err := next.Run(tctx, t)
			if err != nil && ctx.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
				return msg, fmt.Errorf("%w after %s: %w", ErrTurnTimeout, d, err)
			}

			return msg, err
		})
	}
}

// Recovery turns a panic inside the turn into an error naming the agent.
func Recovery() Middleware {
	return func(next Runner) Runner {
		return RunnerFunc(func(ctx context.Context, t Turn) (msg message.Message, err error) {
			defer func() {
				if r := recover(); r != nil {
					msg = message.Message{}
					err = fmt.Errorf("agent %q panicked: %v", t.Agent, r)
				}
			}()

			return next.Run(ctx, t)
		})
	}
}

// Logger logs every turn: its input size when it starts, then its duration
// and how many history entries it added. Hitting the round limit is logged
// as a warning, any other failure as an error.
func Logger(log *slog.Logger) Middleware {
	return func(next Runner) Runner {
		return RunnerFunc(func(ctx context.Context, t Turn) (message.Message, error) {
			before := 0
			if t.Chat != nil {
				before = t.Chat.Len()
			}

			log.InfoContext(ctx, "turn started", "agent", t.Agent, "input_chars", len(t.Input))

			start := time.Now()
			msg, err := next.Run(ctx, t)

			attrs := []any{"agent", t.Agent, "duration", time.Since(start)}
			if t.Chat != nil {
				attrs = append(attrs, "history_added", t.Chat.Len()-before)
			}

			switch {
			case errors.Is(err, ErrMaxRounds):
				log.WarnContext(ctx, "turn gave up", attrs...)
			case err != nil:
				log.ErrorContext(ctx, "turn failed", append(attrs, "error", err)...)
			default:
				log.InfoContext(ctx, "turn finished", append(attrs, "reply_chars", len(msg.TextContent()))...)
			}

			return msg, err
		})
	}
}
