// Package repl is the line-based console of lamplighter: it prompts with
// "User > ", sends each line through a session and prints the reply after
// "Assistant > ".
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	glamourstyles "github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/germanamz/lamplighter/pkg/agent"
	"github.com/germanamz/lamplighter/pkg/chats/message"
	"github.com/germanamz/lamplighter/pkg/engine"
)

// MaxRoundsReply is printed when a turn exceeds the round limit.
const MaxRoundsReply = "Sorry, I could not complete that request."

// MaxLineBytes caps one line of user input.
const MaxLineBytes = 1 << 20

const defaultWidth = 100

var errLineTooLong = errors.New("input too long")

// Sender is the conversation the console drives.
type Sender interface {
	ID() string
	Send(ctx context.Context, text string) (message.Message, error)
}

// Options configures a REPL.
type Options struct {
	// Events is required for the verbose tool trace.
	Events   *engine.EventBus
	Verbose  bool
	Markdown bool
	// Width bounds trace lines and markdown wrapping. Defaults to 100.
	Width int
}

// REPL reads user lines and prints assistant replies until an empty line or
// end of input.
type REPL struct {
	in      *bufio.Reader
	out     io.Writer
	sess    Sender
	events  *engine.EventBus
	verbose bool
	width   int
	md      *glamour.TermRenderer
	dropped int64

	userLabel      string
	assistantLabel string
	traceStyle     lipgloss.Style
	errorStyle     lipgloss.Style
}

// New creates a console over in and out.
func New(in io.Reader, out io.Writer, sess Sender, opts Options) (*REPL, error) {
	width := opts.Width
	if width <= 0 {
		width = defaultWidth
	}

	lr := lipgloss.NewRenderer(out)

	r := &REPL{
		in:             bufio.NewReader(in),
		out:            out,
		sess:           sess,
		events:         opts.Events,
		verbose:        opts.Verbose && opts.Events != nil,
		width:          width,
		userLabel:      lr.NewStyle().Bold(true).Foreground(lipgloss.Color("#0969da")).Render("User >"),
		assistantLabel: lr.NewStyle().Bold(true).Foreground(lipgloss.Color("#8250df")).Render("Assistant >"),
		traceStyle:     lr.NewStyle().Foreground(lipgloss.Color("#656d76")),
		errorStyle:     lr.NewStyle().Foreground(lipgloss.Color("#cf222e")),
	}

	if opts.Markdown {
		// A fixed style avoids glamour querying the terminal background.
		style := glamourstyles.LightStyleConfig
		if lr.HasDarkBackground() {
			style = glamourstyles.DarkStyleConfig
		}
		md, err := glamour.NewTermRenderer(
			glamour.WithStyles(style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return nil, fmt.Errorf("repl: markdown renderer: %w", err)
		}
		r.md = md
	}

	return r, nil
}

// Run loops until the user enters an empty line, input ends or ctx is
// cancelled. Turn failures are printed and the loop continues.
func (r *REPL) Run(ctx context.Context) error {
	var sub *engine.Subscription
	if r.verbose {
		sub = r.subscribe()
		defer r.events.Unsubscribe(sub)
	}

	for {
		fmt.Fprintf(r.out, "%s ", r.userLabel)

		raw, err := r.readLine()
		switch {
		case errors.Is(err, errLineTooLong):
			r.printReply(message.Message{}, err)
			continue
		case errors.Is(err, io.EOF):
			fmt.Fprintln(r.out)
			return nil
		case err != nil:
			fmt.Fprintln(r.out)
			return fmt.Errorf("repl: read input: %w", err)
		}

		line := strings.TrimSpace(raw)
		if line == "" {
			return nil
		}

		reply, err := r.sess.Send(ctx, line)
		r.printTrace(sub)

		if err != nil && ctx.Err() != nil {
			return nil
		}

		r.printReply(reply, err)
	}
}

// readLine returns the next input line. A line longer than MaxLineBytes is
// consumed up to its newline and reported as errLineTooLong. A final line
// without a newline is returned before io.EOF.
func (r *REPL) readLine() (string, error) {
	var (
		buf     []byte
		tooLong bool
	)

	for {
		chunk, err := r.in.ReadSlice('\n')
		if !tooLong {
			if len(buf)+len(chunk) > MaxLineBytes+1 {
				tooLong, buf = true, nil
			} else {
				buf = append(buf, chunk...)
			}
		}

		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case err == nil:
		case errors.Is(err, io.EOF):
			if !tooLong && len(buf) == 0 {
				return "", io.EOF
			}
		default:
			return "", err
		}

		if tooLong {
			return "", errLineTooLong
		}
		return string(buf), nil
	}
}

func (r *REPL) printReply(reply message.Message, err error) {
	switch {
	case errors.Is(err, agent.ErrMaxRounds):
		fmt.Fprintf(r.out, "%s %s\n", r.assistantLabel, MaxRoundsReply)
	case err != nil:
		fmt.Fprintf(r.out, "%s %s\n", r.assistantLabel, r.errorStyle.Render("[error] "+err.Error()))
	default:
		fmt.Fprintf(r.out, "%s %s\n", r.assistantLabel, r.render(reply.TextContent()))
	}
}

func (r *REPL) render(text string) string {
	if r.md == nil {
		return text
	}

	out, err := r.md.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

func (r *REPL) subscribe() *engine.Subscription {
	return r.events.Subscribe(256,
		engine.ForSession(r.sess.ID()),
		engine.OfKind(engine.EventToolCallStart, engine.EventToolCallEnd),
	)
}

// printTrace drains the tool events of the finished turn. Send publishes
// synchronously, so every event of the turn is already buffered.
func (r *REPL) printTrace(sub *engine.Subscription) {
	if sub == nil {
		return
	}

	for {
		select {
		case e := <-sub.C:
			if line, ok := r.traceLine(e); ok {
				fmt.Fprintln(r.out, r.traceStyle.Render(line))
			}
		default:
			if n := sub.Dropped(); n > r.dropped {
				fmt.Fprintln(r.out, r.traceStyle.Render(fmt.Sprintf("  … %d tool events not shown", n-r.dropped)))
				r.dropped = n
			}
			return
		}
	}
}

func (r *REPL) traceLine(e engine.Event) (string, bool) {
	data, ok := e.Data.(agent.ToolCallEventData)
	if !ok {
		return "", false
	}

	switch e.Kind {
	case engine.EventToolCallStart:
		return Truncate(fmt.Sprintf("  → %s(%s)", data.Call.Name, data.Call.Arguments), r.width), true
	case engine.EventToolCallEnd:
		if data.Result == nil {
			return "", false
		}
		text := data.Result.Content
		if data.Result.IsError {
			text = "[error] " + text
		}
		return Truncate("  ← "+text, r.width), true
	default:
		return "", false
	}
}

// Truncate flattens s to one line and cuts it to at most width terminal
// cells, marking the cut with an ellipsis.
func Truncate(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return runewidth.Truncate(s, width, "…")
}
