package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/germanamz/lamplighter/pkg/agent"
	"github.com/germanamz/lamplighter/pkg/chats/chat"
	"github.com/germanamz/lamplighter/pkg/chats/message"
)

// ErrSessionBusy is returned by Send while another Send on the same session
// is still running.
var ErrSessionBusy = errors.New("engine: session busy")

// TurnSummary is the Data of EventTurnEnd.
type TurnSummary struct {
	Duration time.Duration
	// HistoryAdded counts the turns appended to the history, the user turn
	// included.
	HistoryAdded int
	Err          error
}

// Session is one conversation: an agent with its own history. Sessions of an
// engine share the light store and the plugin registry.
type Session struct {
	id     string
	agent  *agent.Agent
	events *EventBus

	busy  sync.Mutex
	turns int
}

func newSession(id string, a *agent.Agent, events *EventBus) *Session {
	return &Session{id: id, agent: a, events: events}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Chat returns the session's history.
func (s *Session) Chat() *chat.Chat { return s.agent.Chat() }

// Turns reports how many Send calls have completed, failed ones included.
func (s *Session) Turns() int {
	s.busy.Lock()
	defer s.busy.Unlock()

	return s.turns
}

// Send runs one user turn and returns the assistant's reply. Failures are
// turn-level: the user turn stays in the history and the session remains
// usable.
func (s *Session) Send(ctx context.Context, text string) (message.Message, error) {
	if !s.busy.TryLock() {
		return message.Message{}, fmt.Errorf("%w: %s", ErrSessionBusy, s.id)
	}
	defer s.busy.Unlock()

	start := time.Now()
	before := s.agent.Chat().Len()
	s.publish(EventTurnStart, text)

	reply, err := s.agent.Send(ctx, text)
	s.turns++

	if err != nil {
		s.publish(EventError, err)
	} else {
		s.publish(EventMessageAdded, reply)
	}

	s.publish(EventTurnEnd, TurnSummary{
		Duration:     time.Since(start),
		HistoryAdded: s.agent.Chat().Len() - before,
		Err:          err,
	})

	return reply, err
}

func (s *Session) publish(kind EventKind, data any) {
	s.events.Publish(Event{
		Kind:      kind,
		SessionID: s.id,
		Agent:     s.agent.Name(),
		Timestamp: time.Now(),
		Data:      data,
	})
}
