package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/germanamz/lamplighter/pkg/agent"
	"github.com/germanamz/lamplighter/pkg/lights"
	"github.com/germanamz/lamplighter/pkg/modeladapter"
	"github.com/germanamz/lamplighter/pkg/tools/mcpclient"
	"github.com/germanamz/lamplighter/pkg/tools/toolbox"
)

// Engine assembles the completion client, the light store and the plugin
// registry from configuration and hands them to sessions.
type Engine struct {
	cfg        Config
	log        *slog.Logger
	events     *EventBus
	completer  modeladapter.Completer
	lights     *lights.Store
	tools      *toolbox.ToolBox
	mcpClients []*mcpclient.MCPClient

	turnTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
	nextID   int
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the logger used by the engine and its agents.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithCompleter bypasses the provider factory. The completer is used as is,
// without the retry wrapper.
func WithCompleter(c modeladapter.Completer) Option {
	return func(e *Engine) { e.completer = c }
}

// New validates cfg, builds the completion client, seeds the light store,
// registers the light tools and attaches the tools of every configured MCP
// server. A name clash between tools is a startup error.
func New(ctx context.Context, cfg Config, opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:      cfg,
		log:      slog.Default(),
		events:   NewEventBus(),
		sessions: make(map[string]*Session),
	}
	for _, o := range opts {
		o(e)
	}

	if e.completer == nil {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}

		c, err := buildCompleter(cfg.Provider)
		if err != nil {
			return nil, err
		}
		e.completer = c
	}

	// Checked here too: WithCompleter skips Validate.
	turnTimeout, err := parseDuration("agent.turn_timeout", cfg.Agent.TurnTimeout)
	if err != nil {
		return nil, err
	}
	e.turnTimeout = turnTimeout

	store, box, err := NewLightTools(cfg.Lights)
	if err != nil {
		return nil, err
	}
	e.lights = store
	e.tools = box

	for _, sc := range cfg.MCPServers {
		if err := e.attachMCP(ctx, sc); err != nil {
			_ = e.Close()
			return nil, err
		}
	}

	e.log.Debug("engine ready",
		"provider", cfg.Provider.Kind,
		"model", cfg.Provider.Model,
		"tools", e.tools.Len(),
		"lights", len(cfg.Lights.Seed),
	)

	return e, nil
}

// NewLightTools builds the light store from its seed and a registry holding
// the light tools.
func NewLightTools(cfg LightsConfig) (*lights.Store, *toolbox.ToolBox, error) {
	store, err := lights.NewStore(cfg.Seed...)
	if err != nil {
		return nil, nil, &ConfigurationError{Field: "lights.seed", Reason: err.Error()}
	}

	box := toolbox.New()
	if err := box.Register(store.Tools()...); err != nil {
		return nil, nil, fmt.Errorf("engine: register light tools: %w", err)
	}

	return store, box, nil
}

func (e *Engine) attachMCP(ctx context.Context, sc mcpclient.ServerConfig) error {
	client, err := mcpclient.Connect(ctx, sc)
	if err != nil {
		return fmt.Errorf("engine: mcp %q: %w", sc.Name, err)
	}
	e.mcpClients = append(e.mcpClients, client)

	tools, err := client.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("engine: mcp %q: %w", sc.Name, err)
	}

	if err := e.tools.Register(tools...); err != nil {
		return fmt.Errorf("engine: mcp %q: %w", sc.Name, err)
	}

	e.log.Info("mcp server attached", "server", sc.Name, "tools", len(tools))

	return nil
}

// Events returns the engine's event bus.
func (e *Engine) Events() *EventBus { return e.events }

// Lights returns the light store shared by all sessions.
func (e *Engine) Lights() *lights.Store { return e.lights }

// Tools returns the plugin registry shared by all sessions.
func (e *Engine) Tools() *toolbox.ToolBox { return e.tools }

// Completer returns the completion client.
func (e *Engine) Completer() modeladapter.Completer { return e.completer }

// NewSession starts a conversation with a fresh history. The system prompt,
// when configured, is its first turn.
func (e *Engine) NewSession() *Session {
	e.mu.Lock()
	e.nextID++
	id := fmt.Sprintf("session-%d", e.nextID)
	e.mu.Unlock()

	ac := e.cfg.Agent
	a := agent.New(ac.Name, e.completer, e.tools, agent.Options{
		MaxRounds:     ac.MaxRounds,
		ParallelTools: ac.ParallelTools,
		Instructions:  ac.Instructions,
		Middleware: []agent.Middleware{
			agent.Recovery(),
			agent.Logger(e.log),
			agent.Timeout(e.turnTimeout),
		},
		EventNotifier: e.notifier(id, ac.Name),
	})

	s := newSession(id, a, e.events)

	e.mu.Lock()
	e.sessions[id] = s
	e.mu.Unlock()

	return s
}

// Session returns an existing session by ID.
func (e *Engine) Session(id string) (*Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[id]
	return s, ok
}

func (e *Engine) notifier(sessionID, agentName string) agent.EventNotifier {
	return func(ctx context.Context, kind string, data any) {
		if d, ok := data.(agent.ToolCallEventData); ok {
			attrs := []any{"session", sessionID, "tool", d.Call.Name, "call_id", d.Call.ID}
			if d.Result != nil {
				attrs = append(attrs, "is_error", d.Result.IsError)
			}
			e.log.DebugContext(ctx, kind, attrs...)
		}

		e.events.Publish(Event{
			Kind:      EventKind(kind),
			SessionID: sessionID,
			Agent:     agentName,
			Timestamp: time.Now(),
			Data:      data,
		})
	}
}

// Close logs the token usage of the run and shuts down MCP clients.
func (e *Engine) Close() error {
	if ur, ok := e.completer.(modeladapter.UsageReporter); ok {
		if tracker := ur.UsageTracker(); tracker.Count() > 0 {
			e.log.Info("session usage", "provider", e.cfg.Provider.Kind, "usage", tracker)
		}
	}

	var errs []error
	for _, c := range e.mcpClients {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	e.mcpClients = nil

	return errors.Join(errs...)
}
