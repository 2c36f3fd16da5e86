package engine

import (
	"fmt"
	"sync"

	"github.com/germanamz/lamplighter/pkg/modeladapter"
	"github.com/germanamz/lamplighter/pkg/providers/anthropic"
	"github.com/germanamz/lamplighter/pkg/providers/azure"
	"github.com/germanamz/lamplighter/pkg/providers/openai"
)

// ProviderFactory creates a Completer from a ProviderConfig.
type ProviderFactory func(cfg ProviderConfig) (modeladapter.Completer, error)

var (
	factoryMu   sync.RWMutex
	factories   = map[string]ProviderFactory{}
	defaultsReg sync.Once
)

func ensureDefaults() {
	defaultsReg.Do(func() {
		factories[KindOpenAI] = newOpenAI
		factories[KindAnthropic] = newAnthropic
		factories[KindAzure] = newAzure
	})
}

// RegisterProvider registers a custom provider factory under the given kind.
// It can be called before New to extend the engine with additional providers.
func RegisterProvider(kind string, factory ProviderFactory) {
	ensureDefaults()

	factoryMu.Lock()
	defer factoryMu.Unlock()

	factories[kind] = factory
}

func getFactory(kind string) (ProviderFactory, bool) {
	ensureDefaults()

	factoryMu.RLock()
	defer factoryMu.RUnlock()

	f, ok := factories[kind]
	return f, ok
}

func newOpenAI(cfg ProviderConfig) (modeladapter.Completer, error) {
	a := openai.New(cfg.Endpoint, cfg.APIKey, cfg.Model)
	applyTuning(&a.ModelAdapter, cfg)

	return a, nil
}

func newAnthropic(cfg ProviderConfig) (modeladapter.Completer, error) {
	a := anthropic.New(cfg.Endpoint, cfg.APIKey, cfg.Model)
	applyTuning(&a.ModelAdapter, cfg)

	return a, nil
}

func newAzure(cfg ProviderConfig) (modeladapter.Completer, error) {
	a := azure.New(cfg.Endpoint, cfg.APIVersion, cfg.APIKey, cfg.Model)
	applyTuning(&a.ModelAdapter, cfg)

	return a, nil
}

func applyTuning(a *modeladapter.ModelAdapter, cfg ProviderConfig) {
	a.Temperature = cfg.Temperature
	if cfg.MaxTokens > 0 {
		a.MaxTokens = cfg.MaxTokens
	}
}

// buildCompleter creates the Completer for cfg and wraps it in a
// RetryCompleter, so every call has a per-attempt timeout and transient
// failures are retried.
func buildCompleter(cfg ProviderConfig) (modeladapter.Completer, error) {
	factory, ok := getFactory(cfg.Kind)
	if !ok {
		return nil, &ConfigurationError{Field: "provider.kind", Reason: fmt.Sprintf("unknown provider %q", cfg.Kind)}
	}

	c, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("engine: provider %q: %w", cfg.Kind, err)
	}

	timeout, err := parseDuration("provider.timeout", cfg.Timeout)
	if err != nil {
		return nil, err
	}
	baseDelay, err := parseDuration("provider.base_delay", cfg.BaseDelay)
	if err != nil {
		return nil, err
	}

	return modeladapter.NewRetryCompleter(c, modeladapter.RetryOpts{
		Timeout:    timeout,
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  baseDelay,
	}), nil
}
