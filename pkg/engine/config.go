package engine

import (
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/germanamz/lamplighter/pkg/lights"
	"github.com/germanamz/lamplighter/pkg/tools/mcpclient"
)

// EnvPrefix prefixes every environment variable ApplyEnv reads.
const EnvPrefix = "LAMPLIGHTER_"

// Provider kinds understood by the built-in factories.
const (
	KindOpenAI    = "openai"
	KindAnthropic = "anthropic"
	KindAzure     = "azure"
)

// Config is the top-level engine configuration.
type Config struct {
	Provider   ProviderConfig           `yaml:"provider"`
	Agent      AgentConfig              `yaml:"agent"`
	Log        LogConfig                `yaml:"log"`
	Lights     LightsConfig             `yaml:"lights"`
	MCPServers []mcpclient.ServerConfig `yaml:"mcp_servers"`
}

// ProviderConfig selects and configures the completion client.
type ProviderConfig struct {
	Kind        string  `yaml:"kind"`
	Model       string  `yaml:"model"`       // Model id; the deployment name for azure.
	Endpoint    string  `yaml:"endpoint"`    // Base URL; required for azure.
	APIKey      string  `yaml:"api_key"`     //nolint:gosec // configuration field, not a hardcoded secret
	APIVersion  string  `yaml:"api_version"` // Azure only.
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	Timeout     string  `yaml:"timeout"`     // Per attempt, as a duration string (e.g. "60s").
	MaxRetries  int     `yaml:"max_retries"` // Retries after the first attempt.
	BaseDelay   string  `yaml:"base_delay"`  // Initial backoff delay (e.g. "1s", "500ms").
}

// AgentConfig configures the agent every session runs.
type AgentConfig struct {
	Name          string `yaml:"name"`
	Instructions  string `yaml:"instructions"`
	MaxRounds     int    `yaml:"max_rounds"`
	ParallelTools bool   `yaml:"parallel_tools"`
	TurnTimeout   string `yaml:"turn_timeout"` // Bounds a whole turn; empty means none.
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn or error.
	Format string `yaml:"format"` // text or json.
	File   string `yaml:"file"`   // Empty means stderr.
}

// LightsConfig holds the lights a store starts with.
type LightsConfig struct {
	Seed []lights.Light `yaml:"seed"`
}

// ConfigurationError reports a missing or invalid configuration value. It is
// fatal: nothing runs until the configuration is fixed.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("engine: config: %s: %s", e.Field, e.Reason)
}

// DefaultConfig returns the configuration used for every key a file or the
// environment leaves unset.
func DefaultConfig() Config {
	return Config{
		Provider: ProviderConfig{
			Kind:       KindOpenAI,
			Timeout:    "60s",
			MaxRetries: 2,
			BaseDelay:  "1s",
		},
		Agent: AgentConfig{
			Name:      "lamplighter",
			MaxRounds: 10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Lights: LightsConfig{Seed: lights.DefaultSeed()},
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig. Environment variables
// referenced as ${VAR} or $VAR are expanded before parsing, so credentials can
// stay in the environment (or a .env file) instead of the config.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration, not user input
	if err != nil {
		return Config{}, fmt.Errorf("engine: load config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("engine: parse config: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides the most common settings from LAMPLIGHTER_* variables.
// lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	overrides := []struct {
		key string
		dst *string
	}{
		{"PROVIDER", &c.Provider.Kind},
		{"MODEL", &c.Provider.Model},
		{"ENDPOINT", &c.Provider.Endpoint},
		{"API_KEY", &c.Provider.APIKey},
		{"API_VERSION", &c.Provider.APIVersion},
		{"LOG_LEVEL", &c.Log.Level},
	}

	for _, o := range overrides {
		if v, ok := lookup(EnvPrefix + o.key); ok && v != "" {
			*o.dst = v
		}
	}
}

// Validate checks that the configuration is complete and internally
// consistent. Every failure is a *ConfigurationError.
func (c Config) Validate() error {
	p := c.Provider
	switch p.Kind {
	case KindOpenAI, KindAnthropic, KindAzure:
	case "":
		return &ConfigurationError{Field: "provider.kind", Reason: "is required"}
	default:
		if _, ok := getFactory(p.Kind); !ok {
			return &ConfigurationError{Field: "provider.kind", Reason: fmt.Sprintf("unknown provider %q", p.Kind)}
		}
	}

	if p.Model == "" {
		return &ConfigurationError{Field: "provider.model", Reason: "is required"}
	}
	if p.APIKey == "" {
		return &ConfigurationError{Field: "provider.api_key", Reason: "is required"}
	}
	if p.Kind == KindAzure && p.Endpoint == "" {
		return &ConfigurationError{Field: "provider.endpoint", Reason: "is required for azure"}
	}
	if p.MaxRetries < 0 {
		return &ConfigurationError{Field: "provider.max_retries", Reason: "must not be negative"}
	}

	durations := []struct{ field, val string }{
		{"provider.timeout", p.Timeout},
		{"provider.base_delay", p.BaseDelay},
		{"agent.turn_timeout", c.Agent.TurnTimeout},
	}
	for _, d := range durations {
		if _, err := parseDuration(d.field, d.val); err != nil {
			return err
		}
	}

	if c.Agent.MaxRounds < 0 {
		return &ConfigurationError{Field: "agent.max_rounds", Reason: "must not be negative"}
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if !slices.Contains([]string{"", "text", "json"}, c.Log.Format) {
		return &ConfigurationError{Field: "log.format", Reason: fmt.Sprintf("unknown format %q", c.Log.Format)}
	}

	ids := make(map[int]struct{}, len(c.Lights.Seed))
	for _, l := range c.Lights.Seed {
		if _, dup := ids[l.ID]; dup {
			return &ConfigurationError{Field: "lights.seed", Reason: fmt.Sprintf("duplicate light id %d", l.ID)}
		}
		ids[l.ID] = struct{}{}
	}

	mcpNames := make(map[string]struct{}, len(c.MCPServers))
	for _, m := range c.MCPServers {
		if m.Name == "" {
			return &ConfigurationError{Field: "mcp_servers", Reason: "name is required"}
		}
		if m.Command == "" && m.URL == "" {
			return &ConfigurationError{Field: "mcp_servers." + m.Name, Reason: "command or url is required"}
		}
		if _, dup := mcpNames[m.Name]; dup {
			return &ConfigurationError{Field: "mcp_servers", Reason: fmt.Sprintf("duplicate name %q", m.Name)}
		}
		mcpNames[m.Name] = struct{}{}
	}

	return nil
}

// parseDuration parses an optional duration string; empty means zero.
func parseDuration(field, val string) (time.Duration, error) {
	if val == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, &ConfigurationError{Field: field, Reason: fmt.Sprintf("invalid duration %q", val)}
	}
	if d < 0 {
		return 0, &ConfigurationError{Field: field, Reason: "must not be negative"}
	}

	return d, nil
}
