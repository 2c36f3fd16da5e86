package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/germanamz/lamplighter/cmd/lamplighter/internal/repl"
	"github.com/germanamz/lamplighter/pkg/engine"
	"github.com/germanamz/lamplighter/pkg/tools/mcpserver"
)

// defaultConfigFile is read when no -config flag is given and it exists.
const defaultConfigFile = "lamplighter.yaml"

// loadDotEnv loads environment variables from path. A missing file is not an
// error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// resolveConfigPath returns the explicit path, the default file when it
// exists, or "" to run on defaults and environment only.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}

	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile
	}

	return ""
}

// loadConfig resolves the configuration: file (or defaults), then
// LAMPLIGHTER_* environment overrides.
func loadConfig(configPath, envFile string, lookup func(string) (string, bool)) (engine.Config, error) {
	if err := loadDotEnv(envFile); err != nil {
		return engine.Config{}, err
	}

	cfg := engine.DefaultConfig()
	if path := resolveConfigPath(configPath); path != "" {
		loaded, err := engine.LoadConfig(path)
		if err != nil {
			return engine.Config{}, err
		}
		cfg = loaded
	}

	cfg.ApplyEnv(lookup)

	return cfg, nil
}

// run builds the engine and enters the console chat loop.
func run(configPath, envFile string, verbose, markdown bool) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(configPath, envFile, os.LookupEnv)
	if err != nil {
		return err
	}

	log, logCloser, err := engine.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()

	eng, err := engine.New(ctx, cfg, engine.WithLogger(log))
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	r, err := repl.New(os.Stdin, os.Stdout, eng.NewSession(), repl.Options{
		Events:   eng.Events(),
		Verbose:  verbose,
		Markdown: markdown,
	})
	if err != nil {
		return err
	}

	return r.Run(ctx)
}

// runMCP serves the light tools over stdio MCP. No completion provider is
// needed, so the provider section of the config is not validated.
func runMCP(configPath, envFile string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(configPath, envFile, os.LookupEnv)
	if err != nil {
		return err
	}

	// stdout carries the protocol; logs go to stderr or log.file.
	log, logCloser, err := engine.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()

	_, box, err := engine.NewLightTools(cfg.Lights)
	if err != nil {
		return err
	}

	log.Info("serving light tools over mcp", "tools", box.Len())

	err = mcpserver.New("lamplighter", version, box).Serve(ctx, os.Stdin, os.Stdout)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
