package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/germanamz/lamplighter/pkg/engine"
)

var version = "dev"

func main() {
	// Handle subcommands before flag parsing.
	if len(os.Args) > 1 && os.Args[1] == "mcp" {
		mcpCmd := flag.NewFlagSet("mcp", flag.ExitOnError)
		mcpCmd.Usage = func() {
			fmt.Fprintf(os.Stderr, "Usage: lamplighter mcp [flags]\n\nServe the light tools over MCP on stdin/stdout.\n\nFlags:\n")
			mcpCmd.PrintDefaults()
		}
		configPath := mcpCmd.String("config", "", "path to configuration file (default: lamplighter.yaml if present)")
		envFile := mcpCmd.String("env", ".env", "path to .env file (ignored if missing)")
		_ = mcpCmd.Parse(os.Args[2:])

		exit(runMCP(*configPath, *envFile))
		return
	}

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: lamplighter [flags]\n       lamplighter mcp [flags]\n\nFlags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nCommands:\n  mcp     Serve the light tools over MCP on stdin/stdout\n")
	}

	configPath := flag.String("config", "", "path to configuration file (default: lamplighter.yaml if present)")
	envFile := flag.String("env", ".env", "path to .env file (ignored if missing)")
	verbose := flag.Bool("verbose", false, "print tool calls and their results")
	markdown := flag.Bool("markdown", false, "render assistant replies as markdown")
	flag.Parse()

	exit(run(*configPath, *envFile, *verbose, *markdown))
}

func exit(err error) {
	if err == nil {
		return
	}

	var ce *engine.ConfigurationError
	if errors.As(err, &ce) {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
	} else {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	os.Exit(1)
}
