// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Command agentcore runs a conversational agent from the terminal.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jllopis/agentcore/pkg/config"
	"github.com/jllopis/agentcore/pkg/errors"
)

var version = "dev"

type globalFlags struct {
	ConfigArgs []string
	JSON       bool
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fatal(NewInvalidArgumentError("flags", err.Error()), false)
	}
	if global.Help {
		printUsage(os.Stdout)
		return
	}

	cmd := "chat"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "help":
		printUsage(os.Stdout)
		return
	case "version":
		printVersion(os.Stdout, global.JSON)
		return
	}

	opts, _, err := config.ParseCLIArgs(global.ConfigArgs)
	if err != nil {
		fatal(NewConfigError(err, ""), global.JSON)
	}
	cfg, err := config.LoadWith(opts)
	if err != nil {
		fatal(NewConfigError(err, opts.Path), global.JSON)
	}
	if err := cfg.Validate(); err != nil {
		fatal(NewConfigError(err, opts.Path), global.JSON)
	}

	switch cmd {
	case "chat":
		err = runChat(ctx, global, opts, cfg, args)
	case "tools":
		err = runTools(ctx, global, cfg, os.Stdout)
	case "mcp":
		err = runMCP(ctx, global, cfg, args)
	case "config":
		err = runConfig(cfg, global, os.Stdout)
	default:
		err = NewInvalidArgumentError("command", fmt.Sprintf("unknown command %q", cmd))
	}
	if err != nil {
		fatal(err, global.JSON)
	}
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	var flags globalFlags

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		switch {
		case arg == "-h" || arg == "--help":
			flags.Help = true
			return flags, nil, nil
		case arg == "--json":
			flags.JSON = true
		case arg == "--config" || arg == "--profile" || arg == "--env" || arg == "--set":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for %s", arg)
			}
			flags.ConfigArgs = append(flags.ConfigArgs, arg, args[i+1])
			i++
		case strings.HasPrefix(arg, "--config="),
			strings.HasPrefix(arg, "--profile="),
			strings.HasPrefix(arg, "--env="),
			strings.HasPrefix(arg, "--set="):
			flags.ConfigArgs = append(flags.ConfigArgs, arg)
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
	}
	return flags, nil, nil
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `agentcore - conversational agent with tools and memory

Usage:
  agentcore [global flags] [command] [flags]

Commands:
  chat        Talk to the agent (default). Interactive on a terminal,
              line-by-line when input is piped.
  tools       List the tools available to the agent
  mcp list    List the tools of the configured MCP servers
  mcp serve   Serve the builtin tools over MCP (stdio or -http addr)
  config      Print the effective configuration
  version     Print the version
  help        Show this help

Global flags:
  --config <path>       YAML configuration file
  --profile <name>      Overlay <config>.<name>.yaml when present
  --set key=value       Override a configuration key (repeatable)
  --json                Machine readable output
  -h, --help            Show this help

Chat flags:
  -prompt <text>        Send a single prompt and exit
  -session <id>         Session id for durable memory
  -no-telemetry         Disable tracing and metrics export
  -watch                Reload log settings when the config file changes
`)
}

func printVersion(w io.Writer, asJSON bool) {
	if asJSON {
		_ = printJSON(w, map[string]string{"version": version})
		return
	}
	fmt.Fprintf(w, "agentcore %s\n", version)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fatal(err error, asJSON bool) {
	WrapError(err).PrintError(os.Stderr, asJSON)
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch errors.CodeOf(err) {
	case errors.CodeInvalidConfig:
		return 2
	case errors.CodeContextLost:
		return 130
	default:
		return 1
	}
}
