// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/jllopis/agentcore/pkg/agent"
	"github.com/jllopis/agentcore/pkg/config"
	"github.com/jllopis/agentcore/pkg/core"
	"github.com/jllopis/agentcore/pkg/errors"
	"github.com/jllopis/agentcore/pkg/memory"
	"github.com/jllopis/agentcore/pkg/telemetry"
)

func runChat(ctx context.Context, global globalFlags, opts config.LoadOptions, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	prompt := fs.String("prompt", "", "Send a single prompt and exit")
	sessionID := fs.String("session", "", "Session id for durable memory")
	noTelemetry := fs.Bool("no-telemetry", false, "Disable tracing and metrics export")
	watch := fs.Bool("watch", false, "Reload log settings when the config file changes")
	if err := fs.Parse(args); err != nil {
		if stderrors.Is(err, flag.ErrHelp) {
			return nil
		}
		return NewInvalidArgumentError("chat", err.Error())
	}
	if *sessionID != "" {
		cfg.Memory.SessionID = *sessionID
	}

	logger := telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	shutdown, err := initTelemetry(cfg, *noTelemetry, os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			logger.Warn("telemetry.shutdown.failed", "error", err.Error())
		}
	}()

	if *watch {
		if opts.Path == "" {
			logger.Warn("config.watch.skipped", "reason", "no --config file given")
		} else {
			w, err := startWatcher(ctx, opts, logger)
			if err != nil {
				return NewConfigError(err, opts.Path)
			}
			defer w.Stop()
		}
	}

	s, err := newSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx = core.WithSessionID(ctx, cfg.Memory.SessionID)
	c := &chat{agent: s.agent, out: os.Stdout, errOut: os.Stderr, json: global.JSON}

	input := *prompt
	if input == "" && fs.NArg() > 0 {
		input = strings.Join(fs.Args(), " ")
	}
	if input != "" {
		return c.once(ctx, input)
	}

	fd := os.Stdin.Fd()
	interactive := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	return c.loop(ctx, os.Stdin, interactive)
}

// chat drives an agent from a line-oriented input.
type chat struct {
	agent  *agent.Agent
	out    io.Writer
	errOut io.Writer
	json   bool
}

type chatReply struct {
	Input     string `json:"input"`
	Output    string `json:"output,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// once answers a single prompt; any failure is returned to the caller.
func (c *chat) once(ctx context.Context, input string) error {
	out, err := c.agent.Turn(ctx, input)
	if err != nil {
		return err
	}
	c.printReply(input, out)
	return nil
}

// loop reads one message per line until EOF, an exit command or
// cancellation. Turn failures are reported and the conversation goes on.
func (c *chat) loop(ctx context.Context, in io.Reader, interactive bool) error {
	if interactive {
		fmt.Fprintf(c.out, "agentcore %s (model %s). Type /help for commands.\n", version, c.agent.Config().Model)
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if interactive {
			fmt.Fprint(c.out, "> ")
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		if strings.HasPrefix(line, "/") {
			quit, err := c.command(ctx, line)
			if err != nil {
				c.printError(line, err)
			}
			if quit {
				return nil
			}
			continue
		}

		out, err := c.agent.Turn(ctx, line)
		if err != nil {
			c.printError(line, err)
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		c.printReply(line, out)
	}
	return scanner.Err()
}

// command handles a slash command and reports whether the loop should end.
func (c *chat) command(ctx context.Context, line string) (bool, error) {
	name := strings.Fields(line)[0]
	switch name {
	case "/help":
		fmt.Fprint(c.out, `Commands:
  /tools     List available tools
  /history   Show the retained conversation
  /reset     Clear the conversation
  /save      Save the conversation to durable memory
  /load      Restore the conversation from durable memory
  /exit      Leave
`)
	case "/tools":
		return false, writeTools(c.out, c.agent.Tools(), c.json)
	case "/history":
		return false, c.printHistory(c.agent.History())
	case "/reset":
		if err := c.agent.Reset(ctx); err != nil {
			return false, err
		}
		fmt.Fprintln(c.out, "Conversation cleared.")
	case "/save":
		if err := c.agent.Save(ctx); err != nil {
			return false, err
		}
		fmt.Fprintln(c.out, "Conversation saved.")
	case "/load":
		if err := c.agent.Load(ctx); err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "Conversation restored (%d turns).\n", len(c.agent.History()))
	case "/exit", "/quit":
		return true, nil
	default:
		fmt.Fprintf(c.out, "Unknown command %s. Type /help for commands.\n", name)
	}
	return false, nil
}

func (c *chat) printReply(input, output string) {
	if c.json {
		_ = printJSON(c.out, chatReply{Input: input, Output: output})
		return
	}
	fmt.Fprintln(c.out, output)
}

// printError reports a failed turn. In JSON mode the failure is part of the
// output stream so piped consumers see one object per input line.
func (c *chat) printError(input string, err error) {
	if c.json {
		e := errors.Wrap(err)
		_ = printJSON(c.out, chatReply{Input: input, Error: e.Message, ErrorCode: string(e.Code)})
		return
	}
	WrapError(err).PrintError(c.errOut, false)
}

func (c *chat) printHistory(turns []memory.Turn) error {
	if c.json {
		return printJSON(c.out, turns)
	}
	for _, t := range turns {
		switch {
		case t.Role == memory.RoleTool:
			fmt.Fprintf(c.out, "[tool %s] %s\n", t.ToolName, t.Content)
		case len(t.ToolCalls) > 0:
			for _, call := range t.ToolCalls {
				fmt.Fprintf(c.out, "[%s] -> %s(%s)\n", t.Role, call.Name, call.Arguments)
			}
		default:
			fmt.Fprintf(c.out, "[%s] %s\n", t.Role, t.Content)
		}
	}
	return nil
}
