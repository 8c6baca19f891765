// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"gopkg.in/yaml.v3"

	"github.com/jllopis/agentcore/pkg/config"
	"github.com/jllopis/agentcore/pkg/mcp"
	"github.com/jllopis/agentcore/pkg/telemetry"
	"github.com/jllopis/agentcore/pkg/tool"
)

// runTools lists the local tools and those of the reachable MCP servers.
func runTools(ctx context.Context, global globalFlags, cfg *config.Config, w io.Writer) error {
	logger := telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	reg, err := buildRegistry(cfg, logger)
	if err != nil {
		return err
	}
	if len(cfg.MCP.Servers) > 0 {
		conns, _ := mcp.ConnectAll(ctx, cfg.MCP.Servers, reg, logger)
		defer conns.Close()
	}
	return writeTools(w, reg.Descriptors(), global.JSON)
}

func writeTools(w io.Writer, descs []tool.Descriptor, asJSON bool) error {
	if asJSON {
		if descs == nil {
			descs = []tool.Descriptor{}
		}
		return printJSON(w, descs)
	}
	if len(descs) == 0 {
		fmt.Fprintln(w, "No tools available.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPARAMETERS\tDESCRIPTION")
	for _, d := range descs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Name, formatParams(d.Parameters), d.Description)
	}
	return tw.Flush()
}

func formatParams(params []tool.Parameter) string {
	if len(params) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(params))
	for _, p := range params {
		s := p.Name
		if p.Type != "" {
			s += ":" + string(p.Type)
		}
		if !p.Required {
			s += "?"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", ")
}

type mcpToolResult struct {
	Server string        `json:"server"`
	Tool   mcptypes.Tool `json:"tool"`
	Error  string        `json:"error,omitempty"`
}

func runMCP(ctx context.Context, global globalFlags, cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return NewInvalidArgumentError("mcp", "expected 'list' or 'serve'")
	}
	switch args[0] {
	case "list":
		return runMCPList(ctx, global, cfg, os.Stdout)
	case "serve":
		return runMCPServe(cfg, args[1:])
	default:
		return NewInvalidArgumentError("mcp", fmt.Sprintf("unknown subcommand %q", args[0]))
	}
}

// runMCPList queries every configured server directly, so each result
// names the server that provides it.
func runMCPList(ctx context.Context, global globalFlags, cfg *config.Config, w io.Writer) error {
	telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if len(cfg.MCP.Servers) == 0 {
		return NewInvalidArgumentError("mcp.servers", "no MCP servers configured")
	}

	var results []mcpToolResult
	for _, srv := range cfg.MCP.Servers {
		c, err := mcp.Connect(ctx, srv)
		if err != nil {
			results = append(results, mcpToolResult{Server: srv.Name, Error: err.Error()})
			continue
		}
		tools, err := c.ListTools(ctx)
		_ = c.Close()
		if err != nil {
			results = append(results, mcpToolResult{Server: srv.Name, Error: err.Error()})
			continue
		}
		for _, t := range tools {
			results = append(results, mcpToolResult{Server: srv.Name, Tool: t})
		}
	}

	if global.JSON {
		return printJSON(w, results)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVER\tTOOL\tDESCRIPTION")
	for _, r := range results {
		if r.Error != "" {
			fmt.Fprintf(tw, "%s\t-\terror: %s\n", r.Server, r.Error)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Server, r.Tool.Name, r.Tool.Description)
	}
	return tw.Flush()
}

// runMCPServe publishes the builtin tools. Logs go to stderr so the stdio
// transport keeps stdout to itself.
func runMCPServe(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("mcp serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	addr := fs.String("http", "", "Serve streamable HTTP on this address instead of stdio")
	if err := fs.Parse(args); err != nil {
		return NewInvalidArgumentError("mcp serve", err.Error())
	}

	logger := telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	reg, err := buildRegistry(cfg, logger)
	if err != nil {
		return err
	}
	srv := mcp.NewServer(serviceName, version)
	if err := srv.RegisterRegistry(reg); err != nil {
		return err
	}

	if *addr != "" {
		logger.Info("mcp.serve.start", "transport", "http", "addr", *addr, "tools", reg.Len())
		return srv.ServeStreamableHTTP(*addr)
	}
	logger.Info("mcp.serve.start", "transport", "stdio", "tools", reg.Len())
	return srv.ServeStdio()
}

func runConfig(cfg *config.Config, global globalFlags, w io.Writer) error {
	doc := configDocument(cfg)
	if global.JSON {
		return printJSON(w, doc)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

// configDocument renders cfg with durations in their string form and
// secrets masked.
func configDocument(cfg *config.Config) map[string]any {
	servers := make([]map[string]any, 0, len(cfg.MCP.Servers))
	for _, s := range cfg.MCP.Servers {
		servers = append(servers, map[string]any{
			"name":      s.Name,
			"transport": s.Transport,
			"command":   s.Command,
			"args":      s.Args,
			"url":       s.URL,
		})
	}
	a := cfg.Agent
	return map[string]any{
		"log": map[string]any{
			"level":  cfg.Log.Level,
			"format": cfg.Log.Format,
		},
		"telemetry": map[string]any{
			"enabled":       cfg.Telemetry.Enabled,
			"exporter":      cfg.Telemetry.Exporter,
			"otlp_endpoint": cfg.Telemetry.OTLPEndpoint,
			"otlp_insecure": cfg.Telemetry.OTLPInsecure,
		},
		"llm": map[string]any{
			"provider": cfg.LLM.Provider,
			"base_url": cfg.LLM.BaseURL,
			"api_key":  mask(cfg.LLM.APIKey),
		},
		"memory": map[string]any{
			"backend":      cfg.Memory.Backend,
			"path":         cfg.Memory.Path,
			"session_id":   cfg.Memory.SessionID,
			"auto_persist": cfg.Memory.AutoPersist,
		},
		"tools": map[string]any{
			"calculator":      cfg.Tools.Calculator,
			"web_search":      cfg.Tools.WebSearch,
			"weather":         cfg.Tools.Weather,
			"weather_api_key": mask(cfg.Tools.WeatherAPIKey),
			"search_endpoint": cfg.Tools.SearchEndpoint,
		},
		"mcp": map[string]any{
			"servers": servers,
		},
		"agent": map[string]any{
			"model":              a.Model,
			"system_prompt":      a.SystemPrompt,
			"max_tokens":         a.MaxTokens,
			"temperature":        a.Temperature,
			"max_retained_turns": a.MaxRetainedTurns,
			"tools_enabled":      a.ToolsEnabled,
			"tool_timeout":       a.ToolTimeout.String(),
			"model_timeout":      a.ModelTimeout.String(),
			"retry": map[string]any{
				"max_attempts":        a.Retry.MaxAttempts,
				"initial_backoff":     a.Retry.InitialBackoff.String(),
				"max_backoff":         a.Retry.MaxBackoff.String(),
				"multiplier":          a.Retry.Multiplier,
				"max_tool_iterations": a.Retry.MaxToolIterations,
			},
		},
	}
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****"
}
