// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/jllopis/agentcore/pkg/agent"
	"github.com/jllopis/agentcore/pkg/config"
	"github.com/jllopis/agentcore/pkg/core"
	"github.com/jllopis/agentcore/pkg/errors"
	"github.com/jllopis/agentcore/pkg/llm"
	"github.com/jllopis/agentcore/pkg/llm/openai"
	"github.com/jllopis/agentcore/pkg/mcp"
	"github.com/jllopis/agentcore/pkg/memory"
	"github.com/jllopis/agentcore/pkg/telemetry"
	"github.com/jllopis/agentcore/pkg/tool"
	"github.com/jllopis/agentcore/pkg/tool/builtin"
)

const serviceName = "agentcore"

// session is one running agent with everything it holds open.
type session struct {
	agent    *agent.Agent
	registry *tool.Registry
	logger   *slog.Logger
	closers  []func() error
}

// Close releases resources in reverse order of acquisition.
func (s *session) Close() error {
	var errs []error
	for _, c := range slices.Backward(s.closers) {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return stderrors.Join(errs...)
}

// newSession wires provider, tools, MCP servers and memory into an agent
// and restores the stored conversation when the memory is durable.
func newSession(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*session, error) {
	provider, err := buildProvider(cfg)
	if err != nil {
		return nil, err
	}

	s := &session{logger: logger}
	reg, err := buildRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}
	s.registry = reg

	if len(cfg.MCP.Servers) > 0 {
		conns, err := mcp.ConnectAll(ctx, cfg.MCP.Servers, reg, logger)
		if err != nil {
			logger.WarnContext(ctx, "mcp.servers.partial",
				slog.Int("connected", conns.Len()),
				slog.Int("configured", len(cfg.MCP.Servers)),
			)
		}
		s.closers = append(s.closers, conns.Close)
	}

	mem, closeMem, err := buildMemory(cfg, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	if closeMem != nil {
		s.closers = append(s.closers, closeMem)
	}

	ag, err := agent.New(cfg.Agent, provider,
		agent.WithMemory(mem),
		agent.WithRegistry(reg),
		agent.WithLogger(logger),
		agent.WithEventEmitter(eventLogger(logger)),
	)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.agent = ag
	return s, nil
}

func buildProvider(cfg *config.Config) (llm.Provider, error) {
	switch cfg.LLM.Provider {
	case "ollama":
		return llm.NewOllama(cfg.LLM.BaseURL), nil
	case "openai":
		if cfg.LLM.APIKey == "" && cfg.LLM.BaseURL == "" {
			return nil, errors.InvalidConfig("llm.api_key", "required for the openai provider (set OPENAI_API_KEY)")
		}
		return openai.New(cfg.LLM.APIKey, cfg.LLM.BaseURL), nil
	case "mock":
		return llm.EchoProvider{}, nil
	default:
		return nil, errors.InvalidConfig("llm.provider", fmt.Sprintf("unsupported provider %q", cfg.LLM.Provider))
	}
}

func buildRegistry(cfg *config.Config, logger *slog.Logger) (*tool.Registry, error) {
	var tools []tool.Tool
	if cfg.Tools.Calculator {
		tools = append(tools, builtin.NewCalculator())
	}
	if cfg.Tools.WebSearch {
		tools = append(tools, builtin.NewWebSearch(builtin.NewDuckDuckGoSearcher(cfg.Tools.SearchEndpoint)))
	}
	if cfg.Tools.Weather {
		if cfg.Tools.WeatherAPIKey == "" {
			logger.Warn("tool.weather.disabled", slog.String("reason", "tools.weather_api_key is empty"))
		} else {
			tools = append(tools, builtin.NewWeather(cfg.Tools.WeatherAPIKey).Tool())
		}
	}
	return tool.NewRegistry(tools...)
}

// buildMemory returns the configured memory and, for backends holding a
// resource, the function that releases it.
func buildMemory(cfg *config.Config, logger *slog.Logger) (memory.Memory, func() error, error) {
	opts := []memory.Option{
		memory.WithAutoPersist(cfg.Memory.AutoPersist),
		memory.WithLogger(logger),
	}
	switch cfg.Memory.Backend {
	case "", "volatile":
		return memory.NewVolatile(opts...), nil, nil
	case "file":
		return memory.NewDurable(memory.NewFileSink(cfg.Memory.Path), opts...), nil, nil
	case "sqlite":
		sink, err := memory.OpenSQLiteSink(cfg.Memory.Path, cfg.Memory.SessionID)
		if err != nil {
			return nil, nil, errors.New(errors.CodeMemoryError, "open sqlite memory", err).
				WithContext("path", cfg.Memory.Path)
		}
		return memory.NewDurable(sink, opts...), sink.Close, nil
	default:
		return nil, nil, errors.InvalidConfig("memory.backend", fmt.Sprintf("unsupported backend %q", cfg.Memory.Backend))
	}
}

// initTelemetry installs the exporters selected by cfg. Stdout exports go to
// stderr so they never mix with the conversation.
func initTelemetry(cfg *config.Config, disabled bool, stderr io.Writer) (telemetry.ShutdownFunc, error) {
	exporter := cfg.Telemetry.Exporter
	if disabled || !cfg.Telemetry.Enabled {
		exporter = "none"
	}
	return telemetry.InitWithConfig(serviceName, version, telemetry.Config{
		Exporter:     exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		OTLPHeaders:  cfg.Telemetry.OTLPHeaders,
		Writer:       stderr,
	})
}

// eventLogger forwards agent events to the debug log.
func eventLogger(logger *slog.Logger) core.EventEmitter {
	return core.EmitterFunc(func(ctx context.Context, e core.Event) {
		logger.DebugContext(ctx, "agent.event",
			slog.String("type", string(e.Type)),
			slog.String("agent_id", e.Agent),
			slog.String("run_id", e.RunID),
			slog.Any("payload", e.Payload),
		)
	})
}

// startWatcher reloads the configuration on change and applies the new log
// level. Other settings take effect on the next start.
func startWatcher(ctx context.Context, opts config.LoadOptions, logger *slog.Logger) (*config.Watcher, error) {
	w, err := config.NewWatcher(opts, config.WithWatchLogger(logger))
	if err != nil {
		return nil, err
	}
	w.OnChange(func(cfg *config.Config) {
		telemetry.SetLogLevel(cfg.Log.Level)
		logger.Info("config.reloaded", slog.String("log_level", cfg.Log.Level))
	})
	w.Start(ctx)
	return w, nil
}
