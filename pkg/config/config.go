// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads application configuration with koanf and validates
// the agent options.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/jllopis/agentcore/pkg/errors"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// nesting levels: AGENTCORE_AGENT__MAX_TOKENS sets agent.max_tokens.
const EnvPrefix = "AGENTCORE_"

type Config struct {
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	LLM       LLMConfig       `koanf:"llm"`
	Memory    MemoryConfig    `koanf:"memory"`
	Tools     ToolsConfig     `koanf:"tools"`
	MCP       MCPConfig       `koanf:"mcp"`
	Agent     AgentConfig     `koanf:"agent"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type TelemetryConfig struct {
	Enabled      bool              `koanf:"enabled"`
	Exporter     string            `koanf:"exporter"` // stdout, otlp
	OTLPEndpoint string            `koanf:"otlp_endpoint"`
	OTLPInsecure bool              `koanf:"otlp_insecure"`
	OTLPHeaders  map[string]string `koanf:"otlp_headers"`
}

type LLMConfig struct {
	Provider string `koanf:"provider"` // ollama, openai, mock
	BaseURL  string `koanf:"base_url"`
	APIKey   string `koanf:"api_key"`
}

type MemoryConfig struct {
	Backend     string `koanf:"backend"` // volatile, file, sqlite
	Path        string `koanf:"path"`
	SessionID   string `koanf:"session_id"`
	AutoPersist bool   `koanf:"auto_persist"`
}

type ToolsConfig struct {
	Calculator     bool   `koanf:"calculator"`
	WebSearch      bool   `koanf:"web_search"`
	Weather        bool   `koanf:"weather"`
	WeatherAPIKey  string `koanf:"weather_api_key"`
	SearchEndpoint string `koanf:"search_endpoint"`
}

type MCPConfig struct {
	Servers []MCPServerConfig `koanf:"servers"`
}

// MCPServerConfig describes a remote MCP server whose tools are exposed to
// the agent. Transport is stdio (Command/Args) or http (URL).
type MCPServerConfig struct {
	Name      string            `koanf:"name"`
	Transport string            `koanf:"transport"`
	Command   string            `koanf:"command"`
	Args      []string          `koanf:"args"`
	Env       map[string]string `koanf:"env"`
	URL       string            `koanf:"url"`
}

// LoadOptions selects the configuration sources layered over the defaults.
type LoadOptions struct {
	// Path is the base YAML file. Empty skips file loading.
	Path string
	// Profile loads <name>.<profile><ext> next to Path when it exists.
	Profile string
	// Overrides are key=value pairs applied last. Values starting with
	// '{' or '[' are decoded as JSON.
	Overrides []string
}

// Load reads defaults, the file at path and the environment.
func Load(path string) (*Config, error) {
	return LoadWith(LoadOptions{Path: path})
}

// LoadWithProfile is Load plus the profile overlay file.
func LoadWithProfile(path, profile string) (*Config, error) {
	return LoadWith(LoadOptions{Path: path, Profile: profile})
}

// LoadWithCLI extracts --config, --profile (alias --env) and repeated
// --set key=value from args and loads with them. Other arguments are
// ignored.
func LoadWithCLI(args []string) (*Config, error) {
	opts, _, err := parseCLIOverrides(args)
	if err != nil {
		return nil, err
	}
	return LoadWith(opts)
}

// LoadWith layers defaults, file, profile file, environment and overrides,
// in that order.
func LoadWith(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")
	setDefaults(k)

	if opts.Path != "" {
		if err := k.Load(file.Provider(opts.Path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config %s: %w", opts.Path, err)
		}
		if profilePath := profileConfigPath(opts.Path, opts.Profile); profilePath != "" {
			if err := k.Load(file.Provider(profilePath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load profile %s: %w", profilePath, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	applyFallbacks(k)

	for _, kv := range opts.Overrides {
		key, value, err := parseOverride(kv)
		if err != nil {
			return nil, err
		}
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("set %s: %w", key, err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(k *koanf.Koanf) {
	k.Set("log.level", "info")
	k.Set("log.format", "text")

	k.Set("telemetry.enabled", false)
	k.Set("telemetry.exporter", "stdout")
	k.Set("telemetry.otlp_endpoint", "localhost:4317")
	k.Set("telemetry.otlp_insecure", true)

	k.Set("llm.provider", "openai")

	k.Set("memory.backend", "volatile")
	k.Set("memory.session_id", "default")
	k.Set("memory.auto_persist", true)

	k.Set("tools.calculator", true)
	k.Set("tools.web_search", true)
	k.Set("tools.weather", true)
	k.Set("tools.search_endpoint", "https://api.duckduckgo.com/")

	a := DefaultAgentConfig()
	k.Set("agent.model", a.Model)
	k.Set("agent.system_prompt", a.SystemPrompt)
	k.Set("agent.max_tokens", a.MaxTokens)
	k.Set("agent.temperature", a.Temperature)
	k.Set("agent.max_retained_turns", a.MaxRetainedTurns)
	k.Set("agent.tools_enabled", a.ToolsEnabled)
	k.Set("agent.tool_timeout", a.ToolTimeout.String())
	k.Set("agent.model_timeout", a.ModelTimeout.String())
	k.Set("agent.retry.max_attempts", a.Retry.MaxAttempts)
	k.Set("agent.retry.initial_backoff", a.Retry.InitialBackoff.String())
	k.Set("agent.retry.max_backoff", a.Retry.MaxBackoff.String())
	k.Set("agent.retry.multiplier", a.Retry.Multiplier)
	k.Set("agent.retry.max_tool_iterations", a.Retry.MaxToolIterations)
}

// envKey maps AGENTCORE_AGENT__MAX_TOKENS to agent.max_tokens.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// applyFallbacks honours the conventional provider key variables when the
// prefixed ones are unset.
func applyFallbacks(k *koanf.Koanf) {
	if k.String("llm.api_key") == "" {
		if v := os.Getenv("OPENAI_API_KEY"); v != "" {
			k.Set("llm.api_key", v)
		}
	}
	if k.String("tools.weather_api_key") == "" {
		if v := os.Getenv("OPENWEATHER_API_KEY"); v != "" {
			k.Set("tools.weather_api_key", v)
		}
	}
}

// profileConfigPath returns the profile overlay for base, or "" when the
// profile is empty or its file does not exist.
func profileConfigPath(base, profile string) string {
	if base == "" || profile == "" {
		return ""
	}
	ext := filepath.Ext(base)
	path := strings.TrimSuffix(base, ext) + "." + profile + ext
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// ParseCLIArgs extracts the configuration flags accepted by LoadWithCLI
// and returns the load options together with the remaining arguments.
func ParseCLIArgs(args []string) (LoadOptions, []string, error) {
	return parseCLIOverrides(args)
}

func parseCLIOverrides(args []string) (LoadOptions, []string, error) {
	var (
		opts LoadOptions
		rest []string
	)
	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if !strings.HasPrefix(arg, "-") {
			rest = append(rest, arg)
			continue
		}
		switch name {
		case "config", "profile", "env", "set":
		default:
			rest = append(rest, arg)
			continue
		}
		if !hasValue {
			if i+1 >= len(args) {
				return opts, nil, errors.InvalidConfig(name, "missing value")
			}
			i++
			value = args[i]
		}
		switch name {
		case "config":
			opts.Path = value
		case "profile", "env":
			opts.Profile = value
		case "set":
			if _, _, err := parseOverride(value); err != nil {
				return opts, nil, err
			}
			opts.Overrides = append(opts.Overrides, value)
		}
	}
	return opts, rest, nil
}

func parseOverride(kv string) (string, any, error) {
	key, raw, ok := strings.Cut(kv, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", nil, errors.InvalidConfig("set", fmt.Sprintf("expected key=value, got %q", kv))
	}
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[") {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return "", nil, errors.InvalidConfig(key, "invalid JSON value: "+err.Error())
		}
		return key, v, nil
	}
	return key, raw, nil
}

// Validate checks the agent section and the enumerated options.
func (c *Config) Validate() error {
	if err := oneOf("log.level", strings.ToLower(c.Log.Level), "debug", "info", "warn", "error"); err != nil {
		return err
	}
	if err := oneOf("log.format", c.Log.Format, "text", "json"); err != nil {
		return err
	}
	if c.Telemetry.Enabled {
		if err := oneOf("telemetry.exporter", c.Telemetry.Exporter, "stdout", "otlp"); err != nil {
			return err
		}
	}
	if err := oneOf("llm.provider", c.LLM.Provider, "ollama", "openai", "mock"); err != nil {
		return err
	}
	if err := oneOf("memory.backend", c.Memory.Backend, "volatile", "file", "sqlite"); err != nil {
		return err
	}
	if c.Memory.Backend != "volatile" && c.Memory.Path == "" {
		return errors.InvalidConfig("memory.path", "required for the "+c.Memory.Backend+" backend")
	}
	for i, s := range c.MCP.Servers {
		field := fmt.Sprintf("mcp.servers[%d]", i)
		switch s.Transport {
		case "", "stdio":
			if s.Command == "" {
				return errors.InvalidConfig(field+".command", "required for stdio transport")
			}
		case "http":
			if s.URL == "" {
				return errors.InvalidConfig(field+".url", "required for http transport")
			}
		default:
			return errors.InvalidConfig(field+".transport", "must be stdio or http")
		}
	}
	if err := c.Agent.Validate(); err != nil {
		if e, ok := errors.As(err); ok {
			if field, ok := e.Context["field"].(string); ok {
				return errors.InvalidConfig("agent."+field, fmt.Sprint(e.Context["reason"]))
			}
		}
		return err
	}
	return nil
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return errors.InvalidConfig(field, fmt.Sprintf("%q is not one of %s", value, strings.Join(allowed, ", ")))
}
