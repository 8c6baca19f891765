// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"math"
	"strings"
	"time"

	"github.com/jllopis/agentcore/pkg/errors"
)

// AgentConfig holds the options of a single conversational agent.
type AgentConfig struct {
	Model            string        `koanf:"model"`
	SystemPrompt     string        `koanf:"system_prompt"`
	MaxTokens        int           `koanf:"max_tokens"`
	Temperature      float64       `koanf:"temperature"`
	MaxRetainedTurns int           `koanf:"max_retained_turns"`
	ToolsEnabled     bool          `koanf:"tools_enabled"`
	ToolTimeout      time.Duration `koanf:"tool_timeout"`
	ModelTimeout     time.Duration `koanf:"model_timeout"`
	Retry            RetryConfig   `koanf:"retry"`
}

// RetryConfig bounds model-call retries and the tool-dispatch loop.
type RetryConfig struct {
	MaxAttempts       int           `koanf:"max_attempts"`
	InitialBackoff    time.Duration `koanf:"initial_backoff"`
	MaxBackoff        time.Duration `koanf:"max_backoff"`
	Multiplier        float64       `koanf:"multiplier"`
	MaxToolIterations int           `koanf:"max_tool_iterations"`
}

// DefaultAgentConfig returns the agent defaults.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		Model:            "gpt-3.5-turbo",
		SystemPrompt:     "You are a helpful AI assistant.",
		MaxTokens:        500,
		Temperature:      0.7,
		MaxRetainedTurns: 20,
		ToolsEnabled:     true,
		ToolTimeout:      30 * time.Second,
		ModelTimeout:     60 * time.Second,
		Retry: RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    500 * time.Millisecond,
			MaxBackoff:        10 * time.Second,
			Multiplier:        2.0,
			MaxToolIterations: 5,
		},
	}
}

// Validate reports the first invalid field as an INVALID_CONFIG error.
func (c AgentConfig) Validate() error {
	switch {
	case strings.TrimSpace(c.Model) == "":
		return errors.InvalidConfig("model", "must not be empty")
	case strings.TrimSpace(c.SystemPrompt) == "":
		return errors.InvalidConfig("system_prompt", "must not be empty")
	case c.MaxTokens <= 0:
		return errors.InvalidConfig("max_tokens", "must be positive")
	case math.IsNaN(c.Temperature) || c.Temperature < 0 || c.Temperature > 2:
		return errors.InvalidConfig("temperature", "must be between 0 and 2")
	case c.MaxRetainedTurns < 1:
		return errors.InvalidConfig("max_retained_turns", "must be at least 1")
	case c.ToolTimeout < 0:
		return errors.InvalidConfig("tool_timeout", "must not be negative")
	case c.ModelTimeout < 0:
		return errors.InvalidConfig("model_timeout", "must not be negative")
	}
	return c.Retry.validate()
}

func (r RetryConfig) validate() error {
	switch {
	case r.MaxAttempts < 1:
		return errors.InvalidConfig("retry.max_attempts", "must be at least 1")
	case r.InitialBackoff < 0:
		return errors.InvalidConfig("retry.initial_backoff", "must not be negative")
	case r.MaxBackoff < 0:
		return errors.InvalidConfig("retry.max_backoff", "must not be negative")
	case r.MaxBackoff > 0 && r.MaxBackoff < r.InitialBackoff:
		return errors.InvalidConfig("retry.max_backoff", "must not be below initial_backoff")
	case math.IsNaN(r.Multiplier) || r.Multiplier < 1:
		return errors.InvalidConfig("retry.multiplier", "must be at least 1")
	case r.MaxToolIterations < 1:
		return errors.InvalidConfig("retry.max_tool_iterations", "must be at least 1")
	}
	return nil
}
