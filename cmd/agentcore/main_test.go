// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/jllopis/agentcore/pkg/config"
	"github.com/jllopis/agentcore/pkg/errors"
)

func TestParseGlobalFlags(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantConfig []string
		wantRest   []string
		wantJSON   bool
		wantHelp   bool
		wantErr    bool
	}{
		{name: "empty"},
		{
			name:     "command only",
			args:     []string{"chat", "-prompt", "hi"},
			wantRest: []string{"chat", "-prompt", "hi"},
		},
		{
			name:       "config flags before command",
			args:       []string{"--config", "agent.yaml", "--set=agent.model=llama3", "--json", "tools"},
			wantConfig: []string{"--config", "agent.yaml", "--set=agent.model=llama3"},
			wantRest:   []string{"tools"},
			wantJSON:   true,
		},
		{
			name:       "profile",
			args:       []string{"--profile", "dev"},
			wantConfig: []string{"--profile", "dev"},
		},
		{
			name:     "double dash",
			args:     []string{"--", "--json"},
			wantRest: []string{"--json"},
		},
		{name: "help", args: []string{"-h", "chat"}, wantHelp: true},
		{name: "missing value", args: []string{"--set"}, wantErr: true},
		{name: "unknown flag", args: []string{"--verbose"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags, rest, err := parseGlobalFlags(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(flags.ConfigArgs, tt.wantConfig) {
				t.Errorf("config args = %q, want %q", flags.ConfigArgs, tt.wantConfig)
			}
			if !reflect.DeepEqual(rest, tt.wantRest) {
				t.Errorf("rest = %q, want %q", rest, tt.wantRest)
			}
			if flags.JSON != tt.wantJSON || flags.Help != tt.wantHelp {
				t.Errorf("json=%v help=%v, want %v %v", flags.JSON, flags.Help, tt.wantJSON, tt.wantHelp)
			}
		})
	}
}

func TestGlobalFlagsFeedConfigLoader(t *testing.T) {
	flags, _, err := parseGlobalFlags([]string{"--set", "agent.model=llama3", "--set=llm.provider=mock", "chat"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	opts, rest, err := config.ParseCLIArgs(flags.ConfigArgs)
	if err != nil {
		t.Fatalf("ParseCLIArgs: %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("rest = %q", rest)
	}
	cfg, err := config.LoadWith(opts)
	if err != nil {
		t.Fatalf("LoadWith: %v", err)
	}
	if cfg.Agent.Model != "llama3" || cfg.LLM.Provider != "mock" {
		t.Fatalf("overrides not applied: model=%q provider=%q", cfg.Agent.Model, cfg.LLM.Provider)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.InvalidConfig("agent.model", "must not be empty"), 2},
		{NewConfigError(fmt.Errorf("bad yaml"), "agent.yaml"), 2},
		{errors.New(errors.CodeContextLost, "canceled", nil), 130},
		{errors.New(errors.CodeModelCallFailed, "model call failed", nil), 1},
		{fmt.Errorf("plain"), 1},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestCLIErrorPrint(t *testing.T) {
	err := WrapError(errors.New(errors.CodeToolLoopExceeded, "model still requested tools after 5 rounds", nil))

	var text bytes.Buffer
	err.PrintError(&text, false)
	if !strings.Contains(text.String(), "Error [Tool Loop Exceeded]: model still requested tools after 5 rounds") {
		t.Errorf("text output = %q", text.String())
	}
	if !strings.Contains(text.String(), "Hint: raise agent.retry.max_tool_iterations") {
		t.Errorf("missing hint in %q", text.String())
	}

	var out bytes.Buffer
	err.PrintError(&out, true)
	var decoded struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Hint    string `json:"hint"`
		} `json:"error"`
	}
	if jerr := json.Unmarshal(out.Bytes(), &decoded); jerr != nil {
		t.Fatalf("json output %q: %v", out.String(), jerr)
	}
	if decoded.Error.Code != "TOOL_LOOP_EXCEEDED" || decoded.Error.Hint == "" {
		t.Errorf("decoded = %+v", decoded.Error)
	}
}

func TestWrapErrorKeepsCLIError(t *testing.T) {
	ce := NewInvalidArgumentError("command", "unknown command \"fly\"")
	if WrapError(ce) != ce {
		t.Fatal("WrapError should return an existing CLIError unchanged")
	}
	if !errors.HasCode(ce, errors.CodeInvalidConfig) {
		t.Fatal("CLIError should expose its code through the error chain")
	}
}

func TestConfigErrorKeepsFieldError(t *testing.T) {
	ce := NewConfigError(errors.InvalidConfig("memory.path", "required for the file backend"), "agent.yaml")
	if ce.Err.Context["field"] != "memory.path" {
		t.Errorf("field context = %v", ce.Err.Context["field"])
	}
	if !strings.Contains(ce.Hint, "agent.yaml") {
		t.Errorf("hint = %q", ce.Hint)
	}
}
