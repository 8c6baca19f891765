// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	cause := errors.New("connection reset")
	e := New(CodeModelCallFailed, "model call failed", cause)

	if e.Code != CodeModelCallFailed {
		t.Errorf("expected CodeModelCallFailed, got %v", e.Code)
	}
	if e.Message != "model call failed" {
		t.Errorf("expected message 'model call failed', got %q", e.Message)
	}
	if !errors.Is(e, cause) {
		t.Errorf("expected errors.Is to reach the cause")
	}
}

func TestBuilders(t *testing.T) {
	e := New(CodeToolExecutionFailed, "tool failed", nil).
		WithContext("tool", "calculator").
		WithAttribute("tool.name", "calculator").
		WithRecoverable(true)

	if e.Context["tool"] != "calculator" {
		t.Errorf("expected context tool to be 'calculator'")
	}
	if e.Attributes["tool.name"] != "calculator" {
		t.Errorf("expected attribute tool.name")
	}
	if !e.Recoverable || e.RecoverableString() != "true" {
		t.Errorf("expected recoverable after WithRecoverable(true)")
	}
}

func TestError(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "with cause",
			err:      New(CodeTimeout, "operation timed out", errors.New("deadline exceeded")),
			expected: "[TIMEOUT] operation timed out: deadline exceeded",
		},
		{
			name:     "without cause",
			err:      New(CodeToolNotFound, "tool not found", nil),
			expected: "[TOOL_NOT_FOUND] tool not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestHasCode(t *testing.T) {
	inner := New(CodeToolLoopExceeded, "too many tool rounds", nil)
	wrapped := fmt.Errorf("turn: %w", inner)

	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"direct", inner, CodeToolLoopExceeded, true},
		{"wrapped", wrapped, CodeToolLoopExceeded, true},
		{"other code", wrapped, CodeEmptyInput, false},
		{"plain error", errors.New("x"), CodeInternal, false},
		{"nil", nil, CodeInternal, false},
		{"nested cause", New(CodeModelCallFailed, "m", New(CodeTimeout, "t", nil)), CodeTimeout, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasCode(tt.err, tt.code); got != tt.want {
				t.Errorf("HasCode = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCodeOfAndWrap(t *testing.T) {
	if CodeOf(nil) != "" {
		t.Errorf("expected empty code for nil")
	}
	if CodeOf(errors.New("boom")) != CodeInternal {
		t.Errorf("expected CodeInternal for plain error")
	}
	if Wrap(nil) != nil {
		t.Errorf("expected nil wrap of nil")
	}
	e := New(CodeMemoryError, "save failed", nil)
	if Wrap(fmt.Errorf("ctx: %w", e)) != e {
		t.Errorf("expected Wrap to return the existing *Error")
	}
}

func TestInvalidConfig(t *testing.T) {
	e := InvalidConfig("max_tokens", "must be positive")
	if e.Code != CodeInvalidConfig {
		t.Fatalf("expected INVALID_CONFIG, got %v", e.Code)
	}
	if e.Context["field"] != "max_tokens" || e.Context["reason"] != "must be positive" {
		t.Errorf("unexpected context %v", e.Context)
	}
}

func TestMarshalJSON(t *testing.T) {
	e := New(CodeToolExecutionFailed, "tool failed", errors.New("network error")).
		WithContext("tool", "get_weather").
		WithRecoverable(true)

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("unexpected error marshaling: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("unexpected error unmarshaling: %v", err)
	}

	if result["code"] != "TOOL_EXECUTION_FAILED" {
		t.Errorf("expected code 'TOOL_EXECUTION_FAILED', got %v", result["code"])
	}
	if result["error"] != "network error" {
		t.Errorf("expected cause text, got %v", result["error"])
	}
	if result["recoverable"] != true {
		t.Errorf("expected recoverable true")
	}
}
