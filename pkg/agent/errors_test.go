// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/jllopis/agentcore/pkg/errors"
	"github.com/jllopis/agentcore/pkg/llm"
)

func TestWrapModelError(t *testing.T) {
	if wrapModelError(nil, "m", 1) != nil {
		t.Fatal("expected nil for nil error")
	}
	cause := &llm.ProviderError{Provider: "openai", StatusCode: 500}
	e := wrapModelError(cause, "gpt-test", 3)
	if e.Code != errors.CodeModelCallFailed {
		t.Errorf("code = %s", e.Code)
	}
	if e.Context["model"] != "gpt-test" || e.Context["attempts"] != 3 {
		t.Errorf("context = %v", e.Context)
	}
	if e.Attributes["gen_ai.request.model"] != "gpt-test" {
		t.Errorf("attributes = %v", e.Attributes)
	}
	if !stderrors.Is(e, cause) {
		t.Error("cause not reachable")
	}
}

func TestWrapMemoryError(t *testing.T) {
	invalid := errors.New(errors.CodeInvalidTurn, "missing role", nil)
	if got := wrapMemoryError(invalid, "append"); got != error(invalid) {
		t.Errorf("typed error replaced: %v", got)
	}
	got := wrapMemoryError(stderrors.New("disk full"), "save")
	if errors.CodeOf(got) != errors.CodeMemoryError {
		t.Errorf("code = %s", errors.CodeOf(got))
	}
	if wrapMemoryError(nil, "save") != nil {
		t.Error("expected nil")
	}
}

func TestToolFailureContent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code errors.ErrorCode
		text string
	}{
		{
			name: "not found",
			err:  errors.New(errors.CodeToolNotFound, `unknown tool "x"`, nil),
			code: errors.CodeToolNotFound,
			text: `TOOL_NOT_FOUND: unknown tool "x"`,
		},
		{
			name: "invalid arguments",
			err:  errors.New(errors.CodeInvalidArguments, `parameter "a": missing required parameter`, nil),
			code: errors.CodeInvalidArguments,
			text: `INVALID_ARGUMENTS: parameter "a": missing required parameter`,
		},
		{
			name: "timeout",
			err:  errors.New(errors.CodeTimeout, "operation exceeded timeout", context.DeadlineExceeded),
			code: errors.CodeToolExecutionFailed,
			text: "TOOL_EXECUTION_FAILED: timed out after 2s",
		},
		{
			name: "canceled",
			err:  errors.New(errors.CodeContextLost, "context canceled", context.Canceled),
			code: errors.CodeToolExecutionFailed,
			text: "TOOL_EXECUTION_FAILED: canceled",
		},
		{
			name: "plain error",
			err:  stderrors.New("connection refused"),
			code: errors.CodeToolExecutionFailed,
			text: "TOOL_EXECUTION_FAILED: connection refused",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, e := failureContent(tt.err, "x", 2*time.Second)
			if e.Code != tt.code {
				t.Errorf("code = %s, want %s", e.Code, tt.code)
			}
			if text != tt.text {
				t.Errorf("text = %q, want %q", text, tt.text)
			}
		})
	}
}

func TestLoopExceededError(t *testing.T) {
	e := loopExceededError(5)
	if !errors.HasCode(e, errors.CodeToolLoopExceeded) || e.Context["max_iterations"] != 5 {
		t.Errorf("unexpected error %v %v", e, e.Context)
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		StateIdle:          "idle",
		StateAwaitingModel: "awaiting_model",
		StateToolRequested: "tool_requested",
		StateResponding:    "responding",
		State(42):          "unknown",
	} {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
}
