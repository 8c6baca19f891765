// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package testing

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/jllopis/agentcore/pkg/errors"
	"github.com/jllopis/agentcore/pkg/llm"
	"github.com/jllopis/agentcore/pkg/memory"
)

// Assertions provides non-fatal assertion helpers.
type Assertions struct {
	t      testing.TB
	failed bool
}

// NewAssertions creates a new assertions helper.
func NewAssertions(t testing.TB) *Assertions {
	return &Assertions{t: t}
}

// Failed reports whether any assertion failed.
func (a *Assertions) Failed() bool {
	return a.failed
}

func (a *Assertions) fail(format string, args ...any) {
	a.t.Helper()
	a.t.Errorf(format, args...)
	a.failed = true
}

// AssertEqual asserts that two comparable values are equal.
func (a *Assertions) AssertEqual(expected, actual any, msg string) {
	a.t.Helper()
	if expected != actual {
		a.fail("%s: expected %v, got %v", msg, expected, actual)
	}
}

// AssertTrue asserts that value is true.
func (a *Assertions) AssertTrue(value bool, msg string) {
	a.t.Helper()
	if !value {
		a.fail("%s: expected true", msg)
	}
}

// AssertContains asserts that s contains substr.
func (a *Assertions) AssertContains(s, substr, msg string) {
	a.t.Helper()
	if !strings.Contains(s, substr) {
		a.fail("%s: %q does not contain %q", msg, s, substr)
	}
}

// AssertNoError asserts that err is nil.
func (a *Assertions) AssertNoError(err error, msg string) {
	a.t.Helper()
	if err != nil {
		a.fail("%s: unexpected error: %v", msg, err)
	}
}

// AssertErrorCode asserts that err carries code.
func (a *Assertions) AssertErrorCode(err error, code errors.ErrorCode, msg string) {
	a.t.Helper()
	if err == nil {
		a.fail("%s: expected %s, got nil", msg, code)
		return
	}
	if !errors.HasCode(err, code) {
		a.fail("%s: expected %s, got %v", msg, code, err)
	}
}

// RequestAssertions checks a captured model request.
type RequestAssertions struct {
	*Assertions
	req *llm.ChatRequest
}

// AssertRequest creates request assertions for req.
func (a *Assertions) AssertRequest(req *llm.ChatRequest) *RequestAssertions {
	a.t.Helper()
	if req == nil {
		a.fail("request is nil")
		return &RequestAssertions{Assertions: a, req: &llm.ChatRequest{}}
	}
	return &RequestAssertions{Assertions: a, req: req}
}

// HasModel asserts the request model.
func (r *RequestAssertions) HasModel(model string) *RequestAssertions {
	r.t.Helper()
	if r.req.Model != model {
		r.fail("expected model %q, got %q", model, r.req.Model)
	}
	return r
}

// HasRoles asserts the exact role sequence of the request messages.
func (r *RequestAssertions) HasRoles(roles ...llm.Role) *RequestAssertions {
	r.t.Helper()
	got := make([]llm.Role, len(r.req.Messages))
	for i, m := range r.req.Messages {
		got[i] = m.Role
	}
	if fmt.Sprint(got) != fmt.Sprint(roles) {
		r.fail("expected roles %v, got %v", roles, got)
	}
	return r
}

// HasToolCount asserts the number of tool definitions sent.
func (r *RequestAssertions) HasToolCount(count int) *RequestAssertions {
	r.t.Helper()
	if len(r.req.Tools) != count {
		r.fail("expected %d tools, got %d", count, len(r.req.Tools))
	}
	return r
}

// HasTool asserts a tool definition named name was sent.
func (r *RequestAssertions) HasTool(name string) *RequestAssertions {
	r.t.Helper()
	for _, tool := range r.req.Tools {
		if tool.Function.Name == name {
			return r
		}
	}
	r.fail("tool %q not found in request", name)
	return r
}

// HasUserMessage asserts a user message containing text was sent.
func (r *RequestAssertions) HasUserMessage(contains string) *RequestAssertions {
	r.t.Helper()
	for _, msg := range r.req.Messages {
		if msg.Role == llm.RoleUser && strings.Contains(msg.Content, contains) {
			return r
		}
	}
	r.fail("no user message containing %q found", contains)
	return r
}

// HistoryAssertions checks a conversation window.
type HistoryAssertions struct {
	*Assertions
	turns []memory.Turn
}

// AssertHistory creates history assertions for turns.
func (a *Assertions) AssertHistory(turns []memory.Turn) *HistoryAssertions {
	return &HistoryAssertions{Assertions: a, turns: turns}
}

// HasRoles asserts the exact role sequence.
func (h *HistoryAssertions) HasRoles(roles ...memory.Role) *HistoryAssertions {
	h.t.Helper()
	got := make([]memory.Role, len(h.turns))
	for i, turn := range h.turns {
		got[i] = turn.Role
	}
	if fmt.Sprint(got) != fmt.Sprint(roles) {
		h.fail("expected roles %v, got %v", roles, got)
	}
	return h
}

// HasToolTurn asserts a tool turn for name whose content contains text.
func (h *HistoryAssertions) HasToolTurn(name, contains string) *HistoryAssertions {
	h.t.Helper()
	for _, turn := range h.turns {
		if turn.Role == memory.RoleTool && turn.ToolName == name && strings.Contains(turn.Content, contains) {
			return h
		}
	}
	h.fail("no tool turn for %q containing %q in %s", name, contains, FormatHistory(h.turns))
	return h
}

// RequireNoError fails the test immediately if err is not nil.
func RequireNoError(t testing.TB, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
}

// RequireErrorCode fails the test immediately unless err carries code.
func RequireErrorCode(t testing.TB, err error, code errors.ErrorCode, msg string) {
	t.Helper()
	if !errors.HasCode(err, code) {
		t.Fatalf("%s: expected %s, got %v", msg, code, err)
	}
}

// AssertToolCallArgs checks the call name and returns its decoded
// arguments.
func AssertToolCallArgs(t testing.TB, tc llm.ToolCall, expectedName string) map[string]any {
	t.Helper()
	if tc.Function.Name != expectedName {
		t.Errorf("expected tool %q, got %q", expectedName, tc.Function.Name)
	}
	var args map[string]any
	if tc.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			t.Errorf("failed to parse tool arguments: %v", err)
			return nil
		}
	}
	return args
}

// FormatHistory renders turns compactly for failure messages.
func FormatHistory(turns []memory.Turn) string {
	parts := make([]string, len(turns))
	for i, turn := range turns {
		if turn.ToolName != "" {
			parts[i] = fmt.Sprintf("%s(%s): %q", turn.Role, turn.ToolName, turn.Content)
			continue
		}
		parts[i] = fmt.Sprintf("%s: %q", turn.Role, turn.Content)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
