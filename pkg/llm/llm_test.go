// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	kerrors "github.com/jllopis/agentcore/pkg/errors"
)

func TestMockProvider(t *testing.T) {
	mock := &MockProvider{Response: "Hello world"}
	resp, err := mock.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "Hello world" {
		t.Errorf("Expected 'Hello world', got '%s'", resp.Content)
	}
	if resp.HasToolCalls() {
		t.Errorf("unexpected tool calls")
	}
	if mock.Calls() != 1 {
		t.Errorf("expected 1 call, got %d", mock.Calls())
	}
}

func TestEchoProvider(t *testing.T) {
	resp, _ := EchoProvider{}.Chat(context.Background(), ChatRequest{Messages: []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "ping"},
	}})
	if resp.Content != "echo: ping" {
		t.Errorf("unexpected %q", resp.Content)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"429", &ProviderError{Provider: "x", StatusCode: 429}, true},
		{"408", &ProviderError{Provider: "x", StatusCode: 408}, true},
		{"503", &ProviderError{Provider: "x", StatusCode: 503}, true},
		{"400", &ProviderError{Provider: "x", StatusCode: 400}, false},
		{"401", &ProviderError{Provider: "x", StatusCode: 401}, false},
		{"transport", &ProviderError{Provider: "x", Err: errors.New("connection refused")}, true},
		{"canceled transport", &ProviderError{Provider: "x", Err: context.Canceled}, false},
		{"wrapped 500", fmt.Errorf("call: %w", &ProviderError{Provider: "x", StatusCode: 500}), true},
		{"recoverable typed", kerrors.New(kerrors.CodeTimeout, "t", nil).WithRecoverable(true), true},
		{"typed", kerrors.New(kerrors.CodeContextLost, "c", nil), false},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"plain", errors.New("bad"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOllamaChat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{
			"message": {"role": "assistant", "content": "",
				"tool_calls": [{"function": {"name": "calculator", "arguments": {"expression": "2+2"}}}]},
			"done": true, "prompt_eval_count": 7, "eval_count": 3
		}`))
	}))
	defer srv.Close()

	p := NewOllama(srv.URL)
	resp, err := p.Chat(context.Background(), ChatRequest{
		Model:       "llama3",
		Temperature: 0.5,
		MaxTokens:   100,
		Messages: []Message{
			{Role: RoleUser, Content: "2+2?"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c0", Type: ToolTypeFunction, Function: FunctionCall{Name: "calculator", Arguments: `{"expression":"1+1"}`}}}},
			{Role: RoleTool, Content: "2", ToolCallID: "c0", ToolName: "calculator"},
		},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Function.Name != "calculator" {
		t.Fatalf("unexpected tool calls %+v", resp.ToolCalls)
	}
	if resp.ToolCalls[0].Function.Arguments != `{"expression": "2+2"}` {
		t.Errorf("unexpected arguments %q", resp.ToolCalls[0].Function.Arguments)
	}
	if resp.Usage.TotalTokens != 10 {
		t.Errorf("unexpected usage %+v", resp.Usage)
	}

	opts := got["options"].(map[string]any)
	if opts["temperature"] != 0.5 || opts["num_predict"] != float64(100) {
		t.Errorf("unexpected options %v", opts)
	}
	msgs := got["messages"].([]any)
	assistant := msgs[1].(map[string]any)
	call := assistant["tool_calls"].([]any)[0].(map[string]any)["function"].(map[string]any)
	if call["arguments"].(map[string]any)["expression"] != "1+1" {
		t.Errorf("arguments not sent as object: %v", call)
	}
	if msgs[2].(map[string]any)["tool_name"] != "calculator" {
		t.Errorf("tool name not sent: %v", msgs[2])
	}
}

func TestOllamaStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewOllama(srv.URL).Chat(context.Background(), ChatRequest{Model: "m"})
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected ProviderError 503, got %v", err)
	}
	if !IsTransient(err) {
		t.Errorf("expected 503 to be transient")
	}
}

func TestUsageAdd(t *testing.T) {
	total := Usage{PromptTokens: 10, CompletionTokens: 2, TotalTokens: 12}.
		Add(Usage{PromptTokens: 5, CompletionTokens: 3, TotalTokens: 8})
	if total != (Usage{PromptTokens: 15, CompletionTokens: 5, TotalTokens: 20}) {
		t.Errorf("total = %+v", total)
	}
}

func TestArgumentsString(t *testing.T) {
	tests := map[string]string{
		``:            "{}",
		`{"a":1}`:     `{"a":1}`,
		`"{\"a\":1}"`: `{"a":1}`,
	}
	for in, want := range tests {
		if got := argumentsString(json.RawMessage(in)); got != want {
			t.Errorf("argumentsString(%s) = %s, want %s", in, got, want)
		}
	}
}
