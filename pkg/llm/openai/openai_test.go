// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jllopis/agentcore/pkg/llm"
)

func newServer(t *testing.T, status int, body string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/responses") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if seen != nil {
			data, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(data, seen)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestChatText(t *testing.T) {
	body := `{
		"id": "resp_1",
		"object": "response",
		"created_at": 0,
		"model": "gpt-test",
		"status": "completed",
		"output": [{
			"type": "message",
			"id": "msg_1",
			"role": "assistant",
			"status": "completed",
			"content": [{"type": "output_text", "text": "4", "annotations": []}]
		}],
		"usage": {"input_tokens": 5, "output_tokens": 1, "total_tokens": 6}
	}`
	var seen map[string]any
	srv := newServer(t, http.StatusOK, body, &seen)

	p := New("test-key", srv.URL+"/")
	resp, err := p.Chat(context.Background(), llm.ChatRequest{
		Model: "gpt-test",
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "be brief"},
			{Role: llm.RoleUser, Content: "2+2?"},
		},
		Temperature: 0.2,
		MaxTokens:   64,
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "4" {
		t.Errorf("content = %q, want 4", resp.Content)
	}
	if resp.HasToolCalls() {
		t.Errorf("expected no tool calls")
	}
	if resp.Usage.TotalTokens != 6 {
		t.Errorf("total tokens = %d, want 6", resp.Usage.TotalTokens)
	}
	if seen["model"] != "gpt-test" {
		t.Errorf("model sent = %v", seen["model"])
	}
	if seen["max_output_tokens"] != float64(64) {
		t.Errorf("max_output_tokens sent = %v", seen["max_output_tokens"])
	}
	if input, _ := seen["input"].([]any); len(input) != 2 {
		t.Errorf("expected 2 input items, got %v", seen["input"])
	}
}

func TestChatFunctionCall(t *testing.T) {
	body := `{
		"id": "resp_2",
		"object": "response",
		"created_at": 0,
		"model": "gpt-test",
		"status": "completed",
		"output": [{
			"type": "function_call",
			"id": "fc_1",
			"call_id": "call_1",
			"name": "calculator",
			"arguments": "{\"expression\":\"2+2\"}",
			"status": "completed"
		}],
		"usage": {"input_tokens": 5, "output_tokens": 2, "total_tokens": 7}
	}`
	var seen map[string]any
	srv := newServer(t, http.StatusOK, body, &seen)

	p := New("test-key", srv.URL+"/")
	resp, err := p.Chat(context.Background(), llm.ChatRequest{
		Model: "gpt-test",
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "2+2?"},
			{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{
				ID: "call_0", Type: llm.ToolTypeFunction,
				Function: llm.FunctionCall{Name: "calculator", Arguments: `{"expression":"1+1"}`},
			}}},
			{Role: llm.RoleTool, ToolCallID: "call_0", ToolName: "calculator", Content: "2"},
		},
		Tools: []llm.Tool{{
			Type: llm.ToolTypeFunction,
			Function: llm.FunctionDef{
				Name:        "calculator",
				Description: "evaluate arithmetic",
				Parameters:  map[string]any{"type": "object"},
			},
		}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	call := resp.ToolCalls[0]
	if call.ID != "call_1" || call.Function.Name != "calculator" || call.Function.Arguments != `{"expression":"2+2"}` {
		t.Errorf("unexpected call %+v", call)
	}

	input, _ := seen["input"].([]any)
	if len(input) != 3 {
		t.Fatalf("expected 3 input items, got %d", len(input))
	}
	if item, _ := input[1].(map[string]any); item["type"] != "function_call" || item["call_id"] != "call_0" {
		t.Errorf("unexpected function_call item %v", input[1])
	}
	if item, _ := input[2].(map[string]any); item["type"] != "function_call_output" || item["output"] != "2" {
		t.Errorf("unexpected function_call_output item %v", input[2])
	}
	if tools, _ := seen["tools"].([]any); len(tools) != 1 {
		t.Errorf("expected one tool sent, got %v", seen["tools"])
	}
}

func TestChatStatusError(t *testing.T) {
	srv := newServer(t, http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"rate_limit"}}`, nil)

	p := New("test-key", srv.URL+"/")
	_, err := p.Chat(context.Background(), llm.ChatRequest{
		Model:    "gpt-test",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	var perr *llm.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %T", err)
	}
	if perr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", perr.StatusCode)
	}
	if !llm.IsTransient(err) {
		t.Errorf("429 should be transient")
	}
}
