// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jllopis/agentcore/pkg/errors"
	"github.com/jllopis/agentcore/pkg/tool"
)

type stubCaller struct {
	tools    []mcp.Tool
	lastName string
	lastArgs map[string]any
	result   *mcp.CallToolResult
	err      error
}

func (s *stubCaller) CallTool(_ context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	s.lastName = name
	s.lastArgs = args
	return s.result, s.err
}

func (s *stubCaller) ListTools(context.Context) ([]mcp.Tool, error) {
	return s.tools, s.err
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}}}
}

func TestDescriptorFromInputSchema(t *testing.T) {
	remote := mcp.Tool{
		Name:        "search",
		Description: "Search the docs",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"query": map[string]any{"type": "string", "description": "terms"},
				"limit": map[string]any{"type": "integer"},
				"mode":  map[string]any{"type": "string", "enum": []any{"fast", "full"}},
				"extra": map[string]any{},
			},
			Required: []string{"query"},
		},
	}

	desc, err := Descriptor(remote)
	if err != nil {
		t.Fatalf("Descriptor: %v", err)
	}
	if desc.Name != "search" || desc.Description != "Search the docs" {
		t.Fatalf("unexpected descriptor %+v", desc)
	}

	want := []tool.Parameter{
		{Name: "extra"},
		{Name: "limit", Type: tool.TypeInteger},
		{Name: "mode", Type: tool.TypeString, Enum: []string{"fast", "full"}},
		{Name: "query", Type: tool.TypeString, Description: "terms", Required: true},
	}
	if len(desc.Parameters) != len(want) {
		t.Fatalf("parameters = %+v", desc.Parameters)
	}
	for i, p := range want {
		got := desc.Parameters[i]
		if got.Name != p.Name || got.Type != p.Type || got.Description != p.Description || got.Required != p.Required || len(got.Enum) != len(p.Enum) {
			t.Errorf("parameter %d = %+v, want %+v", i, got, p)
		}
	}
}

func TestDescriptorFromRawSchema(t *testing.T) {
	remote := mcp.Tool{
		Name:           "lookup",
		RawInputSchema: json.RawMessage(`{"type":"object","properties":{"id":{"type":"number"}},"required":["id"]}`),
	}
	desc, err := Descriptor(remote)
	if err != nil {
		t.Fatalf("Descriptor: %v", err)
	}
	if p, ok := desc.Parameter("id"); !ok || p.Type != tool.TypeNumber || !p.Required {
		t.Errorf("id parameter = %+v", p)
	}

	_, err = Descriptor(mcp.Tool{Name: "broken", RawInputSchema: json.RawMessage(`{`)})
	if !errors.HasCode(err, errors.CodeInvalidConfig) {
		t.Errorf("expected INVALID_CONFIG, got %v", err)
	}
}

func TestNewToolAdapterRejectsIncompleteTools(t *testing.T) {
	if _, err := NewToolAdapter(mcp.Tool{}, &stubCaller{}); !errors.HasCode(err, errors.CodeInvalidConfig) {
		t.Errorf("empty name: %v", err)
	}
	if _, err := NewToolAdapter(mcp.Tool{Name: "x"}, nil); !errors.HasCode(err, errors.CodeInvalidConfig) {
		t.Errorf("nil caller: %v", err)
	}
}

func TestToolAdapterInvoke(t *testing.T) {
	tests := []struct {
		name    string
		caller  *stubCaller
		want    any
		errCode errors.ErrorCode
	}{
		{
			name:   "text content",
			caller: &stubCaller{result: textResult("sunny")},
			want:   "sunny",
		},
		{
			name:   "structured content",
			caller: &stubCaller{result: &mcp.CallToolResult{StructuredContent: map[string]any{"ok": true}}},
		},
		{
			name:    "error result",
			caller:  &stubCaller{result: &mcp.CallToolResult{IsError: true, Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "quota exceeded"}}}},
			errCode: errors.CodeToolExecutionFailed,
		},
		{
			name:    "nil result",
			caller:  &stubCaller{},
			errCode: errors.CodeToolExecutionFailed,
		},
		{
			name:    "transport failure",
			caller:  &stubCaller{err: stderrors.New("broken pipe")},
			errCode: errors.CodeInternal,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, err := NewToolAdapter(mcp.Tool{Name: "remote"}, tt.caller)
			if err != nil {
				t.Fatalf("NewToolAdapter: %v", err)
			}
			out, err := adapter.Invoke(context.Background(), map[string]any{"city": "Madrid"})
			if tt.errCode != "" {
				if errors.CodeOf(err) != tt.errCode {
					t.Fatalf("error code = %s (%v), want %s", errors.CodeOf(err), err, tt.errCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("Invoke: %v", err)
			}
			if tt.want != nil && out != tt.want {
				t.Errorf("output = %v, want %v", out, tt.want)
			}
			if tt.caller.lastName != "remote" || tt.caller.lastArgs["city"] != "Madrid" {
				t.Errorf("call = %s %v", tt.caller.lastName, tt.caller.lastArgs)
			}
		})
	}
}

func TestToolAdapterErrorTextReachesModel(t *testing.T) {
	caller := &stubCaller{result: &mcp.CallToolResult{IsError: true, Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "quota exceeded"}}}}
	reg, err := tool.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	caller.tools = []mcp.Tool{{Name: "remote"}}
	if _, err := RegisterTools(context.Background(), reg, caller); err != nil {
		t.Fatalf("RegisterTools: %v", err)
	}

	_, err = reg.Invoke(context.Background(), "remote", nil)
	if got := tool.FailureText(err); got != "TOOL_EXECUTION_FAILED: quota exceeded" {
		t.Errorf("failure text = %q", got)
	}
}

func TestRegisterTools(t *testing.T) {
	caller := &stubCaller{
		tools: []mcp.Tool{
			{Name: "alpha", InputSchema: mcp.ToolInputSchema{Type: "object"}},
			{Name: "beta", InputSchema: mcp.ToolInputSchema{Type: "object"}},
		},
		result: textResult("done"),
	}
	reg, err := tool.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	names, err := RegisterTools(context.Background(), reg, caller)
	if err != nil {
		t.Fatalf("RegisterTools: %v", err)
	}
	if len(names) != 2 || names[0] != "alpha" || names[1] != "beta" || reg.Len() != 2 {
		t.Fatalf("registered %v, registry has %d", names, reg.Len())
	}

	got, ok := reg.Get("alpha")
	if !ok {
		t.Fatal("alpha not registered")
	}
	if src, ok := got.(interface{ Source() string }); !ok || src.Source() != "mcp" {
		t.Error("adapter does not report its source")
	}

	// A second registration of the same server collides.
	if _, err := RegisterTools(context.Background(), reg, caller); !errors.HasCode(err, errors.CodeInvalidConfig) {
		t.Errorf("expected duplicate registration error, got %v", err)
	}
}

func TestRegisterToolsListFailure(t *testing.T) {
	reg, _ := tool.NewRegistry()
	caller := &stubCaller{err: stderrors.New("connection refused")}
	if _, err := RegisterTools(context.Background(), reg, caller); err == nil {
		t.Fatal("expected list failure")
	}
	if reg.Len() != 0 {
		t.Errorf("registry changed: %d tools", reg.Len())
	}
}
