// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package testing

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jllopis/agentcore/pkg/llm"
	"github.com/jllopis/agentcore/pkg/tool"
)

// ScenarioProvider is a scripted llm.Provider. Responses are returned in
// the order they were queued and every request is captured.
type ScenarioProvider struct {
	mu           sync.Mutex
	responses    []ScriptedResponse
	currentIndex int
	requests     []llm.ChatRequest
	fallback     *ScriptedResponse
	onChat       func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)
}

// ScriptedResponse defines one scripted model reply.
type ScriptedResponse struct {
	Content   string
	ToolCalls []llm.ToolCall
	Error     error
	Usage     llm.Usage
	// Condition, when set, skips this response unless it holds for the
	// request.
	Condition func(req llm.ChatRequest) bool
}

// NewScenarioProvider creates an empty scripted provider.
func NewScenarioProvider() *ScenarioProvider {
	return &ScenarioProvider{}
}

// AddResponse queues a plain text reply.
func (p *ScenarioProvider) AddResponse(content string) *ScenarioProvider {
	return p.AddScriptedResponse(ScriptedResponse{Content: content})
}

// AddToolCallResponse queues a reply requesting tool calls.
func (p *ScenarioProvider) AddToolCallResponse(toolCalls ...llm.ToolCall) *ScenarioProvider {
	return p.AddScriptedResponse(ScriptedResponse{ToolCalls: toolCalls})
}

// AddErrorResponse queues a failure.
func (p *ScenarioProvider) AddErrorResponse(err error) *ScenarioProvider {
	return p.AddScriptedResponse(ScriptedResponse{Error: err})
}

// AddScriptedResponse queues a fully configured reply.
func (p *ScenarioProvider) AddScriptedResponse(resp ScriptedResponse) *ScenarioProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, resp)
	return p
}

// WithFallback sets the reply used once the queue is exhausted. Without it
// an exhausted provider returns an error.
func (p *ScenarioProvider) WithFallback(resp ScriptedResponse) *ScenarioProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fallback = &resp
	return p
}

// WithChatFunc replaces the script with fn. Requests are still captured.
func (p *ScenarioProvider) WithChatFunc(fn func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)) *ScenarioProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChat = fn
	return p
}

// Chat implements llm.Provider.
func (p *ScenarioProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	p.mu.Lock()
	p.requests = append(p.requests, cloneRequest(req))
	onChat := p.onChat
	p.mu.Unlock()

	if onChat != nil {
		return onChat(ctx, req)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := p.next(req)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return &llm.ChatResponse{
		Content:   resp.Content,
		ToolCalls: append([]llm.ToolCall(nil), resp.ToolCalls...),
		Usage:     resp.Usage,
	}, nil
}

func (p *ScenarioProvider) next(req llm.ChatRequest) (ScriptedResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.currentIndex < len(p.responses) {
		resp := p.responses[p.currentIndex]
		p.currentIndex++
		if resp.Condition == nil || resp.Condition(req) {
			return resp, nil
		}
	}
	if p.fallback != nil {
		return *p.fallback, nil
	}
	return ScriptedResponse{}, fmt.Errorf("no more scripted responses (call %d)", len(p.requests))
}

// Requests returns all captured requests.
func (p *ScenarioProvider) Requests() []llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]llm.ChatRequest(nil), p.requests...)
}

// LastRequest returns the most recent request, or nil.
func (p *ScenarioProvider) LastRequest() *llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requests) == 0 {
		return nil
	}
	req := p.requests[len(p.requests)-1]
	return &req
}

// CallCount returns the number of Chat calls made.
func (p *ScenarioProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// Reset rewinds the script and forgets captured requests.
func (p *ScenarioProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentIndex = 0
	p.requests = nil
}

func cloneRequest(req llm.ChatRequest) llm.ChatRequest {
	req.Messages = append([]llm.Message(nil), req.Messages...)
	req.Tools = append([]llm.Tool(nil), req.Tools...)
	return req
}

// ToolCallBuilder helps construct model tool calls.
type ToolCallBuilder struct {
	id   string
	name string
	args map[string]any
	raw  *string
}

// NewToolCall creates a builder for a call to name.
func NewToolCall(name string) *ToolCallBuilder {
	return &ToolCallBuilder{
		name: name,
		args: make(map[string]any),
	}
}

// WithID sets the call id.
func (b *ToolCallBuilder) WithID(id string) *ToolCallBuilder {
	b.id = id
	return b
}

// WithArg adds one argument.
func (b *ToolCallBuilder) WithArg(key string, value any) *ToolCallBuilder {
	b.args[key] = value
	return b
}

// WithArgs replaces all arguments.
func (b *ToolCallBuilder) WithArgs(args map[string]any) *ToolCallBuilder {
	b.args = args
	return b
}

// WithRawArguments sets the argument text verbatim, e.g. to send
// malformed JSON.
func (b *ToolCallBuilder) WithRawArguments(raw string) *ToolCallBuilder {
	b.raw = &raw
	return b
}

// Build creates the tool call.
func (b *ToolCallBuilder) Build() llm.ToolCall {
	args := ""
	if b.raw != nil {
		args = *b.raw
	} else {
		data, _ := json.Marshal(b.args)
		args = string(data)
	}
	return llm.ToolCall{
		ID:   b.id,
		Type: llm.ToolTypeFunction,
		Function: llm.FunctionCall{
			Name:      b.name,
			Arguments: args,
		},
	}
}

// StubTool is a tool.Tool backed by a function that records its
// invocations.
type StubTool struct {
	desc tool.Descriptor
	fn   func(ctx context.Context, args map[string]any) (any, error)

	mu    sync.Mutex
	calls []map[string]any
}

// NewStubTool creates a stub. A nil fn returns "ok".
func NewStubTool(desc tool.Descriptor, fn func(ctx context.Context, args map[string]any) (any, error)) *StubTool {
	if fn == nil {
		fn = func(context.Context, map[string]any) (any, error) { return "ok", nil }
	}
	return &StubTool{desc: desc, fn: fn}
}

// Descriptor implements tool.Tool.
func (s *StubTool) Descriptor() tool.Descriptor { return s.desc }

// Invoke implements tool.Tool.
func (s *StubTool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	s.mu.Lock()
	s.calls = append(s.calls, args)
	s.mu.Unlock()
	return s.fn(ctx, args)
}

// Calls returns the arguments of every invocation, in order.
func (s *StubTool) Calls() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.calls...)
}

// ToolDefinitionBuilder builds tool descriptors for tests.
type ToolDefinitionBuilder struct {
	desc tool.Descriptor
}

// NewToolDefinition starts a descriptor named name.
func NewToolDefinition(name string) *ToolDefinitionBuilder {
	return &ToolDefinitionBuilder{desc: tool.Descriptor{Name: name}}
}

// WithDescription sets the tool description.
func (b *ToolDefinitionBuilder) WithDescription(desc string) *ToolDefinitionBuilder {
	b.desc.Description = desc
	return b
}

// WithParameter appends a parameter.
func (b *ToolDefinitionBuilder) WithParameter(name string, typ tool.ParamType, description string, required bool) *ToolDefinitionBuilder {
	b.desc.Parameters = append(b.desc.Parameters, tool.Parameter{
		Name:        name,
		Type:        typ,
		Description: description,
		Required:    required,
	})
	return b
}

// Build returns the descriptor.
func (b *ToolDefinitionBuilder) Build() tool.Descriptor {
	d := b.desc
	d.Parameters = append([]tool.Parameter(nil), b.desc.Parameters...)
	return d
}
