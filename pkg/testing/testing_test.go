// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package testing

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/jllopis/agentcore/pkg/core"
	"github.com/jllopis/agentcore/pkg/errors"
	"github.com/jllopis/agentcore/pkg/llm"
	"github.com/jllopis/agentcore/pkg/memory"
	"github.com/jllopis/agentcore/pkg/tool"
)

func TestScenarioProviderScript(t *testing.T) {
	boom := stderrors.New("boom")
	p := NewScenarioProvider().
		AddResponse("first").
		AddToolCallResponse(NewToolCall("calculator").WithID("c1").WithArg("expression", "2+2").Build()).
		AddErrorResponse(boom)

	ctx := context.Background()
	req := llm.ChatRequest{Model: "m", Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}}}

	resp, err := p.Chat(ctx, req)
	RequireNoError(t, err, "first call")
	if resp.Content != "first" {
		t.Errorf("content = %q", resp.Content)
	}

	resp, err = p.Chat(ctx, req)
	RequireNoError(t, err, "second call")
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected one tool call, got %d", len(resp.ToolCalls))
	}
	args := AssertToolCallArgs(t, resp.ToolCalls[0], "calculator")
	if args["expression"] != "2+2" {
		t.Errorf("args = %v", args)
	}

	if _, err := p.Chat(ctx, req); !stderrors.Is(err, boom) {
		t.Errorf("third call err = %v, want boom", err)
	}
	if _, err := p.Chat(ctx, req); err == nil || !strings.Contains(err.Error(), "no more scripted responses") {
		t.Errorf("exhausted err = %v", err)
	}
	if p.CallCount() != 4 {
		t.Errorf("call count = %d", p.CallCount())
	}

	p.Reset()
	if p.CallCount() != 0 || p.LastRequest() != nil {
		t.Errorf("reset did not clear requests")
	}
	resp, _ = p.Chat(ctx, req)
	if resp.Content != "first" {
		t.Errorf("reset did not rewind script")
	}
}

func TestScenarioProviderConditionAndFallback(t *testing.T) {
	p := NewScenarioProvider().
		AddScriptedResponse(ScriptedResponse{
			Content:   "skipped",
			Condition: func(req llm.ChatRequest) bool { return req.Model == "other" },
		}).
		AddResponse("matched").
		WithFallback(ScriptedResponse{Content: "again"})

	resp, err := p.Chat(context.Background(), llm.ChatRequest{Model: "m"})
	RequireNoError(t, err, "chat")
	if resp.Content != "matched" {
		t.Errorf("content = %q, want matched", resp.Content)
	}
	resp, err = p.Chat(context.Background(), llm.ChatRequest{Model: "m"})
	RequireNoError(t, err, "chat")
	if resp.Content != "again" {
		t.Errorf("content = %q, want fallback", resp.Content)
	}
}

func TestScenarioProviderCanceled(t *testing.T) {
	p := NewScenarioProvider().AddResponse("x")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Chat(ctx, llm.ChatRequest{}); !stderrors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want canceled", err)
	}
}

func TestStubTool(t *testing.T) {
	desc := NewToolDefinition("echo").
		WithDescription("echo text").
		WithParameter("text", tool.TypeString, "text to echo", true).
		Build()
	stub := NewStubTool(desc, func(_ context.Context, args map[string]any) (any, error) {
		return args["text"], nil
	})

	reg, err := tool.NewRegistry(stub)
	RequireNoError(t, err, "registry")
	out, err := reg.Invoke(context.Background(), "echo", map[string]any{"text": "hi"})
	RequireNoError(t, err, "invoke")
	if out != "hi" {
		t.Errorf("out = %v", out)
	}
	if len(stub.Calls()) != 1 {
		t.Errorf("calls = %d", len(stub.Calls()))
	}
	if got := stub.Descriptor().RequiredNames(); len(got) != 1 || got[0] != "text" {
		t.Errorf("required = %v", got)
	}
}

func TestToolCallBuilderRaw(t *testing.T) {
	call := NewToolCall("calculator").WithRawArguments("{not json").Build()
	if call.Function.Arguments != "{not json" {
		t.Errorf("raw arguments = %q", call.Function.Arguments)
	}
}

type fakeRunner struct {
	emitter core.EventEmitter
	output  string
	err     error
}

func (f *fakeRunner) Turn(ctx context.Context, input string) (string, error) {
	f.emitter.Emit(ctx, core.NewEvent(core.EventTurnStarted, "fake", "run-1", nil))
	f.emitter.Emit(ctx, core.NewEvent(core.EventToolResult, "fake", "run-1", map[string]any{
		core.PayloadTool:   "calculator",
		core.PayloadCallID: "c1",
		core.PayloadResult: "4",
	}))
	return f.output, f.err
}

func TestScenarioRun(t *testing.T) {
	events := NewEventCollector()
	runner := &fakeRunner{emitter: events, output: "The answer is 4"}

	scenario := NewScenario("calculator").
		WithInput("What is 2+2?").
		WithCollector(events).
		ExpectNoError().
		ExpectOutput(Contains("4")).
		ExpectOutput(Regex(`answer is \d`)).
		ExpectToolCall("calculator").
		ExpectEvent(core.EventTurnStarted)

	result := scenario.Run(t, runner)
	result.Assert(t, scenario)

	if len(result.ToolCalls) != 1 || result.ToolCalls[0].Result != "4" {
		t.Errorf("tool calls = %+v", result.ToolCalls)
	}
}

func TestScenarioExpectationsFail(t *testing.T) {
	result := &ScenarioResult{
		Output: "x",
		Error:  errors.New(errors.CodeEmptyInput, "empty", nil),
		ToolCalls: []ToolCallRecord{
			{Name: "weather", CallID: "c1", Result: "timed out", ErrorCode: errors.CodeTimeout},
		},
	}
	failing := NewScenario("failing").
		ExpectOutput(Equals("y")).
		ExpectNoError().
		ExpectErrorCode(errors.CodeModelCallFailed).
		ExpectToolCall("calculator").
		ExpectToolError("weather", errors.CodeToolExecutionFailed).
		ExpectEvent(core.EventTurnCompleted)
	for _, exp := range failing.checks {
		if err := exp.Check(result); err == nil {
			t.Errorf("%s: expected failure", exp.Name)
		}
	}

	passing := NewScenario("passing").
		ExpectErrorCode(errors.CodeEmptyInput).
		ExpectToolError("weather", errors.CodeTimeout).
		ExpectOutput(Regex(`^x$`))
	for _, exp := range passing.checks {
		if err := exp.Check(result); err != nil {
			t.Errorf("%s: %v", exp.Name, err)
		}
	}
	if Regex("(").Match("(") {
		t.Errorf("invalid regex should never match")
	}
}

func TestHistoryAssertions(t *testing.T) {
	turns := []memory.Turn{
		memory.SystemTurn("sys"),
		memory.UserTurn("2+2?"),
		memory.AssistantTurn("", memory.ToolCall{ID: "c1", Name: "calculator"}),
		memory.ToolTurn("calculator", "c1", "4"),
		memory.AssistantTurn("4"),
	}
	a := NewAssertions(t)
	a.AssertHistory(turns).
		HasRoles(memory.RoleSystem, memory.RoleUser, memory.RoleAssistant, memory.RoleTool, memory.RoleAssistant).
		HasToolTurn("calculator", "4")
	if a.Failed() {
		t.Fatal("history assertions failed")
	}
	if s := FormatHistory(turns[3:4]); s != `[tool(calculator): "4"]` {
		t.Errorf("FormatHistory = %s", s)
	}
}

func TestRequestAssertions(t *testing.T) {
	req := &llm.ChatRequest{
		Model: "m",
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "sys"},
			{Role: llm.RoleUser, Content: "hello there"},
		},
		Tools: []llm.Tool{{Type: llm.ToolTypeFunction, Function: llm.FunctionDef{Name: "calculator"}}},
	}
	a := NewAssertions(t)
	a.AssertRequest(req).
		HasModel("m").
		HasRoles(llm.RoleSystem, llm.RoleUser).
		HasToolCount(1).
		HasTool("calculator").
		HasUserMessage("hello")
	a.AssertErrorCode(errors.New(errors.CodeTimeout, "t", nil), errors.CodeTimeout, "code")
	if a.Failed() {
		t.Fatal("request assertions failed")
	}
}
