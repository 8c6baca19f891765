// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/agentcore/pkg/core"
	"github.com/jllopis/agentcore/pkg/errors"
	"github.com/jllopis/agentcore/pkg/llm"
	"github.com/jllopis/agentcore/pkg/memory"
	"github.com/jllopis/agentcore/pkg/resilience"
	"github.com/jllopis/agentcore/pkg/telemetry"
	"github.com/jllopis/agentcore/pkg/tool"
)

const maxAttrLen = 500

// run carries the per-turn bookkeeping.
type run struct {
	id     string
	log    *slog.Logger
	rounds int
	pruned int
}

// Turn sends input to the model, dispatches any tools it requests and
// returns the final assistant text. A concurrent Turn on the same agent
// waits for this one to finish.
func (a *Agent) Turn(ctx context.Context, input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", emptyInputError()
	}

	a.turnMu.Lock()
	defer a.turnMu.Unlock()
	defer a.setState(StateIdle)

	ctx, runID := core.EnsureRunID(ctx)
	ctx, span := a.tracer.Start(ctx, "Agent.Turn",
		trace.WithAttributes(telemetry.AgentAttributes(a.id, a.cfg.Model, runID, 0, a.cfg.Retry.MaxToolIterations)...),
	)
	defer span.End()

	traceID, spanID := traceIDs(span)
	r := &run{
		id: runID,
		log: a.logger.With(
			slog.String("agent_id", a.id),
			slog.String("run_id", runID),
			slog.String("trace_id", traceID),
			slog.String("span_id", spanID),
		),
	}
	if sessionID, ok := core.SessionID(ctx); ok {
		r.log = r.log.With(slog.String("session_id", sessionID))
	}

	start := time.Now()
	r.log.InfoContext(ctx, "agent.turn.start", slog.Int("input_len", len(input)))
	a.emitEvent(ctx, core.EventTurnStarted, runID, map[string]any{core.PayloadInput: input})

	output, err := a.runTurn(ctx, r, input)

	sessionID, _ := core.SessionID(ctx)
	span.SetAttributes(telemetry.MemoryAttributes(sessionID, a.backend, a.memory.Len(), r.pruned)...)
	span.SetAttributes(telemetry.AgentAttributes(a.id, a.cfg.Model, runID, r.rounds, a.cfg.Retry.MaxToolIterations)...)
	a.metrics.RecordTurn(ctx, a.id, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(telemetry.ErrorAttributes(err)...)
		a.metrics.RecordError(ctx, err, "agent")
		r.log.ErrorContext(ctx, "agent.turn.error",
			slog.String("error", err.Error()),
			slog.String("error_code", string(errors.CodeOf(err))),
			slog.Int("rounds", r.rounds),
			slog.Duration("duration", time.Since(start)),
		)
		a.emitEvent(ctx, core.EventAgentError, runID, map[string]any{
			core.PayloadError:     err.Error(),
			core.PayloadErrorCode: string(errors.CodeOf(err)),
			core.PayloadRound:     r.rounds,
		})
		return "", err
	}

	span.SetStatus(codes.Ok, "completed")
	r.log.InfoContext(ctx, "agent.turn.complete",
		slog.Int("rounds", r.rounds),
		slog.Int("pruned", r.pruned),
		slog.Duration("duration", time.Since(start)),
	)
	a.emitEvent(ctx, core.EventTurnCompleted, runID, map[string]any{
		core.PayloadOutput: output,
		core.PayloadRound:  r.rounds,
	})
	return output, nil
}

func (a *Agent) runTurn(ctx context.Context, r *run, input string) (string, error) {
	if err := a.record(ctx, r, memory.UserTurn(input)); err != nil {
		return "", err
	}

	tools := a.toolDefinitions()
	maxRounds := a.cfg.Retry.MaxToolIterations
	for {
		resp, err := a.callModel(ctx, r, tools)
		if err != nil {
			return "", err
		}

		if !resp.HasToolCalls() {
			a.setState(StateResponding)
			if err := a.record(ctx, r, memory.AssistantTurn(resp.Content)); err != nil {
				return "", err
			}
			return resp.Content, nil
		}

		if r.rounds >= maxRounds {
			r.log.WarnContext(ctx, "agent.tool.loop_exceeded",
				slog.Int("max_iterations", maxRounds),
				slog.Int("pending_calls", len(resp.ToolCalls)),
			)
			return "", loopExceededError(maxRounds)
		}

		r.rounds++
		a.setState(StateToolRequested)
		calls := toMemoryCalls(resp.ToolCalls, r.rounds)
		if err := a.record(ctx, r, memory.AssistantTurn(resp.Content, calls...)); err != nil {
			return "", err
		}
		if err := a.dispatch(ctx, r, calls); err != nil {
			return "", err
		}
	}
}

// record appends turn and applies retention.
func (a *Agent) record(ctx context.Context, r *run, turn memory.Turn) error {
	if err := a.memory.Append(ctx, turn); err != nil {
		r.log.ErrorContext(ctx, "agent.memory.append.failed",
			slog.String("role", string(turn.Role)),
			slog.String("error", err.Error()),
			slog.String("error_code", string(errors.CodeOf(err))),
		)
		return wrapMemoryError(err, "append")
	}
	if n := a.memory.Prune(); n > 0 {
		r.pruned += n
		r.log.DebugContext(ctx, "agent.memory.pruned", slog.Int("dropped", n))
	}
	return nil
}

func (a *Agent) callModel(ctx context.Context, r *run, tools []llm.Tool) (*llm.ChatResponse, error) {
	a.setState(StateAwaitingModel)
	if err := ctx.Err(); err != nil {
		return nil, contextLostError(err, "model_call")
	}

	req := llm.ChatRequest{
		Model:       a.cfg.Model,
		Messages:    toMessages(a.History()),
		Tools:       tools,
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
	}

	attempts := 0
	rc := resilience.RetryConfig{
		MaxAttempts:   a.cfg.Retry.MaxAttempts,
		InitialDelay:  a.cfg.Retry.InitialBackoff,
		MaxDelay:      a.cfg.Retry.MaxBackoff,
		Multiplier:    a.cfg.Retry.Multiplier,
		Jitter:        0.1,
		IsRecoverable: llm.IsTransient,
		Sleep:         a.sleep,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			a.metrics.RecordRetry(ctx, a.cfg.Model)
			r.log.WarnContext(ctx, "agent.llm.retry",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("error", err.Error()),
			)
		},
	}

	a.emitEvent(ctx, core.EventModelRequested, r.id, map[string]any{
		core.PayloadRound: r.rounds,
		"messages":        len(req.Messages),
		"tools":           len(req.Tools),
	})

	resp, err := resilience.DoWithResult(ctx, rc, func(ctx context.Context) (*llm.ChatResponse, error) {
		attempts++
		return a.chatOnce(ctx, r, req, attempts)
	})
	if err != nil {
		if errors.HasCode(err, errors.CodeContextLost) {
			return nil, err
		}
		r.log.ErrorContext(ctx, "agent.llm.error",
			slog.Int("attempts", attempts),
			slog.String("error", err.Error()),
			slog.Bool("transient", llm.IsTransient(err)),
		)
		return nil, wrapModelError(err, a.cfg.Model, attempts)
	}
	return resp, nil
}

// chatOnce performs one provider call inside its own span and timeout.
func (a *Agent) chatOnce(ctx context.Context, r *run, req llm.ChatRequest, attempt int) (*llm.ChatResponse, error) {
	ctx, span := a.tracer.Start(ctx, "Agent.LLM.Chat",
		trace.WithAttributes(telemetry.LLMAttributes(req.Model, "", len(req.Messages), attempt)...),
	)
	defer span.End()

	r.log.DebugContext(ctx, "agent.llm.request",
		slog.Int("attempt", attempt),
		slog.Int("messages", len(req.Messages)),
		slog.Int("tools", len(req.Tools)),
	)

	start := time.Now()
	resp, err := resilience.WithTimeoutResult(ctx, a.cfg.ModelTimeout, func(ctx context.Context) (*llm.ChatResponse, error) {
		return a.provider.Chat(ctx, req)
	})
	if err == nil && resp == nil {
		err = errors.New(errors.CodeInternal, "provider returned no response", nil)
	}
	elapsed := time.Since(start)
	a.metrics.RecordModelCall(ctx, req.Model, elapsed, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(telemetry.LLMUsageAttributes(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, len(resp.ToolCalls))...)
	span.SetStatus(codes.Ok, "ok")
	r.log.InfoContext(ctx, "agent.llm.response",
		slog.Int("attempt", attempt),
		slog.Int("tool_calls", len(resp.ToolCalls)),
		slog.Int("total_tokens", resp.Usage.TotalTokens),
		slog.Duration("latency", elapsed),
	)
	return resp, nil
}

// dispatch runs calls in declaration order and records one tool turn per
// call. When the turn is canceled, the calls that never started are still
// answered so the recorded assistant request stays complete.
func (a *Agent) dispatch(ctx context.Context, r *run, calls []memory.ToolCall) error {
	for i, call := range calls {
		if err := ctx.Err(); err != nil {
			lost := contextLostError(err, "tool_call")
			for _, skipped := range calls[i:] {
				if rerr := a.record(ctx, r, memory.ToolTurn(skipped.Name, skipped.ID, tool.FailureText(lost))); rerr != nil {
					return rerr
				}
			}
			return lost
		}
		content := a.invokeTool(ctx, r, call)
		if err := a.record(ctx, r, memory.ToolTurn(call.Name, call.ID, content)); err != nil {
			return err
		}
	}
	return nil
}

// invokeTool runs one call and renders its outcome as tool turn content.
// Failures never escape: they become content the model can read.
func (a *Agent) invokeTool(ctx context.Context, r *run, call memory.ToolCall) string {
	source := a.toolSource(call.Name)
	ctx, span := a.tracer.Start(ctx, "Agent.Tool.Call",
		trace.WithAttributes(telemetry.ToolCallAttributes(call.Name, call.ID, source, false)...),
	)
	defer span.End()

	r.log.InfoContext(ctx, "agent.tool.call",
		slog.String("tool", call.Name),
		slog.String("call_id", call.ID),
		slog.Int("round", r.rounds),
	)
	a.emitEvent(ctx, core.EventToolCalled, r.id, map[string]any{
		core.PayloadTool:      call.Name,
		core.PayloadCallID:    call.ID,
		core.PayloadArguments: call.Arguments,
		core.PayloadRound:     r.rounds,
	})

	start := time.Now()
	result, err := resilience.WithTimeoutResult(ctx, a.cfg.ToolTimeout, func(ctx context.Context) (any, error) {
		return a.registry.InvokeJSON(ctx, call.Name, call.Arguments)
	})
	elapsed := time.Since(start)

	if err != nil {
		content, failure := failureContent(err, call.Name, a.cfg.ToolTimeout)
		a.metrics.RecordToolCall(ctx, call.Name, elapsed, failure)
		span.SetAttributes(telemetry.ToolCallAttributes(call.Name, call.ID, source, false)...)
		span.SetAttributes(telemetry.ToolCallArgsResult(call.Arguments, content, maxAttrLen)...)
		span.RecordError(failure)
		span.SetStatus(codes.Error, failure.Error())
		r.log.WarnContext(ctx, "agent.tool.error",
			slog.String("tool", call.Name),
			slog.String("call_id", call.ID),
			slog.String("error", failure.Error()),
			slog.String("error_code", string(failure.Code)),
			slog.Duration("duration", elapsed),
		)
		a.emitEvent(ctx, core.EventToolResult, r.id, map[string]any{
			core.PayloadTool:      call.Name,
			core.PayloadCallID:    call.ID,
			core.PayloadResult:    content,
			core.PayloadError:     failure.Error(),
			core.PayloadErrorCode: string(failure.Code),
		})
		return content
	}

	content := tool.Stringify(result)
	a.metrics.RecordToolCall(ctx, call.Name, elapsed, nil)
	span.SetAttributes(telemetry.ToolCallAttributes(call.Name, call.ID, source, true)...)
	span.SetAttributes(telemetry.ToolCallArgsResult(call.Arguments, content, maxAttrLen)...)
	span.SetStatus(codes.Ok, "ok")
	r.log.InfoContext(ctx, "agent.tool.complete",
		slog.String("tool", call.Name),
		slog.String("call_id", call.ID),
		slog.Duration("duration", elapsed),
	)
	a.emitEvent(ctx, core.EventToolResult, r.id, map[string]any{
		core.PayloadTool:   call.Name,
		core.PayloadCallID: call.ID,
		core.PayloadResult: content,
	})
	return content
}

// toolSource labels where a tool comes from for telemetry. Tools that know
// their origin implement Source.
func (a *Agent) toolSource(name string) string {
	t, ok := a.registry.Get(name)
	if !ok {
		return "unknown"
	}
	if s, ok := t.(interface{ Source() string }); ok {
		return s.Source()
	}
	return "local"
}

func (a *Agent) toolDefinitions() []llm.Tool {
	if !a.cfg.ToolsEnabled || a.registry.Len() == 0 {
		return nil
	}
	descs := a.registry.Descriptors()
	out := make([]llm.Tool, 0, len(descs))
	for _, d := range descs {
		out = append(out, llm.Tool{
			Type: llm.ToolTypeFunction,
			Function: llm.FunctionDef{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.JSONSchema(),
			},
		})
	}
	return out
}

// toMemoryCalls keeps the model's call ids and fills in missing ones so
// every tool turn can be matched to its request.
func toMemoryCalls(calls []llm.ToolCall, round int) []memory.ToolCall {
	out := make([]memory.ToolCall, 0, len(calls))
	for i, c := range calls {
		id := c.ID
		if id == "" {
			id = fmt.Sprintf("call_%d_%d", round, i+1)
		}
		out = append(out, memory.ToolCall{ID: id, Name: c.Function.Name, Arguments: c.Function.Arguments})
	}
	return out
}
