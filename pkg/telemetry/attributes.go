// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry wires slog, tracing and metrics for the agent core.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"

	"github.com/jllopis/agentcore/pkg/errors"
)

// Attribute keys for agent spans and metrics. LLM keys follow the gen_ai
// semantic conventions.
const (
	AttrAgentID     = "agentcore.agent.id"
	AttrAgentModel  = "agentcore.agent.model"
	AttrAgentRunID  = "agentcore.agent.run_id"
	AttrAgentRound  = "agentcore.agent.round"
	AttrAgentRounds = "agentcore.agent.max_rounds"
	AttrTurnOutcome = "agentcore.turn.outcome"

	AttrSessionID     = "agentcore.session.id"
	AttrMemoryBackend = "agentcore.memory.backend"
	AttrMemoryTurns   = "agentcore.memory.turns"
	AttrMemoryPruned  = "agentcore.memory.pruned"

	AttrToolName    = "agentcore.tool.name"
	AttrToolCallID  = "agentcore.tool.call_id"
	AttrToolArgs    = "agentcore.tool.arguments"
	AttrToolResult  = "agentcore.tool.result"
	AttrToolSuccess = "agentcore.tool.success"
	AttrToolSource  = "agentcore.tool.source" // builtin, mcp
	AttrToolsCount  = "agentcore.tools.count"

	AttrLLMModel        = "gen_ai.request.model"
	AttrLLMProvider     = "gen_ai.system"
	AttrLLMMessages     = "gen_ai.request.messages"
	AttrLLMTokensInput  = "gen_ai.usage.input_tokens"
	AttrLLMTokensOutput = "gen_ai.usage.output_tokens"
	AttrLLMTokensTotal  = "gen_ai.usage.total_tokens"
	AttrLLMToolCalls    = "gen_ai.tool_calls"
	AttrLLMAttempt      = "gen_ai.request.attempt"

	AttrErrorCode        = "error.code"
	AttrErrorRecoverable = "error.recoverable"
)

// AgentAttributes returns common attributes for turn spans.
func AgentAttributes(agentID, model, runID string, round, maxRounds int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrAgentID, agentID),
		attribute.String(AttrAgentRunID, runID),
	}
	if model != "" {
		attrs = append(attrs, attribute.String(AttrAgentModel, model))
	}
	if round > 0 {
		attrs = append(attrs, attribute.Int(AttrAgentRound, round))
	}
	if maxRounds > 0 {
		attrs = append(attrs, attribute.Int(AttrAgentRounds, maxRounds))
	}
	return attrs
}

// MemoryAttributes describes the conversation store after a turn.
func MemoryAttributes(sessionID, backend string, turns, pruned int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int(AttrMemoryTurns, turns),
	}
	if sessionID != "" {
		attrs = append(attrs, attribute.String(AttrSessionID, sessionID))
	}
	if backend != "" {
		attrs = append(attrs, attribute.String(AttrMemoryBackend, backend))
	}
	if pruned > 0 {
		attrs = append(attrs, attribute.Int(AttrMemoryPruned, pruned))
	}
	return attrs
}

// ToolCallAttributes returns attributes for a tool call span.
func ToolCallAttributes(name, callID, source string, success bool) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrToolName, name),
		attribute.String(AttrToolCallID, callID),
		attribute.Bool(AttrToolSuccess, success),
	}
	if source != "" {
		attrs = append(attrs, attribute.String(AttrToolSource, source))
	}
	return attrs
}

// ToolCallArgsResult returns tool arguments and result, each truncated to
// maxLen bytes (500 when maxLen <= 0).
func ToolCallArgsResult(args, result string, maxLen int) []attribute.KeyValue {
	if maxLen <= 0 {
		maxLen = 500
	}
	var attrs []attribute.KeyValue
	if args != "" {
		attrs = append(attrs, attribute.String(AttrToolArgs, truncate(args, maxLen)))
	}
	if result != "" {
		attrs = append(attrs, attribute.String(AttrToolResult, truncate(result, maxLen)))
	}
	return attrs
}

// LLMAttributes returns attributes for a model call span.
func LLMAttributes(model, provider string, msgCount, attempt int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrLLMModel, model),
		attribute.Int(AttrLLMMessages, msgCount),
	}
	if provider != "" {
		attrs = append(attrs, attribute.String(AttrLLMProvider, provider))
	}
	if attempt > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMAttempt, attempt))
	}
	return attrs
}

// LLMUsageAttributes returns token usage and tool call count.
func LLMUsageAttributes(inputTokens, outputTokens, toolCalls int) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if inputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensInput, inputTokens))
	}
	if outputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensOutput, outputTokens))
	}
	if inputTokens > 0 || outputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensTotal, inputTokens+outputTokens))
	}
	if toolCalls > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMToolCalls, toolCalls))
	}
	return attrs
}

// ErrorAttributes returns the code and recoverability of err plus the
// attributes the error carries. Nil yields nothing.
func ErrorAttributes(err error) []attribute.KeyValue {
	if err == nil {
		return nil
	}
	e := errors.Wrap(err)
	attrs := []attribute.KeyValue{
		attribute.String(AttrErrorCode, string(e.Code)),
		attribute.Bool(AttrErrorRecoverable, e.Recoverable),
	}
	for k, v := range e.Attributes {
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
