// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/agentcore/pkg/errors"
)

// MeterName is the instrumentation scope of the agent instruments.
const MeterName = "agentcore/agent"

// AgentMetrics records turn, model and tool activity. A nil *AgentMetrics
// records nothing.
type AgentMetrics struct {
	turns        metric.Int64Counter
	errorCounter metric.Int64Counter
	retries      metric.Int64Counter
	toolCalls    metric.Int64Counter
	modelLatency metric.Float64Histogram
	toolLatency  metric.Float64Histogram
}

var (
	defaultMetricsOnce sync.Once
	defaultMetrics     *AgentMetrics
)

// DefaultAgentMetrics returns instruments built lazily from the global
// meter provider. Instrument creation failures yield nil, which is a
// valid no-op recorder.
func DefaultAgentMetrics() *AgentMetrics {
	defaultMetricsOnce.Do(func() {
		m, err := NewAgentMetrics(otel.Meter(MeterName))
		if err == nil {
			defaultMetrics = m
		}
	})
	return defaultMetrics
}

// NewAgentMetrics creates the agent instruments on meter.
func NewAgentMetrics(meter metric.Meter) (*AgentMetrics, error) {
	turns, err := meter.Int64Counter(
		"agentcore.turns.total",
		metric.WithDescription("Completed turns by outcome"),
	)
	if err != nil {
		return nil, err
	}
	errorCounter, err := meter.Int64Counter(
		"agentcore.errors.total",
		metric.WithDescription("Errors by code and component"),
	)
	if err != nil {
		return nil, err
	}
	retries, err := meter.Int64Counter(
		"agentcore.llm.retries",
		metric.WithDescription("Model call retries"),
	)
	if err != nil {
		return nil, err
	}
	toolCalls, err := meter.Int64Counter(
		"agentcore.tool.calls",
		metric.WithDescription("Tool invocations by tool and success"),
	)
	if err != nil {
		return nil, err
	}
	modelLatency, err := meter.Float64Histogram(
		"agentcore.llm.duration",
		metric.WithDescription("Model call latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	toolLatency, err := meter.Float64Histogram(
		"agentcore.tool.duration",
		metric.WithDescription("Tool invocation latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	return &AgentMetrics{
		turns:        turns,
		errorCounter: errorCounter,
		retries:      retries,
		toolCalls:    toolCalls,
		modelLatency: modelLatency,
		toolLatency:  toolLatency,
	}, nil
}

// RecordTurn counts a finished turn; err nil means success.
func (m *AgentMetrics) RecordTurn(ctx context.Context, agentID string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(errors.CodeOf(err))
	}
	m.turns.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrAgentID, agentID),
		attribute.String(AttrTurnOutcome, outcome),
	))
}

// RecordModelCall records the latency of one model call attempt.
func (m *AgentMetrics) RecordModelCall(ctx context.Context, model string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.modelLatency.Record(ctx, ms(d), metric.WithAttributes(
		attribute.String(AttrLLMModel, model),
		attribute.Bool("success", err == nil),
	))
}

// RecordRetry counts a model call retry.
func (m *AgentMetrics) RecordRetry(ctx context.Context, model string) {
	if m == nil {
		return
	}
	m.retries.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrLLMModel, model)))
}

// RecordToolCall records one tool invocation.
func (m *AgentMetrics) RecordToolCall(ctx context.Context, name string, d time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrToolName, name),
		attribute.Bool(AttrToolSuccess, err == nil),
	)
	m.toolCalls.Add(ctx, 1, attrs)
	m.toolLatency.Record(ctx, ms(d), attrs)
}

// RecordError counts err under component.
func (m *AgentMetrics) RecordError(ctx context.Context, err error, component string) {
	if m == nil || err == nil {
		return
	}
	e := errors.Wrap(err)
	m.errorCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrErrorCode, string(e.Code)),
		attribute.String("component", component),
		attribute.String(AttrErrorRecoverable, e.RecoverableString()),
	))
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
