// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"sync"
	"time"
)

// EventType identifies a semantic event emitted by an agent.
type EventType string

const (
	EventTurnStarted    EventType = "agent.turn.started"
	EventTurnCompleted  EventType = "agent.turn.completed"
	EventModelRequested EventType = "agent.model.requested"
	EventToolCalled     EventType = "agent.tool.called"
	EventToolResult     EventType = "agent.tool.result"
	EventAgentError     EventType = "agent.error"
)

// Payload keys shared by the agent events.
const (
	PayloadInput     = "input"
	PayloadOutput    = "output"
	PayloadRound     = "round"
	PayloadTool      = "tool"
	PayloadCallID    = "call_id"
	PayloadArguments = "arguments"
	PayloadResult    = "result"
	PayloadError     = "error"
	PayloadErrorCode = "error_code"
)

// Event captures a semantic streaming/logging event.
type Event struct {
	Type      EventType
	Agent     string
	RunID     string
	Timestamp time.Time
	Payload   map[string]any
}

// EventEmitter receives semantic events.
type EventEmitter interface {
	Emit(ctx context.Context, event Event)
}

// NoopEventEmitter is a default no-op implementation.
type NoopEventEmitter struct{}

// Emit implements EventEmitter.
func (NoopEventEmitter) Emit(_ context.Context, _ Event) {}

// EmitterFunc adapts a function to EventEmitter.
type EmitterFunc func(ctx context.Context, event Event)

// Emit implements EventEmitter.
func (f EmitterFunc) Emit(ctx context.Context, event Event) { f(ctx, event) }

// RecordingEmitter keeps every event it receives. Safe for concurrent use.
type RecordingEmitter struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements EventEmitter.
func (r *RecordingEmitter) Emit(_ context.Context, event Event) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *RecordingEmitter) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *RecordingEmitter) Types() []EventType {
	events := r.Events()
	out := make([]EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

// NewEvent builds a default event with timestamp.
func NewEvent(eventType EventType, agent, runID string, payload map[string]any) Event {
	return Event{
		Type:      eventType,
		Agent:     agent,
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}
