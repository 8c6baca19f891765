// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package testing provides a scripted model provider, tool stubs, scenario
// runners and assertions for agent tests.
//
// Example usage:
//
//	events := agenttest.NewEventCollector()
//	a, _ := agent.New(cfg, provider, agent.WithEventEmitter(events))
//
//	scenario := agenttest.NewScenario("calculator").
//	    WithInput("What is 2+2?").
//	    WithCollector(events).
//	    ExpectOutput(agenttest.Contains("4")).
//	    ExpectToolCall("calculator")
//
//	result := scenario.Run(t, a)
//	result.Assert(t, scenario)
package testing

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jllopis/agentcore/pkg/core"
	"github.com/jllopis/agentcore/pkg/errors"
)

// Scenario is one scripted turn plus the checks run on its outcome.
type Scenario struct {
	name      string
	input     string
	parent    context.Context
	timeout   time.Duration
	collector *EventCollector
	checks    []Expectation
}

// Expectation is a named check over a finished scenario.
type Expectation struct {
	Name  string
	Check func(r *ScenarioResult) error
}

// ScenarioResult is what a scenario run observed.
type ScenarioResult struct {
	Output    string
	Error     error
	Events    []core.Event
	ToolCalls []ToolCallRecord
	Duration  time.Duration
}

// ToolCallRecord is one tool invocation rebuilt from agent events.
type ToolCallRecord struct {
	Name      string
	CallID    string
	Result    string
	ErrorCode errors.ErrorCode
}

// AgentRunner is the surface a scenario drives.
type AgentRunner interface {
	Turn(ctx context.Context, input string) (string, error)
}

// NewScenario creates a scenario bounded to 30s.
func NewScenario(name string) *Scenario {
	return &Scenario{name: name, parent: context.Background(), timeout: 30 * time.Second}
}

func (s *Scenario) WithInput(input string) *Scenario {
	s.input = input
	return s
}

func (s *Scenario) WithContext(ctx context.Context) *Scenario {
	s.parent = ctx
	return s
}

func (s *Scenario) WithTimeout(d time.Duration) *Scenario {
	s.timeout = d
	return s
}

// WithCollector reads events from c, which must be the agent's emitter.
// The collector is cleared before each run.
func (s *Scenario) WithCollector(c *EventCollector) *Scenario {
	s.collector = c
	return s
}

// Expect adds a custom check.
func (s *Scenario) Expect(name string, check func(r *ScenarioResult) error) *Scenario {
	s.checks = append(s.checks, Expectation{Name: name, Check: check})
	return s
}

func (s *Scenario) ExpectOutput(m StringMatcher) *Scenario {
	return s.Expect("output "+m.String(), func(r *ScenarioResult) error {
		if !m.Match(r.Output) {
			return fmt.Errorf("output %q does not %s", r.Output, m)
		}
		return nil
	})
}

func (s *Scenario) ExpectNoError() *Scenario {
	return s.Expect("no error", func(r *ScenarioResult) error {
		if r.Error != nil {
			return fmt.Errorf("unexpected error: %v", r.Error)
		}
		return nil
	})
}

func (s *Scenario) ExpectErrorCode(code errors.ErrorCode) *Scenario {
	return s.Expect("error "+string(code), func(r *ScenarioResult) error {
		if !errors.HasCode(r.Error, code) {
			return fmt.Errorf("want %s, got %v", code, r.Error)
		}
		return nil
	})
}

// ExpectToolCall checks that toolName ran at least once.
func (s *Scenario) ExpectToolCall(toolName string) *Scenario {
	return s.Expect("tool "+toolName+" called", func(r *ScenarioResult) error {
		if _, ok := r.findTool(toolName); !ok {
			return fmt.Errorf("tool %q was not called", toolName)
		}
		return nil
	})
}

// ExpectToolError checks that the first call to toolName failed with code.
func (s *Scenario) ExpectToolError(toolName string, code errors.ErrorCode) *Scenario {
	return s.Expect(fmt.Sprintf("tool %s failed with %s", toolName, code), func(r *ScenarioResult) error {
		rec, ok := r.findTool(toolName)
		switch {
		case !ok:
			return fmt.Errorf("tool %q was not called", toolName)
		case rec.ErrorCode != code:
			return fmt.Errorf("tool %q error code = %q", toolName, rec.ErrorCode)
		}
		return nil
	})
}

func (s *Scenario) ExpectEvent(eventType core.EventType) *Scenario {
	return s.Expect("event "+string(eventType), func(r *ScenarioResult) error {
		if !slices.ContainsFunc(r.Events, func(ev core.Event) bool { return ev.Type == eventType }) {
			return fmt.Errorf("event %q was not emitted", eventType)
		}
		return nil
	})
}

// Run drives one turn of agent with the scenario input.
func (s *Scenario) Run(t *testing.T, agent AgentRunner) *ScenarioResult {
	t.Helper()

	if s.collector != nil {
		s.collector.Reset()
	}
	ctx, cancel := context.WithTimeout(s.parent, s.timeout)
	defer cancel()

	start := time.Now()
	output, err := agent.Turn(ctx, s.input)
	result := &ScenarioResult{Output: output, Error: err, Duration: time.Since(start)}
	if s.collector != nil {
		result.Events = s.collector.Events()
		result.ToolCalls = s.collector.ToolCalls()
	}
	return result
}

// Assert reports every failed check of scenario.
func (r *ScenarioResult) Assert(t *testing.T, scenario *Scenario) {
	t.Helper()
	for _, exp := range scenario.checks {
		if err := exp.Check(r); err != nil {
			t.Errorf("scenario %q: %s: %v", scenario.name, exp.Name, err)
		}
	}
}

func (r *ScenarioResult) findTool(name string) (ToolCallRecord, bool) {
	i := slices.IndexFunc(r.ToolCalls, func(rec ToolCallRecord) bool { return rec.Name == name })
	if i < 0 {
		return ToolCallRecord{}, false
	}
	return r.ToolCalls[i], true
}

// StringMatcher is a described predicate over text.
type StringMatcher struct {
	desc  string
	match func(string) bool
}

func (m StringMatcher) Match(s string) bool { return m.match(s) }

func (m StringMatcher) String() string { return m.desc }

func Contains(substr string) StringMatcher {
	return StringMatcher{
		desc:  fmt.Sprintf("contain %q", substr),
		match: func(s string) bool { return strings.Contains(s, substr) },
	}
}

func Equals(expected string) StringMatcher {
	return StringMatcher{
		desc:  fmt.Sprintf("equal %q", expected),
		match: func(s string) bool { return s == expected },
	}
}

// Regex never matches when pattern does not compile.
func Regex(pattern string) StringMatcher {
	re, err := regexp.Compile(pattern)
	return StringMatcher{
		desc:  fmt.Sprintf("match /%s/", pattern),
		match: func(s string) bool { return err == nil && re.MatchString(s) },
	}
}

// EventCollector is a core.EventEmitter that records every event.
type EventCollector struct {
	mu     sync.Mutex
	events []core.Event
}

func NewEventCollector() *EventCollector {
	return &EventCollector{}
}

// Emit implements core.EventEmitter.
func (c *EventCollector) Emit(_ context.Context, event core.Event) {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (c *EventCollector) Events() []core.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.events)
}

// EventTypes lists the recorded event types in emission order.
func (c *EventCollector) EventTypes() []core.EventType {
	events := c.Events()
	types := make([]core.EventType, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}

func (c *EventCollector) HasEvent(eventType core.EventType) bool {
	return slices.Contains(c.EventTypes(), eventType)
}

// ToolCalls rebuilds tool invocations from tool result events.
func (c *EventCollector) ToolCalls() []ToolCallRecord {
	var out []ToolCallRecord
	for _, ev := range c.Events() {
		if ev.Type != core.EventToolResult {
			continue
		}
		var rec ToolCallRecord
		rec.Name, _ = ev.Payload[core.PayloadTool].(string)
		rec.CallID, _ = ev.Payload[core.PayloadCallID].(string)
		rec.Result, _ = ev.Payload[core.PayloadResult].(string)
		if code, ok := ev.Payload[core.PayloadErrorCode].(string); ok {
			rec.ErrorCode = errors.ErrorCode(code)
		}
		out = append(out, rec)
	}
	return out
}

func (c *EventCollector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func (c *EventCollector) Reset() {
	c.mu.Lock()
	c.events = nil
	c.mu.Unlock()
}
