// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent implements the conversational agent: one Turn takes user
// text, consults the model, dispatches the tools it asks for and returns the
// final answer while keeping the conversation in memory.
package agent

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/agentcore/pkg/config"
	"github.com/jllopis/agentcore/pkg/core"
	"github.com/jllopis/agentcore/pkg/errors"
	"github.com/jllopis/agentcore/pkg/llm"
	"github.com/jllopis/agentcore/pkg/memory"
	"github.com/jllopis/agentcore/pkg/resilience"
	"github.com/jllopis/agentcore/pkg/telemetry"
	"github.com/jllopis/agentcore/pkg/tool"
)

// State is the position of the agent in its turn state machine.
type State int32

const (
	StateIdle State = iota
	StateAwaitingModel
	StateToolRequested
	StateResponding
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingModel:
		return "awaiting_model"
	case StateToolRequested:
		return "tool_requested"
	case StateResponding:
		return "responding"
	}
	return "unknown"
}

// Agent drives one conversation. Turns on the same agent are serialized.
type Agent struct {
	id       string
	cfg      config.AgentConfig
	provider llm.Provider
	memory   memory.Memory
	registry *tool.Registry
	logger   *slog.Logger
	emitter  core.EventEmitter
	tracer   trace.Tracer
	metrics  *telemetry.AgentMetrics
	sleep    resilience.SleepFunc
	backend  string

	turnMu sync.Mutex
	state  atomic.Int32
}

// Option configures an Agent instance.
type Option func(*Agent) error

// New validates cfg and builds an agent around provider. The memory is
// bounded to cfg.MaxRetainedTurns. An empty durable memory is restored from
// its sink first, and a memory still empty after that is seeded with the
// configured system prompt.
func New(cfg config.AgentConfig, provider llm.Provider, opts ...Option) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, errors.InvalidConfig("provider", "must not be nil")
	}

	a := &Agent{
		id:       "agent-" + uuid.NewString()[:8],
		cfg:      cfg,
		provider: provider,
		logger:   slog.Default(),
		emitter:  core.NoopEventEmitter{},
		tracer:   telemetry.Tracer(),
		metrics:  telemetry.DefaultAgentMetrics(),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	if a.memory == nil {
		a.memory = memory.NewVolatile()
	}
	a.backend = backendName(a.memory)
	if b, ok := a.memory.(memory.Bounded); ok {
		b.Bound(memory.NewWindowPolicy(cfg.MaxRetainedTurns))
	} else {
		a.logger.Warn("agent.memory.unbounded",
			slog.String("agent_id", a.id),
			slog.Int("max_retained_turns", cfg.MaxRetainedTurns),
		)
	}
	if a.registry == nil {
		a.registry, _ = tool.NewRegistry()
	}

	ctx := context.Background()
	if p, ok := a.memory.(memory.Persistent); ok && a.memory.Len() == 0 {
		if err := a.restore(ctx, p); err != nil {
			return nil, err
		}
	}
	if err := a.seedSystemPrompt(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// WithID sets the agent identifier used in logs, spans and events.
func WithID(id string) Option {
	return func(a *Agent) error {
		if id == "" {
			return errors.InvalidConfig("id", "must not be empty")
		}
		a.id = id
		return nil
	}
}

// WithMemory replaces the default volatile memory.
func WithMemory(m memory.Memory) Option {
	return func(a *Agent) error {
		if m == nil {
			return errors.InvalidConfig("memory", "must not be nil")
		}
		a.memory = m
		return nil
	}
}

// WithRegistry sets the tools the agent may dispatch.
func WithRegistry(r *tool.Registry) Option {
	return func(a *Agent) error {
		if r == nil {
			return errors.InvalidConfig("registry", "must not be nil")
		}
		a.registry = r
		return nil
	}
}

// WithTools builds a registry from tools.
func WithTools(tools ...tool.Tool) Option {
	return func(a *Agent) error {
		r, err := tool.NewRegistry(tools...)
		if err != nil {
			return err
		}
		a.registry = r
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) error {
		if l != nil {
			a.logger = l
		}
		return nil
	}
}

// WithEventEmitter sets the receiver of semantic events.
func WithEventEmitter(e core.EventEmitter) Option {
	return func(a *Agent) error {
		if e != nil {
			a.emitter = e
		}
		return nil
	}
}

// WithTracer overrides the OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(a *Agent) error {
		if t != nil {
			a.tracer = t
		}
		return nil
	}
}

// WithMetrics overrides the metric instruments.
func WithMetrics(m *telemetry.AgentMetrics) Option {
	return func(a *Agent) error {
		a.metrics = m
		return nil
	}
}

// WithSleep replaces the wait between model-call retries.
func WithSleep(fn resilience.SleepFunc) Option {
	return func(a *Agent) error {
		a.sleep = fn
		return nil
	}
}

// ID returns the agent identifier.
func (a *Agent) ID() string { return a.id }

// Config returns the configuration the agent was built with.
func (a *Agent) Config() config.AgentConfig { return a.cfg }

// State reports where the agent is in the current turn.
func (a *Agent) State() State { return State(a.state.Load()) }

func (a *Agent) setState(s State) { a.state.Store(int32(s)) }

// Tools lists the descriptors of the registered tools in registration order.
func (a *Agent) Tools() []tool.Descriptor { return a.registry.Descriptors() }

// History returns a copy of the retained conversation, system turn first.
func (a *Agent) History() []memory.Turn {
	return slices.Collect(a.memory.Window())
}

// Reset clears the conversation down to the system turn.
func (a *Agent) Reset(ctx context.Context) error {
	a.turnMu.Lock()
	defer a.turnMu.Unlock()

	a.memory.Clear()
	if err := a.seedSystemPrompt(ctx); err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "agent.memory.reset", slog.String("agent_id", a.id))
	return nil
}

// Save writes the conversation to the durable sink behind the memory.
func (a *Agent) Save(ctx context.Context) error {
	a.turnMu.Lock()
	defer a.turnMu.Unlock()

	p, ok := a.memory.(memory.Persistent)
	if !ok {
		return notDurableError("save")
	}
	if err := p.Persist(ctx); err != nil {
		a.logger.ErrorContext(ctx, "agent.memory.save.failed",
			slog.String("agent_id", a.id),
			slog.String("error", err.Error()),
			slog.String("error_code", string(errors.CodeOf(err))),
		)
		return wrapMemoryError(err, "save")
	}
	a.logger.InfoContext(ctx, "agent.memory.saved",
		slog.String("agent_id", a.id),
		slog.Int("turns", a.memory.Len()),
	)
	return nil
}

// Load replaces the conversation with the durable sink's contents. A sink
// with no stored conversation leaves only the system turn. New already
// restores an empty durable memory, so Load is only needed to discard
// in-memory changes.
func (a *Agent) Load(ctx context.Context) error {
	a.turnMu.Lock()
	defer a.turnMu.Unlock()

	p, ok := a.memory.(memory.Persistent)
	if !ok {
		return notDurableError("load")
	}
	if err := a.restore(ctx, p); err != nil {
		return err
	}
	if err := a.seedSystemPrompt(ctx); err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "agent.memory.loaded",
		slog.String("agent_id", a.id),
		slog.Int("turns", a.memory.Len()),
	)
	return nil
}

// restore loads the sink's sequence, puts the system turn in front of a
// sequence stored without one and applies retention.
func (a *Agent) restore(ctx context.Context, p memory.Persistent) error {
	if err := p.Restore(ctx); err != nil {
		a.logger.ErrorContext(ctx, "agent.memory.load.failed",
			slog.String("agent_id", a.id),
			slog.String("error", err.Error()),
			slog.String("error_code", string(errors.CodeOf(err))),
		)
		return wrapMemoryError(err, "load")
	}

	turns := slices.Collect(a.memory.Window())
	if len(turns) > 0 && turns[0].Role != memory.RoleSystem {
		a.memory.Clear()
		if err := a.seedSystemPrompt(ctx); err != nil {
			return err
		}
		for _, t := range turns {
			if err := a.memory.Append(ctx, t); err != nil {
				return wrapMemoryError(err, "load")
			}
		}
		a.logger.WarnContext(ctx, "agent.memory.system_prepended", slog.String("agent_id", a.id))
	}
	if n := a.memory.Prune(); n > 0 {
		a.logger.DebugContext(ctx, "agent.memory.pruned", slog.Int("dropped", n))
	}
	return nil
}

func (a *Agent) seedSystemPrompt(ctx context.Context) error {
	if a.memory.Len() > 0 {
		return nil
	}
	return wrapMemoryError(a.memory.Append(ctx, memory.SystemTurn(a.cfg.SystemPrompt)), "seed")
}

func (a *Agent) emitEvent(ctx context.Context, eventType core.EventType, runID string, payload map[string]any) {
	a.emitter.Emit(ctx, core.NewEvent(eventType, a.id, runID, payload))
}

func backendName(m memory.Memory) string {
	switch m.(type) {
	case *memory.Durable:
		return "durable"
	case *memory.Volatile:
		return "volatile"
	}
	return "custom"
}

func traceIDs(span trace.Span) (string, string) {
	sc := span.SpanContext()
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}
