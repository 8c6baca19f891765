// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jllopis/agentcore/pkg/errors"
)

// Memory owns the ordered turn sequence of one conversation session.
// The system turn, when present, is always first and always retained.
type Memory interface {
	// Append adds a turn at the end of the sequence.
	Append(ctx context.Context, turn Turn) error

	// Window returns the retained turns, system turn first. Iterating it
	// twice without an intervening mutation yields identical output.
	Window() iter.Seq[Turn]

	// Prune applies the retention policy and returns how many turns it
	// dropped. Calling it again without a mutation drops nothing.
	Prune() int

	// Len returns the number of stored turns.
	Len() int

	// Clear drops every turn except the system turn.
	Clear()
}

// Persistent is implemented by memories backed by a Sink.
type Persistent interface {
	Persist(ctx context.Context) error
	Restore(ctx context.Context) error
}

// Bounded is implemented by memories that accept an extra retention limit
// after construction.
type Bounded interface {
	Bound(p RetentionPolicy)
}

// Volatile is an in-process Memory.
type Volatile struct {
	mu     sync.RWMutex
	turns  []Turn
	policy RetentionPolicy
	now    func() time.Time
}

// NewVolatile creates an empty in-process memory.
func NewVolatile(opts ...Option) *Volatile {
	o := newOptions(opts)
	return &Volatile{policy: o.policy, now: o.now}
}

// Append implements Memory.
func (m *Volatile) Append(_ context.Context, turn Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := checkAppend(m.turns, turn); err != nil {
		return err
	}
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = m.now()
	}
	m.turns = append(m.turns, turn.clone())
	return nil
}

// Window implements Memory.
func (m *Volatile) Window() iter.Seq[Turn] {
	m.mu.RLock()
	snapshot := slices.Clone(m.turns)
	m.mu.RUnlock()

	return func(yield func(Turn) bool) {
		for _, t := range snapshot {
			if !yield(t.clone()) {
				return
			}
		}
	}
}

// Prune implements Memory.
func (m *Volatile) Prune() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.policy == nil {
		return 0
	}
	kept := m.policy.Apply(m.turns)
	dropped := len(m.turns) - len(kept)
	m.turns = kept
	return dropped
}

// Bound adds p to the retention applied by Prune. A memory with no policy
// adopts p; otherwise its own policy runs first and p limits the survivors.
func (m *Volatile) Bound(p RetentionPolicy) {
	if p == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.policy == nil {
		m.policy = p
		return
	}
	m.policy = Chain(m.policy, p)
}

// Len implements Memory.
func (m *Volatile) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.turns)
}

// Clear implements Memory.
func (m *Volatile) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.turns) > 0 && m.turns[0].Role == RoleSystem {
		m.turns = m.turns[:1:1]
		return
	}
	m.turns = nil
}

// replace swaps the whole sequence after validating it turn by turn.
func (m *Volatile) replace(turns []Turn) error {
	var next []Turn
	for i, t := range turns {
		if err := checkAppend(next, t); err != nil {
			return errors.New(errors.CodeMemoryError, "stored conversation is malformed", err).
				WithContext("index", i)
		}
		next = append(next, t.clone())
	}
	m.mu.Lock()
	m.turns = next
	m.mu.Unlock()
	return nil
}

func checkAppend(existing []Turn, turn Turn) error {
	switch {
	case turn.Role == "":
		return invalidTurn(turn, "missing role")
	case !turn.Role.Valid():
		return invalidTurn(turn, fmt.Sprintf("unknown role %q", turn.Role))
	case turn.Role == RoleTool && turn.ToolName == "":
		return invalidTurn(turn, "tool turn without tool name")
	case turn.Role == RoleSystem && len(existing) > 0:
		if existing[0].Role == RoleSystem {
			return invalidTurn(turn, "second system turn")
		}
		return invalidTurn(turn, "system turn must be first")
	}
	return nil
}

func invalidTurn(turn Turn, reason string) error {
	return errors.New(errors.CodeInvalidTurn, reason, nil).
		WithContext("role", string(turn.Role))
}
