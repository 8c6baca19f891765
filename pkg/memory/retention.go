// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package memory

// RetentionPolicy decides which turns survive a prune. Implementations
// must keep the system turn, preserve relative order and be idempotent.
type RetentionPolicy interface {
	Apply(turns []Turn) []Turn
}

// WindowPolicy keeps the last MaxTurns non-system turns.
// A non-positive MaxTurns keeps everything.
type WindowPolicy struct {
	MaxTurns int
}

// NewWindowPolicy creates a window-based retention policy.
func NewWindowPolicy(maxTurns int) *WindowPolicy {
	return &WindowPolicy{MaxTurns: maxTurns}
}

// Apply implements RetentionPolicy.
func (w *WindowPolicy) Apply(turns []Turn) []Turn {
	if w.MaxTurns <= 0 {
		return turns
	}
	system, others := splitSystem(turns)
	if len(others) <= w.MaxTurns {
		return turns
	}
	return join(system, others[len(others)-w.MaxTurns:])
}

// TokenPolicy keeps the most recent non-system turns whose estimated token
// count fits MaxTokens. The system turn is never counted against the budget.
type TokenPolicy struct {
	MaxTokens int
	// Counter estimates tokens for a turn. If nil, uses len(content)/4.
	Counter func(Turn) int
}

// NewTokenPolicy creates a token-budget retention policy.
func NewTokenPolicy(maxTokens int) *TokenPolicy {
	return &TokenPolicy{MaxTokens: maxTokens}
}

// Apply implements RetentionPolicy.
func (p *TokenPolicy) Apply(turns []Turn) []Turn {
	counter := p.Counter
	if counter == nil {
		counter = func(t Turn) int { return len(t.Content) / 4 }
	}
	system, others := splitSystem(turns)

	used := 0
	start := len(others)
	for i := len(others) - 1; i >= 0; i-- {
		n := counter(others[i])
		if used+n > p.MaxTokens {
			break
		}
		used += n
		start = i
	}
	if start == 0 {
		return turns
	}
	return join(system, others[start:])
}

// Chain applies each policy to the survivors of the previous one.
func Chain(policies ...RetentionPolicy) RetentionPolicy {
	return chain(policies)
}

type chain []RetentionPolicy

func (c chain) Apply(turns []Turn) []Turn {
	for _, p := range c {
		turns = p.Apply(turns)
	}
	return turns
}

func splitSystem(turns []Turn) (system []Turn, others []Turn) {
	if len(turns) > 0 && turns[0].Role == RoleSystem {
		return turns[:1], turns[1:]
	}
	return nil, turns
}

func join(system, others []Turn) []Turn {
	out := make([]Turn, 0, len(system)+len(others))
	out = append(out, system...)
	return append(out, others...)
}
