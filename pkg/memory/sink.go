// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"slices"
	"sync"
)

// Sink is the storage boundary of a Durable memory.
type Sink interface {
	// Load returns the stored sequence, or an empty one if nothing was saved.
	Load(ctx context.Context) ([]Turn, error)

	// Save replaces the stored sequence.
	Save(ctx context.Context, turns []Turn) error
}

// InMemorySink keeps the saved sequence in process. Useful in tests and for
// sharing a conversation between agents in the same process.
type InMemorySink struct {
	mu    sync.Mutex
	turns []Turn
	saves int
}

// NewInMemorySink creates an empty in-process sink.
func NewInMemorySink() *InMemorySink {
	return &InMemorySink{}
}

// Load implements Sink.
func (s *InMemorySink) Load(_ context.Context) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneTurns(s.turns), nil
}

// Save implements Sink.
func (s *InMemorySink) Save(_ context.Context, turns []Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = cloneTurns(turns)
	s.saves++
	return nil
}

// Saves returns how many times Save was called.
func (s *InMemorySink) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func cloneTurns(turns []Turn) []Turn {
	out := slices.Clone(turns)
	for i := range out {
		out[i] = out[i].clone()
	}
	return out
}
