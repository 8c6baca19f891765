// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"slices"
	"testing"

	"github.com/jllopis/agentcore/pkg/errors"
)

func contents(m Memory) []string {
	var out []string
	for t := range m.Window() {
		out = append(out, t.Content)
	}
	return out
}

func mustAppend(t *testing.T, m Memory, turns ...Turn) {
	t.Helper()
	for _, turn := range turns {
		if err := m.Append(context.Background(), turn); err != nil {
			t.Fatalf("Append(%+v) failed: %v", turn, err)
		}
	}
}

func TestVolatile_WindowOrder(t *testing.T) {
	m := NewVolatile()
	mustAppend(t, m,
		SystemTurn("sys"),
		UserTurn("hi"),
		AssistantTurn("hello"),
		UserTurn("2+2?"),
	)

	want := []string{"sys", "hi", "hello", "2+2?"}
	if got := contents(m); !slices.Equal(got, want) {
		t.Fatalf("window = %v, want %v", got, want)
	}
	if got := contents(m); !slices.Equal(got, want) {
		t.Fatalf("second iteration = %v, want %v", got, want)
	}
	if m.Len() != 4 {
		t.Errorf("expected 4 turns, got %d", m.Len())
	}
}

func TestVolatile_AssignsIdentity(t *testing.T) {
	m := NewVolatile()
	mustAppend(t, m, UserTurn("a"))
	for turn := range m.Window() {
		if turn.ID == "" || turn.CreatedAt.IsZero() {
			t.Errorf("expected id and timestamp, got %+v", turn)
		}
	}
}

func TestVolatile_WindowIsSnapshot(t *testing.T) {
	m := NewVolatile()
	mustAppend(t, m, SystemTurn("sys"), AssistantTurn("", ToolCall{ID: "c1", Name: "calc", Arguments: "{}"}))

	window := m.Window()
	mustAppend(t, m, UserTurn("later"))

	n := 0
	for turn := range window {
		n++
		if turn.Role == RoleAssistant {
			turn.ToolCalls[0].Name = "mutated"
		}
	}
	if n != 2 {
		t.Errorf("expected snapshot of 2 turns, got %d", n)
	}
	for turn := range m.Window() {
		if turn.Role == RoleAssistant && turn.ToolCalls[0].Name != "calc" {
			t.Errorf("stored turn was mutated through the window")
		}
	}
}

func TestVolatile_WindowEarlyStop(t *testing.T) {
	m := NewVolatile()
	mustAppend(t, m, UserTurn("a"), UserTurn("b"), UserTurn("c"))
	var seen []string
	for turn := range m.Window() {
		seen = append(seen, turn.Content)
		if len(seen) == 2 {
			break
		}
	}
	if !slices.Equal(seen, []string{"a", "b"}) {
		t.Errorf("unexpected %v", seen)
	}
}

func TestVolatile_AppendInvalid(t *testing.T) {
	tests := []struct {
		name     string
		existing []Turn
		turn     Turn
	}{
		{"missing role", nil, Turn{Content: "x"}},
		{"unknown role", nil, Turn{Role: "narrator", Content: "x"}},
		{"tool without name", nil, Turn{Role: RoleTool, Content: "4"}},
		{"second system", []Turn{SystemTurn("a")}, SystemTurn("b")},
		{"system after user", []Turn{UserTurn("a")}, SystemTurn("b")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewVolatile()
			mustAppend(t, m, tt.existing...)
			before := m.Len()
			err := m.Append(context.Background(), tt.turn)
			if !errors.HasCode(err, errors.CodeInvalidTurn) {
				t.Fatalf("expected INVALID_TURN, got %v", err)
			}
			if m.Len() != before {
				t.Errorf("memory changed on failed append")
			}
		})
	}
}

func TestVolatile_PruneKeepsSystemAndNewest(t *testing.T) {
	m := NewVolatile(WithMaxTurns(3))
	mustAppend(t, m, SystemTurn("sys"))
	for _, c := range []string{"u1", "a1", "u2", "a2", "u3"} {
		mustAppend(t, m, UserTurn(c))
	}

	if dropped := m.Prune(); dropped != 2 {
		t.Fatalf("expected 2 dropped, got %d", dropped)
	}
	want := []string{"sys", "u2", "a2", "u3"}
	if got := contents(m); !slices.Equal(got, want) {
		t.Fatalf("window = %v, want %v", got, want)
	}
	if dropped := m.Prune(); dropped != 0 {
		t.Errorf("second prune dropped %d", dropped)
	}
	if got := contents(m); !slices.Equal(got, want) {
		t.Errorf("window changed on second prune: %v", got)
	}
}

func TestVolatile_PruneWithoutPolicy(t *testing.T) {
	m := NewVolatile()
	mustAppend(t, m, UserTurn("a"), UserTurn("b"))
	if m.Prune() != 0 || m.Len() != 2 {
		t.Errorf("expected no pruning without a policy")
	}
}

func TestVolatile_Bound(t *testing.T) {
	tests := []struct {
		name  string
		opts  []Option
		bound int
		want  []string
	}{
		{"adopted without a policy", nil, 2, []string{"sys", "u3", "u4"}},
		{"tighter than own policy", []Option{WithMaxTurns(3)}, 1, []string{"sys", "u4"}},
		{"looser than own policy", []Option{WithMaxTurns(1)}, 3, []string{"sys", "u4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewVolatile(tt.opts...)
			m.Bound(NewWindowPolicy(tt.bound))
			mustAppend(t, m, SystemTurn("sys"), UserTurn("u1"), UserTurn("u2"), UserTurn("u3"), UserTurn("u4"))

			m.Prune()
			if got := contents(m); !slices.Equal(got, tt.want) {
				t.Fatalf("window = %v, want %v", got, tt.want)
			}
			if dropped := m.Prune(); dropped != 0 {
				t.Errorf("second prune dropped %d", dropped)
			}
		})
	}
}

func TestDurableIsBounded(t *testing.T) {
	var m Memory = NewDurable(NewInMemorySink())
	if _, ok := m.(Bounded); !ok {
		t.Fatal("durable memory does not accept a retention bound")
	}
}

func TestVolatile_Clear(t *testing.T) {
	m := NewVolatile()
	mustAppend(t, m, SystemTurn("sys"), UserTurn("a"), AssistantTurn("b"))
	m.Clear()
	if got := contents(m); !slices.Equal(got, []string{"sys"}) {
		t.Fatalf("after clear = %v", got)
	}
	mustAppend(t, m, UserTurn("c"))
	if got := contents(m); !slices.Equal(got, []string{"sys", "c"}) {
		t.Errorf("after append = %v", got)
	}

	bare := NewVolatile()
	mustAppend(t, bare, UserTurn("a"))
	bare.Clear()
	if bare.Len() != 0 {
		t.Errorf("expected empty memory")
	}
}

func TestTokenPolicy(t *testing.T) {
	p := &TokenPolicy{MaxTokens: 5, Counter: func(Turn) int { return 2 }}
	turns := []Turn{SystemTurn("s"), UserTurn("a"), UserTurn("b"), UserTurn("c")}

	kept := p.Apply(turns)
	var got []string
	for _, t := range kept {
		got = append(got, t.Content)
	}
	if !slices.Equal(got, []string{"s", "b", "c"}) {
		t.Fatalf("kept = %v", got)
	}
	if again := p.Apply(kept); len(again) != len(kept) {
		t.Errorf("token policy not idempotent")
	}
}
