// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"strings"
	"testing"
)

func TestEnsureRunID(t *testing.T) {
	ctx, id := EnsureRunID(context.Background())
	if !strings.HasPrefix(id, "run-") {
		t.Fatalf("unexpected run id %q", id)
	}
	_, again := EnsureRunID(ctx)
	if again != id {
		t.Errorf("expected existing run id to be reused, got %q", again)
	}
}

func TestSessionID(t *testing.T) {
	if _, ok := SessionID(context.Background()); ok {
		t.Fatalf("expected no session id")
	}
	ctx := WithSessionID(context.Background(), "s1")
	if id, ok := SessionID(ctx); !ok || id != "s1" {
		t.Errorf("expected s1, got %q", id)
	}
}

func TestRecordingEmitter(t *testing.T) {
	rec := &RecordingEmitter{}
	var e EventEmitter = rec
	e.Emit(context.Background(), NewEvent(EventTurnStarted, "a", "r", nil))
	e.Emit(context.Background(), NewEvent(EventTurnCompleted, "a", "r", nil))

	types := rec.Types()
	if len(types) != 2 || types[0] != EventTurnStarted || types[1] != EventTurnCompleted {
		t.Errorf("unexpected events %v", types)
	}
	if rec.Events()[0].Timestamp.IsZero() {
		t.Errorf("expected timestamp")
	}
}
