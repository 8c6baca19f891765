// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"log/slog"
	"slices"

	"github.com/jllopis/agentcore/pkg/errors"
)

// Durable is a Volatile memory that can be saved to and restored from a Sink.
type Durable struct {
	*Volatile
	sink        Sink
	autoPersist bool
	onError     func(error)
	logger      *slog.Logger
}

// NewDurable creates a memory backed by sink. The in-memory sequence starts
// empty; call Restore to load a previous session.
func NewDurable(sink Sink, opts ...Option) *Durable {
	o := newOptions(opts)
	return &Durable{
		Volatile:    &Volatile{policy: o.policy, now: o.now},
		sink:        sink,
		autoPersist: o.autoPersist,
		onError:     o.onError,
		logger:      o.logger,
	}
}

// Append implements Memory. With auto-persist enabled a failed save is
// logged and reported to the error hook; the append itself still succeeds.
func (d *Durable) Append(ctx context.Context, turn Turn) error {
	if err := d.Volatile.Append(ctx, turn); err != nil {
		return err
	}
	d.autoSave(ctx)
	return nil
}

// Prune implements Memory.
func (d *Durable) Prune() int {
	n := d.Volatile.Prune()
	if n > 0 {
		d.autoSave(context.Background())
	}
	return n
}

// Clear implements Memory.
func (d *Durable) Clear() {
	d.Volatile.Clear()
	d.autoSave(context.Background())
}

// Persist writes the current sequence to the sink.
// A failure leaves the in-memory sequence untouched.
func (d *Durable) Persist(ctx context.Context) error {
	turns := slices.Collect(d.Window())
	if err := d.sink.Save(ctx, turns); err != nil {
		return errors.New(errors.CodeMemoryError, "persist conversation", err).
			WithContext("turns", len(turns))
	}
	return nil
}

// Restore replaces the in-memory sequence with the sink's contents.
// A sink that holds nothing yet restores an empty sequence.
func (d *Durable) Restore(ctx context.Context) error {
	turns, err := d.sink.Load(ctx)
	if err != nil {
		return errors.New(errors.CodeMemoryError, "restore conversation", err)
	}
	return d.replace(turns)
}

func (d *Durable) autoSave(ctx context.Context) {
	if !d.autoPersist {
		return
	}
	if err := d.Persist(ctx); err != nil {
		d.logger.Warn("memory.persist.failed", slog.String("error", err.Error()))
		if d.onError != nil {
			d.onError(err)
		}
	}
}
