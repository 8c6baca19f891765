// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"log/slog"
	"time"
)

// Option configures a memory.
type Option func(*options)

type options struct {
	policy      RetentionPolicy
	now         func() time.Time
	autoPersist bool
	onError     func(error)
	logger      *slog.Logger
}

func newOptions(opts []Option) options {
	o := options{
		now:    func() time.Time { return time.Now().UTC() },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithRetention sets the retention policy applied by Prune.
func WithRetention(p RetentionPolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithMaxTurns retains at most n non-system turns.
func WithMaxTurns(n int) Option {
	return WithRetention(NewWindowPolicy(n))
}

// WithClock overrides the timestamp source for new turns.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithAutoPersist makes a Durable memory persist after every mutation.
func WithAutoPersist(enabled bool) Option {
	return func(o *options) { o.autoPersist = enabled }
}

// WithErrorHook receives persistence failures that happen during
// auto-persist, where the error cannot be returned to the caller.
func WithErrorHook(fn func(error)) Option {
	return func(o *options) { o.onError = fn }
}

// WithLogger sets the logger used by a Durable memory.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
