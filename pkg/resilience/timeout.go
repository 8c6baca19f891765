// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"time"

	"github.com/jllopis/agentcore/pkg/errors"
)

// WithTimeout executes fn with a timeout boundary. fn receives a context
// that is canceled when the deadline passes.
// Returns errors.CodeTimeout if the deadline is exceeded and
// errors.CodeContextLost if the parent context ends first.
// A zero or negative duration means no limit.
func WithTimeout(ctx context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	_, err := WithTimeoutResult(ctx, d, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// WithTimeoutResult executes fn with a timeout boundary, returning both result and error.
func WithTimeoutResult[T any](ctx context.Context, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, errors.New(errors.CodeContextLost, "context canceled", err)
	}
	if d <= 0 {
		return fn(ctx)
	}

	callCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		value T
		err   error
	}

	done := make(chan result, 1)
	go func() {
		value, err := fn(callCtx)
		done <- result{value, err}
	}()

	select {
	case <-callCtx.Done():
		return zero, deadlineError(ctx, callCtx, d)
	case res := <-done:
		if res.err != nil && callCtx.Err() != nil {
			return zero, deadlineError(ctx, callCtx, d)
		}
		return res.value, res.err
	}
}

func deadlineError(parent, call context.Context, d time.Duration) error {
	if parent.Err() != nil {
		return errors.New(errors.CodeContextLost, "context canceled", parent.Err())
	}
	return errors.New(errors.CodeTimeout, "operation exceeded timeout", call.Err()).
		WithContext("timeout", d.String()).
		WithRecoverable(true)
}
