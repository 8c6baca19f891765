// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"

	"github.com/jllopis/agentcore/pkg/errors"
)

// ProviderError is returned by providers when the backend call fails.
// StatusCode is zero when no HTTP response was received.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("%s api returned status %d: %s", e.Provider, e.StatusCode, e.Body)
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s api returned status %d: %v", e.Provider, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s api returned status %d", e.Provider, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s api call failed: %v", e.Provider, e.Err)
	}
	return e.Provider + " api call failed"
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Transient reports whether retrying the call may succeed: request
// timeouts, rate limiting, server errors and transport failures.
func (e *ProviderError) Transient() bool {
	switch {
	case e.StatusCode == http.StatusRequestTimeout,
		e.StatusCode == http.StatusTooManyRequests,
		e.StatusCode >= 500:
		return true
	case e.StatusCode == 0:
		return e.Err != nil && !stderrors.Is(e.Err, context.Canceled)
	}
	return false
}

// IsTransient classifies a model-call failure for retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.Canceled) {
		return false
	}
	var pe *ProviderError
	if stderrors.As(err, &pe) {
		return pe.Transient()
	}
	if e, ok := errors.As(err); ok {
		return e.Recoverable
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr)
}
