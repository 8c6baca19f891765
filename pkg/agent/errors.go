// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"fmt"
	"time"

	"github.com/jllopis/agentcore/pkg/errors"
	"github.com/jllopis/agentcore/pkg/tool"
)

func emptyInputError() *errors.Error {
	return errors.New(errors.CodeEmptyInput, "input must not be empty", nil)
}

// wrapModelError wraps a provider failure that survived the retry policy.
func wrapModelError(err error, model string, attempts int) *errors.Error {
	if err == nil {
		return nil
	}
	return errors.New(errors.CodeModelCallFailed, "model call failed", err).
		WithContext("model", model).
		WithContext("attempts", attempts).
		WithAttribute("gen_ai.request.model", model).
		WithRecoverable(false)
}

// loopExceededError reports that the model kept asking for tools after the
// last allowed round.
func loopExceededError(maxIterations int) *errors.Error {
	return errors.New(errors.CodeToolLoopExceeded,
		fmt.Sprintf("model still requested tools after %d rounds", maxIterations), nil).
		WithContext("max_iterations", maxIterations)
}

func contextLostError(cause error, stage string) *errors.Error {
	return errors.New(errors.CodeContextLost, "turn canceled", cause).
		WithContext("stage", stage)
}

// wrapMemoryError keeps typed memory errors as they are and tags anything
// else as MEMORY_ERROR.
func wrapMemoryError(err error, operation string) error {
	if err == nil {
		return nil
	}
	if e, ok := errors.As(err); ok {
		return e
	}
	return errors.New(errors.CodeMemoryError, "memory operation failed", err).
		WithContext("operation", operation).
		WithAttribute("memory.operation", operation)
}

func notDurableError(operation string) *errors.Error {
	return errors.New(errors.CodeMemoryError, "memory is not durable", nil).
		WithContext("operation", operation)
}

// toolFailure normalizes an invocation error to one of the codes the model
// sees in a tool turn: TOOL_NOT_FOUND, INVALID_ARGUMENTS or
// TOOL_EXECUTION_FAILED.
func toolFailure(err error, name string, timeout time.Duration) *errors.Error {
	e := errors.Wrap(err)
	switch e.Code {
	case errors.CodeToolNotFound, errors.CodeInvalidArguments, errors.CodeToolExecutionFailed:
		return e
	case errors.CodeTimeout:
		return errors.New(errors.CodeToolExecutionFailed, fmt.Sprintf("timed out after %s", timeout), nil).
			WithContext("tool", name)
	case errors.CodeContextLost:
		return errors.New(errors.CodeToolExecutionFailed, "canceled", nil).
			WithContext("tool", name)
	}
	return errors.New(errors.CodeToolExecutionFailed, "tool failed", err).
		WithContext("tool", name)
}

// failureContent renders a failed invocation as tool turn content.
func failureContent(err error, name string, timeout time.Duration) (string, *errors.Error) {
	e := toolFailure(err, name, timeout)
	return tool.FailureText(e), e
}
