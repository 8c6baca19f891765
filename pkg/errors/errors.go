// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package errors provides the typed error taxonomy of the agent core.
// Every failure the core reports carries an ErrorCode so callers can branch
// on kind without string matching.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies agent core errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInvalidConfig indicates a configuration value failed validation.
	CodeInvalidConfig ErrorCode = "INVALID_CONFIG"

	// CodeEmptyInput indicates a turn was requested with no user text.
	CodeEmptyInput ErrorCode = "EMPTY_INPUT"

	// CodeInvalidTurn indicates a malformed turn reached memory.
	CodeInvalidTurn ErrorCode = "INVALID_TURN"

	// CodeModelCallFailed indicates the model-call collaborator failed
	// after retries, or failed with a non-transient error.
	CodeModelCallFailed ErrorCode = "MODEL_CALL_FAILED"

	// CodeToolNotFound indicates the model asked for an unregistered tool.
	CodeToolNotFound ErrorCode = "TOOL_NOT_FOUND"

	// CodeInvalidArguments indicates tool arguments did not match the schema.
	CodeInvalidArguments ErrorCode = "INVALID_ARGUMENTS"

	// CodeToolExecutionFailed indicates a tool failed while running.
	CodeToolExecutionFailed ErrorCode = "TOOL_EXECUTION_FAILED"

	// CodeToolLoopExceeded indicates the tool-dispatch loop hit its bound.
	CodeToolLoopExceeded ErrorCode = "TOOL_LOOP_EXCEEDED"

	// CodeMemoryError indicates a durable memory sink failed.
	CodeMemoryError ErrorCode = "MEMORY_ERROR"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeContextLost indicates the context was canceled mid-operation.
	CodeContextLost ErrorCode = "CONTEXT_LOST"

	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL"
)

// Error is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type Error struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Attributes  map[string]string
	Recoverable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code. This lets
// callers write errors.Is(err, errors.Sentinel(errors.CodeEmptyInput)).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == "" && t.Err == nil
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *Error) MarshalJSON() ([]byte, error) {
	var cause string
	if e.Err != nil {
		cause = e.Err.Error()
	}
	return json.Marshal(&struct {
		Code        string                 `json:"code"`
		Message     string                 `json:"message"`
		Err         string                 `json:"error,omitempty"`
		Context     map[string]interface{} `json:"context,omitempty"`
		Recoverable bool                   `json:"recoverable"`
	}{
		Code:        string(e.Code),
		Message:     e.Message,
		Err:         cause,
		Context:     e.Context,
		Recoverable: e.Recoverable,
	})
}

// New creates a new Error with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *Error {
	return &Error{
		Code:       code,
		Message:    msg,
		Err:        cause,
		Context:    make(map[string]interface{}),
		Attributes: make(map[string]string),
	}
}

// Sentinel returns a bare error of the given code, suitable as an
// errors.Is target.
func Sentinel(code ErrorCode) *Error {
	return &Error{Code: code}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithAttribute adds a string attribute for OTEL traces.
// Returns the error for method chaining.
func (e *Error) WithAttribute(key, value string) *Error {
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *Error) WithRecoverable(recoverable bool) *Error {
	e.Recoverable = recoverable
	return e
}

// RecoverableString returns "true" or "false" as a string for observability.
func (e *Error) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}

// As finds the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns the code of the first *Error in err's chain, or
// CodeInternal when err carries none. A nil error has no code.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok {
		return e.Code
	}
	return CodeInternal
}

// HasCode reports whether err's chain contains an *Error with code.
func HasCode(err error, code ErrorCode) bool {
	return stderrors.Is(err, Sentinel(code))
}

// Wrap converts an arbitrary error to *Error. Errors that already are
// *Error are returned unchanged.
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}
	return New(CodeInternal, "wrapped error", err)
}

// InvalidConfig builds an INVALID_CONFIG error naming the offending field.
func InvalidConfig(field, reason string) *Error {
	return New(CodeInvalidConfig, fmt.Sprintf("invalid config %s: %s", field, reason), nil).
		WithContext("field", field).
		WithContext("reason", reason)
}
