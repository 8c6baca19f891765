// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jllopis/agentcore/pkg/errors"
)

// CLIError wraps an agent error with a hint for the terminal user.
type CLIError struct {
	Err  *errors.Error
	Hint string
}

// NewCLIError creates a new CLI error.
func NewCLIError(e *errors.Error, hint string) *CLIError {
	return &CLIError{Err: e, Hint: hint}
}

// Error returns the formatted error message with hints.
func (e *CLIError) Error() string {
	if e.Err == nil {
		return "unknown error"
	}
	msg := e.Err.Error()
	if e.Hint != "" {
		msg += "\n  Hint: " + e.Hint
	}
	return msg
}

// Unwrap exposes the typed error to errors.As.
func (e *CLIError) Unwrap() error { return e.Err }

// PrintError writes the error to w, as a JSON object when asJSON is set.
func (e *CLIError) PrintError(w io.Writer, asJSON bool) {
	message := e.Err.Message
	if e.Err.Err != nil {
		message += ": " + e.Err.Err.Error()
	}
	if asJSON {
		out := struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
				Hint    string `json:"hint,omitempty"`
			} `json:"error"`
		}{}
		out.Error.Code = string(e.Err.Code)
		out.Error.Message = message
		out.Error.Hint = e.Hint
		_ = json.NewEncoder(w).Encode(out)
		return
	}

	fmt.Fprintf(w, "Error [%s]: %s\n", FormatErrorCode(e.Err.Code), message)
	if e.Hint != "" {
		fmt.Fprintf(w, "  Hint: %s\n", e.Hint)
	}
}

// WrapError turns any error into a CLIError, choosing a hint from its code.
func WrapError(err error) *CLIError {
	if ce, ok := err.(*CLIError); ok {
		return ce
	}
	e := errors.Wrap(err)
	return NewCLIError(e, hintFor(e.Code))
}

// NewInvalidArgumentError creates an invalid argument error with CLI hints.
func NewInvalidArgumentError(arg, reason string) *CLIError {
	e := errors.InvalidConfig(arg, reason)
	e.Message = "invalid argument: " + reason
	return NewCLIError(e, "run 'agentcore help' for usage information")
}

// NewConfigError creates a configuration error with CLI hints.
func NewConfigError(err error, configPath string) *CLIError {
	e, ok := errors.As(err)
	if !ok || e.Code != errors.CodeInvalidConfig {
		e = errors.New(errors.CodeInvalidConfig, "configuration error", err)
	}
	if configPath != "" {
		e = e.WithContext("config_path", configPath)
	}

	hint := "check your configuration file syntax and --set overrides"
	if configPath != "" {
		hint = fmt.Sprintf("check %s and any --set overrides", configPath)
	}
	return NewCLIError(e, hint)
}

func hintFor(code errors.ErrorCode) string {
	switch code {
	case errors.CodeInvalidConfig:
		return "check your configuration file and --set overrides"
	case errors.CodeModelCallFailed:
		return "check that the model backend is reachable and the API key is valid"
	case errors.CodeTimeout:
		return "raise agent.model_timeout or agent.tool_timeout"
	case errors.CodeToolLoopExceeded:
		return "raise agent.retry.max_tool_iterations or simplify the request"
	case errors.CodeMemoryError:
		return "check memory.path and its permissions"
	case errors.CodeEmptyInput:
		return "type a message before pressing enter"
	default:
		return ""
	}
}

// FormatErrorCode returns a user-friendly name for error codes.
func FormatErrorCode(code errors.ErrorCode) string {
	switch code {
	case errors.CodeInvalidConfig:
		return "Invalid Configuration"
	case errors.CodeEmptyInput:
		return "Empty Input"
	case errors.CodeInvalidTurn:
		return "Invalid Turn"
	case errors.CodeModelCallFailed:
		return "Model Call Failed"
	case errors.CodeToolNotFound:
		return "Tool Not Found"
	case errors.CodeInvalidArguments:
		return "Invalid Arguments"
	case errors.CodeToolExecutionFailed:
		return "Tool Failure"
	case errors.CodeToolLoopExceeded:
		return "Tool Loop Exceeded"
	case errors.CodeMemoryError:
		return "Memory Error"
	case errors.CodeTimeout:
		return "Timeout"
	case errors.CodeContextLost:
		return "Context Lost"
	case errors.CodeInternal:
		return "Internal Error"
	default:
		return string(code)
	}
}
