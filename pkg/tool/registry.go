// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"fmt"
	"sync"

	"github.com/jllopis/agentcore/pkg/errors"
)

// Registry maps tool names to tools, keeping registration order.
type Registry struct {
	mu    sync.RWMutex
	order []string
	tools map[string]Tool
}

// NewRegistry creates a registry holding tools, in order.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a tool. Names must be non-empty and unique.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return errors.New(errors.CodeInvalidConfig, "tool is nil", nil)
	}
	name := t.Descriptor().Name
	if name == "" {
		return errors.New(errors.CodeInvalidConfig, "tool name is empty", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tools == nil {
		r.tools = make(map[string]Tool)
	}
	if _, exists := r.tools[name]; exists {
		return errors.New(errors.CodeInvalidConfig, fmt.Sprintf("tool %q already registered", name), nil).
			WithContext("tool", name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(tools ...Tool) {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns the tools in registration order.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Descriptors returns the descriptors in registration order.
func (r *Registry) Descriptors() []Descriptor {
	tools := r.List()
	out := make([]Descriptor, len(tools))
	for i, t := range tools {
		out[i] = t.Descriptor()
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// InvokeJSON resolves the named tool before decoding raw, so an unknown
// name is reported as TOOL_NOT_FOUND whatever its arguments look like.
func (r *Registry) InvokeJSON(ctx context.Context, name, raw string) (any, error) {
	if _, err := r.lookup(name); err != nil {
		return nil, err
	}
	args, err := ParseArguments(raw)
	if err != nil {
		return nil, err
	}
	return r.Invoke(ctx, name, args)
}

func (r *Registry) lookup(name string) (Tool, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, errors.New(errors.CodeToolNotFound, fmt.Sprintf("unknown tool %q", name), nil).
			WithContext("tool", name)
	}
	return t, nil
}

// Invoke looks up, validates and runs the named tool. Failures are typed:
// TOOL_NOT_FOUND, INVALID_ARGUMENTS, or TOOL_EXECUTION_FAILED for anything
// the tool itself reports, including panics.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (result any, err error) {
	t, err := r.lookup(name)
	if err != nil {
		return nil, err
	}

	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = errors.New(errors.CodeToolExecutionFailed, "tool panicked", fmt.Errorf("panic: %v", rec)).
				WithContext("tool", name)
		}
	}()

	if err := Validate(t.Descriptor(), args); err != nil {
		return nil, err
	}
	result, err = t.Invoke(ctx, args)
	if err != nil {
		switch errors.CodeOf(err) {
		case errors.CodeInvalidArguments, errors.CodeToolExecutionFailed, errors.CodeTimeout, errors.CodeContextLost:
			return nil, err
		}
		return nil, errors.New(errors.CodeToolExecutionFailed, "tool failed", err).
			WithContext("tool", name)
	}
	return result, nil
}

// FailureText renders a tool failure the way it is reported back to the
// model: the error code followed by the most specific message available.
func FailureText(err error) string {
	e := errors.Wrap(err)
	if e == nil {
		return ""
	}
	detail := e.Message
	if e.Err != nil {
		detail = e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Code, detail)
}
