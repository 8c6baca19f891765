// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"fmt"
	"slices"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"

	"github.com/jllopis/agentcore/pkg/errors"
)

// Func is a tool backed by a typed Go function. Its parameters are derived
// from the json and jsonschema tags of T, and arguments are decoded into T
// before fn runs.
type Func[T any] struct {
	desc Descriptor
	fn   func(ctx context.Context, in T) (any, error)
}

// NewFunc builds a typed tool. T must be a struct.
func NewFunc[T any](name, description string, fn func(ctx context.Context, in T) (any, error)) (*Func[T], error) {
	if fn == nil {
		return nil, fmt.Errorf("tool %s: nil function", name)
	}
	params, err := ParametersOf[T]()
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}
	return &Func[T]{
		desc: Descriptor{Name: name, Description: description, Parameters: params},
		fn:   fn,
	}, nil
}

// MustFunc is like NewFunc but panics on error.
func MustFunc[T any](name, description string, fn func(ctx context.Context, in T) (any, error)) *Func[T] {
	f, err := NewFunc(name, description, fn)
	if err != nil {
		panic(err)
	}
	return f
}

// Descriptor implements Tool.
func (f *Func[T]) Descriptor() Descriptor { return f.desc }

// Invoke implements Tool.
func (f *Func[T]) Invoke(ctx context.Context, args map[string]any) (any, error) {
	var in T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  &in,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(args); err != nil {
		return nil, errors.New(errors.CodeInvalidArguments, "decode arguments", err).
			WithContext("tool", f.desc.Name)
	}
	return f.fn(ctx, in)
}

// ParametersOf derives tool parameters from the struct type T.
func ParametersOf[T any]() ([]Parameter, error) {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var zero T
	schema := r.Reflect(&zero)
	if schema.Type != "object" || schema.Properties == nil {
		return nil, fmt.Errorf("parameters type %T is not a struct", zero)
	}

	var params []Parameter
	for p := schema.Properties.Oldest(); p != nil; p = p.Next() {
		prop := p.Value
		param := Parameter{
			Name:        p.Key,
			Type:        ParamType(prop.Type),
			Description: prop.Description,
			Required:    slices.Contains(schema.Required, p.Key),
		}
		for _, v := range prop.Enum {
			param.Enum = append(param.Enum, fmt.Sprint(v))
		}
		params = append(params, param)
	}
	return params, nil
}
