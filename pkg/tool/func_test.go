// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"fmt"
	"testing"

	kerrors "github.com/jllopis/agentcore/pkg/errors"
)

type greetArgs struct {
	Name  string `json:"name" jsonschema:"description=Who to greet"`
	Times int    `json:"times,omitempty" jsonschema:"description=Repetitions"`
	Tone  string `json:"tone,omitempty" jsonschema:"enum=warm,enum=dry"`
}

func TestFunc_Descriptor(t *testing.T) {
	f := MustFunc("greet", "Greets someone", func(_ context.Context, in greetArgs) (any, error) {
		return "hi " + in.Name, nil
	})
	desc := f.Descriptor()
	if desc.Name != "greet" || desc.Description != "Greets someone" {
		t.Fatalf("unexpected descriptor %+v", desc)
	}
	if len(desc.Parameters) != 3 {
		t.Fatalf("expected 3 parameters, got %+v", desc.Parameters)
	}

	name, _ := desc.Parameter("name")
	if name.Type != TypeString || !name.Required || name.Description != "Who to greet" {
		t.Errorf("unexpected name parameter %+v", name)
	}
	times, _ := desc.Parameter("times")
	if times.Type != TypeInteger || times.Required {
		t.Errorf("unexpected times parameter %+v", times)
	}
	tone, _ := desc.Parameter("tone")
	if len(tone.Enum) != 2 || tone.Enum[0] != "warm" {
		t.Errorf("unexpected tone enum %+v", tone.Enum)
	}
	if desc.Parameters[0].Name != "name" || desc.Parameters[2].Name != "tone" {
		t.Errorf("parameters not in field order: %+v", desc.Parameters)
	}
}

func TestFunc_Invoke(t *testing.T) {
	f := MustFunc("greet", "", func(_ context.Context, in greetArgs) (any, error) {
		return fmt.Sprintf("%s x%d", in.Name, in.Times), nil
	})
	reg := &Registry{}
	reg.MustRegister(f)

	out, err := reg.Invoke(context.Background(), "greet", map[string]any{"name": "Ada", "times": float64(2)})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if out != "Ada x2" {
		t.Errorf("unexpected output %v", out)
	}

	_, err = f.Invoke(context.Background(), map[string]any{"name": []any{"not", "a", "string"}})
	if !kerrors.HasCode(err, kerrors.CodeInvalidArguments) {
		t.Errorf("expected INVALID_ARGUMENTS, got %v", err)
	}
}

func TestParametersOf_NotStruct(t *testing.T) {
	if _, err := ParametersOf[string](); err == nil {
		t.Errorf("expected error for non-struct parameters")
	}
	if _, err := NewFunc[greetArgs]("x", "", nil); err == nil {
		t.Errorf("expected error for nil function")
	}
}
