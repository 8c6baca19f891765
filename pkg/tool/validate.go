// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/jllopis/agentcore/pkg/errors"
)

// ParseArguments decodes the raw JSON arguments a model sent for a call.
// Empty input is an empty argument set.
func ParseArguments(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, errors.New(errors.CodeInvalidArguments, "arguments are not a JSON object", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// Validate checks args against the descriptor: required parameters must be
// present and every known parameter must have the declared type and, when
// an enum is declared, one of its values. Unknown arguments are ignored.
func Validate(desc Descriptor, args map[string]any) error {
	for _, p := range desc.Parameters {
		v, ok := args[p.Name]
		if !ok || v == nil {
			if p.Required {
				return invalidArgument(desc, p, "missing required parameter")
			}
			continue
		}
		if !matchesType(p.Type, v) {
			return invalidArgument(desc, p, fmt.Sprintf("expected %s, got %T", p.Type, v))
		}
		if len(p.Enum) > 0 && !slices.Contains(p.Enum, fmt.Sprint(v)) {
			return invalidArgument(desc, p, fmt.Sprintf("value %v not in %v", v, p.Enum))
		}
	}
	return nil
}

func invalidArgument(desc Descriptor, p Parameter, reason string) error {
	return errors.New(errors.CodeInvalidArguments, fmt.Sprintf("parameter %q: %s", p.Name, reason), nil).
		WithContext("tool", desc.Name).
		WithContext("parameter", p.Name)
}

func matchesType(t ParamType, v any) bool {
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeNumber:
		_, ok := toFloat(v)
		return ok
	case TypeInteger:
		f, ok := toFloat(v)
		return ok && f == math.Trunc(f) && !math.IsInf(f, 0)
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case TypeObject:
		_, ok := v.(map[string]any)
		return ok
	case TypeArray:
		_, ok := v.([]any)
		return ok
	case "":
		return true
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
