// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package builtin provides the tools shipped with agentcore: a calculator,
// a web search and a current-weather lookup.
package builtin

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/jllopis/agentcore/pkg/tool"
)

// CalculatorName is the registered name of the calculator tool.
const CalculatorName = "calculator"

// CalculatorArgs are the calculator parameters.
type CalculatorArgs struct {
	Expression string `json:"expression" jsonschema:"description=Mathematical expression to evaluate (e.g. '2 + 3 * 4')"`
}

var arithmeticOnly = regexp.MustCompile(`^[0-9eE\s.+\-*/%^()]+$`)

// NewCalculator returns the calculator tool. It evaluates arithmetic with
// + - * / % ** (or ^ for power) and parentheses. Names, function calls and
// any other syntax are rejected.
func NewCalculator() tool.Tool {
	return tool.MustFunc(CalculatorName,
		"Performs safe mathematical calculations. Supports +, -, *, /, %, ** (power), and parentheses.",
		func(_ context.Context, in CalculatorArgs) (any, error) {
			return Calculate(in.Expression)
		})
}

// Calculate evaluates an arithmetic expression.
func Calculate(expression string) (float64, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return 0, fmt.Errorf("no expression provided")
	}
	if !arithmeticOnly.MatchString(expression) {
		return 0, fmt.Errorf("invalid expression: %s", expression)
	}

	program, err := expr.Compile(expression,
		expr.Env(map[string]any{}),
		expr.DisableAllBuiltins(),
	)
	if err != nil {
		return 0, fmt.Errorf("invalid expression: %s", expression)
	}
	out, err := expr.Run(program, map[string]any{})
	if err != nil {
		return 0, fmt.Errorf("evaluate %s: %w", expression, err)
	}

	var result float64
	switch v := out.(type) {
	case int:
		result = float64(v)
	case int64:
		result = float64(v)
	case float64:
		result = v
	default:
		return 0, fmt.Errorf("expression %s did not produce a number", expression)
	}
	if math.IsInf(result, 0) || math.IsNaN(result) {
		return 0, fmt.Errorf("division by zero or undefined result in %s", expression)
	}
	return result, nil
}
