// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jllopis/agentcore/pkg/errors"
	"github.com/jllopis/agentcore/pkg/tool"
)

// ToolCaller abstracts MCP tool execution for adapters.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
}

// ToolLister is a ToolCaller that can also enumerate its tools.
type ToolLister interface {
	ToolCaller
	ListTools(ctx context.Context) ([]mcp.Tool, error)
}

// ToolAdapter exposes a remote MCP tool as a tool.Tool.
type ToolAdapter struct {
	remote mcp.Tool
	desc   tool.Descriptor
	caller ToolCaller
}

// NewToolAdapter builds a tool.Tool backed by an MCP tool definition.
func NewToolAdapter(remote mcp.Tool, caller ToolCaller) (*ToolAdapter, error) {
	if remote.Name == "" {
		return nil, errors.InvalidConfig("mcp.tool.name", "must not be empty")
	}
	if caller == nil {
		return nil, errors.InvalidConfig("mcp.tool.caller", "must not be nil")
	}
	desc, err := Descriptor(remote)
	if err != nil {
		return nil, err
	}
	return &ToolAdapter{remote: remote, desc: desc, caller: caller}, nil
}

// Descriptor implements tool.Tool.
func (t *ToolAdapter) Descriptor() tool.Descriptor { return t.desc }

// Source reports where the tool runs, for telemetry.
func (t *ToolAdapter) Source() string { return "mcp" }

// Invoke implements tool.Tool. A result flagged as an error by the server
// becomes TOOL_EXECUTION_FAILED with the server's text.
func (t *ToolAdapter) Invoke(ctx context.Context, args map[string]any) (any, error) {
	if args == nil {
		args = map[string]any{}
	}
	result, err := t.caller.CallTool(ctx, t.remote.Name, args)
	if err != nil {
		return nil, err
	}
	return toolResultToOutput(t.remote.Name, result)
}

// RegisterTools discovers the tools of lister and registers an adapter for
// each one. It returns the registered names in server order.
func RegisterTools(ctx context.Context, reg *tool.Registry, lister ToolLister) ([]string, error) {
	remote, err := lister.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(remote))
	for _, rt := range remote {
		adapter, err := NewToolAdapter(rt, lister)
		if err != nil {
			return names, err
		}
		if err := reg.Register(adapter); err != nil {
			return names, err
		}
		names = append(names, rt.Name)
	}
	return names, nil
}

// Descriptor converts an MCP tool definition to a tool.Descriptor. Only the
// top-level properties of the input schema become parameters.
func Descriptor(remote mcp.Tool) (tool.Descriptor, error) {
	schema := remote.InputSchema
	if remote.RawInputSchema != nil {
		schema = mcp.ToolInputSchema{}
		if err := json.Unmarshal(remote.RawInputSchema, &schema); err != nil {
			return tool.Descriptor{}, errors.New(errors.CodeInvalidConfig, "mcp tool schema is not valid JSON", err).
				WithContext("tool", remote.Name)
		}
	}

	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make([]tool.Parameter, 0, len(names))
	for _, name := range names {
		p := tool.Parameter{Name: name, Required: required[name]}
		if prop, ok := schema.Properties[name].(map[string]any); ok {
			p.Type = paramType(prop["type"])
			p.Description, _ = prop["description"].(string)
			if enum, ok := prop["enum"].([]any); ok {
				for _, v := range enum {
					p.Enum = append(p.Enum, fmt.Sprint(v))
				}
			}
		}
		params = append(params, p)
	}
	return tool.Descriptor{Name: remote.Name, Description: remote.Description, Parameters: params}, nil
}

func paramType(v any) tool.ParamType {
	s, _ := v.(string)
	switch t := tool.ParamType(s); t {
	case tool.TypeString, tool.TypeNumber, tool.TypeInteger, tool.TypeBoolean, tool.TypeObject, tool.TypeArray:
		return t
	}
	return ""
}

func toolResultToOutput(name string, result *mcp.CallToolResult) (any, error) {
	if result == nil {
		return nil, errors.New(errors.CodeToolExecutionFailed, "mcp tool returned no result", nil).
			WithContext("tool", name)
	}
	if result.IsError {
		return nil, errors.New(errors.CodeToolExecutionFailed, extractTextContent(result.Content), nil).
			WithContext("tool", name)
	}
	if result.StructuredContent != nil {
		return result.StructuredContent, nil
	}
	return extractTextContent(result.Content), nil
}

func extractTextContent(items []mcp.Content) string {
	var parts []string
	for _, item := range items {
		switch content := item.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		}
	}
	return strings.Join(parts, "\n")
}

var _ tool.Tool = (*ToolAdapter)(nil)
