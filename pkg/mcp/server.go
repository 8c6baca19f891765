// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jllopis/agentcore/pkg/tool"
)

// Server publishes local tools to MCP clients.
type Server struct {
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server.
func NewServer(name, version string) *Server {
	return &Server{
		mcpServer: server.NewMCPServer(name, version, server.WithToolCapabilities(false)),
	}
}

// RegisterTool registers a single handler under name.
func (s *Server) RegisterTool(name, description string, handler func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error)) {
	s.mcpServer.AddTool(mcp.NewTool(name, mcp.WithDescription(description)),
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handler(ctx, request.GetArguments())
		})
}

// RegisterRegistry publishes every tool of reg. Calls go through
// reg.Invoke, so arguments are validated the same way the agent validates
// them; failures are returned as error results carrying the failure text.
func (s *Server) RegisterRegistry(reg *tool.Registry) error {
	for _, desc := range reg.Descriptors() {
		schema, err := json.Marshal(desc.JSONSchema())
		if err != nil {
			return fmt.Errorf("mcp: schema for %s: %w", desc.Name, err)
		}
		name := desc.Name
		s.mcpServer.AddTool(mcp.NewToolWithRawSchema(name, desc.Description, schema),
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				args := request.GetArguments()
				if args == nil {
					args = map[string]any{}
				}
				result, err := reg.Invoke(ctx, name, args)
				if err != nil {
					return mcp.NewToolResultError(tool.FailureText(err)), nil
				}
				return mcp.NewToolResultText(tool.Stringify(result)), nil
			})
	}
	return nil
}

// MCPServer exposes the underlying server, e.g. for in-process transports.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio serves on stdin/stdout until the input closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeStreamableHTTP serves the streamable HTTP transport on addr.
func (s *Server) ServeStreamableHTTP(addr string) error {
	return server.NewStreamableHTTPServer(s.mcpServer).Start(addr)
}
