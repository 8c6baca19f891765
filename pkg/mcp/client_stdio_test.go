// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"os"
	"testing"

	"github.com/jllopis/agentcore/pkg/config"
	"github.com/jllopis/agentcore/pkg/tool"
)

const stdioHelperEnv = "AGENTCORE_MCP_STDIO_HELPER"

func TestHelperMCPStdioServer(t *testing.T) {
	if os.Getenv(stdioHelperEnv) != "1" {
		return
	}
	if err := calculatorServer(t).ServeStdio(); err != nil {
		os.Exit(1)
	}
	os.Exit(0)
}

func TestConnectStdio(t *testing.T) {
	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable: %v", err)
	}

	client, err := Connect(context.Background(), config.MCPServerConfig{
		Name:      "helper",
		Transport: "stdio",
		Command:   exe,
		Args:      []string{"-test.run", "^TestHelperMCPStdioServer$"},
		Env:       map[string]string{stdioHelperEnv: "1"},
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	if client.Name() != "helper" {
		t.Errorf("Name = %q", client.Name())
	}

	reg, _ := tool.NewRegistry()
	names, err := RegisterTools(context.Background(), reg, client)
	if err != nil {
		t.Fatalf("RegisterTools: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("registered %v", names)
	}

	out, err := reg.Invoke(context.Background(), "ping", nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out != "pong" {
		t.Errorf("output = %v", out)
	}
}
