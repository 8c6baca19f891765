// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package mcp connects the agent's tool registry to Model Context Protocol
// servers: remote tools are registered as local tools, and a registry can
// be served to other MCP clients.
package mcp

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jllopis/agentcore/pkg/config"
	"github.com/jllopis/agentcore/pkg/errors"
	"github.com/jllopis/agentcore/pkg/resilience"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultRetries  = 2
	defaultBackoff  = 200 * time.Millisecond
	defaultCacheTTL = 30 * time.Second

	clientName    = "agentcore"
	clientVersion = "0.1.0"
)

// ClientOption customizes the MCP client wrapper behavior.
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRetry configures retry count and initial backoff.
func WithRetry(retries int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		if retries >= 0 {
			c.retry.MaxAttempts = retries + 1
		}
		if backoff > 0 {
			c.retry.InitialDelay = backoff
		}
	}
}

// WithToolCacheTTL sets the tool discovery cache TTL. Use 0 to disable caching.
func WithToolCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		if ttl >= 0 {
			c.cacheTTL = ttl
		}
	}
}

// Client wraps an mcp-go client with timeouts, retries and a tool list cache.
type Client struct {
	name      string
	mcpClient client.MCPClient
	timeout   time.Duration
	retry     resilience.RetryConfig
	cacheTTL  time.Duration

	mu          sync.Mutex
	toolsCache  []mcp.Tool
	cacheExpiry time.Time
}

// NewClient creates a Client around an initialized MCP client.
func NewClient(c client.MCPClient, opts ...ClientOption) *Client {
	cl := &Client{
		name:      "mcp",
		mcpClient: c,
		timeout:   defaultTimeout,
		retry: resilience.RetryConfig{
			MaxAttempts:   defaultRetries + 1,
			InitialDelay:  defaultBackoff,
			MaxDelay:      5 * time.Second,
			Multiplier:    2,
			IsRecoverable: retryable,
		},
		cacheTTL: defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(cl)
	}
	return cl
}

// Connect starts the transport described by cfg and performs the MCP
// handshake.
func Connect(ctx context.Context, cfg config.MCPServerConfig, opts ...ClientOption) (*Client, error) {
	var (
		c   *client.Client
		err error
	)
	switch cfg.Transport {
	case "", "stdio":
		c, err = client.NewStdioMCPClient(cfg.Command, envList(cfg.Env), cfg.Args...)
	case "http":
		c, err = client.NewStreamableHttpClient(cfg.URL)
	default:
		return nil, errors.InvalidConfig("mcp.transport", fmt.Sprintf("unsupported transport %q", cfg.Transport))
	}
	if err != nil {
		return nil, fmt.Errorf("mcp %s: create client: %w", cfg.Name, err)
	}
	if err := initialize(ctx, c, mcp.LATEST_PROTOCOL_VERSION); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("mcp %s: %w", cfg.Name, err)
	}

	cl := NewClient(c, opts...)
	if cfg.Name != "" {
		cl.name = cfg.Name
	}
	return cl, nil
}

// NewClientWithStdio starts command as an MCP server over stdio.
func NewClientWithStdio(command string, args []string, opts ...ClientOption) (*Client, error) {
	return Connect(context.Background(), config.MCPServerConfig{Transport: "stdio", Command: command, Args: args}, opts...)
}

// NewClientWithStreamableHTTP connects to an MCP server over streamable HTTP.
func NewClientWithStreamableHTTP(url string, opts ...ClientOption) (*Client, error) {
	return Connect(context.Background(), config.MCPServerConfig{Transport: "http", URL: url}, opts...)
}

func initialize(ctx context.Context, c *client.Client, protocolVersion string) error {
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = protocolVersion
	req.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: clientVersion}
	if _, err := c.Initialize(ctx, req); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	return nil
}

// Name identifies the server this client talks to.
func (c *Client) Name() string { return c.name }

// ListTools retrieves the tools available on the server.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	if cached := c.cachedTools(); cached != nil {
		return cached, nil
	}
	resp, err := resilience.DoWithResult(ctx, c.retry, func(ctx context.Context) (*mcp.ListToolsResult, error) {
		ctx, cancel := c.withTimeout(ctx)
		defer cancel()
		return c.mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	})
	if err != nil {
		return nil, fmt.Errorf("mcp %s: list tools: %w", c.name, err)
	}
	c.storeTools(resp.Tools)
	return resp.Tools, nil
}

// CallTool executes a tool on the server.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := resilience.DoWithResult(ctx, c.retry, func(ctx context.Context) (*mcp.CallToolResult, error) {
		ctx, cancel := c.withTimeout(ctx)
		defer cancel()
		return c.mcpClient.CallTool(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("mcp %s: call %s: %w", c.name, name, err)
	}
	return res, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.mcpClient.Close()
}

func (c *Client) cachedTools() []mcp.Tool {
	if c.cacheTTL == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.toolsCache) == 0 || time.Now().After(c.cacheExpiry) {
		return nil
	}
	out := make([]mcp.Tool, len(c.toolsCache))
	copy(out, c.toolsCache)
	return out
}

func (c *Client) storeTools(tools []mcp.Tool) {
	if c.cacheTTL == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toolsCache = make([]mcp.Tool, len(tools))
	copy(c.toolsCache, tools)
	c.cacheExpiry = time.Now().Add(c.cacheTTL)
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// retryable retries transport failures but never a canceled or expired call.
func retryable(err error) bool {
	return err != nil &&
		!stderrors.Is(err, context.Canceled) &&
		!stderrors.Is(err, context.DeadlineExceeded)
}

func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
