// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jllopis/agentcore/pkg/config"
	"github.com/jllopis/agentcore/pkg/tool"
)

// Connections owns the clients opened for a set of configured servers.
type Connections struct {
	mu      sync.Mutex
	clients []*Client
	closed  bool
}

// ConnectAll connects every server and registers its tools into reg.
// A server that cannot be reached is skipped; its error is part of the
// joined error returned alongside the connections that did succeed.
func ConnectAll(ctx context.Context, servers []config.MCPServerConfig, reg *tool.Registry, logger *slog.Logger, opts ...ClientOption) (*Connections, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conns := &Connections{}
	var errs []error
	for _, srv := range servers {
		c, err := Connect(ctx, srv, opts...)
		if err != nil {
			logger.WarnContext(ctx, "mcp.server.unavailable",
				slog.String("server", srv.Name),
				slog.String("transport", srv.Transport),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
			continue
		}
		names, err := RegisterTools(ctx, reg, c)
		if err != nil {
			_ = c.Close()
			logger.WarnContext(ctx, "mcp.tools.register.failed",
				slog.String("server", srv.Name),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("mcp %s: register tools: %w", srv.Name, err))
			continue
		}
		logger.InfoContext(ctx, "mcp.server.connected",
			slog.String("server", srv.Name),
			slog.Any("tools", names),
		)
		conns.clients = append(conns.clients, c)
	}
	return conns, stderrors.Join(errs...)
}

// Len returns the number of live clients.
func (c *Connections) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}

// Close closes every client. Calling it again is a no-op.
func (c *Connections) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	var errs []error
	for _, cl := range c.clients {
		if err := cl.Close(); err != nil {
			errs = append(errs, fmt.Errorf("mcp %s: close: %w", cl.Name(), err))
		}
	}
	c.clients = nil
	return stderrors.Join(errs...)
}
