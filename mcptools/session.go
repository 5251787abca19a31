// Copyright (c) Microsoft. All rights reserved.

// Package mcptools exposes the tools of Model Context Protocol servers to
// agents and serves a project's build and test commands over MCP.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/exec"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	af "github.com/agentcrew/copilot-agents/agentframework"
)

var clientInfo = &sdkmcp.Implementation{Name: "copilot-agents", Version: "v1"}

// Session is a connection to one MCP server.
type Session struct {
	cs     *sdkmcp.ClientSession
	logger *slog.Logger
}

// Option configures a [Session].
type Option func(*Session)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// Connect opens a session over transport.
func Connect(ctx context.Context, transport sdkmcp.Transport, opts ...Option) (*Session, error) {
	cs, err := sdkmcp.NewClient(clientInfo, nil).Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: connect mcp server: %w", af.ErrInitialization, err)
	}
	s := &Session{cs: cs, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// ConnectCommand starts cmdline and talks MCP over its stdin and stdout.
func ConnectCommand(ctx context.Context, cmdline string, opts ...Option) (*Session, error) {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty mcp server command", af.ErrInitialization)
	}
	cmd := exec.Command(fields[0], fields[1:]...)
	return Connect(ctx, &sdkmcp.CommandTransport{Command: cmd}, opts...)
}

// ConnectHTTP connects to a streamable HTTP endpoint. A nil client uses
// http.DefaultClient.
func ConnectHTTP(ctx context.Context, endpoint string, client *http.Client, opts ...Option) (*Session, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("%w: mcp endpoint is required", af.ErrInitialization)
	}
	return Connect(ctx, &sdkmcp.StreamableClientTransport{
		Endpoint:   endpoint,
		HTTPClient: client,
		MaxRetries: -1,
	}, opts...)
}

// Close ends the session.
func (s *Session) Close() error { return s.cs.Close() }

// Tools lists the server's tools as agent tools. Calls go through this
// session, so they fail once it is closed.
func (s *Session) Tools(ctx context.Context) ([]af.Tool, error) {
	var (
		tools  []af.Tool
		cursor string
	)
	for {
		res, err := s.cs.ListTools(ctx, &sdkmcp.ListToolsParams{Cursor: cursor})
		if err != nil {
			return nil, fmt.Errorf("list mcp tools: %w", err)
		}
		for _, t := range res.Tools {
			if t == nil || strings.TrimSpace(t.Name) == "" {
				continue
			}
			tools = append(tools, af.NewTool(t.Name, strings.TrimSpace(t.Description), inputSchema(t.InputSchema), s.caller(t.Name)))
		}
		if res.NextCursor == "" {
			return tools, nil
		}
		cursor = res.NextCursor
	}
}

func (s *Session) caller(name string) func(ctx context.Context, raw json.RawMessage) (any, error) {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		args := map[string]any{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, &af.ToolError{ToolName: name, Message: "invalid arguments: " + err.Error(), Err: af.ErrToolExecution}
			}
		}
		s.logger.DebugContext(ctx, "calling mcp tool", "tool", name)
		res, err := s.cs.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
		if err != nil {
			return nil, &af.ToolError{ToolName: name, Message: err.Error(), Err: af.ErrToolExecution}
		}
		text := resultText(res)
		if res.IsError {
			return nil, &af.ToolError{ToolName: name, Message: text, Err: af.ErrToolExecution}
		}
		if res.StructuredContent != nil {
			return res.StructuredContent, nil
		}
		return text, nil
	}
}

func resultText(res *sdkmcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		if t, ok := c.(*sdkmcp.TextContent); ok {
			parts = append(parts, t.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// inputSchema returns the tool's schema as JSON, or an empty object schema
// when the server sent none.
func inputSchema(raw any) json.RawMessage {
	if raw != nil {
		if b, err := json.Marshal(raw); err == nil && string(b) != "null" {
			return b
		}
	}
	return json.RawMessage(`{"type":"object","properties":{}}`)
}
