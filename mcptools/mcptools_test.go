// Copyright (c) Microsoft. All rights reserved.

package mcptools_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	af "github.com/agentcrew/copilot-agents/agentframework"
	"github.com/agentcrew/copilot-agents/mcptools"
	"github.com/agentcrew/copilot-agents/workspace"
)

type echoInput struct {
	Query string `json:"query" jsonschema:"text to echo"`
}

type echoOutput struct {
	Echo string `json:"echo"`
}

func echoServer() *sdkmcp.Server {
	server := sdkmcp.NewServer(&sdkmcp.Implementation{Name: "echo-server", Version: "v1"}, nil)
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "echo", Description: "Echo the query"},
		func(ctx context.Context, _ *sdkmcp.CallToolRequest, in echoInput) (*sdkmcp.CallToolResult, echoOutput, error) {
			return nil, echoOutput{Echo: in.Query}, nil
		})
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "fail", Description: "Always fails"},
		func(ctx context.Context, _ *sdkmcp.CallToolRequest, _ struct{}) (*sdkmcp.CallToolResult, echoOutput, error) {
			return nil, echoOutput{}, errors.New("disk full")
		})
	return server
}

func byName(tools []af.Tool) map[string]af.Tool {
	m := make(map[string]af.Tool, len(tools))
	for _, t := range tools {
		m[t.Name()] = t
	}
	return m
}

func serve(t *testing.T, server *sdkmcp.Server) map[string]af.Tool {
	t.Helper()
	s, err := mcptools.ServeInMemory(context.Background(), server)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	tools, err := s.Tools(context.Background())
	require.NoError(t, err)
	return byName(tools)
}

func TestSession_Tools(t *testing.T) {
	tools := serve(t, echoServer())
	require.Len(t, tools, 2)

	echo := tools["echo"]
	require.NotNil(t, echo)
	assert.Equal(t, "Echo the query", echo.Description())
	assert.False(t, echo.DeclarationOnly())

	var schema map[string]any
	require.NoError(t, json.Unmarshal(echo.Parameters(), &schema))
	assert.Equal(t, "object", schema["type"])
	assert.Contains(t, schema["properties"], "query")

	out, err := echo.Invoke(context.Background(), json.RawMessage(`{"query":"hello"}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"echo": "hello"}, out)
}

func TestSession_ToolError(t *testing.T) {
	tools := serve(t, echoServer())

	_, err := tools["fail"].Invoke(context.Background(), nil)
	var te *af.ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "fail", te.ToolName)
	assert.Contains(t, te.Message, "disk full")
	assert.ErrorIs(t, err, af.ErrToolExecution)

	_, err = tools["echo"].Invoke(context.Background(), json.RawMessage(`[1]`))
	assert.ErrorIs(t, err, af.ErrToolExecution)
}

func TestSession_ClosedSession(t *testing.T) {
	s, err := mcptools.ServeInMemory(context.Background(), echoServer())
	require.NoError(t, err)
	tools, err := s.Tools(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = byName(tools)["echo"].Invoke(context.Background(), json.RawMessage(`{"query":"late"}`))
	assert.ErrorIs(t, err, af.ErrToolExecution)
}

func TestConnectHTTP(t *testing.T) {
	server := echoServer()
	handler := sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server { return server }, nil)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	s, err := mcptools.ConnectHTTP(context.Background(), srv.URL, srv.Client())
	require.NoError(t, err)
	defer s.Close()

	tools, err := s.Tools(context.Background())
	require.NoError(t, err)
	out, err := byName(tools)["echo"].Invoke(context.Background(), json.RawMessage(`{"query":"over http"}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"echo": "over http"}, out)
}

func TestConnect_Invalid(t *testing.T) {
	_, err := mcptools.ConnectHTTP(context.Background(), " ", nil)
	assert.ErrorIs(t, err, af.ErrInitialization)
	_, err = mcptools.ConnectCommand(context.Background(), "")
	assert.ErrorIs(t, err, af.ErrInitialization)
}

func TestProjectServer(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX commands")
	}
	w, err := workspace.New(t.TempDir(), "calc")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(w.Root(), "calc.py"), []byte("fixed\n"), 0o644))

	tools := serve(t, mcptools.NewProjectServer(w, mcptools.ProjectCommands{
		Build: "test -f calc.py",
		Test:  "grep -c missing calc.py",
	}))
	require.Len(t, tools, 2)

	out, err := tools[mcptools.ToolBuild].Invoke(context.Background(), nil)
	require.NoError(t, err)
	res := out.(map[string]any)
	assert.Equal(t, "test -f calc.py", res["command"])
	assert.EqualValues(t, 0, res["exit_code"])

	// a failing command is a result, not a tool error
	out, err = tools[mcptools.ToolRunTests].Invoke(context.Background(), nil)
	require.NoError(t, err)
	res = out.(map[string]any)
	assert.EqualValues(t, 1, res["exit_code"])
	assert.Equal(t, "0\n", res["stdout"])
}

func TestProjectServer_AllowList(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX commands")
	}
	w, err := workspace.New(t.TempDir(), "calc")
	require.NoError(t, err)

	tools := serve(t, mcptools.NewProjectServer(w, mcptools.ProjectCommands{
		Test:    "make test",
		Allowed: []string{"python"},
	}))
	require.Len(t, tools, 1)

	_, err = tools[mcptools.ToolRunTests].Invoke(context.Background(), nil)
	var te *af.ToolError
	require.ErrorAs(t, err, &te)
	assert.Contains(t, te.Message, "not allowed")
}
