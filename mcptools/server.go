// Copyright (c) Microsoft. All rights reserved.

package mcptools

import (
	"context"
	"errors"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/agentcrew/copilot-agents/workspace"
)

// Tool names served by [NewProjectServer].
const (
	ToolBuild    = "build"
	ToolRunTests = "run_tests"
)

// ProjectCommands are the commands a project server runs in its workspace.
type ProjectCommands struct {
	Build string
	Test  string
	// Allowed restricts both commands to these programs when set.
	Allowed []string
}

type noArgs struct{}

// NewProjectServer returns an MCP server with a build and a run_tests tool
// running cmds in w. A tool is only listed when its command is set.
func NewProjectServer(w *workspace.Workspace, cmds ProjectCommands) *sdkmcp.Server {
	server := sdkmcp.NewServer(&sdkmcp.Implementation{Name: "project-server", Version: "v1"}, nil)
	if cmds.Build != "" {
		sdkmcp.AddTool(server, &sdkmcp.Tool{
			Name:        ToolBuild,
			Description: "Build the project and check the code for syntax and import errors.",
		}, runner(w, cmds.Build, cmds.Allowed))
	}
	if cmds.Test != "" {
		sdkmcp.AddTool(server, &sdkmcp.Tool{
			Name:        ToolRunTests,
			Description: "Run the project's test suite and report the results.",
		}, runner(w, cmds.Test, cmds.Allowed))
	}
	return server
}

func runner(w *workspace.Workspace, cmdline string, allowed []string) sdkmcp.ToolHandlerFor[noArgs, workspace.CommandResult] {
	return func(ctx context.Context, _ *sdkmcp.CallToolRequest, _ noArgs) (*sdkmcp.CallToolResult, workspace.CommandResult, error) {
		res, err := w.RunCommand(ctx, cmdline, allowed...)
		if err != nil {
			return nil, workspace.CommandResult{}, err
		}
		return nil, *res, nil
	}
}

// ServeInMemory runs server in-process and returns a session connected to
// it. Closing the session stops the server.
func ServeInMemory(ctx context.Context, server *sdkmcp.Server, opts ...Option) (*Session, error) {
	serverSide, clientSide := sdkmcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, serverSide, nil)
	if err != nil {
		return nil, fmt.Errorf("start mcp server: %w", err)
	}
	s, err := Connect(ctx, clientSide, opts...)
	if err != nil {
		return nil, errors.Join(err, ss.Close())
	}
	return s, nil
}
