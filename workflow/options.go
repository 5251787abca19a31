// Copyright (c) Microsoft. All rights reserved.

package workflow

import (
	"log/slog"

	af "github.com/agentcrew/copilot-agents/agentframework"
	"github.com/agentcrew/copilot-agents/config"
	"github.com/agentcrew/copilot-agents/workspace"
)

// settings is shared by every workflow constructor; each reads the fields
// it needs.
type settings struct {
	catalogue   Catalogue
	wsConfig    config.Workspace
	workspace   *workspace.Workspace
	retriever   *workspace.Retriever
	allowed     []string
	mcpTools    []af.Tool
	projectMCP  bool
	rounds      int
	chatOptions *af.ChatOptions
	logger      *slog.Logger
	onPhase     func(Phase)
}

// Option configures a workflow or a [Factory].
type Option func(*settings)

// WithCatalogue replaces the built-in team catalogue.
func WithCatalogue(c Catalogue) Option {
	return func(s *settings) { s.catalogue = c }
}

// WithWorkspaceConfig sets where project workspaces are created and
// whether they are kept.
func WithWorkspaceConfig(cfg config.Workspace) Option {
	return func(s *settings) { s.wsConfig = cfg }
}

// WithWorkspace uses w instead of creating a workspace. The caller owns w.
func WithWorkspace(w *workspace.Workspace) Option {
	return func(s *settings) { s.workspace = w }
}

// WithRetriever attaches r to members asking for retrieval.
func WithRetriever(r *workspace.Retriever) Option {
	return func(s *settings) { s.retriever = r }
}

// WithAllowedCommands restricts run_command, and the build and test
// commands of [DevPipeline], to the given programs.
func WithAllowedCommands(cmds ...string) Option {
	return func(s *settings) { s.allowed = cmds }
}

// WithMCPTools gives tools from an MCP server to members asking for the
// mcp tool set.
func WithMCPTools(tools ...af.Tool) Option {
	return func(s *settings) { s.mcpTools = append(s.mcpTools, tools...) }
}

// WithProjectMCP makes [DevPipeline] serve the project's build and test
// commands as an in-process MCP server for members asking for the mcp
// tool set.
func WithProjectMCP() Option {
	return func(s *settings) { s.projectMCP = true }
}

// WithRounds bounds group chat rounds.
func WithRounds(n int) Option {
	return func(s *settings) { s.rounds = n }
}

// WithChatOptions sets the default chat options of every agent.
func WithChatOptions(opts *af.ChatOptions) Option {
	return func(s *settings) { s.chatOptions = opts }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithPhaseHook calls fn after every completed phase.
func WithPhaseHook(fn func(Phase)) Option {
	return func(s *settings) { s.onPhase = fn }
}

func newSettings(opts []Option) settings {
	var s settings
	for _, o := range opts {
		o(&s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.catalogue == nil {
		s.catalogue = Builtin()
	}
	return s
}

// openWorkspace returns the configured workspace, or creates one for
// project. release cleans up only what openWorkspace created.
func (s settings) openWorkspace(project string) (w *workspace.Workspace, release func() error, err error) {
	if s.workspace != nil {
		return s.workspace, func() error { return nil }, nil
	}
	w, err = workspace.FromConfig(s.wsConfig, project, workspace.WithLogger(s.logger))
	if err != nil {
		return nil, nil, err
	}
	return w, w.Cleanup, nil
}

func (s settings) phase(p Phase) {
	if s.onPhase != nil {
		s.onPhase(p)
	}
}
