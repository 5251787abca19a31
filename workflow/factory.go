// Copyright (c) Microsoft. All rights reserved.

package workflow

import (
	"fmt"
	"strings"

	af "github.com/agentcrew/copilot-agents/agentframework"
	"github.com/agentcrew/copilot-agents/groupchat"
	"github.com/agentcrew/copilot-agents/llm"
)

// Factory builds agents and group chats from catalogue entries. Every agent
// shares one chat client; tool sets bind to the factory's workspace.
type Factory struct {
	client af.ChatClient
	s      settings
}

// NewFactory returns a Factory using client for every agent. It honours
// [WithWorkspace], [WithRetriever], [WithAllowedCommands], [WithRounds],
// [WithChatOptions] and [WithLogger].
func NewFactory(client af.ChatClient, opts ...Option) *Factory {
	return &Factory{client: client, s: newSettings(opts)}
}

// Agent builds the agent described by m.
func (f *Factory) Agent(m MemberSpec) (*af.Agent, error) {
	opts := []af.AgentOption{
		af.WithName(m.Name),
		af.WithDescription(m.Description),
		af.WithInstructions(strings.TrimSpace(m.Instructions)),
		af.WithAgentLogger(f.s.logger),
	}
	if f.s.chatOptions != nil {
		opts = append(opts, af.WithDefaultOptions(f.s.chatOptions))
	}

	var tools []af.Tool
	for _, set := range m.Tools {
		switch set {
		case ToolFiles, ToolRunCommand:
			if f.s.workspace == nil {
				return nil, fmt.Errorf("%w: %s needs a workspace for %s", af.ErrInitialization, m.Name, set)
			}
			if set == ToolFiles {
				tools = append(tools, f.s.workspace.Tools()...)
			} else {
				tools = append(tools, f.s.workspace.RunCommandTool(f.s.allowed...))
			}
		case ToolRetrieval:
			if f.s.retriever != nil {
				opts = append(opts, af.WithContextProvider(f.s.retriever))
			}
		case ToolMCP:
			tools = append(tools, f.s.mcpTools...)
		default:
			return nil, fmt.Errorf("%w: %s: unknown tool set %q", af.ErrInitialization, m.Name, set)
		}
	}
	if len(tools) > 0 {
		opts = append(opts,
			af.WithTools(tools...),
			af.WithChatMiddleware(llm.TextToolCallMiddleware(f.s.logger)),
			af.WithFunctionMiddleware(af.FunctionLoggingMiddleware(f.s.logger)),
		)
	}
	return af.NewAgent(f.client, opts...), nil
}

// Members builds every member of team in catalogue order.
func (f *Factory) Members(team TeamSpec) ([]groupchat.Member, error) {
	members := make([]groupchat.Member, 0, len(team.Members))
	for _, m := range team.Members {
		a, err := f.Agent(m)
		if err != nil {
			return nil, err
		}
		members = append(members, a)
	}
	return members, nil
}

// Team builds a group chat for team. Auto selection uses the factory's
// client as host. Extra options are applied last.
func (f *Factory) Team(team TeamSpec, opts ...groupchat.Option) (*groupchat.GroupChat, error) {
	members, err := f.Members(team)
	if err != nil {
		return nil, err
	}
	sel, err := groupchat.ParseSelection(team.Selection)
	if err != nil {
		return nil, err
	}
	base := []groupchat.Option{
		groupchat.WithBackground(team.Background),
		groupchat.WithLogger(f.s.logger),
	}
	if f.s.rounds > 0 {
		base = append(base, groupchat.WithMaxRounds(f.s.rounds))
	}
	if sel == groupchat.SelectAuto {
		base = append(base, groupchat.WithHost(f.client))
	} else {
		base = append(base, groupchat.WithSelection(sel))
	}
	return groupchat.New(members, append(base, opts...)...)
}
