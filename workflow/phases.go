// Copyright (c) Microsoft. All rights reserved.

package workflow

import (
	"context"
	"fmt"

	af "github.com/agentcrew/copilot-agents/agentframework"
	"github.com/agentcrew/copilot-agents/groupchat"
	"github.com/agentcrew/copilot-agents/workspace"
)

// Phase is one completed step of a workflow.
type Phase struct {
	Name      string
	Agent     string
	Iteration int
	Text      string
	// Files lists the workspace files the phase wrote.
	Files []string
	// Command is set when the phase ran a build or test command.
	Command *workspace.CommandResult
}

// Result is what a workflow run produced.
type Result struct {
	Phases []Phase
	// Files lists the workspace contents at the end of the run.
	Files []string
	// Workspace is the workspace root. It is removed after the run unless
	// the workspace is kept or was supplied with [WithWorkspace].
	Workspace string
}

// directed is a team conversation where every step addresses one member by
// name. All members see the full transcript.
type directed struct {
	team       *groupchat.GroupChat
	requester  string
	transcript []af.Message
	phases     []Phase
	s          settings
}

func newDirected(team *groupchat.GroupChat, requester string, s settings) *directed {
	return &directed{team: team, requester: requester, s: s}
}

// ask sends prompt to agent and records both sides in the transcript.
func (d *directed) ask(ctx context.Context, phase, agent, prompt string) (groupchat.Turn, error) {
	d.transcript = append(d.transcript, af.NewNamedUserMessage(d.requester, prompt))
	turn, err := d.team.Ask(ctx, agent, d.transcript)
	if err != nil {
		return groupchat.Turn{}, fmt.Errorf("workflow: %s phase: %w", phase, err)
	}
	d.transcript = append(d.transcript, turn.Message())
	return turn, nil
}

func (d *directed) record(p Phase) {
	d.phases = append(d.phases, p)
	d.s.logger.Info("phase completed", "phase", p.Name, "agent", p.Agent, "iteration", p.Iteration, "files", len(p.Files))
	d.s.phase(p)
}

// step is one directed request in a fixed sequence.
type step struct {
	phase  string
	agent  string
	prompt string
}

// runSteps asks each step in order and saves the code blocks of every
// reply to w.
func (d *directed) runSteps(ctx context.Context, w *workspace.Workspace, steps []step) error {
	for _, st := range steps {
		turn, err := d.ask(ctx, st.phase, st.agent, st.prompt)
		if err != nil {
			return err
		}
		files, err := w.SaveCodeBlocks(turn.Speaker, turn.Text())
		if err != nil {
			return err
		}
		d.record(Phase{Name: st.phase, Agent: turn.Speaker, Text: turn.Text(), Files: files})
	}
	return nil
}
