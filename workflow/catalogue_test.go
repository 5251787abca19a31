// Copyright (c) Microsoft. All rights reserved.

package workflow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	af "github.com/agentcrew/copilot-agents/agentframework"
	"github.com/agentcrew/copilot-agents/internal/chattest"
	"github.com/agentcrew/copilot-agents/workflow"
	"github.com/agentcrew/copilot-agents/workspace"
)

func TestBuiltin(t *testing.T) {
	c := workflow.Builtin()
	assert.Equal(t, []string{
		"analytics", "content_creation", "data_analytics", "research",
		"software_engineering", "softwaredev", "web_development", "webdev",
	}, c.Keys())

	dev := c[workflow.TeamSoftwareDev]
	require.Len(t, dev.Members, 6)
	reader, ok := dev.Member("spec_reader_agent")
	require.True(t, ok)
	assert.Equal(t, []string{workflow.ToolRetrieval}, reader.Tools)
	_, ok = dev.Member("Nobody")
	assert.False(t, ok)

	for _, d := range []workflow.Domain{
		workflow.DomainWebDevelopment, workflow.DomainSoftwareEngineering,
		workflow.DomainDataAnalytics, workflow.DomainContentCreation,
	} {
		assert.Equal(t, "auto", c[string(d)].Selection, d)
	}
}

func TestParseCatalogue_Errors(t *testing.T) {
	tests := map[string]string{
		"not yaml":       "team: [",
		"no members":     "team:\n  background: x\n",
		"bad selection":  "team:\n  selection: loudest\n  members:\n    - name: A\n",
		"unnamed member": "team:\n  members:\n    - description: x\n",
		"unknown tool":   "team:\n  members:\n    - name: A\n      tools: [browser]\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := workflow.ParseCatalogue([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestFactory_Agent(t *testing.T) {
	client := chattest.New("done")
	spec := workflow.MemberSpec{
		Name:         "Builder",
		Description:  "builds",
		Instructions: "  You build things.\n",
		Tools:        []string{workflow.ToolFiles, workflow.ToolRunCommand},
	}

	_, err := workflow.NewFactory(client).Agent(spec)
	require.ErrorIs(t, err, af.ErrInitialization)

	w, err := workspace.New(t.TempDir(), "factory")
	require.NoError(t, err)
	a, err := workflow.NewFactory(client, workflow.WithWorkspace(w)).Agent(spec)
	require.NoError(t, err)
	assert.Equal(t, "Builder", a.Name())
	assert.Equal(t, "You build things.", a.Instructions())

	_, err = a.Run(context.Background(), []af.Message{af.NewUserMessage("go")})
	require.NoError(t, err)
	reqs := client.Requests()
	require.Len(t, reqs, 1)
	var names []string
	for _, tool := range reqs[0].Options.Tools {
		names = append(names, tool.Name())
	}
	assert.ElementsMatch(t, []string{"save_file", "read_file", "list_files", "run_command"}, names)
}

func TestFactory_Retrieval(t *testing.T) {
	r := workspace.NewRetriever()
	r.Index("SPEC.md", "The parser rejects trailing commas.")
	client := chattest.New("noted")
	a, err := workflow.NewFactory(client, workflow.WithRetriever(r)).Agent(workflow.MemberSpec{
		Name:  "Reader",
		Tools: []string{workflow.ToolRetrieval},
	})
	require.NoError(t, err)

	_, err = a.Run(context.Background(), []af.Message{af.NewUserMessage("Does the parser accept trailing commas?")})
	require.NoError(t, err)
	assert.Contains(t, client.Requests()[0].Messages[0].Text(), "trailing commas")
}

func TestFactory_TeamUsesHostForAuto(t *testing.T) {
	s := newScript(map[string][]string{
		hostMarker:           {"Editor"},
		role("Editor"):       {"Edited."},
		role("Writer"):       {"Written."},
		"unreachable marker": {"x"},
	})
	team := workflow.TeamSpec{
		Selection: "auto",
		Members:   []workflow.MemberSpec{{Name: "Writer"}, {Name: "Editor"}},
	}
	chat, err := workflow.NewFactory(s, workflow.WithRounds(1)).Team(team)
	require.NoError(t, err)

	turns, err := chat.RunAll(context.Background(), []af.Message{af.NewUserMessage("Polish this")})
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "Editor", turns[0].Speaker)
	assert.Equal(t, []string{hostMarker, role("Editor")}, s.calls())
}

func TestFactory_UnknownToolSet(t *testing.T) {
	_, err := workflow.NewFactory(chattest.New()).Agent(workflow.MemberSpec{Name: "A", Tools: []string{"browser"}})
	assert.True(t, errors.Is(err, af.ErrInitialization))
}
