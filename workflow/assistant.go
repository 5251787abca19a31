// Copyright (c) Microsoft. All rights reserved.

package workflow

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	af "github.com/agentcrew/copilot-agents/agentframework"
	"github.com/agentcrew/copilot-agents/groupchat"
	"github.com/agentcrew/copilot-agents/workspace"
)

// Replies the assistant gives without running a team.
const (
	ReplyUnsupported = "I'm not sure how to help with that. Could you be more specific?"
	ReplyNoResult    = "I wasn't able to complete that request. Could you try being more specific?"
	ReplyNoProject   = "No active project. Start by describing what you'd like me to build!"
	ReplyNewProject  = "Started new project! What would you like me to build?"
)

// assistantRounds bounds each team conversation the assistant starts.
const assistantRounds = 3

// Interaction is one request handled by the [Assistant].
type Interaction struct {
	Prompt   string
	Intent   Intent
	Response string
}

// Assistant answers plain-language requests by classifying them, picking
// the matching team from the catalogue and letting it work in a project
// workspace. Code blocks in the team's replies are saved as files.
type Assistant struct {
	client     af.ChatClient
	classifier *Classifier
	s          settings

	mu      sync.Mutex
	project *workspace.Workspace
	history []Interaction
}

// NewAssistant returns an Assistant whose agents all use client. Team
// conversations run [WithRounds] rounds, three by default.
func NewAssistant(client af.ChatClient, opts ...Option) *Assistant {
	s := newSettings(opts)
	if s.rounds <= 0 {
		s.rounds = assistantRounds
	}
	return &Assistant{client: client, classifier: NewClassifier(client, s.logger), s: s}
}

// Chat handles one request and returns a summary for the user. Requests
// outside every team's domain get [ReplyUnsupported]; team and workspace
// failures are returned as errors.
func (a *Assistant) Chat(ctx context.Context, prompt string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	intent := a.classifier.Classify(ctx, prompt)
	a.s.logger.InfoContext(ctx, "intent detected", "domain", intent.Domain, "confidence", intent.Confidence)

	team, ok := a.s.catalogue[string(intent.Domain)]
	if !ok {
		return ReplyUnsupported, nil
	}

	if a.project == nil {
		ws, err := workspace.FromConfig(a.s.wsConfig, fmt.Sprintf("project_%d", len(a.history)),
			workspace.WithLogger(a.s.logger))
		if err != nil {
			return "", err
		}
		a.project = ws
	}

	fs := a.s
	fs.workspace = a.project
	chat, err := (&Factory{client: a.client, s: fs}).Team(team)
	if err != nil {
		return "", err
	}

	a.s.logger.InfoContext(ctx, "invoking team", "domain", intent.Domain, "members", len(team.Members))
	turns, err := chat.RunAll(ctx, []af.Message{af.NewNamedUserMessage("User", enhancedPrompt(prompt, intent))})
	if err != nil {
		return "", fmt.Errorf("workflow: %s team: %w", intent.Domain, err)
	}
	for _, t := range turns {
		if _, err := a.project.SaveCodeBlocks(t.Speaker, t.Text()); err != nil {
			return "", err
		}
	}

	reply, err := a.summarize(turns, intent)
	if err != nil {
		return "", err
	}
	a.history = append(a.history, Interaction{Prompt: prompt, Intent: intent, Response: reply})
	return reply, nil
}

func enhancedPrompt(prompt string, intent Intent) string {
	return fmt.Sprintf(`User Request: %s

Requirements identified: %s
Technologies mentioned: %s

Please work together to fulfill this request. Provide a complete solution
with clear deliverables and explanations.`,
		prompt, strings.Join(intent.Requirements, ", "), strings.Join(intent.Technologies, ", "))
}

func (a *Assistant) summarize(turns []groupchat.Turn, intent Intent) (string, error) {
	if len(turns) == 0 {
		return ReplyNoResult, nil
	}

	var team []string
	var deliverables []string
	for _, t := range turns {
		if !slices.Contains(team, t.Speaker) {
			team = append(team, t.Speaker)
		}
		if text := t.Text(); len(text) > 100 {
			deliverables = append(deliverables, t.Speaker+": "+clip(text, 150)+"...")
		}
	}
	slices.Sort(team)

	files, err := a.project.List("")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I've completed your %s request!\n", intent.Domain.Title())
	fmt.Fprintf(&b, "Team involved: %s\n", strings.Join(team, ", "))
	if len(files) > 0 {
		fmt.Fprintf(&b, "Files created: %s\n", strings.Join(files, ", "))
	}
	if len(deliverables) > 0 {
		b.WriteString("\nKey deliverables:\n")
		for _, d := range deliverables[:min(3, len(deliverables))] {
			fmt.Fprintf(&b, "  - %s\n", d)
		}
	}
	b.WriteString("\nYou can ask me to modify, extend, or create something new!")
	return b.String(), nil
}

// clip cuts s to at most n bytes without splitting a rune.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Status describes the current project.
func (a *Assistant) Status() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.project == nil {
		return ReplyNoProject, nil
	}
	files, err := a.project.List("")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Current project: %d files created, %d interactions", len(files), len(a.history)), nil
}

// History returns the interactions of the current project.
func (a *Assistant) History() []Interaction {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.history)
}

// Project returns the current project workspace, or nil.
func (a *Assistant) Project() *workspace.Workspace {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.project
}

// NewProject discards the current project and its history.
func (a *Assistant) NewProject() (string, error) {
	if err := a.Close(); err != nil {
		return "", err
	}
	a.mu.Lock()
	a.history = nil
	a.mu.Unlock()
	return ReplyNewProject, nil
}

// Close removes the current project workspace unless it is configured to
// be kept.
func (a *Assistant) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.project == nil {
		return nil
	}
	err := a.project.Cleanup()
	a.project = nil
	return err
}

// Name, Description, NewSession and Run let the assistant be served.

func (a *Assistant) Name() string { return "assistant" }

func (a *Assistant) Description() string {
	return "Builds web apps, software, analytics and documentation from plain-language requests"
}

func (a *Assistant) NewSession() *af.Session { return af.NewSession() }

// Run answers the text of the last message in messages.
func (a *Assistant) Run(ctx context.Context, messages []af.Message, _ ...af.RunOption) (*af.AgentResponse, error) {
	reply, err := a.Chat(ctx, af.LastText(messages))
	if err != nil {
		return nil, err
	}
	return &af.AgentResponse{
		Messages:  []af.Message{af.NewAssistantMessage(reply)},
		AgentName: a.Name(),
	}, nil
}
