// Copyright (c) Microsoft. All rights reserved.

package groupchat

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sahilm/fuzzy"

	af "github.com/agentcrew/copilot-agents/agentframework"
)

// Selection is how the next speaker is chosen when nobody was mentioned.
type Selection int

const (
	// SelectRoundRobin cycles through members in order.
	SelectRoundRobin Selection = iota
	// SelectAuto asks the host model.
	SelectAuto
	// SelectRandom picks a member other than the previous speaker.
	SelectRandom
)

func (s Selection) String() string {
	switch s {
	case SelectAuto:
		return "auto"
	case SelectRandom:
		return "random"
	default:
		return "round_robin"
	}
}

// ParseSelection parses "auto", "round_robin" or "random".
func ParseSelection(s string) (Selection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto":
		return SelectAuto, nil
	case "round_robin", "round-robin", "roundrobin", "":
		return SelectRoundRobin, nil
	case "random":
		return SelectRandom, nil
	}
	return 0, fmt.Errorf("groupchat: unknown selection mode %q", s)
}

var mentionPattern = regexp.MustCompile(`@([\p{L}\p{N}_\-]+)`)

func (g *GroupChat) selectSpeaker(ctx context.Context, history []af.Message) (Member, error) {
	last := lastSpeaker(history)
	if len(history) > 0 {
		if i := g.mentioned(history[len(history)-1], last); i >= 0 {
			g.next = i + 1
			return g.members[i], nil
		}
	}

	switch g.selection {
	case SelectAuto:
		i, err := g.askHost(ctx, history)
		if err != nil {
			return nil, err
		}
		if i >= 0 {
			g.next = i + 1
			return g.members[i], nil
		}
		g.logger.WarnContext(ctx, "host picked no known member, falling back to round robin")
	case SelectRandom:
		return g.members[g.randomIndex(last)], nil
	}

	i := g.next % len(g.members)
	g.next = i + 1
	return g.members[i], nil
}

// mentioned returns the first member addressed in m, ignoring the speaker
// addressing itself, or -1.
func (g *GroupChat) mentioned(m af.Message, speaker string) int {
	names := g.names()
	for _, match := range mentionPattern.FindAllStringSubmatch(m.Text(), -1) {
		i := resolve(match[1], names)
		if i >= 0 && !strings.EqualFold(names[i], speaker) {
			return i
		}
	}
	return -1
}

func (g *GroupChat) randomIndex(last string) int {
	if len(g.members) == 1 {
		return 0
	}
	for {
		i := g.rng.IntN(len(g.members))
		if !strings.EqualFold(g.members[i].Name(), last) {
			return i
		}
	}
}

func (g *GroupChat) askHost(ctx context.Context, history []af.Message) (int, error) {
	resp, err := g.host.Response(ctx, []af.Message{
		af.NewSystemMessage(g.hostPrompt()),
		af.NewUserMessage(renderTranscript(history) + "\n\nWho speaks next? Reply with the name only."),
	}, &af.ChatOptions{Temperature: af.Float64(0.2)})
	if err != nil {
		return -1, fmt.Errorf("groupchat: select speaker: %w", err)
	}
	reply := strings.TrimSpace(resp.Text())
	g.logger.DebugContext(ctx, "host selection", "reply", reply)
	return resolve(reply, g.names()), nil
}

func (g *GroupChat) hostPrompt() string {
	var b strings.Builder
	if g.background != "" {
		b.WriteString(g.background)
		b.WriteString("\n\n")
	}
	b.WriteString("You moderate this team and decide who speaks next. Members:\n")
	for _, m := range g.members {
		fmt.Fprintf(&b, "- %s: %s\n", m.Name(), m.Description())
	}
	return b.String()
}

func renderTranscript(history []af.Message) string {
	var b strings.Builder
	for _, m := range history {
		author := m.AuthorName
		if author == "" {
			author = string(m.Role)
		}
		fmt.Fprintf(&b, "%s: %s\n", author, m.Text())
	}
	return strings.TrimSpace(b.String())
}

func lastSpeaker(history []af.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == af.RoleAssistant && history[i].AuthorName != "" {
			return history[i].AuthorName
		}
	}
	return ""
}

// resolve maps a free-form name ("code writer", "@Code_Writer",
// "Code_Writer_Agent.") to an index in names, or -1. Exact matches win,
// then the best fuzzy match.
func resolve(name string, names []string) int {
	name = strings.Trim(strings.TrimSpace(name), "@.:,!\"'`*")
	if name == "" {
		return -1
	}
	if first, _, ok := strings.Cut(name, "\n"); ok {
		name = strings.TrimSpace(first)
	}
	pattern := strings.ReplaceAll(name, " ", "_")
	for i, n := range names {
		if strings.EqualFold(n, pattern) {
			return i
		}
	}
	matches := fuzzy.Find(strings.ToLower(pattern), lower(names))
	if len(matches) == 0 {
		return -1
	}
	return matches[0].Index
}

func lower(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.ToLower(s)
	}
	return out
}
