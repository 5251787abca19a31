// Copyright (c) Microsoft. All rights reserved.

// Package groupchat runs several agents over one shared conversation.
//
// A [GroupChat] picks a speaker each round, runs it on the transcript so far
// and appends the reply. A member addressed with "@Name" in the latest
// message always speaks next; otherwise the [Selection] mode decides. The
// chat ends after the configured number of rounds, or as soon as a reply
// contains the termination word.
//
// [Router] sends a request to the single member a coordinator model picks,
// and [FanOut] runs members in parallel on the same input.
package groupchat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	af "github.com/agentcrew/copilot-agents/agentframework"
)

// DefaultMaxRounds bounds a chat when no limit is configured.
const DefaultMaxRounds = 10

// ErrUnknownMember is returned when a speaker name resolves to no member.
var ErrUnknownMember = errors.New("groupchat: unknown member")

// Member is one participant. [*af.Agent] implements it.
type Member interface {
	Name() string
	Description() string
	Run(ctx context.Context, messages []af.Message, opts ...af.RunOption) (*af.AgentResponse, error)
}

// Turn is one member's contribution to the chat.
type Turn struct {
	Round    int
	Speaker  string
	Response *af.AgentResponse
}

// Text returns the reply text.
func (t Turn) Text() string {
	if t.Response == nil {
		return ""
	}
	return t.Response.Text()
}

// Message returns the turn as it is recorded in the transcript.
func (t Turn) Message() af.Message {
	m := af.NewAssistantMessage(t.Text())
	m.AuthorName = t.Speaker
	return m
}

// GroupChat coordinates a fixed set of members. It runs one conversation at
// a time.
type GroupChat struct {
	background string
	members    []Member
	host       af.ChatClient
	selection  Selection
	maxRounds  int
	terminate  string
	rng        *rand.Rand
	logger     *slog.Logger

	next int // round-robin cursor
}

// Option configures a [GroupChat].
type Option func(*GroupChat)

// WithBackground sets the team description every member is given.
func WithBackground(bg string) Option {
	return func(g *GroupChat) { g.background = strings.TrimSpace(bg) }
}

// WithHost sets the model that picks speakers and switches selection to
// [SelectAuto].
func WithHost(client af.ChatClient) Option {
	return func(g *GroupChat) {
		g.host = client
		g.selection = SelectAuto
	}
}

// WithSelection sets the speaker selection mode.
func WithSelection(s Selection) Option {
	return func(g *GroupChat) { g.selection = s }
}

// WithMaxRounds limits the number of turns per Run.
func WithMaxRounds(n int) Option {
	return func(g *GroupChat) { g.maxRounds = n }
}

// WithTerminateWord ends the chat after a reply containing word.
func WithTerminateWord(word string) Option {
	return func(g *GroupChat) { g.terminate = word }
}

// WithSeed makes [SelectRandom] deterministic.
func WithSeed(seed uint64) Option {
	return func(g *GroupChat) { g.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(g *GroupChat) { g.logger = l }
}

// New creates a GroupChat. Member names must be unique and non-empty.
func New(members []Member, opts ...Option) (*GroupChat, error) {
	g := &GroupChat{
		members:   members,
		selection: SelectRoundRobin,
		maxRounds: DefaultMaxRounds,
	}
	for _, o := range opts {
		o(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	if len(members) == 0 {
		return nil, fmt.Errorf("%w: groupchat: no members", af.ErrInitialization)
	}
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		name := m.Name()
		if name == "" {
			return nil, fmt.Errorf("%w: groupchat: member without a name", af.ErrInitialization)
		}
		if seen[strings.ToLower(name)] {
			return nil, fmt.Errorf("%w: groupchat: duplicate member %q", af.ErrInitialization, name)
		}
		seen[strings.ToLower(name)] = true
	}
	if g.selection == SelectAuto && g.host == nil {
		return nil, fmt.Errorf("%w: groupchat: auto selection needs a host model", af.ErrInitialization)
	}
	return g, nil
}

// Members returns the participants in declaration order.
func (g *GroupChat) Members() []Member { return g.members }

// Member returns the participant whose name best matches name.
func (g *GroupChat) Member(name string) (Member, bool) {
	i := resolve(name, g.names())
	if i < 0 {
		return nil, false
	}
	return g.members[i], true
}

// Run starts the chat on messages and streams one [Turn] per round. The
// stream ends after the last round; the first member error ends it with
// that error.
func (g *GroupChat) Run(ctx context.Context, messages []af.Message) *af.ResponseStream[Turn] {
	history := append([]af.Message(nil), messages...)
	return af.NewResponseStream(ctx, func(ctx context.Context, ch chan<- Turn) error {
		for round := 1; round <= g.maxRounds; round++ {
			speaker, err := g.selectSpeaker(ctx, history)
			if err != nil {
				return err
			}
			turn, err := g.speak(ctx, round, speaker, history)
			if err != nil {
				return err
			}
			history = append(history, turn.Message())

			select {
			case ch <- turn:
			case <-ctx.Done():
				return ctx.Err()
			}
			if g.terminated(turn) {
				g.logger.DebugContext(ctx, "group chat terminated", "round", round, "speaker", turn.Speaker)
				return nil
			}
		}
		return nil
	})
}

// RunAll runs the chat to the end and returns every turn.
func (g *GroupChat) RunAll(ctx context.Context, messages []af.Message) ([]Turn, error) {
	stream := g.Run(ctx, messages)
	defer stream.Close()
	return stream.Collect(ctx)
}

// Ask runs a single turn by the named member on messages, bypassing
// selection.
func (g *GroupChat) Ask(ctx context.Context, name string, messages []af.Message) (Turn, error) {
	m, ok := g.Member(name)
	if !ok {
		return Turn{}, fmt.Errorf("%w: %q", ErrUnknownMember, name)
	}
	return g.speak(ctx, 1, m, messages)
}

func (g *GroupChat) speak(ctx context.Context, round int, m Member, history []af.Message) (Turn, error) {
	g.logger.DebugContext(ctx, "group chat turn", "round", round, "speaker", m.Name(), "messages", len(history))
	resp, err := m.Run(ctx, transcriptFor(m.Name(), history), af.WithRunOptions(&af.ChatOptions{
		Instructions: g.roleInstructions(m),
	}))
	if err != nil {
		return Turn{}, fmt.Errorf("groupchat: %s: %w", m.Name(), err)
	}
	return Turn{Round: round, Speaker: m.Name(), Response: resp}, nil
}

func (g *GroupChat) terminated(t Turn) bool {
	return g.terminate != "" && strings.Contains(t.Text(), g.terminate)
}

func (g *GroupChat) names() []string {
	names := make([]string, len(g.members))
	for i, m := range g.members {
		names[i] = m.Name()
	}
	return names
}

// roleInstructions tells a member who else is in the room.
func (g *GroupChat) roleInstructions(self Member) string {
	var b strings.Builder
	if g.background != "" {
		b.WriteString(g.background)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "You are %s in this team. Other members:\n", self.Name())
	for _, m := range g.members {
		if m.Name() == self.Name() {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", m.Name(), m.Description())
	}
	b.WriteString("Address a member with @Name to hand over to them.")
	return b.String()
}

// transcriptFor rewrites the shared history from self's point of view:
// its own replies stay assistant messages, everyone else's become named
// user messages.
func transcriptFor(self string, history []af.Message) []af.Message {
	out := make([]af.Message, 0, len(history))
	for _, m := range history {
		if m.Role != af.RoleAssistant || m.AuthorName == "" || m.AuthorName == self {
			out = append(out, m)
			continue
		}
		out = append(out, af.NewNamedUserMessage(m.AuthorName, m.AuthorName+": "+m.Text()))
	}
	return out
}
