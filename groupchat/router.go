// Copyright (c) Microsoft. All rights reserved.

package groupchat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	af "github.com/agentcrew/copilot-agents/agentframework"
)

// Router lets a coordinator model either answer a request itself or hand
// it to one member. The coordinator delegates by replying
//
//	Call: <member name>
//	Reply: <what to tell the user>
//
// Router implements [Member] and the server's runner contract, so routers
// nest and can be served directly.
type Router struct {
	name        string
	description string
	client      af.ChatClient
	members     []Member
	logger      *slog.Logger
}

// RouterOption configures a [Router].
type RouterOption func(*Router)

// WithRouterName sets the router's name. Defaults to "Router".
func WithRouterName(name string) RouterOption {
	return func(r *Router) { r.name = name }
}

// WithRouterDescription sets the router's description.
func WithRouterDescription(desc string) RouterOption {
	return func(r *Router) { r.description = desc }
}

// WithRouterLogger sets the logger. Defaults to slog.Default().
func WithRouterLogger(l *slog.Logger) RouterOption {
	return func(r *Router) { r.logger = l }
}

// NewRouter creates a Router over members, coordinated by client.
func NewRouter(client af.ChatClient, members []Member, opts ...RouterOption) (*Router, error) {
	r := &Router{
		name:        "Router",
		description: "Routes each request to the most suitable specialist",
		client:      client,
		members:     members,
	}
	for _, o := range opts {
		o(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if client == nil {
		return nil, fmt.Errorf("%w: router: no coordinator model", af.ErrInitialization)
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: router: no members", af.ErrInitialization)
	}
	return r, nil
}

func (r *Router) Name() string        { return r.name }
func (r *Router) Description() string { return r.description }

// NewSession returns a fresh session for callers that keep history.
func (r *Router) NewSession() *af.Session { return af.NewSession() }

// Route asks the coordinator which member should handle messages. It
// returns nil and the coordinator's own reply when nobody is called.
func (r *Router) Route(ctx context.Context, messages []af.Message) (Member, *af.ChatResponse, error) {
	all := append([]af.Message{af.NewSystemMessage(r.prompt())}, messages...)
	resp, err := r.client.Response(ctx, all, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", af.ErrExecution, r.name, err)
	}
	name, ok := parseCall(resp.Text())
	if !ok {
		return nil, resp, nil
	}
	names := make([]string, len(r.members))
	for i, m := range r.members {
		names[i] = m.Name()
	}
	i := resolve(name, names)
	if i < 0 {
		r.logger.WarnContext(ctx, "router called an unknown member", "router", r.name, "called", name)
		return nil, resp, nil
	}
	r.logger.DebugContext(ctx, "routed", "router", r.name, "member", r.members[i].Name())
	return r.members[i], resp, nil
}

// Run routes messages and runs the chosen member. Session and run options
// are passed through to it.
func (r *Router) Run(ctx context.Context, messages []af.Message, opts ...af.RunOption) (*af.AgentResponse, error) {
	member, resp, err := r.Route(ctx, messages)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return &af.AgentResponse{
			Messages:   resp.Messages,
			ResponseID: resp.ResponseID,
			AgentName:  r.name,
			Usage:      resp.Usage,
		}, nil
	}
	out, err := member.Run(ctx, messages, opts...)
	if err != nil {
		return nil, err
	}
	out.Usage = out.Usage.Add(resp.Usage)
	return out, nil
}

func (r *Router) prompt() string {
	var b strings.Builder
	b.WriteString("You coordinate a team of specialists:\n")
	for _, m := range r.members {
		fmt.Fprintf(&b, "- %s: %s\n", m.Name(), m.Description())
	}
	b.WriteString("\nAnswer simple requests yourself. To hand a request to a specialist, reply exactly:\n")
	b.WriteString("Call: <specialist name>\nReply: <one sentence for the user>\n")
	return b.String()
}

// parseCall extracts the member name from a "Call:" line.
func parseCall(text string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "Call:"); ok {
			name := strings.TrimSpace(rest)
			return name, name != ""
		}
	}
	return "", false
}
