// Copyright (c) Microsoft. All rights reserved.

package workflow_test

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	af "github.com/agentcrew/copilot-agents/agentframework"
	"github.com/agentcrew/copilot-agents/internal/chattest"
)

// script answers each request with the next reply queued under the first
// marker (in sorted order) found in the request's system prompt. The last
// reply of a queue repeats.
type script struct {
	mu      sync.Mutex
	replies map[string][]string
	seen    []string
	*chattest.Client
}

func newScript(replies map[string][]string) *script {
	s := &script{replies: replies}
	s.Client = chattest.Func(s.reply)
	return s
}

func (s *script) reply(_ context.Context, messages []af.Message, _ *af.ChatOptions) (*af.ChatResponse, error) {
	system := systemText(messages)
	s.mu.Lock()
	defer s.mu.Unlock()

	markers := make([]string, 0, len(s.replies))
	for m := range s.replies {
		markers = append(markers, m)
	}
	slices.Sort(markers)
	for _, m := range markers {
		if !strings.Contains(system, m) {
			continue
		}
		s.seen = append(s.seen, m)
		q := s.replies[m]
		if len(q) > 1 {
			s.replies[m] = q[1:]
		}
		return chattest.Text(q[0]), nil
	}
	return nil, fmt.Errorf("no scripted reply for system prompt %q", clipText(system, 80))
}

// calls returns the markers matched so far, in order.
func (s *script) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.seen)
}

// requestsTo returns the recorded requests whose system prompt has marker.
func (s *script) requestsTo(marker string) []chattest.Request {
	var out []chattest.Request
	for _, r := range s.Requests() {
		if strings.Contains(systemText(r.Messages), marker) {
			out = append(out, r)
		}
	}
	return out
}

func systemText(messages []af.Message) string {
	var b strings.Builder
	for _, m := range messages {
		if m.Role == af.RoleSystem {
			b.WriteString(m.Text())
			b.WriteString("\n")
		}
	}
	return b.String()
}

func clipText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// role is the marker groupchat puts in a member's system prompt.
func role(name string) string { return "You are " + name + " in this team" }

const hostMarker = "You moderate this team"
