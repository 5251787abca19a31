// Copyright (c) Microsoft. All rights reserved.

package groupchat

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	af "github.com/agentcrew/copilot-agents/agentframework"
)

// FanOut runs every member on the same messages, at most limit at a time
// (limit <= 0 means no limit). Turns are returned in member order. The
// first failure cancels the rest and is returned.
func FanOut(ctx context.Context, members []Member, messages []af.Message, limit int) ([]Turn, error) {
	turns := make([]Turn, len(members))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, m := range members {
		g.Go(func() error {
			resp, err := m.Run(gctx, append([]af.Message(nil), messages...))
			if err != nil {
				return fmt.Errorf("groupchat: fan-out %s: %w", m.Name(), err)
			}
			turns[i] = Turn{Round: 1, Speaker: m.Name(), Response: resp}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return turns, nil
}
