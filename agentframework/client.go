// Copyright (c) Microsoft. All rights reserved.

package agentframework

import "context"

// ChatClient is implemented by provider adapters (see the copilot package).
// Agents, group chats and routers only ever talk to a model through it.
type ChatClient interface {
	// Response sends messages and returns the fully reconstructed reply.
	Response(ctx context.Context, messages []Message, opts *ChatOptions) (*ChatResponse, error)

	// StreamResponse sends messages and returns incremental updates. Tool
	// calls are delivered complete, never as partial fragments.
	StreamResponse(ctx context.Context, messages []Message, opts *ChatOptions) (*ResponseStream[ChatResponseUpdate], error)
}
