// Copyright (c) Microsoft. All rights reserved.

package agentframework

import (
	"context"
	"encoding/json"
)

// AgentHandler processes an agent run.
type AgentHandler func(ctx context.Context, req *AgentRequest) (*AgentResponse, error)

// AgentRequest carries the inputs of an agent run through the middleware pipeline.
type AgentRequest struct {
	AgentName string
	Messages  []Message
	Session   *Session
	Options   *ChatOptions
}

// AgentMiddleware wraps an [AgentHandler]. Call next to continue the chain,
// or return early to short-circuit.
type AgentMiddleware func(next AgentHandler) AgentHandler

// ChatHandler processes a chat request.
type ChatHandler func(ctx context.Context, messages []Message, opts *ChatOptions) (*ChatResponse, error)

// ChatMiddleware wraps a [ChatHandler].
type ChatMiddleware func(next ChatHandler) ChatHandler

// FunctionHandler invokes a tool.
type FunctionHandler func(ctx context.Context, tool Tool, args json.RawMessage) (any, error)

// FunctionMiddleware wraps a [FunctionHandler].
type FunctionMiddleware func(next FunctionHandler) FunctionHandler

func chainAgentMiddleware(handler AgentHandler, mws ...AgentMiddleware) AgentHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		handler = mws[i](handler)
	}
	return handler
}

// ChainChatMiddleware wraps handler so that mws[0] is the outermost layer.
func ChainChatMiddleware(handler ChatHandler, mws ...ChatMiddleware) ChatHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		handler = mws[i](handler)
	}
	return handler
}

func chainFunctionMiddleware(handler FunctionHandler, mws ...FunctionMiddleware) FunctionHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		handler = mws[i](handler)
	}
	return handler
}

// WrapChatClient returns a [ChatClient] whose Response runs through mws.
// StreamResponse is passed through unchanged.
func WrapChatClient(client ChatClient, mws ...ChatMiddleware) ChatClient {
	if len(mws) == 0 {
		return client
	}
	return &middlewareClient{
		ChatClient: client,
		handler:    ChainChatMiddleware(client.Response, mws...),
	}
}

type middlewareClient struct {
	ChatClient
	handler ChatHandler
}

func (c *middlewareClient) Response(ctx context.Context, messages []Message, opts *ChatOptions) (*ChatResponse, error) {
	return c.handler(ctx, messages, opts)
}
