// Copyright (c) Microsoft. All rights reserved.

package agentframework

import "context"

// ContextProvider contributes extra context to every agent run, such as
// retrieved documents or long-term memory.
type ContextProvider interface {
	// Invoking runs before the model is called. Instructions are appended
	// to the system prompt, messages are prepended to the conversation and
	// tools are added to the tool set.
	Invoking(ctx context.Context, messages []Message) (*InvocationContext, error)

	// Invoked runs after a successful run with the request and response messages.
	Invoked(ctx context.Context, request, response []Message) error

	// SessionCreated runs when an agent creates a new session.
	SessionCreated(ctx context.Context, sessionID string) error
}

// InvocationContext is what a [ContextProvider] contributes to one run.
type InvocationContext struct {
	Instructions string
	Messages     []Message
	Tools        []Tool
}

// NoOpContextProvider implements every hook as a no-op. Embed it and
// override only the hooks you need.
type NoOpContextProvider struct{}

func (NoOpContextProvider) Invoking(context.Context, []Message) (*InvocationContext, error) {
	return nil, nil
}

func (NoOpContextProvider) Invoked(context.Context, []Message, []Message) error { return nil }

func (NoOpContextProvider) SessionCreated(context.Context, string) error { return nil }
