// Copyright (c) Microsoft. All rights reserved.

package agentframework

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Agent composes a [ChatClient] with instructions, tools, middleware and
// session handling.
//
//	agent := agentframework.NewAgent(client,
//	    agentframework.WithName("Coder"),
//	    agentframework.WithInstructions("You write Go."),
//	    agentframework.WithTools(saveFile),
//	)
type Agent struct {
	id                  string
	name                string
	description         string
	client              ChatClient
	instructions        string
	tools               []Tool
	defaultOptions      *ChatOptions
	messageStoreFactory func() MessageStore
	contextProvider     ContextProvider
	agentMiddleware     []AgentMiddleware
	chatMiddleware      []ChatMiddleware
	functionMiddleware  []FunctionMiddleware
	invocationConfig    InvocationConfig
	logger              *slog.Logger
}

// AgentOption configures an [Agent].
type AgentOption func(*Agent)

// WithName sets the agent's name. Group chats address agents by it.
func WithName(name string) AgentOption {
	return func(a *Agent) { a.name = name }
}

// WithDescription sets a one-line description of what the agent does.
func WithDescription(desc string) AgentOption {
	return func(a *Agent) { a.description = desc }
}

// WithInstructions sets the system instructions.
func WithInstructions(instructions string) AgentOption {
	return func(a *Agent) { a.instructions = instructions }
}

// WithTools adds tools to the agent's default tool set.
func WithTools(tools ...Tool) AgentOption {
	return func(a *Agent) { a.tools = append(a.tools, tools...) }
}

// WithDefaultOptions sets the [ChatOptions] applied to every request.
func WithDefaultOptions(opts *ChatOptions) AgentOption {
	return func(a *Agent) { a.defaultOptions = opts }
}

// WithMessageStoreFactory sets the store used for new sessions.
func WithMessageStoreFactory(f func() MessageStore) AgentOption {
	return func(a *Agent) { a.messageStoreFactory = f }
}

// WithContextProvider attaches a [ContextProvider].
func WithContextProvider(cp ContextProvider) AgentOption {
	return func(a *Agent) { a.contextProvider = cp }
}

// WithAgentMiddleware adds [AgentMiddleware]; the first one is outermost.
func WithAgentMiddleware(mws ...AgentMiddleware) AgentOption {
	return func(a *Agent) { a.agentMiddleware = append(a.agentMiddleware, mws...) }
}

// WithChatMiddleware adds [ChatMiddleware] around every model call the agent makes.
func WithChatMiddleware(mws ...ChatMiddleware) AgentOption {
	return func(a *Agent) { a.chatMiddleware = append(a.chatMiddleware, mws...) }
}

// WithFunctionMiddleware adds [FunctionMiddleware] around tool invocations.
func WithFunctionMiddleware(mws ...FunctionMiddleware) AgentOption {
	return func(a *Agent) { a.functionMiddleware = append(a.functionMiddleware, mws...) }
}

// WithInvocationConfig overrides the tool-calling loop limits.
func WithInvocationConfig(cfg InvocationConfig) AgentOption {
	return func(a *Agent) { a.invocationConfig = cfg }
}

// WithAgentLogger sets the logger. Defaults to slog.Default().
func WithAgentLogger(l *slog.Logger) AgentOption {
	return func(a *Agent) { a.logger = l }
}

// NewAgent creates an Agent backed by client.
func NewAgent(client ChatClient, opts ...AgentOption) *Agent {
	a := &Agent{
		id:               uuid.NewString(),
		client:           client,
		invocationConfig: DefaultInvocationConfig(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if len(a.chatMiddleware) > 0 {
		a.client = WrapChatClient(a.client, a.chatMiddleware...)
	}
	return a
}

func (a *Agent) ID() string          { return a.id }
func (a *Agent) Name() string        { return a.name }
func (a *Agent) Description() string { return a.description }

// Instructions returns the agent's system instructions.
func (a *Agent) Instructions() string { return a.instructions }

// RunOption configures a single Run or RunStream call.
type RunOption func(*runConfig)

type runConfig struct {
	session *Session
	tools   []Tool
	options *ChatOptions
}

// WithSession runs against a [Session] so history carries across turns.
func WithSession(s *Session) RunOption {
	return func(c *runConfig) { c.session = s }
}

// WithRunTools adds tools for this call only.
func WithRunTools(tools ...Tool) RunOption {
	return func(c *runConfig) { c.tools = tools }
}

// WithRunOptions overrides [ChatOptions] for this call only.
func WithRunOptions(opts *ChatOptions) RunOption {
	return func(c *runConfig) { c.options = opts }
}

// Run sends messages to the agent, resolves any tool calls, and returns the
// final response.
func (a *Agent) Run(ctx context.Context, messages []Message, opts ...RunOption) (*AgentResponse, error) {
	cfg := a.buildRunConfig(opts)
	handler := chainAgentMiddleware(a.buildHandler(cfg), a.agentMiddleware...)

	return handler(ctx, &AgentRequest{
		AgentName: a.name,
		Messages:  messages,
		Session:   cfg.session,
		Options:   cfg.options,
	})
}

// RunStream sends messages to the agent and streams the model's reply.
// Tool calls are surfaced as content, not invoked.
func (a *Agent) RunStream(ctx context.Context, messages []Message, opts ...RunOption) (*AgentResponseStream, error) {
	cfg := a.buildRunConfig(opts)

	chatOpts := a.prepareChatOptions(cfg)
	allMessages, err := a.prepareMessages(ctx, messages, cfg, chatOpts)
	if err != nil {
		return nil, err
	}

	chatStream, err := a.client.StreamResponse(ctx, allMessages, chatOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecution, err)
	}

	agentStream := MapStream(ctx, chatStream, func(u ChatResponseUpdate) AgentResponseUpdate {
		return AgentResponseUpdate{
			Contents:   u.Contents,
			Role:       u.Role,
			AgentID:    a.id,
			ResponseID: u.ResponseID,
			Usage:      u.Usage,
			Raw:        u.Raw,
		}
	})

	return NewAgentResponseStream(agentStream), nil
}

// NewSession creates a [Session] that uses this agent's store factory and
// context provider.
func (a *Agent) NewSession() *Session {
	var store MessageStore
	if a.messageStoreFactory != nil {
		store = a.messageStoreFactory()
	} else {
		store = NewInMemoryStore()
	}
	s := NewSession(
		WithSessionStore(store),
		WithSessionContextProvider(a.contextProvider),
	)
	if a.contextProvider != nil {
		if err := a.contextProvider.SessionCreated(context.Background(), s.ID()); err != nil {
			a.logger.Warn("context provider session hook failed", "session_id", s.ID(), "error", err)
		}
	}
	return s
}

func (a *Agent) buildRunConfig(opts []RunOption) *runConfig {
	cfg := &runConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func (a *Agent) prepareChatOptions(cfg *runConfig) *ChatOptions {
	opts := MergeChatOptions(a.defaultOptions, cfg.options)

	allTools := make([]Tool, 0, len(a.tools)+len(cfg.tools))
	allTools = append(allTools, a.tools...)
	allTools = append(allTools, cfg.tools...)
	if len(allTools) > 0 {
		opts.Tools = mergeTools(opts.Tools, allTools)
	}

	if a.instructions != "" {
		if opts.Instructions != "" {
			opts.Instructions = a.instructions + "\n" + opts.Instructions
		} else {
			opts.Instructions = a.instructions
		}
	}
	return opts
}

func (a *Agent) contextProviderFor(cfg *runConfig) ContextProvider {
	if cfg.session != nil && cfg.session.ContextProvider() != nil {
		return cfg.session.ContextProvider()
	}
	return a.contextProvider
}

func (a *Agent) prepareMessages(ctx context.Context, messages []Message, cfg *runConfig, opts *ChatOptions) ([]Message, error) {
	var allMessages []Message

	if cfg.session != nil {
		history, err := cfg.session.Store().ListMessages(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: load history: %w", ErrSession, err)
		}
		allMessages = append(allMessages, history...)
	}
	allMessages = append(allMessages, messages...)

	if cp := a.contextProviderFor(cfg); cp != nil {
		invCtx, err := cp.Invoking(ctx, allMessages)
		if err != nil {
			return nil, fmt.Errorf("context provider: %w", err)
		}
		if invCtx != nil {
			if invCtx.Instructions != "" {
				if opts.Instructions != "" {
					opts.Instructions += "\n" + invCtx.Instructions
				} else {
					opts.Instructions = invCtx.Instructions
				}
			}
			if len(invCtx.Messages) > 0 {
				allMessages = append(append([]Message{}, invCtx.Messages...), allMessages...)
			}
			if len(invCtx.Tools) > 0 {
				opts.Tools = mergeTools(opts.Tools, invCtx.Tools)
			}
		}
	}

	return PrependInstructions(allMessages, opts.Instructions), nil
}

func (a *Agent) buildHandler(cfg *runConfig) AgentHandler {
	return func(ctx context.Context, req *AgentRequest) (*AgentResponse, error) {
		if req.Options != nil {
			cfg.options = req.Options
		}
		chatOpts := a.prepareChatOptions(cfg)
		allMessages, err := a.prepareMessages(ctx, req.Messages, cfg, chatOpts)
		if err != nil {
			return nil, err
		}

		a.logger.DebugContext(ctx, "agent run",
			"agent_id", a.id,
			"agent_name", a.name,
			"message_count", len(allMessages),
			"tool_count", len(chatOpts.Tools),
		)

		var chatResp *ChatResponse
		if len(chatOpts.Tools) > 0 {
			chatResp, err = invokeFunctions(ctx, a.client, allMessages, chatOpts, a.invocationConfig, a.functionMiddleware, a.logger)
		} else {
			chatResp, err = a.client.Response(ctx, allMessages, chatOpts)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrExecution, a.displayName(), err)
		}

		if cfg.session != nil {
			if err := a.updateSession(ctx, cfg.session, req.Messages, chatResp); err != nil {
				a.logger.WarnContext(ctx, "failed to update session", "session_id", cfg.session.ID(), "error", err)
			}
		}

		if cp := a.contextProviderFor(cfg); cp != nil {
			if err := cp.Invoked(ctx, req.Messages, chatResp.Messages); err != nil {
				a.logger.WarnContext(ctx, "context provider invoked hook failed", "error", err)
			}
		}

		return &AgentResponse{
			Messages:   chatResp.Messages,
			ResponseID: chatResp.ResponseID,
			AgentID:    a.id,
			AgentName:  a.name,
			Usage:      chatResp.Usage,
			Extra:      chatResp.Extra,
			Raw:        chatResp.Raw,
		}, nil
	}
}

func (a *Agent) displayName() string {
	if a.name != "" {
		return a.name
	}
	return a.id
}

func (a *Agent) updateSession(ctx context.Context, session *Session, request []Message, resp *ChatResponse) error {
	store := session.Store()
	if err := store.AddMessages(ctx, request); err != nil {
		return err
	}
	return store.AddMessages(ctx, resp.Messages)
}
