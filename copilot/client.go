// Copyright (c) Microsoft. All rights reserved.

package copilot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sashabaranov/go-openai"

	af "github.com/agentcrew/copilot-agents/agentframework"
	"github.com/agentcrew/copilot-agents/config"
)

const (
	// DefaultBaseURL is the Copilot chat completions endpoint root.
	DefaultBaseURL = "https://api.githubcopilot.com"
	// DefaultModel is used when neither the client nor the request names one.
	DefaultModel = ModelPrefix + "gpt-4o"
)

// Client implements [af.ChatClient] against the GitHub Copilot API.
type Client struct {
	api      *openai.Client
	defaults *af.ChatOptions
	handler  af.ChatHandler
	logger   *slog.Logger
}

var _ af.ChatClient = (*Client)(nil)

// New creates a Client. It fails with [af.ErrInitialization] when no
// credential or GitHub token is configured; no request is made.
//
//	client, err := copilot.New(
//	    copilot.WithGitHubToken(os.Getenv("GITHUB_TOKEN")),
//	    copilot.WithModel("github_copilot/gpt-4o"),
//	)
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		baseURL:       DefaultBaseURL,
		editorVersion: DefaultEditorVersion,
		integrationID: DefaultIntegrationID,
	}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	base := cfg.httpClient
	if base == nil {
		base = &http.Client{}
	}

	cred := cfg.credential
	if cred == nil {
		if cfg.githubToken == "" {
			return nil, fmt.Errorf("%w: copilot: no credential or GitHub token configured", af.ErrInitialization)
		}
		credOpts := []CredentialOption{WithTokenHTTPClient(base)}
		if cfg.tokenURL != "" {
			credOpts = append(credOpts, WithTokenURL(cfg.tokenURL))
		}
		gh, err := NewGitHubCredential(cfg.githubToken, credOpts...)
		if err != nil {
			return nil, err
		}
		gh.editorVersion = cfg.editorVersion
		cred = gh
	}

	headers := map[string]string{
		HeaderEditorVersion: cfg.editorVersion,
		HeaderIntegrationID: cfg.integrationID,
	}
	for k, v := range cfg.headers {
		headers[k] = v
	}

	rt := base.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	httpClient := &http.Client{
		Transport: &headerTransport{
			base:       rt,
			credential: cred,
			scopes:     cfg.scopes,
			headers:    headers,
			verbose:    cfg.verbose,
			logger:     cfg.logger,
		},
		CheckRedirect: base.CheckRedirect,
		Jar:           base.Jar,
		Timeout:       base.Timeout,
	}
	if cfg.timeout > 0 {
		httpClient.Timeout = cfg.timeout
	}

	oc := openai.DefaultConfig("")
	oc.BaseURL = cfg.baseURL
	oc.HTTPClient = httpClient

	instance := cfg.defaults
	if cfg.model != "" {
		instance = af.MergeChatOptions(instance, &af.ChatOptions{ModelID: cfg.model})
	}

	c := &Client{
		api:      openai.NewClientWithConfig(oc),
		defaults: af.MergeChatOptions(&af.ChatOptions{ModelID: DefaultModel}, instance),
		logger:   cfg.logger,
	}
	c.handler = af.ChainChatMiddleware(c.coreResponse, cfg.chatMiddleware...)
	return c, nil
}

// NewFromConfig creates a Client from loaded configuration. Extra options
// are applied after it.
func NewFromConfig(cfg config.LLM, opts ...Option) (*Client, error) {
	return New(append([]Option{WithConfig(cfg)}, opts...)...)
}

// Options returns the effective options for a request: request over
// instance over defaults.
func (c *Client) Options(request *af.ChatOptions) *af.ChatOptions {
	return af.MergeChatOptions(c.defaults, request)
}

// Response returns the complete reply. When the merged options set
// Extra["stream"], the reply is streamed and collected.
func (c *Client) Response(ctx context.Context, messages []af.Message, opts *af.ChatOptions) (*af.ChatResponse, error) {
	return c.handler(ctx, messages, opts)
}

func (c *Client) coreResponse(ctx context.Context, messages []af.Message, opts *af.ChatOptions) (*af.ChatResponse, error) {
	merged := c.Options(opts)
	if merged.ExtraBool(ExtraStream) {
		stream, err := c.streamMessages(ctx, messages, merged, AccumulatedMode)
		if err != nil {
			return nil, err
		}
		defer stream.Close()
		msgs, err := stream.Collect()
		if err != nil {
			return nil, err
		}
		return &af.ChatResponse{
			Messages:     msgs,
			ResponseID:   stream.acc.ResponseID(),
			ModelID:      stream.acc.Model(),
			FinishReason: stream.acc.FinishReason(),
			Usage:        stream.acc.Usage(),
		}, nil
	}

	acc, raw, err := c.complete(ctx, messages, merged)
	if err != nil {
		return nil, err
	}
	msgs, err := acc.Finish()
	if err != nil {
		return nil, err
	}
	return &af.ChatResponse{
		Messages:     msgs,
		ResponseID:   acc.ResponseID(),
		ModelID:      acc.Model(),
		FinishReason: acc.FinishReason(),
		Usage:        acc.Usage(),
		Raw:          raw,
	}, nil
}

// complete runs a non-streaming request and feeds the response through an
// accumulator as a single chunk.
func (c *Client) complete(ctx context.Context, messages []af.Message, merged *af.ChatOptions) (*StreamAccumulator, *openai.ChatCompletionResponse, error) {
	req, extra := buildRequest(messages, merged)
	acc := NewStreamAccumulator(AccumulatedMode)

	c.logger.DebugContext(ctx, "copilot completion", "model", req.Model, "messages", len(req.Messages), "tools", len(req.Tools))
	resp, err := c.api.CreateChatCompletion(withPassthrough(ctx, extra), req)
	if err != nil {
		return nil, nil, acc.Fail(err)
	}
	acc.Process(chunkFromResponse(resp))
	return acc, &resp, nil
}

// StreamMessages starts a streaming request and returns its message lists
// in the given mode.
func (c *Client) StreamMessages(ctx context.Context, messages []af.Message, opts *af.ChatOptions, mode StreamMode) (*MessageStream, error) {
	return c.streamMessages(ctx, messages, c.Options(opts), mode)
}

func (c *Client) streamMessages(ctx context.Context, messages []af.Message, merged *af.ChatOptions, mode StreamMode) (*MessageStream, error) {
	req, extra := buildRequest(messages, merged)
	req.Stream = true
	req.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	c.logger.DebugContext(ctx, "copilot stream", "model", req.Model, "messages", len(req.Messages), "mode", mode.String())
	s, err := c.api.CreateChatCompletionStream(withPassthrough(ctx, extra), req)
	if err != nil {
		return nil, NewStreamAccumulator(mode).Fail(err)
	}
	return newMessageStream(openaiSource{stream: s}, mode), nil
}

// Chat is the provider-style entry point: Extra["stream"] selects
// streaming and Extra["delta_stream"] selects [DeltaMode]. Without
// streaming the returned stream yields the complete reply once.
func (c *Client) Chat(ctx context.Context, messages []af.Message, opts *af.ChatOptions) (*MessageStream, error) {
	merged := c.Options(opts)
	if merged.ExtraBool(ExtraStream) {
		mode := AccumulatedMode
		if merged.ExtraBool(ExtraDeltaStream) {
			mode = DeltaMode
		}
		return c.streamMessages(ctx, messages, merged, mode)
	}

	acc, _, err := c.complete(ctx, messages, merged)
	if err != nil {
		return nil, err
	}
	msgs, err := acc.Finish()
	if err != nil {
		return nil, err
	}
	return finishedStream(acc, msgs), nil
}

// StreamResponse streams text and reasoning as they arrive. Tool calls,
// the finish reason and usage arrive in a final update once the response
// is complete.
func (c *Client) StreamResponse(ctx context.Context, messages []af.Message, opts *af.ChatOptions) (*af.ResponseStream[af.ChatResponseUpdate], error) {
	stream, err := c.StreamMessages(ctx, messages, opts, DeltaMode)
	if err != nil {
		return nil, err
	}

	return af.NewResponseStream(ctx, func(ctx context.Context, ch chan<- af.ChatResponseUpdate) error {
		defer stream.Close()
		send := func(u af.ChatResponseUpdate) error {
			select {
			case ch <- u:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		for {
			msgs, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}
			for _, m := range msgs {
				if err := send(af.ChatResponseUpdate{
					Contents:   m.Contents,
					Role:       m.Role,
					ResponseID: stream.ResponseID(),
					ModelID:    stream.acc.Model(),
				}); err != nil {
					return err
				}
			}
		}

		final, err := stream.acc.Finish()
		if err != nil {
			return err
		}
		var calls af.Contents
		for i := range final {
			for _, fc := range final[i].FunctionCalls() {
				calls = append(calls, fc)
			}
		}
		return send(af.ChatResponseUpdate{
			Contents:     calls,
			Role:         af.RoleAssistant,
			ResponseID:   stream.ResponseID(),
			ModelID:      stream.acc.Model(),
			FinishReason: stream.FinishReason(),
			Usage:        stream.Usage(),
		})
	}), nil
}
