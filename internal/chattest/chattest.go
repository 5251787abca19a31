// Copyright (c) Microsoft. All rights reserved.

// Package chattest provides a scripted [agentframework.ChatClient] for tests.
package chattest

import (
	"context"
	"errors"
	"slices"
	"sync"

	af "github.com/agentcrew/copilot-agents/agentframework"
)

// ErrExhausted is returned once a Client has no replies left.
var ErrExhausted = errors.New("chattest: no scripted replies left")

// Request is one recorded call.
type Request struct {
	Messages []af.Message
	Options  *af.ChatOptions
}

// Client replies from a script. A ReplyFunc, when set, takes precedence.
// It is safe for concurrent use.
type Client struct {
	ReplyFunc func(ctx context.Context, messages []af.Message, opts *af.ChatOptions) (*af.ChatResponse, error)

	mu       sync.Mutex
	replies  []*af.ChatResponse
	requests []Request
}

// New returns a client answering with texts in order.
func New(texts ...string) *Client {
	c := &Client{}
	for _, t := range texts {
		c.Push(&af.ChatResponse{Messages: []af.Message{af.NewAssistantMessage(t)}})
	}
	return c
}

// Func returns a client that answers every request with fn.
func Func(fn func(ctx context.Context, messages []af.Message, opts *af.ChatOptions) (*af.ChatResponse, error)) *Client {
	return &Client{ReplyFunc: fn}
}

// Text is a ReplyFunc result helper.
func Text(s string) *af.ChatResponse {
	return &af.ChatResponse{Messages: []af.Message{af.NewAssistantMessage(s)}}
}

// Push appends replies to the script.
func (c *Client) Push(replies ...*af.ChatResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, replies...)
}

// Requests returns the calls made so far.
func (c *Client) Requests() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.requests)
}

func (c *Client) Response(ctx context.Context, messages []af.Message, opts *af.ChatOptions) (*af.ChatResponse, error) {
	c.mu.Lock()
	c.requests = append(c.requests, Request{Messages: slices.Clone(messages), Options: opts})
	fn := c.ReplyFunc
	var next *af.ChatResponse
	if fn == nil && len(c.replies) > 0 {
		next = c.replies[0]
		c.replies = c.replies[1:]
	}
	c.mu.Unlock()

	if fn != nil {
		return fn(ctx, messages, opts)
	}
	if next == nil {
		return nil, ErrExhausted
	}
	return next, nil
}

func (c *Client) StreamResponse(ctx context.Context, messages []af.Message, opts *af.ChatOptions) (*af.ResponseStream[af.ChatResponseUpdate], error) {
	resp, err := c.Response(ctx, messages, opts)
	if err != nil {
		return nil, err
	}
	return af.NewResponseStream(ctx, func(ctx context.Context, ch chan<- af.ChatResponseUpdate) error {
		for _, m := range resp.Messages {
			select {
			case ch <- af.ChatResponseUpdate{Contents: m.Contents, Role: m.Role, Usage: resp.Usage}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}), nil
}
