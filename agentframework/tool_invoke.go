// Copyright (c) Microsoft. All rights reserved.

package agentframework

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// InvocationConfig bounds the tool-calling loop.
type InvocationConfig struct {
	// MaxIterations is the maximum number of model round-trips. Default: 40.
	MaxIterations int

	// MaxConsecutiveErrors aborts the loop after this many tool failures in
	// a row. Default: 3.
	MaxConsecutiveErrors int

	// TerminateOnUnknown aborts if the model calls a tool that is not registered.
	TerminateOnUnknown bool

	// IncludeDetailedErrors sends the tool's error text back to the model
	// instead of a generic message.
	IncludeDetailedErrors bool
}

// DefaultInvocationConfig returns the default loop limits.
func DefaultInvocationConfig() InvocationConfig {
	return InvocationConfig{
		MaxIterations:        40,
		MaxConsecutiveErrors: 3,
	}
}

type invocationLimiter interface {
	MaxInvocations() int
}

// invokeFunctions calls the model, runs any requested tools, appends their
// results and calls the model again until it answers without tool calls.
func invokeFunctions(
	ctx context.Context,
	client ChatClient,
	messages []Message,
	opts *ChatOptions,
	config InvocationConfig,
	fnMiddleware []FunctionMiddleware,
	logger *slog.Logger,
) (*ChatResponse, error) {
	if config.MaxIterations <= 0 {
		config.MaxIterations = 40
	}
	if config.MaxConsecutiveErrors <= 0 {
		config.MaxConsecutiveErrors = 3
	}

	toolMap := make(map[string]Tool, len(opts.Tools))
	for _, t := range opts.Tools {
		toolMap[t.Name()] = t
	}
	invocations := make(map[string]int)
	consecutiveErrors := 0
	var usage UsageDetails

	for iteration := 0; iteration < config.MaxIterations; iteration++ {
		resp, err := client.Response(ctx, messages, opts)
		if err != nil {
			return nil, err
		}
		usage = usage.Add(resp.Usage)

		calls := extractFunctionCalls(resp)
		if len(calls) == 0 {
			resp.Usage = usage
			return resp, nil
		}

		var resultMessages []Message
		for _, call := range calls {
			tool, ok := toolMap[call.Name]
			if !ok {
				if config.TerminateOnUnknown {
					return nil, fmt.Errorf("%w: unknown tool %q", ErrToolExecution, call.Name)
				}
				logger.WarnContext(ctx, "unknown tool called", "tool", call.Name)
				resultMessages = append(resultMessages, NewToolMessage(call.CallID, "error: unknown tool "+call.Name))
				consecutiveErrors++
				continue
			}

			if tool.DeclarationOnly() {
				resp.Usage = usage
				return resp, nil
			}

			if l, ok := tool.(invocationLimiter); ok && l.MaxInvocations() > 0 && invocations[call.Name] >= l.MaxInvocations() {
				resultMessages = append(resultMessages, NewToolMessage(call.CallID,
					fmt.Sprintf("error: %s may be called at most %d times", call.Name, l.MaxInvocations())))
				continue
			}
			invocations[call.Name]++

			result, invokeErr := invokeToolWithMiddleware(ctx, tool, json.RawMessage(call.Arguments), fnMiddleware)
			if invokeErr != nil {
				consecutiveErrors++
				logger.WarnContext(ctx, "tool invocation error",
					"tool", call.Name,
					"error", invokeErr,
					"consecutive_errors", consecutiveErrors,
				)
				if consecutiveErrors >= config.MaxConsecutiveErrors {
					return nil, fmt.Errorf("%w: max consecutive errors reached (%d)", ErrToolExecution, consecutiveErrors)
				}
				errMsg := "error invoking tool"
				if config.IncludeDetailedErrors {
					errMsg = invokeErr.Error()
				}
				resultMessages = append(resultMessages, NewToolMessage(call.CallID, errMsg))
				continue
			}

			consecutiveErrors = 0
			resultMessages = append(resultMessages, NewToolMessage(call.CallID, result))
		}

		messages = append(messages, resp.Messages...)
		messages = append(messages, resultMessages...)
	}

	return nil, fmt.Errorf("%w: max iterations reached (%d)", ErrExecution, config.MaxIterations)
}

func extractFunctionCalls(resp *ChatResponse) []*FunctionCallContent {
	var calls []*FunctionCallContent
	for i := range resp.Messages {
		calls = append(calls, resp.Messages[i].FunctionCalls()...)
	}
	return calls
}

func invokeToolWithMiddleware(ctx context.Context, tool Tool, args json.RawMessage, mws []FunctionMiddleware) (any, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	handler := func(ctx context.Context, t Tool, a json.RawMessage) (any, error) {
		return t.Invoke(ctx, a)
	}
	return chainFunctionMiddleware(handler, mws...)(ctx, tool, args)
}
