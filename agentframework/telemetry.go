// Copyright (c) Microsoft. All rights reserved.

package agentframework

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// LoggingMiddleware returns an [AgentMiddleware] that logs agent runs.
func LoggingMiddleware(logger *slog.Logger) AgentMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next AgentHandler) AgentHandler {
		return func(ctx context.Context, req *AgentRequest) (*AgentResponse, error) {
			start := time.Now()
			logger.InfoContext(ctx, "agent run started",
				"agent", req.AgentName,
				"message_count", len(req.Messages),
			)

			resp, err := next(ctx, req)

			duration := time.Since(start)
			if err != nil {
				logger.ErrorContext(ctx, "agent run failed",
					"agent", req.AgentName,
					"duration", duration,
					"error", err,
				)
				return nil, err
			}

			logger.InfoContext(ctx, "agent run completed",
				"agent", req.AgentName,
				"duration", duration,
				"response_messages", len(resp.Messages),
				"input_tokens", resp.Usage.InputTokens,
				"output_tokens", resp.Usage.OutputTokens,
			)
			return resp, nil
		}
	}
}

// ChatLoggingMiddleware returns a [ChatMiddleware] that logs each model call
// at debug level.
func ChatLoggingMiddleware(logger *slog.Logger) ChatMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next ChatHandler) ChatHandler {
		return func(ctx context.Context, messages []Message, opts *ChatOptions) (*ChatResponse, error) {
			start := time.Now()
			var model string
			if opts != nil {
				model = opts.ModelID
			}
			resp, err := next(ctx, messages, opts)
			if err != nil {
				logger.DebugContext(ctx, "chat call failed", "model", model, "duration", time.Since(start), "error", err)
				return nil, err
			}
			logger.DebugContext(ctx, "chat call",
				"model", model,
				"duration", time.Since(start),
				"finish_reason", resp.FinishReason,
				"total_tokens", resp.Usage.TotalTokens,
			)
			return resp, nil
		}
	}
}

// FunctionLoggingMiddleware returns a [FunctionMiddleware] that logs tool
// invocations.
func FunctionLoggingMiddleware(logger *slog.Logger) FunctionMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next FunctionHandler) FunctionHandler {
		return func(ctx context.Context, tool Tool, args json.RawMessage) (any, error) {
			start := time.Now()
			result, err := next(ctx, tool, args)
			if err != nil {
				logger.WarnContext(ctx, "tool call failed", "tool", tool.Name(), "duration", time.Since(start), "error", err)
				return result, err
			}
			logger.InfoContext(ctx, "tool call", "tool", tool.Name(), "duration", time.Since(start), "args_bytes", len(args))
			return result, nil
		}
	}
}
