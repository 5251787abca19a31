// Copyright (c) Microsoft. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	af "github.com/agentcrew/copilot-agents/agentframework"
)

// fencedArray matches a reply that is only a JSON array of objects,
// optionally inside a ```json fence.
var fencedArray = regexp.MustCompile("(?s)^\\s*(?:```(?:json)?\\s*)?\\[\\s*\\{.*\\}\\s*\\](?:\\s*```)?\\s*$")

// TextToolCallMiddleware turns assistant replies that spell tool calls out as
// text into structured function calls. Some models behind Copilot-compatible
// gateways answer with
//
//	[{"get_weather": {"location": "Paris"}}]
//
// or
//
//	[{"name": "get_weather", "arguments": {"location": "Paris"}}]
//
// instead of native tool calls. Only names of tools offered in the request
// are accepted. Use it as chat middleware so the agent's tool loop sees the
// converted calls.
func TextToolCallMiddleware(logger *slog.Logger) af.ChatMiddleware {
	return func(next af.ChatHandler) af.ChatHandler {
		return func(ctx context.Context, messages []af.Message, opts *af.ChatOptions) (*af.ChatResponse, error) {
			resp, err := next(ctx, messages, opts)
			if err != nil || resp == nil || opts == nil || len(opts.Tools) == 0 {
				return resp, err
			}

			offered := make(map[string]bool, len(opts.Tools))
			for _, t := range opts.Tools {
				offered[t.Name()] = true
			}

			var out []af.Message
			converted := 0
			for _, msg := range resp.Messages {
				text, ok := onlyText(msg)
				if msg.Role != af.RoleAssistant || !ok || !fencedArray.MatchString(text) {
					out = append(out, msg)
					continue
				}
				calls, err := ParseTextToolCalls(text, converted)
				if err == nil {
					for _, c := range calls {
						if !offered[c.Name] {
							err = fmt.Errorf("tool %q was not offered", c.Name)
							break
						}
					}
				}
				if err != nil {
					logger.DebugContext(ctx, "text is not a tool call", "error", err)
					out = append(out, msg)
					continue
				}
				converted += len(calls)
				out = append(out, af.AssembleMessages(msg.Role, "", "", calls)...)
			}

			if converted > 0 {
				logger.InfoContext(ctx, "converted text to tool calls", "count", converted)
				resp.Messages = out
				resp.FinishReason = af.FinishReasonToolCalls
			}
			return resp, nil
		}
	}
}

func onlyText(msg af.Message) (string, bool) {
	if len(msg.Contents) == 0 {
		return "", false
	}
	var b strings.Builder
	for _, c := range msg.Contents {
		tc, ok := c.(*af.TextContent)
		if !ok {
			return "", false
		}
		b.WriteString(tc.Text)
	}
	return strings.TrimSpace(b.String()), true
}

// ParseTextToolCalls parses a JSON array of tool calls written as text.
// Call ids are numbered "call_<n>" starting at first.
func ParseTextToolCalls(text string, first int) ([]*af.FunctionCallContent, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var arr []map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &arr); err != nil {
		return nil, fmt.Errorf("invalid JSON array: %w", err)
	}
	if len(arr) == 0 {
		return nil, errors.New("no tool calls")
	}

	calls := make([]*af.FunctionCallContent, 0, len(arr))
	for i, obj := range arr {
		name, args, err := splitCall(obj)
		if err != nil {
			return nil, fmt.Errorf("tool call %d: %w", i, err)
		}
		calls = append(calls, &af.FunctionCallContent{
			CallID:    fmt.Sprintf("call_%d", first+i),
			Name:      name,
			Arguments: args,
		})
	}
	return calls, nil
}

func splitCall(obj map[string]json.RawMessage) (name, args string, err error) {
	if raw, ok := obj["name"]; ok {
		if err := json.Unmarshal(raw, &name); err != nil || name == "" {
			return "", "", errors.New("name is not a string")
		}
		args, err = compactArgs(obj["arguments"])
		return name, args, err
	}
	if len(obj) != 1 {
		return "", "", fmt.Errorf("expected 1 key, got %d", len(obj))
	}
	for k, v := range obj {
		name = k
		args, err = compactArgs(v)
	}
	return name, args, err
}

// compactArgs accepts arguments as an object or as a JSON-encoded string.
func compactArgs(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "{}", nil
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		raw = json.RawMessage(s)
	}
	var v map[string]any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("arguments are not an object: %w", err)
	}
	b, err := json.Marshal(v)
	return string(b), err
}
