// Copyright (c) Microsoft. All rights reserved.

package copilot

import (
	"encoding/json"
	"strings"

	"github.com/sashabaranov/go-openai"

	af "github.com/agentcrew/copilot-agents/agentframework"
)

// ModelPrefix is the routing prefix model names may carry. It is stripped
// before the request is sent.
const ModelPrefix = "github_copilot/"

// Extra keys that select the response path instead of being forwarded.
const (
	ExtraStream      = "stream"
	ExtraDeltaStream = "delta_stream"
)

// deniedParams configure the orchestration layer and must never reach the API.
var deniedParams = map[string]bool{
	"lang":                    true,
	"parallel_function_calls": true,
	"function_choice":         true,
	"thought_in_content":      true,
	"fncall_prompt_type":      true,
	"max_input_tokens":        true,
	"max_retries":             true,
	ExtraStream:               true,
	ExtraDeltaStream:          true,
}

var emptyObjectSchema = json.RawMessage(`{"type":"object","properties":{}}`)

// buildRequest converts framework messages and fully merged options into a
// completion request plus the extra parameters to merge into the body.
func buildRequest(messages []af.Message, opts *af.ChatOptions) (openai.ChatCompletionRequest, map[string]any) {
	req := openai.ChatCompletionRequest{
		Model: strings.TrimPrefix(opts.ModelID, ModelPrefix),
	}
	if opts.MaxTokens != nil {
		req.MaxTokens = *opts.MaxTokens
	}
	if opts.Temperature != nil {
		req.Temperature = float32(*opts.Temperature)
	}
	if opts.TopP != nil {
		req.TopP = float32(*opts.TopP)
	}
	if opts.FrequencyPenalty != nil {
		req.FrequencyPenalty = float32(*opts.FrequencyPenalty)
	}
	if opts.PresencePenalty != nil {
		req.PresencePenalty = float32(*opts.PresencePenalty)
	}
	if opts.Store != nil {
		req.Store = *opts.Store
	}
	req.Stop = opts.Stop
	req.Seed = opts.Seed
	req.User = opts.User
	req.Metadata = opts.Metadata

	for _, t := range opts.Tools {
		params := t.Parameters()
		if len(params) == 0 {
			params = emptyObjectSchema
		}
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  params,
			},
		})
	}
	if len(req.Tools) > 0 {
		req.ToolChoice = convertToolChoice(opts.ToolChoice)
	}

	req.Messages = convertMessages(af.PrependInstructions(messages, opts.Instructions))
	return req, withZeroFloats(passthroughParams(opts.Extra), opts)
}

// withZeroFloats adds the sampling parameters that are explicitly zero.
// go-openai omits zero floats from the body, so they travel with the
// passthrough parameters instead.
func withZeroFloats(extra map[string]any, opts *af.ChatOptions) map[string]any {
	for key, v := range map[string]*float64{
		"temperature":       opts.Temperature,
		"top_p":             opts.TopP,
		"frequency_penalty": opts.FrequencyPenalty,
		"presence_penalty":  opts.PresencePenalty,
	} {
		if v == nil || *v != 0 {
			continue
		}
		if extra == nil {
			extra = make(map[string]any, 4)
		}
		extra[key] = 0.0
	}
	return extra
}

// passthroughParams returns the Extra entries that are forwarded verbatim.
func passthroughParams(extra map[string]any) map[string]any {
	var out map[string]any
	for k, v := range extra {
		if deniedParams[k] {
			continue
		}
		if out == nil {
			out = make(map[string]any, len(extra))
		}
		out[k] = v
	}
	return out
}

func convertToolChoice(tc af.ToolChoice) any {
	switch tc {
	case "":
		return nil
	case af.ToolChoiceAuto, af.ToolChoiceRequired, af.ToolChoiceNone:
		return string(tc)
	}
	if name, ok := strings.CutPrefix(string(tc), "function:"); ok {
		return openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: name},
		}
	}
	return string(tc)
}

// convertMessages translates framework messages into chat messages. An
// assistant message carrying tool calls is folded into the assistant
// message before it, so a reply laid out as text followed by one message
// per call goes back to the API as a single assistant turn.
func convertMessages(messages []af.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case af.RoleTool:
			for _, c := range msg.Contents {
				if fr, ok := c.(*af.FunctionResultContent); ok {
					out = append(out, openai.ChatCompletionMessage{
						Role:       openai.ChatMessageRoleTool,
						Content:    resultString(fr.Result),
						ToolCallID: fr.CallID,
					})
				}
			}

		case af.RoleAssistant:
			cm := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Name: sanitizeName(msg.AuthorName)}
			for _, c := range msg.Contents {
				switch v := c.(type) {
				case *af.TextContent:
					cm.Content += v.Text
				case *af.FunctionCallContent:
					cm.ToolCalls = append(cm.ToolCalls, openai.ToolCall{
						ID:   v.CallID,
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{
							Name:      v.Name,
							Arguments: v.Arguments,
						},
					})
				}
			}
			if n := len(out); n > 0 && len(cm.ToolCalls) > 0 && out[n-1].Role == openai.ChatMessageRoleAssistant {
				out[n-1].Content += cm.Content
				out[n-1].ToolCalls = append(out[n-1].ToolCalls, cm.ToolCalls...)
				continue
			}
			if cm.Content == "" && len(cm.ToolCalls) == 0 {
				continue
			}
			out = append(out, cm)

		default:
			cm := openai.ChatCompletionMessage{Role: string(msg.Role), Name: sanitizeName(msg.AuthorName)}
			parts := contentParts(msg.Contents)
			if len(parts) == 1 && parts[0].Type == openai.ChatMessagePartTypeText {
				cm.Content = parts[0].Text
			} else if len(parts) > 0 {
				cm.MultiContent = parts
			}
			out = append(out, cm)
		}
	}
	return out
}

func contentParts(contents af.Contents) []openai.ChatMessagePart {
	var parts []openai.ChatMessagePart
	for _, c := range contents {
		switch v := c.(type) {
		case *af.TextContent:
			parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: v.Text})
		case *af.DataContent:
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: v.URI},
			})
		case *af.URIContent:
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: v.URI},
			})
		}
	}
	return parts
}

func resultString(v any) string {
	switch r := v.(type) {
	case string:
		return r
	case nil:
		return ""
	case error:
		return "error: " + r.Error()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "error: " + err.Error()
	}
	return string(b)
}

// sanitizeName keeps the characters the API accepts in a participant name.
func sanitizeName(name string) string {
	if name == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if s := b.String(); len(s) <= 64 {
		return s
	}
	return b.String()[:64]
}
