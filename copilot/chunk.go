// Copyright (c) Microsoft. All rights reserved.

package copilot

import (
	"github.com/sashabaranov/go-openai"

	af "github.com/agentcrew/copilot-agents/agentframework"
)

// Chunk is one increment of a response in progress, normalized from the
// completion library's streaming and non-streaming payloads. Every field is
// optional.
type Chunk struct {
	ID      string
	Model   string
	Choices []Choice
	Usage   *af.UsageDetails
}

// Choice is one completion alternative. Only the first is ever read.
type Choice struct {
	Delta        Delta
	FinishReason string
}

// Delta carries the fragments a chunk adds.
type Delta struct {
	Role             string
	Content          string
	ReasoningContent string
	ToolCalls        []ToolCallFragment
}

// ToolCallFragment is a partial tool call. ID and Index correlate fragments
// of the same call across chunks when the provider sets them.
type ToolCallFragment struct {
	Index     *int
	ID        string
	Name      string
	Arguments string
}

func chunkFromStream(r openai.ChatCompletionStreamResponse) Chunk {
	c := Chunk{ID: r.ID, Model: r.Model, Usage: usageFrom(r.Usage)}
	for _, ch := range r.Choices {
		d := Delta{
			Role:             ch.Delta.Role,
			Content:          ch.Delta.Content,
			ReasoningContent: ch.Delta.ReasoningContent,
			ToolCalls:        fragmentsFrom(ch.Delta.ToolCalls, false),
		}
		if fc := ch.Delta.FunctionCall; fc != nil {
			d.ToolCalls = append(d.ToolCalls, ToolCallFragment{Name: fc.Name, Arguments: fc.Arguments})
		}
		c.Choices = append(c.Choices, Choice{Delta: d, FinishReason: string(ch.FinishReason)})
	}
	return c
}

// chunkFromResponse treats a complete response as a single chunk so the
// non-streaming path runs through the same accumulator.
func chunkFromResponse(r openai.ChatCompletionResponse) Chunk {
	usage := r.Usage
	c := Chunk{ID: r.ID, Model: r.Model, Usage: usageFrom(&usage)}
	for _, ch := range r.Choices {
		m := ch.Message
		d := Delta{
			Role:             m.Role,
			Content:          m.Content,
			ReasoningContent: m.ReasoningContent,
			ToolCalls:        fragmentsFrom(m.ToolCalls, true),
		}
		if m.Content == "" && len(m.MultiContent) > 0 {
			for _, p := range m.MultiContent {
				if p.Type == openai.ChatMessagePartTypeText {
					d.Content += p.Text
				}
			}
		}
		if fc := m.FunctionCall; fc != nil {
			d.ToolCalls = append(d.ToolCalls, ToolCallFragment{Name: fc.Name, Arguments: fc.Arguments})
		}
		c.Choices = append(c.Choices, Choice{Delta: d, FinishReason: string(ch.FinishReason)})
	}
	return c
}

// fragmentsFrom converts tool calls. With positional set, calls lacking an
// index get their slice position so that complete calls without ids are
// never merged as continuations.
func fragmentsFrom(calls []openai.ToolCall, positional bool) []ToolCallFragment {
	if len(calls) == 0 {
		return nil
	}
	out := make([]ToolCallFragment, 0, len(calls))
	for i, tc := range calls {
		idx := tc.Index
		if idx == nil && positional {
			idx = &i
		}
		out = append(out, ToolCallFragment{
			Index:     idx,
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out
}

func usageFrom(u *openai.Usage) *af.UsageDetails {
	if u == nil || u.TotalTokens == 0 && u.PromptTokens == 0 && u.CompletionTokens == 0 {
		return nil
	}
	return &af.UsageDetails{
		InputTokens:  u.PromptTokens,
		OutputTokens: u.CompletionTokens,
		TotalTokens:  u.TotalTokens,
	}
}
