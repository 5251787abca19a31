// Copyright (c) Microsoft. All rights reserved.

package agentframework

import "strings"

// ChatResponse is the complete (non-streaming) response from a [ChatClient].
type ChatResponse struct {
	Messages     []Message
	ResponseID   string
	ModelID      string
	FinishReason FinishReason
	Usage        UsageDetails
	Extra        map[string]any
	Raw          any
}

// Text returns the concatenated text of all messages in this response.
func (r *ChatResponse) Text() string {
	return joinText(r.Messages)
}

// ChatResponseUpdate is a single chunk received during streaming from a [ChatClient].
type ChatResponseUpdate struct {
	Contents     Contents
	Role         Role
	ResponseID   string
	ModelID      string
	FinishReason FinishReason
	Usage        UsageDetails
	Raw          any
}

// Text returns the concatenated text of all [TextContent] items in this update.
func (u *ChatResponseUpdate) Text() string {
	m := Message{Contents: u.Contents}
	return m.Text()
}

// AgentResponse is the complete response from an [Agent] run.
type AgentResponse struct {
	Messages   []Message
	ResponseID string
	AgentID    string
	AgentName  string
	Usage      UsageDetails
	Extra      map[string]any
	Raw        any
}

// Text returns the concatenated text of all messages in this agent response.
func (r *AgentResponse) Text() string {
	return joinText(r.Messages)
}

// AgentResponseUpdate is a single streaming chunk from an [Agent] run.
type AgentResponseUpdate struct {
	Contents   Contents
	Role       Role
	AgentID    string
	ResponseID string
	Usage      UsageDetails
	Raw        any
}

// Text returns the concatenated text of all [TextContent] items in this update.
func (u *AgentResponseUpdate) Text() string {
	m := Message{Contents: u.Contents}
	return m.Text()
}

func joinText(msgs []Message) string {
	var b strings.Builder
	for i := range msgs {
		b.WriteString(msgs[i].Text())
	}
	return b.String()
}

// AssembleMessages lays out a finished assistant reply: one message with the
// text (possibly empty) and, when non-empty, the reasoning, followed by one
// message per function call. The result is never empty.
func AssembleMessages(role Role, text, reasoning string, calls []*FunctionCallContent) []Message {
	if role == "" {
		role = RoleAssistant
	}
	head := Message{Role: role, Contents: Contents{&TextContent{Text: text}}}
	if reasoning != "" {
		head.Contents = append(head.Contents, &TextReasoningContent{Text: reasoning})
	}
	msgs := make([]Message, 0, 1+len(calls))
	msgs = append(msgs, head)
	for _, fc := range calls {
		msgs = append(msgs, Message{
			Role:     role,
			Contents: Contents{fc},
			Extra:    map[string]any{ExtraFunctionID: fc.CallID},
		})
	}
	return msgs
}

// ChatResponseFromUpdates builds a complete [ChatResponse] by merging
// a sequence of streaming updates.
func ChatResponseFromUpdates(updates []ChatResponseUpdate) *ChatResponse {
	resp := &ChatResponse{}
	var role Role
	var all Contents
	for _, u := range updates {
		all = append(all, u.Contents...)
		if role == "" {
			role = u.Role
		}
		resp.ResponseID = pick(resp.ResponseID, u.ResponseID)
		resp.ModelID = pick(resp.ModelID, u.ModelID)
		resp.FinishReason = pick(resp.FinishReason, u.FinishReason)
		if u.Usage.TotalTokens > 0 {
			resp.Usage = u.Usage
		}
	}
	text, reasoning, calls := splitContents(all)
	resp.Messages = AssembleMessages(role, text, reasoning, calls)
	return resp
}

// AgentResponseFromUpdates builds a complete [AgentResponse] by merging
// a sequence of streaming updates.
func AgentResponseFromUpdates(updates []AgentResponseUpdate) *AgentResponse {
	resp := &AgentResponse{}
	var role Role
	var all Contents
	for _, u := range updates {
		all = append(all, u.Contents...)
		if role == "" {
			role = u.Role
		}
		resp.AgentID = pick(resp.AgentID, u.AgentID)
		resp.ResponseID = pick(resp.ResponseID, u.ResponseID)
		if u.Usage.TotalTokens > 0 {
			resp.Usage = u.Usage
		}
	}
	text, reasoning, calls := splitContents(all)
	resp.Messages = AssembleMessages(role, text, reasoning, calls)
	return resp
}

// splitContents concatenates text and reasoning deltas and collects
// function calls in arrival order. Other content kinds are dropped.
func splitContents(cs Contents) (text, reasoning string, calls []*FunctionCallContent) {
	var tb, rb strings.Builder
	for _, c := range cs {
		switch v := c.(type) {
		case *TextContent:
			tb.WriteString(v.Text)
		case *TextReasoningContent:
			rb.WriteString(v.Text)
		case *FunctionCallContent:
			calls = append(calls, v)
		}
	}
	return tb.String(), rb.String(), calls
}
