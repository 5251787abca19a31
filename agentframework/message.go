// Copyright (c) Microsoft. All rights reserved.

package agentframework

import "strings"

// Role identifies the author of a [Message].
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// FinishReason indicates why the model stopped generating.
type FinishReason string

const (
	FinishReasonStop          FinishReason = "stop"
	FinishReasonLength        FinishReason = "length"
	FinishReasonToolCalls     FinishReason = "tool_calls"
	FinishReasonContentFilter FinishReason = "content_filter"
)

// ExtraFunctionID is the [Message.Extra] key holding the provider identifier
// of the tool call carried by the message.
const ExtraFunctionID = "function_id"

// Message is one unit of conversation content.
//
// Assistant messages produced by a provider carry at most one text item, an
// optional reasoning item and, when the model requested a tool, one
// [FunctionCallContent] per message.
type Message struct {
	Role       Role     `json:"role"`
	Contents   Contents `json:"contents,omitempty"`
	AuthorName string   `json:"authorName,omitempty"`
	MessageID  string   `json:"messageId,omitempty"`

	// Extra holds provider-specific metadata such as [ExtraFunctionID].
	Extra map[string]any `json:"extra,omitempty"`

	// Raw holds the original provider-specific representation, if any.
	Raw any `json:"-"`
}

// Text returns the concatenated text of all [TextContent] items in this message.
func (m *Message) Text() string {
	var b strings.Builder
	for _, c := range m.Contents {
		if tc, ok := c.(*TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// Reasoning returns the concatenated text of all [TextReasoningContent] items.
func (m *Message) Reasoning() string {
	var b strings.Builder
	for _, c := range m.Contents {
		if rc, ok := c.(*TextReasoningContent); ok {
			b.WriteString(rc.Text)
		}
	}
	return b.String()
}

// FunctionCalls returns the function calls carried by this message.
func (m *Message) FunctionCalls() []*FunctionCallContent {
	var calls []*FunctionCallContent
	for _, c := range m.Contents {
		if fc, ok := c.(*FunctionCallContent); ok {
			calls = append(calls, fc)
		}
	}
	return calls
}

// FunctionID returns the tool call identifier stored in Extra, if any.
func (m *Message) FunctionID() string {
	id, _ := m.Extra[ExtraFunctionID].(string)
	return id
}

// NewUserMessage creates a user-role [Message] from a text string.
func NewUserMessage(text string) Message {
	return Message{
		Role:     RoleUser,
		Contents: Contents{&TextContent{Text: text}},
	}
}

// NewNamedUserMessage creates a user-role [Message] attributed to name.
func NewNamedUserMessage(name, text string) Message {
	m := NewUserMessage(text)
	m.AuthorName = name
	return m
}

// NewAssistantMessage creates an assistant-role [Message] from a text string.
func NewAssistantMessage(text string) Message {
	return Message{
		Role:     RoleAssistant,
		Contents: Contents{&TextContent{Text: text}},
	}
}

// NewSystemMessage creates a system-role [Message] from a text string.
func NewSystemMessage(text string) Message {
	return Message{
		Role:     RoleSystem,
		Contents: Contents{&TextContent{Text: text}},
	}
}

// NewFunctionCallMessage creates an assistant message requesting one tool call.
func NewFunctionCallMessage(callID, name, arguments string) Message {
	return Message{
		Role: RoleAssistant,
		Contents: Contents{&FunctionCallContent{
			CallID:    callID,
			Name:      name,
			Arguments: arguments,
		}},
		Extra: map[string]any{ExtraFunctionID: callID},
	}
}

// NewToolMessage creates a tool-role [Message] with a function result.
func NewToolMessage(callID string, result any) Message {
	return Message{
		Role: RoleTool,
		Contents: Contents{&FunctionResultContent{
			CallID: callID,
			Result: result,
		}},
	}
}

// NormalizeMessages converts flexible input forms into a []Message slice.
// Accepted inputs: string (becomes user message), Message, []Message.
func NormalizeMessages(inputs ...any) []Message {
	var msgs []Message
	for _, input := range inputs {
		switch v := input.(type) {
		case string:
			msgs = append(msgs, NewUserMessage(v))
		case Message:
			msgs = append(msgs, v)
		case []Message:
			msgs = append(msgs, v...)
		}
	}
	return msgs
}

// PrependInstructions inserts a system message at the beginning of the message
// list if instructions are non-empty and no system message already exists.
func PrependInstructions(messages []Message, instructions string) []Message {
	if instructions == "" {
		return messages
	}
	for _, m := range messages {
		if m.Role == RoleSystem {
			return messages
		}
	}
	return append([]Message{NewSystemMessage(instructions)}, messages...)
}

// LastText returns the text of the last message that has any, scanning
// backwards. Useful for reading the final answer out of a transcript.
func LastText(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if t := messages[i].Text(); t != "" {
			return t
		}
	}
	return ""
}
