// Copyright (c) Microsoft. All rights reserved.

package agentframework_test

import (
	"testing"

	af "github.com/agentcrew/copilot-agents/agentframework"
)

func TestNewFunctionCallMessage(t *testing.T) {
	m := af.NewFunctionCallMessage("call_0", "get_weather", `{"x":1}`)
	if m.Role != af.RoleAssistant {
		t.Errorf("role = %q", m.Role)
	}
	if m.FunctionID() != "call_0" {
		t.Errorf("FunctionID = %q", m.FunctionID())
	}
	calls := m.FunctionCalls()
	if len(calls) != 1 || calls[0].Name != "get_weather" || calls[0].Arguments != `{"x":1}` {
		t.Errorf("calls = %+v", calls)
	}
	if m.Text() != "" {
		t.Errorf("text = %q, want empty", m.Text())
	}
}

func TestNewToolMessage(t *testing.T) {
	m := af.NewToolMessage("call-1", "result")
	if m.Role != af.RoleTool {
		t.Errorf("role = %q", m.Role)
	}
	fr, ok := m.Contents[0].(*af.FunctionResultContent)
	if !ok {
		t.Fatalf("type = %T", m.Contents[0])
	}
	if fr.CallID != "call-1" {
		t.Errorf("CallID = %q", fr.CallID)
	}
}

func TestMessageTextAndReasoning(t *testing.T) {
	m := af.Message{
		Role: af.RoleAssistant,
		Contents: af.Contents{
			&af.TextReasoningContent{Text: "think "},
			&af.TextContent{Text: "Hello "},
			&af.FunctionCallContent{Name: "fn"},
			&af.TextContent{Text: "World"},
			&af.TextReasoningContent{Text: "more"},
		},
	}
	if got := m.Text(); got != "Hello World" {
		t.Errorf("text = %q, want %q", got, "Hello World")
	}
	if got := m.Reasoning(); got != "think more" {
		t.Errorf("reasoning = %q", got)
	}
}

func TestNormalizeMessages(t *testing.T) {
	msgs := af.NormalizeMessages(
		"hello",
		af.NewAssistantMessage("hi"),
		[]af.Message{af.NewSystemMessage("sys")},
		42,
	)
	if len(msgs) != 3 {
		t.Fatalf("len = %d, want 3", len(msgs))
	}
	if msgs[0].Role != af.RoleUser || msgs[1].Role != af.RoleAssistant || msgs[2].Role != af.RoleSystem {
		t.Errorf("roles = %q %q %q", msgs[0].Role, msgs[1].Role, msgs[2].Role)
	}
}

func TestPrependInstructions(t *testing.T) {
	msgs := []af.Message{af.NewUserMessage("hi")}

	result := af.PrependInstructions(msgs, "Be helpful")
	if len(result) != 2 || result[0].Role != af.RoleSystem || result[0].Text() != "Be helpful" {
		t.Fatalf("result = %+v", result)
	}

	if got := af.PrependInstructions(msgs, ""); len(got) != 1 {
		t.Errorf("empty instructions should not add message, got len=%d", len(got))
	}

	withSys := []af.Message{af.NewSystemMessage("existing"), af.NewUserMessage("hi")}
	if got := af.PrependInstructions(withSys, "new"); len(got) != 2 {
		t.Errorf("should not add duplicate system message, got len=%d", len(got))
	}
}

func TestLastText(t *testing.T) {
	msgs := []af.Message{
		af.NewUserMessage("question"),
		af.NewAssistantMessage("answer"),
		af.NewFunctionCallMessage("c1", "fn", "{}"),
	}
	if got := af.LastText(msgs); got != "answer" {
		t.Errorf("LastText = %q", got)
	}
	if got := af.LastText(nil); got != "" {
		t.Errorf("LastText(nil) = %q", got)
	}
}
