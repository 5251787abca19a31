// Copyright (c) Microsoft. All rights reserved.

package agentframework_test

import (
	"encoding/json"
	"testing"

	af "github.com/agentcrew/copilot-agents/agentframework"
)

func TestContentJSONHasTypeDiscriminator(t *testing.T) {
	data, err := af.MarshalContentJSON(&af.TextReasoningContent{Text: "hmm"})
	if err != nil {
		t.Fatal(err)
	}
	var envelope map[string]any
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatal(err)
	}
	if envelope["$type"] != "reasoning" {
		t.Errorf("$type = %v, want reasoning", envelope["$type"])
	}
	if envelope["text"] != "hmm" {
		t.Errorf("text = %v", envelope["text"])
	}
}

func TestFunctionCallArgumentsJSON(t *testing.T) {
	tests := []struct {
		name string
		args string
	}{
		{"complete object", `{"city":"Paris"}`},
		{"truncated stream", `{"city":"Par`},
		{"empty", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data, err := af.MarshalContentJSON(&af.FunctionCallContent{CallID: "c1", Name: "get_weather", Arguments: tc.args})
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			got, err := af.UnmarshalContentJSON(data)
			if err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			fc, ok := got.(*af.FunctionCallContent)
			if !ok {
				t.Fatalf("got %T, want *FunctionCallContent", got)
			}
			if fc.Arguments != tc.args {
				t.Errorf("Arguments = %q, want %q", fc.Arguments, tc.args)
			}
			if fc.Name != "get_weather" || fc.CallID != "c1" {
				t.Errorf("call = %+v", fc)
			}
		})
	}
}

func TestContentsSliceMarshalUnmarshal(t *testing.T) {
	original := af.Contents{
		&af.TextContent{Text: "hello"},
		&af.FunctionCallContent{CallID: "c1", Name: "fn", Arguments: "{}"},
		&af.UsageContent{Usage: af.UsageDetails{InputTokens: 3, TotalTokens: 5}},
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var restored af.Contents
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if len(restored) != 3 {
		t.Fatalf("len = %d, want 3", len(restored))
	}
	if restored[0].Type() != af.ContentTypeText {
		t.Errorf("[0] type = %q", restored[0].Type())
	}
	if restored[1].Type() != af.ContentTypeFunctionCall {
		t.Errorf("[1] type = %q", restored[1].Type())
	}
	if u := restored[2].(*af.UsageContent); u.Usage.TotalTokens != 5 {
		t.Errorf("[2] usage = %+v", u.Usage)
	}
}

func TestUnmarshalContentJSON_UnknownType(t *testing.T) {
	data := []byte(`{"$type":"hostedFile","fileId":"f1"}`)
	if _, err := af.UnmarshalContentJSON(data); err == nil {
		t.Fatal("expected error for unknown $type")
	}
}
