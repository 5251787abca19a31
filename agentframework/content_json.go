// Copyright (c) Microsoft. All rights reserved.

package agentframework

import (
	"encoding/json"
	"fmt"
)

// contentWire is the JSON form of every Content type. The $type field
// selects which of the remaining fields are meaningful.
type contentWire struct {
	Type      ContentType     `json:"$type"`
	Text      string          `json:"text,omitempty"`
	URI       string          `json:"uri,omitempty"`
	MediaType string          `json:"mediaType,omitempty"`
	Message   string          `json:"message,omitempty"`
	ErrorCode string          `json:"errorCode,omitempty"`
	Details   any             `json:"details,omitempty"`
	CallID    string          `json:"callId,omitempty"`
	Name      string          `json:"name,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Result    any             `json:"result,omitempty"`
	Usage     *UsageDetails   `json:"usage,omitempty"`
}

// MarshalContentJSON marshals a single Content value into its $type envelope.
func MarshalContentJSON(c Content) ([]byte, error) {
	w := contentWire{}
	switch v := c.(type) {
	case *TextContent:
		w.Text = v.Text
	case *TextReasoningContent:
		w.Text = v.Text
	case *DataContent:
		w.URI, w.MediaType = v.URI, v.MediaType
	case *URIContent:
		w.URI, w.MediaType = v.URI, v.MediaType
	case *ErrorContent:
		w.Message, w.ErrorCode, w.Details = v.Message, v.ErrorCode, v.Details
	case *FunctionCallContent:
		w.CallID, w.Name = v.CallID, v.Name
		w.Arguments = rawArguments(v.Arguments)
	case *FunctionResultContent:
		w.CallID, w.Result = v.CallID, v.Result
	case *UsageContent:
		u := v.Usage
		w.Usage = &u
	default:
		return nil, fmt.Errorf("unknown content type: %T", c)
	}
	w.Type = c.Type()
	return json.Marshal(w)
}

// rawArguments embeds well-formed JSON arguments as-is and anything else
// (a truncated stream, free text) as a JSON string.
func rawArguments(args string) json.RawMessage {
	if args == "" {
		return nil
	}
	if json.Valid([]byte(args)) {
		return json.RawMessage(args)
	}
	b, _ := json.Marshal(args)
	return b
}

// UnmarshalContentJSON unmarshals a single Content value from its $type envelope.
func UnmarshalContentJSON(data []byte) (Content, error) {
	var w contentWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("unmarshal content envelope: %w", err)
	}

	switch w.Type {
	case ContentTypeText:
		return &TextContent{Text: w.Text}, nil
	case ContentTypeTextReasoning:
		return &TextReasoningContent{Text: w.Text}, nil
	case ContentTypeData:
		return &DataContent{URI: w.URI, MediaType: w.MediaType}, nil
	case ContentTypeURI:
		return &URIContent{URI: w.URI, MediaType: w.MediaType}, nil
	case ContentTypeError:
		return &ErrorContent{Message: w.Message, ErrorCode: w.ErrorCode, Details: w.Details}, nil
	case ContentTypeFunctionCall:
		args := string(w.Arguments)
		var s string
		if json.Unmarshal(w.Arguments, &s) == nil {
			args = s
		}
		return &FunctionCallContent{CallID: w.CallID, Name: w.Name, Arguments: args}, nil
	case ContentTypeFunctionResult:
		return &FunctionResultContent{CallID: w.CallID, Result: w.Result}, nil
	case ContentTypeUsage:
		var u UsageDetails
		if w.Usage != nil {
			u = *w.Usage
		}
		return &UsageContent{Usage: u}, nil
	default:
		return nil, fmt.Errorf("unknown content $type: %q", w.Type)
	}
}

// Contents is a typed slice enabling JSON marshal/unmarshal of polymorphic Content arrays.
type Contents []Content

// MarshalJSON serializes each Content item using its $type discriminator.
func (cs Contents) MarshalJSON() ([]byte, error) {
	items := make([]json.RawMessage, len(cs))
	for i, c := range cs {
		b, err := MarshalContentJSON(c)
		if err != nil {
			return nil, fmt.Errorf("marshal content[%d]: %w", i, err)
		}
		items[i] = b
	}
	return json.Marshal(items)
}

// UnmarshalJSON deserializes a JSON array of Content items using the $type discriminator.
func (cs *Contents) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make(Contents, len(raw))
	for i, r := range raw {
		c, err := UnmarshalContentJSON(r)
		if err != nil {
			return fmt.Errorf("unmarshal content[%d]: %w", i, err)
		}
		result[i] = c
	}
	*cs = result
	return nil
}
