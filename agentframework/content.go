// Copyright (c) Microsoft. All rights reserved.

package agentframework

// ContentType identifies the kind of content within a message.
type ContentType string

const (
	ContentTypeText           ContentType = "text"
	ContentTypeTextReasoning  ContentType = "reasoning"
	ContentTypeData           ContentType = "data"
	ContentTypeURI            ContentType = "uri"
	ContentTypeError          ContentType = "error"
	ContentTypeFunctionCall   ContentType = "functionCall"
	ContentTypeFunctionResult ContentType = "functionResult"
	ContentTypeUsage          ContentType = "usage"
)

// Content is a sealed interface representing a piece of content within a [Message].
// Use a type switch to inspect the underlying type.
type Content interface {
	Type() ContentType

	sealed()
}

// base is embedded by every concrete Content type to satisfy the sealed marker.
type base struct{}

func (base) sealed() {}

// TextContent holds plain text.
type TextContent struct {
	base
	Text string
}

func (c *TextContent) Type() ContentType { return ContentTypeText }

// TextReasoningContent holds the provider's separate "thinking" channel.
type TextReasoningContent struct {
	base
	Text string
}

func (c *TextReasoningContent) Type() ContentType { return ContentTypeTextReasoning }

// DataContent holds binary data represented as a data URI.
type DataContent struct {
	base
	URI       string // data URI (e.g. data:image/png;base64,...)
	MediaType string
}

func (c *DataContent) Type() ContentType { return ContentTypeData }

// URIContent holds an external URI reference.
type URIContent struct {
	base
	URI       string
	MediaType string
}

func (c *URIContent) Type() ContentType { return ContentTypeURI }

// ErrorContent represents an error returned as message content.
type ErrorContent struct {
	base
	Message   string
	ErrorCode string
	Details   any
}

func (c *ErrorContent) Type() ContentType { return ContentTypeError }

// FunctionCallContent is a tool call requested by the model. Arguments is
// the JSON text exactly as the model produced it.
type FunctionCallContent struct {
	base
	CallID    string
	Name      string
	Arguments string
}

func (c *FunctionCallContent) Type() ContentType { return ContentTypeFunctionCall }

// FunctionResultContent represents the result of a tool/function call.
type FunctionResultContent struct {
	base
	CallID string
	Result any
}

func (c *FunctionResultContent) Type() ContentType { return ContentTypeFunctionResult }

// UsageContent carries token usage information.
type UsageContent struct {
	base
	Usage UsageDetails
}

func (c *UsageContent) Type() ContentType { return ContentTypeUsage }
