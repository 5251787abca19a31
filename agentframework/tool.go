// Copyright (c) Microsoft. All rights reserved.

package agentframework

import (
	"context"
	"encoding/json"
)

// Tool is a function the model may call.
type Tool interface {
	// Name is the function name sent to the model.
	Name() string

	Description() string

	// Parameters is the JSON Schema of the arguments object. May be nil.
	Parameters() json.RawMessage

	// Invoke runs the function with the model-produced arguments.
	Invoke(ctx context.Context, args json.RawMessage) (any, error)

	// DeclarationOnly reports whether calls are handed back to the caller
	// instead of being invoked by the agent.
	DeclarationOnly() bool
}

// FunctionTool is a [Tool] backed by a Go function.
type FunctionTool struct {
	name            string
	description     string
	parameters      json.RawMessage
	fn              func(ctx context.Context, args json.RawMessage) (any, error)
	declarationOnly bool
	maxInvocations  int
}

// ToolOption configures a [FunctionTool].
type ToolOption func(*FunctionTool)

// WithDeclarationOnly marks the tool as declaration-only.
func WithDeclarationOnly() ToolOption {
	return func(t *FunctionTool) { t.declarationOnly = true }
}

// WithMaxInvocations caps how often the agent invokes the tool within a
// single run. Zero means unlimited.
func WithMaxInvocations(n int) ToolOption {
	return func(t *FunctionTool) { t.maxInvocations = n }
}

// NewTool creates a [FunctionTool] from a raw JSON schema and handler.
func NewTool(name, description string, parameters json.RawMessage, fn func(ctx context.Context, args json.RawMessage) (any, error), opts ...ToolOption) *FunctionTool {
	t := &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewTypedTool creates a [FunctionTool] whose schema is generated from Args
// and whose arguments are decoded into Args before fn runs.
//
//	type WeatherArgs struct {
//	    Location string `json:"location" jsonschema:"description=City name,required"`
//	    Unit     string `json:"unit"     jsonschema:"enum=celsius|fahrenheit"`
//	}
func NewTypedTool[Args any](name, description string, fn func(ctx context.Context, args Args) (any, error), opts ...ToolOption) *FunctionTool {
	schema := GenerateSchema[Args]()

	wrapped := func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args Args
		if len(raw) == 0 {
			raw = json.RawMessage("{}")
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, &ToolError{
				ToolName: name,
				Message:  "invalid arguments: " + err.Error(),
				Err:      ErrToolExecution,
			}
		}
		return fn(ctx, args)
	}

	return NewTool(name, description, schema, wrapped, opts...)
}

func (t *FunctionTool) Name() string                { return t.name }
func (t *FunctionTool) Description() string         { return t.description }
func (t *FunctionTool) Parameters() json.RawMessage { return t.parameters }
func (t *FunctionTool) DeclarationOnly() bool       { return t.declarationOnly }

// MaxInvocations returns the per-run invocation cap, zero when unlimited.
func (t *FunctionTool) MaxInvocations() int { return t.maxInvocations }

// Invoke calls the backing function.
func (t *FunctionTool) Invoke(ctx context.Context, args json.RawMessage) (any, error) {
	if t.fn == nil {
		return nil, &ToolError{
			ToolName: t.name,
			Message:  "tool has no handler",
			Err:      ErrToolExecution,
		}
	}
	return t.fn(ctx, args)
}

// GenerateSchema builds a JSON Schema for T from its json and jsonschema
// struct tags.
func GenerateSchema[T any]() json.RawMessage {
	var zero T
	return generateSchemaFromType(zero)
}
