// Copyright (c) Microsoft. All rights reserved.

package copilot

import (
	"fmt"
	"slices"
	"strings"

	af "github.com/agentcrew/copilot-agents/agentframework"
)

// StreamMode selects what [StreamAccumulator.Process] emits.
type StreamMode int

const (
	// AccumulatedMode emits the full reconstruction so far after each chunk.
	AccumulatedMode StreamMode = iota
	// DeltaMode emits only the text this chunk added. Tool calls are withheld.
	DeltaMode
)

func (m StreamMode) String() string {
	if m == DeltaMode {
		return "delta"
	}
	return "accumulated"
}

// State is the lifecycle position of a [StreamAccumulator].
type State int

const (
	StateEmpty State = iota
	StateAccumulating
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateAccumulating:
		return "accumulating"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type trackedCall struct {
	id         string
	providerID string
	index      *int
	name       strings.Builder
	arguments  strings.Builder
}

// StreamAccumulator rebuilds assistant messages from a sequence of
// [Chunk] values. Use one per request; it is not safe for concurrent use.
//
// Text and reasoning fragments are appended to separate buffers. Tool-call
// fragments are matched to a tracked call by provider id, then by index,
// then, for fragments carrying neither, by continuing the last call if that
// call also arrived without an id. Anything else starts a new call.
type StreamAccumulator struct {
	mode  StreamMode
	state State

	role      af.Role
	text      strings.Builder
	reasoning strings.Builder
	calls     []*trackedCall

	responseID   string
	model        string
	finishReason af.FinishReason
	usage        af.UsageDetails

	final []af.Message
	err   error
}

// NewStreamAccumulator returns an empty accumulator.
func NewStreamAccumulator(mode StreamMode) *StreamAccumulator {
	return &StreamAccumulator{mode: mode, role: af.RoleAssistant}
}

func (a *StreamAccumulator) Mode() StreamMode { return a.mode }
func (a *StreamAccumulator) State() State     { return a.state }

// ResponseID returns the first response id seen.
func (a *StreamAccumulator) ResponseID() string { return a.responseID }

// Model returns the first model name seen.
func (a *StreamAccumulator) Model() string { return a.model }

// FinishReason returns the last finish reason reported by the provider.
func (a *StreamAccumulator) FinishReason() af.FinishReason { return a.finishReason }

// Usage returns the last usage reported by the provider.
func (a *StreamAccumulator) Usage() af.UsageDetails { return a.usage }

// Process consumes one chunk and returns what it emits under the
// accumulator's mode. Only the first choice is read and missing fields
// contribute nothing. A chunk that adds no text, reasoning or tool-call
// fragment emits nil. After Finish or Fail, Process is a no-op.
func (a *StreamAccumulator) Process(c Chunk) []af.Message {
	if a.state == StateDone || a.state == StateFailed {
		return nil
	}
	a.state = StateAccumulating

	if a.responseID == "" {
		a.responseID = c.ID
	}
	if a.model == "" {
		a.model = c.Model
	}
	if c.Usage != nil {
		a.usage = *c.Usage
	}
	if len(c.Choices) == 0 {
		return nil
	}

	choice := c.Choices[0]
	if choice.FinishReason != "" {
		a.finishReason = af.FinishReason(choice.FinishReason)
	}
	d := choice.Delta
	if d.Role != "" {
		a.role = af.Role(d.Role)
	}

	a.reasoning.WriteString(d.ReasoningContent)
	a.text.WriteString(d.Content)
	for _, f := range d.ToolCalls {
		a.track(f)
	}

	if d.Content == "" && d.ReasoningContent == "" && len(d.ToolCalls) == 0 {
		return nil
	}
	if a.mode == DeltaMode {
		return a.deltaMessages(d)
	}
	return a.snapshot()
}

// Finish moves the accumulator to [StateDone] and returns the completed
// reply: a message with the full text (possibly empty) and, when non-empty,
// the reasoning, followed by one message per tool call. The result always
// holds at least one message. Repeated calls return the same result. A
// failed accumulator returns its error and no messages.
func (a *StreamAccumulator) Finish() ([]af.Message, error) {
	switch a.state {
	case StateFailed:
		return nil, a.err
	case StateDone:
		return slices.Clone(a.final), nil
	}
	a.final = af.AssembleMessages(a.role, a.text.String(), a.reasoning.String(), a.functionCalls())
	a.state = StateDone
	return slices.Clone(a.final), nil
}

// Fail moves the accumulator to [StateFailed], discards everything buffered
// and returns err as a model service error. A finished accumulator stays
// finished; the wrapped error is still returned.
func (a *StreamAccumulator) Fail(err error) error {
	if a.state == StateFailed {
		return a.err
	}
	wrapped := toServiceError(err)
	if a.state == StateDone {
		return wrapped
	}
	a.text.Reset()
	a.reasoning.Reset()
	a.calls = nil
	a.err = wrapped
	a.state = StateFailed
	return wrapped
}

func (a *StreamAccumulator) track(f ToolCallFragment) {
	tc := a.match(f)
	if tc == nil {
		tc = &trackedCall{providerID: f.ID, id: f.ID}
		if tc.id == "" {
			tc.id = a.syntheticID()
		}
		a.calls = append(a.calls, tc)
	}
	if tc.index == nil && f.Index != nil {
		idx := *f.Index
		tc.index = &idx
	}
	tc.name.WriteString(f.Name)
	tc.arguments.WriteString(f.Arguments)
}

func (a *StreamAccumulator) match(f ToolCallFragment) *trackedCall {
	if f.ID != "" {
		for _, tc := range a.calls {
			if tc.providerID == f.ID {
				return tc
			}
		}
		return nil
	}
	if f.Index != nil {
		for _, tc := range a.calls {
			if tc.index != nil && *tc.index == *f.Index {
				return tc
			}
		}
		return nil
	}
	if n := len(a.calls); n > 0 && a.calls[n-1].providerID == "" {
		return a.calls[n-1]
	}
	return nil
}

// syntheticID numbers calls that arrived without a provider id.
func (a *StreamAccumulator) syntheticID() string {
	for n := len(a.calls); ; n++ {
		id := fmt.Sprintf("call_%d", n)
		if !slices.ContainsFunc(a.calls, func(tc *trackedCall) bool { return tc.id == id }) {
			return id
		}
	}
}

func (a *StreamAccumulator) deltaMessages(d Delta) []af.Message {
	var out []af.Message
	if d.ReasoningContent != "" {
		out = append(out, af.Message{Role: a.role, Contents: af.Contents{&af.TextReasoningContent{Text: d.ReasoningContent}}})
	}
	if d.Content != "" {
		out = append(out, af.Message{Role: a.role, Contents: af.Contents{&af.TextContent{Text: d.Content}}})
	}
	return out
}

func (a *StreamAccumulator) snapshot() []af.Message {
	out := make([]af.Message, 0, 2+len(a.calls))
	if a.reasoning.Len() > 0 {
		out = append(out, af.Message{Role: a.role, Contents: af.Contents{&af.TextReasoningContent{Text: a.reasoning.String()}}})
	}
	if a.text.Len() > 0 {
		out = append(out, af.Message{Role: a.role, Contents: af.Contents{&af.TextContent{Text: a.text.String()}}})
	}
	for _, fc := range a.functionCalls() {
		out = append(out, af.Message{
			Role:     a.role,
			Contents: af.Contents{fc},
			Extra:    map[string]any{af.ExtraFunctionID: fc.CallID},
		})
	}
	return out
}

func (a *StreamAccumulator) functionCalls() []*af.FunctionCallContent {
	if len(a.calls) == 0 {
		return nil
	}
	out := make([]*af.FunctionCallContent, 0, len(a.calls))
	for _, tc := range a.calls {
		out = append(out, &af.FunctionCallContent{
			CallID:    tc.id,
			Name:      tc.name.String(),
			Arguments: tc.arguments.String(),
		})
	}
	return out
}
