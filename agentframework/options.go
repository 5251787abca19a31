// Copyright (c) Microsoft. All rights reserved.

package agentframework

import "maps"

// ToolChoice controls how the model selects tools.
type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceRequired ToolChoice = "required"
	ToolChoiceNone     ToolChoice = "none"
)

// ToolChoiceFunction returns a ToolChoice that forces the model to call
// the named function.
func ToolChoiceFunction(name string) ToolChoice {
	return ToolChoice("function:" + name)
}

// ChatOptions configures a single chat completion request.
// Pointer fields use nil to represent "unset" (use provider default).
type ChatOptions struct {
	ModelID          string
	Temperature      *float64
	TopP             *float64
	MaxTokens        *int
	Stop             []string
	Seed             *int
	FrequencyPenalty *float64
	PresencePenalty  *float64
	Tools            []Tool
	ToolChoice       ToolChoice
	Metadata         map[string]string
	User             string
	Instructions     string
	Store            *bool

	// Extra holds provider parameters not covered by the typed fields.
	// Providers forward them verbatim after stripping the keys that only
	// configure the orchestration layer.
	Extra map[string]any
}

// ExtraBool reports the boolean value stored under key in Extra.
// Missing keys and non-boolean values read as false.
func (o *ChatOptions) ExtraBool(key string) bool {
	if o == nil {
		return false
	}
	v, _ := o.Extra[key].(bool)
	return v
}

// MergeChatOptions overlays override onto base and returns a new value;
// neither input is modified. Unset fields in override keep the base value.
// Tools merge by name (override replaces same-named tools), Metadata and
// Extra merge key by key, Instructions concatenate.
//
// Chained calls give a precedence order, e.g. request over instance over
// defaults:
//
//	MergeChatOptions(MergeChatOptions(defaults, instance), request)
func MergeChatOptions(base, override *ChatOptions) *ChatOptions {
	if base == nil {
		base = &ChatOptions{}
	}
	merged := *base
	merged.Metadata = maps.Clone(base.Metadata)
	merged.Extra = maps.Clone(base.Extra)
	if override == nil {
		return &merged
	}

	merged.ModelID = pick(merged.ModelID, override.ModelID)
	merged.Temperature = pick(merged.Temperature, override.Temperature)
	merged.TopP = pick(merged.TopP, override.TopP)
	merged.MaxTokens = pick(merged.MaxTokens, override.MaxTokens)
	merged.Seed = pick(merged.Seed, override.Seed)
	merged.FrequencyPenalty = pick(merged.FrequencyPenalty, override.FrequencyPenalty)
	merged.PresencePenalty = pick(merged.PresencePenalty, override.PresencePenalty)
	merged.ToolChoice = pick(merged.ToolChoice, override.ToolChoice)
	merged.User = pick(merged.User, override.User)
	merged.Store = pick(merged.Store, override.Store)
	if len(override.Stop) > 0 {
		merged.Stop = override.Stop
	}

	switch {
	case override.Instructions == "":
	case merged.Instructions == "":
		merged.Instructions = override.Instructions
	default:
		merged.Instructions += "\n" + override.Instructions
	}

	if len(override.Tools) > 0 {
		merged.Tools = mergeTools(merged.Tools, override.Tools)
	}

	if len(override.Metadata) > 0 {
		if merged.Metadata == nil {
			merged.Metadata = make(map[string]string, len(override.Metadata))
		}
		maps.Copy(merged.Metadata, override.Metadata)
	}
	if len(override.Extra) > 0 {
		if merged.Extra == nil {
			merged.Extra = make(map[string]any, len(override.Extra))
		}
		maps.Copy(merged.Extra, override.Extra)
	}

	return &merged
}

func pick[T comparable](base, override T) T {
	var zero T
	if override != zero {
		return override
	}
	return base
}

// mergeTools keeps base order, replaces same-named tools in place and
// appends new ones from override.
func mergeTools(base, override []Tool) []Tool {
	byName := make(map[string]Tool, len(override))
	for _, t := range override {
		byName[t.Name()] = t
	}
	out := make([]Tool, 0, len(base)+len(override))
	seen := make(map[string]bool, len(base)+len(override))
	for _, t := range base {
		if o, ok := byName[t.Name()]; ok {
			t = o
		}
		out = append(out, t)
		seen[t.Name()] = true
	}
	for _, t := range override {
		if !seen[t.Name()] {
			out = append(out, t)
			seen[t.Name()] = true
		}
	}
	return out
}

// Float64 returns a pointer to v, for the optional ChatOptions fields.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }
