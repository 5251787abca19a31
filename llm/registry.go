// Copyright (c) Microsoft. All rights reserved.

// Package llm maps provider names to constructors so callers can build a
// [agentframework.ChatClient] from configuration alone. Providers register
// themselves from init; import them for side effects:
//
//	import _ "github.com/agentcrew/copilot-agents/copilot"
package llm

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	af "github.com/agentcrew/copilot-agents/agentframework"
	"github.com/agentcrew/copilot-agents/config"
)

// Factory builds a client from provider configuration.
type Factory func(cfg config.LLM) (af.ChatClient, error)

// CopilotType is the name the GitHub Copilot provider registers under.
const CopilotType = "github_copilot"

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a provider available under name. It panics if name is
// empty or already registered.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if name == "" || f == nil {
		panic("llm: Register with empty name or nil factory")
	}
	if _, dup := factories[name]; dup {
		panic("llm: Register called twice for provider " + name)
	}
	factories[name] = f
}

// Providers returns the registered provider names, sorted.
func Providers() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// New builds a client for cfg. An empty ModelType is resolved with [DetectType].
func New(cfg config.LLM) (af.ChatClient, error) {
	typ := cfg.ModelType
	if typ == "" {
		typ = DetectType(cfg)
	}
	if typ == "" {
		return nil, fmt.Errorf("%w: cannot infer model_type for model %q", af.ErrInitialization, cfg.Model)
	}

	mu.RLock()
	f, ok := factories[typ]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown model_type %q (registered: %s)",
			af.ErrInitialization, typ, strings.Join(Providers(), ", "))
	}
	return f(cfg)
}

// DetectType infers the provider from the model name and credentials: a
// github_copilot/ model prefix, or a GitHub token combined with a gpt-4o
// family model, selects the Copilot provider.
func DetectType(cfg config.LLM) string {
	model := strings.ToLower(cfg.Model)
	switch {
	case strings.HasPrefix(model, CopilotType+"/"):
		return CopilotType
	case cfg.GitHubToken != "" && (model == "" || strings.HasPrefix(model, "gpt-4o")):
		return CopilotType
	}
	return ""
}
