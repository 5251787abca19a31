// Copyright (c) Microsoft. All rights reserved.

// Package config loads the settings shared by the samples and workflows:
// the model provider, logging and project workspaces.
//
// Values are layered: built-in defaults, then a YAML or TOML file, then a
// .env file, then the process environment.
package config

import (
	"maps"
	"time"

	af "github.com/agentcrew/copilot-agents/agentframework"
)

// Config is the root configuration.
type Config struct {
	LLM       LLM       `yaml:"llm" toml:"llm"`
	Log       Log       `yaml:"log" toml:"log"`
	Workspace Workspace `yaml:"workspace" toml:"workspace"`
}

// LLM configures the model provider. Keys follow the provider's config
// dictionary so existing files keep working.
type LLM struct {
	// ModelType names a registered provider. Empty means auto-detect.
	ModelType            string            `yaml:"model_type" toml:"model_type"`
	Model                string            `yaml:"model" toml:"model"`
	BaseURL              string            `yaml:"base_url" toml:"base_url"`
	GitHubToken          string            `yaml:"github_token" toml:"github_token"`
	EditorVersion        string            `yaml:"editor_version" toml:"editor_version"`
	CopilotIntegrationID string            `yaml:"copilot_integration_id" toml:"copilot_integration_id"`
	ExtraHeaders         map[string]string `yaml:"extra_headers" toml:"extra_headers"`
	Timeout              time.Duration     `yaml:"timeout" toml:"timeout"`
	Verbose              bool              `yaml:"verbose" toml:"verbose"`
	GenerateCfg          GenerateConfig    `yaml:"generate_cfg" toml:"generate_cfg"`
}

// GenerateConfig holds generation parameters. Params is forwarded to the
// provider as-is, minus the keys the provider reserves for orchestration.
type GenerateConfig struct {
	MaxTokens   *int           `yaml:"max_tokens" toml:"max_tokens"`
	Temperature *float64       `yaml:"temperature" toml:"temperature"`
	TopP        *float64       `yaml:"top_p" toml:"top_p"`
	Stop        []string       `yaml:"stop" toml:"stop"`
	Seed        *int           `yaml:"seed" toml:"seed"`
	Stream      bool           `yaml:"stream" toml:"stream"`
	DeltaStream bool           `yaml:"delta_stream" toml:"delta_stream"`
	Params      map[string]any `yaml:"params" toml:"params"`
}

// Log configures the slog logger built by [Log.NewLogger].
type Log struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level" toml:"level"`
	// Format is text or json.
	Format string `yaml:"format" toml:"format"`
}

// Workspace configures project workspaces.
type Workspace struct {
	// Root is the parent directory for workspaces; empty means the OS temp dir.
	Root string `yaml:"root" toml:"root"`
	// Keep leaves workspaces on disk after a run.
	Keep           bool          `yaml:"keep" toml:"keep"`
	CommandTimeout time.Duration `yaml:"command_timeout" toml:"command_timeout"`
	// MaxTurns bounds group chat rounds in the workflows.
	MaxTurns int `yaml:"max_turns" toml:"max_turns"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Log: Log{Level: "info", Format: "text"},
		Workspace: Workspace{
			CommandTimeout: 30 * time.Second,
			MaxTurns:       10,
		},
	}
}

// ChatOptions converts the generation settings into instance-level chat
// options. stream and delta_stream travel in Extra.
func (l LLM) ChatOptions() *af.ChatOptions {
	g := l.GenerateCfg
	opts := &af.ChatOptions{
		ModelID:     l.Model,
		MaxTokens:   g.MaxTokens,
		Temperature: g.Temperature,
		TopP:        g.TopP,
		Stop:        g.Stop,
		Seed:        g.Seed,
		Extra:       maps.Clone(g.Params),
	}
	if opts.Extra == nil {
		opts.Extra = make(map[string]any, 2)
	}
	if g.Stream {
		opts.Extra["stream"] = true
	}
	if g.DeltaStream {
		opts.Extra["delta_stream"] = true
	}
	if len(opts.Extra) == 0 {
		opts.Extra = nil
	}
	return opts
}
