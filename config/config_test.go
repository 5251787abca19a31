// Copyright (c) Microsoft. All rights reserved.

package config_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcrew/copilot-agents/config"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	for _, k := range []string{config.EnvGitHubToken, config.EnvModel, config.EnvBaseURL, config.EnvLogLevel, config.EnvDebug} {
		t.Setenv(k, "")
	}
}

func TestLoad_YAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "agents.yaml", `
llm:
  model_type: github_copilot
  model: github_copilot/gpt-4o
  editor_version: vscode/1.90.0
  extra_headers:
    X-Trace: abc
  timeout: 45s
  generate_cfg:
    max_tokens: 1500
    temperature: 0.2
    stream: true
    params:
      lang: en
      response_format:
        type: json_object
log:
  level: warn
  format: json
workspace:
  keep: true
  command_timeout: 5s
`)

	cfg, err := config.Load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "github_copilot", cfg.LLM.ModelType)
	assert.Equal(t, "vscode/1.90.0", cfg.LLM.EditorVersion)
	assert.Equal(t, "abc", cfg.LLM.ExtraHeaders["X-Trace"])
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	require.NotNil(t, cfg.LLM.GenerateCfg.MaxTokens)
	assert.Equal(t, 1500, *cfg.LLM.GenerateCfg.MaxTokens)
	assert.True(t, cfg.LLM.GenerateCfg.Stream)
	assert.Equal(t, "en", cfg.LLM.GenerateCfg.Params["lang"])
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Workspace.Keep)
	assert.Equal(t, 5*time.Second, cfg.Workspace.CommandTimeout)
	assert.Equal(t, 10, cfg.Workspace.MaxTurns, "defaults survive partial files")
}

func TestLoad_TOML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "agents.toml", `
[llm]
model = "gpt-4o-mini"
timeout = "1m"
verbose = true

[llm.generate_cfg]
delta_stream = true
stop = ["END"]

[llm.generate_cfg.params]
seed_hint = 7
`)

	cfg, err := config.Load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, time.Minute, cfg.LLM.Timeout)
	assert.True(t, cfg.LLM.Verbose)
	assert.True(t, cfg.LLM.GenerateCfg.DeltaStream)
	assert.Equal(t, []string{"END"}, cfg.LLM.GenerateCfg.Stop)
}

func TestLoad_UnknownYAMLKey(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "bad.yaml", "llm:\n  modle: gpt-4o\n")
	_, err := config.Load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	path := writeFile(t, "agents.json", "{}")
	_, err := config.Load(path)
	require.ErrorIs(t, err, config.ErrUnsupportedFormat)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "agents.yaml", "llm:\n  model: gpt-4o\n")
	t.Setenv(config.EnvModel, "github_copilot/gpt-4o-mini")
	t.Setenv(config.EnvBaseURL, "http://localhost:9999")
	t.Setenv(config.EnvDebug, "1")

	cfg, err := config.Load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "github_copilot/gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "http://localhost:9999", cfg.LLM.BaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.LLM.Verbose)
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.Unsetenv(config.EnvGitHubToken))
	env := writeFile(t, "test.env", "GITHUB_TOKEN=gho_from_dotenv\n")
	t.Cleanup(func() { os.Unsetenv(config.EnvGitHubToken) })

	cfg, err := config.Load("", env)
	require.NoError(t, err)
	assert.Equal(t, "gho_from_dotenv", cfg.LLM.GitHubToken)
}

func TestLLM_ChatOptions(t *testing.T) {
	maxTokens := 200
	temp := 0.5
	l := config.LLM{
		Model: "github_copilot/gpt-4o",
		GenerateCfg: config.GenerateConfig{
			MaxTokens:   &maxTokens,
			Temperature: &temp,
			Stream:      true,
			Params:      map[string]any{"lang": "en"},
		},
	}

	opts := l.ChatOptions()
	assert.Equal(t, "github_copilot/gpt-4o", opts.ModelID)
	assert.Equal(t, 200, *opts.MaxTokens)
	assert.Equal(t, 0.5, *opts.Temperature)
	assert.True(t, opts.ExtraBool("stream"))
	assert.False(t, opts.ExtraBool("delta_stream"))
	assert.Equal(t, "en", opts.Extra["lang"])

	opts.Extra["lang"] = "de"
	assert.Equal(t, "en", l.GenerateCfg.Params["lang"], "params must be copied")

	assert.Nil(t, config.LLM{}.ChatOptions().Extra)
}

func TestLog_NewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := config.Log{Level: "warn", Format: "json"}.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	assert.Equal(t, slog.LevelInfo, config.Log{Level: "loud"}.SlogLevel())
	assert.Equal(t, slog.LevelDebug, config.Log{Level: "DEBUG"}.SlogLevel())
}
