// Copyright (c) Microsoft. All rights reserved.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables read by [Load].
const (
	EnvGitHubToken = "GITHUB_TOKEN"
	EnvModel       = "COPILOT_MODEL"
	EnvBaseURL     = "COPILOT_BASE_URL"
	EnvLogLevel    = "LOG_LEVEL"
	EnvDebug       = "DEBUG"
)

// ErrUnsupportedFormat is returned for config files that are neither YAML nor TOML.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// Load builds a Config from defaults, the file at path (optional), the
// given .env files (".env" when none are given; missing files are ignored)
// and the environment.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := loadDotEnv(envFiles); err != nil {
		return nil, err
	}
	applyEnv(cfg, os.LookupEnv)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 && !allParams(undecoded) {
			return fmt.Errorf("parse %s: unknown keys %v", path, undecoded)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	return nil
}

// allParams reports whether every undecoded key sits under generate_cfg.params,
// whose contents are free-form.
func allParams(keys []toml.Key) bool {
	for _, k := range keys {
		if len(k) < 3 || k[0] != "llm" || k[1] != "generate_cfg" || k[2] != "params" {
			return false
		}
	}
	return true
}

func loadDotEnv(files []string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", f, err)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvGitHubToken); ok && v != "" && cfg.LLM.GitHubToken == "" {
		cfg.LLM.GitHubToken = v
	}
	if v, ok := lookup(EnvModel); ok && v != "" {
		cfg.LLM.Model = v
	}
	if v, ok := lookup(EnvBaseURL); ok && v != "" {
		cfg.LLM.BaseURL = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.Log.Level = v
	}
	if v, ok := lookup(EnvDebug); ok && v != "" {
		if on, err := strconv.ParseBool(v); err != nil || on {
			cfg.Log.Level = "debug"
			cfg.LLM.Verbose = true
		}
	}
}
