// Copyright (c) Microsoft. All rights reserved.

// Package workspace gives agents a private project directory. Every path
// is resolved relative to the workspace root and may not escape it.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/agentcrew/copilot-agents/config"
)

// ErrOutsideWorkspace is returned for paths that resolve outside the root.
var ErrOutsideWorkspace = errors.New("workspace: path outside workspace")

// Workspace is a project directory on disk. It is safe for concurrent use
// as long as callers do not write the same file concurrently.
type Workspace struct {
	project        string
	root           string
	keep           bool
	commandTimeout time.Duration
	created        time.Time
	logger         *slog.Logger
}

// Option configures a [Workspace].
type Option func(*Workspace)

// WithKeep leaves the directory on disk when Cleanup is called.
func WithKeep(keep bool) Option {
	return func(w *Workspace) { w.keep = keep }
}

// WithCommandTimeout bounds run_command. Defaults to 30s.
func WithCommandTimeout(d time.Duration) Option {
	return func(w *Workspace) { w.commandTimeout = d }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(w *Workspace) { w.logger = l }
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_\-]+`)

// New creates a fresh directory named after project under parent (the OS
// temp dir when parent is empty).
func New(parent, project string, opts ...Option) (*Workspace, error) {
	prefix := strings.Trim(unsafeName.ReplaceAllString(project, "_"), "_")
	if prefix == "" {
		prefix = "project"
	}
	if parent != "" {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return nil, fmt.Errorf("workspace: %w", err)
		}
	}
	dir, err := os.MkdirTemp(parent, prefix+"_")
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	w := newWorkspace(project, dir, opts)
	w.logger.Debug("workspace created", "project", project, "root", dir)
	return w, nil
}

// FromConfig creates a workspace using the configured parent directory,
// retention and command timeout.
func FromConfig(cfg config.Workspace, project string, opts ...Option) (*Workspace, error) {
	base := []Option{WithKeep(cfg.Keep)}
	if cfg.CommandTimeout > 0 {
		base = append(base, WithCommandTimeout(cfg.CommandTimeout))
	}
	return New(cfg.Root, project, append(base, opts...)...)
}

// Open uses an existing directory. Cleanup never removes it.
func Open(dir string, opts ...Option) (*Workspace, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace: %s is not a directory", abs)
	}
	w := newWorkspace(filepath.Base(abs), abs, opts)
	w.keep = true
	return w, nil
}

func newWorkspace(project, dir string, opts []Option) *Workspace {
	w := &Workspace{
		project:        project,
		root:           dir,
		commandTimeout: 30 * time.Second,
		created:        time.Now(),
	}
	for _, o := range opts {
		o(w)
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

// Project returns the project name the workspace was created for.
func (w *Workspace) Project() string { return w.project }

// Root returns the absolute workspace directory.
func (w *Workspace) Root() string { return w.root }

// Created returns when the workspace was created or opened.
func (w *Workspace) Created() time.Time { return w.created }

// Path resolves rel inside the workspace.
func (w *Workspace) Path(rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimSpace(rel)))
	if clean == "." {
		return w.root, nil
	}
	if !filepath.IsLocal(clean) {
		return "", fmt.Errorf("%w: %s", ErrOutsideWorkspace, rel)
	}
	return filepath.Join(w.root, clean), nil
}

// Save writes content to rel, creating parent directories, and returns the
// absolute path.
func (w *Workspace) Save(rel, content string) (string, error) {
	p, err := w.Path(rel)
	if err != nil {
		return "", err
	}
	if p == w.root {
		return "", fmt.Errorf("workspace: %q is not a file path", rel)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("workspace: %w", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("workspace: %w", err)
	}
	w.logger.Debug("file saved", "project", w.project, "path", rel, "bytes", len(content))
	return p, nil
}

// Read returns the content of rel.
func (w *Workspace) Read(rel string) (string, error) {
	p, err := w.Path(rel)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("workspace: %w", err)
	}
	return string(b), nil
}

// List returns the files under dir (the root when empty) as sorted,
// slash-separated paths relative to the root.
func (w *Workspace) List(dir string) ([]string, error) {
	start, err := w.Path(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	err = filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.root, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	slices.Sort(files)
	return files, nil
}

// Cleanup removes the directory unless the workspace is kept.
func (w *Workspace) Cleanup() error {
	if w.keep {
		w.logger.Debug("workspace kept", "root", w.root)
		return nil
	}
	if err := os.RemoveAll(w.root); err != nil {
		return fmt.Errorf("workspace: %w", err)
	}
	return nil
}
