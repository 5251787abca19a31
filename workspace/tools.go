// Copyright (c) Microsoft. All rights reserved.

package workspace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"slices"
	"strings"
	"time"

	af "github.com/agentcrew/copilot-agents/agentframework"
)

// maxOutput caps the command output returned to the model.
const maxOutput = 16 << 10

// shellMeta lists the characters rejected when a command allow-list is set.
const shellMeta = ";&|$`<>()\n\r"

// Tools returns save_file, read_file and list_files bound to w.
func (w *Workspace) Tools() []af.Tool {
	return []af.Tool{w.SaveFileTool(), w.ReadFileTool(), w.ListFilesTool()}
}

// SaveFileTool writes a file in the workspace.
func (w *Workspace) SaveFileTool() af.Tool {
	return af.NewTypedTool("save_file",
		"Save a file in the project workspace. Paths are relative to the project root.",
		func(ctx context.Context, args struct {
			Path    string `json:"path"    jsonschema:"description=Relative file path such as src/app.py,required"`
			Content string `json:"content" jsonschema:"description=Full file content,required"`
		}) (any, error) {
			if _, err := w.Save(args.Path, args.Content); err != nil {
				return nil, toolError("save_file", err)
			}
			return map[string]any{"saved": args.Path, "bytes": len(args.Content)}, nil
		},
	)
}

// ReadFileTool reads a file from the workspace.
func (w *Workspace) ReadFileTool() af.Tool {
	return af.NewTypedTool("read_file",
		"Read a file from the project workspace.",
		func(ctx context.Context, args struct {
			Path string `json:"path" jsonschema:"description=Relative file path,required"`
		}) (any, error) {
			content, err := w.Read(args.Path)
			if err != nil {
				return nil, toolError("read_file", err)
			}
			return map[string]any{"path": args.Path, "content": content}, nil
		},
	)
}

// ListFilesTool lists the files in the workspace.
func (w *Workspace) ListFilesTool() af.Tool {
	return af.NewTypedTool("list_files",
		"List files in the project workspace.",
		func(ctx context.Context, args struct {
			Directory string `json:"directory" jsonschema:"description=Subdirectory to list; empty for the whole project"`
		}) (any, error) {
			files, err := w.List(args.Directory)
			if err != nil {
				return nil, toolError("list_files", err)
			}
			if files == nil {
				files = []string{}
			}
			return map[string]any{"files": files}, nil
		},
	)
}

// RunCommandTool runs a command in the workspace root, bounded by the
// command timeout. Only commands whose first word is in allowed may run,
// and then without a shell; with no allowed list every shell command may
// run. A non-zero exit status is
// reported to the model, not returned as an error.
func (w *Workspace) RunCommandTool(allowed ...string) af.Tool {
	return af.NewTypedTool("run_command",
		"Run a shell command in the project workspace and return its exit code and output.",
		func(ctx context.Context, args struct {
			Command string `json:"command" jsonschema:"description=Command line to run,required"`
		}) (any, error) {
			res, err := w.RunCommand(ctx, args.Command, allowed...)
			if err != nil {
				return nil, err
			}
			return res, nil
		},
	)
}

// CommandResult is the outcome of [Workspace.RunCommand].
type CommandResult struct {
	Command  string `json:"command"`
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// RunCommand runs command with the workspace root as working directory.
// With allowed set, the first word must be listed, shell syntax is
// rejected and the command is executed directly.
func (w *Workspace) RunCommand(ctx context.Context, command string, allowed ...string) (*CommandResult, error) {
	command = strings.TrimSpace(command)
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, &af.ToolError{ToolName: "run_command", Message: "empty command", Err: af.ErrToolExecution}
	}
	if len(allowed) > 0 {
		if !slices.Contains(allowed, fields[0]) {
			return nil, &af.ToolError{
				ToolName: "run_command",
				Message:  "command not allowed: " + fields[0] + " (allowed: " + strings.Join(allowed, ", ") + ")",
				Err:      af.ErrToolExecution,
			}
		}
		if i := strings.IndexAny(command, shellMeta); i >= 0 {
			return nil, &af.ToolError{
				ToolName: "run_command",
				Message:  fmt.Sprintf("shell syntax %q is not allowed with a command allow-list", command[i]),
				Err:      af.ErrToolExecution,
			}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, w.commandTimeout)
	defer cancel()

	// An allow-listed command runs without a shell.
	var cmd *exec.Cmd
	switch {
	case len(allowed) > 0:
		cmd = exec.CommandContext(ctx, fields[0], fields[1:]...)
	case runtime.GOOS == "windows":
		cmd = exec.CommandContext(ctx, "cmd", "/C", command)
	default:
		cmd = exec.CommandContext(ctx, "sh", "-c", command)
	}
	cmd.Dir = w.root
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	w.logger.DebugContext(ctx, "run command", "project", w.project, "command", command)
	err := cmd.Run()
	res := &CommandResult{
		Command: command,
		Stdout:  truncate(stdout.String()),
		Stderr:  truncate(stderr.String()),
	}
	if ctx.Err() != nil {
		return nil, &af.ToolError{
			ToolName: "run_command",
			Message:  "command timed out after " + w.commandTimeout.String(),
			Err:      errors.Join(af.ErrToolExecution, ctx.Err()),
		}
	}
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	case err != nil:
		return nil, &af.ToolError{ToolName: "run_command", Message: err.Error(), Err: errors.Join(af.ErrToolExecution, err)}
	}
	return res, nil
}

func toolError(name string, err error) error {
	return &af.ToolError{ToolName: name, Message: err.Error(), Err: errors.Join(af.ErrToolExecution, err)}
}

func truncate(s string) string {
	if len(s) <= maxOutput {
		return s
	}
	return s[:maxOutput] + "\n... (truncated)"
}
