// Copyright (c) Microsoft. All rights reserved.

package workspace_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	af "github.com/agentcrew/copilot-agents/agentframework"
	"github.com/agentcrew/copilot-agents/config"
	"github.com/agentcrew/copilot-agents/workspace"
)

func newWorkspace(t *testing.T, opts ...workspace.Option) *workspace.Workspace {
	t.Helper()
	w, err := workspace.New(t.TempDir(), "calculator project", opts...)
	require.NoError(t, err)
	return w
}

func TestNew_CreatesPrefixedDir(t *testing.T) {
	parent := t.TempDir()
	w, err := workspace.New(parent, "calculator project")
	require.NoError(t, err)

	assert.Equal(t, parent, filepath.Dir(w.Root()))
	assert.True(t, strings.HasPrefix(filepath.Base(w.Root()), "calculator_project_"), w.Root())
	assert.Equal(t, "calculator project", w.Project())
	assert.DirExists(t, w.Root())
}

func TestSaveReadList(t *testing.T) {
	w := newWorkspace(t)

	p, err := w.Save("src/calculator.py", "def add(a, b):\n    return a + b\n")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(w.Root(), "src", "calculator.py"), p)

	_, err = w.Save("SPECIFICATION.md", "# Calculator")
	require.NoError(t, err)
	_, err = w.Save("tests/test_calculator.py", "def test_add(): pass")
	require.NoError(t, err)

	content, err := w.Read("src/calculator.py")
	require.NoError(t, err)
	assert.Contains(t, content, "return a + b")

	files, err := w.List("")
	require.NoError(t, err)
	assert.Equal(t, []string{"SPECIFICATION.md", "src/calculator.py", "tests/test_calculator.py"}, files)

	files, err = w.List("tests")
	require.NoError(t, err)
	assert.Equal(t, []string{"tests/test_calculator.py"}, files)

	files, err = w.List("missing")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestPathsCannotEscape(t *testing.T) {
	w := newWorkspace(t)
	for _, p := range []string{"../x.txt", "a/../../x.txt", "/etc/passwd"} {
		t.Run(p, func(t *testing.T) {
			_, err := w.Save(p, "x")
			assert.ErrorIs(t, err, workspace.ErrOutsideWorkspace)
			_, err = w.Read(p)
			assert.ErrorIs(t, err, workspace.ErrOutsideWorkspace)
		})
	}
	_, err := w.Save("", "x")
	assert.Error(t, err)
}

func TestCleanup(t *testing.T) {
	w := newWorkspace(t)
	require.NoError(t, w.Cleanup())
	assert.NoDirExists(t, w.Root())

	kept := newWorkspace(t, workspace.WithKeep(true))
	require.NoError(t, kept.Cleanup())
	assert.DirExists(t, kept.Root())

	dir := t.TempDir()
	opened, err := workspace.Open(dir)
	require.NoError(t, err)
	require.NoError(t, opened.Cleanup())
	assert.DirExists(t, dir)
}

func TestFromConfig(t *testing.T) {
	parent := filepath.Join(t.TempDir(), "projects")
	w, err := workspace.FromConfig(config.Workspace{Root: parent, Keep: true}, "web app")
	require.NoError(t, err)
	assert.Equal(t, parent, filepath.Dir(w.Root()))
	require.NoError(t, w.Cleanup())
	assert.DirExists(t, w.Root())
}

func TestOpen_NotADirectory(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o644))
	_, err := workspace.Open(f)
	assert.Error(t, err)
}

func TestExtractCodeBlocks(t *testing.T) {
	text := "Here you go:\n```python\nprint('hi')\n```\nand\n```\nplain\n```\n```html title=index\n<p>x</p>\n```"
	blocks := workspace.ExtractCodeBlocks(text)
	require.Len(t, blocks, 3)
	assert.Equal(t, workspace.CodeBlock{Lang: "python", Code: "print('hi')"}, blocks[0])
	assert.Equal(t, "", blocks[1].Lang)
	assert.Equal(t, "plain", blocks[1].Code)
	assert.Equal(t, "html", blocks[2].Lang)
	assert.Equal(t, "<p>x</p>", blocks[2].Code)
	assert.Equal(t, "py", blocks[0].Ext())
	assert.Equal(t, "", blocks[1].Ext())

	b, ok := workspace.FirstCodeBlock(text, "HTML")
	require.True(t, ok)
	assert.Equal(t, "<p>x</p>", b.Code)
	_, ok = workspace.FirstCodeBlock(text, "sql")
	assert.False(t, ok)
}

func TestSaveCodeBlocks(t *testing.T) {
	w := newWorkspace(t)
	reply := strings.Join([]string{
		"```html\n<html></html>\n```",
		"```css\nbody {}\n```",
		"```javascript\nconsole.log(1)\n```",
		"```html\n<div></div>\n```",
		"```yaml\nkey: v\n```",
		"```text\nignored\n```",
	}, "\n\n")

	saved, err := w.SaveCodeBlocks("Frontend_Developer", reply)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"frontend_developer_0.html",
		"frontend_developer_0.css",
		"frontend_developer_0.js",
		"frontend_developer_1.html",
		"frontend_developer_0.yml",
	}, saved)

	content, err := w.Read("frontend_developer_1.html")
	require.NoError(t, err)
	assert.Equal(t, "<div></div>", content)
}

func invoke(t *testing.T, tool af.Tool, args string) (any, error) {
	t.Helper()
	return tool.Invoke(context.Background(), json.RawMessage(args))
}

func TestFileTools(t *testing.T) {
	w := newWorkspace(t)
	tools := w.Tools()
	require.Len(t, tools, 3)

	_, err := invoke(t, w.SaveFileTool(), `{"path":"src/app.py","content":"x = 1"}`)
	require.NoError(t, err)

	got, err := invoke(t, w.ReadFileTool(), `{"path":"src/app.py"}`)
	require.NoError(t, err)
	assert.Equal(t, "x = 1", got.(map[string]any)["content"])

	got, err = invoke(t, w.ListFilesTool(), `{}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/app.py"}, got.(map[string]any)["files"])

	_, err = invoke(t, w.SaveFileTool(), `{"path":"../evil","content":"x"}`)
	var te *af.ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "save_file", te.ToolName)
	assert.ErrorIs(t, err, workspace.ErrOutsideWorkspace)
	assert.ErrorIs(t, err, af.ErrToolExecution)
}

func TestRunCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a POSIX shell")
	}
	w := newWorkspace(t, workspace.WithCommandTimeout(5*time.Second))
	_, err := w.Save("hello.txt", "hi")
	require.NoError(t, err)

	res, err := w.RunCommand(context.Background(), "cat hello.txt")
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "hi", res.Stdout)

	res, err = w.RunCommand(context.Background(), "echo oops >&2; exit 3")
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "oops\n", res.Stderr)

	_, err = w.RunCommand(context.Background(), "rm -rf .", "python", "pytest")
	assert.ErrorIs(t, err, af.ErrToolExecution)

	_, err = w.RunCommand(context.Background(), "   ")
	assert.ErrorIs(t, err, af.ErrToolExecution)

	res, err = w.RunCommand(context.Background(), "cat hello.txt", "cat")
	require.NoError(t, err)
	assert.Equal(t, "hi", res.Stdout)

	got, err := invoke(t, w.RunCommandTool("cat"), `{"command":"cat hello.txt"}`)
	require.NoError(t, err)
	assert.Equal(t, "hi", got.(*workspace.CommandResult).Stdout)
}

func TestRunCommand_AllowListRejectsShellSyntax(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX commands")
	}
	w := newWorkspace(t)
	outside := filepath.Join(t.TempDir(), "escaped")

	for _, cmd := range []string{
		"echo ok; touch " + outside,
		"echo ok && touch " + outside,
		"echo ok | tee " + outside,
		"echo ok > " + outside,
		"echo $(touch " + outside + ")",
		"echo `touch " + outside + "`",
		"echo ok\ntouch " + outside,
	} {
		_, err := w.RunCommand(context.Background(), cmd, "echo")
		assert.ErrorIs(t, err, af.ErrToolExecution, cmd)
	}
	assert.NoFileExists(t, outside)

	// arguments are passed literally, not expanded by a shell
	res, err := w.RunCommand(context.Background(), "echo *", "echo")
	require.NoError(t, err)
	assert.Equal(t, "*\n", res.Stdout)
}

func TestRunCommand_Timeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a POSIX shell")
	}
	w := newWorkspace(t, workspace.WithCommandTimeout(50*time.Millisecond))
	_, err := w.RunCommand(context.Background(), "sleep 5")
	var te *af.ToolError
	require.ErrorAs(t, err, &te)
	assert.Contains(t, te.Message, "timed out")
}
