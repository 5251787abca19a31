// Copyright (c) Microsoft. All rights reserved.

package workflow

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	af "github.com/agentcrew/copilot-agents/agentframework"
	"github.com/agentcrew/copilot-agents/mcptools"
	"github.com/agentcrew/copilot-agents/workspace"
)

// Software development phases.
const (
	PhaseSpecAnalysis   = "spec_analysis"
	PhaseImplementation = "implementation"
	PhaseBuild          = "build"
	PhaseTestWriting    = "test_writing"
	PhaseTestRun        = "test_run"
	PhaseDebug          = "debug"
)

// DefaultMaxIterations bounds the debug loop of [DevPipeline].
const DefaultMaxIterations = 3

// SpecFile is where the pipeline stores the specification.
const SpecFile = "SPECIFICATION.md"

var resultMarker = regexp.MustCompile(`(?i)RESULT:\s*(PASS|FAIL)`)

// Project is the input of a [DevPipeline] run.
type Project struct {
	Name          string
	Specification string
	// SourcePath and TestPath are where the first code block of the
	// implementation and test replies are saved.
	SourcePath string
	TestPath   string
	// Language is the code fence language to look for, e.g. "python".
	// Empty takes the first block of any language.
	Language string
	// BuildCommand and TestCommand run in the workspace when set. Without a
	// test command the test runner's "RESULT: PASS" verdict decides.
	BuildCommand string
	TestCommand  string
	// MaxIterations bounds test runs. Defaults to DefaultMaxIterations.
	MaxIterations int
	// Retrieval indexes the specification and lets the spec reader search
	// it instead of reading it inline.
	Retrieval bool
	// SpecQuery seeds the retrieval search.
	SpecQuery string
}

// CalculatorProject is the demo project: a Python calculator module
// tested with pytest.
func CalculatorProject() Project {
	return Project{
		Name: "calculator_project",
		Specification: `# Calculator Module Specification

Create a Python calculator module with the following requirements:

## Core Functions:
1. add(a, b) - Add two numbers
2. subtract(a, b) - Subtract b from a
3. multiply(a, b) - Multiply two numbers
4. divide(a, b) - Divide a by b (handle division by zero)
5. power(a, b) - Raise a to the power of b
6. sqrt(a) - Calculate square root of a (handle negative numbers)

## Requirements:
- All functions should accept int or float inputs
- Return appropriate numeric types
- Handle edge cases and invalid inputs
- Raise appropriate exceptions for errors
- Include comprehensive docstrings

## File Structure:
- src/calculator.py - Main calculator module
- tests/test_calculator.py - Comprehensive test suite

## Success Criteria:
- All tests must pass
- Code must follow PEP 8 standards
- 100% test coverage for core functions
`,
		SourcePath:   "src/calculator.py",
		TestPath:     "tests/test_calculator.py",
		Language:     "python",
		BuildCommand: "python -m py_compile src/calculator.py",
		TestCommand:  "python -m pytest -q",
		SpecQuery:    "calculator functions, error handling and edge cases",
	}
}

// PipelineResult is the outcome of a [DevPipeline] run.
type PipelineResult struct {
	Result
	Passed     bool
	Iterations int
}

// DevPipeline drives the software development team from a specification
// to tested code: analysis, implementation, build check, tests and test
// runs, then debug and fix rounds until the tests pass or the iteration
// limit is reached.
type DevPipeline struct {
	client af.ChatClient
	s      settings
}

// NewDevPipeline returns a pipeline whose agents use client.
func NewDevPipeline(client af.ChatClient, opts ...Option) *DevPipeline {
	return &DevPipeline{client: client, s: newSettings(opts)}
}

// Run executes the pipeline. A project whose tests still fail after the
// last iteration is not an error; check PipelineResult.Passed.
func (p *DevPipeline) Run(ctx context.Context, proj Project) (*PipelineResult, error) {
	if strings.TrimSpace(proj.Specification) == "" || proj.SourcePath == "" || proj.TestPath == "" {
		return nil, fmt.Errorf("%w: project needs a specification, source path and test path", af.ErrInitialization)
	}
	if proj.Name == "" {
		proj.Name = "project"
	}
	if proj.MaxIterations <= 0 {
		proj.MaxIterations = DefaultMaxIterations
	}

	w, release, err := p.s.openWorkspace(proj.Name)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := w.Save(SpecFile, proj.Specification); err != nil {
		return nil, err
	}

	s := p.s
	s.workspace = w
	if proj.Retrieval {
		if s.retriever == nil {
			s.retriever = workspace.NewRetriever()
		}
		n, err := s.retriever.IndexFile(w, SpecFile)
		if err != nil {
			return nil, err
		}
		s.logger.InfoContext(ctx, "specification indexed", "passages", n)
	}
	if s.projectMCP && (proj.BuildCommand != "" || proj.TestCommand != "") {
		sess, err := mcptools.ServeInMemory(ctx, mcptools.NewProjectServer(w, mcptools.ProjectCommands{
			Build:   proj.BuildCommand,
			Test:    proj.TestCommand,
			Allowed: s.allowed,
		}), mcptools.WithLogger(s.logger))
		if err != nil {
			return nil, err
		}
		defer sess.Close()
		tools, err := sess.Tools(ctx)
		if err != nil {
			return nil, err
		}
		s.mcpTools = append(slices.Clip(s.mcpTools), tools...)
		s.logger.InfoContext(ctx, "project mcp server started", "tools", len(tools))
	}

	team, ok := s.catalogue[TeamSoftwareDev]
	if !ok {
		return nil, fmt.Errorf("%w: catalogue has no %s team", af.ErrInitialization, TeamSoftwareDev)
	}
	chat, err := (&Factory{client: p.client, s: s}).Team(team)
	if err != nil {
		return nil, err
	}

	run := &devRun{directed: newDirected(chat, "Human_Developer", s), w: w, proj: proj}
	res := &PipelineResult{Result: Result{Workspace: w.Root()}}
	res.Passed, res.Iterations, err = run.execute(ctx)
	res.Phases = run.phases
	if err != nil {
		return res, err
	}
	if res.Files, err = w.List(""); err != nil {
		return res, err
	}
	return res, nil
}

type devRun struct {
	*directed
	w    *workspace.Workspace
	proj Project
}

func (r *devRun) execute(ctx context.Context) (passed bool, iterations int, err error) {
	if err := r.analyze(ctx); err != nil {
		return false, 0, err
	}
	if err := r.implement(ctx, 0, fmt.Sprintf(`Code Writer Agent: Based on the specification analysis, please implement the module.

Create the %s file with all required functions, proper error handling, and documentation.`, r.proj.SourcePath)); err != nil {
		return false, 0, err
	}
	if err := r.build(ctx); err != nil {
		return false, 0, err
	}
	if err := r.writeTests(ctx); err != nil {
		return false, 0, err
	}

	for iterations = 1; ; iterations++ {
		passed, err = r.runTests(ctx, iterations)
		if err != nil || passed || iterations == r.proj.MaxIterations {
			return passed, iterations, err
		}
		if err := r.debug(ctx, iterations); err != nil {
			return false, iterations, err
		}
	}
}

func (r *devRun) analyze(ctx context.Context) error {
	var prompt string
	if r.proj.Retrieval {
		prompt = fmt.Sprintf(`Spec Reader Agent: Please analyze the indexed specification %s and break it down into implementable components.

Focus on: %s

Provide a clear breakdown of what needs to be implemented.`, SpecFile, r.proj.SpecQuery)
	} else {
		prompt = fmt.Sprintf(`Spec Reader Agent: Please analyze this specification and break it down into implementable components:

%s

Provide a clear breakdown of what needs to be implemented.`, r.proj.Specification)
	}
	turn, err := r.ask(ctx, PhaseSpecAnalysis, "Spec_Reader_Agent", prompt)
	if err != nil {
		return err
	}
	r.record(Phase{Name: PhaseSpecAnalysis, Agent: turn.Speaker, Text: turn.Text()})
	return nil
}

// implement asks the code writer and saves its first code block as the
// source file.
func (r *devRun) implement(ctx context.Context, iteration int, prompt string) error {
	turn, err := r.ask(ctx, PhaseImplementation, "Code_Writer_Agent", prompt)
	if err != nil {
		return err
	}
	files, err := r.saveFirstBlock(turn.Text(), r.proj.SourcePath)
	if err != nil {
		return err
	}
	r.record(Phase{Name: PhaseImplementation, Agent: turn.Speaker, Iteration: iteration, Text: turn.Text(), Files: files})
	return nil
}

func (r *devRun) build(ctx context.Context) error {
	prompt := fmt.Sprintf(`Build Agent: Please check %s for syntax errors, imports, and build issues.

Verify that the code can be imported and executed without errors.`, r.proj.SourcePath)
	res, err := r.command(ctx, r.proj.BuildCommand)
	if err != nil {
		return err
	}
	if res != nil {
		prompt += "\n\n" + formatCommand(res)
	}
	turn, err := r.ask(ctx, PhaseBuild, "Build_Agent", prompt)
	if err != nil {
		return err
	}
	r.record(Phase{Name: PhaseBuild, Agent: turn.Speaker, Text: turn.Text(), Command: res})
	return nil
}

func (r *devRun) writeTests(ctx context.Context) error {
	turn, err := r.ask(ctx, PhaseTestWriting, "Test_Writer_Agent", fmt.Sprintf(`Test Writer Agent: Please create comprehensive tests for %s.

Create %s with tests for all functions, edge cases, and error conditions.`, r.proj.SourcePath, r.proj.TestPath))
	if err != nil {
		return err
	}
	files, err := r.saveFirstBlock(turn.Text(), r.proj.TestPath)
	if err != nil {
		return err
	}
	r.record(Phase{Name: PhaseTestWriting, Agent: turn.Speaker, Text: turn.Text(), Files: files})
	return nil
}

func (r *devRun) runTests(ctx context.Context, iteration int) (bool, error) {
	prompt := `Test Runner Agent: Please run the tests and report the results.

Execute the tests and provide detailed feedback on any failures. End with "RESULT: PASS" or "RESULT: FAIL".`
	res, err := r.command(ctx, r.proj.TestCommand)
	if err != nil {
		return false, err
	}
	if res != nil {
		prompt += "\n\n" + formatCommand(res)
	}
	turn, err := r.ask(ctx, PhaseTestRun, "Test_Runner_Agent", prompt)
	if err != nil {
		return false, err
	}
	r.record(Phase{Name: PhaseTestRun, Agent: turn.Speaker, Iteration: iteration, Text: turn.Text(), Command: res})
	if res != nil {
		return res.ExitCode == 0, nil
	}
	return Verdict(turn.Text()), nil
}

func (r *devRun) debug(ctx context.Context, iteration int) error {
	turn, err := r.ask(ctx, PhaseDebug, "Debug_Agent", `Debug Agent: The tests failed. Please analyze the failures, find the root cause and propose minimal fixes.`)
	if err != nil {
		return err
	}
	r.record(Phase{Name: PhaseDebug, Agent: turn.Speaker, Iteration: iteration, Text: turn.Text()})
	return r.implement(ctx, iteration, fmt.Sprintf(
		"Code Writer Agent: Apply the Debug Agent's fixes and return the complete corrected %s.", r.proj.SourcePath))
}

// command runs cmdline when set; a nil result means there was nothing to run.
func (r *devRun) command(ctx context.Context, cmdline string) (*workspace.CommandResult, error) {
	if cmdline == "" {
		return nil, nil
	}
	return r.w.RunCommand(ctx, cmdline, r.s.allowed...)
}

func (r *devRun) saveFirstBlock(text, rel string) ([]string, error) {
	b, ok := workspace.FirstCodeBlock(text, r.proj.Language)
	if !ok {
		r.s.logger.Warn("reply has no code block", "path", rel, "language", r.proj.Language)
		return nil, nil
	}
	if _, err := r.w.Save(rel, b.Code+"\n"); err != nil {
		return nil, err
	}
	return []string{rel}, nil
}

func formatCommand(res *workspace.CommandResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Command: %s\nExit code: %d\n", res.Command, res.ExitCode)
	if res.Stdout != "" {
		fmt.Fprintf(&b, "Stdout:\n```\n%s\n```\n", strings.TrimRight(res.Stdout, "\n"))
	}
	if res.Stderr != "" {
		fmt.Fprintf(&b, "Stderr:\n```\n%s\n```\n", strings.TrimRight(res.Stderr, "\n"))
	}
	return b.String()
}

// Verdict reports whether the last "RESULT: PASS|FAIL" marker in text is
// PASS. Text without a marker fails.
func Verdict(text string) bool {
	m := resultMarker.FindAllStringSubmatch(text, -1)
	return len(m) > 0 && strings.EqualFold(m[len(m)-1][1], "PASS")
}
