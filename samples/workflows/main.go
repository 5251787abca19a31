// Copyright (c) Microsoft. All rights reserved.

// Command workflows runs the multi-agent team workflows against Copilot.
//
// Usage:
//
//	export GITHUB_TOKEN=gho_...
//	go run . assist                       # natural language assistant
//	go run . softwaredev --rag            # spec to tested calculator module
//	go run . softwaredev --mcp            # build and test tools served over MCP
//	go run . research "AI in education" --stages 3 --state paper.yaml
//	go run . analytics --parallel 2
//	go run . webdev
//	go run . serve --addr :8080 --agent assistant
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	af "github.com/agentcrew/copilot-agents/agentframework"
	"github.com/agentcrew/copilot-agents/config"
	"github.com/agentcrew/copilot-agents/copilot"
	"github.com/agentcrew/copilot-agents/llm"
	"github.com/agentcrew/copilot-agents/mcptools"
	"github.com/agentcrew/copilot-agents/server"
	"github.com/agentcrew/copilot-agents/workflow"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	phaseStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	youStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	failStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

type app struct {
	configPath string
	azureScope string
	debug      bool
	keep       bool

	cfg      *config.Config
	logger   *slog.Logger
	client   af.ChatClient
	renderer *glamour.TermRenderer
}

func main() {
	a := &app{}
	root := &cobra.Command{
		Use:           "workflows",
		Short:         "Multi-agent team workflows on GitHub Copilot",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML or TOML config file")
	root.PersistentFlags().StringVar(&a.azureScope, "azure-scope", "", "authenticate with Entra ID for this scope instead of a GitHub token")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "log at debug level")
	root.PersistentFlags().BoolVar(&a.keep, "keep", false, "keep workspaces after the run")

	root.AddCommand(
		a.assistCmd(),
		a.softwareDevCmd(),
		a.researchCmd(),
		a.analyticsCmd(),
		a.webDevCmd(),
		a.serveCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, failStyle.Render("error:"), err)
		os.Exit(1)
	}
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if a.debug {
		cfg.Log.Level = "debug"
	}
	if a.keep {
		cfg.Workspace.Keep = true
	}
	a.cfg = cfg
	a.logger = cfg.Log.NewLogger(os.Stderr)

	if a.azureScope != "" {
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return fmt.Errorf("azure credential: %w", err)
		}
		a.client, err = copilot.NewFromConfig(cfg.LLM,
			copilot.WithCredential(cred, a.azureScope),
			copilot.WithLogger(a.logger),
		)
		if err != nil {
			return fmt.Errorf("copilot: %w", err)
		}
	} else if a.client, err = llm.New(cfg.LLM); err != nil {
		return fmt.Errorf("llm: %w (set GITHUB_TOKEN)", err)
	}

	a.renderer, err = glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return fmt.Errorf("renderer: %w", err)
	}
	return nil
}

func (a *app) options(extra ...workflow.Option) []workflow.Option {
	opts := []workflow.Option{
		workflow.WithWorkspaceConfig(a.cfg.Workspace),
		workflow.WithChatOptions(a.cfg.LLM.ChatOptions()),
		workflow.WithLogger(a.logger),
		workflow.WithPhaseHook(a.printPhase),
	}
	return append(opts, extra...)
}

func (a *app) render(text string) {
	out, err := a.renderer.Render(text)
	if err != nil {
		out = text
	}
	fmt.Print(out)
}

func (a *app) printPhase(p workflow.Phase) {
	header := p.Name
	if p.Iteration > 0 {
		header = fmt.Sprintf("%s (iteration %d)", p.Name, p.Iteration)
	}
	fmt.Println(phaseStyle.Render(header), dimStyle.Render(p.Agent))
	a.render(p.Text)
	if len(p.Files) > 0 {
		fmt.Println(dimStyle.Render("  saved: " + strings.Join(p.Files, ", ")))
	}
	if p.Command != nil {
		fmt.Println(dimStyle.Render(fmt.Sprintf("  $ %s -> exit %d", p.Command.Command, p.Command.ExitCode)))
	}
	fmt.Println()
}

func printResult(res *workflow.Result, keep bool) {
	if res == nil {
		return
	}
	fmt.Println(titleStyle.Render(fmt.Sprintf("%d phases, %d files", len(res.Phases), len(res.Files))))
	for _, f := range res.Files {
		fmt.Println("  " + f)
	}
	if keep {
		fmt.Println(dimStyle.Render("workspace: " + res.Workspace))
	}
}

func (a *app) assistCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assist",
		Short: "Describe what you want built and let the right team do it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rounds := a.cfg.Workspace.MaxTurns
			if rounds > 3 {
				rounds = 3
			}
			assistant := workflow.NewAssistant(a.client, a.options(workflow.WithRounds(rounds))...)
			defer assistant.Close()

			fmt.Println(titleStyle.Render("Natural language assistant"))
			fmt.Println(dimStyle.Render("Commands: 'status', 'new' for a new project, 'quit' to exit"))
			fmt.Println()

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Print(youStyle.Render("You: "))
				if !scanner.Scan() {
					return scanner.Err()
				}
				input := strings.TrimSpace(scanner.Text())
				var (
					reply string
					err   error
				)
				switch strings.ToLower(input) {
				case "":
					continue
				case "quit", "exit", "bye":
					return nil
				case "status":
					reply, err = assistant.Status()
				case "new", "new project":
					reply, err = assistant.NewProject()
				default:
					reply, err = assistant.Chat(cmd.Context(), input)
				}
				if err != nil {
					if cmd.Context().Err() != nil {
						return cmd.Context().Err()
					}
					reply = "I encountered an issue: " + err.Error()
				}
				a.render(reply)
				fmt.Println()
			}
		},
	}
}

func (a *app) softwareDevCmd() *cobra.Command {
	var (
		rag           bool
		maxIterations int
		specPath      string
		allowed       []string
		projectMCP    bool
		mcpServer     string
	)
	cmd := &cobra.Command{
		Use:   "softwaredev",
		Short: "Take a specification through implementation, tests and debugging",
		RunE: func(cmd *cobra.Command, _ []string) error {
			proj := workflow.CalculatorProject()
			proj.Retrieval = rag
			proj.MaxIterations = maxIterations
			if specPath != "" {
				data, err := os.ReadFile(specPath)
				if err != nil {
					return err
				}
				proj.Specification = string(data)
			}

			fmt.Println(titleStyle.Render("Software development team: " + proj.Name))
			opts := a.options(workflow.WithAllowedCommands(allowed...))
			if projectMCP {
				opts = append(opts, workflow.WithProjectMCP())
			}
			if mcpServer != "" {
				sess, err := mcptools.ConnectCommand(cmd.Context(), mcpServer, mcptools.WithLogger(a.logger))
				if err != nil {
					return err
				}
				defer sess.Close()
				tools, err := sess.Tools(cmd.Context())
				if err != nil {
					return err
				}
				opts = append(opts, workflow.WithMCPTools(tools...))
			}
			res, err := workflow.NewDevPipeline(a.client, opts...).Run(cmd.Context(), proj)
			if res != nil {
				printResult(&res.Result, a.cfg.Workspace.Keep)
				verdict := failStyle.Render("tests failing")
				if res.Passed {
					verdict = phaseStyle.Render("tests passing")
				}
				fmt.Printf("%s after %d iteration(s)\n", verdict, res.Iterations)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&rag, "rag", false, "index the specification and let the spec reader search it")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", workflow.DefaultMaxIterations, "test and debug rounds")
	cmd.Flags().StringVar(&specPath, "spec", "", "specification file (defaults to the calculator demo)")
	cmd.Flags().BoolVar(&projectMCP, "mcp", false, "serve the build and test commands to the build and test agents over MCP")
	cmd.Flags().StringVar(&mcpServer, "mcp-server", "", "command line of a stdio MCP server whose tools the build and test agents may call")
	cmd.Flags().StringSliceVar(&allowed, "allow", []string{"python", "pytest"}, "commands the build and test steps may run")
	return cmd
}

func (a *app) researchCmd() *cobra.Command {
	var (
		journal   string
		words     int
		stages    int
		statePath string
		question  string
	)
	cmd := &cobra.Command{
		Use:   "research [topic]",
		Short: "Write a research paper stage by stage",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := workflow.NewResearch(a.client, a.options()...)
			if err != nil {
				return err
			}
			defer r.Close()
			ctx := cmd.Context()

			if question != "" {
				resp, err := r.Ask(ctx, question)
				if err != nil {
					return err
				}
				a.render(resp.Text())
				return nil
			}

			resumed := false
			if statePath != "" {
				st, err := workflow.LoadResearchState(statePath)
				switch {
				case err == nil:
					r.Restore(st)
					resumed = true
				case !errors.Is(err, fs.ErrNotExist):
					return err
				}
			}
			if !resumed {
				topic := "The Impact of Artificial Intelligence on Educational Outcomes"
				if len(args) > 0 {
					topic = args[0]
				}
				fmt.Println(titleStyle.Render("Research paper: " + topic))
				if _, err := r.Start(ctx, topic, journal, words); err != nil {
					return err
				}
				stages--
			}

			for ; stages > 0; stages-- {
				if _, err := r.Continue(ctx); err != nil {
					if errors.Is(err, workflow.ErrWorkflowCompleted) {
						break
					}
					return err
				}
			}

			if statePath != "" {
				if err := workflow.SaveResearchState(statePath, r.State()); err != nil {
					return err
				}
			}
			sum := r.Summary()
			fmt.Println(titleStyle.Render(fmt.Sprintf("%s: %.0f%% complete, next stage %s",
				sum.Topic, sum.Progress, sum.CurrentStage.Title())))
			fmt.Println(dimStyle.Render(fmt.Sprintf("words %s, sources %d, review rounds %d",
				sum.WordCount, sum.LiteratureSources, sum.ReviewFeedback)))
			return nil
		},
	}
	cmd.Flags().StringVar(&journal, "journal", "Nature Machine Intelligence", "target journal")
	cmd.Flags().IntVar(&words, "words", 8000, "target word count")
	cmd.Flags().IntVar(&stages, "stages", 1, "stages to run in this invocation")
	cmd.Flags().StringVar(&statePath, "state", "", "YAML file to resume from and save progress to")
	cmd.Flags().StringVar(&question, "ask", "", "ask the research team a question instead of running stages")
	return cmd
}

func (a *app) analyticsCmd() *cobra.Command {
	var (
		parallel  int
		briefPath string
	)
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Run the analytics team in parallel on a brief",
		RunE: func(cmd *cobra.Command, _ []string) error {
			brief := workflow.SalesAnalyticsBrief
			if briefPath != "" {
				data, err := os.ReadFile(briefPath)
				if err != nil {
					return err
				}
				brief = string(data)
			}
			fmt.Println(titleStyle.Render("Analytics team"))
			res, err := workflow.NewAnalytics(a.client, a.options()...).Run(cmd.Context(), brief, parallel)
			printResult(res, a.cfg.Workspace.Keep)
			return err
		},
	}
	cmd.Flags().IntVar(&parallel, "parallel", 0, "members working at once (0 for all)")
	cmd.Flags().StringVar(&briefPath, "brief", "", "project brief (defaults to the sales analytics demo)")
	return cmd
}

func (a *app) webDevCmd() *cobra.Command {
	var briefPath string
	cmd := &cobra.Command{
		Use:   "webdev",
		Short: "Design, build and test a web application",
		RunE: func(cmd *cobra.Command, _ []string) error {
			brief := workflow.ECommerceBrief
			if briefPath != "" {
				data, err := os.ReadFile(briefPath)
				if err != nil {
					return err
				}
				brief = string(data)
			}
			fmt.Println(titleStyle.Render("Web development team"))
			res, err := workflow.NewWebDev(a.client, a.options()...).Run(cmd.Context(), brief)
			printResult(res, a.cfg.Workspace.Keep)
			return err
		},
	}
	cmd.Flags().StringVar(&briefPath, "brief", "", "application brief (defaults to the e-commerce demo)")
	return cmd
}

func (a *app) serveCmd() *cobra.Command {
	var (
		addr    string
		agent   string
		apiKey  string
		baseURL string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a workflow over HTTP and A2A",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var runner server.Runner
			switch agent {
			case "assistant":
				assistant := workflow.NewAssistant(a.client, a.options(workflow.WithRounds(3))...)
				defer assistant.Close()
				runner = assistant
			case "research":
				r, err := workflow.NewResearch(a.client, a.options()...)
				if err != nil {
					return err
				}
				defer r.Close()
				if runner, err = r.Coordinator(); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown agent %q (assistant or research)", agent)
			}

			srv := &http.Server{
				Addr: addr,
				Handler: server.New(runner,
					server.WithAPIKey(apiKey),
					server.WithBaseURL(baseURL),
					server.WithLogger(a.logger),
				),
			}
			go func() {
				<-cmd.Context().Done()
				_ = srv.Close()
			}()
			a.logger.Info("serving", "addr", addr, "agent", runner.Name())
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&agent, "agent", "assistant", "assistant or research")
	cmd.Flags().StringVar(&apiKey, "api-key", os.Getenv("AGENT_API_KEY"), "bearer key required from callers")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "public URL advertised in the agent card")
	return cmd
}
