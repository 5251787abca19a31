// Copyright (c) Microsoft. All rights reserved.

// Command chat is a multi-turn Copilot chat with tool use.
//
// Usage:
//
//	export GITHUB_TOKEN=gho_...
//	go run .                      # defaults to github_copilot/gpt-4o
//	go run . -config copilot.yaml
//
// Prefix a line with "stream " to stream the reply. A Copilot gateway fronted
// by Entra ID can be used instead of a GitHub token:
//
//	export COPILOT_BASE_URL=https://<gateway>
//	go run . -azure-scope api://<app-id>/.default
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	af "github.com/agentcrew/copilot-agents/agentframework"
	"github.com/agentcrew/copilot-agents/config"
	"github.com/agentcrew/copilot-agents/copilot"
)

var (
	youStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	agentStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

func main() {
	configPath := flag.String("config", "", "YAML or TOML config file")
	azureScope := flag.String("azure-scope", "", "authenticate with Entra ID for this scope instead of a GitHub token")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := cfg.Log.NewLogger(os.Stderr)

	opts := []copilot.Option{copilot.WithLogger(logger)}
	if *azureScope != "" {
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			log.Fatalf("azure credential: %v", err)
		}
		opts = append(opts, copilot.WithCredential(cred, *azureScope))
	}
	client, err := copilot.NewFromConfig(cfg.LLM, opts...)
	if err != nil {
		log.Fatalf("copilot: %v (set GITHUB_TOKEN)", err)
	}

	agent := af.NewAgent(client,
		af.WithName("assistant"),
		af.WithInstructions("You are a helpful assistant. When asked about the weather, use the get_weather tool. When asked about the time, use the get_time tool. Keep responses concise."),
		af.WithTools(weatherTool(), timeTool()),
		af.WithAgentMiddleware(af.LoggingMiddleware(logger)),
		af.WithChatMiddleware(af.ChatLoggingMiddleware(logger)),
	)
	session := agent.NewSession()

	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		log.Fatalf("renderer: %v", err)
	}

	fmt.Println(dimStyle.Render("Chat with the assistant (type 'quit' to exit, 'stream' prefix for streaming)"))
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(youStyle.Render("You: "))
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "quit" || input == "exit" {
			break
		}

		ctx := context.Background()

		if text, ok := strings.CutPrefix(input, "stream "); ok {
			stream, err := agent.RunStream(ctx, []af.Message{af.NewUserMessage(text)}, af.WithSession(session))
			if err != nil {
				log.Printf("Error: %v", err)
				continue
			}

			fmt.Print(agentStyle.Render("Assistant: "))
			for {
				update, ok, err := stream.Next(ctx)
				if err != nil {
					log.Printf("\nStream error: %v", err)
					break
				}
				if !ok {
					break
				}
				fmt.Print(update.Text())
			}
			fmt.Println()
			stream.Close()
		} else {
			resp, err := agent.Run(ctx, []af.Message{af.NewUserMessage(input)}, af.WithSession(session))
			if err != nil {
				log.Printf("Error: %v", err)
				continue
			}

			fmt.Println(agentStyle.Render("Assistant:"))
			out, err := renderer.Render(resp.Text())
			if err != nil {
				out = resp.Text()
			}
			fmt.Print(out)
			if !resp.Usage.IsZero() {
				fmt.Println(dimStyle.Render(fmt.Sprintf("  [tokens: %d in, %d out]",
					resp.Usage.InputTokens, resp.Usage.OutputTokens)))
			}
		}
		fmt.Println()
	}
}

func weatherTool() af.Tool {
	return af.NewTypedTool("get_weather",
		"Get the current weather for a location.",
		func(ctx context.Context, args struct {
			Location string `json:"location" jsonschema:"description=City name or location,required"`
			Unit     string `json:"unit"     jsonschema:"description=Temperature unit,enum=celsius|fahrenheit"`
		}) (any, error) {
			// Simulated weather API
			unit := args.Unit
			if unit == "" {
				unit = "celsius"
			}
			temp := 22
			if unit == "fahrenheit" {
				temp = 72
			}
			return map[string]any{
				"location":    args.Location,
				"temperature": temp,
				"unit":        unit,
				"condition":   "sunny",
			}, nil
		},
	)
}

func timeTool() af.Tool {
	return af.NewTool("get_time",
		"Get the current time.",
		json.RawMessage(`{"type":"object","properties":{}}`),
		func(ctx context.Context, args json.RawMessage) (any, error) {
			now := time.Now()
			return map[string]string{
				"time":     now.Format("3:04 PM"),
				"date":     now.Format("Monday, January 2, 2006"),
				"timezone": now.Location().String(),
			}, nil
		},
	)
}
