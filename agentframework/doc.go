// Copyright (c) Microsoft. All rights reserved.

// Package agentframework provides the provider-neutral building blocks for
// agents: messages and content, chat options, the [ChatClient] interface,
// streaming iterators, tools, middleware and sessions.
//
// A model backend such as the copilot package implements [ChatClient]; an
// [Agent] adds instructions, tools and history on top:
//
//	client, _ := copilot.New(copilot.WithGitHubToken(os.Getenv("GITHUB_TOKEN")))
//
//	agent := agentframework.NewAgent(client,
//	    agentframework.WithName("Planner"),
//	    agentframework.WithInstructions("Break the task into steps."),
//	)
//
//	resp, err := agent.Run(ctx, []agentframework.Message{
//	    agentframework.NewUserMessage("Build a todo app"),
//	})
//
// # Message layout
//
// A finished assistant reply is a list of messages: first one message with
// the text (possibly empty) and reasoning, then one message per tool call.
// Each tool-call message records the call id under [ExtraFunctionID].
// See [AssembleMessages].
//
// # Tools
//
// [NewTypedTool] generates the JSON Schema from a struct:
//
//	type WeatherArgs struct {
//	    Location string `json:"location" jsonschema:"description=City name,required"`
//	}
//
//	tool := agentframework.NewTypedTool("get_weather", "Get current weather",
//	    func(ctx context.Context, args WeatherArgs) (any, error) {
//	        return lookup(args.Location)
//	    },
//	)
//
// # Middleware
//
// Agent, chat and function middleware wrap the corresponding handlers. The
// first middleware in a list is the outermost.
package agentframework
