// Copyright (c) Microsoft. All rights reserved.

// Package copilot implements [agentframework.ChatClient] for the GitHub
// Copilot chat completions API.
//
// A GitHub OAuth token is exchanged for a short-lived Copilot token, which
// is cached and refreshed before it expires. Every request carries the
// Editor-Version and Copilot-Integration-Id headers. Model names may carry
// the "github_copilot/" routing prefix; it is stripped before sending.
//
//	client, err := copilot.New(
//	    copilot.WithGitHubToken(os.Getenv("GITHUB_TOKEN")),
//	    copilot.WithModel("github_copilot/gpt-4o"),
//	)
//
// # Streaming
//
// [StreamAccumulator] rebuilds a reply from chunks. In [AccumulatedMode]
// each emission is the full reconstruction so far; in [DeltaMode] only the
// text of the current chunk is emitted and tool calls appear once the
// response is finished. Text fragments are always concatenated, so a
// provider that resends the full text in every delta produces repeated
// text.
//
// Tool-call fragments are matched to a call in progress by provider id,
// then by index. A fragment with neither continues the last call only if
// that call has no provider id either. Calls without a provider id are
// given a synthetic id of the form "call_<n>".
//
// # Parameters
//
// Entries in ChatOptions.Extra are forwarded into the request body, except
// "stream" and "delta_stream", which select the response path, and a fixed
// set of orchestration keys such as "lang" and "max_retries".
//
// Importing the package registers it with the llm package under
// [llm.CopilotType].
package copilot
