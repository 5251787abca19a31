// Copyright (c) Microsoft. All rights reserved.

package copilot

import (
	af "github.com/agentcrew/copilot-agents/agentframework"
	"github.com/agentcrew/copilot-agents/config"
	"github.com/agentcrew/copilot-agents/llm"
)

func init() {
	llm.Register(llm.CopilotType, func(cfg config.LLM) (af.ChatClient, error) {
		return NewFromConfig(cfg)
	})
}
