// Copyright (c) Microsoft. All rights reserved.

package workflow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcrew/copilot-agents/internal/chattest"
	"github.com/agentcrew/copilot-agents/workflow"
)

func TestClassifyByPattern(t *testing.T) {
	tests := []struct {
		prompt string
		want   workflow.Domain
	}{
		{"Build me a simple calculator web app with React", workflow.DomainWebDevelopment},
		{"Create a SQL database for a blog with users and posts", workflow.DomainDataAnalytics},
		{"Write documentation for a REST API", workflow.DomainWebDevelopment},
		{"Analyze sales data and create a dashboard", workflow.DomainWebDevelopment},
		{"Implement a sorting algorithm", workflow.DomainSoftwareEngineering},
		{"Forecast next quarter revenue", workflow.DomainDataAnalytics},
		{"Write a blog post about Go", workflow.DomainContentCreation},
		{"Set up terraform for our servers", workflow.DomainDevOps},
		{"Tell me a joke", workflow.DomainGeneral},
	}
	for _, tc := range tests {
		t.Run(tc.prompt, func(t *testing.T) {
			got := workflow.ClassifyByPattern(tc.prompt)
			assert.Equal(t, tc.want, got.Domain)
			assert.Equal(t, "pattern_matched", got.TaskType)
			assert.Equal(t, []string{tc.prompt}, got.Requirements)
			assert.Empty(t, got.Technologies)
			assert.InDelta(t, 0.7, got.Confidence, 1e-9)
		})
	}
}

func TestClassifier_ModelReply(t *testing.T) {
	client := chattest.New(`Here is the classification:
{"domain": "data_analytics", "task_type": "sales report", "requirements": ["monthly totals"], "technologies": ["SQL"], "confidence": 0.92}
Hope this helps.`)
	c := workflow.NewClassifier(client, nil)

	got := c.Classify(context.Background(), "Summarise monthly sales")
	assert.Equal(t, workflow.Intent{
		Domain:       workflow.DomainDataAnalytics,
		TaskType:     "sales report",
		Requirements: []string{"monthly totals"},
		Technologies: []string{"SQL"},
		Confidence:   0.92,
	}, got)

	reqs := client.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Messages[0].Text(), "intent classification expert")
	assert.Equal(t, "Classify this request: Summarise monthly sales", reqs[0].Messages[len(reqs[0].Messages)-1].Text())
}

func TestClassifier_MissingFieldsUseDefaults(t *testing.T) {
	c := workflow.NewClassifier(chattest.New(`{"domain": "devops"}`), nil)
	got := c.Classify(context.Background(), "ship it")
	assert.Equal(t, workflow.DomainDevOps, got.Domain)
	assert.Equal(t, "unknown", got.TaskType)
	assert.InDelta(t, 0.5, got.Confidence, 1e-9)
}

func TestClassifier_FallsBackToPatterns(t *testing.T) {
	tests := map[string]*chattest.Client{
		"no json":        chattest.New("web development, I think"),
		"unknown domain": chattest.New(`{"domain": "cooking"}`),
		"broken json":    chattest.New(`{"domain": }`),
		"model error":    chattest.New(),
	}
	for name, client := range tests {
		t.Run(name, func(t *testing.T) {
			got := workflow.NewClassifier(client, nil).Classify(context.Background(), "Build a website for my bakery")
			assert.Equal(t, workflow.DomainWebDevelopment, got.Domain)
			assert.Equal(t, "pattern_matched", got.TaskType)
		})
	}

	got := workflow.NewClassifier(nil, nil).Classify(context.Background(), "docker please")
	assert.Equal(t, workflow.DomainDevOps, got.Domain)
}

func TestDomain(t *testing.T) {
	assert.True(t, workflow.DomainGeneral.Valid())
	assert.False(t, workflow.Domain("cooking").Valid())
	assert.Equal(t, "web development", workflow.DomainWebDevelopment.Title())
}
