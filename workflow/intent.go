// Copyright (c) Microsoft. All rights reserved.

package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	af "github.com/agentcrew/copilot-agents/agentframework"
)

// Domain is the area a request belongs to.
type Domain string

const (
	DomainWebDevelopment      Domain = "web_development"
	DomainSoftwareEngineering Domain = "software_engineering"
	DomainDataAnalytics       Domain = "data_analytics"
	DomainContentCreation     Domain = "content_creation"
	DomainDevOps              Domain = "devops"
	DomainGeneral             Domain = "general"
)

// Valid reports whether d is one of the known domains.
func (d Domain) Valid() bool {
	switch d {
	case DomainWebDevelopment, DomainSoftwareEngineering, DomainDataAnalytics,
		DomainContentCreation, DomainDevOps, DomainGeneral:
		return true
	}
	return false
}

// Title returns the domain in words, e.g. "web development".
func (d Domain) Title() string {
	return strings.ReplaceAll(string(d), "_", " ")
}

// Intent is a classified user request.
type Intent struct {
	Domain       Domain   `json:"domain"`
	TaskType     string   `json:"task_type"`
	Requirements []string `json:"requirements"`
	Technologies []string `json:"technologies"`
	Confidence   float64  `json:"confidence"`
}

const classifierInstructions = `You are an intent classification expert. Analyze user requests and classify them into domains.

Available domains:
- web_development: Building websites, web apps, frontends, backends, APIs
- software_engineering: Creating applications, algorithms, code, testing
- data_analytics: Data analysis, dashboards, reports, statistics, BI
- content_creation: Writing articles, documentation, presentations
- devops: Deployment, CI/CD, infrastructure, containers
- general: General questions or unclear requests

Respond with JSON format:
{
    "domain": "domain_name",
    "task_type": "brief description",
    "requirements": ["list", "of", "requirements"],
    "technologies": ["mentioned", "technologies"],
    "confidence": 0.95
}`

// domainPatterns are checked in order; the first domain with a matching
// pattern wins.
var domainPatterns = []struct {
	domain   Domain
	patterns []*regexp.Regexp
}{
	{DomainWebDevelopment, compile(`build.*website`, `create.*web app`, `frontend`, `backend`,
		`react`, `node\.?js`, `api`, `dashboard`, `e-commerce`)},
	{DomainSoftwareEngineering, compile(`create.*app`, `build.*software`, `implement.*algorithm`,
		`write.*code`, `develop.*system`, `calculator`, `game`)},
	{DomainDataAnalytics, compile(`analyze.*data`, `create.*dashboard`, `build.*report`,
		`forecast`, `statistics`, `sql`, `tableau`, `excel`)},
	{DomainContentCreation, compile(`write.*article`, `create.*content`, `documentation`,
		`presentation`, `blog`, `tutorial`)},
	{DomainDevOps, compile(`deploy`, `docker`, `kubernetes`, `ci/cd`, `infrastructure`,
		`terraform`, `ansible`)},
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// Classifier maps a request to an [Intent]. It asks the model first and
// falls back to keyword patterns when the reply cannot be used.
type Classifier struct {
	agent  *af.Agent
	logger *slog.Logger
}

// NewClassifier returns a Classifier backed by client. A nil client
// classifies by pattern only.
func NewClassifier(client af.ChatClient, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Classifier{logger: logger}
	if client != nil {
		c.agent = af.NewAgent(client,
			af.WithName("Intent_Classifier"),
			af.WithInstructions(classifierInstructions),
			af.WithAgentLogger(logger),
		)
	}
	return c
}

// Classify never fails; model errors are logged and the pattern result is
// returned instead.
func (c *Classifier) Classify(ctx context.Context, prompt string) Intent {
	if c.agent != nil {
		resp, err := c.agent.Run(ctx, []af.Message{af.NewUserMessage("Classify this request: " + prompt)})
		if err == nil {
			var intent Intent
			intent, err = parseIntent(resp.Text())
			if err == nil {
				return intent
			}
		}
		c.logger.WarnContext(ctx, "intent classification failed, using patterns", "error", err)
	}
	return ClassifyByPattern(prompt)
}

// parseIntent decodes the JSON object embedded in a model reply.
func parseIntent(reply string) (Intent, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return Intent{}, fmt.Errorf("workflow: no JSON object in classifier reply")
	}
	intent := Intent{Domain: DomainGeneral, TaskType: "unknown", Confidence: 0.5}
	if err := json.Unmarshal([]byte(reply[start:end+1]), &intent); err != nil {
		return Intent{}, fmt.Errorf("workflow: decode classifier reply: %w", err)
	}
	if !intent.Domain.Valid() {
		return Intent{}, fmt.Errorf("workflow: unknown domain %q", intent.Domain)
	}
	return intent, nil
}

// ClassifyByPattern classifies prompt with keyword patterns.
func ClassifyByPattern(prompt string) Intent {
	lower := strings.ToLower(prompt)
	domain := DomainGeneral
outer:
	for _, dp := range domainPatterns {
		for _, re := range dp.patterns {
			if re.MatchString(lower) {
				domain = dp.domain
				break outer
			}
		}
	}
	return Intent{
		Domain:       domain,
		TaskType:     "pattern_matched",
		Requirements: []string{prompt},
		Technologies: []string{},
		Confidence:   0.7,
	}
}
