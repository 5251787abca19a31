// Copyright (c) Microsoft. All rights reserved.

package workflow

import (
	"context"
	"fmt"
	"strings"

	af "github.com/agentcrew/copilot-agents/agentframework"
	"github.com/agentcrew/copilot-agents/groupchat"
)

// Files written by [Analytics].
const (
	RequirementsFile = "PROJECT_REQUIREMENTS.md"
	ReportFile       = "REPORT.md"
)

// SalesAnalyticsBrief is the demo analytics project.
const SalesAnalyticsBrief = `# Sales Performance Analytics Project

Analyze sales performance data to identify trends, opportunities, and insights.

## Data Sources:
- Sales transactions database (SQL Server)
- Customer demographics (CRM system)
- Product catalog and pricing
- Marketing campaign data
- Geographic and seasonal data

## Analysis Requirements:
- Sales trend analysis by product, region, and time
- Customer segmentation and lifetime value
- Predictive modeling for sales forecasting
- Marketing campaign effectiveness analysis
- Profitability analysis by product line

## Success Criteria:
- Actionable insights for sales strategy
- Accurate sales forecasting models
- Executive-ready dashboard and reports
- Automated reporting workflows
`

// analyticsAssignments tells each specialist what to deliver. Every member
// sees the whole list and works on its own part.
const analyticsAssignments = `Assignments:

Data Engineer: create SQL queries for data extraction from multiple sources, ETL
transformations for data cleaning, aggregated views, performance-optimized
queries and data quality validation checks.

R Statistician: create R scripts for exploratory analysis with ggplot2, customer
segmentation using clustering, sales forecasting models, significance testing
and customer lifetime value prediction.

BI Developer: design Tableau dashboards and Power BI reports: an executive sales
dashboard with KPIs, regional performance maps, product drill-down views and
mobile-responsive layouts.

Excel Analyst: build Excel models for sales forecasting with scenarios,
profitability by product line, a customer lifetime value calculator and budget
vs actual variance analysis.

SAS Analyst: write SAS programs for regression on sales drivers, seasonal time
series forecasting, market basket analysis and compliance reporting.

Work only on your own assignment and put every script in a fenced code block.`

// Analytics runs the analytics team in parallel on one brief and merges
// the replies into a report.
type Analytics struct {
	client af.ChatClient
	s      settings
}

// NewAnalytics returns the analytics workflow.
func NewAnalytics(client af.ChatClient, opts ...Option) *Analytics {
	return &Analytics{client: client, s: newSettings(opts)}
}

// Run gives brief to every member, at most parallel at a time (0 means no
// limit), saves their code blocks and writes REPORT.md.
func (a *Analytics) Run(ctx context.Context, brief string, parallel int) (*Result, error) {
	if strings.TrimSpace(brief) == "" {
		return nil, fmt.Errorf("%w: empty analytics brief", af.ErrInitialization)
	}
	team, ok := a.s.catalogue[TeamAnalytics]
	if !ok {
		return nil, fmt.Errorf("%w: catalogue has no %s team", af.ErrInitialization, TeamAnalytics)
	}

	w, release, err := a.s.openWorkspace("analytics")
	if err != nil {
		return nil, err
	}
	defer release()
	if _, err := w.Save(RequirementsFile, brief); err != nil {
		return nil, err
	}

	s := a.s
	s.workspace = w
	members, err := (&Factory{client: a.client, s: s}).Members(team)
	if err != nil {
		return nil, err
	}

	msg := af.NewNamedUserMessage("Business_Analyst", brief+"\n\n"+analyticsAssignments)
	turns, err := groupchat.FanOut(ctx, members, []af.Message{msg}, parallel)
	if err != nil {
		return nil, err
	}

	res := &Result{Workspace: w.Root()}
	for _, t := range turns {
		files, err := w.SaveCodeBlocks(t.Speaker, t.Text())
		if err != nil {
			return nil, err
		}
		p := Phase{Name: "analysis", Agent: t.Speaker, Text: t.Text(), Files: files}
		res.Phases = append(res.Phases, p)
		s.phase(p)
	}
	if _, err := w.Save(ReportFile, report(brief, res.Phases)); err != nil {
		return nil, err
	}
	if res.Files, err = w.List(""); err != nil {
		return nil, err
	}
	return res, nil
}

func report(brief string, phases []Phase) string {
	title := "Analytics Report"
	if first, _, _ := strings.Cut(strings.TrimSpace(brief), "\n"); strings.HasPrefix(first, "# ") {
		title = strings.TrimPrefix(first, "# ") + " Report"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", title)
	for _, p := range phases {
		fmt.Fprintf(&b, "\n## %s\n\n", strings.ReplaceAll(p.Agent, "_", " "))
		if len(p.Files) > 0 {
			fmt.Fprintf(&b, "Files: %s\n\n", strings.Join(p.Files, ", "))
		}
		b.WriteString(strings.TrimSpace(p.Text))
		b.WriteString("\n")
	}
	return b.String()
}
