// Copyright (c) Microsoft. All rights reserved.

package workflow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	af "github.com/agentcrew/copilot-agents/agentframework"
	"github.com/agentcrew/copilot-agents/workflow"
)

func webDevScript() *script {
	return newScript(map[string][]string{
		role("UI_UX_Designer"):     {"Layout:\n```html\n<main></main>\n```\n```css\nmain { display: grid; }\n```"},
		role("Frontend_Developer"): {"```javascript\nexport const App = () => null;\n```"},
		role("Backend_Developer"):  {"```typescript\nconst app = express();\n```"},
		role("Database_Architect"): {"```sql\nCREATE TABLE users (id serial primary key);\n```"},
		role("DevOps_Engineer"):    {"```yaml\nservices:\n  web:\n    build: .\n```"},
		role("QA_Tester"):          {"Tests cover checkout and login."},
	})
}

func TestWebDev_Run(t *testing.T) {
	w := mustWorkspace(t)
	s := webDevScript()

	var hooked int
	res, err := workflow.NewWebDev(s,
		workflow.WithWorkspace(w),
		workflow.WithPhaseHook(func(workflow.Phase) { hooked++ }),
	).Run(context.Background(), workflow.ECommerceBrief)
	require.NoError(t, err)

	assert.Equal(t, []string{"design", "frontend", "backend", "database", "devops", "testing"}, phaseNames(res.Phases))
	assert.Equal(t, 6, hooked)
	assert.Equal(t, []string{"ui_ux_designer_0.html", "ui_ux_designer_0.css"}, res.Phases[0].Files)
	assert.Empty(t, res.Phases[2].Files)
	assert.Equal(t, []string{
		workflow.ProjectSpecFile,
		"database_architect_0.sql",
		"devops_engineer_0.yml",
		"frontend_developer_0.js",
		"ui_ux_designer_0.css",
		"ui_ux_designer_0.html",
	}, res.Files)

	design := s.requestsTo(role("UI_UX_Designer"))[0].Messages
	assert.Contains(t, design[len(design)-1].Text(), "Shopping cart functionality")

	// later members see earlier replies as named user messages
	backend := s.requestsTo(role("Backend_Developer"))[0].Messages
	var transcript []string
	for _, m := range backend {
		if m.Role == af.RoleUser {
			transcript = append(transcript, m.AuthorName)
		}
	}
	assert.Equal(t, []string{
		"Product_Manager", "UI_UX_Designer", "Product_Manager", "Frontend_Developer", "Product_Manager",
	}, transcript)
	assert.Contains(t, backend[len(backend)-4].Text(), "UI_UX_Designer: Layout:")
}

func TestWebDev_StepFailure(t *testing.T) {
	s := webDevScript()
	delete(s.replies, role("Database_Architect"))

	res, err := workflow.NewWebDev(s, workflow.WithWorkspace(mustWorkspace(t))).Run(context.Background(), workflow.ECommerceBrief)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database phase")
	require.NotNil(t, res)
	assert.Len(t, res.Phases, 3)
}

func TestWebDev_EmptyBrief(t *testing.T) {
	_, err := workflow.NewWebDev(webDevScript()).Run(context.Background(), "")
	assert.ErrorIs(t, err, af.ErrInitialization)
}
