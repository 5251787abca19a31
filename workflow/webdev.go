// Copyright (c) Microsoft. All rights reserved.

package workflow

import (
	"context"
	"fmt"
	"strings"

	af "github.com/agentcrew/copilot-agents/agentframework"
)

// ProjectSpecFile is where [WebDev] stores the application brief.
const ProjectSpecFile = "PROJECT_SPEC.md"

// ECommerceBrief is the demo web application.
const ECommerceBrief = `# E-Commerce Web Application Specification

Build a modern e-commerce web application with the following features:

## Frontend Requirements:
- Product catalog with search and filtering
- Shopping cart functionality
- User authentication (login/register)
- Responsive design for mobile and desktop

## Backend Requirements:
- RESTful API for product management
- User authentication with JWT
- Order processing and payment integration
- Admin dashboard for inventory management

## Database Requirements:
- User accounts and profiles
- Product catalog with categories
- Shopping cart and order history
- Inventory management

## Technology Stack:
- Frontend: React 18 + TypeScript + CSS Modules
- Backend: Node.js + Express + TypeScript
- Database: PostgreSQL + Redis for caching
- Deployment: Docker + GitHub Actions + AWS
`

// WebDev walks the web development team through design, frontend,
// backend, database, deployment and testing, each member building on the
// previous replies. Code blocks are saved per member.
type WebDev struct {
	client af.ChatClient
	s      settings
}

// NewWebDev returns the web development workflow.
func NewWebDev(client af.ChatClient, opts ...Option) *WebDev {
	return &WebDev{client: client, s: newSettings(opts)}
}

func webDevSteps(brief string) []step {
	return []step{
		{"design", "UI_UX_Designer", fmt.Sprintf(`UI/UX Designer: Please create the HTML structure and CSS styling for our application.

%s

Create:
1. Semantic HTML5 structure for the main pages
2. Modern CSS with responsive design
3. Component-based layout system
4. Accessibility-compliant markup`, brief)},
		{"frontend", "Frontend_Developer", `Frontend Developer: Based on the UI/UX design, please create React components with TypeScript.

Create:
1. Main App component with routing
2. Product catalog component
3. Shopping cart component
4. User authentication components
5. TypeScript interfaces for data models`},
		{"backend", "Backend_Developer", `Backend Developer: Please create the Node.js Express API with TypeScript.

Create:
1. Express server with TypeScript configuration
2. RESTful API endpoints for products and users
3. JWT authentication middleware
4. Database connection and models
5. Error handling and validation`},
		{"database", "Database_Architect", `Database Architect: Please design the PostgreSQL database schema and create SQL migrations.

Create:
1. Database schema for users, products, orders
2. SQL migration scripts
3. Database indexes for performance
4. Sample data seeds
5. Redis caching strategy`},
		{"devops", "DevOps_Engineer", `DevOps Engineer: Please create deployment configurations and CI/CD pipeline.

Create:
1. Dockerfile for frontend and backend
2. Docker Compose for local development
3. GitHub Actions workflow for CI/CD
4. Kubernetes deployment manifests
5. Environment configuration files`},
		{"testing", "QA_Tester", `QA Tester: Please write the test suite for the application.

Create:
1. Jest and React Testing Library unit tests for the components
2. API integration tests for the endpoints
3. A Cypress end-to-end test of the checkout flow`},
	}
}

// Run builds the application described by brief.
func (d *WebDev) Run(ctx context.Context, brief string) (*Result, error) {
	if strings.TrimSpace(brief) == "" {
		return nil, fmt.Errorf("%w: empty web application brief", af.ErrInitialization)
	}
	team, ok := d.s.catalogue[TeamWebDev]
	if !ok {
		return nil, fmt.Errorf("%w: catalogue has no %s team", af.ErrInitialization, TeamWebDev)
	}

	w, release, err := d.s.openWorkspace("webdev")
	if err != nil {
		return nil, err
	}
	defer release()
	if _, err := w.Save(ProjectSpecFile, brief); err != nil {
		return nil, err
	}

	s := d.s
	s.workspace = w
	chat, err := (&Factory{client: d.client, s: s}).Team(team)
	if err != nil {
		return nil, err
	}

	run := newDirected(chat, "Product_Manager", s)
	res := &Result{Workspace: w.Root()}
	err = run.runSteps(ctx, w, webDevSteps(brief))
	res.Phases = run.phases
	if err != nil {
		return res, err
	}
	if res.Files, err = w.List(""); err != nil {
		return res, err
	}
	return res, nil
}
