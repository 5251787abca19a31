// Copyright (c) Microsoft. All rights reserved.

package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	af "github.com/agentcrew/copilot-agents/agentframework"
	"github.com/agentcrew/copilot-agents/groupchat"
	"github.com/agentcrew/copilot-agents/workspace"
)

// Stage is a step of the research paper workflow.
type Stage string

const (
	StageInitialization   Stage = "initialization"
	StageLiteratureReview Stage = "literature_review"
	StageOutlineCreation  Stage = "outline_creation"
	StageMethodology      Stage = "methodology"
	StageWritingDraft     Stage = "writing_draft"
	StagePeerReview       Stage = "peer_review"
	StageRevision         Stage = "revision"
	StageFinalEditing     Stage = "final_editing"
	StageSubmissionPrep   Stage = "submission_prep"
	StageCompleted        Stage = "completed"
)

// Stages lists every stage in workflow order.
var Stages = []Stage{
	StageInitialization, StageLiteratureReview, StageOutlineCreation, StageMethodology,
	StageWritingDraft, StagePeerReview, StageRevision, StageFinalEditing,
	StageSubmissionPrep, StageCompleted,
}

// Title returns the stage in words, e.g. "Literature Review".
func (s Stage) Title() string {
	words := strings.Split(string(s), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// Next returns the stage after s, or false for the last stage and unknown
// stages.
func (s Stage) Next() (Stage, bool) {
	i := slices.Index(Stages, s)
	if i < 0 || i == len(Stages)-1 {
		return "", false
	}
	return Stages[i+1], true
}

// ErrWorkflowCompleted is returned when continuing a finished workflow.
var ErrWorkflowCompleted = errors.New("workflow: research workflow already completed")

// ResearchState is the persisted progress of a research workflow.
type ResearchState struct {
	CurrentStage      Stage             `yaml:"current_stage"`
	CompletedStages   []Stage           `yaml:"completed_stages"`
	PaperTopic        string            `yaml:"paper_topic"`
	TargetJournal     string            `yaml:"target_journal"`
	WordCountTarget   int               `yaml:"word_count_target"`
	CurrentWordCount  int               `yaml:"current_word_count"`
	LiteratureSources []string          `yaml:"literature_sources"`
	Outline           map[string]any    `yaml:"outline"`
	DraftSections     map[string]string `yaml:"draft_sections"`
	ReviewFeedback    []string          `yaml:"review_feedback"`
	RevisionNotes     []string          `yaml:"revision_notes"`
	// Outputs holds the full reply of every executed stage.
	Outputs map[Stage]string `yaml:"outputs"`
}

// NewResearchState returns the state of a workflow that has not started.
func NewResearchState(topic, journal string, words int) *ResearchState {
	return &ResearchState{
		CurrentStage:    StageInitialization,
		PaperTopic:      topic,
		TargetJournal:   journal,
		WordCountTarget: words,
		Outline:         map[string]any{},
		DraftSections:   map[string]string{},
		Outputs:         map[Stage]string{},
	}
}

// Advance marks the current stage completed and moves to next.
func (st *ResearchState) Advance(next Stage) {
	if !slices.Contains(st.CompletedStages, st.CurrentStage) {
		st.CompletedStages = append(st.CompletedStages, st.CurrentStage)
	}
	st.CurrentStage = next
}

// Progress returns the share of completed stages as a percentage.
func (st *ResearchState) Progress() float64 {
	return float64(len(st.CompletedStages)) / float64(len(Stages)) * 100
}

// SaveResearchState writes st to path as YAML.
func SaveResearchState(path string, st *ResearchState) error {
	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("workflow: encode research state: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("workflow: save research state: %w", err)
	}
	return nil
}

// LoadResearchState reads a state written by [SaveResearchState].
func LoadResearchState(path string) (*ResearchState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workflow: load research state: %w", err)
	}
	st := NewResearchState("", "", 0)
	if err := yaml.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("workflow: decode research state: %w", err)
	}
	for _, s := range append([]Stage{st.CurrentStage}, st.CompletedStages...) {
		if !slices.Contains(Stages, s) {
			return nil, fmt.Errorf("workflow: research state has unknown stage %q", s)
		}
	}
	return st, nil
}

// ResearchSummary is a snapshot of workflow progress.
type ResearchSummary struct {
	Topic             string
	CurrentStage      Stage
	Progress          float64
	CompletedStages   []Stage
	WordCount         string
	LiteratureSources int
	OutlineCreated    bool
	DraftSections     int
	ReviewFeedback    int
}

// Research runs the research paper workflow one stage at a time. Each
// stage is assigned to one member of the research team; the replies update
// the [ResearchState] and are saved to the workspace as <stage>.md.
type Research struct {
	client  af.ChatClient
	s       settings
	w       *workspace.Workspace
	release func() error
	agents  map[string]*af.Agent
	members []groupchat.Member
	state   *ResearchState
}

// NewResearch builds the research team. Close releases its workspace.
func NewResearch(client af.ChatClient, opts ...Option) (*Research, error) {
	s := newSettings(opts)
	team, ok := s.catalogue[TeamResearch]
	if !ok {
		return nil, fmt.Errorf("%w: catalogue has no %s team", af.ErrInitialization, TeamResearch)
	}
	w, release, err := s.openWorkspace("research")
	if err != nil {
		return nil, err
	}
	s.workspace = w

	f := &Factory{client: client, s: s}
	r := &Research{
		client:  client,
		s:       s,
		w:       w,
		release: release,
		agents:  make(map[string]*af.Agent, len(team.Members)),
		state:   NewResearchState("", "", 0),
	}
	for _, m := range team.Members {
		a, err := f.Agent(m)
		if err != nil {
			_ = release()
			return nil, err
		}
		r.agents[m.Name] = a
		r.members = append(r.members, a)
	}
	return r, nil
}

// Close releases the workspace unless it was supplied or is kept.
func (r *Research) Close() error { return r.release() }

// Workspace returns the workspace stage outputs are saved to.
func (r *Research) Workspace() *workspace.Workspace { return r.w }

// State returns the live workflow state.
func (r *Research) State() *ResearchState { return r.state }

// Restore replaces the workflow state, e.g. with one loaded from disk.
func (r *Research) Restore(st *ResearchState) { r.state = st }

// Start begins a new workflow and executes the literature review.
func (r *Research) Start(ctx context.Context, topic, journal string, words int) (Phase, error) {
	r.state = NewResearchState(topic, journal, words)
	r.state.Advance(StageLiteratureReview)
	return r.execute(ctx, StageLiteratureReview)
}

// Continue executes the current stage.
func (r *Research) Continue(ctx context.Context) (Phase, error) {
	switch r.state.CurrentStage {
	case StageCompleted:
		return Phase{}, ErrWorkflowCompleted
	case StageInitialization:
		return Phase{}, fmt.Errorf("%w: research workflow not started", af.ErrExecution)
	}
	return r.execute(ctx, r.state.CurrentStage)
}

func (r *Research) execute(ctx context.Context, stage Stage) (Phase, error) {
	agentName, prompt := r.stagePrompt(stage)
	agent, ok := r.agents[agentName]
	if !ok {
		return Phase{}, fmt.Errorf("%w: %q", groupchat.ErrUnknownMember, agentName)
	}
	if prev := r.previousOutput(stage); prev != "" {
		prompt += "\n\nOutput of the previous stage:\n\n" + prev
	}

	r.s.logger.InfoContext(ctx, "executing research stage", "stage", stage, "agent", agentName)
	resp, err := agent.Run(ctx, []af.Message{af.NewUserMessage(prompt)})
	if err != nil {
		return Phase{}, fmt.Errorf("workflow: %s stage: %w", stage, err)
	}
	text := resp.Text()
	r.update(stage, text)

	rel := string(stage) + ".md"
	if _, err := r.w.Save(rel, text); err != nil {
		return Phase{}, err
	}
	if next, ok := stage.Next(); ok {
		r.state.Advance(next)
	}

	p := Phase{Name: string(stage), Agent: agentName, Text: text, Files: []string{rel}}
	r.s.phase(p)
	return p, nil
}

func (r *Research) previousOutput(stage Stage) string {
	for i := slices.Index(Stages, stage) - 1; i >= 0; i-- {
		if out := r.state.Outputs[Stages[i]]; out != "" {
			return out
		}
	}
	return ""
}

func (r *Research) stagePrompt(stage Stage) (agent, prompt string) {
	st := r.state
	journal := st.TargetJournal
	if journal == "" {
		journal = "General academic journal"
	}
	switch stage {
	case StageLiteratureReview:
		return "Literature_Reviewer", fmt.Sprintf(`Conduct a comprehensive literature review for the research topic: "%s"

Please:
1. Search for relevant academic papers and sources
2. Identify key themes and research directions
3. Highlight research gaps and opportunities
4. Suggest 15-20 high-quality sources
5. Provide a structured summary of the literature landscape

Target journal: %s`, st.PaperTopic, journal)
	case StageOutlineCreation:
		return "Academic_Writer", fmt.Sprintf(`Create a detailed outline for the research paper: "%s"

Based on the literature review findings, create:
1. A structured paper outline with main sections and subsections
2. Estimated word counts for each section (total target: %d words)
3. Key points to cover in each section
4. Logical flow and transitions between sections
5. Suggested figures/tables for each section

Literature sources found: %d papers
Target journal: %s`, st.PaperTopic, st.WordCountTarget, len(st.LiteratureSources), journal)
	case StageMethodology:
		return "Methodology_Expert", fmt.Sprintf(`Design the research methodology for: "%s"

Please provide:
1. Appropriate research design and approach
2. Data collection methods and procedures
3. Analysis techniques and statistical methods
4. Validation and quality assurance measures
5. Potential limitations and mitigation strategies

Consider the paper outline and literature review findings.
Target journal requirements: %s`, st.PaperTopic, journal)
	case StageWritingDraft:
		return "Academic_Writer", fmt.Sprintf(`Write the first draft of key sections for: "%s"

Based on the outline and methodology, write:
1. Abstract (250 words)
2. Introduction (800-1000 words)
3. Methodology section (600-800 words)
4. Conclusion (400-500 words)

Ensure clear, engaging academic writing with proper citations, logical flow and
adherence to the target journal style.

Total target: %d words`, st.PaperTopic, st.WordCountTarget)
	case StagePeerReview:
		return "Quality_Reviewer", fmt.Sprintf(`Conduct a comprehensive peer review of the draft paper: "%s"

Review for:
1. Scientific accuracy and methodological rigor
2. Clarity and organization of content
3. Strength of arguments and evidence
4. Completeness and quality of literature review
5. Writing quality and presentation
6. Compliance with journal standards

Provide specific, constructive feedback with suggestions for improvement.
Current word count: %d/%d`, st.PaperTopic, st.CurrentWordCount, st.WordCountTarget)
	case StageRevision:
		return "Academic_Writer", fmt.Sprintf(`Revise the draft of "%s" to address the peer review feedback.

For every review point, state the change made or why no change is needed, then
give the revised sections. Keep the total near %d words.`, st.PaperTopic, st.WordCountTarget)
	case StageFinalEditing:
		return "Quality_Reviewer", fmt.Sprintf(`Do the final edit of "%s".

Proofread for grammar, consistency of terms and citation format, and check that
the paper meets the requirements of %s. List any remaining issues.`, st.PaperTopic, journal)
	case StageSubmissionPrep:
		return "Academic_Writer", fmt.Sprintf(`Prepare "%s" for submission to %s.

Write the cover letter, a 150-word lay summary, suggested keywords and a
submission checklist covering formatting, figures and references.`, st.PaperTopic, journal)
	}
	return "", ""
}

// update records what a stage produced.
func (r *Research) update(stage Stage, text string) {
	st := r.state
	if st.Outputs == nil {
		st.Outputs = map[Stage]string{}
	}
	if st.DraftSections == nil {
		st.DraftSections = map[string]string{}
	}
	st.Outputs[stage] = text
	if text == "" {
		return
	}
	switch stage {
	case StageLiteratureReview:
		if strings.Contains(strings.ToLower(text), "sources") {
			st.LiteratureSources = append(st.LiteratureSources,
				fmt.Sprintf("Literature review completed: %d chars", len(text)))
		}
	case StageOutlineCreation:
		st.Outline = map[string]any{
			"created":             true,
			"content_length":      len(text),
			"sections_identified": strings.Count(text, "##") + strings.Count(text, "###"),
		}
	case StageWritingDraft:
		st.CurrentWordCount = len(strings.Fields(text))
		st.DraftSections["main_draft"] = clip(text, 500) + "..."
	case StagePeerReview:
		st.ReviewFeedback = append(st.ReviewFeedback,
			fmt.Sprintf("Review completed: %d chars of feedback", len(text)))
	case StageRevision:
		st.RevisionNotes = append(st.RevisionNotes,
			fmt.Sprintf("Revision completed: %d chars", len(text)))
		st.CurrentWordCount = len(strings.Fields(text))
		st.DraftSections["revised_draft"] = clip(text, 500) + "..."
	case StageFinalEditing:
		st.RevisionNotes = append(st.RevisionNotes,
			fmt.Sprintf("Final edit completed: %d chars", len(text)))
	case StageSubmissionPrep:
		st.DraftSections["submission_package"] = clip(text, 500) + "..."
	}
}

// Summary reports the current progress.
func (r *Research) Summary() ResearchSummary {
	st := r.state
	return ResearchSummary{
		Topic:             st.PaperTopic,
		CurrentStage:      st.CurrentStage,
		Progress:          st.Progress(),
		CompletedStages:   slices.Clone(st.CompletedStages),
		WordCount:         fmt.Sprintf("%d/%d", st.CurrentWordCount, st.WordCountTarget),
		LiteratureSources: len(st.LiteratureSources),
		OutlineCreated:    len(st.Outline) > 0,
		DraftSections:     len(st.DraftSections),
		ReviewFeedback:    len(st.ReviewFeedback),
	}
}

// Coordinator returns a [groupchat.Router] over the research team for
// questions outside the stage sequence.
func (r *Research) Coordinator() (*groupchat.Router, error) {
	return groupchat.NewRouter(r.client, r.members,
		groupchat.WithRouterName("Workflow_Coordinator"),
		groupchat.WithRouterDescription("Coordinates the research paper writing workflow"),
		groupchat.WithRouterLogger(r.s.logger),
	)
}

// Ask sends a free-form question to the coordinator.
func (r *Research) Ask(ctx context.Context, question string) (*af.AgentResponse, error) {
	c, err := r.Coordinator()
	if err != nil {
		return nil, err
	}
	return c.Run(ctx, []af.Message{af.NewUserMessage(question)})
}
