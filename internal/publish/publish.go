// Package publish promotes validated drafts into the published workflows
// table, creating the version row the scheduler resolves at run time.
package publish

import (
	"context"
	"fmt"
	"strings"

	"github.com/aiwm/aiwm/internal/store"
	"github.com/aiwm/aiwm/internal/workflow"
)

// Service validates and publishes drafts.
type Service struct {
	workflows *store.WorkflowStore
	drafts    *store.DraftStore
	engine    *workflow.Engine
}

// Result is a successful publish: the created workflow plus the draft as it
// looks after being marked active.
type Result struct {
	Workflow store.Workflow
	Draft    workflow.Draft
}

// New creates a publish service. A nil engine gets the default rule set.
func New(workflows *store.WorkflowStore, drafts *store.DraftStore, engine *workflow.Engine) *Service {
	if engine == nil {
		engine = workflow.NewEngine()
	}
	return &Service{workflows: workflows, drafts: drafts, engine: engine}
}

// PublishDraft validates the draft and, if valid, creates a workflow with a
// version snapshot of the draft's content and marks the draft active.
// Validation failure surfaces as an error carrying the joined error list.
func (s *Service) PublishDraft(ctx context.Context, draftID int64) (*Result, error) {
	draft, err := s.drafts.Get(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, fmt.Errorf("draft %d not found", draftID)
	}

	validation := s.engine.Validate(draft)
	if !validation.Valid {
		return nil, fmt.Errorf("Draft failed validation: %s", strings.Join(validation.Errors, ", "))
	}

	wf, err := s.workflows.Create(ctx, draft.Name, draft.Description)
	if err != nil {
		return nil, err
	}

	content := workflow.DraftContent{Nodes: draft.Nodes, Transitions: draft.Transitions}
	if _, err := s.workflows.CreateVersion(ctx, wf.ID, draft.Version, content); err != nil {
		return nil, err
	}

	status := "active"
	wf, err = s.workflows.Update(ctx, wf.ID, store.WorkflowUpdate{Status: &status})
	if err != nil {
		return nil, err
	}
	published, err := s.drafts.Update(ctx, draft.ID, store.DraftUpdate{Status: &status})
	if err != nil {
		return nil, err
	}

	return &Result{Workflow: *wf, Draft: *published}, nil
}
