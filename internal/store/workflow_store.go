package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/aiwm/aiwm/internal/workflow"
)

// WorkflowStore owns the workflows and workflow_versions tables.
type WorkflowStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// WorkflowStoreOption configures a WorkflowStore.
type WorkflowStoreOption func(*WorkflowStore)

// WithWorkflowClock overrides the time source, used by tests.
func WithWorkflowClock(now func() time.Time) WorkflowStoreOption {
	return func(s *WorkflowStore) {
		s.now = now
	}
}

// NewWorkflowStore creates a workflow store.
func NewWorkflowStore(db *sqlx.DB, opts ...WorkflowStoreOption) *WorkflowStore {
	s := &WorkflowStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create inserts a new workflow in draft status.
func (s *WorkflowStore) Create(ctx context.Context, name, description string) (*Workflow, error) {
	now := s.now().UTC()
	id, err := insertID(ctx, s.db, `
		INSERT INTO workflows (name, description, status, created_at, updated_at)
		VALUES (?, ?, 'draft', ?, ?)`,
		name, description, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("store: create workflow: %w", err)
	}
	return s.mustGet(ctx, id)
}

// Get returns the workflow with the given id, or nil when none exists.
func (s *WorkflowStore) Get(ctx context.Context, id int64) (*Workflow, error) {
	var wf Workflow
	query := s.db.Rebind(`SELECT * FROM workflows WHERE id = ?`)
	err := s.db.GetContext(ctx, &wf, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get workflow %d: %w", id, err)
	}
	return &wf, nil
}

// List returns all workflows, most recently updated first.
func (s *WorkflowStore) List(ctx context.Context) ([]Workflow, error) {
	var workflows []Workflow
	err := s.db.SelectContext(ctx, &workflows, `SELECT * FROM workflows ORDER BY updated_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list workflows: %w", err)
	}
	return workflows, nil
}

// WorkflowUpdate carries the mutable workflow fields; nil means unchanged.
type WorkflowUpdate struct {
	Name        *string
	Description *string
	Status      *string
}

// Update applies the given fields and bumps updated_at.
func (s *WorkflowStore) Update(ctx context.Context, id int64, update WorkflowUpdate) (*Workflow, error) {
	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)

	if update.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *update.Name)
	}
	if update.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *update.Description)
	}
	if update.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *update.Status)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, s.now().UTC(), id)

	query := s.db.Rebind(fmt.Sprintf(`UPDATE workflows SET %s WHERE id = ?`, strings.Join(sets, ", ")))
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: update workflow %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, fmt.Errorf("workflow %d not found", id)
	}
	return s.mustGet(ctx, id)
}

// Delete removes the workflow; versions cascade.
func (s *WorkflowStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM workflows WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("store: delete workflow %d: %w", id, err)
	}
	return nil
}

// CreateVersion stores an immutable definition snapshot for the workflow.
func (s *WorkflowStore) CreateVersion(ctx context.Context, workflowID int64, version int, content workflow.DraftContent) (*WorkflowVersion, error) {
	payload, err := json.Marshal(content.Normalize())
	if err != nil {
		return nil, fmt.Errorf("store: marshal definition: %w", err)
	}

	id, err := insertID(ctx, s.db, `
		INSERT INTO workflow_versions (workflow_id, version, definition_json, created_at)
		VALUES (?, ?, ?, ?)`,
		workflowID, version, string(payload), s.now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("store: create workflow version: %w", err)
	}

	var row WorkflowVersion
	query := s.db.Rebind(`SELECT * FROM workflow_versions WHERE id = ?`)
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, fmt.Errorf("store: get workflow version %d: %w", id, err)
	}
	return &row, nil
}

// ListVersions returns the workflow's versions, highest version first.
func (s *WorkflowStore) ListVersions(ctx context.Context, workflowID int64) ([]WorkflowVersion, error) {
	var versions []WorkflowVersion
	query := s.db.Rebind(`SELECT * FROM workflow_versions WHERE workflow_id = ? ORDER BY version DESC`)
	if err := s.db.SelectContext(ctx, &versions, query, workflowID); err != nil {
		return nil, fmt.Errorf("store: list workflow versions: %w", err)
	}
	return versions, nil
}

func (s *WorkflowStore) mustGet(ctx context.Context, id int64) (*Workflow, error) {
	wf, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return nil, fmt.Errorf("workflow %d not found", id)
	}
	return wf, nil
}
