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

// DraftStore owns the workflow_drafts table. Drafts start at version 1 with
// empty content; every content-affecting update increments the version.
type DraftStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// DraftStoreOption configures a DraftStore.
type DraftStoreOption func(*DraftStore)

// WithDraftClock overrides the time source, used by tests.
func WithDraftClock(now func() time.Time) DraftStoreOption {
	return func(s *DraftStore) {
		s.now = now
	}
}

// NewDraftStore creates a draft store.
func NewDraftStore(db *sqlx.DB, opts ...DraftStoreOption) *DraftStore {
	s := &DraftStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create inserts a draft with empty content at version 1.
func (s *DraftStore) Create(ctx context.Context, name, description string) (*workflow.Draft, error) {
	payload, err := json.Marshal(workflow.DraftContent{}.Normalize())
	if err != nil {
		return nil, fmt.Errorf("store: marshal draft content: %w", err)
	}

	now := s.now().UTC()
	id, err := insertID(ctx, s.db, `
		INSERT INTO workflow_drafts (name, description, status, version, data_json, created_at, updated_at)
		VALUES (?, ?, 'draft', 1, ?, ?, ?)`,
		name, description, string(payload), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("store: create draft: %w", err)
	}
	return s.mustGet(ctx, id)
}

// Get returns the draft with the given id, or nil when none exists.
func (s *DraftStore) Get(ctx context.Context, id int64) (*workflow.Draft, error) {
	var row draftRow
	query := s.db.Rebind(`SELECT * FROM workflow_drafts WHERE id = ?`)
	err := s.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get draft %d: %w", id, err)
	}
	draft := rowToDraft(row)
	return &draft, nil
}

// List returns all drafts, most recently updated first.
func (s *DraftStore) List(ctx context.Context) ([]workflow.Draft, error) {
	var rows []draftRow
	err := s.db.SelectContext(ctx, &rows, `SELECT * FROM workflow_drafts ORDER BY updated_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list drafts: %w", err)
	}

	drafts := make([]workflow.Draft, 0, len(rows))
	for _, row := range rows {
		drafts = append(drafts, rowToDraft(row))
	}
	return drafts, nil
}

// DraftUpdate carries the mutable draft fields; nil means unchanged.
// Setting Content replaces the graph and increments the version;
// IncrementVersion bumps the version without touching content.
type DraftUpdate struct {
	Name             *string
	Description      *string
	Status           *string
	Content          *workflow.DraftContent
	IncrementVersion bool
}

// Update applies the given fields and bumps updated_at.
func (s *DraftStore) Update(ctx context.Context, id int64, update DraftUpdate) (*workflow.Draft, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("draft %d not found", id)
	}

	sets := make([]string, 0, 6)
	args := make([]any, 0, 7)

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
	if update.Content != nil {
		payload, err := json.Marshal(update.Content.Normalize())
		if err != nil {
			return nil, fmt.Errorf("store: marshal draft content: %w", err)
		}
		sets = append(sets, "data_json = ?", "version = version + 1")
		args = append(args, string(payload))
	} else if update.IncrementVersion {
		sets = append(sets, "version = version + 1")
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, s.now().UTC(), id)

	query := s.db.Rebind(fmt.Sprintf(`UPDATE workflow_drafts SET %s WHERE id = ?`, strings.Join(sets, ", ")))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("store: update draft %d: %w", id, err)
	}
	return s.mustGet(ctx, id)
}

// Autosave replaces the draft's content, incrementing the version.
func (s *DraftStore) Autosave(ctx context.Context, id int64, content workflow.DraftContent) (*workflow.Draft, error) {
	return s.Update(ctx, id, DraftUpdate{Content: &content})
}

// Delete removes the draft.
func (s *DraftStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM workflow_drafts WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("store: delete draft %d: %w", id, err)
	}
	return nil
}

func (s *DraftStore) mustGet(ctx context.Context, id int64) (*workflow.Draft, error) {
	draft, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, fmt.Errorf("draft %d not found", id)
	}
	return draft, nil
}

// rowToDraft maps a row onto the domain draft. Unreadable stored content
// degrades to an empty graph rather than failing the read.
func rowToDraft(row draftRow) workflow.Draft {
	var content workflow.DraftContent
	if err := json.Unmarshal([]byte(row.DataJSON), &content); err != nil {
		content = workflow.DraftContent{}
	}
	content = content.Normalize()

	return workflow.Draft{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Status:      row.Status,
		Version:     row.Version,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
		Nodes:       content.Nodes,
		Transitions: content.Transitions,
	}
}
