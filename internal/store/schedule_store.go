package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/aiwm/aiwm/internal/cronexpr"
	"github.com/aiwm/aiwm/internal/logging"
)

// ScheduleStore owns the workflow_schedules table. Schedules are mutated
// only through its methods.
type ScheduleStore struct {
	db  *sqlx.DB
	log *logging.Service
	now func() time.Time
}

// ScheduleStoreOption configures a ScheduleStore.
type ScheduleStoreOption func(*ScheduleStore)

// WithScheduleClock overrides the time source, used by tests.
func WithScheduleClock(now func() time.Time) ScheduleStoreOption {
	return func(s *ScheduleStore) {
		s.now = now
	}
}

// NewScheduleStore creates a schedule store logging to the given sink.
func NewScheduleStore(db *sqlx.DB, log *logging.Service, opts ...ScheduleStoreOption) *ScheduleStore {
	s := &ScheduleStore{db: db, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScheduleOptions are the optional fields of a new schedule.
type ScheduleOptions struct {
	Timezone string // IANA zone, default UTC
	Profile  string
}

// Add validates the cron/timezone pair, computes the initial next run and
// inserts an active schedule. Evaluator failures propagate verbatim.
func (s *ScheduleStore) Add(ctx context.Context, workflowID int64, cron string, opts ScheduleOptions) (*ScheduleRecord, error) {
	tz := opts.Timezone
	if tz == "" {
		tz = "UTC"
	}

	next, err := cronexpr.NextRunAfter(cron, s.now(), cronexpr.Options{Timezone: tz})
	if err != nil {
		return nil, err
	}
	next = next.UTC()

	id, err := insertID(ctx, s.db, `
		INSERT INTO workflow_schedules (workflow_id, cron, timezone, profile, status, next_run_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		workflowID, cron, tz, opts.Profile, ScheduleActive, next, s.now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("store: add schedule: %w", err)
	}

	record, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.log.Log(logging.Event{
		Category: "scheduler",
		Action:   "add",
		Metadata: map[string]any{"workflowId": workflowID, "scheduleId": record.ID},
	})
	return record, nil
}

// List returns all schedules, newest id first.
func (s *ScheduleStore) List(ctx context.Context) ([]ScheduleRecord, error) {
	var records []ScheduleRecord
	err := s.db.SelectContext(ctx, &records, `SELECT * FROM workflow_schedules ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list schedules: %w", err)
	}
	return records, nil
}

// Pause sets the schedule's status to paused. NextRunAt is left untouched.
func (s *ScheduleStore) Pause(ctx context.Context, id int64) error {
	return s.updateStatus(ctx, id, SchedulePaused)
}

// Resume sets the schedule's status back to active without recomputing
// NextRunAt; a stale next run simply fires on the following poll.
func (s *ScheduleStore) Resume(ctx context.Context, id int64) error {
	return s.updateStatus(ctx, id, ScheduleActive)
}

// Delete removes the schedule.
func (s *ScheduleStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM workflow_schedules WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("store: delete schedule %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("schedule %d not found", id)
	}

	s.log.Log(logging.Event{
		Category: "scheduler",
		Action:   "delete",
		Metadata: map[string]any{"scheduleId": id},
	})
	return nil
}

// RunDue invokes runFn concurrently for every active schedule whose next
// run is at or before now, and waits for all invocations to settle. On
// success the schedule's last run is stamped and the next run recomputed
// from its stored cron+timezone in a single per-record update. On failure
// the error is logged and the timestamps stay untouched, so the schedule
// remains due and is retried on the next poll.
func (s *ScheduleStore) RunDue(ctx context.Context, runFn func(context.Context, ScheduleRecord) error) error {
	now := s.now().UTC()

	var due []ScheduleRecord
	query := s.db.Rebind(`
		SELECT * FROM workflow_schedules
		WHERE status = ? AND next_run_at IS NOT NULL AND next_run_at <= ?`)
	if err := s.db.SelectContext(ctx, &due, query, ScheduleActive, now); err != nil {
		return fmt.Errorf("store: select due schedules: %w", err)
	}

	var wg sync.WaitGroup
	for _, record := range due {
		wg.Add(1)
		go func(record ScheduleRecord) {
			defer wg.Done()
			s.runOne(ctx, record, runFn)
		}(record)
	}
	wg.Wait()
	return nil
}

func (s *ScheduleStore) runOne(ctx context.Context, record ScheduleRecord, runFn func(context.Context, ScheduleRecord) error) {
	if err := runFn(ctx, record); err != nil {
		s.log.Log(logging.Event{
			Category: "scheduler",
			Action:   "run-error",
			Metadata: map[string]any{"scheduleId": record.ID, "workflowId": record.WorkflowID, "error": err.Error()},
		})
		return
	}

	ranAt := s.now().UTC()
	next, err := cronexpr.NextRunAfter(record.Cron, ranAt, cronexpr.Options{Timezone: record.Timezone})
	if err != nil {
		// The stored expression validated on Add; hitting this means the
		// row was edited out from under us. Leave it due and log.
		s.log.Log(logging.Event{
			Category: "scheduler",
			Action:   "run-error",
			Metadata: map[string]any{"scheduleId": record.ID, "workflowId": record.WorkflowID, "error": err.Error()},
		})
		return
	}

	update := s.db.Rebind(`UPDATE workflow_schedules SET last_run_at = ?, next_run_at = ? WHERE id = ?`)
	if _, err := s.db.ExecContext(ctx, update, ranAt, next.UTC(), record.ID); err != nil {
		s.log.Log(logging.Event{
			Category: "scheduler",
			Action:   "run-error",
			Metadata: map[string]any{"scheduleId": record.ID, "workflowId": record.WorkflowID, "error": err.Error()},
		})
	}
}

func (s *ScheduleStore) updateStatus(ctx context.Context, id int64, status ScheduleStatus) error {
	query := s.db.Rebind(`UPDATE workflow_schedules SET status = ? WHERE id = ?`)
	result, err := s.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("store: update schedule %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("schedule %d not found", id)
	}
	return nil
}

func (s *ScheduleStore) get(ctx context.Context, id int64) (*ScheduleRecord, error) {
	var record ScheduleRecord
	query := s.db.Rebind(`SELECT * FROM workflow_schedules WHERE id = ?`)
	if err := s.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, fmt.Errorf("store: get schedule %d: %w", id, err)
	}
	return &record, nil
}
