package scheduler

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiwm/aiwm/internal/logging"
	"github.com/aiwm/aiwm/internal/notify"
	"github.com/aiwm/aiwm/internal/retention"
	"github.com/aiwm/aiwm/internal/store"
	"github.com/aiwm/aiwm/internal/workflow"
)

type fixture struct {
	runner    *Runner
	db        *sqlx.DB
	schedules *store.ScheduleStore
	workflows *store.WorkflowStore
	runtime   *workflow.Runtime
	log       *logging.Service
	dataDir   string
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	dataDir := t.TempDir()
	db, err := store.Open(store.Config{Driver: store.DriverSQLite, Path: filepath.Join(dataDir, "app.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log, err := logging.New(dataDir)
	require.NoError(t, err)

	schedules := store.NewScheduleStore(db, log)
	workflows := store.NewWorkflowStore(db)
	runtime := workflow.NewRuntime(nil)
	dispatcher := notify.NewDispatcher(func() notify.Preferences {
		// A window that never suppresses, so tests see scheduler-event.
		return notify.Preferences{QuietHours: notify.QuietHours{Start: "00:00", End: "00:00"}, Channels: []string{"in-app"}}
	}, log)

	runner := New(schedules, workflows, runtime, log, dispatcher, opts...)
	return &fixture{
		runner:    runner,
		db:        db,
		schedules: schedules,
		workflows: workflows,
		runtime:   runtime,
		log:       log,
		dataDir:   dataDir,
	}
}

func (f *fixture) addDueSchedule(t *testing.T, workflowID int64) store.ScheduleRecord {
	t.Helper()

	record, err := f.schedules.Add(context.Background(), workflowID, "* * * * *", store.ScheduleOptions{Timezone: "UTC"})
	require.NoError(t, err)

	past := time.Now().UTC().Add(-time.Minute)
	_, err = f.db.Exec(f.db.Rebind(`UPDATE workflow_schedules SET next_run_at = ? WHERE id = ?`), past, record.ID)
	require.NoError(t, err)
	return *record
}

func logActions(t *testing.T, log *logging.Service) []string {
	t.Helper()

	file, err := os.Open(log.Path())
	require.NoError(t, err)
	defer file.Close()

	var actions []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var entry struct {
			Action string `json:"action"`
		}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		actions = append(actions, entry.Action)
	}
	return actions
}

func singleNodeContent() workflow.DraftContent {
	return workflow.DraftContent{
		Nodes: []workflow.Node{
			{ID: "start", Type: "start", Label: "Start", EntryActions: []string{}, ExitActions: []string{}},
		},
		Transitions: []workflow.Transition{},
	}
}

func TestRunOnceRunsDueScheduleToCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wf, err := f.workflows.Create(ctx, "Scheduled Workflow", "Runs on a timer")
	require.NoError(t, err)
	active := "active"
	_, err = f.workflows.Update(ctx, wf.ID, store.WorkflowUpdate{Status: &active})
	require.NoError(t, err)
	_, err = f.workflows.CreateVersion(ctx, wf.ID, 1, singleNodeContent())
	require.NoError(t, err)

	f.addDueSchedule(t, wf.ID)

	require.NoError(t, f.runner.RunOnce(ctx))

	instances := f.runtime.List()
	require.Len(t, instances, 1, "exactly one runtime instance per due schedule")
	assert.Equal(t, workflow.StatusCompleted, instances[0].Status)
	assert.Equal(t, 1, instances[0].Metadata.NodeCount)

	actions := logActions(t, f.log)
	assert.Contains(t, actions, "run-started")
	assert.Contains(t, actions, "run-completed")
	assert.Contains(t, actions, "scheduler-event")

	// The schedule advanced: a second pass finds nothing due.
	require.NoError(t, f.runner.RunOnce(ctx))
	assert.Len(t, f.runtime.List(), 1)
}

func TestRunOnceSkipsAndAdvancesOnMissingWorkflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addDueSchedule(t, 777) // no such workflow

	require.NoError(t, f.runner.RunOnce(ctx))

	assert.Empty(t, f.runtime.List())
	assert.Contains(t, logActions(t, f.log), "workflow-missing")

	// Skip policy: the miss is a non-throwing no-op, so next_run_at
	// still advances and the schedule is no longer due.
	records, err := f.schedules.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].NextRunAt)
	assert.True(t, records[0].NextRunAt.After(time.Now().UTC()))
	require.NotNil(t, records[0].LastRunAt)
}

func TestRunOnceSkipsAndAdvancesOnMissingVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wf, err := f.workflows.Create(ctx, "No Versions", "")
	require.NoError(t, err)
	f.addDueSchedule(t, wf.ID)

	require.NoError(t, f.runner.RunOnce(ctx))

	assert.Empty(t, f.runtime.List())
	assert.Contains(t, logActions(t, f.log), "workflow-version-missing")

	records, err := f.schedules.List(ctx)
	require.NoError(t, err)
	require.NotNil(t, records[0].NextRunAt)
	assert.True(t, records[0].NextRunAt.After(time.Now().UTC()))
}

func TestRunOnceAbsorbsValidationFailureAndAdvances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wf, err := f.workflows.Create(ctx, "Broken", "")
	require.NoError(t, err)
	// A version with zero nodes fails validation at start.
	_, err = f.workflows.CreateVersion(ctx, wf.ID, 1, workflow.DraftContent{})
	require.NoError(t, err)

	f.addDueSchedule(t, wf.ID)

	require.NoError(t, f.runner.RunOnce(ctx))

	assert.Empty(t, f.runtime.List())
	actions := logActions(t, f.log)
	assert.Contains(t, actions, "runtime-error")
	assert.Contains(t, actions, "scheduler-event", "a failed notification is dispatched")

	// Validation failures are not retried forever: the schedule advanced.
	records, err := f.schedules.List(ctx)
	require.NoError(t, err)
	assert.True(t, records[0].NextRunAt.After(time.Now().UTC()))
}

func TestRunOnceToleratesMalformedDefinitionJSON(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wf, err := f.workflows.Create(ctx, "Garbled", "")
	require.NoError(t, err)
	_, err = f.workflows.CreateVersion(ctx, wf.ID, 1, singleNodeContent())
	require.NoError(t, err)

	// Corrupt the stored payload; the parse substitutes an empty graph and
	// validation then rejects it without failing the pass.
	_, err = f.db.Exec(f.db.Rebind(`UPDATE workflow_versions SET definition_json = ? WHERE workflow_id = ?`), "{not json", wf.ID)
	require.NoError(t, err)

	f.addDueSchedule(t, wf.ID)
	require.NoError(t, f.runner.RunOnce(ctx))

	assert.Empty(t, f.runtime.List())
	assert.Contains(t, logActions(t, f.log), "runtime-error")
}

func TestRunOnceRunsRetentionEvenWithNothingDue(t *testing.T) {
	retentionDir := t.TempDir()
	f := newFixture(t)

	// An aged log file in a dedicated retention root proves Enforce ran
	// even though no schedule was due.
	old := filepath.Join(retentionDir, "logs", "app-2025-01-01.log")
	require.NoError(t, os.MkdirAll(filepath.Dir(old), 0o755))
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o644))
	stamp := time.Now().Add(-30 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(old, stamp, stamp))

	svc := retention.New(retentionDir, retention.Policy{LogsDays: 14}, f.log)
	WithRetention(svc)(f.runner)

	require.NoError(t, f.runner.RunOnce(context.Background()))
	assert.NoFileExists(t, old)
}

func TestStartPollsAndStopHalts(t *testing.T) {
	f := newFixture(t, WithInterval(20*time.Millisecond))
	ctx := context.Background()

	wf, err := f.workflows.Create(ctx, "Ticker", "")
	require.NoError(t, err)
	_, err = f.workflows.CreateVersion(ctx, wf.ID, 1, singleNodeContent())
	require.NoError(t, err)
	f.addDueSchedule(t, wf.ID)

	f.runner.Start(ctx)
	require.Eventually(t, func() bool {
		return len(f.runtime.List()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	f.runner.Stop()

	instances := f.runtime.List()
	require.Len(t, instances, 1)
	assert.Equal(t, workflow.StatusCompleted, instances[0].Status)

	// Stopped runner fires no further passes.
	f.addDueSchedule(t, wf.ID)
	time.Sleep(60 * time.Millisecond)
	assert.Len(t, f.runtime.List(), 1)
}
