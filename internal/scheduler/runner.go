// Package scheduler drives scheduled workflow runs: a polling loop that
// asks the schedule store for due schedules, resolves the latest published
// workflow version, runs it through the runtime and dispatches
// notifications, then hands the poll cycle to retention cleanup.
package scheduler

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/aiwm/aiwm/internal/logging"
	"github.com/aiwm/aiwm/internal/store"
	"github.com/aiwm/aiwm/internal/workflow"
)

// DefaultInterval is the polling period when none is configured.
const DefaultInterval = 60 * time.Second

// WorkflowResolver resolves published workflows and their versions.
// *store.WorkflowStore satisfies it.
type WorkflowResolver interface {
	// Get returns the workflow with the given id, or nil when none exists.
	Get(ctx context.Context, id int64) (*store.Workflow, error)
	// ListVersions returns the workflow's versions, highest version first.
	ListVersions(ctx context.Context, workflowID int64) ([]store.WorkflowVersion, error)
}

// Notifier dispatches schedule run notifications ("started"/"failed").
// *notify.Dispatcher satisfies it.
type Notifier interface {
	ScheduleEvent(scheduleID, workflowID int64, workflowName, event string)
}

// Retention runs one cleanup pass. *retention.Service satisfies it.
type Retention interface {
	Enforce(ctx context.Context) error
}

// Runner owns the recurring poll timer. A single loop goroutine calls
// RunOnce per tick, so passes do not overlap from the timer itself;
// external RunOnce callers are not serialized against the loop and must
// tolerate at-least-once semantics on slow passes.
type Runner struct {
	schedules *store.ScheduleStore
	workflows WorkflowResolver
	runtime   *workflow.Runtime
	log       *logging.Service
	notifier  Notifier
	retention Retention
	interval  time.Duration

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// Option configures a Runner.
type Option func(*Runner)

// WithInterval sets the polling period.
func WithInterval(interval time.Duration) Option {
	return func(r *Runner) {
		if interval > 0 {
			r.interval = interval
		}
	}
}

// WithRetention attaches a retention collaborator, invoked once per poll.
func WithRetention(retention Retention) Option {
	return func(r *Runner) {
		r.retention = retention
	}
}

// New creates a runner. The notifier may be nil, in which case run events
// are only logged.
func New(schedules *store.ScheduleStore, workflows WorkflowResolver, runtime *workflow.Runtime, log *logging.Service, notifier Notifier, opts ...Option) *Runner {
	r := &Runner{
		schedules: schedules,
		workflows: workflows,
		runtime:   runtime,
		log:       log,
		notifier:  notifier,
		interval:  DefaultInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the polling loop. Calling Start on a running runner
// restarts the timer.
func (r *Runner) Start(ctx context.Context) {
	r.Stop()

	r.mu.Lock()
	stop := make(chan struct{})
	done := make(chan struct{})
	r.stop = stop
	r.done = done
	r.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := r.RunOnce(ctx); err != nil {
					r.log.Log(logging.Event{
						Category: "scheduler",
						Action:   "runner-error",
						Metadata: map[string]any{"error": err.Error()},
					})
				}
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop clears the recurring timer. An in-flight pass is not interrupted;
// Stop returns after the loop goroutine has exited.
func (r *Runner) Stop() {
	r.mu.Lock()
	stop, done := r.stop, r.done
	r.stop, r.done = nil, nil
	r.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// RunOnce executes a single poll pass: dispatch every due schedule, then
// run retention cleanup regardless of whether anything fired. Failures of
// individual runs are absorbed inside the pass; only a failure to read the
// schedule table surfaces as an error.
func (r *Runner) RunOnce(ctx context.Context) error {
	err := r.schedules.RunDue(ctx, r.runSchedule)

	if r.retention != nil {
		if rerr := r.retention.Enforce(ctx); rerr != nil {
			r.log.Log(logging.Event{
				Category: "retention",
				Action:   "enforce-error",
				Metadata: map[string]any{"error": rerr.Error()},
			})
		}
	}
	return err
}

// runSchedule is the per-schedule callback handed to the store. Returning
// nil advances the schedule's next run; returning an error leaves it due.
// Missing workflows/versions return nil deliberately: that is a skip
// policy, not a retry policy. Runtime failures are also absorbed (logged
// and notified) so a draft that cannot validate is not retried forever.
// The asymmetry with the store's own retry-on-error path is intentional,
// preserved from observed behavior.
func (r *Runner) runSchedule(ctx context.Context, schedule store.ScheduleRecord) error {
	wf, err := r.workflows.Get(ctx, schedule.WorkflowID)
	if err != nil {
		return err
	}
	if wf == nil {
		r.log.Log(logging.Event{
			Category: "scheduler",
			Action:   "workflow-missing",
			Metadata: map[string]any{"scheduleId": schedule.ID, "workflowId": schedule.WorkflowID},
		})
		return nil
	}

	versions, err := r.workflows.ListVersions(ctx, schedule.WorkflowID)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		r.log.Log(logging.Event{
			Category: "scheduler",
			Action:   "workflow-version-missing",
			Metadata: map[string]any{"scheduleId": schedule.ID, "workflowId": wf.ID},
		})
		return nil
	}
	latest := versions[0]

	content := parseDefinition(latest.DefinitionJSON)
	status := wf.Status
	if status == "" {
		status = "draft"
	}
	draft := &workflow.Draft{
		ID:          wf.ID,
		Name:        wf.Name,
		Description: wf.Description,
		Status:      status,
		Version:     latest.Version,
		CreatedAt:   wf.CreatedAt,
		UpdatedAt:   wf.UpdatedAt,
		Nodes:       content.Nodes,
		Transitions: content.Transitions,
	}

	instance, err := r.runtime.Start(draft)
	if err != nil {
		r.runtimeError(schedule, wf, err)
		return nil
	}
	r.log.Log(logging.Event{
		Category: "scheduler",
		Action:   "run-started",
		Metadata: map[string]any{
			"scheduleId":        schedule.ID,
			"workflowId":        wf.ID,
			"runtimeInstanceId": instance.ID,
		},
	})
	r.notify(schedule, wf.Name, "started")

	// No actual step execution happens here: a scheduled run is a
	// fire-and-forget synchronous lifecycle pass.
	if _, err := r.runtime.Complete(instance.ID); err != nil {
		r.runtimeError(schedule, wf, err)
		return nil
	}
	r.log.Log(logging.Event{
		Category: "scheduler",
		Action:   "run-completed",
		Metadata: map[string]any{
			"scheduleId":        schedule.ID,
			"workflowId":        wf.ID,
			"runtimeInstanceId": instance.ID,
		},
	})
	return nil
}

func (r *Runner) runtimeError(schedule store.ScheduleRecord, wf *store.Workflow, err error) {
	r.log.Log(logging.Event{
		Category: "scheduler",
		Action:   "runtime-error",
		Metadata: map[string]any{
			"scheduleId": schedule.ID,
			"workflowId": wf.ID,
			"error":      err.Error(),
		},
	})
	r.notify(schedule, wf.Name, "failed")
}

func (r *Runner) notify(schedule store.ScheduleRecord, workflowName, event string) {
	if r.notifier != nil {
		r.notifier.ScheduleEvent(schedule.ID, schedule.WorkflowID, workflowName, event)
	}
}

// parseDefinition tolerates malformed version payloads by substituting an
// empty graph; validation downstream decides what that means.
func parseDefinition(payload string) workflow.DraftContent {
	var content workflow.DraftContent
	if err := json.Unmarshal([]byte(payload), &content); err != nil {
		return workflow.DraftContent{}.Normalize()
	}
	return content.Normalize()
}
