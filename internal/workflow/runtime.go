package workflow

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InstanceStatus is the lifecycle state of a runtime instance.
type InstanceStatus string

const (
	StatusRunning   InstanceStatus = "running"
	StatusPaused    InstanceStatus = "paused"
	StatusCompleted InstanceStatus = "completed"
)

// LifecycleEvent identifies a runtime state change observable by a Notifier.
type LifecycleEvent string

const (
	EventInstanceStarted   LifecycleEvent = "instance-started"
	EventInstancePaused    LifecycleEvent = "instance-paused"
	EventInstanceResumed   LifecycleEvent = "instance-resumed"
	EventInstanceCompleted LifecycleEvent = "instance-completed"
)

// InstanceMetadata is the snapshot captured when an instance starts.
type InstanceMetadata struct {
	NodeCount       int      `json:"nodeCount"`
	TransitionCount int      `json:"transitionCount"`
	Warnings        []string `json:"warnings"`
}

// Instance is an ephemeral execution record. Instances are never persisted;
// they live in the owning Runtime for the process lifetime.
type Instance struct {
	ID        string           `json:"id"`
	DraftID   int64            `json:"draftId"`
	Status    InstanceStatus   `json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
	Metadata  InstanceMetadata `json:"metadata"`
}

// Notifier receives lifecycle events. Implementations must not block for
// long; delivery happens inline with the state change.
type Notifier interface {
	InstanceEvent(event LifecycleEvent, instance Instance)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(LifecycleEvent, Instance)

// InstanceEvent implements Notifier.
func (f NotifierFunc) InstanceEvent(event LifecycleEvent, instance Instance) {
	f(event, instance)
}

// Runtime owns the instance map and is the only mutator of it. All access
// goes through its methods; callers receive copies, never shared pointers.
type Runtime struct {
	mu        sync.RWMutex
	instances map[string]*Instance
	engine    *Engine
	notifier  Notifier
	now       func() time.Time
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithNotifier subscribes a lifecycle event receiver.
func WithNotifier(notifier Notifier) RuntimeOption {
	return func(r *Runtime) {
		r.notifier = notifier
	}
}

// WithRuntimeClock overrides the time source, used by tests.
func WithRuntimeClock(now func() time.Time) RuntimeOption {
	return func(r *Runtime) {
		r.now = now
	}
}

// NewRuntime creates a runtime validating drafts with the given engine.
// A nil engine gets the default rule set.
func NewRuntime(engine *Engine, opts ...RuntimeOption) *Runtime {
	if engine == nil {
		engine = NewEngine()
	}
	r := &Runtime{
		instances: make(map[string]*Instance),
		engine:    engine,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start validates the draft and, if valid, registers a new running instance.
// No instance is created when validation fails.
func (r *Runtime) Start(draft *Draft) (Instance, error) {
	validation := r.engine.Validate(draft)
	if !validation.Valid {
		return Instance{}, fmt.Errorf("Draft failed validation: %s", strings.Join(validation.Errors, ", "))
	}

	now := r.now().UTC()
	instance := Instance{
		ID:        uuid.NewString(),
		DraftID:   draft.ID,
		Status:    StatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata: InstanceMetadata{
			NodeCount:       len(draft.Nodes),
			TransitionCount: len(draft.Transitions),
			Warnings:        validation.Warnings,
		},
	}

	r.mu.Lock()
	stored := instance
	r.instances[instance.ID] = &stored
	r.mu.Unlock()

	r.emit(EventInstanceStarted, instance)
	return instance, nil
}

// Pause transitions a running instance to paused.
func (r *Runtime) Pause(id string) (Instance, error) {
	return r.transition(id, StatusRunning, StatusPaused, EventInstancePaused)
}

// Resume transitions a paused instance back to running.
func (r *Runtime) Resume(id string) (Instance, error) {
	return r.transition(id, StatusPaused, StatusRunning, EventInstanceResumed)
}

// Complete transitions a running instance to completed. Completed is
// terminal; no further transitions are accepted.
func (r *Runtime) Complete(id string) (Instance, error) {
	return r.transition(id, StatusRunning, StatusCompleted, EventInstanceCompleted)
}

// Get returns a copy of the instance with the given id.
func (r *Runtime) Get(id string) (Instance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instance, ok := r.instances[id]
	if !ok {
		return Instance{}, false
	}
	return *instance, true
}

// List returns copies of all instances ordered by creation time.
func (r *Runtime) List() []Instance {
	r.mu.RLock()
	instances := make([]Instance, 0, len(r.instances))
	for _, instance := range r.instances {
		instances = append(instances, *instance)
	}
	r.mu.RUnlock()

	sort.Slice(instances, func(i, j int) bool {
		if instances[i].CreatedAt.Equal(instances[j].CreatedAt) {
			return instances[i].ID < instances[j].ID
		}
		return instances[i].CreatedAt.Before(instances[j].CreatedAt)
	})
	return instances
}

func (r *Runtime) transition(id string, required, next InstanceStatus, event LifecycleEvent) (Instance, error) {
	r.mu.Lock()
	instance, ok := r.instances[id]
	if !ok {
		r.mu.Unlock()
		return Instance{}, fmt.Errorf("runtime instance %s not found", id)
	}
	if instance.Status != required {
		status := instance.Status
		r.mu.Unlock()
		return Instance{}, fmt.Errorf("instance %s must be %s to transition to %s (currently %s)", id, required, next, status)
	}

	instance.Status = next
	instance.UpdatedAt = r.now().UTC()
	updated := *instance
	r.mu.Unlock()

	r.emit(event, updated)
	return updated, nil
}

func (r *Runtime) emit(event LifecycleEvent, instance Instance) {
	if r.notifier != nil {
		r.notifier.InstanceEvent(event, instance)
	}
}
