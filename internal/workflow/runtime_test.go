package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDraft() *Draft {
	return draftWith("Nightly Sync", DraftContent{
		Nodes: []Node{
			{ID: "start", Type: "start", Label: "Start"},
			{ID: "end", Type: "end", Label: "End"},
		},
		Transitions: []Transition{
			{ID: "t1", Source: "start", Target: "end"},
		},
	})
}

func TestStartRejectsInvalidDraft(t *testing.T) {
	runtime := NewRuntime(nil)

	_, err := runtime.Start(draftWith("No Nodes", DraftContent{}))
	require.Error(t, err)
	assert.Regexp(t, `Draft failed validation`, err.Error())
	assert.Contains(t, err.Error(), "At least one node is required")
	assert.Empty(t, runtime.List(), "no instance is created on validation failure")
}

func TestStartCreatesRunningInstance(t *testing.T) {
	runtime := NewRuntime(nil)

	instance, err := runtime.Start(validDraft())
	require.NoError(t, err)

	assert.NotEmpty(t, instance.ID)
	assert.Equal(t, StatusRunning, instance.Status)
	assert.Equal(t, instance.CreatedAt, instance.UpdatedAt)
	assert.Equal(t, 2, instance.Metadata.NodeCount)
	assert.Equal(t, 1, instance.Metadata.TransitionCount)
	assert.Empty(t, instance.Metadata.Warnings)

	got, ok := runtime.Get(instance.ID)
	require.True(t, ok)
	assert.Equal(t, instance, got)
}

func TestStartCapturesValidationWarnings(t *testing.T) {
	runtime := NewRuntime(nil)

	instance, err := runtime.Start(draftWith("Islands", DraftContent{
		Nodes: []Node{{ID: "a"}, {ID: "b"}},
	}))
	require.NoError(t, err)
	assert.Contains(t, instance.Metadata.Warnings, "Multiple nodes present but no transitions defined")
}

func TestPauseResumeComplete(t *testing.T) {
	runtime := NewRuntime(nil)
	instance, err := runtime.Start(validDraft())
	require.NoError(t, err)

	paused, err := runtime.Pause(instance.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, paused.Status)

	resumed, err := runtime.Resume(instance.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, resumed.Status)

	completed, err := runtime.Complete(instance.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, completed.Status)
}

func TestInvalidTransitionsFail(t *testing.T) {
	runtime := NewRuntime(nil)
	instance, err := runtime.Start(validDraft())
	require.NoError(t, err)

	// resume requires paused
	_, err = runtime.Resume(instance.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), instance.ID)
	assert.Contains(t, err.Error(), string(StatusPaused))

	_, err = runtime.Complete(instance.ID)
	require.NoError(t, err)

	// completed is terminal
	_, err = runtime.Pause(instance.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(StatusRunning))
	_, err = runtime.Complete(instance.ID)
	assert.Error(t, err)
}

func TestTransitionUnknownInstance(t *testing.T) {
	runtime := NewRuntime(nil)

	_, err := runtime.Pause("no-such-id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no-such-id")
	assert.Contains(t, err.Error(), "not found")
}

func TestLifecycleEventsReachNotifier(t *testing.T) {
	var events []LifecycleEvent
	runtime := NewRuntime(nil, WithNotifier(NotifierFunc(func(event LifecycleEvent, _ Instance) {
		events = append(events, event)
	})))

	instance, err := runtime.Start(validDraft())
	require.NoError(t, err)
	_, err = runtime.Pause(instance.ID)
	require.NoError(t, err)
	_, err = runtime.Resume(instance.ID)
	require.NoError(t, err)
	_, err = runtime.Complete(instance.ID)
	require.NoError(t, err)

	assert.Equal(t, []LifecycleEvent{
		EventInstanceStarted,
		EventInstancePaused,
		EventInstanceResumed,
		EventInstanceCompleted,
	}, events)
}

func TestListReturnsCopiesInCreationOrder(t *testing.T) {
	runtime := NewRuntime(nil)

	first, err := runtime.Start(validDraft())
	require.NoError(t, err)
	second, err := runtime.Start(validDraft())
	require.NoError(t, err)

	instances := runtime.List()
	require.Len(t, instances, 2)
	ids := []string{instances[0].ID, instances[1].ID}
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)

	// Mutating the returned slice must not affect runtime state.
	instances[0].Status = StatusCompleted
	got, ok := runtime.Get(instances[0].ID)
	require.True(t, ok)
	assert.Equal(t, StatusRunning, got.Status)
}
