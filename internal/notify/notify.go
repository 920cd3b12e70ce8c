// Package notify dispatches scheduler notifications, honoring the quiet
// hours window from the user's notification preferences. Dispatch is
// modeled as structured log events; real channel delivery is a GUI concern.
package notify

import (
	"strconv"
	"strings"
	"time"

	"github.com/aiwm/aiwm/internal/logging"
)

// QuietHours is a time-of-day window, HH:mm strings.
type QuietHours struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Active reports whether now falls inside the window. An empty window
// (start == end) is never active, start>end wraps midnight, and malformed
// time strings disable the window entirely.
func (q QuietHours) Active(now time.Time) bool {
	startMinutes, ok := minuteOfDay(q.Start)
	if !ok {
		return false
	}
	endMinutes, ok := minuteOfDay(q.End)
	if !ok {
		return false
	}
	if startMinutes == endMinutes {
		return false
	}

	minutes := now.Hour()*60 + now.Minute()
	if startMinutes < endMinutes {
		return minutes >= startMinutes && minutes < endMinutes
	}
	return minutes >= startMinutes || minutes < endMinutes
}

func minuteOfDay(value string) (int, bool) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	hours, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, false
	}
	return hours*60 + minutes, true
}

// Preferences are the user's notification settings.
type Preferences struct {
	QuietHours QuietHours `json:"quietHours"`
	Channels   []string   `json:"channels"`
}

// DefaultPreferences mirror the shipped configuration.
func DefaultPreferences() Preferences {
	return Preferences{
		QuietHours: QuietHours{Start: "22:00", End: "06:00"},
		Channels:   []string{"in-app"},
	}
}

// Dispatcher sends schedule notifications. Preferences are resolved per
// dispatch so a settings change applies immediately.
type Dispatcher struct {
	prefs func() Preferences
	log   *logging.Service
	now   func() time.Time
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatchClock overrides the time source, used by tests.
func WithDispatchClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// NewDispatcher creates a dispatcher. A nil prefs func uses the defaults.
func NewDispatcher(prefs func() Preferences, log *logging.Service, opts ...DispatcherOption) *Dispatcher {
	if prefs == nil {
		prefs = DefaultPreferences
	}
	d := &Dispatcher{prefs: prefs, log: log, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ScheduleEvent notifies about a scheduled run ("started" or "failed").
// Inside quiet hours the attempt is recorded as a muted log event instead.
func (d *Dispatcher) ScheduleEvent(scheduleID, workflowID int64, workflowName, event string) {
	prefs := d.prefs()

	if prefs.QuietHours.Active(d.now()) {
		d.log.Log(logging.Event{
			Category: "notifications",
			Action:   "scheduler-muted",
			Metadata: map[string]any{
				"scheduleId":   scheduleID,
				"workflowId":   workflowID,
				"workflowName": workflowName,
				"event":        event,
				"quietHours":   prefs.QuietHours,
			},
		})
		return
	}

	d.log.Log(logging.Event{
		Category: "notifications",
		Action:   "scheduler-event",
		Metadata: map[string]any{
			"scheduleId":   scheduleID,
			"workflowId":   workflowID,
			"workflowName": workflowName,
			"event":        event,
			"channels":     prefs.Channels,
		},
	})
}
