// Package logging provides the append-only structured event log shared by
// the scheduler, stores and retention passes. Events are written as one
// JSON object per line into a dated file under <dataDir>/logs.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event is a single structured log entry.
type Event struct {
	Category string         `json:"category"`
	Action   string         `json:"action"`
	Message  string         `json:"message,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type entry struct {
	Timestamp string `json:"timestamp"`
	Event
}

// Service appends events to the current day's log file. Log is fire and
// forget: write failures never surface to callers.
type Service struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates the log directory under baseDir and opens a service writing
// to app-YYYY-MM-DD.log for the current day.
func New(baseDir string, opts ...Option) (*Service, error) {
	s := &Service{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	logDir := filepath.Join(baseDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}

	stamp := s.now().UTC().Format("2006-01-02")
	s.path = filepath.Join(logDir, fmt.Sprintf("app-%s.log", stamp))
	return s, nil
}

// Log appends the event as a JSON line. Errors are dropped so the log sink
// can never fail its callers.
func (s *Service) Log(event Event) {
	if s == nil {
		return
	}

	payload, err := json.Marshal(entry{
		Timestamp: s.now().UTC().Format(time.RFC3339),
		Event:     event,
	})
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer file.Close()

	_, _ = file.Write(append(payload, '\n'))
}

// Path returns the file backing the current day's log.
func (s *Service) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}
