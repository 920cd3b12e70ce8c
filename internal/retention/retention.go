// Package retention prunes aged artifacts under the application data dir:
// logs, telemetry exports and security scan reports by age, database
// backups by count. The scheduler runner invokes Enforce once per poll.
package retention

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aiwm/aiwm/internal/logging"
)

// Policy is the set of retention limits. Zero or negative values disable
// the corresponding prune.
type Policy struct {
	LogsDays          int
	TelemetryDays     int
	SecurityScansDays int
	BackupsKeep       int
}

// DefaultPolicy mirrors the shipped configuration.
func DefaultPolicy() Policy {
	return Policy{LogsDays: 14, TelemetryDays: 7, SecurityScansDays: 30, BackupsKeep: 5}
}

// Service enforces the policy against a data dir.
type Service struct {
	baseDir string
	policy  Policy
	log     *logging.Service
	now     func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithRetentionClock overrides the time source, used by tests.
func WithRetentionClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// New creates a retention service rooted at baseDir.
func New(baseDir string, policy Policy, log *logging.Service, opts ...ServiceOption) *Service {
	s := &Service{baseDir: baseDir, policy: policy, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enforce runs one cleanup pass. Individual file failures are logged and
// skipped; Enforce itself only fails on context cancellation.
func (s *Service) Enforce(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.pruneByAge(filepath.Join(s.baseDir, "logs"), s.policy.LogsDays, ".log", "logs")
	s.pruneByAge(filepath.Join(s.baseDir, "telemetry"), s.policy.TelemetryDays, ".json", "telemetry")
	s.pruneByAge(filepath.Join(s.baseDir, "security"), s.policy.SecurityScansDays, ".json", "security")
	s.pruneByCount(filepath.Join(s.baseDir, "backups"), s.policy.BackupsKeep, ".sqlite", "backups")
	return nil
}

func (s *Service) pruneByAge(dir string, maxAgeDays int, suffix, category string) {
	if maxAgeDays <= 0 {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	threshold := s.now().Add(-time.Duration(maxAgeDays) * 24 * time.Hour)
	var removed []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		full := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			s.pruneError(full, category, err)
			continue
		}
		if info.ModTime().After(threshold) {
			continue
		}
		if err := os.Remove(full); err != nil {
			s.pruneError(full, category, err)
			continue
		}
		removed = append(removed, full)
	}

	if len(removed) > 0 {
		s.log.Log(logging.Event{
			Category: "retention",
			Action:   "prune-age",
			Metadata: map[string]any{"category": category, "removed": removed},
		})
	}
}

func (s *Service) pruneByCount(dir string, keep int, suffix, category string) {
	if keep <= 0 {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var candidates []candidate
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{
			path:    filepath.Join(dir, entry.Name()),
			modTime: info.ModTime(),
		})
	}
	if len(candidates) <= keep {
		return
	}

	// Newest first; everything past keep goes.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].modTime.After(candidates[j].modTime)
	})

	var removed []string
	for _, c := range candidates[keep:] {
		if err := os.Remove(c.path); err != nil {
			s.pruneError(c.path, category, err)
			continue
		}
		removed = append(removed, c.path)
	}

	if len(removed) > 0 {
		s.log.Log(logging.Event{
			Category: "retention",
			Action:   "prune-count",
			Metadata: map[string]any{"category": category, "removed": removed},
		})
	}
}

func (s *Service) pruneError(path, category string, err error) {
	s.log.Log(logging.Event{
		Category: "retention",
		Action:   "prune-error",
		Metadata: map[string]any{"target": path, "sourceCategory": category, "error": err.Error()},
	})
}
