package retention

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiwm/aiwm/internal/logging"
)

func writeAged(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()

	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	stamp := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, stamp, stamp))
	return path
}

func newService(t *testing.T, baseDir string, policy Policy) *Service {
	t.Helper()

	log, err := logging.New(t.TempDir())
	require.NoError(t, err)
	return New(baseDir, policy, log)
}

func TestEnforcePrunesAgedLogs(t *testing.T) {
	baseDir := t.TempDir()
	logsDir := filepath.Join(baseDir, "logs")

	old := writeAged(t, logsDir, "app-2026-01-01.log", 30*24*time.Hour)
	fresh := writeAged(t, logsDir, "app-2026-08-27.log", time.Hour)
	ignored := writeAged(t, logsDir, "notes.txt", 30*24*time.Hour)

	svc := newService(t, baseDir, Policy{LogsDays: 14})
	require.NoError(t, svc.Enforce(context.Background()))

	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.FileExists(t, ignored, "only matching suffixes are pruned")
}

func TestEnforceKeepsNewestBackups(t *testing.T) {
	baseDir := t.TempDir()
	backupsDir := filepath.Join(baseDir, "backups")

	var paths []string
	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("backup-%d.sqlite", i)
		paths = append(paths, writeAged(t, backupsDir, name, time.Duration(5-i)*time.Hour))
	}

	svc := newService(t, baseDir, Policy{BackupsKeep: 2})
	require.NoError(t, svc.Enforce(context.Background()))

	// The two newest (smallest age) survive.
	assert.FileExists(t, paths[4])
	assert.FileExists(t, paths[3])
	assert.NoFileExists(t, paths[2])
	assert.NoFileExists(t, paths[1])
	assert.NoFileExists(t, paths[0])
}

func TestEnforceDisabledLimitsPruneNothing(t *testing.T) {
	baseDir := t.TempDir()
	old := writeAged(t, filepath.Join(baseDir, "logs"), "app.log", 365*24*time.Hour)
	backup := writeAged(t, filepath.Join(baseDir, "backups"), "b.sqlite", 365*24*time.Hour)

	svc := newService(t, baseDir, Policy{})
	require.NoError(t, svc.Enforce(context.Background()))

	assert.FileExists(t, old)
	assert.FileExists(t, backup)
}

func TestEnforceMissingDirsIsANoOp(t *testing.T) {
	svc := newService(t, filepath.Join(t.TempDir(), "does-not-exist"), DefaultPolicy())
	assert.NoError(t, svc.Enforce(context.Background()))
}

func TestEnforceHonorsCancelledContext(t *testing.T) {
	svc := newService(t, t.TempDir(), DefaultPolicy())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, svc.Enforce(ctx))
}
