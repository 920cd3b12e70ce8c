package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsMatchShippedConfiguration(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "sqlite3", cfg.Storage.Driver)
	assert.Equal(t, 60, cfg.Scheduler.IntervalSeconds)
	assert.Equal(t, time.Minute, cfg.Interval())
	assert.Equal(t, "local", cfg.Scheduler.DefaultProfile)
	assert.Equal(t, "22:00", cfg.Notifications.QuietHours.Start)
	assert.Equal(t, "06:00", cfg.Notifications.QuietHours.End)
	assert.Equal(t, []string{"in-app"}, cfg.Notifications.Channels)
	assert.Equal(t, 14, cfg.Retention.Logs.Days)
	assert.Equal(t, 7, cfg.Retention.Telemetry.Days)
	assert.Equal(t, 30, cfg.Retention.SecurityScans.Days)
	assert.Equal(t, 5, cfg.Retention.Backups.Keep)
	assert.Equal(t, filepath.Join(cfg.DataDir, "app.db"), cfg.DatabasePath())
}

func TestLoadReadsFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	payload := `
data_dir: ` + dir + `
scheduler:
  interval_seconds: 5
notifications:
  quiet_hours:
    start: "23:00"
    end: "07:30"
storage:
  driver: postgres
  dsn: "host=localhost dbname=aiwm sslmode=disable"
`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, 5*time.Second, cfg.Interval())
	assert.Equal(t, "23:00", cfg.Notifications.QuietHours.Start)
	assert.Equal(t, "07:30", cfg.Notifications.QuietHours.End)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, "host=localhost dbname=aiwm sslmode=disable", cfg.Storage.DSN)
	// Unset keys keep their defaults.
	assert.Equal(t, 5, cfg.Retention.Backups.Keep)
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSaveRoundTripsPreferenceEdits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := Default()
	cfg.DataDir = dir
	cfg.Notifications.QuietHours.Start = "21:15"
	cfg.Notifications.QuietHours.End = "05:45"
	cfg.Retention.Logs.Days = 3
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "21:15", loaded.Notifications.QuietHours.Start)
	assert.Equal(t, "05:45", loaded.Notifications.QuietHours.End)
	assert.Equal(t, 3, loaded.Retention.Logs.Days)
	assert.Equal(t, []string{"in-app"}, loaded.Notifications.Channels)
}

func TestSaveDefaultsToDataDir(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.DataDir = dir

	require.NoError(t, Save(cfg, ""))
	assert.FileExists(t, filepath.Join(dir, "config.yaml"))
}
