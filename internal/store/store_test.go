package store

import (
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/aiwm/aiwm/internal/logging"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := Open(Config{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "app.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testLogger(t *testing.T) *logging.Service {
	t.Helper()

	svc, err := logging.New(t.TempDir())
	require.NoError(t, err)
	return svc
}
