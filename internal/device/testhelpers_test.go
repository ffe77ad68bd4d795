package device

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nerrad567/device-inventory/internal/infrastructure/database"
	"github.com/nerrad567/device-inventory/migrations"
)

// setupTestDB opens a migrated SQLite database in a temp directory.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(context.Background(), database.Config{
		Path:        filepath.Join(t.TempDir(), "devices.db"),
		BusyTimeout: 5,
	})
	require.NoError(t, err, "failed to open test database")
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	require.NoError(t, db.Migrate(context.Background(), migrations.FS), "failed to migrate test database")

	return db.DB
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err, "ParseDate(%q)", s)
	return d
}

func datePtr(t *testing.T, s string) *Date {
	t.Helper()
	d := mustDate(t, s)
	return &d
}
