package migrations

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/phrazzld/asrq/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	require.NoError(t, err)
	return n == 1
}

func TestRunSQLite(t *testing.T) {
	t.Parallel()

	db := openSQLite(t)
	ctx := context.Background()
	buf, log := logger.NewTestLogger(t)

	require.NoError(t, Up(ctx, db, DialectSQLite, log))
	assert.True(t, tableExists(t, db, "jobs"))
	assert.True(t, tableExists(t, db, "job_queue"))

	// Applying again is a no-op.
	require.NoError(t, Up(ctx, db, DialectSQLite, log))

	require.NoError(t, Run(ctx, db, DialectSQLite, CommandVersion, log))
	logger.AssertLogField(t, buf, "component", "migrations")

	require.NoError(t, Run(ctx, db, DialectSQLite, CommandDown, log))
	assert.True(t, tableExists(t, db, "jobs"))
	assert.False(t, tableExists(t, db, "job_queue"))

	require.NoError(t, Run(ctx, db, DialectSQLite, CommandReset, log))
	assert.False(t, tableExists(t, db, "jobs"))
}

func TestRunRejectsUnknownInput(t *testing.T) {
	t.Parallel()

	db := openSQLite(t)
	ctx := context.Background()

	assert.Error(t, Run(ctx, db, Dialect("mysql"), CommandUp, nil))
	assert.Error(t, Run(ctx, db, DialectSQLite, "sideways", nil))
}

func TestEmbeddedMigrationsMatch(t *testing.T) {
	t.Parallel()

	pg, err := embedded.ReadDir("postgres")
	require.NoError(t, err)
	lite, err := embedded.ReadDir("sqlite")
	require.NoError(t, err)

	require.Equal(t, len(pg), len(lite))
	for i := range pg {
		assert.Equal(t, pg[i].Name(), lite[i].Name())
	}
}
