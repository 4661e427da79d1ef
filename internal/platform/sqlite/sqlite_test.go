package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/asrq/internal/domain"
	"github.com/phrazzld/asrq/internal/platform/migrations"
	"github.com/phrazzld/asrq/internal/store"
	"github.com/phrazzld/asrq/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "nested", "asrq.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrations.Up(ctx, db, migrations.DialectSQLite, nil))
	return db
}

func factory(t *testing.T) (store.JobStore, store.JobQueue) {
	db := openTestDB(t)
	return NewJobStore(db, nil), NewJobQueue(db, 10*time.Millisecond, nil)
}

func TestJobStore(t *testing.T) {
	t.Parallel()
	storetest.RunJobStoreTests(t, factory)
}

func TestJobQueue(t *testing.T) {
	t.Parallel()
	storetest.RunJobQueueTests(t, factory)
}

func TestQueueSurvivesReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "asrq.db")

	db, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, migrations.Up(ctx, db, migrations.DialectSQLite, nil))

	id := uuid.New()
	require.NoError(t, NewJobQueue(db, 0, nil).Enqueue(ctx, id))
	require.NoError(t, db.Close())

	db, err = Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	got, err := NewJobQueue(db, 0, nil).Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestJobStore_WithTx(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	s := NewJobStore(db, nil)
	ctx := context.Background()

	job, err := domain.NewJob("a.wav", "a.wav")
	require.NoError(t, err)

	rollback := errors.New("rollback")
	err = store.RunInTransaction(ctx, db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.WithTx(tx).Create(ctx, job); err != nil {
			return err
		}
		return rollback
	})
	require.ErrorIs(t, err, rollback)

	_, err = s.GetByID(ctx, job.ID)
	assert.ErrorIs(t, err, store.ErrJobNotFound)
}

func TestTimeRoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 30, 45, 123456789, time.FixedZone("X", 3600))
	parsed, err := parseTime(formatTime(now))
	require.NoError(t, err)
	assert.True(t, now.Equal(parsed))
	assert.Equal(t, time.UTC, parsed.Location())

	// fixed width keeps lexical order equal to chronological order
	assert.Less(t, formatTime(now.Truncate(time.Second)), formatTime(now))
	assert.Len(t, formatTime(now.Truncate(time.Second)), len(formatTime(now)))
}

func TestMapError(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, mapError(errors.New("UNIQUE constraint failed: jobs.id")), store.ErrDuplicate)
	assert.ErrorIs(t, mapError(errors.New("CHECK constraint failed: status")), store.ErrInvalidEntity)
	assert.ErrorIs(t, mapError(errors.New("database is locked")), store.ErrTransient)
	assert.ErrorIs(t, mapError(context.Canceled), context.Canceled)
	assert.NoError(t, mapError(nil))
}

func TestRetryOnBusy(t *testing.T) {
	t.Parallel()

	calls := 0
	err := retryOnBusy(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked (5) (SQLITE_BUSY)")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	plain := errors.New("no such table")
	err = retryOnBusy(context.Background(), func() error {
		calls++
		return plain
	})
	assert.Equal(t, plain, err)
	assert.Equal(t, 1, calls)
}

func TestRetryOnBusy_GivesUp(t *testing.T) {
	t.Parallel()

	calls := 0
	busy := errors.New("database is locked (5) (SQLITE_BUSY)")
	err := retryOnBusy(context.Background(), func() error {
		calls++
		return busy
	})
	assert.Equal(t, busy, err)
	assert.Equal(t, busyRetryAttempts, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls = 0
	err = retryOnBusy(ctx, func() error {
		calls++
		return busy
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}
