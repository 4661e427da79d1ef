package postgres_test

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/phrazzld/asrq/internal/domain"
	"github.com/phrazzld/asrq/internal/platform/migrations"
	"github.com/phrazzld/asrq/internal/platform/postgres"
	"github.com/phrazzld/asrq/internal/store"
	"github.com/phrazzld/asrq/internal/store/storetest"
	"github.com/stretchr/testify/require"
)

// openTestDB connects to the database named by ASRQ_TEST_DATABASE_URL and
// migrates it. Tests are skipped when the variable is unset.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	url := os.Getenv("ASRQ_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("ASRQ_TEST_DATABASE_URL not set; skipping PostgreSQL integration tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.Open(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrations.Up(ctx, db, migrations.DialectPostgres, nil))
	return db
}

func newStores(t *testing.T) (*sql.DB, *postgres.PostgresJobStore, *postgres.PostgresJobQueue) {
	t.Helper()

	db := openTestDB(t)
	_, err := db.Exec(`TRUNCATE jobs, job_queue`)
	require.NoError(t, err)

	return db, postgres.NewPostgresJobStore(db, nil), postgres.NewPostgresJobQueue(db, 20*time.Millisecond, nil)
}

func factory(t *testing.T) (store.JobStore, store.JobQueue) {
	_, s, q := newStores(t)
	return s, q
}

func TestPostgresJobStore(t *testing.T) {
	storetest.RunJobStoreTests(t, factory)
}

func TestPostgresJobQueue(t *testing.T) {
	storetest.RunJobQueueTests(t, factory)
}

func TestPostgresJobStore_WithTx(t *testing.T) {
	db, s, _ := newStores(t)
	ctx := context.Background()

	job, err := domain.NewJob("a.wav", "a.wav")
	require.NoError(t, err)

	err = store.RunInTransaction(ctx, db, nil, func(ctx context.Context, tx *sql.Tx) error {
		scoped := s.WithTx(tx)
		if err := scoped.Create(ctx, job); err != nil {
			return err
		}
		return scoped.UpdateStatus(ctx, job.ID, domain.JobStatusProcessing, nil)
	})
	require.NoError(t, err)

	got, err := s.GetByID(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, domain.JobStatusProcessing, got.Status)
}
