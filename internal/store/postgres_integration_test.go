//go:build integration

package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/donaldgifford/ebay-seller-sync/internal/store"
	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

func setupPostgres(t *testing.T) *store.PostgresStore {
	t.Helper()
	s, _ := setupPostgresDSN(t)
	return s
}

// setupPostgresDSN also returns the connection string for tests that need
// to bypass the store.
func setupPostgresDSN(t *testing.T) (*store.PostgresStore, string) {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("ess_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := store.NewPostgresStore(ctx, connStr, store.WithMaxConns(16))
	require.NoError(t, err)

	t.Cleanup(func() {
		s.Close()
	})

	require.NoError(t, s.Migrate(ctx))

	return s, connStr
}

func TestPostgresStore_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) store.Store {
		return setupPostgres(t)
	})
}

func TestPostgresStore_MigrateIdempotent(t *testing.T) {
	s := setupPostgres(t)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Ping(context.Background()))
}

func TestPostgresStore_ClaimRejectsUnknownAccount(t *testing.T) {
	s := setupPostgres(t)
	now := time.Now()

	_, err := s.ClaimWorkerRun(context.Background(), store.ClaimParams{
		AccountID:   "00000000-0000-0000-0000-000000000000",
		APIFamily:   domain.FamilyOrders,
		Holder:      "x",
		Now:         now,
		DueBefore:   now,
		StaleBefore: now.Add(-15 * time.Minute),
	})
	require.Error(t, err)
}

func TestPostgresStore_RunningIndexRejectsSecondRunningRow(t *testing.T) {
	s, connStr := setupPostgresDSN(t)
	ctx := context.Background()
	a := seedAccount(t, s, "index")
	now := time.Now()

	params := store.ClaimParams{
		AccountID:   a.ID,
		APIFamily:   domain.FamilyOrders,
		Holder:      "first",
		Now:         now,
		DueBefore:   now,
		StaleBefore: now.Add(-15 * time.Minute),
		Force:       true,
	}
	first, err := s.ClaimWorkerRun(ctx, params)
	require.NoError(t, err)
	require.Equal(t, store.ClaimAcquired, first.Outcome)

	params.Holder = "second"
	second, err := s.ClaimWorkerRun(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, store.ClaimRunning, second.Outcome)

	// A writer that skips the claim transaction still cannot add a second
	// running row for the pair.
	conn, err := pgx.Connect(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(ctx) })

	_, err = conn.Exec(ctx,
		`INSERT INTO worker_runs (account_id, api_family, status, holder)
		 VALUES ($1, $2, 'running', 'rogue')`,
		a.ID, string(domain.FamilyOrders),
	)
	var pgErr *pgconn.PgError
	require.True(t, errors.As(err, &pgErr), "want a postgres error, got %v", err)
	assert.Equal(t, "23505", pgErr.Code)
	assert.Equal(t, "idx_worker_runs_one_running", pgErr.ConstraintName)

	runs, err := s.ListWorkerRuns(ctx, &store.WorkerRunQuery{
		AccountID: &a.ID,
		Statuses:  []domain.RunStatus{domain.RunRunning},
	})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
