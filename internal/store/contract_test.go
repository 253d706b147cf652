package store_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/ebay-seller-sync/internal/store"
	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

// runStoreContract exercises behavior every Store implementation must share.
// newStore must return an empty, migrated store.
func runStoreContract(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Helper()

	t.Run("account lifecycle", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a := seedAccount(t, s, "seller-a")
		got, err := s.GetAccount(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "seller-a", got.EbayUserID)
		assert.True(t, got.Active)

		require.NoError(t, s.MarkNeedsReconnect(ctx, a.ID, "AUTH_FAILED"))
		n, err := s.CountNeedsReconnect(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		require.NoError(t, s.SetAccountActive(ctx, a.ID, false))
		active, err := s.ListAccounts(ctx, true)
		require.NoError(t, err)
		assert.Empty(t, active)

		_, err = s.GetAccount(ctx, "00000000-0000-0000-0000-000000000000")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("token refresh bookkeeping", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a := seedAccount(t, s, "seller-b")
		tok := seedToken(t, s, a.ID, time.Now().Add(time.Hour))

		require.NoError(t, s.MarkNeedsReconnect(ctx, a.ID, "AUTH_FAILED"))
		require.NoError(t, s.SaveTokenRefreshError(ctx, tok.ID, "NETWORK_ERROR", "timeout"))

		got, err := s.GetToken(ctx, a.ID, domain.EnvProduction)
		require.NoError(t, err)
		require.NotNil(t, got.LastRefreshErrorCode)
		assert.Equal(t, "NETWORK_ERROR", *got.LastRefreshErrorCode)

		newExpiry := time.Now().Add(2 * time.Hour).Truncate(time.Microsecond)
		refreshedAt := time.Now().Truncate(time.Microsecond)
		require.NoError(t, s.SaveTokenRefresh(ctx, tok.ID, &domain.TokenRefresh{
			AccessToken:     "ENC:v1:new",
			AccessExpiresAt: newExpiry,
			RefreshedAt:     refreshedAt,
		}))

		got, err = s.GetToken(ctx, a.ID, domain.EnvProduction)
		require.NoError(t, err)
		assert.Equal(t, "ENC:v1:new", *got.AccessToken)
		assert.Equal(t, "ENC:v1:refresh", *got.RefreshToken, "refresh token kept when not rotated")
		assert.True(t, newExpiry.Equal(*got.AccessExpiresAt))
		assert.Nil(t, got.LastRefreshError)
		assert.Nil(t, got.LastRefreshErrorCode)

		acct, err := s.GetAccount(ctx, a.ID)
		require.NoError(t, err)
		assert.False(t, acct.NeedsReconnect)

		err = s.SaveTokenRefresh(ctx, "00000000-0000-0000-0000-000000000000", &domain.TokenRefresh{})
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("refresh candidates", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := time.Now()

		expiring := seedAccount(t, s, "expiring")
		seedToken(t, s, expiring.ID, now.Add(5*time.Minute))

		fresh := seedAccount(t, s, "fresh")
		seedToken(t, s, fresh.ID, now.Add(2*time.Hour))

		retry := seedAccount(t, s, "retry")
		retryTok := seedToken(t, s, retry.ID, now.Add(2*time.Hour))
		require.NoError(t, s.SaveTokenRefreshError(ctx, retryTok.ID, "NETWORK_ERROR", "timeout"))

		terminal := seedAccount(t, s, "terminal")
		termTok := seedToken(t, s, terminal.ID, now.Add(-time.Minute))
		require.NoError(t, s.SaveTokenRefreshError(ctx, termTok.ID, "AUTH_FAILED", "invalid_grant"))

		inactive := seedAccount(t, s, "inactive")
		seedToken(t, s, inactive.ID, now.Add(time.Minute))
		require.NoError(t, s.SetAccountActive(ctx, inactive.ID, false))

		got, err := s.ListRefreshCandidates(ctx, store.RefreshCandidateQuery{
			Environment:       domain.EnvProduction,
			ExpiringBefore:    now.Add(15 * time.Minute),
			ExcludeErrorCodes: []string{"AUTH_FAILED", "NO_REFRESH_TOKEN"},
		})
		require.NoError(t, err)

		ids := make([]string, 0, len(got))
		for _, tok := range got {
			ids = append(ids, tok.AccountID)
		}
		assert.ElementsMatch(t, []string{expiring.ID, retry.ID}, ids)
	})

	t.Run("refresh logs", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a := seedAccount(t, s, "logs")
		now := time.Now()

		for i := range 3 {
			require.NoError(t, s.InsertTokenRefreshLog(ctx, &domain.TokenRefreshLog{
				AccountID:   a.ID,
				Environment: domain.EnvProduction,
				TriggeredBy: domain.TriggerScheduled,
				StartedAt:   now.Add(time.Duration(i) * time.Minute),
				FinishedAt:  now.Add(time.Duration(i) * time.Minute),
				Success:     i != 1,
			}))
		}

		logs, err := s.ListTokenRefreshLogs(ctx, a.ID, 2)
		require.NoError(t, err)
		require.Len(t, logs, 2)
		assert.True(t, logs[0].StartedAt.After(logs[1].StartedAt))

		deleted, err := s.DeleteTokenRefreshLogsBefore(ctx, now.Add(90*time.Second))
		require.NoError(t, err)
		assert.Equal(t, 2, deleted)
	})

	t.Run("claim lifecycle", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a := seedAccount(t, s, "claims")
		now := time.Now().Truncate(time.Microsecond)

		params := store.ClaimParams{
			AccountID:   a.ID,
			APIFamily:   domain.FamilyOrders,
			Holder:      "test",
			Now:         now,
			DueBefore:   now.Add(-5 * time.Minute),
			StaleBefore: now.Add(-15 * time.Minute),
		}

		res, err := s.ClaimWorkerRun(ctx, params)
		require.NoError(t, err)
		require.Equal(t, store.ClaimAcquired, res.Outcome)
		require.NotNil(t, res.Run)

		res2, err := s.ClaimWorkerRun(ctx, params)
		require.NoError(t, err)
		assert.Equal(t, store.ClaimRunning, res2.Outcome)
		assert.Nil(t, res2.Run)

		ok, err := s.HeartbeatWorkerRun(ctx, res.Run.ID, now.Add(time.Minute))
		require.NoError(t, err)
		assert.True(t, ok)

		finished, err := s.FinishWorkerRun(ctx, res.Run.ID, &domain.RunCompletion{
			Status:            domain.RunSuccess,
			Summary:           domain.RunSummary{Fetched: 3, Stored: 3},
			NextCursor:        &domain.Cursor{Type: "lastmodifieddate", Value: "2026-03-01T00:00:00Z"},
			BackfillCompleted: true,
		}, now.Add(2*time.Minute))
		require.NoError(t, err)
		assert.True(t, finished)

		st, err := s.GetSyncState(ctx, a.ID, domain.FamilyOrders)
		require.NoError(t, err)
		assert.Equal(t, "lastmodifieddate", st.CursorType)
		assert.True(t, st.BackfillCompleted)
		require.NotNil(t, st.LastRunAt)

		// Finished just now: not due until the interval elapses.
		params.Now = now.Add(3 * time.Minute)
		params.DueBefore = params.Now.Add(-5 * time.Minute)
		res3, err := s.ClaimWorkerRun(ctx, params)
		require.NoError(t, err)
		assert.Equal(t, store.ClaimNotDue, res3.Outcome)

		params.Force = true
		res4, err := s.ClaimWorkerRun(ctx, params)
		require.NoError(t, err)
		assert.Equal(t, store.ClaimAcquired, res4.Outcome)

		// Finishing twice is rejected.
		again, err := s.FinishWorkerRun(ctx, res.Run.ID, &domain.RunCompletion{Status: domain.RunError}, now)
		require.NoError(t, err)
		assert.False(t, again)

		runs, err := s.ListWorkerRuns(ctx, &store.WorkerRunQuery{AccountID: &a.ID})
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, domain.RunRunning, runs[0].Status)
		require.NotNil(t, runs[1].Summary)
		assert.Equal(t, 3, runs[1].Summary.Stored)
	})

	t.Run("concurrent claims yield one run", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a := seedAccount(t, s, "race")
		now := time.Now()

		const workers = 8
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			acquired int
		)
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := s.ClaimWorkerRun(ctx, store.ClaimParams{
					AccountID:   a.ID,
					APIFamily:   domain.FamilyOrders,
					Holder:      "racer",
					Now:         now,
					DueBefore:   now.Add(-5 * time.Minute),
					StaleBefore: now.Add(-15 * time.Minute),
				})
				assert.NoError(t, err)
				if err == nil && res.Outcome == store.ClaimAcquired {
					mu.Lock()
					acquired++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, acquired)
	})

	t.Run("stale run is reclaimed", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a := seedAccount(t, s, "stale")
		start := time.Now().Add(-time.Hour).Truncate(time.Microsecond)

		first, err := s.ClaimWorkerRun(ctx, store.ClaimParams{
			AccountID: a.ID, APIFamily: domain.FamilyFinances, Holder: "crashed",
			Now: start, DueBefore: start, StaleBefore: start.Add(-15 * time.Minute),
		})
		require.NoError(t, err)
		require.Equal(t, store.ClaimAcquired, first.Outcome)

		now := start.Add(20 * time.Minute)
		second, err := s.ClaimWorkerRun(ctx, store.ClaimParams{
			AccountID: a.ID, APIFamily: domain.FamilyFinances, Holder: "survivor",
			Now: now, DueBefore: now.Add(-5 * time.Minute), StaleBefore: now.Add(-15 * time.Minute),
		})
		require.NoError(t, err)
		require.Equal(t, store.ClaimAcquired, second.Outcome)
		assert.Equal(t, 1, second.StaleReclaimed)

		ok, err := s.HeartbeatWorkerRun(ctx, first.Run.ID, now)
		require.NoError(t, err)
		assert.False(t, ok, "reclaimed run can no longer heartbeat")
	})

	t.Run("disabled pair is not claimable", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a := seedAccount(t, s, "disabled")
		now := time.Now()

		require.NoError(t, s.SetSyncEnabled(ctx, a.ID, domain.FamilyOrders, false))
		res, err := s.ClaimWorkerRun(ctx, store.ClaimParams{
			AccountID: a.ID, APIFamily: domain.FamilyOrders, Holder: "x",
			Now: now, DueBefore: now, StaleBefore: now.Add(-15 * time.Minute), Force: true,
		})
		require.NoError(t, err)
		assert.Equal(t, store.ClaimDisabled, res.Outcome)
	})

	t.Run("due work", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := time.Now()

		a := seedAccount(t, s, "due-a")
		b := seedAccount(t, s, "due-b")
		reconnect := seedAccount(t, s, "due-reconnect")
		require.NoError(t, s.MarkNeedsReconnect(ctx, reconnect.ID, "NO_REFRESH_TOKEN"))

		require.NoError(t, s.SetSyncEnabled(ctx, b.ID, domain.FamilyFinances, false))
		_, err := s.ClaimWorkerRun(ctx, store.ClaimParams{
			AccountID: a.ID, APIFamily: domain.FamilyOrders, Holder: "x",
			Now: now, DueBefore: now, StaleBefore: now.Add(-15 * time.Minute),
		})
		require.NoError(t, err)

		items, err := s.ListDueWork(ctx,
			[]domain.APIFamily{domain.FamilyOrders, domain.FamilyFinances},
			now.Add(-5*time.Minute), now.Add(-15*time.Minute),
		)
		require.NoError(t, err)
		assert.ElementsMatch(t, []domain.WorkItem{
			{AccountID: a.ID, APIFamily: domain.FamilyFinances},
			{AccountID: b.ID, APIFamily: domain.FamilyOrders},
		}, items)
	})

	t.Run("cleanup", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a := seedAccount(t, s, "cleanup")
		old := time.Now().Add(-40 * 24 * time.Hour).Truncate(time.Microsecond)

		res, err := s.ClaimWorkerRun(ctx, store.ClaimParams{
			AccountID: a.ID, APIFamily: domain.FamilyOrders, Holder: "old",
			Now: old, DueBefore: old, StaleBefore: old.Add(-time.Hour),
		})
		require.NoError(t, err)
		_, err = s.FinishWorkerRun(ctx, res.Run.ID, &domain.RunCompletion{Status: domain.RunSuccess}, old)
		require.NoError(t, err)

		stuck, err := s.ClaimWorkerRun(ctx, store.ClaimParams{
			AccountID: a.ID, APIFamily: domain.FamilyFinances, Holder: "stuck",
			Now: old, DueBefore: old, StaleBefore: old.Add(-time.Hour),
		})
		require.NoError(t, err)
		require.NotNil(t, stuck.Run)

		now := time.Now()
		marked, err := s.MarkStaleWorkerRuns(ctx, now.Add(-15*time.Minute), now)
		require.NoError(t, err)
		assert.Equal(t, 1, marked)

		deleted, err := s.DeleteWorkerRunsBefore(ctx, now.Add(-30*24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, deleted)
	})

	t.Run("synced records upsert", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a := seedAccount(t, s, "records")

		orders := []domain.Order{
			{AccountID: a.ID, OrderID: "1", Total: 10, Currency: "USD", Raw: json.RawMessage(`{"orderId":"1"}`)},
			{AccountID: a.ID, OrderID: "2", Total: 20, Currency: "USD"},
		}
		n, err := s.UpsertOrders(ctx, orders)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = s.UpsertOrders(ctx, orders[:1])
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = s.UpsertFinanceTransactions(ctx, []domain.FinanceTransaction{
			{AccountID: a.ID, TransactionID: "T1", Amount: -4.25, Currency: "USD"},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("job runs", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id, err := s.InsertJobRun(ctx, "token_refresh")
		require.NoError(t, err)
		require.NoError(t, s.CompleteJobRun(ctx, id, "succeeded", "", 4))

		runs, err := s.ListJobRuns(ctx, "token_refresh", 10)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, "succeeded", runs[0].Status)
		require.NotNil(t, runs[0].RowsAffected)
		assert.Equal(t, 4, *runs[0].RowsAffected)

		latest, err := s.ListLatestJobRuns(ctx)
		require.NoError(t, err)
		assert.Len(t, latest, 1)
	})
}

func seedAccount(t *testing.T, s store.Store, ebayUser string) *domain.Account {
	t.Helper()
	a := &domain.Account{EbayUserID: ebayUser, DisplayName: ebayUser, Active: true}
	require.NoError(t, s.UpsertAccount(context.Background(), a))
	return a
}

func seedToken(t *testing.T, s store.Store, accountID string, expiresAt time.Time) *domain.Token {
	t.Helper()
	access := "ENC:v1:access"
	refresh := "ENC:v1:refresh"
	exp := expiresAt.Truncate(time.Microsecond)
	tok := &domain.Token{
		AccountID:       accountID,
		Environment:     domain.EnvProduction,
		AccessToken:     &access,
		RefreshToken:    &refresh,
		AccessExpiresAt: &exp,
	}
	require.NoError(t, s.UpsertToken(context.Background(), tok))
	return tok
}
