package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/ebay-seller-sync/internal/ebay"
	"github.com/donaldgifford/ebay-seller-sync/internal/store"
	"github.com/donaldgifford/ebay-seller-sync/internal/tokens"
	"github.com/donaldgifford/ebay-seller-sync/internal/worker"
	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

// quietLogger returns a logger that discards output for tests.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockTokenSource struct {
	mock.Mock
}

func (m *mockTokenSource) GetValidAccessToken(ctx context.Context, req tokens.Request) tokens.Result {
	args := m.Called(ctx, req)
	return args.Get(0).(tokens.Result) //nolint:errcheck // test double
}

func okToken() tokens.Result {
	return tokens.Result{Success: true, AccessToken: "v^1.1#access", Source: tokens.SourceCache}
}

func seedAccount(t *testing.T, s store.Store, name string) *domain.Account {
	t.Helper()
	a := &domain.Account{EbayUserID: name, DisplayName: name, Active: true}
	require.NoError(t, s.UpsertAccount(context.Background(), a))
	return a
}

func runsFor(t *testing.T, s store.Store, accountID string) []domain.WorkerRun {
	t.Helper()
	runs, err := s.ListWorkerRuns(context.Background(), &store.WorkerRunQuery{AccountID: &accountID})
	require.NoError(t, err)
	return runs
}

func newTestDriver(
	s store.Store,
	ts TokenSource,
	routines map[domain.APIFamily]worker.Routine,
	opts ...DriverOption,
) *Driver {
	reg := worker.NewRegistry()
	for f, r := range routines {
		if err := reg.Register(f, r); err != nil {
			panic(err)
		}
	}
	coord := worker.NewCoordinator(s, worker.WithLogger(quietLogger()))
	base := []DriverOption{WithLogger(quietLogger())}
	return NewDriver(coord, ts, reg, append(base, opts...)...)
}

func TestRunCycle_RunsEveryDuePair(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	a := seedAccount(t, s, "A")
	b := seedAccount(t, s, "B")

	ts := &mockTokenSource{}
	ts.On("GetValidAccessToken", mock.Anything, mock.Anything).Return(okToken())

	var calls atomic.Int32
	routine := worker.RoutineFunc(func(_ context.Context, in worker.SyncInput) (worker.Summary, error) {
		calls.Add(1)
		assert.Equal(t, "v^1.1#access", in.AccessToken)
		assert.NoError(t, in.Heartbeat(context.Background()))
		return worker.Summary{Fetched: 3, Stored: 2}, nil
	})

	d := newTestDriver(s, ts, map[domain.APIFamily]worker.Routine{
		domain.FamilyOrders:   routine,
		domain.FamilyFinances: routine,
	})

	sum, err := d.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CycleSummary{Due: 4, Succeeded: 4}, sum)
	assert.Equal(t, int32(4), calls.Load())

	for _, acct := range []*domain.Account{a, b} {
		runs := runsFor(t, s, acct.ID)
		require.Len(t, runs, 2)
		for _, r := range runs {
			assert.Equal(t, domain.RunSuccess, r.Status)
			require.NotNil(t, r.Summary)
			assert.Equal(t, 2, r.Summary.Stored)
		}
	}

	// Nothing is due again within the interval.
	sum, err = d.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.Due)
}

func TestRunCycle_TokenFailureFinishesRunAsError(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	a := seedAccount(t, s, "A")

	ts := &mockTokenSource{}
	ts.On("GetValidAccessToken", mock.Anything, mock.Anything).Return(tokens.Result{
		ErrorCode:    tokens.CodeAuthFailed,
		ErrorMessage: "invalid_grant",
	})

	var called bool
	d := newTestDriver(s, ts, map[domain.APIFamily]worker.Routine{
		domain.FamilyOrders: worker.RoutineFunc(func(context.Context, worker.SyncInput) (worker.Summary, error) {
			called = true
			return worker.Summary{}, nil
		}),
	})

	sum, err := d.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)
	assert.False(t, called, "routine must not run without a token")

	runs := runsFor(t, s, a.ID)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.RunError, runs[0].Status)
	assert.Contains(t, runs[0].ErrorText, "AUTH_FAILED")
}

func TestRunPair_PanicFinishesRunAsError(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	a := seedAccount(t, s, "A")

	ts := &mockTokenSource{}
	ts.On("GetValidAccessToken", mock.Anything, mock.Anything).Return(okToken())

	d := newTestDriver(s, ts, map[domain.APIFamily]worker.Routine{
		domain.FamilyOrders: worker.RoutineFunc(func(context.Context, worker.SyncInput) (worker.Summary, error) {
			panic("boom")
		}),
	})

	res := d.RunPair(context.Background(), a.ID, domain.FamilyOrders)
	assert.Equal(t, PairFailed, res.Outcome)
	assert.Contains(t, res.Error, "boom")

	runs := runsFor(t, s, a.ID)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.RunError, runs[0].Status)

	// The pair is claimable again once the interval has passed; no run is
	// left stuck in running.
	res = d.RunOnce(context.Background(), a.ID, domain.FamilyOrders)
	assert.NotEqual(t, store.ClaimRunning, res.ClaimOutcome)
}

func TestRunPair_RoutineErrorRecorded(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	a := seedAccount(t, s, "A")

	ts := &mockTokenSource{}
	ts.On("GetValidAccessToken", mock.Anything, mock.Anything).Return(okToken())

	d := newTestDriver(s, ts, map[domain.APIFamily]worker.Routine{
		domain.FamilyOrders: worker.RoutineFunc(func(context.Context, worker.SyncInput) (worker.Summary, error) {
			return worker.Summary{Fetched: 5, Stored: 5}, errors.New("page 2: 500")
		}),
	})

	res := d.RunPair(context.Background(), a.ID, domain.FamilyOrders)
	assert.Equal(t, PairFailed, res.Outcome)
	assert.Equal(t, 5, res.Stored)
	require.Error(t, res.Err())

	runs := runsFor(t, s, a.ID)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.RunError, runs[0].Status)
	assert.Equal(t, "page 2: 500", runs[0].ErrorText)
}

func TestRunPair_NoRoutineSkipsWithoutClaim(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	a := seedAccount(t, s, "A")
	ts := &mockTokenSource{}

	d := newTestDriver(s, ts, nil, WithFamilies(domain.FamilyDisputes))
	res := d.RunPair(context.Background(), a.ID, domain.FamilyDisputes)

	assert.Equal(t, PairNoRoutine, res.Outcome)
	assert.Empty(t, runsFor(t, s, a.ID))
	ts.AssertNotCalled(t, "GetValidAccessToken", mock.Anything, mock.Anything)

	sum, err := d.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CycleSummary{Due: 1, Skipped: 1}, sum)
}

func TestRunOnce_IgnoresIntervalButNotLiveRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := store.NewMemoryStore()
	a := seedAccount(t, s, "A")

	ts := &mockTokenSource{}
	ts.On("GetValidAccessToken", mock.Anything, mock.Anything).Return(okToken())

	d := newTestDriver(s, ts, map[domain.APIFamily]worker.Routine{
		domain.FamilyOrders: worker.RoutineFunc(func(context.Context, worker.SyncInput) (worker.Summary, error) {
			return worker.Summary{}, nil
		}),
	})

	require.Equal(t, PairSucceeded, d.RunPair(ctx, a.ID, domain.FamilyOrders).Outcome)

	notDue := d.RunPair(ctx, a.ID, domain.FamilyOrders)
	assert.Equal(t, PairNotClaimed, notDue.Outcome)
	assert.Equal(t, store.ClaimNotDue, notDue.ClaimOutcome)

	forced := d.RunOnce(ctx, a.ID, domain.FamilyOrders)
	assert.Equal(t, PairSucceeded, forced.Outcome)

	// Another holder's live run blocks a forced run.
	other := worker.NewCoordinator(s, worker.WithLogger(quietLogger()))
	h, _, err := other.TryClaim(ctx, a.ID, domain.FamilyOrders, true)
	require.NoError(t, err)
	require.NotNil(t, h)

	blocked := d.RunOnce(ctx, a.ID, domain.FamilyOrders)
	assert.Equal(t, PairNotClaimed, blocked.Outcome)
	assert.Equal(t, store.ClaimRunning, blocked.ClaimOutcome)
}

func TestRunPair_ManualTrigger(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	a := seedAccount(t, s, "A")

	ts := &mockTokenSource{}
	ts.On("GetValidAccessToken", mock.Anything, mock.MatchedBy(func(r tokens.Request) bool {
		return r.TriggeredBy == domain.TriggerManual && r.APIFamily == domain.FamilyOrders
	})).Return(okToken()).Once()

	d := newTestDriver(s, ts, map[domain.APIFamily]worker.Routine{
		domain.FamilyOrders: worker.RoutineFunc(func(context.Context, worker.SyncInput) (worker.Summary, error) {
			return worker.Summary{}, nil
		}),
	})

	d.RunOnce(context.Background(), a.ID, domain.FamilyOrders)
	ts.AssertExpectations(t)
}

func TestRunCycle_DailyLimitStopsRemainingPairs(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	for i := range 5 {
		seedAccount(t, s, fmt.Sprintf("acct-%d", i))
	}

	ts := &mockTokenSource{}
	ts.On("GetValidAccessToken", mock.Anything, mock.Anything).Return(okToken())

	var calls atomic.Int32
	d := newTestDriver(s, ts, map[domain.APIFamily]worker.Routine{
		domain.FamilyOrders: worker.RoutineFunc(func(context.Context, worker.SyncInput) (worker.Summary, error) {
			calls.Add(1)
			return worker.Summary{}, fmt.Errorf("listing orders: %w", ebay.ErrDailyLimitReached)
		}),
	}, WithConcurrency(1))

	sum, err := d.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Due)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 4, sum.Skipped)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRunCycle_CancelledContextClaimsNothing(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	a := seedAccount(t, s, "A")
	ts := &mockTokenSource{}

	d := newTestDriver(s, ts, map[domain.APIFamily]worker.Routine{
		domain.FamilyOrders: worker.RoutineFunc(func(context.Context, worker.SyncInput) (worker.Summary, error) {
			return worker.Summary{}, nil
		}),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := d.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.NotClaimed)
	assert.Empty(t, runsFor(t, s, a.ID))
}

func TestDriver_FamiliesDefaultsToRegistry(t *testing.T) {
	t.Parallel()

	noop := worker.RoutineFunc(func(context.Context, worker.SyncInput) (worker.Summary, error) {
		return worker.Summary{}, nil
	})
	d := newTestDriver(store.NewMemoryStore(), &mockTokenSource{}, map[domain.APIFamily]worker.Routine{
		domain.FamilyFinances: noop,
		domain.FamilyOrders:   noop,
	})
	assert.Equal(t, []domain.APIFamily{domain.FamilyOrders, domain.FamilyFinances}, d.Families())

	d = newTestDriver(store.NewMemoryStore(), &mockTokenSource{}, nil, WithFamilies(domain.FamilyOffers))
	assert.Equal(t, []domain.APIFamily{domain.FamilyOffers}, d.Families())
}
