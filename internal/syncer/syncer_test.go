package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/ebay-seller-sync/internal/ebay"
	"github.com/donaldgifford/ebay-seller-sync/internal/store"
	"github.com/donaldgifford/ebay-seller-sync/internal/worker"
	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeSellAPI serves fixed result sets by offset.
type fakeSellAPI struct {
	mu       sync.Mutex
	orders   []ebay.Order
	txns     []ebay.FinanceTransaction
	requests []ebay.PageRequest
	err      error
}

func (f *fakeSellAPI) GetOrders(_ context.Context, _ string, req ebay.PageRequest) (*ebay.OrdersPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	items, more := window(f.orders, req)
	return &ebay.OrdersPage{Orders: items, Total: len(f.orders), Offset: req.Offset, HasMore: more}, nil
}

func (f *fakeSellAPI) GetTransactions(
	_ context.Context,
	_ string,
	req ebay.PageRequest,
) (*ebay.TransactionsPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	items, more := window(f.txns, req)
	return &ebay.TransactionsPage{Transactions: items, Total: len(f.txns), Offset: req.Offset, HasMore: more}, nil
}

func window[T any](all []T, req ebay.PageRequest) ([]T, bool) {
	start := min(req.Offset, len(all))
	end := min(start+req.Limit, len(all))
	return all[start:end], end < len(all)
}

func makeOrders(n int) []ebay.Order {
	out := make([]ebay.Order, n)
	for i := range out {
		out[i] = ebay.Order{
			OrderID:          fmt.Sprintf("order-%d", i),
			LastModifiedDate: testNow.Add(-time.Duration(n-i) * time.Hour).Format(time.RFC3339),
		}
	}
	return out
}

func testOptions(pageSize, maxPages int) Options {
	return Options{
		PageSize: pageSize,
		MaxPages: maxPages,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		NowFunc:  func() time.Time { return testNow },
	}
}

func TestOrdersRoutine_BackfillCompletes(t *testing.T) {
	t.Parallel()

	api := &fakeSellAPI{orders: makeOrders(5)}
	s := store.NewMemoryStore()
	r := NewOrdersRoutine(api, s, testOptions(2, 10))

	var beats int
	sum, err := r.Sync(context.Background(), worker.SyncInput{
		AccountID:   "acct-1",
		APIFamily:   domain.FamilyOrders,
		AccessToken: "token",
		Heartbeat: func(context.Context) error {
			beats++
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Fetched)
	assert.Equal(t, 5, sum.Stored)
	assert.True(t, sum.BackfillCompleted)
	assert.Equal(t, 3, beats, "one heartbeat per page")
	assert.Len(t, s.Orders("acct-1"), 5)

	require.Len(t, api.requests, 3)
	assert.Equal(t, testNow.Add(-defaultBackfillWindow), api.requests[0].Since)
	assert.Equal(t, 4, api.requests[2].Offset)

	require.NotNil(t, sum.NextCursor)
	pos, ok := decodePosition(*sum.NextCursor, OrdersCursorType)
	require.True(t, ok)
	assert.Equal(t, testNow.Add(-time.Hour), pos.Since, "next pass starts at the newest record")
	assert.Zero(t, pos.Offset)
}

func TestOrdersRoutine_MaxPagesResumesFromCursor(t *testing.T) {
	t.Parallel()

	api := &fakeSellAPI{orders: makeOrders(5)}
	s := store.NewMemoryStore()
	r := NewOrdersRoutine(api, s, testOptions(2, 2))

	first, err := r.Sync(context.Background(), worker.SyncInput{AccountID: "acct-1"})
	require.NoError(t, err)
	assert.Equal(t, 4, first.Fetched)
	assert.False(t, first.BackfillCompleted)
	require.NotNil(t, first.NextCursor)

	second, err := r.Sync(context.Background(), worker.SyncInput{AccountID: "acct-1", Cursor: *first.NextCursor})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Fetched)
	assert.True(t, second.BackfillCompleted)
	assert.Equal(t, 4, api.requests[2].Offset)
	assert.Equal(t, api.requests[0].Since, api.requests[2].Since, "same pass resumes")
	assert.Len(t, s.Orders("acct-1"), 5)
}

func TestOrdersRoutine_HeartbeatLostStops(t *testing.T) {
	t.Parallel()

	api := &fakeSellAPI{orders: makeOrders(5)}
	r := NewOrdersRoutine(api, store.NewMemoryStore(), testOptions(2, 10))

	sum, err := r.Sync(context.Background(), worker.SyncInput{
		AccountID: "acct-1",
		Heartbeat: func(context.Context) error { return worker.ErrRunLost },
	})
	require.ErrorIs(t, err, worker.ErrRunLost)
	assert.Equal(t, 2, sum.Fetched)
	require.NotNil(t, sum.NextCursor, "progress kept for the next run")
	assert.Len(t, api.requests, 1)
}

func TestOrdersRoutine_APIError(t *testing.T) {
	t.Parallel()

	api := &fakeSellAPI{err: &ebay.APIError{StatusCode: http.StatusUnauthorized, Message: "Invalid access token"}}
	r := NewOrdersRoutine(api, store.NewMemoryStore(), testOptions(2, 10))

	_, err := r.Sync(context.Background(), worker.SyncInput{AccountID: "acct-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ebay.ErrUnauthorized)
}

func TestOrdersRoutine_ForeignCursorRestartsBackfill(t *testing.T) {
	t.Parallel()

	api := &fakeSellAPI{}
	r := NewOrdersRoutine(api, store.NewMemoryStore(), testOptions(2, 10))

	sum, err := r.Sync(context.Background(), worker.SyncInput{
		AccountID: "acct-1",
		Cursor:    domain.Cursor{Type: FinancesCursorType, Value: `{"since":"2020-01-01T00:00:00Z"}`},
	})
	require.NoError(t, err)
	assert.True(t, sum.BackfillCompleted)
	assert.Equal(t, testNow.Add(-defaultBackfillWindow), api.requests[0].Since)

	pos, ok := decodePosition(*sum.NextCursor, OrdersCursorType)
	require.True(t, ok)
	assert.Equal(t, testNow.Add(-defaultBackfillWindow), pos.Since, "empty pass keeps its lower bound")
}

type failingStore struct{}

func (failingStore) UpsertOrders(context.Context, []domain.Order) (int, error) {
	return 0, errors.New("db down")
}

func TestOrdersRoutine_StoreError(t *testing.T) {
	t.Parallel()

	api := &fakeSellAPI{orders: makeOrders(1)}
	r := NewOrdersRoutine(api, failingStore{}, testOptions(2, 10))

	sum, err := r.Sync(context.Background(), worker.SyncInput{AccountID: "acct-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storing page 0")
	assert.Nil(t, sum.NextCursor, "cursor does not move past unstored records")
}

func TestFinancesRoutine_OverHTTP(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sell/finances/v1/transaction", r.URL.Path)
		assert.Equal(t, "Bearer seller-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"transactions": [
				{"transactionId": "t-1", "transactionType": "SALE", "bookingEntry": "CREDIT",
				 "amount": {"value": "12.50", "currency": "USD"}, "transactionDate": "2026-02-28T10:00:00.000Z"},
				{"transactionId": "t-2", "transactionType": "NON_SALE_CHARGE", "bookingEntry": "DEBIT",
				 "amount": {"value": "1.25", "currency": "USD"}, "transactionDate": "2026-02-28T11:00:00.000Z"}
			],
			"total": 2
		}`))
	}))
	defer srv.Close()

	api := ebay.NewSellClient(ebay.WithFinancesURL(srv.URL))
	s := store.NewMemoryStore()
	r := NewFinancesRoutine(api, s, testOptions(50, 5))

	sum, err := r.Sync(context.Background(), worker.SyncInput{AccountID: "acct-9", AccessToken: "seller-token"})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Fetched)
	assert.True(t, sum.BackfillCompleted)

	txns := s.FinanceTransactions("acct-9")
	require.Len(t, txns, 2)
	assert.InDelta(t, -1.25, txns[1].Amount, 0.001)

	pos, ok := decodePosition(*sum.NextCursor, FinancesCursorType)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 2, 28, 11, 0, 0, 0, time.UTC), pos.Since)
}

func TestRegister(t *testing.T) {
	t.Parallel()

	reg := worker.NewRegistry()
	s := store.NewMemoryStore()
	require.NoError(t, Register(reg, &fakeSellAPI{}, s, s, Options{}))
	assert.Equal(t, []domain.APIFamily{domain.FamilyOrders, domain.FamilyFinances}, reg.Families())
}

func TestOptions_Defaults(t *testing.T) {
	t.Parallel()

	o := (&Options{}).withDefaults()
	assert.Equal(t, defaultPageSize, o.PageSize)
	assert.Equal(t, defaultMaxPages, o.MaxPages)
	assert.Equal(t, defaultBackfillWindow, o.BackfillWindow)
	assert.NotNil(t, o.Logger)
	assert.NotNil(t, o.NowFunc)
}
