package syncer

import (
	"context"
	"time"

	"github.com/donaldgifford/ebay-seller-sync/internal/ebay"
	"github.com/donaldgifford/ebay-seller-sync/internal/worker"
	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

// OrdersCursorType identifies order cursors.
const OrdersCursorType = "orders.lastmodifieddate.v1"

// OrderStore persists synced orders.
type OrderStore interface {
	UpsertOrders(ctx context.Context, orders []domain.Order) (int, error)
}

// OrdersRoutine syncs seller orders from the Fulfillment API.
type OrdersRoutine struct {
	pager pager[ebay.Order]
}

// NewOrdersRoutine creates the orders routine.
func NewOrdersRoutine(api ebay.SellAPI, s OrderStore, opts Options) *OrdersRoutine {
	return &OrdersRoutine{pager: pager[ebay.Order]{
		family:     domain.FamilyOrders,
		cursorType: OrdersCursorType,
		opts:       opts.withDefaults(),
		fetch: func(ctx context.Context, token string, req ebay.PageRequest) ([]ebay.Order, bool, error) {
			page, err := api.GetOrders(ctx, token, req)
			if err != nil {
				return nil, false, err
			}
			return page.Orders, page.HasMore, nil
		},
		store: func(ctx context.Context, accountID string, items []ebay.Order) (int, error) {
			return s.UpsertOrders(ctx, ebay.ToOrders(accountID, items))
		},
		modifiedAt: func(o *ebay.Order) time.Time {
			t, _ := time.Parse(time.RFC3339Nano, o.LastModifiedDate) //nolint:errcheck // zero on error
			return t.UTC()
		},
	}}
}

// Sync implements worker.Routine.
func (r *OrdersRoutine) Sync(ctx context.Context, in worker.SyncInput) (worker.Summary, error) {
	return r.pager.run(ctx, in)
}
