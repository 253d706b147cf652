// Package ebay provides clients for eBay's OAuth token endpoint and the Sell
// APIs used by the sync routines, abstracted behind interfaces for
// testability.
package ebay

import (
	"context"
	"time"
)

// PageRequest selects one page of an incremental Sell API query.
type PageRequest struct {
	// Since restricts results to records changed at or after this time.
	// Zero means no lower bound (backfill).
	Since  time.Time
	Limit  int
	Offset int
}

// OrdersPage is one page of Fulfillment API orders.
type OrdersPage struct {
	Orders  []Order
	Total   int
	Offset  int
	HasMore bool
}

// TransactionsPage is one page of Finances API transactions.
type TransactionsPage struct {
	Transactions []FinanceTransaction
	Total        int
	Offset       int
	HasMore      bool
}

// SellAPI defines the Sell API calls used by the sync routines. The access
// token is passed per call because every account has its own.
type SellAPI interface {
	GetOrders(ctx context.Context, accessToken string, req PageRequest) (*OrdersPage, error)
	GetTransactions(ctx context.Context, accessToken string, req PageRequest) (*TransactionsPage, error)
}
