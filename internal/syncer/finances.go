package syncer

import (
	"context"
	"time"

	"github.com/donaldgifford/ebay-seller-sync/internal/ebay"
	"github.com/donaldgifford/ebay-seller-sync/internal/worker"
	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

// FinancesCursorType identifies finance transaction cursors.
const FinancesCursorType = "finances.transactiondate.v1"

// TransactionStore persists synced finance transactions.
type TransactionStore interface {
	UpsertFinanceTransactions(ctx context.Context, txns []domain.FinanceTransaction) (int, error)
}

// FinancesRoutine syncs monetary transactions from the Finances API.
type FinancesRoutine struct {
	pager pager[ebay.FinanceTransaction]
}

// NewFinancesRoutine creates the finances routine.
func NewFinancesRoutine(api ebay.SellAPI, s TransactionStore, opts Options) *FinancesRoutine {
	return &FinancesRoutine{pager: pager[ebay.FinanceTransaction]{
		family:     domain.FamilyFinances,
		cursorType: FinancesCursorType,
		opts:       opts.withDefaults(),
		fetch: func(ctx context.Context, token string, req ebay.PageRequest) ([]ebay.FinanceTransaction, bool, error) {
			page, err := api.GetTransactions(ctx, token, req)
			if err != nil {
				return nil, false, err
			}
			return page.Transactions, page.HasMore, nil
		},
		store: func(ctx context.Context, accountID string, items []ebay.FinanceTransaction) (int, error) {
			return s.UpsertFinanceTransactions(ctx, ebay.ToTransactions(accountID, items))
		},
		modifiedAt: func(t *ebay.FinanceTransaction) time.Time {
			ts, _ := time.Parse(time.RFC3339Nano, t.TransactionDate) //nolint:errcheck // zero on error
			return ts.UTC()
		},
	}}
}

// Sync implements worker.Routine.
func (r *FinancesRoutine) Sync(ctx context.Context, in worker.SyncInput) (worker.Summary, error) {
	return r.pager.run(ctx, in)
}

// Register binds the built-in routines to their families.
func Register(reg *worker.Registry, api ebay.SellAPI, orders OrderStore, txns TransactionStore, opts Options) error {
	if err := reg.Register(domain.FamilyOrders, NewOrdersRoutine(api, orders, opts)); err != nil {
		return err
	}
	return reg.Register(domain.FamilyFinances, NewFinancesRoutine(api, txns, opts))
}
