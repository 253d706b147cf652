package ebay

import (
	"strconv"
	"time"

	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

// ToOrders converts Fulfillment API orders into domain orders owned by
// accountID.
func ToOrders(accountID string, orders []Order) []domain.Order {
	out := make([]domain.Order, 0, len(orders))
	for i := range orders {
		out = append(out, toOrder(accountID, &orders[i]))
	}
	return out
}

func toOrder(accountID string, o *Order) domain.Order {
	d := domain.Order{
		AccountID:         accountID,
		OrderID:           o.OrderID,
		FulfillmentStatus: o.OrderFulfillmentStatus,
		PaymentStatus:     o.OrderPaymentStatus,
		LineItemCount:     len(o.LineItems),
		CreatedAt:         parseTime(o.CreationDate),
		LastModifiedAt:    parseTime(o.LastModifiedDate),
		Raw:               o.Raw,
	}

	if o.Buyer != nil {
		d.BuyerUsername = o.Buyer.Username
	}

	if o.PricingSummary != nil && o.PricingSummary.Total != nil {
		d.Total, d.Currency = parseAmount(o.PricingSummary.Total)
	}

	return d
}

// ToTransactions converts Finances API transactions into domain
// transactions owned by accountID.
func ToTransactions(accountID string, txns []FinanceTransaction) []domain.FinanceTransaction {
	out := make([]domain.FinanceTransaction, 0, len(txns))
	for i := range txns {
		t := &txns[i]
		d := domain.FinanceTransaction{
			AccountID:         accountID,
			TransactionID:     t.TransactionID,
			TransactionType:   t.TransactionType,
			TransactionStatus: t.TransactionStatus,
			OrderID:           t.OrderID,
			BookingEntry:      t.BookingEntry,
			TransactionDate:   parseTime(t.TransactionDate),
			Raw:               t.Raw,
		}
		if t.Amount != nil {
			d.Amount, d.Currency = parseAmount(t.Amount)
		}
		// Debits reduce the seller balance.
		if t.BookingEntry == "DEBIT" && d.Amount > 0 {
			d.Amount = -d.Amount
		}
		out = append(out, d)
	}
	return out
}

func parseAmount(a *Amount) (float64, string) {
	v, err := strconv.ParseFloat(a.Value, 64)
	if err != nil {
		return 0, a.Currency
	}
	return v, a.Currency
}

// parseTime accepts the RFC 3339 timestamps eBay returns. Unparseable or
// empty values yield the zero time.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
