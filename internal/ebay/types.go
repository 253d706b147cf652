package ebay

import "encoding/json"

// Amount holds an eBay monetary value. eBay encodes the value as a string.
type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// OrderBuyer holds buyer information of a Fulfillment API order.
type OrderBuyer struct {
	Username string `json:"username"`
}

// PricingSummary holds the order totals.
type PricingSummary struct {
	Total    *Amount `json:"total,omitempty"`
	Subtotal *Amount `json:"priceSubtotal,omitempty"`
}

// LineItem is one purchased item of an order.
type LineItem struct {
	LineItemID string  `json:"lineItemId"`
	LegacyID   string  `json:"legacyItemId"`
	SKU        string  `json:"sku,omitempty"`
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	Total      *Amount `json:"total,omitempty"`
}

// Order is a single order from the Fulfillment API getOrders response.
type Order struct {
	OrderID                string          `json:"orderId"`
	CreationDate           string          `json:"creationDate"`
	LastModifiedDate       string          `json:"lastModifiedDate"`
	OrderFulfillmentStatus string          `json:"orderFulfillmentStatus"`
	OrderPaymentStatus     string          `json:"orderPaymentStatus"`
	Buyer                  *OrderBuyer     `json:"buyer,omitempty"`
	PricingSummary         *PricingSummary `json:"pricingSummary,omitempty"`
	LineItems              []LineItem      `json:"lineItems"`

	// Raw keeps the untouched payload for storage.
	Raw json.RawMessage `json:"-"`
}

// FinanceTransaction is a single entry of the Finances API getTransactions
// response.
type FinanceTransaction struct {
	TransactionID     string  `json:"transactionId"`
	OrderID           string  `json:"orderId,omitempty"`
	TransactionType   string  `json:"transactionType"`
	TransactionStatus string  `json:"transactionStatus"`
	Amount            *Amount `json:"amount,omitempty"`
	BookingEntry      string  `json:"bookingEntry"`
	TransactionDate   string  `json:"transactionDate"`

	Raw json.RawMessage `json:"-"`
}

// pagedResponse holds the paging envelope shared by the Sell APIs.
type pagedResponse struct {
	Total  int    `json:"total"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
	Next   string `json:"next"`
}

type ordersAPIResponse struct {
	pagedResponse
	Orders []json.RawMessage `json:"orders"`
}

type transactionsAPIResponse struct {
	pagedResponse
	Transactions []json.RawMessage `json:"transactions"`
}

// apiErrorBody is the standard eBay REST error envelope.
type apiErrorBody struct {
	Errors []struct {
		ErrorID  int    `json:"errorId"`
		Category string `json:"category"`
		Message  string `json:"message"`
	} `json:"errors"`
}
