// Package main implements a mock eBay API server for local development.
// It simulates the OAuth refresh_token grant and the Sell Fulfillment and
// Finances APIs with a generated data set, so the sync workers can run
// without real eBay credentials.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

const (
	filterTimeLayout = "2006-01-02T15:04:05.000Z"

	// Refresh tokens with this prefix are rejected with invalid_grant.
	revokedPrefix = "revoked"
	// Access tokens with this prefix are rejected by the Sell APIs.
	expiredPrefix = "expired"
)

type record struct {
	at  time.Time
	raw json.RawMessage
}

type dataset struct {
	orders       []record
	transactions []record
}

type pagedResponse struct {
	Total        int               `json:"total"`
	Limit        int               `json:"limit"`
	Offset       int               `json:"offset"`
	Next         string            `json:"next,omitempty"`
	Orders       []json.RawMessage `json:"orders,omitempty"`
	Transactions []json.RawMessage `json:"transactions,omitempty"`
}

func main() {
	port := flag.Int("port", 8089, "port to listen on")
	count := flag.Int("records", 120, "number of generated orders (and transactions)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	data := generate(*count, time.Now().UTC())
	logger.Info("generated data set", "orders", len(data.orders), "transactions", len(data.transactions))

	addr := fmt.Sprintf(":%d", *port)
	logger.Info("starting mock eBay server", "addr", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      requestLogger(logger, newMux(logger, data)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func newMux(logger *slog.Logger, data *dataset) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /identity/v1/oauth2/token", tokenHandler(logger))
	mux.HandleFunc("GET /sell/fulfillment/v1/order",
		pageHandler(logger, "orders", "lastmodifieddate", data.orders))
	mux.HandleFunc("GET /sell/finances/v1/transaction",
		pageHandler(logger, "transactions", "transactionDate", data.transactions))
	return mux
}

// generate builds n orders and one sale transaction per order, spread one
// hour apart and ending at now.
func generate(n int, now time.Time) *dataset {
	d := &dataset{
		orders:       make([]record, 0, n),
		transactions: make([]record, 0, n),
	}
	for i := range n {
		at := now.Add(-time.Duration(n-i) * time.Hour).Truncate(time.Millisecond)
		orderID := fmt.Sprintf("27-%05d-%05d", 10000+i, 20000+i)
		total := fmt.Sprintf("%d.%02d", 20+i%180, i%100)

		//nolint:errcheck,gosec // marshaling static maps cannot fail
		order, _ := json.Marshal(map[string]any{
			"orderId":                orderID,
			"creationDate":           at.Add(-10 * time.Minute).Format(filterTimeLayout),
			"lastModifiedDate":       at.Format(filterTimeLayout),
			"orderFulfillmentStatus": []string{"NOT_STARTED", "IN_PROGRESS", "FULFILLED"}[i%3],
			"orderPaymentStatus":     "PAID",
			"buyer":                  map[string]string{"username": fmt.Sprintf("buyer_%03d", i%37)},
			"pricingSummary": map[string]any{
				"total":         map[string]string{"value": total, "currency": "USD"},
				"priceSubtotal": map[string]string{"value": total, "currency": "USD"},
			},
			"lineItems": []map[string]any{{
				"lineItemId":   fmt.Sprintf("%d", 100000+i),
				"legacyItemId": fmt.Sprintf("%d", 300000000+i),
				"sku":          fmt.Sprintf("SKU-%04d", i%250),
				"title":        fmt.Sprintf("Mock item %d", i),
				"quantity":     1 + i%3,
				"total":        map[string]string{"value": total, "currency": "USD"},
			}},
		})
		d.orders = append(d.orders, record{at: at, raw: order})

		//nolint:errcheck,gosec // marshaling static maps cannot fail
		txn, _ := json.Marshal(map[string]any{
			"transactionId":     fmt.Sprintf("T%08d", i),
			"orderId":           orderID,
			"transactionType":   "SALE",
			"transactionStatus": "PAYOUT",
			"amount":            map[string]string{"value": total, "currency": "USD"},
			"bookingEntry":      "CREDIT",
			"transactionDate":   at.Add(5 * time.Minute).Format(filterTimeLayout),
		})
		d.transactions = append(d.transactions, record{at: at.Add(5 * time.Minute), raw: txn})
	}
	return d
}

func tokenHandler(logger *slog.Logger) http.HandlerFunc {
	var issued atomic.Int64

	return func(w http.ResponseWriter, r *http.Request) {
		// Validate Basic Auth header is present (don't verify creds).
		if _, _, ok := r.BasicAuth(); !ok {
			logger.Warn("token request missing Basic Auth header")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error":             "invalid_client",
				"error_description": "client authentication failed",
			})
			return
		}

		if err := r.ParseForm(); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":             "invalid_request",
				"error_description": "malformed form body",
			})
			return
		}

		if gt := r.PostForm.Get("grant_type"); gt != "refresh_token" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":             "unsupported_grant_type",
				"error_description": "grant type " + strconv.Quote(gt) + " is not supported",
			})
			return
		}

		refresh := r.PostForm.Get("refresh_token")
		if refresh == "" || strings.HasPrefix(refresh, revokedPrefix) {
			logger.Info("rejected refresh token")
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":             "invalid_grant",
				"error_description": "the provided authorization refresh token is invalid or was issued to another client",
			})
			return
		}

		n := issued.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "mock-access-" + strconv.FormatInt(n, 10),
			"expires_in":   7200,
			"token_type":   "User Access Token",
		})
		logger.Info("issued mock token", "n", n)
	}
}

// pageHandler serves one Sell API collection with eBay's offset paging and
// a "field:[since..]" date filter.
func pageHandler(logger *slog.Logger, kind, filterField string, records []record) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" || strings.HasPrefix(token, expiredPrefix) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"errors": []map[string]any{{
					"errorId":  1001,
					"category": "REQUEST",
					"message":  "Invalid access token",
				}},
			})
			return
		}

		q := r.URL.Query()
		limit := 50
		if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
			limit = v
		}
		offset := 0
		if v, err := strconv.Atoi(q.Get("offset")); err == nil && v >= 0 {
			offset = v
		}

		var matched []json.RawMessage
		since, hasSince := parseSince(q.Get("filter"), filterField)
		for _, rec := range records {
			if !hasSince || !rec.at.Before(since) {
				matched = append(matched, rec.raw)
			}
		}

		total := len(matched)
		page := []json.RawMessage{}
		if offset < total {
			page = matched[offset:min(offset+limit, total)]
		}

		resp := pagedResponse{Total: total, Limit: limit, Offset: offset}
		if offset+limit < total {
			next := r.URL.Query()
			next.Set("offset", strconv.Itoa(offset+limit))
			resp.Next = r.URL.Path + "?" + next.Encode()
		}
		if kind == "orders" {
			resp.Orders = page
		} else {
			resp.Transactions = page
		}

		writeJSON(w, http.StatusOK, resp)
		logger.Info(kind, "matched", total, "returned", len(page), "offset", offset, "limit", limit)
	}
}

// parseSince reads the lower bound of a "field:[start..]" filter.
func parseSince(filter, field string) (time.Time, bool) {
	rest, ok := strings.CutPrefix(filter, field+":[")
	if !ok {
		return time.Time{}, false
	}
	start, _, ok := strings.Cut(rest, "..")
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(filterTimeLayout, start)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,gosec // best-effort write to HTTP response in mock server
	json.NewEncoder(w).Encode(v)
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("request", "method", r.Method, "path", r.URL.Path, "query", r.URL.RawQuery)
		next.ServeHTTP(w, r)
	})
}
