package ebay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

const (
	defaultSellURL     = "https://api.ebay.com"
	defaultFinancesURL = "https://apiz.ebay.com"
	sandboxSellURL     = "https://api.sandbox.ebay.com"
	sandboxFinancesURL = "https://apiz.sandbox.ebay.com"
	defaultMarketplace = "EBAY_US"
	defaultPageLimit   = 50

	ordersPath       = "/sell/fulfillment/v1/order"
	transactionsPath = "/sell/finances/v1/transaction"

	// filterTimeLayout is the ISO 8601 form eBay expects inside filters.
	filterTimeLayout = "2006-01-02T15:04:05.000Z"
)

// ErrUnauthorized is returned when eBay rejects the bearer token.
var ErrUnauthorized = errors.New("eBay rejected access token")

// APIError is a non-2xx response from a Sell API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("eBay API error (status %d): %s", e.StatusCode, e.Message)
}

// Unwrap maps 401 responses to ErrUnauthorized.
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// SellClient implements SellAPI over the eBay REST endpoints.
type SellClient struct {
	sellURL     string
	financesURL string
	marketplace string
	client      *http.Client
	rateLimiter *RateLimiter
}

// SellOption configures the SellClient.
type SellOption func(*SellClient)

// WithSellURL overrides the api.ebay.com base URL.
func WithSellURL(u string) SellOption {
	return func(c *SellClient) {
		c.sellURL = strings.TrimRight(u, "/")
	}
}

// WithFinancesURL overrides the apiz.ebay.com base URL used by the
// Finances API.
func WithFinancesURL(u string) SellOption {
	return func(c *SellClient) {
		c.financesURL = strings.TrimRight(u, "/")
	}
}

// WithMarketplace overrides the default marketplace.
func WithMarketplace(m string) SellOption {
	return func(c *SellClient) {
		c.marketplace = m
	}
}

// WithSellHTTPClient overrides the default HTTP client.
func WithSellHTTPClient(hc *http.Client) SellOption {
	return func(c *SellClient) {
		c.client = hc
	}
}

// WithRateLimiter injects the process-wide rate limiter. When set, every
// call goes through Wait() first.
func WithRateLimiter(r *RateLimiter) SellOption {
	return func(c *SellClient) {
		c.rateLimiter = r
	}
}

// SellURLs returns the Sell API and Finances API base URLs for the given
// environment.
func SellURLs(env domain.Environment) (sellURL, financesURL string) {
	if env == domain.EnvSandbox {
		return sandboxSellURL, sandboxFinancesURL
	}
	return defaultSellURL, defaultFinancesURL
}

// NewSellClient creates a new Sell API client.
func NewSellClient(opts ...SellOption) *SellClient {
	c := &SellClient{
		sellURL:     defaultSellURL,
		financesURL: defaultFinancesURL,
		marketplace: defaultMarketplace,
		client:      NewHTTPClient(defaultConnectTimeout, 30*time.Second),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrders fetches one page of orders modified since req.Since.
func (c *SellClient) GetOrders(
	ctx context.Context,
	accessToken string,
	req PageRequest,
) (*OrdersPage, error) {
	params := pageParams(req)
	if !req.Since.IsZero() {
		params.Set("filter", "lastmodifieddate:["+req.Since.UTC().Format(filterTimeLayout)+"..]")
	}

	var resp ordersAPIResponse
	if err := c.get(ctx, "orders", accessToken, c.sellURL+ordersPath, params, &resp); err != nil {
		return nil, err
	}

	orders := make([]Order, 0, len(resp.Orders))
	for _, raw := range resp.Orders {
		var o Order
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, fmt.Errorf("parsing order: %w", err)
		}
		o.Raw = raw
		orders = append(orders, o)
	}

	return &OrdersPage{
		Orders:  orders,
		Total:   resp.Total,
		Offset:  resp.Offset,
		HasMore: resp.Next != "",
	}, nil
}

// GetTransactions fetches one page of finance transactions dated at or
// after req.Since.
func (c *SellClient) GetTransactions(
	ctx context.Context,
	accessToken string,
	req PageRequest,
) (*TransactionsPage, error) {
	params := pageParams(req)
	if !req.Since.IsZero() {
		params.Set("filter", "transactionDate:["+req.Since.UTC().Format(filterTimeLayout)+"..]")
	}

	var resp transactionsAPIResponse
	if err := c.get(ctx, "finances", accessToken, c.financesURL+transactionsPath, params, &resp); err != nil {
		return nil, err
	}

	txns := make([]FinanceTransaction, 0, len(resp.Transactions))
	for _, raw := range resp.Transactions {
		var t FinanceTransaction
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("parsing transaction: %w", err)
		}
		t.Raw = raw
		txns = append(txns, t)
	}

	return &TransactionsPage{
		Transactions: txns,
		Total:        resp.Total,
		Offset:       resp.Offset,
		HasMore:      resp.Next != "",
	}, nil
}

func pageParams(req PageRequest) url.Values {
	params := url.Values{}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	params.Set("limit", strconv.Itoa(limit))
	if req.Offset > 0 {
		params.Set("offset", strconv.Itoa(req.Offset))
	}
	return params
}

func (c *SellClient) get(
	ctx context.Context,
	family string,
	accessToken string,
	endpoint string,
	params url.Values,
	dst any,
) error {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx, family); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		endpoint+"?"+params.Encode(),
		http.NoBody,
	)
	if err != nil {
		return fmt.Errorf("creating HTTP request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	httpReq.Header.Set("X-EBAY-C-MARKETPLACE-ID", c.marketplace)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("executing %s request: %w", family, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("parsing %s response: %w", family, err)
	}
	return nil
}

func errorMessage(body []byte) string {
	var env apiErrorBody
	if err := json.Unmarshal(body, &env); err == nil && len(env.Errors) > 0 {
		return env.Errors[0].Message
	}
	if len(body) > 256 {
		body = body[:256]
	}
	return string(body)
}
