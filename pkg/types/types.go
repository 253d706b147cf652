// Package domain defines the core business types for the eBay seller sync core.
package domain

import (
	"encoding/json"
	"slices"
	"time"
)

// Environment selects which eBay deployment a token belongs to.
type Environment string

// Environment constants.
const (
	EnvProduction Environment = "production"
	EnvSandbox    Environment = "sandbox"
)

// Valid reports whether e is a known environment.
func (e Environment) Valid() bool {
	return e == EnvProduction || e == EnvSandbox
}

// APIFamily is a logical category of eBay data synchronized independently.
type APIFamily string

// API family constants.
const (
	FamilyOrders          APIFamily = "orders"
	FamilyTransactions    APIFamily = "transactions"
	FamilyOffers          APIFamily = "offers"
	FamilyMessages        APIFamily = "messages"
	FamilyDisputes        APIFamily = "disputes"
	FamilyFinances        APIFamily = "finances"
	FamilyActiveInventory APIFamily = "active_inventory"
)

// AllFamilies lists every known API family in a stable order.
var AllFamilies = []APIFamily{
	FamilyOrders,
	FamilyTransactions,
	FamilyOffers,
	FamilyMessages,
	FamilyDisputes,
	FamilyFinances,
	FamilyActiveInventory,
}

// Valid reports whether f is a known API family.
func (f APIFamily) Valid() bool {
	return slices.Contains(AllFamilies, f)
}

// Account is one connected eBay seller identity.
type Account struct {
	ID              string    `json:"id"                         db:"id"`
	EbayUserID      string    `json:"ebay_user_id"               db:"ebay_user_id"`
	DisplayName     string    `json:"display_name"               db:"display_name"`
	Active          bool      `json:"active"                     db:"active"`
	OwnerID         string    `json:"owner_id"                   db:"owner_id"`
	ConnectedAt     time.Time `json:"connected_at"               db:"connected_at"`
	NeedsReconnect  bool      `json:"needs_reconnect"            db:"needs_reconnect"`
	ReconnectReason string    `json:"reconnect_reason,omitempty" db:"reconnect_reason"`
	UpdatedAt       time.Time `json:"updated_at"                 db:"updated_at"`
}

// Token holds the stored OAuth credentials of an account. AccessToken and
// RefreshToken are stored values: either legacy plaintext or vault ciphertext.
type Token struct {
	ID                   string      `json:"id"                                db:"id"`
	AccountID            string      `json:"account_id"                        db:"account_id"`
	Environment          Environment `json:"environment"                       db:"environment"`
	AccessToken          *string     `json:"-"                                 db:"access_token"`
	RefreshToken         *string     `json:"-"                                 db:"refresh_token"`
	AccessExpiresAt      *time.Time  `json:"access_expires_at,omitempty"       db:"access_expires_at"`
	RefreshExpiresAt     *time.Time  `json:"refresh_expires_at,omitempty"      db:"refresh_expires_at"`
	Scopes               string      `json:"scopes,omitempty"                  db:"scopes"`
	LastRefreshedAt      *time.Time  `json:"last_refreshed_at,omitempty"       db:"last_refreshed_at"`
	LastRefreshError     *string     `json:"last_refresh_error,omitempty"      db:"last_refresh_error"`
	LastRefreshErrorCode *string     `json:"last_refresh_error_code,omitempty" db:"last_refresh_error_code"`
	UpdatedAt            time.Time   `json:"updated_at"                        db:"updated_at"`
}

// TokenRefresh carries the values persisted after a successful refresh.
// RefreshToken and RefreshExpiresAt are nil when eBay did not rotate them.
type TokenRefresh struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     *string
	RefreshExpiresAt *time.Time
	RefreshedAt      time.Time
}

// TriggerSource records what initiated a token refresh attempt.
type TriggerSource string

// Trigger source constants.
const (
	TriggerScheduled TriggerSource = "scheduled"
	TriggerManual    TriggerSource = "manual"
	TriggerInternal  TriggerSource = "internal"
)

// TokenRefreshLog is the append-only audit record of one refresh attempt.
type TokenRefreshLog struct {
	ID           int64         `json:"id"                       db:"id"`
	AccountID    string        `json:"account_id"               db:"account_id"`
	Environment  Environment   `json:"environment"              db:"environment"`
	APIFamily    string        `json:"api_family,omitempty"     db:"api_family"`
	TriggeredBy  TriggerSource `json:"triggered_by"             db:"triggered_by"`
	StartedAt    time.Time     `json:"started_at"               db:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"              db:"finished_at"`
	Success      bool          `json:"success"                  db:"success"`
	ErrorCode    string        `json:"error_code,omitempty"     db:"error_code"`
	ErrorMessage string        `json:"error_message,omitempty"  db:"error_message"`
	OldExpiresAt *time.Time    `json:"old_expires_at,omitempty" db:"old_expires_at"`
	NewExpiresAt *time.Time    `json:"new_expires_at,omitempty" db:"new_expires_at"`
	TokenHash    string        `json:"token_hash,omitempty"     db:"token_hash"`
}

// SyncState tracks incremental sync progress for one (account, api family).
type SyncState struct {
	AccountID         string          `json:"account_id"             db:"account_id"`
	APIFamily         APIFamily       `json:"api_family"             db:"api_family"`
	Enabled           bool            `json:"enabled"                db:"enabled"`
	BackfillCompleted bool            `json:"backfill_completed"     db:"backfill_completed"`
	CursorType        string          `json:"cursor_type,omitempty"  db:"cursor_type"`
	CursorValue       string          `json:"cursor_value,omitempty" db:"cursor_value"`
	LastRunAt         *time.Time      `json:"last_run_at,omitempty"  db:"last_run_at"`
	LastError         string          `json:"last_error,omitempty"   db:"last_error"`
	Metadata          json.RawMessage `json:"metadata,omitempty"     db:"metadata"`
	CreatedAt         time.Time       `json:"created_at"             db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"             db:"updated_at"`
}

// Cursor returns the incremental sync cursor of the state.
func (s *SyncState) Cursor() Cursor {
	return Cursor{Type: s.CursorType, Value: s.CursorValue}
}

// Cursor is an opaque incremental sync position.
type Cursor struct {
	Type  string `json:"type,omitempty"`
	Value string `json:"value,omitempty"`
}

// IsZero reports whether the cursor has never been set.
func (c Cursor) IsZero() bool {
	return c.Type == "" && c.Value == ""
}

// RunStatus is the lifecycle state of a WorkerRun.
type RunStatus string

// Run status constants.
const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
	RunStale   RunStatus = "stale"
)

// Terminal reports whether the status ends a run.
func (s RunStatus) Terminal() bool {
	return s == RunSuccess || s == RunError || s == RunStale
}

// RunSummary is the outcome of one sync routine execution.
type RunSummary struct {
	Fetched      int    `json:"fetched"`
	Stored       int    `json:"stored"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// WorkerRun is one execution attempt of an (account, api family) cycle.
type WorkerRun struct {
	ID          string      `json:"id"                    db:"id"`
	AccountID   string      `json:"account_id"            db:"account_id"`
	APIFamily   APIFamily   `json:"api_family"            db:"api_family"`
	Status      RunStatus   `json:"status"                db:"status"`
	Holder      string      `json:"holder"                db:"holder"`
	StartedAt   time.Time   `json:"started_at"            db:"started_at"`
	FinishedAt  *time.Time  `json:"finished_at,omitempty" db:"finished_at"`
	HeartbeatAt time.Time   `json:"heartbeat_at"          db:"heartbeat_at"`
	Summary     *RunSummary `json:"summary,omitempty"     db:"summary"`
	ErrorText   string      `json:"error_text,omitempty"  db:"error_text"`
}

// RunCompletion is the data recorded when a run finishes.
type RunCompletion struct {
	Status            RunStatus
	Summary           RunSummary
	NextCursor        *Cursor
	BackfillCompleted bool
}

// WorkItem is an (account, api family) pair that is due to run.
type WorkItem struct {
	AccountID string    `json:"account_id"`
	APIFamily APIFamily `json:"api_family"`
}

// JobRun records a single execution of a scheduled job.
type JobRun struct {
	ID           string     `json:"id"                      db:"id"`
	JobName      string     `json:"job_name"                db:"job_name"`
	StartedAt    time.Time  `json:"started_at"              db:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"  db:"completed_at"`
	Status       string     `json:"status"                  db:"status"`
	ErrorText    string     `json:"error_text,omitempty"    db:"error_text"`
	RowsAffected *int       `json:"rows_affected,omitempty" db:"rows_affected"`
}

// Order is a seller order synchronized from the Fulfillment API.
type Order struct {
	AccountID         string          `json:"account_id"             db:"account_id"`
	OrderID           string          `json:"order_id"               db:"order_id"`
	BuyerUsername     string          `json:"buyer_username"         db:"buyer_username"`
	FulfillmentStatus string          `json:"fulfillment_status"     db:"fulfillment_status"`
	PaymentStatus     string          `json:"payment_status"         db:"payment_status"`
	Total             float64         `json:"total"                  db:"total"`
	Currency          string          `json:"currency"               db:"currency"`
	LineItemCount     int             `json:"line_item_count"        db:"line_item_count"`
	CreatedAt         time.Time       `json:"created_at"             db:"created_at"`
	LastModifiedAt    time.Time       `json:"last_modified_at"       db:"last_modified_at"`
	Raw               json.RawMessage `json:"raw,omitempty"          db:"raw"`
}

// FinanceTransaction is a monetary transaction from the Finances API.
type FinanceTransaction struct {
	AccountID         string          `json:"account_id"         db:"account_id"`
	TransactionID     string          `json:"transaction_id"     db:"transaction_id"`
	TransactionType   string          `json:"transaction_type"   db:"transaction_type"`
	TransactionStatus string          `json:"transaction_status" db:"transaction_status"`
	OrderID           string          `json:"order_id,omitempty" db:"order_id"`
	Amount            float64         `json:"amount"             db:"amount"`
	Currency          string          `json:"currency"           db:"currency"`
	BookingEntry      string          `json:"booking_entry"      db:"booking_entry"`
	TransactionDate   time.Time       `json:"transaction_date"   db:"transaction_date"`
	Raw               json.RawMessage `json:"raw,omitempty"      db:"raw"`
}
