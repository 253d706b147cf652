// Package store defines the datastore abstraction for ebay-seller-sync.
// All business logic depends on the Store interface, never on concrete
// implementations. PostgresStore backs production; MemoryStore backs unit
// tests and local dry runs.
package store

import (
	"context"
	"errors"
	"time"

	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ClaimOutcome describes why a claim did or did not produce a run.
type ClaimOutcome string

// Claim outcome constants.
const (
	ClaimAcquired ClaimOutcome = "acquired"
	ClaimDisabled ClaimOutcome = "disabled"
	ClaimInactive ClaimOutcome = "inactive"
	ClaimRunning  ClaimOutcome = "running"
	ClaimNotDue   ClaimOutcome = "not_due"
)

// ClaimParams are the inputs of an atomic worker run claim.
type ClaimParams struct {
	AccountID string
	APIFamily domain.APIFamily
	Holder    string
	Now       time.Time
	// DueBefore is the latest last_run_at that still makes the pair due.
	// Ignored when Force is set.
	DueBefore time.Time
	// StaleBefore is the heartbeat cutoff below which a running run is
	// considered abandoned.
	StaleBefore time.Time
	// Force skips the interval check (manual run-once).
	Force bool
}

// ClaimResult is the outcome of ClaimWorkerRun. Run is non-nil only for
// ClaimAcquired.
type ClaimResult struct {
	Run            *domain.WorkerRun
	Outcome        ClaimOutcome
	StaleReclaimed int
}

// RefreshCandidateQuery selects tokens for the refresh sweep.
type RefreshCandidateQuery struct {
	Environment    domain.Environment
	ExpiringBefore time.Time
	// ExcludeErrorCodes lists terminal refresh error codes that are never
	// retried automatically.
	ExcludeErrorCodes []string
}

// Store defines all data access operations for ebay-seller-sync.
type Store interface {
	// Accounts
	UpsertAccount(ctx context.Context, a *domain.Account) error
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	ListAccounts(ctx context.Context, activeOnly bool) ([]domain.Account, error)
	SetAccountActive(ctx context.Context, id string, active bool) error
	MarkNeedsReconnect(ctx context.Context, accountID, reason string) error
	CountNeedsReconnect(ctx context.Context) (int, error)

	// Tokens
	GetToken(ctx context.Context, accountID string, env domain.Environment) (*domain.Token, error)
	ListTokens(ctx context.Context) ([]domain.Token, error)
	UpsertToken(ctx context.Context, t *domain.Token) error
	UpdateTokenSecrets(ctx context.Context, tokenID string, accessToken, refreshToken *string) error
	SaveTokenRefresh(ctx context.Context, tokenID string, r *domain.TokenRefresh) error
	SaveTokenRefreshError(ctx context.Context, tokenID, code, message string) error
	ListRefreshCandidates(ctx context.Context, q RefreshCandidateQuery) ([]domain.Token, error)

	// Token refresh logs
	InsertTokenRefreshLog(ctx context.Context, l *domain.TokenRefreshLog) error
	ListTokenRefreshLogs(ctx context.Context, accountID string, limit int) ([]domain.TokenRefreshLog, error)
	DeleteTokenRefreshLogsBefore(ctx context.Context, cutoff time.Time) (int, error)

	// Sync states
	GetSyncState(ctx context.Context, accountID string, family domain.APIFamily) (*domain.SyncState, error)
	ListSyncStates(ctx context.Context, accountID string) ([]domain.SyncState, error)
	SetSyncEnabled(ctx context.Context, accountID string, family domain.APIFamily, enabled bool) error

	// Worker runs
	ClaimWorkerRun(ctx context.Context, p ClaimParams) (*ClaimResult, error)
	HeartbeatWorkerRun(ctx context.Context, runID string, at time.Time) (bool, error)
	FinishWorkerRun(ctx context.Context, runID string, c *domain.RunCompletion, at time.Time) (bool, error)
	ListDueWork(
		ctx context.Context,
		families []domain.APIFamily,
		dueBefore time.Time,
		staleBefore time.Time,
	) ([]domain.WorkItem, error)
	ListWorkerRuns(ctx context.Context, q *WorkerRunQuery) ([]domain.WorkerRun, error)
	MarkStaleWorkerRuns(ctx context.Context, staleBefore time.Time, at time.Time) (int, error)
	DeleteWorkerRunsBefore(ctx context.Context, cutoff time.Time) (int, error)

	// Synced records
	UpsertOrders(ctx context.Context, orders []domain.Order) (int, error)
	UpsertFinanceTransactions(ctx context.Context, txns []domain.FinanceTransaction) (int, error)

	// Scheduler
	InsertJobRun(ctx context.Context, jobName string) (id string, err error)
	CompleteJobRun(ctx context.Context, id string, status string, errText string, rowsAffected int) error
	ListJobRuns(ctx context.Context, jobName string, limit int) ([]domain.JobRun, error)
	ListLatestJobRuns(ctx context.Context) ([]domain.JobRun, error)
	RecoverStaleJobRuns(ctx context.Context, olderThan time.Duration) (int, error)

	// Migrations
	Migrate(ctx context.Context) error

	// Health
	Ping(ctx context.Context) error
}
