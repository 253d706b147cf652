package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

const defaultPoolSize = 10

// PostgresStore implements Store using pgxpool (connection-pooled PostgreSQL).
// Methods are covered by the integration tests.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// PostgresOption configures the PostgresStore pool.
type PostgresOption func(*pgxpool.Config)

// WithMaxConns overrides the default pool size.
func WithMaxConns(n int32) PostgresOption {
	return func(c *pgxpool.Config) {
		if n > 0 {
			c.MaxConns = n
		}
	}
}

// WithConnectTimeout bounds how long a new connection may take.
func WithConnectTimeout(d time.Duration) PostgresOption {
	return func(c *pgxpool.Config) {
		if d > 0 {
			c.ConnConfig.ConnectTimeout = d
		}
	}
}

// NewPostgresStore creates a new PostgresStore with connection pooling.
func NewPostgresStore(
	ctx context.Context,
	connString string,
	opts ...PostgresOption,
) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	cfg.MaxConns = defaultPoolSize
	for _, opt := range opts {
		opt(cfg)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close gracefully shuts down the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping verifies the database connection is alive.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies pending SQL schema migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return RunMigrations(ctx, s.pool)
}

// --- Accounts ---

// UpsertAccount inserts or updates an account by its eBay user id.
func (s *PostgresStore) UpsertAccount(ctx context.Context, a *domain.Account) error {
	args := pgx.NamedArgs{
		"ebay_user_id": a.EbayUserID,
		"display_name": a.DisplayName,
		"owner_id":     a.OwnerID,
		"active":       a.Active,
	}
	err := s.pool.QueryRow(ctx, queryUpsertAccount, args).Scan(
		&a.ID, &a.ConnectedAt, &a.NeedsReconnect, &a.ReconnectReason, &a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting account: %w", err)
	}
	return nil
}

// GetAccount retrieves an account by id.
func (s *PostgresStore) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	a := &domain.Account{}
	if err := scanAccount(s.pool.QueryRow(ctx, queryGetAccount, id), a); err != nil {
		return nil, notFound(err, "getting account")
	}
	return a, nil
}

// ListAccounts returns all accounts, optionally only active ones.
func (s *PostgresStore) ListAccounts(ctx context.Context, activeOnly bool) ([]domain.Account, error) {
	rows, err := s.pool.Query(ctx, queryListAccounts, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var a domain.Account
		if err := scanAccount(rows, &a); err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// SetAccountActive soft-enables or soft-disables an account.
func (s *PostgresStore) SetAccountActive(ctx context.Context, id string, active bool) error {
	return s.execOne(ctx, "setting account active", querySetAccountActive, id, active)
}

// MarkNeedsReconnect flags an account as requiring user re-authorization.
func (s *PostgresStore) MarkNeedsReconnect(ctx context.Context, accountID, reason string) error {
	return s.execOne(ctx, "marking account needs reconnect", queryMarkNeedsReconnect, accountID, reason)
}

// CountNeedsReconnect counts active accounts flagged for re-authorization.
func (s *PostgresStore) CountNeedsReconnect(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, queryCountNeedsReconnect).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting accounts needing reconnect: %w", err)
	}
	return n, nil
}

// --- Tokens ---

// GetToken retrieves the stored token of an account for one environment.
func (s *PostgresStore) GetToken(
	ctx context.Context,
	accountID string,
	env domain.Environment,
) (*domain.Token, error) {
	t := &domain.Token{}
	if err := scanToken(s.pool.QueryRow(ctx, queryGetToken, accountID, string(env)), t); err != nil {
		return nil, notFound(err, "getting token")
	}
	return t, nil
}

// ListTokens returns every stored token row.
func (s *PostgresStore) ListTokens(ctx context.Context) ([]domain.Token, error) {
	return s.queryTokens(ctx, queryListTokens)
}

// UpsertToken stores a freshly authorized token pair and clears any
// reconnect flag of the account.
func (s *PostgresStore) UpsertToken(ctx context.Context, t *domain.Token) error {
	args := pgx.NamedArgs{
		"account_id":         t.AccountID,
		"environment":        string(t.Environment),
		"access_token":       t.AccessToken,
		"refresh_token":      t.RefreshToken,
		"access_expires_at":  t.AccessExpiresAt,
		"refresh_expires_at": t.RefreshExpiresAt,
		"scopes":             t.Scopes,
		"last_refreshed_at":  t.LastRefreshedAt,
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, queryUpsertToken, args).Scan(&t.ID, &t.UpdatedAt); err != nil {
			return fmt.Errorf("upserting token: %w", err)
		}
		t.LastRefreshError = nil
		t.LastRefreshErrorCode = nil
		if _, err := tx.Exec(ctx, queryClearNeedsReconnect, t.AccountID); err != nil {
			return fmt.Errorf("clearing reconnect flag: %w", err)
		}
		return nil
	})
}

// UpdateTokenSecrets rewrites the stored token strings, used when
// re-encrypting legacy plaintext rows.
func (s *PostgresStore) UpdateTokenSecrets(
	ctx context.Context,
	tokenID string,
	accessToken, refreshToken *string,
) error {
	return s.execOne(ctx, "updating token secrets", queryUpdateTokenSecrets, tokenID, accessToken, refreshToken)
}

// SaveTokenRefresh persists a successful refresh, clears the refresh error
// and the account's reconnect flag.
func (s *PostgresStore) SaveTokenRefresh(
	ctx context.Context,
	tokenID string,
	r *domain.TokenRefresh,
) error {
	args := pgx.NamedArgs{
		"id":                 tokenID,
		"access_token":       r.AccessToken,
		"access_expires_at":  r.AccessExpiresAt,
		"refresh_token":      r.RefreshToken,
		"refresh_expires_at": r.RefreshExpiresAt,
		"refreshed_at":       r.RefreshedAt,
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var accountID string
		err := tx.QueryRow(ctx, querySaveTokenRefresh, args).Scan(&accountID)
		if err != nil {
			return notFound(err, "saving token refresh")
		}
		if _, err := tx.Exec(ctx, queryClearNeedsReconnect, accountID); err != nil {
			return fmt.Errorf("clearing reconnect flag: %w", err)
		}
		return nil
	})
}

// SaveTokenRefreshError records the outcome of a failed refresh.
func (s *PostgresStore) SaveTokenRefreshError(ctx context.Context, tokenID, code, message string) error {
	return s.execOne(ctx, "saving token refresh error", querySaveTokenRefreshError, tokenID, code, message)
}

// ListRefreshCandidates returns tokens of active accounts that expire
// before the cutoff or whose last refresh failed with a retryable code.
func (s *PostgresStore) ListRefreshCandidates(
	ctx context.Context,
	q RefreshCandidateQuery,
) ([]domain.Token, error) {
	exclude := q.ExcludeErrorCodes
	if exclude == nil {
		exclude = []string{}
	}
	return s.queryTokens(ctx, queryListRefreshCandidates,
		string(q.Environment), q.ExpiringBefore, exclude,
	)
}

// --- Token refresh logs ---

// InsertTokenRefreshLog appends an audit record of a refresh attempt.
func (s *PostgresStore) InsertTokenRefreshLog(ctx context.Context, l *domain.TokenRefreshLog) error {
	args := pgx.NamedArgs{
		"account_id":     l.AccountID,
		"environment":    string(l.Environment),
		"api_family":     l.APIFamily,
		"triggered_by":   string(l.TriggeredBy),
		"started_at":     l.StartedAt,
		"finished_at":    l.FinishedAt,
		"success":        l.Success,
		"error_code":     l.ErrorCode,
		"error_message":  l.ErrorMessage,
		"old_expires_at": l.OldExpiresAt,
		"new_expires_at": l.NewExpiresAt,
		"token_hash":     l.TokenHash,
	}
	if err := s.pool.QueryRow(ctx, queryInsertTokenRefreshLog, args).Scan(&l.ID); err != nil {
		return fmt.Errorf("inserting token refresh log: %w", err)
	}
	return nil
}

// ListTokenRefreshLogs returns the newest refresh log entries of an account.
func (s *PostgresStore) ListTokenRefreshLogs(
	ctx context.Context,
	accountID string,
	limit int,
) ([]domain.TokenRefreshLog, error) {
	rows, err := s.pool.Query(ctx, queryListTokenRefreshLogs, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying token refresh logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.TokenRefreshLog
	for rows.Next() {
		var l domain.TokenRefreshLog
		if err := rows.Scan(
			&l.ID, &l.AccountID, &l.Environment, &l.APIFamily, &l.TriggeredBy,
			&l.StartedAt, &l.FinishedAt, &l.Success, &l.ErrorCode, &l.ErrorMessage,
			&l.OldExpiresAt, &l.NewExpiresAt, &l.TokenHash,
		); err != nil {
			return nil, fmt.Errorf("scanning token refresh log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// DeleteTokenRefreshLogsBefore prunes refresh logs older than cutoff.
func (s *PostgresStore) DeleteTokenRefreshLogsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, queryDeleteTokenRefreshLogsBefore, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting token refresh logs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// --- Sync states ---

// GetSyncState retrieves the sync state of one (account, api family).
func (s *PostgresStore) GetSyncState(
	ctx context.Context,
	accountID string,
	family domain.APIFamily,
) (*domain.SyncState, error) {
	st := &domain.SyncState{}
	row := s.pool.QueryRow(ctx, queryGetSyncState, accountID, string(family))
	if err := scanSyncState(row, st); err != nil {
		return nil, notFound(err, "getting sync state")
	}
	return st, nil
}

// ListSyncStates returns every sync state of an account.
func (s *PostgresStore) ListSyncStates(ctx context.Context, accountID string) ([]domain.SyncState, error) {
	rows, err := s.pool.Query(ctx, queryListSyncStates, accountID)
	if err != nil {
		return nil, fmt.Errorf("querying sync states: %w", err)
	}
	defer rows.Close()

	var states []domain.SyncState
	for rows.Next() {
		var st domain.SyncState
		if err := scanSyncState(rows, &st); err != nil {
			return nil, fmt.Errorf("scanning sync state: %w", err)
		}
		states = append(states, st)
	}
	return states, rows.Err()
}

// SetSyncEnabled enables or disables one (account, api family), creating
// its state row when missing.
func (s *PostgresStore) SetSyncEnabled(
	ctx context.Context,
	accountID string,
	family domain.APIFamily,
	enabled bool,
) error {
	if _, err := s.pool.Exec(ctx, queryUpsertSyncEnabled, accountID, string(family), enabled); err != nil {
		return fmt.Errorf("setting sync enabled: %w", err)
	}
	return nil
}

// --- Worker runs ---

// ClaimWorkerRun atomically reserves an (account, api family) for one run.
// The sync state row is locked for the duration of the transaction and the
// partial unique index on running rows rejects any concurrent insert that
// slips past the lock.
func (s *PostgresStore) ClaimWorkerRun(ctx context.Context, p ClaimParams) (*ClaimResult, error) {
	result := &ClaimResult{}
	family := string(p.APIFamily)

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, queryEnsureSyncState, p.AccountID, family); err != nil {
			return fmt.Errorf("ensuring sync state: %w", err)
		}

		var (
			enabled, active bool
			lastRunAt       *time.Time
		)
		err := tx.QueryRow(ctx, queryLockSyncState, p.AccountID, family).Scan(&enabled, &lastRunAt, &active)
		if err != nil {
			return notFound(err, "locking sync state")
		}

		switch {
		case !active:
			result.Outcome = ClaimInactive
			return nil
		case !enabled:
			result.Outcome = ClaimDisabled
			return nil
		}

		tag, err := tx.Exec(ctx, queryMarkStaleRunsForPair, p.AccountID, family, p.StaleBefore, p.Now)
		if err != nil {
			return fmt.Errorf("marking stale runs: %w", err)
		}
		result.StaleReclaimed = int(tag.RowsAffected())

		var running bool
		if err := tx.QueryRow(ctx, queryHasRunningRun, p.AccountID, family).Scan(&running); err != nil {
			return fmt.Errorf("checking running run: %w", err)
		}
		if running {
			result.Outcome = ClaimRunning
			return nil
		}

		if !p.Force && lastRunAt != nil && lastRunAt.After(p.DueBefore) {
			result.Outcome = ClaimNotDue
			return nil
		}

		run := &domain.WorkerRun{
			AccountID: p.AccountID,
			APIFamily: p.APIFamily,
			Status:    domain.RunRunning,
			Holder:    p.Holder,
		}
		err = tx.QueryRow(ctx, queryInsertRunningRun, p.AccountID, family, p.Holder, p.Now).
			Scan(&run.ID, &run.StartedAt, &run.HeartbeatAt)
		if errors.Is(err, pgx.ErrNoRows) {
			result.Outcome = ClaimRunning
			return nil
		}
		if err != nil {
			return fmt.Errorf("inserting worker run: %w", err)
		}

		result.Run = run
		result.Outcome = ClaimAcquired
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// HeartbeatWorkerRun bumps the heartbeat of a running run. It reports false
// when the run is no longer running (finished or reclaimed as stale).
func (s *PostgresStore) HeartbeatWorkerRun(ctx context.Context, runID string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, queryHeartbeatRun, runID, at)
	if err != nil {
		return false, fmt.Errorf("updating heartbeat: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// FinishWorkerRun records the outcome of a running run and advances the
// parent sync state. It reports false, changing nothing, when the run was
// already reclaimed.
func (s *PostgresStore) FinishWorkerRun(
	ctx context.Context,
	runID string,
	c *domain.RunCompletion,
	at time.Time,
) (bool, error) {
	var finished bool

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var accountID, family string
		err := tx.QueryRow(ctx, queryFinishRun,
			runID, string(c.Status), at, c.Summary, c.Summary.ErrorMessage,
		).Scan(&accountID, &family)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("finishing worker run: %w", err)
		}

		args := pgx.NamedArgs{
			"account_id":         accountID,
			"api_family":         family,
			"finished_at":        at,
			"last_error":         c.Summary.ErrorMessage,
			"cursor_type":        nil,
			"cursor_value":       nil,
			"backfill_completed": c.BackfillCompleted,
		}
		if c.NextCursor != nil {
			args["cursor_type"] = c.NextCursor.Type
			args["cursor_value"] = c.NextCursor.Value
		}
		if _, err := tx.Exec(ctx, queryUpdateSyncStateAfterRun, args); err != nil {
			return fmt.Errorf("updating sync state: %w", err)
		}

		finished = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return finished, nil
}

// ListDueWork returns active account × family pairs that are enabled, have
// not run since dueBefore, and have no live running run.
func (s *PostgresStore) ListDueWork(
	ctx context.Context,
	families []domain.APIFamily,
	dueBefore time.Time,
	staleBefore time.Time,
) ([]domain.WorkItem, error) {
	names := make([]string, len(families))
	for i, f := range families {
		names[i] = string(f)
	}

	rows, err := s.pool.Query(ctx, queryListDueWork, names, dueBefore, staleBefore)
	if err != nil {
		return nil, fmt.Errorf("querying due work: %w", err)
	}
	defer rows.Close()

	var items []domain.WorkItem
	for rows.Next() {
		var w domain.WorkItem
		if err := rows.Scan(&w.AccountID, &w.APIFamily); err != nil {
			return nil, fmt.Errorf("scanning work item: %w", err)
		}
		items = append(items, w)
	}
	return items, rows.Err()
}

// ListWorkerRuns returns worker runs matching the query, newest first.
func (s *PostgresStore) ListWorkerRuns(ctx context.Context, q *WorkerRunQuery) ([]domain.WorkerRun, error) {
	sql, args := q.ToSQL()
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying worker runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.WorkerRun
	for rows.Next() {
		var r domain.WorkerRun
		if err := rows.Scan(
			&r.ID, &r.AccountID, &r.APIFamily, &r.Status, &r.Holder,
			&r.StartedAt, &r.FinishedAt, &r.HeartbeatAt, &r.Summary, &r.ErrorText,
		); err != nil {
			return nil, fmt.Errorf("scanning worker run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// MarkStaleWorkerRuns marks every running run whose heartbeat is older than
// staleBefore as stale.
func (s *PostgresStore) MarkStaleWorkerRuns(ctx context.Context, staleBefore, at time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, queryMarkStaleRuns, staleBefore, at)
	if err != nil {
		return 0, fmt.Errorf("marking stale worker runs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// DeleteWorkerRunsBefore prunes finished runs older than cutoff.
func (s *PostgresStore) DeleteWorkerRunsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, queryDeleteWorkerRunsBefore, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting worker runs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// --- Synced records ---

// UpsertOrders stores a page of orders in one batch and returns the number
// of rows written.
func (s *PostgresStore) UpsertOrders(ctx context.Context, orders []domain.Order) (int, error) {
	if len(orders) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for i := range orders {
		o := &orders[i]
		batch.Queue(queryUpsertOrder, pgx.NamedArgs{
			"account_id":         o.AccountID,
			"order_id":           o.OrderID,
			"buyer_username":     o.BuyerUsername,
			"fulfillment_status": o.FulfillmentStatus,
			"payment_status":     o.PaymentStatus,
			"total":              o.Total,
			"currency":           o.Currency,
			"line_item_count":    o.LineItemCount,
			"created_at":         nullTime(o.CreatedAt),
			"last_modified_at":   nullTime(o.LastModifiedAt),
			"raw":                nullJSON(o.Raw),
		})
	}
	return s.sendBatch(ctx, batch, "orders")
}

// UpsertFinanceTransactions stores a page of finance transactions in one
// batch and returns the number of rows written.
func (s *PostgresStore) UpsertFinanceTransactions(
	ctx context.Context,
	txns []domain.FinanceTransaction,
) (int, error) {
	if len(txns) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for i := range txns {
		t := &txns[i]
		batch.Queue(queryUpsertFinanceTransaction, pgx.NamedArgs{
			"account_id":         t.AccountID,
			"transaction_id":     t.TransactionID,
			"transaction_type":   t.TransactionType,
			"transaction_status": t.TransactionStatus,
			"order_id":           t.OrderID,
			"amount":             t.Amount,
			"currency":           t.Currency,
			"booking_entry":      t.BookingEntry,
			"transaction_date":   nullTime(t.TransactionDate),
			"raw":                nullJSON(t.Raw),
		})
	}
	return s.sendBatch(ctx, batch, "finance transactions")
}

func (s *PostgresStore) sendBatch(ctx context.Context, batch *pgx.Batch, what string) (int, error) {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	var n int
	for range batch.Len() {
		tag, err := br.Exec()
		if err != nil {
			return n, fmt.Errorf("upserting %s: %w", what, err)
		}
		n += int(tag.RowsAffected())
	}
	return n, nil
}

// --- Scheduler ---

// InsertJobRun records the start of a scheduled job and returns its UUID.
func (s *PostgresStore) InsertJobRun(ctx context.Context, jobName string) (string, error) {
	var id string
	if err := s.pool.QueryRow(ctx, queryInsertJobRun, jobName).Scan(&id); err != nil {
		return "", fmt.Errorf("inserting job run: %w", err)
	}
	return id, nil
}

// CompleteJobRun marks a job run as finished with the given status and metadata.
func (s *PostgresStore) CompleteJobRun(
	ctx context.Context,
	id string,
	status string,
	errText string,
	rowsAffected int,
) error {
	_, err := s.pool.Exec(ctx, queryCompleteJobRun, id, status, errText, rowsAffected)
	if err != nil {
		return fmt.Errorf("completing job run: %w", err)
	}
	return nil
}

// ListJobRuns returns the most recent runs for a specific job, newest first.
func (s *PostgresStore) ListJobRuns(
	ctx context.Context,
	jobName string,
	limit int,
) ([]domain.JobRun, error) {
	rows, err := s.pool.Query(ctx, queryListJobRuns, jobName, limit)
	if err != nil {
		return nil, fmt.Errorf("querying job runs: %w", err)
	}
	defer rows.Close()

	return scanJobRuns(rows)
}

// ListLatestJobRuns returns the single most recent run for each distinct job name.
func (s *PostgresStore) ListLatestJobRuns(ctx context.Context) ([]domain.JobRun, error) {
	rows, err := s.pool.Query(ctx, queryListLatestJobRuns)
	if err != nil {
		return nil, fmt.Errorf("querying latest job runs: %w", err)
	}
	defer rows.Close()

	return scanJobRuns(rows)
}

// RecoverStaleJobRuns marks any 'running' job rows older than olderThan as 'crashed',
// then deletes all rows older than 30 days. Returns the number of rows marked as crashed.
func (s *PostgresStore) RecoverStaleJobRuns(
	ctx context.Context,
	olderThan time.Duration,
) (int, error) {
	cutoff := time.Now().Add(-olderThan)

	tag, err := s.pool.Exec(ctx, queryMarkStaleJobRunsCrashed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("marking stale job runs crashed: %w", err)
	}
	affected := int(tag.RowsAffected())

	if _, err := s.pool.Exec(ctx, queryDeleteOldJobRuns); err != nil {
		return affected, fmt.Errorf("deleting old job runs: %w", err)
	}

	return affected, nil
}

// --- helpers ---

// execOne runs a single-row update and maps zero affected rows to ErrNotFound.
func (s *PostgresStore) execOne(ctx context.Context, what, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) queryTokens(ctx context.Context, query string, args ...any) ([]domain.Token, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tokens: %w", err)
	}
	defer rows.Close()

	var tokens []domain.Token
	for rows.Next() {
		var t domain.Token
		if err := scanToken(rows, &t); err != nil {
			return nil, fmt.Errorf("scanning token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// notFound maps pgx.ErrNoRows to ErrNotFound and wraps anything else.
func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// scanJobRuns scans rows from a job_runs query into a slice.
func scanJobRuns(rows pgx.Rows) ([]domain.JobRun, error) {
	var runs []domain.JobRun
	for rows.Next() {
		var r domain.JobRun
		if err := rows.Scan(
			&r.ID, &r.JobName, &r.StartedAt, &r.CompletedAt,
			&r.Status, &r.ErrorText, &r.RowsAffected,
		); err != nil {
			return nil, fmt.Errorf("scanning job run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// scannable abstracts pgx.Row and pgx.Rows for reuse.
type scannable interface {
	Scan(dest ...any) error
}

func scanAccount(row scannable, a *domain.Account) error {
	return row.Scan(
		&a.ID, &a.EbayUserID, &a.DisplayName, &a.Active, &a.OwnerID, &a.ConnectedAt,
		&a.NeedsReconnect, &a.ReconnectReason, &a.UpdatedAt,
	)
}

func scanToken(row scannable, t *domain.Token) error {
	return row.Scan(
		&t.ID, &t.AccountID, &t.Environment, &t.AccessToken, &t.RefreshToken,
		&t.AccessExpiresAt, &t.RefreshExpiresAt, &t.Scopes, &t.LastRefreshedAt,
		&t.LastRefreshError, &t.LastRefreshErrorCode, &t.UpdatedAt,
	)
}

func scanSyncState(row scannable, st *domain.SyncState) error {
	return row.Scan(
		&st.AccountID, &st.APIFamily, &st.Enabled, &st.BackfillCompleted, &st.CursorType,
		&st.CursorValue, &st.LastRunAt, &st.LastError, &st.Metadata, &st.CreatedAt, &st.UpdatedAt,
	)
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

var _ Store = (*PostgresStore)(nil)
