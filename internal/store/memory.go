package store

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

type pairKey struct {
	accountID string
	family    domain.APIFamily
}

type tokenKey struct {
	accountID string
	env       domain.Environment
}

// MemoryStore is an in-memory Store. It is safe for concurrent use; claims
// are serialized by a single mutex, which gives the same at-most-one-running
// guarantee the Postgres partial unique index provides.
type MemoryStore struct {
	mu sync.Mutex

	accounts     map[string]*domain.Account
	tokens       map[tokenKey]*domain.Token
	refreshLogs  []domain.TokenRefreshLog
	syncStates   map[pairKey]*domain.SyncState
	runs         map[string]*domain.WorkerRun
	orders       map[string]domain.Order
	transactions map[string]domain.FinanceTransaction
	jobRuns      []domain.JobRun
	nextLogID    int64

	pingErr error
	nowFunc func() time.Time
}

// MemoryOption configures the MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryNowFunc overrides the clock used for bookkeeping timestamps.
func WithMemoryNowFunc(f func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.nowFunc = f
	}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		accounts:     make(map[string]*domain.Account),
		tokens:       make(map[tokenKey]*domain.Token),
		syncStates:   make(map[pairKey]*domain.SyncState),
		runs:         make(map[string]*domain.WorkerRun),
		orders:       make(map[string]domain.Order),
		transactions: make(map[string]domain.FinanceTransaction),
		nowFunc:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetPingError makes Ping fail with err (nil restores health).
func (s *MemoryStore) SetPingError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pingErr = err
}

// Ping reports the configured health.
func (s *MemoryStore) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pingErr
}

// Migrate is a no-op.
func (*MemoryStore) Migrate(_ context.Context) error { return nil }

// Accounts

// UpsertAccount inserts or updates an account by its eBay user id.
func (s *MemoryStore) UpsertAccount(_ context.Context, a *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	for _, existing := range s.accounts {
		if existing.EbayUserID == a.EbayUserID {
			existing.DisplayName = a.DisplayName
			existing.OwnerID = a.OwnerID
			existing.Active = a.Active
			existing.UpdatedAt = now
			*a = *existing
			return nil
		}
	}

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.ConnectedAt.IsZero() {
		a.ConnectedAt = now
	}
	a.UpdatedAt = now
	cp := *a
	s.accounts[a.ID] = &cp
	return nil
}

// GetAccount retrieves an account by id.
func (s *MemoryStore) GetAccount(_ context.Context, id string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("getting account: %w", ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

// ListAccounts returns all accounts, optionally only active ones.
func (s *MemoryStore) ListAccounts(_ context.Context, activeOnly bool) ([]domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Account
	for _, a := range s.accounts {
		if activeOnly && !a.Active {
			continue
		}
		out = append(out, *a)
	}
	slices.SortFunc(out, func(x, y domain.Account) int {
		return cmp.Or(cmp.Compare(x.DisplayName, y.DisplayName), cmp.Compare(x.EbayUserID, y.EbayUserID))
	})
	return out, nil
}

// SetAccountActive soft-enables or soft-disables an account.
func (s *MemoryStore) SetAccountActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return fmt.Errorf("setting account active: %w", ErrNotFound)
	}
	a.Active = active
	a.UpdatedAt = s.nowFunc()
	return nil
}

// MarkNeedsReconnect flags an account as requiring user re-authorization.
func (s *MemoryStore) MarkNeedsReconnect(_ context.Context, accountID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return fmt.Errorf("marking account needs reconnect: %w", ErrNotFound)
	}
	a.NeedsReconnect = true
	a.ReconnectReason = reason
	a.UpdatedAt = s.nowFunc()
	return nil
}

// CountNeedsReconnect counts active accounts flagged for re-authorization.
func (s *MemoryStore) CountNeedsReconnect(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	for _, a := range s.accounts {
		if a.Active && a.NeedsReconnect {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) clearNeedsReconnectLocked(accountID string) {
	if a, ok := s.accounts[accountID]; ok && a.NeedsReconnect {
		a.NeedsReconnect = false
		a.ReconnectReason = ""
		a.UpdatedAt = s.nowFunc()
	}
}

// Tokens

// GetToken retrieves the stored token of an account for one environment.
func (s *MemoryStore) GetToken(
	_ context.Context,
	accountID string,
	env domain.Environment,
) (*domain.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[tokenKey{accountID, env}]
	if !ok {
		return nil, fmt.Errorf("getting token: %w", ErrNotFound)
	}
	return copyToken(t), nil
}

// ListTokens returns every stored token row.
func (s *MemoryStore) ListTokens(_ context.Context) ([]domain.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Token, 0, len(s.tokens))
	for _, t := range s.tokens {
		out = append(out, *copyToken(t))
	}
	slices.SortFunc(out, func(x, y domain.Token) int {
		return cmp.Or(cmp.Compare(x.AccountID, y.AccountID), cmp.Compare(x.Environment, y.Environment))
	})
	return out, nil
}

// UpsertToken stores a freshly authorized token pair and clears any
// reconnect flag of the account.
func (s *MemoryStore) UpsertToken(_ context.Context, t *domain.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[t.AccountID]; !ok {
		return fmt.Errorf("upserting token: account %s: %w", t.AccountID, ErrNotFound)
	}
	if t.Environment == "" {
		t.Environment = domain.EnvProduction
	}

	key := tokenKey{t.AccountID, t.Environment}
	if existing, ok := s.tokens[key]; ok {
		t.ID = existing.ID
	} else if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.LastRefreshError = nil
	t.LastRefreshErrorCode = nil
	t.UpdatedAt = s.nowFunc()

	s.tokens[key] = copyToken(t)
	s.clearNeedsReconnectLocked(t.AccountID)
	return nil
}

// UpdateTokenSecrets rewrites the stored token strings.
func (s *MemoryStore) UpdateTokenSecrets(
	_ context.Context,
	tokenID string,
	accessToken, refreshToken *string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.tokenByIDLocked(tokenID)
	if t == nil {
		return fmt.Errorf("updating token secrets: %w", ErrNotFound)
	}
	t.AccessToken = cloneString(accessToken)
	t.RefreshToken = cloneString(refreshToken)
	t.UpdatedAt = s.nowFunc()
	return nil
}

// SaveTokenRefresh persists a successful refresh.
func (s *MemoryStore) SaveTokenRefresh(_ context.Context, tokenID string, r *domain.TokenRefresh) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.tokenByIDLocked(tokenID)
	if t == nil {
		return fmt.Errorf("saving token refresh: %w", ErrNotFound)
	}

	access := r.AccessToken
	expires := r.AccessExpiresAt
	refreshedAt := r.RefreshedAt
	t.AccessToken = &access
	t.AccessExpiresAt = &expires
	if r.RefreshToken != nil {
		t.RefreshToken = cloneString(r.RefreshToken)
	}
	if r.RefreshExpiresAt != nil {
		re := *r.RefreshExpiresAt
		t.RefreshExpiresAt = &re
	}
	t.LastRefreshedAt = &refreshedAt
	t.LastRefreshError = nil
	t.LastRefreshErrorCode = nil
	t.UpdatedAt = s.nowFunc()

	s.clearNeedsReconnectLocked(t.AccountID)
	return nil
}

// SaveTokenRefreshError records the outcome of a failed refresh.
func (s *MemoryStore) SaveTokenRefreshError(_ context.Context, tokenID, code, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.tokenByIDLocked(tokenID)
	if t == nil {
		return fmt.Errorf("saving token refresh error: %w", ErrNotFound)
	}
	t.LastRefreshError = &message
	t.LastRefreshErrorCode = &code
	t.UpdatedAt = s.nowFunc()
	return nil
}

// ListRefreshCandidates returns tokens of active accounts that expire
// before the cutoff or whose last refresh failed with a retryable code.
func (s *MemoryStore) ListRefreshCandidates(
	_ context.Context,
	q RefreshCandidateQuery,
) ([]domain.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Token
	for _, t := range s.tokens {
		if t.Environment != q.Environment {
			continue
		}
		if a, ok := s.accounts[t.AccountID]; !ok || !a.Active {
			continue
		}
		if t.LastRefreshErrorCode != nil && slices.Contains(q.ExcludeErrorCodes, *t.LastRefreshErrorCode) {
			continue
		}
		expiring := t.AccessExpiresAt == nil || !t.AccessExpiresAt.After(q.ExpiringBefore)
		if expiring || t.LastRefreshError != nil {
			out = append(out, *copyToken(t))
		}
	}
	slices.SortFunc(out, func(x, y domain.Token) int {
		return cmp.Compare(x.AccountID, y.AccountID)
	})
	return out, nil
}

func (s *MemoryStore) tokenByIDLocked(id string) *domain.Token {
	for _, t := range s.tokens {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Token refresh logs

// InsertTokenRefreshLog appends an audit record of a refresh attempt.
func (s *MemoryStore) InsertTokenRefreshLog(_ context.Context, l *domain.TokenRefreshLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextLogID++
	l.ID = s.nextLogID
	s.refreshLogs = append(s.refreshLogs, *l)
	return nil
}

// ListTokenRefreshLogs returns the newest refresh log entries of an account.
// A limit <= 0 returns every entry.
func (s *MemoryStore) ListTokenRefreshLogs(
	_ context.Context,
	accountID string,
	limit int,
) ([]domain.TokenRefreshLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.TokenRefreshLog
	for i := len(s.refreshLogs) - 1; i >= 0; i-- {
		if s.refreshLogs[i].AccountID != accountID {
			continue
		}
		out = append(out, s.refreshLogs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// DeleteTokenRefreshLogsBefore prunes refresh logs older than cutoff.
func (s *MemoryStore) DeleteTokenRefreshLogsBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.refreshLogs)
	s.refreshLogs = slices.DeleteFunc(s.refreshLogs, func(l domain.TokenRefreshLog) bool {
		return l.FinishedAt.Before(cutoff)
	})
	return before - len(s.refreshLogs), nil
}

// Sync states

// GetSyncState retrieves the sync state of one (account, api family).
func (s *MemoryStore) GetSyncState(
	_ context.Context,
	accountID string,
	family domain.APIFamily,
) (*domain.SyncState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.syncStates[pairKey{accountID, family}]
	if !ok {
		return nil, fmt.Errorf("getting sync state: %w", ErrNotFound)
	}
	cp := *st
	return &cp, nil
}

// ListSyncStates returns every sync state of an account.
func (s *MemoryStore) ListSyncStates(_ context.Context, accountID string) ([]domain.SyncState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.SyncState
	for k, st := range s.syncStates {
		if k.accountID == accountID {
			out = append(out, *st)
		}
	}
	slices.SortFunc(out, func(x, y domain.SyncState) int {
		return cmp.Compare(x.APIFamily, y.APIFamily)
	})
	return out, nil
}

// SetSyncEnabled enables or disables one (account, api family).
func (s *MemoryStore) SetSyncEnabled(
	_ context.Context,
	accountID string,
	family domain.APIFamily,
	enabled bool,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[accountID]; !ok {
		return fmt.Errorf("setting sync enabled: %w", ErrNotFound)
	}
	st := s.ensureSyncStateLocked(accountID, family)
	st.Enabled = enabled
	st.UpdatedAt = s.nowFunc()
	return nil
}

func (s *MemoryStore) ensureSyncStateLocked(accountID string, family domain.APIFamily) *domain.SyncState {
	key := pairKey{accountID, family}
	st, ok := s.syncStates[key]
	if !ok {
		now := s.nowFunc()
		st = &domain.SyncState{
			AccountID: accountID,
			APIFamily: family,
			Enabled:   true,
			Metadata:  json.RawMessage(`{}`),
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.syncStates[key] = st
	}
	return st
}

// Worker runs

// ClaimWorkerRun atomically reserves an (account, api family) for one run.
func (s *MemoryStore) ClaimWorkerRun(_ context.Context, p ClaimParams) (*ClaimResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[p.AccountID]
	if !ok {
		return nil, fmt.Errorf("locking sync state: %w", ErrNotFound)
	}

	st := s.ensureSyncStateLocked(p.AccountID, p.APIFamily)
	result := &ClaimResult{}

	switch {
	case !a.Active:
		result.Outcome = ClaimInactive
		return result, nil
	case !st.Enabled:
		result.Outcome = ClaimDisabled
		return result, nil
	}

	var running bool
	for _, r := range s.runs {
		if r.AccountID != p.AccountID || r.APIFamily != p.APIFamily || r.Status != domain.RunRunning {
			continue
		}
		if r.HeartbeatAt.Before(p.StaleBefore) {
			markStale(r, p.Now)
			result.StaleReclaimed++
			continue
		}
		running = true
	}
	if running {
		result.Outcome = ClaimRunning
		return result, nil
	}

	if !p.Force && st.LastRunAt != nil && st.LastRunAt.After(p.DueBefore) {
		result.Outcome = ClaimNotDue
		return result, nil
	}

	run := &domain.WorkerRun{
		ID:          uuid.NewString(),
		AccountID:   p.AccountID,
		APIFamily:   p.APIFamily,
		Status:      domain.RunRunning,
		Holder:      p.Holder,
		StartedAt:   p.Now,
		HeartbeatAt: p.Now,
	}
	s.runs[run.ID] = run

	cp := *run
	result.Run = &cp
	result.Outcome = ClaimAcquired
	return result, nil
}

// HeartbeatWorkerRun bumps the heartbeat of a running run.
func (s *MemoryStore) HeartbeatWorkerRun(_ context.Context, runID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.runs[runID]
	if !ok || r.Status != domain.RunRunning {
		return false, nil
	}
	r.HeartbeatAt = at
	return true, nil
}

// FinishWorkerRun records the outcome of a running run and advances the
// parent sync state.
func (s *MemoryStore) FinishWorkerRun(
	_ context.Context,
	runID string,
	c *domain.RunCompletion,
	at time.Time,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.runs[runID]
	if !ok || r.Status != domain.RunRunning {
		return false, nil
	}

	summary := c.Summary
	finished := at
	r.Status = c.Status
	r.FinishedAt = &finished
	r.Summary = &summary
	r.ErrorText = c.Summary.ErrorMessage

	st := s.ensureSyncStateLocked(r.AccountID, r.APIFamily)
	st.LastRunAt = &finished
	st.LastError = c.Summary.ErrorMessage
	if c.NextCursor != nil {
		st.CursorType = c.NextCursor.Type
		st.CursorValue = c.NextCursor.Value
	}
	st.BackfillCompleted = st.BackfillCompleted || c.BackfillCompleted
	st.UpdatedAt = s.nowFunc()
	return true, nil
}

// ListDueWork returns active account × family pairs that are due.
func (s *MemoryStore) ListDueWork(
	_ context.Context,
	families []domain.APIFamily,
	dueBefore time.Time,
	staleBefore time.Time,
) ([]domain.WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := make(map[pairKey]bool)
	for _, r := range s.runs {
		if r.Status == domain.RunRunning && !r.HeartbeatAt.Before(staleBefore) {
			live[pairKey{r.AccountID, r.APIFamily}] = true
		}
	}

	var out []domain.WorkItem
	for _, a := range s.accounts {
		if !a.Active || a.NeedsReconnect {
			continue
		}
		for _, f := range families {
			key := pairKey{a.ID, f}
			if live[key] {
				continue
			}
			if st, ok := s.syncStates[key]; ok {
				if !st.Enabled || (st.LastRunAt != nil && st.LastRunAt.After(dueBefore)) {
					continue
				}
			}
			out = append(out, domain.WorkItem{AccountID: a.ID, APIFamily: f})
		}
	}
	slices.SortFunc(out, func(x, y domain.WorkItem) int {
		return cmp.Or(cmp.Compare(x.AccountID, y.AccountID), cmp.Compare(x.APIFamily, y.APIFamily))
	})
	return out, nil
}

// ListWorkerRuns returns worker runs matching the query, newest first.
func (s *MemoryStore) ListWorkerRuns(_ context.Context, q *WorkerRunQuery) ([]domain.WorkerRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.WorkerRun
	for _, r := range s.runs {
		if q.AccountID != nil && r.AccountID != *q.AccountID {
			continue
		}
		if q.APIFamily != nil && r.APIFamily != *q.APIFamily {
			continue
		}
		if len(q.Statuses) > 0 && !slices.Contains(q.Statuses, r.Status) {
			continue
		}
		out = append(out, *r)
	}
	slices.SortFunc(out, func(x, y domain.WorkerRun) int {
		return y.StartedAt.Compare(x.StartedAt)
	})

	offset := min(max(q.Offset, 0), len(out))
	end := min(offset+q.limit(), len(out))
	return out[offset:end], nil
}

// MarkStaleWorkerRuns marks every running run whose heartbeat is older than
// staleBefore as stale.
func (s *MemoryStore) MarkStaleWorkerRuns(_ context.Context, staleBefore, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	for _, r := range s.runs {
		if r.Status == domain.RunRunning && r.HeartbeatAt.Before(staleBefore) {
			markStale(r, at)
			n++
		}
	}
	return n, nil
}

// DeleteWorkerRunsBefore prunes finished runs older than cutoff.
func (s *MemoryStore) DeleteWorkerRunsBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	for id, r := range s.runs {
		if r.Status != domain.RunRunning && r.FinishedAt != nil && r.FinishedAt.Before(cutoff) {
			delete(s.runs, id)
			n++
		}
	}
	return n, nil
}

func markStale(r *domain.WorkerRun, at time.Time) {
	finished := at
	r.Status = domain.RunStale
	r.FinishedAt = &finished
	r.ErrorText = "heartbeat timeout"
}

// Synced records

// UpsertOrders stores orders keyed by (account, order id).
func (s *MemoryStore) UpsertOrders(_ context.Context, orders []domain.Order) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range orders {
		s.orders[o.AccountID+"/"+o.OrderID] = o
	}
	return len(orders), nil
}

// UpsertFinanceTransactions stores transactions keyed by (account,
// transaction id).
func (s *MemoryStore) UpsertFinanceTransactions(_ context.Context, txns []domain.FinanceTransaction) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range txns {
		s.transactions[t.AccountID+"/"+t.TransactionID] = t
	}
	return len(txns), nil
}

// Orders returns the stored orders of an account, sorted by order id.
func (s *MemoryStore) Orders(accountID string) []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Order
	for _, o := range s.orders {
		if o.AccountID == accountID {
			out = append(out, o)
		}
	}
	slices.SortFunc(out, func(x, y domain.Order) int { return cmp.Compare(x.OrderID, y.OrderID) })
	return out
}

// FinanceTransactions returns the stored transactions of an account, sorted
// by transaction id.
func (s *MemoryStore) FinanceTransactions(accountID string) []domain.FinanceTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.FinanceTransaction
	for _, t := range s.transactions {
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(x, y domain.FinanceTransaction) int {
		return cmp.Compare(x.TransactionID, y.TransactionID)
	})
	return out
}

// Scheduler

// InsertJobRun records the start of a scheduled job and returns its id.
func (s *MemoryStore) InsertJobRun(_ context.Context, jobName string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.jobRuns = append(s.jobRuns, domain.JobRun{
		ID:        id,
		JobName:   jobName,
		StartedAt: s.nowFunc(),
		Status:    "running",
	})
	return id, nil
}

// CompleteJobRun marks a job run as finished.
func (s *MemoryStore) CompleteJobRun(
	_ context.Context,
	id string,
	status string,
	errText string,
	rowsAffected int,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.jobRuns {
		if s.jobRuns[i].ID != id {
			continue
		}
		now := s.nowFunc()
		rows := rowsAffected
		s.jobRuns[i].CompletedAt = &now
		s.jobRuns[i].Status = status
		s.jobRuns[i].ErrorText = errText
		s.jobRuns[i].RowsAffected = &rows
		return nil
	}
	return fmt.Errorf("completing job run: %w", ErrNotFound)
}

// ListJobRuns returns the most recent runs for a job, newest first.
func (s *MemoryStore) ListJobRuns(_ context.Context, jobName string, limit int) ([]domain.JobRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.JobRun
	for i := len(s.jobRuns) - 1; i >= 0; i-- {
		if s.jobRuns[i].JobName != jobName {
			continue
		}
		out = append(out, s.jobRuns[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// ListLatestJobRuns returns the most recent run of each job.
func (s *MemoryStore) ListLatestJobRuns(_ context.Context) ([]domain.JobRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	latest := make(map[string]domain.JobRun)
	for _, r := range s.jobRuns {
		latest[r.JobName] = r
	}
	out := make([]domain.JobRun, 0, len(latest))
	for _, r := range latest {
		out = append(out, r)
	}
	slices.SortFunc(out, func(x, y domain.JobRun) int { return cmp.Compare(x.JobName, y.JobName) })
	return out, nil
}

// RecoverStaleJobRuns marks running job rows older than olderThan as crashed.
func (s *MemoryStore) RecoverStaleJobRuns(_ context.Context, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	cutoff := now.Add(-olderThan)
	var n int
	for i := range s.jobRuns {
		if s.jobRuns[i].Status == "running" && s.jobRuns[i].StartedAt.Before(cutoff) {
			s.jobRuns[i].Status = "crashed"
			s.jobRuns[i].CompletedAt = &now
			n++
		}
	}
	return n, nil
}

func copyToken(t *domain.Token) *domain.Token {
	cp := *t
	cp.AccessToken = cloneString(t.AccessToken)
	cp.RefreshToken = cloneString(t.RefreshToken)
	cp.AccessExpiresAt = cloneTime(t.AccessExpiresAt)
	cp.RefreshExpiresAt = cloneTime(t.RefreshExpiresAt)
	cp.LastRefreshedAt = cloneTime(t.LastRefreshedAt)
	cp.LastRefreshError = cloneString(t.LastRefreshError)
	cp.LastRefreshErrorCode = cloneString(t.LastRefreshErrorCode)
	return &cp
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

var _ Store = (*MemoryStore)(nil)
