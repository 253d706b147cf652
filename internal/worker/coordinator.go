// Package worker coordinates per (account, api family) sync runs. Mutual
// exclusion is enforced by the database so any number of processes may run
// the same loops.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/donaldgifford/ebay-seller-sync/internal/metrics"
	"github.com/donaldgifford/ebay-seller-sync/internal/store"
	"github.com/donaldgifford/ebay-seller-sync/internal/telemetry"
	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

// Coordinator defaults.
const (
	DefaultStaleTimeout = 15 * time.Minute
	DefaultInterval     = 5 * time.Minute
	DefaultRunRetention = 30 * 24 * time.Hour
	DefaultLogRetention = 90 * 24 * time.Hour
)

// ErrRunLost is returned when a run was reclaimed as stale by another
// claimer before it could heartbeat or finish.
var ErrRunLost = errors.New("worker run lost")

// RunHandle identifies a claimed run.
type RunHandle struct {
	RunID      string
	AccountID  string
	APIFamily  domain.APIFamily
	Holder     string
	StartedAt  time.Time
	Cursor     domain.Cursor
	Backfilled bool
}

// CleanupSummary reports what Cleanup removed.
type CleanupSummary struct {
	StaleMarked        int `json:"stale_marked"`
	RunsDeleted        int `json:"runs_deleted"`
	RefreshLogsDeleted int `json:"refresh_logs_deleted"`
}

// Total returns the number of rows touched.
func (c CleanupSummary) Total() int {
	return c.StaleMarked + c.RunsDeleted + c.RefreshLogsDeleted
}

// Coordinator claims, heartbeats and finishes worker runs.
type Coordinator struct {
	store        store.Store
	log          *slog.Logger
	tracer       trace.Tracer
	holder       string
	interval     time.Duration
	staleTimeout time.Duration
	nowFunc      func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		c.log = l
	}
}

// WithInterval sets how long a pair rests between runs.
func WithInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		c.interval = d
	}
}

// WithStaleTimeout sets how long a running run may go without a heartbeat
// before it is reclaimable.
func WithStaleTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.staleTimeout = d
	}
}

// WithHolder overrides the generated holder id recorded on claimed runs.
func WithHolder(h string) Option {
	return func(c *Coordinator) {
		c.holder = h
	}
}

// WithNowFunc overrides the time function for testing.
func WithNowFunc(f func() time.Time) Option {
	return func(c *Coordinator) {
		c.nowFunc = f
	}
}

// NewCoordinator creates a Coordinator. Each instance gets its own holder
// id so runs can be traced back to the process that claimed them.
func NewCoordinator(s store.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:        s,
		log:          slog.Default(),
		tracer:       telemetry.Tracer(),
		holder:       uuid.NewString(),
		interval:     DefaultInterval,
		staleTimeout: DefaultStaleTimeout,
		nowFunc:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Holder returns the holder id of this coordinator.
func (c *Coordinator) Holder() string {
	return c.holder
}

// Claim reserves the pair for one run. It returns a nil handle and no
// error when the pair is disabled, inactive, already running or not due.
func (c *Coordinator) Claim(ctx context.Context, accountID string, family domain.APIFamily) (*RunHandle, error) {
	h, _, err := c.TryClaim(ctx, accountID, family, false)
	return h, err
}

// TryClaim is Claim that also reports the outcome. With force set the
// interval check is skipped; a live run still blocks the claim.
func (c *Coordinator) TryClaim(
	ctx context.Context,
	accountID string,
	family domain.APIFamily,
	force bool,
) (*RunHandle, store.ClaimOutcome, error) {
	ctx, span := c.tracer.Start(ctx, "worker.Claim", trace.WithAttributes(
		attribute.String("account_id", accountID),
		attribute.String("api_family", string(family)),
		attribute.Bool("force", force),
	))
	defer span.End()

	now := c.nowFunc()
	res, err := c.store.ClaimWorkerRun(ctx, store.ClaimParams{
		AccountID:   accountID,
		APIFamily:   family,
		Holder:      c.holder,
		Now:         now,
		DueBefore:   now.Add(-c.interval),
		StaleBefore: now.Add(-c.staleTimeout),
		Force:       force,
	})
	if err != nil {
		return nil, "", fmt.Errorf("claiming %s/%s: %w", accountID, family, err)
	}

	span.SetAttributes(attribute.String("claim.outcome", string(res.Outcome)))
	metrics.WorkerClaimsTotal.WithLabelValues(string(family), string(res.Outcome)).Inc()
	if res.StaleReclaimed > 0 {
		metrics.WorkerStaleReclaimsTotal.Add(float64(res.StaleReclaimed))
		c.log.Warn("reclaimed stale worker run",
			"account_id", accountID,
			"api_family", string(family),
			"stale_runs", res.StaleReclaimed,
		)
	}

	if res.Outcome != store.ClaimAcquired {
		c.log.Debug("pair not claimable",
			"account_id", accountID,
			"api_family", string(family),
			"outcome", string(res.Outcome),
		)
		return nil, res.Outcome, nil
	}

	h := &RunHandle{
		RunID:     res.Run.ID,
		AccountID: accountID,
		APIFamily: family,
		Holder:    res.Run.Holder,
		StartedAt: res.Run.StartedAt,
	}
	st, err := c.store.GetSyncState(ctx, accountID, family)
	if err != nil {
		// The claim stands; finish it so the pair is not blocked until stale.
		c.finishQuietly(ctx, h, domain.RunError, fmt.Sprintf("loading sync state: %v", err))
		return nil, "", fmt.Errorf("loading sync state: %w", err)
	}
	h.Cursor = st.Cursor()
	h.Backfilled = st.BackfillCompleted

	c.log.Debug("claimed worker run",
		"account_id", accountID,
		"api_family", string(family),
		"run_id", h.RunID,
	)
	return h, res.Outcome, nil
}

// Heartbeat bumps the heartbeat of a claimed run.
func (c *Coordinator) Heartbeat(ctx context.Context, h *RunHandle) error {
	ok, err := c.store.HeartbeatWorkerRun(ctx, h.RunID, c.nowFunc())
	if err != nil {
		return fmt.Errorf("recording heartbeat: %w", err)
	}
	if !ok {
		return ErrRunLost
	}
	return nil
}

// HeartbeatFunc binds Heartbeat to a handle for routines.
func (c *Coordinator) HeartbeatFunc(h *RunHandle) HeartbeatFunc {
	return func(ctx context.Context) error {
		return c.Heartbeat(ctx, h)
	}
}

// Finish records the outcome of a run and advances the pair's sync state.
// It returns ErrRunLost when the run was already reclaimed; the sync state
// is left untouched in that case.
func (c *Coordinator) Finish(ctx context.Context, h *RunHandle, status domain.RunStatus, summary *Summary) error {
	if !status.Terminal() || status == domain.RunStale {
		return fmt.Errorf("finishing run: invalid status %q", status)
	}
	if summary == nil {
		summary = &Summary{}
	}

	now := c.nowFunc()
	ok, err := c.store.FinishWorkerRun(ctx, h.RunID, &domain.RunCompletion{
		Status:            status,
		Summary:           summary.RunSummary(),
		NextCursor:        summary.NextCursor,
		BackfillCompleted: summary.BackfillCompleted,
	}, now)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", h.RunID, err)
	}
	if !ok {
		c.log.Warn("worker run lost before finish",
			"account_id", h.AccountID,
			"api_family", string(h.APIFamily),
			"run_id", h.RunID,
		)
		return ErrRunLost
	}

	family := string(h.APIFamily)
	metrics.WorkerRunsTotal.WithLabelValues(family, string(status)).Inc()
	metrics.WorkerRunDuration.WithLabelValues(family).Observe(now.Sub(h.StartedAt).Seconds())
	if summary.Stored > 0 {
		metrics.WorkerRecordsStoredTotal.WithLabelValues(family).Add(float64(summary.Stored))
	}
	return nil
}

// finishQuietly records an error outcome and only logs failures.
func (c *Coordinator) finishQuietly(ctx context.Context, h *RunHandle, status domain.RunStatus, msg string) {
	if err := c.Finish(ctx, h, status, &Summary{ErrorMessage: msg}); err != nil {
		c.log.Error("finishing worker run failed",
			"account_id", h.AccountID,
			"api_family", string(h.APIFamily),
			"run_id", h.RunID,
			"error", err,
		)
	}
}

// DueWork lists active account × family pairs that are enabled (or have no
// state yet), rested for the interval, and have no live run.
func (c *Coordinator) DueWork(ctx context.Context, families []domain.APIFamily) ([]domain.WorkItem, error) {
	now := c.nowFunc()
	items, err := c.store.ListDueWork(ctx, families, now.Add(-c.interval), now.Add(-c.staleTimeout))
	if err != nil {
		return nil, fmt.Errorf("listing due work: %w", err)
	}
	return items, nil
}

// SetEnabled toggles a pair on or off.
func (c *Coordinator) SetEnabled(ctx context.Context, accountID string, family domain.APIFamily, enabled bool) error {
	if !family.Valid() {
		return fmt.Errorf("setting sync enabled: unknown api family %q", family)
	}
	if err := c.store.SetSyncEnabled(ctx, accountID, family, enabled); err != nil {
		return fmt.Errorf("setting sync enabled: %w", err)
	}
	c.log.Info("sync toggled",
		"account_id", accountID,
		"api_family", string(family),
		"enabled", enabled,
	)
	return nil
}

// Cleanup marks abandoned runs stale and prunes finished runs and refresh
// logs older than their retention.
func (c *Coordinator) Cleanup(ctx context.Context, runRetention, logRetention time.Duration) (CleanupSummary, error) {
	var sum CleanupSummary
	now := c.nowFunc()

	n, err := c.store.MarkStaleWorkerRuns(ctx, now.Add(-c.staleTimeout), now)
	if err != nil {
		return sum, fmt.Errorf("marking stale runs: %w", err)
	}
	sum.StaleMarked = n
	if n > 0 {
		metrics.WorkerStaleReclaimsTotal.Add(float64(n))
	}

	if sum.RunsDeleted, err = c.store.DeleteWorkerRunsBefore(ctx, now.Add(-runRetention)); err != nil {
		return sum, fmt.Errorf("deleting old runs: %w", err)
	}
	if sum.RefreshLogsDeleted, err = c.store.DeleteTokenRefreshLogsBefore(ctx, now.Add(-logRetention)); err != nil {
		return sum, fmt.Errorf("deleting old refresh logs: %w", err)
	}

	c.log.Info("worker cleanup complete",
		"stale_marked", sum.StaleMarked,
		"runs_deleted", sum.RunsDeleted,
		"refresh_logs_deleted", sum.RefreshLogsDeleted,
	)
	return sum, nil
}
