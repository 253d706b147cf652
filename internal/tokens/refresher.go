package tokens

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/donaldgifford/ebay-seller-sync/internal/metrics"
	"github.com/donaldgifford/ebay-seller-sync/internal/store"
	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

// Sweep defaults.
const (
	DefaultLookahead        = 15 * time.Minute
	DefaultSweepConcurrency = 4
)

// SweepSummary aggregates the outcome of one refresh sweep.
type SweepSummary struct {
	Candidates int `json:"candidates"`
	Refreshed  int `json:"refreshed"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// Refresher proactively refreshes tokens that are about to expire or whose
// last refresh failed transiently. Accounts are refreshed independently; a
// failure or panic for one account never affects the others.
type Refresher struct {
	store       store.Store
	provider    *Provider
	log         *slog.Logger
	lookahead   time.Duration
	concurrency int
	nowFunc     func() time.Time
}

// RefresherOption configures a Refresher.
type RefresherOption func(*Refresher)

// WithSweepLogger sets the logger.
func WithSweepLogger(l *slog.Logger) RefresherOption {
	return func(r *Refresher) {
		r.log = l
	}
}

// WithLookahead sets how far ahead of expiry tokens are refreshed.
func WithLookahead(d time.Duration) RefresherOption {
	return func(r *Refresher) {
		r.lookahead = d
	}
}

// WithConcurrency bounds the number of refreshes in flight.
func WithConcurrency(n int) RefresherOption {
	return func(r *Refresher) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithSweepNowFunc overrides the time function for testing.
func WithSweepNowFunc(f func() time.Time) RefresherOption {
	return func(r *Refresher) {
		r.nowFunc = f
	}
}

// NewRefresher creates a Refresher that refreshes through provider.
func NewRefresher(s store.Store, provider *Provider, opts ...RefresherOption) *Refresher {
	r := &Refresher{
		store:       s,
		provider:    provider,
		log:         slog.Default(),
		lookahead:   DefaultLookahead,
		concurrency: DefaultSweepConcurrency,
		nowFunc:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunSweep refreshes every candidate token once. The returned error covers
// only candidate selection; per-account failures are counted in the summary.
func (r *Refresher) RunSweep(ctx context.Context) (SweepSummary, error) {
	start := time.Now()
	var summary SweepSummary

	candidates, err := r.store.ListRefreshCandidates(ctx, store.RefreshCandidateQuery{
		Environment:       r.provider.Environment(),
		ExpiringBefore:    r.nowFunc().Add(r.lookahead),
		ExcludeErrorCodes: sweepExcludedCodes(),
	})
	if err != nil {
		return summary, fmt.Errorf("listing refresh candidates: %w", err)
	}
	summary.Candidates = len(candidates)
	metrics.RefreshSweepCandidates.Set(float64(len(candidates)))

	var refreshed, failed, skipped atomic.Int64
	var g errgroup.Group
	g.SetLimit(r.concurrency)

	for i := range candidates {
		tok := candidates[i]
		g.Go(func() error {
			if ctx.Err() != nil {
				skipped.Add(1)
				return nil
			}
			if r.refreshOne(ctx, &tok) {
				refreshed.Add(1)
			} else {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors

	summary.Refreshed = int(refreshed.Load())
	summary.Failed = int(failed.Load())
	summary.Skipped = int(skipped.Load())

	metrics.RefreshSweepDuration.Observe(time.Since(start).Seconds())
	metrics.RefreshSweepLastSuccess.SetToCurrentTime()
	r.provider.syncReconnectGauge(ctx)

	r.log.Info("token refresh sweep complete",
		"candidates", summary.Candidates,
		"refreshed", summary.Refreshed,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"duration", time.Since(start),
	)
	return summary, nil
}

// refreshOne refreshes a single token and converts a panic into a failed
// refresh log entry.
func (r *Refresher) refreshOne(ctx context.Context, tok *domain.Token) (ok bool) {
	started := r.nowFunc()
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		ok = false
		r.log.Error("panic during token refresh",
			"account_id", tok.AccountID,
			"panic", fmt.Sprint(rec),
		)
		msg := "panic during refresh"
		if err := r.store.InsertTokenRefreshLog(ctx, &domain.TokenRefreshLog{
			AccountID:    tok.AccountID,
			Environment:  tok.Environment,
			TriggeredBy:  domain.TriggerScheduled,
			StartedAt:    started,
			FinishedAt:   r.nowFunc(),
			ErrorCode:    string(CodeUnknown),
			ErrorMessage: msg,
			OldExpiresAt: tok.AccessExpiresAt,
		}); err != nil {
			r.log.Error("recording panic refresh log failed", "account_id", tok.AccountID, "error", err)
		}
		if err := r.store.SaveTokenRefreshError(ctx, tok.ID, string(CodeUnknown), msg); err != nil {
			r.log.Error("saving token refresh error failed", "account_id", tok.AccountID, "error", err)
		}
		metrics.TokenRefreshTotal.WithLabelValues(
			string(domain.TriggerScheduled), "failure", string(CodeUnknown),
		).Inc()
	}()

	res := r.provider.GetValidAccessToken(ctx, Request{
		AccountID:    tok.AccountID,
		ForceRefresh: true,
		TriggeredBy:  domain.TriggerScheduled,
	})
	return res.Success
}
