// Package engine drives sync cycles and the periodic scheduler.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/donaldgifford/ebay-seller-sync/internal/ebay"
	"github.com/donaldgifford/ebay-seller-sync/internal/metrics"
	"github.com/donaldgifford/ebay-seller-sync/internal/store"
	"github.com/donaldgifford/ebay-seller-sync/internal/telemetry"
	"github.com/donaldgifford/ebay-seller-sync/internal/tokens"
	"github.com/donaldgifford/ebay-seller-sync/internal/worker"
	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

// Driver defaults.
const (
	DefaultCycleConcurrency = 4
	DefaultPairTimeout      = 10 * time.Minute

	finishTimeout = 30 * time.Second
)

// PairOutcome classifies what happened to one (account, api family).
type PairOutcome string

// Pair outcomes.
const (
	PairSucceeded  PairOutcome = "succeeded"
	PairFailed     PairOutcome = "failed"
	PairNotClaimed PairOutcome = "not_claimed"
	PairNoRoutine  PairOutcome = "no_routine"
	PairQuotaSpent PairOutcome = "quota_exhausted"
)

// TokenSource resolves access tokens. *tokens.Provider implements it.
type TokenSource interface {
	GetValidAccessToken(ctx context.Context, req tokens.Request) tokens.Result
}

// PairResult is the outcome of one pair run.
type PairResult struct {
	AccountID      string             `json:"account_id"`
	APIFamily      domain.APIFamily   `json:"api_family"`
	Outcome        PairOutcome        `json:"outcome"`
	ClaimOutcome   store.ClaimOutcome `json:"claim_outcome,omitempty"`
	RunID          string             `json:"run_id,omitempty"`
	Fetched        int                `json:"fetched"`
	Stored         int                `json:"stored"`
	TokenErrorCode tokens.ErrorCode   `json:"token_error_code,omitempty"`
	Error          string             `json:"error,omitempty"`

	err error
}

// Err returns the routine error of a failed run, if any.
func (r *PairResult) Err() error {
	return r.err
}

// CycleSummary aggregates one sync cycle.
type CycleSummary struct {
	Due        int `json:"due"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
	NotClaimed int `json:"not_claimed"`
	Skipped    int `json:"skipped"`
}

func (c *CycleSummary) add(o PairOutcome) {
	switch o {
	case PairSucceeded:
		c.Succeeded++
	case PairFailed:
		c.Failed++
	case PairNotClaimed:
		c.NotClaimed++
	default:
		c.Skipped++
	}
}

// Driver runs sync cycles: due pairs are claimed, given a token and handed
// to their routine. Every claimed run is finished, whatever happens.
type Driver struct {
	coord       *worker.Coordinator
	tokens      TokenSource
	registry    *worker.Registry
	families    []domain.APIFamily
	log         *slog.Logger
	tracer      trace.Tracer
	concurrency int
	pairTimeout time.Duration
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) DriverOption {
	return func(d *Driver) {
		d.log = l
	}
}

// WithFamilies limits cycles to the given families. Defaults to every
// registered family.
func WithFamilies(families ...domain.APIFamily) DriverOption {
	return func(d *Driver) {
		d.families = families
	}
}

// WithConcurrency bounds the number of pairs in flight.
func WithConcurrency(n int) DriverOption {
	return func(d *Driver) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithPairTimeout bounds a single pair run.
func WithPairTimeout(t time.Duration) DriverOption {
	return func(d *Driver) {
		d.pairTimeout = t
	}
}

// NewDriver creates a Driver.
func NewDriver(
	coord *worker.Coordinator,
	ts TokenSource,
	registry *worker.Registry,
	opts ...DriverOption,
) *Driver {
	d := &Driver{
		coord:       coord,
		tokens:      ts,
		registry:    registry,
		log:         slog.Default(),
		tracer:      telemetry.Tracer(),
		concurrency: DefaultCycleConcurrency,
		pairTimeout: DefaultPairTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Families returns the families this driver cycles over.
func (d *Driver) Families() []domain.APIFamily {
	if len(d.families) > 0 {
		return d.families
	}
	return d.registry.Families()
}

// RunCycle processes every due pair once. The returned error covers only
// listing due work; pair failures are counted in the summary.
func (d *Driver) RunCycle(ctx context.Context) (CycleSummary, error) {
	start := time.Now()
	var summary CycleSummary

	items, err := d.coord.DueWork(ctx, d.Families())
	if err != nil {
		return summary, err
	}
	summary.Due = len(items)

	results := make([]PairOutcome, len(items))
	var quotaSpent atomic.Bool
	var g errgroup.Group
	g.SetLimit(d.concurrency)

	for i, item := range items {
		g.Go(func() error {
			if ctx.Err() != nil {
				results[i] = PairNotClaimed
				return nil
			}
			if quotaSpent.Load() {
				results[i] = PairQuotaSpent
				return nil
			}
			res := d.runPair(ctx, item.AccountID, item.APIFamily, false, domain.TriggerInternal)
			if errors.Is(res.err, ebay.ErrDailyLimitReached) {
				quotaSpent.Store(true)
			}
			results[i] = res.Outcome
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // pair runs never return errors

	for _, o := range results {
		summary.add(o)
	}
	if quotaSpent.Load() {
		d.log.Warn("daily eBay API limit reached, remaining pairs skipped")
	}

	metrics.SyncCycleDuration.Observe(time.Since(start).Seconds())
	metrics.SyncCyclePairs.WithLabelValues("succeeded").Set(float64(summary.Succeeded))
	metrics.SyncCyclePairs.WithLabelValues("failed").Set(float64(summary.Failed))
	metrics.SyncCyclePairs.WithLabelValues("not_claimed").Set(float64(summary.NotClaimed))
	metrics.SyncCyclePairs.WithLabelValues("skipped").Set(float64(summary.Skipped))
	metrics.SyncCycleLastSuccess.SetToCurrentTime()

	d.log.Info("sync cycle complete",
		"due", summary.Due,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"not_claimed", summary.NotClaimed,
		"skipped", summary.Skipped,
		"duration", time.Since(start),
	)
	return summary, nil
}

// RunPair runs one pair if it is due.
func (d *Driver) RunPair(ctx context.Context, accountID string, family domain.APIFamily) PairResult {
	return d.runPair(ctx, accountID, family, false, domain.TriggerInternal)
}

// RunOnce runs one pair now, ignoring the interval. A live run still
// blocks it.
func (d *Driver) RunOnce(ctx context.Context, accountID string, family domain.APIFamily) PairResult {
	return d.runPair(ctx, accountID, family, true, domain.TriggerManual)
}

func (d *Driver) runPair(
	ctx context.Context,
	accountID string,
	family domain.APIFamily,
	force bool,
	trigger domain.TriggerSource,
) PairResult {
	res := PairResult{AccountID: accountID, APIFamily: family}

	routine, ok := d.registry.Get(family)
	if !ok {
		d.log.Debug("no routine registered, skipping", "api_family", string(family))
		res.Outcome = PairNoRoutine
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, d.pairTimeout)
	defer cancel()

	ctx, span := d.tracer.Start(ctx, "engine.RunPair", trace.WithAttributes(
		attribute.String("account_id", accountID),
		attribute.String("api_family", string(family)),
	))
	defer span.End()

	h, outcome, err := d.coord.TryClaim(ctx, accountID, family, force)
	res.ClaimOutcome = outcome
	if err != nil {
		d.log.Error("claim failed", "account_id", accountID, "api_family", string(family), "error", err)
		span.SetStatus(codes.Error, "claim failed")
		res.Outcome = PairFailed
		res.Error = err.Error()
		return res
	}
	if h == nil {
		res.Outcome = PairNotClaimed
		return res
	}
	res.RunID = h.RunID

	res = d.execute(ctx, h, routine, trigger, res)
	if res.Outcome == PairFailed {
		span.SetStatus(codes.Error, res.Error)
	}
	return res
}

// execute runs a claimed pair. It always finishes the run, including when
// the routine panics.
func (d *Driver) execute(
	ctx context.Context,
	h *worker.RunHandle,
	routine worker.Routine,
	trigger domain.TriggerSource,
	res PairResult,
) (out PairResult) {
	log := d.log.With("account_id", h.AccountID, "api_family", string(h.APIFamily), "run_id", h.RunID)

	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		msg := fmt.Sprintf("panic: %v", rec)
		log.Error("sync routine panicked", "panic", msg)
		res.Outcome = PairFailed
		res.Error = msg
		d.finish(ctx, h, domain.RunError, &worker.Summary{ErrorMessage: msg}, &res)
		out = res
	}()

	tok := d.tokens.GetValidAccessToken(ctx, tokens.Request{
		AccountID:   h.AccountID,
		APIFamily:   h.APIFamily,
		TriggeredBy: trigger,
	})
	if !tok.Success {
		msg := fmt.Sprintf("token unavailable: %s: %s", tok.ErrorCode, tok.ErrorMessage)
		log.Warn("token unavailable, run not started", "error_code", string(tok.ErrorCode))
		res.Outcome = PairFailed
		res.TokenErrorCode = tok.ErrorCode
		res.Error = msg
		d.finish(ctx, h, domain.RunError, &worker.Summary{ErrorMessage: msg}, &res)
		return res
	}

	sum, err := routine.Sync(ctx, worker.SyncInput{
		AccountID:   h.AccountID,
		APIFamily:   h.APIFamily,
		AccessToken: tok.AccessToken,
		Cursor:      h.Cursor,
		Backfilled:  h.Backfilled,
		Heartbeat:   d.coord.HeartbeatFunc(h),
	})
	res.Fetched, res.Stored = sum.Fetched, sum.Stored

	status := domain.RunSuccess
	if err != nil {
		status = domain.RunError
		sum.ErrorMessage = err.Error()
		res.Outcome = PairFailed
		res.Error = err.Error()
		res.err = err
		log.Warn("sync routine failed", "error", err)
	} else {
		res.Outcome = PairSucceeded
		if sum.ErrorMessage != "" {
			status = domain.RunError
			res.Outcome = PairFailed
			res.Error = sum.ErrorMessage
		}
	}

	d.finish(ctx, h, status, &sum, &res)
	return res
}

// finish records the run outcome on a context that survives the pair
// timeout.
func (d *Driver) finish(
	ctx context.Context,
	h *worker.RunHandle,
	status domain.RunStatus,
	sum *worker.Summary,
	res *PairResult,
) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()

	err := d.coord.Finish(fctx, h, status, sum)
	if err == nil {
		return
	}
	d.log.Error("finishing run failed",
		"account_id", h.AccountID,
		"api_family", string(h.APIFamily),
		"run_id", h.RunID,
		"error", err,
	)
	res.Outcome = PairFailed
	if res.Error == "" {
		res.Error = err.Error()
	}
}
