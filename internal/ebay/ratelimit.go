package ebay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/donaldgifford/ebay-seller-sync/internal/metrics"
)

// ErrDailyLimitReached is returned when the daily API call limit has been exhausted.
var ErrDailyLimitReached = errors.New("daily API limit reached")

// RateLimiter paces Sell API calls for the whole process. eBay enforces
// call limits per application, so every account and API family shares one
// token bucket and one rolling 24-hour quota.
type RateLimiter struct {
	limiter  *rate.Limiter
	daily    atomic.Int64
	maxDaily int64
	resetAt  time.Time
	families map[string]int64
	mu       sync.Mutex
	nowFunc  func() time.Time
}

// QuotaSnapshot is the state of the current 24-hour window.
type QuotaSnapshot struct {
	Limit     int64
	Used      int64
	Remaining int64
	ResetAt   time.Time
	// ByFamily counts calls per API family in this window.
	ByFamily map[string]int64
}

// RateLimiterOption configures the RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithRateLimiterNowFunc overrides the time function for testing.
func WithRateLimiterNowFunc(f func() time.Time) RateLimiterOption {
	return func(r *RateLimiter) {
		r.nowFunc = f
	}
}

// NewRateLimiter creates a rate limiter with the given per-second rate,
// burst size, and daily limit. The daily window resets 24 hours after it
// was opened.
func NewRateLimiter(
	perSecond float64,
	burst int,
	maxDaily int64,
	opts ...RateLimiterOption,
) *RateLimiter {
	r := &RateLimiter{
		limiter:  rate.NewLimiter(rate.Limit(perSecond), burst),
		maxDaily: maxDaily,
		families: make(map[string]int64),
		nowFunc:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.resetAt = r.nowFunc().Add(24 * time.Hour)
	return r
}

// Wait blocks until a call for the given API family is allowed, or the
// context is canceled. Returns ErrDailyLimitReached once the quota is spent.
func (r *RateLimiter) Wait(ctx context.Context, family string) error {
	r.checkDailyReset()

	if used := r.daily.Load(); used >= r.maxDaily {
		metrics.EbayDailyLimitHits.Inc()
		return fmt.Errorf("%w (%d/%d)", ErrDailyLimitReached, used, r.maxDaily)
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	used := r.daily.Add(1)
	r.mu.Lock()
	r.families[family]++
	r.mu.Unlock()
	metrics.EbayAPICallsTotal.WithLabelValues(family).Inc()
	metrics.EbayDailyUsage.Set(float64(used))
	return nil
}

// DailyCount returns the current daily call count.
func (r *RateLimiter) DailyCount() int64 {
	return r.daily.Load()
}

// MaxDaily returns the configured daily call limit.
func (r *RateLimiter) MaxDaily() int64 {
	return r.maxDaily
}

// Remaining returns the number of calls left in the current window.
func (r *RateLimiter) Remaining() int64 {
	return max(r.maxDaily-r.daily.Load(), 0)
}

// ResetAt returns when the current daily window expires.
func (r *RateLimiter) ResetAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resetAt
}

// Snapshot returns the current window, rolling it over first if it has
// expired.
func (r *RateLimiter) Snapshot() QuotaSnapshot {
	r.checkDailyReset()

	r.mu.Lock()
	defer r.mu.Unlock()
	byFamily := make(map[string]int64, len(r.families))
	for f, n := range r.families {
		byFamily[f] = n
	}
	used := r.daily.Load()
	return QuotaSnapshot{
		Limit:     r.maxDaily,
		Used:      used,
		Remaining: max(r.maxDaily-used, 0),
		ResetAt:   r.resetAt,
		ByFamily:  byFamily,
	}
}

func (r *RateLimiter) checkDailyReset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowFunc()
	if now.After(r.resetAt) {
		r.daily.Store(0)
		clear(r.families)
		r.resetAt = now.Add(24 * time.Hour)
	}
}
