package handlers_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/ebay-seller-sync/internal/api/handlers"
	"github.com/donaldgifford/ebay-seller-sync/internal/ebay"
)

func getQuota(t *testing.T, rl *ebay.RateLimiter) handlers.QuotaStatus {
	t.Helper()

	_, api := humatest.New(t)
	handlers.RegisterQuotaRoutes(api, handlers.NewQuotaHandler(rl))

	resp := api.Get("/api/v1/quota")
	require.Equal(t, http.StatusOK, resp.Code)

	var got handlers.QuotaStatus
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	return got
}

func TestGetQuota(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		limit         int64
		calls         []string
		wantUsed      int64
		wantRemaining int64
		wantExhausted bool
		wantFamilies  []handlers.FamilyQuota
	}{
		{
			name:          "no calls yet",
			limit:         5000,
			wantRemaining: 5000,
			wantFamilies:  []handlers.FamilyQuota{},
		},
		{
			name:          "busiest family first",
			limit:         100,
			calls:         []string{"finances", "orders", "orders", "orders"},
			wantUsed:      4,
			wantRemaining: 96,
			wantFamilies: []handlers.FamilyQuota{
				{APIFamily: "orders", Calls: 3, Share: 0.75},
				{APIFamily: "finances", Calls: 1, Share: 0.25},
			},
		},
		{
			name:          "ties ordered by name",
			limit:         10,
			calls:         []string{"orders", "finances"},
			wantUsed:      2,
			wantRemaining: 8,
			wantFamilies: []handlers.FamilyQuota{
				{APIFamily: "finances", Calls: 1, Share: 0.5},
				{APIFamily: "orders", Calls: 1, Share: 0.5},
			},
		},
		{
			name:          "spent budget is exhausted",
			limit:         2,
			calls:         []string{"orders", "orders"},
			wantUsed:      2,
			wantExhausted: true,
			wantFamilies:  []handlers.FamilyQuota{{APIFamily: "orders", Calls: 2, Share: 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rl := ebay.NewRateLimiter(1000, 10, tt.limit)
			for _, family := range tt.calls {
				require.NoError(t, rl.Wait(t.Context(), family))
			}

			got := getQuota(t, rl)
			assert.Equal(t, tt.limit, got.DailyLimit)
			assert.Equal(t, tt.wantUsed, got.DailyUsed)
			assert.Equal(t, tt.wantRemaining, got.Remaining)
			assert.Equal(t, tt.wantExhausted, got.Exhausted)
			assert.Equal(t, tt.wantFamilies, got.Families)
		})
	}
}

func TestGetQuota_NoLimiter(t *testing.T) {
	t.Parallel()

	got := getQuota(t, nil)
	assert.Zero(t, got.DailyLimit)
	assert.False(t, got.Exhausted)
	assert.NotNil(t, got.Families, "families is always an array")
}

func TestGetQuota_ResetAt(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 15, 14, 30, 0, 0, time.UTC)
	rl := ebay.NewRateLimiter(5, 10, 5000,
		ebay.WithRateLimiterNowFunc(func() time.Time { return now }),
	)

	got := getQuota(t, rl)
	assert.True(t, got.ResetAt.Equal(now.Add(24*time.Hour)))
}
