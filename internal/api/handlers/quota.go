package handlers

import (
	"cmp"
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/ebay-seller-sync/internal/ebay"
)

// QuotaHandler serves the Sell API call budget. eBay counts calls per
// application, so one budget covers every account and family.
type QuotaHandler struct {
	rl *ebay.RateLimiter
}

// NewQuotaHandler creates a QuotaHandler. A nil limiter reports an empty
// budget.
func NewQuotaHandler(rl *ebay.RateLimiter) *QuotaHandler {
	return &QuotaHandler{rl: rl}
}

// FamilyQuota is one API family's share of the current window.
type FamilyQuota struct {
	APIFamily string  `json:"api_family" example:"orders" doc:"Sell API family"`
	Calls     int64   `json:"calls"      example:"120"    doc:"Calls made by this family in the current window"`
	Share     float64 `json:"share"      example:"0.85"   doc:"Fraction of the window's calls made by this family"`
}

// QuotaStatus is the Sell API budget of the current 24-hour window.
type QuotaStatus struct {
	DailyLimit int64         `json:"daily_limit" example:"5000"                 doc:"Configured daily Sell API call limit"`
	DailyUsed  int64         `json:"daily_used"  example:"142"                  doc:"Calls made in the current window"`
	Remaining  int64         `json:"remaining"   example:"4858"                 doc:"Calls left before sync cycles stop with quota_exhausted"`
	Exhausted  bool          `json:"exhausted"                                  doc:"Whether sync pairs are being skipped until the reset"`
	ResetAt    time.Time     `json:"reset_at"    example:"2026-06-16T14:30:00Z" doc:"When the current window rolls over"`
	Families   []FamilyQuota `json:"families"                                   doc:"Usage per API family, busiest first"`
}

// QuotaOutput is the response for GET /api/v1/quota.
type QuotaOutput struct {
	Body QuotaStatus
}

// GetQuota returns the current window with its per-family breakdown.
func (h *QuotaHandler) GetQuota(_ context.Context, _ *struct{}) (*QuotaOutput, error) {
	resp := &QuotaOutput{Body: QuotaStatus{Families: []FamilyQuota{}}}
	if h.rl == nil {
		return resp, nil
	}

	snap := h.rl.Snapshot()
	resp.Body.DailyLimit = snap.Limit
	resp.Body.DailyUsed = snap.Used
	resp.Body.Remaining = snap.Remaining
	resp.Body.Exhausted = snap.Limit > 0 && snap.Remaining == 0
	resp.Body.ResetAt = snap.ResetAt

	for family, calls := range snap.ByFamily {
		fq := FamilyQuota{APIFamily: family, Calls: calls}
		if snap.Used > 0 {
			fq.Share = float64(calls) / float64(snap.Used)
		}
		resp.Body.Families = append(resp.Body.Families, fq)
	}
	slices.SortFunc(resp.Body.Families, func(a, b FamilyQuota) int {
		return cmp.Or(cmp.Compare(b.Calls, a.Calls), cmp.Compare(a.APIFamily, b.APIFamily))
	})

	return resp, nil
}

// RegisterQuotaRoutes registers GET /api/v1/quota.
func RegisterQuotaRoutes(api huma.API, h *QuotaHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "get-quota",
		Method:      http.MethodGet,
		Path:        "/api/v1/quota",
		Summary:     "Get the Sell API call budget",
		Description: "Returns calls used and remaining in the current 24-hour window, " +
			"broken down by API family. Once the budget is spent, sync cycles skip " +
			"the remaining pairs until the window resets.",
		Tags: []string{"ebay"},
	}, h.GetQuota)
}
