package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/ebay-seller-sync/internal/engine"
	"github.com/donaldgifford/ebay-seller-sync/internal/tokens"
	"github.com/donaldgifford/ebay-seller-sync/internal/worker"
)

// JobRunner runs scheduled jobs on demand. *engine.Scheduler implements it.
type JobRunner interface {
	RunRefreshNow(ctx context.Context) (tokens.SweepSummary, error)
	RunSyncNow(ctx context.Context) (engine.CycleSummary, error)
	RunCleanupNow(ctx context.Context) (worker.CleanupSummary, error)
}

// TriggerHandler handles manual job triggers.
type TriggerHandler struct {
	jobs JobRunner
}

// NewTriggerHandler creates a new TriggerHandler.
func NewTriggerHandler(j JobRunner) *TriggerHandler {
	return &TriggerHandler{jobs: j}
}

// RefreshSweepOutput is the response body for a manual refresh sweep.
type RefreshSweepOutput struct {
	Body tokens.SweepSummary
}

// SyncCycleOutput is the response body for a manual sync cycle.
type SyncCycleOutput struct {
	Body engine.CycleSummary
}

// CleanupOutput is the response body for a manual cleanup.
type CleanupOutput struct {
	Body worker.CleanupSummary
}

// RefreshSweep refreshes every token expiring within the lookahead.
func (h *TriggerHandler) RefreshSweep(ctx context.Context, _ *struct{}) (*RefreshSweepOutput, error) {
	sum, err := h.jobs.RunRefreshNow(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("refresh sweep failed: " + err.Error())
	}
	return &RefreshSweepOutput{Body: sum}, nil
}

// SyncCycle runs every due (account, api family) once.
func (h *TriggerHandler) SyncCycle(ctx context.Context, _ *struct{}) (*SyncCycleOutput, error) {
	sum, err := h.jobs.RunSyncNow(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("sync cycle failed: " + err.Error())
	}
	return &SyncCycleOutput{Body: sum}, nil
}

// Cleanup marks stale runs and prunes old history.
func (h *TriggerHandler) Cleanup(ctx context.Context, _ *struct{}) (*CleanupOutput, error) {
	sum, err := h.jobs.RunCleanupNow(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("cleanup failed: " + err.Error())
	}
	return &CleanupOutput{Body: sum}, nil
}

// RegisterTriggerRoutes registers trigger endpoints with the Huma API.
func RegisterTriggerRoutes(api huma.API, h *TriggerHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "trigger-refresh-sweep",
		Method:      http.MethodPost,
		Path:        "/api/v1/tokens/refresh",
		Summary:     "Run a token refresh sweep",
		Description: "Refreshes every active token that expires within the lookahead window.",
		Tags:        []string{"tokens"},
		Errors:      []int{http.StatusInternalServerError},
	}, h.RefreshSweep)

	huma.Register(api, huma.Operation{
		OperationID: "trigger-sync-cycle",
		Method:      http.MethodPost,
		Path:        "/api/v1/sync/run",
		Summary:     "Run a sync cycle",
		Description: "Claims and runs every due (account, api family) pair once.",
		Tags:        []string{"sync"},
		Errors:      []int{http.StatusInternalServerError},
	}, h.SyncCycle)

	huma.Register(api, huma.Operation{
		OperationID: "trigger-cleanup",
		Method:      http.MethodPost,
		Path:        "/api/v1/runs/cleanup",
		Summary:     "Clean up worker history",
		Description: "Marks abandoned runs stale and deletes runs and refresh logs past retention.",
		Tags:        []string{"sync"},
		Errors:      []int{http.StatusInternalServerError},
	}, h.Cleanup)
}
