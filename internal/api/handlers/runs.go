package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/ebay-seller-sync/internal/store"
	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

// RunsProvider lists worker runs.
type RunsProvider interface {
	ListWorkerRuns(ctx context.Context, q *store.WorkerRunQuery) ([]domain.WorkerRun, error)
}

// RunsHandler serves worker run history.
type RunsHandler struct {
	store RunsProvider
}

// NewRunsHandler creates a new RunsHandler.
func NewRunsHandler(s RunsProvider) *RunsHandler {
	return &RunsHandler{store: s}
}

// ListRunsInput filters worker runs.
type ListRunsInput struct {
	AccountID string `query:"account_id" doc:"Filter by account ID"`
	APIFamily string `query:"api_family" doc:"Filter by api family"`
	Status    string `query:"status"     doc:"Filter by status" enum:"running,success,error,stale"`
	Limit     int    `query:"limit"      doc:"Maximum runs" default:"50" minimum:"1" maximum:"500"`
	Offset    int    `query:"offset"     doc:"Runs to skip" default:"0" minimum:"0"`
}

// ListRunsOutput is the response body for worker runs.
type ListRunsOutput struct {
	Body []domain.WorkerRun
}

// ListRuns returns worker runs, newest first.
func (h *RunsHandler) ListRuns(ctx context.Context, input *ListRunsInput) (*ListRunsOutput, error) {
	q := &store.WorkerRunQuery{Limit: input.Limit, Offset: input.Offset}
	if input.AccountID != "" {
		q.AccountID = &input.AccountID
	}
	if input.APIFamily != "" {
		f, err := parseFamily(input.APIFamily)
		if err != nil {
			return nil, err
		}
		q.APIFamily = &f
	}
	if input.Status != "" {
		q.Statuses = []domain.RunStatus{domain.RunStatus(input.Status)}
	}

	runs, err := h.store.ListWorkerRuns(ctx, q)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing runs failed: " + err.Error())
	}
	if runs == nil {
		runs = []domain.WorkerRun{}
	}
	return &ListRunsOutput{Body: runs}, nil
}

// RegisterRunRoutes registers worker run endpoints with the Huma API.
func RegisterRunRoutes(api huma.API, h *RunsHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "list-runs",
		Method:      http.MethodGet,
		Path:        "/api/v1/runs",
		Summary:     "List worker runs",
		Description: "Returns worker run history (newest first), optionally filtered by account, family and status.",
		Tags:        []string{"sync"},
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, h.ListRuns)
}
