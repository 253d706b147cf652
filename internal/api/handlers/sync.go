package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/ebay-seller-sync/internal/engine"
	"github.com/donaldgifford/ebay-seller-sync/internal/store"
	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

// SyncStateProvider defines the store methods required by the sync handler.
type SyncStateProvider interface {
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	ListSyncStates(ctx context.Context, accountID string) ([]domain.SyncState, error)
}

// FamilyToggler enables and disables api families. *worker.Coordinator
// implements it.
type FamilyToggler interface {
	SetEnabled(ctx context.Context, accountID string, family domain.APIFamily, enabled bool) error
}

// PairRunner runs a single (account, api family). *engine.Driver
// implements it.
type PairRunner interface {
	RunOnce(ctx context.Context, accountID string, family domain.APIFamily) engine.PairResult
}

// SyncHandler exposes per-account sync state and manual runs.
type SyncHandler struct {
	store   SyncStateProvider
	toggler FamilyToggler
	runner  PairRunner
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(s SyncStateProvider, t FamilyToggler, r PairRunner) *SyncHandler {
	return &SyncHandler{store: s, toggler: t, runner: r}
}

// ListSyncStatesOutput is the response body for sync states.
type ListSyncStatesOutput struct {
	Body []domain.SyncState
}

// FamilyInput identifies an account and api family.
type FamilyInput struct {
	ID        string `path:"id"         doc:"Account ID"`
	APIFamily string `path:"api_family" doc:"API family (orders, finances, ...)"`
}

// SetSyncEnabledInput toggles an api family.
type SetSyncEnabledInput struct {
	ID        string `path:"id"         doc:"Account ID"`
	APIFamily string `path:"api_family" doc:"API family (orders, finances, ...)"`
	Body      struct {
		Enabled bool `json:"enabled" doc:"Whether the family is synced"`
	}
}

// SetSyncEnabledOutput is the response body after toggling a family.
type SetSyncEnabledOutput struct {
	Body StatusResponse
}

// RunSyncOutput is the outcome of a manual run.
type RunSyncOutput struct {
	Body engine.PairResult
}

// ListSyncStates returns the sync state of every family of an account.
func (h *SyncHandler) ListSyncStates(
	ctx context.Context,
	input *AccountIDInput,
) (*ListSyncStatesOutput, error) {
	if _, err := h.store.GetAccount(ctx, input.ID); err != nil {
		return nil, notFoundOr500(err, "account")
	}
	states, err := h.store.ListSyncStates(ctx, input.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing sync states failed: " + err.Error())
	}
	if states == nil {
		states = []domain.SyncState{}
	}
	return &ListSyncStatesOutput{Body: states}, nil
}

// SetSyncEnabled enables or disables a family for an account.
func (h *SyncHandler) SetSyncEnabled(
	ctx context.Context,
	input *SetSyncEnabledInput,
) (*SetSyncEnabledOutput, error) {
	family, err := parseFamily(input.APIFamily)
	if err != nil {
		return nil, err
	}
	if err := h.toggler.SetEnabled(ctx, input.ID, family, input.Body.Enabled); err != nil {
		return nil, notFoundOr500(err, "account")
	}

	out := &SetSyncEnabledOutput{}
	out.Body.Status = "disabled"
	if input.Body.Enabled {
		out.Body.Status = "enabled"
	}
	return out, nil
}

// RunSync runs one family of an account now, ignoring the sync interval.
// A live run of the same pair yields 409.
func (h *SyncHandler) RunSync(ctx context.Context, input *FamilyInput) (*RunSyncOutput, error) {
	family, err := parseFamily(input.APIFamily)
	if err != nil {
		return nil, err
	}
	if _, err := h.store.GetAccount(ctx, input.ID); err != nil {
		return nil, notFoundOr500(err, "account")
	}

	res := h.runner.RunOnce(ctx, input.ID, family)
	switch {
	case res.Outcome == engine.PairNoRoutine:
		return nil, huma.Error400BadRequest("no sync routine for api family " + input.APIFamily)
	case res.ClaimOutcome == store.ClaimRunning:
		return nil, huma.Error409Conflict("a run is already in progress")
	case res.Outcome == engine.PairNotClaimed:
		return nil, huma.Error409Conflict("run not started: " + string(res.ClaimOutcome))
	}
	return &RunSyncOutput{Body: res}, nil
}

func parseFamily(s string) (domain.APIFamily, error) {
	f := domain.APIFamily(s)
	if !f.Valid() {
		return "", huma.Error400BadRequest("unknown api family: " + s)
	}
	return f, nil
}

// RegisterSyncRoutes registers sync endpoints with the Huma API.
func RegisterSyncRoutes(api huma.API, h *SyncHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "list-sync-states",
		Method:      http.MethodGet,
		Path:        "/api/v1/accounts/{id}/sync",
		Summary:     "List sync states",
		Description: "Returns cursor, backfill and last run information for each api family of an account.",
		Tags:        []string{"sync"},
		Errors:      []int{http.StatusNotFound, http.StatusInternalServerError},
	}, h.ListSyncStates)

	huma.Register(api, huma.Operation{
		OperationID: "set-sync-enabled",
		Method:      http.MethodPut,
		Path:        "/api/v1/accounts/{id}/sync/{api_family}",
		Summary:     "Enable or disable an api family",
		Tags:        []string{"sync"},
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError},
	}, h.SetSyncEnabled)

	huma.Register(api, huma.Operation{
		OperationID: "run-sync",
		Method:      http.MethodPost,
		Path:        "/api/v1/accounts/{id}/sync/{api_family}/run",
		Summary:     "Run a sync now",
		Description: "Claims and runs one api family of an account immediately, ignoring the sync interval.",
		Tags:        []string{"sync"},
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, h.RunSync)
}
