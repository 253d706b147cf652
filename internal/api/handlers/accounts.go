package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/ebay-seller-sync/internal/store"
	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

// AccountsProvider defines the store methods required by the accounts handler.
type AccountsProvider interface {
	ListAccounts(ctx context.Context, activeOnly bool) ([]domain.Account, error)
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	SetAccountActive(ctx context.Context, id string, active bool) error
	GetToken(ctx context.Context, accountID string, env domain.Environment) (*domain.Token, error)
}

// AccountsHandler serves connected seller accounts.
type AccountsHandler struct {
	store AccountsProvider
	env   domain.Environment
}

// NewAccountsHandler creates a new AccountsHandler. Token status is
// reported for env.
func NewAccountsHandler(s AccountsProvider, env domain.Environment) *AccountsHandler {
	return &AccountsHandler{store: s, env: env}
}

// TokenStatus describes stored credentials without exposing them.
type TokenStatus struct {
	Environment      domain.Environment `json:"environment"`
	HasAccessToken   bool               `json:"has_access_token"`
	HasRefreshToken  bool               `json:"has_refresh_token"`
	AccessExpiresAt  *time.Time         `json:"access_expires_at,omitempty"`
	RefreshExpiresAt *time.Time         `json:"refresh_expires_at,omitempty"`
	LastRefreshedAt  *time.Time         `json:"last_refreshed_at,omitempty"`
	LastErrorCode    string             `json:"last_error_code,omitempty"`
	LastError        string             `json:"last_error,omitempty"`
}

// AccountDetail is an account with its token status.
type AccountDetail struct {
	domain.Account
	Token *TokenStatus `json:"token,omitempty"`
}

// ListAccountsInput filters the account list.
type ListAccountsInput struct {
	ActiveOnly bool `query:"active_only" doc:"Only return active accounts"`
}

// ListAccountsOutput is the response body for listing accounts.
type ListAccountsOutput struct {
	Body []domain.Account
}

// AccountIDInput identifies an account.
type AccountIDInput struct {
	ID string `path:"id" doc:"Account ID"`
}

// GetAccountOutput is the response body for a single account.
type GetAccountOutput struct {
	Body AccountDetail
}

// SetAccountActiveInput toggles an account.
type SetAccountActiveInput struct {
	ID   string `path:"id" doc:"Account ID"`
	Body struct {
		Active bool `json:"active" doc:"Whether the account is scheduled for refresh and sync"`
	}
}

// ListAccounts returns connected accounts.
func (h *AccountsHandler) ListAccounts(
	ctx context.Context,
	input *ListAccountsInput,
) (*ListAccountsOutput, error) {
	accounts, err := h.store.ListAccounts(ctx, input.ActiveOnly)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing accounts failed: " + err.Error())
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}
	return &ListAccountsOutput{Body: accounts}, nil
}

// GetAccount returns an account and the status of its stored token.
func (h *AccountsHandler) GetAccount(
	ctx context.Context,
	input *AccountIDInput,
) (*GetAccountOutput, error) {
	a, err := h.store.GetAccount(ctx, input.ID)
	if err != nil {
		return nil, notFoundOr500(err, "account")
	}

	out := &GetAccountOutput{Body: AccountDetail{Account: *a}}

	tok, err := h.store.GetToken(ctx, a.ID, h.env)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, huma.Error500InternalServerError("fetching token failed: " + err.Error())
	default:
		out.Body.Token = tokenStatus(tok)
	}
	return out, nil
}

// SetAccountActive activates or deactivates an account.
func (h *AccountsHandler) SetAccountActive(
	ctx context.Context,
	input *SetAccountActiveInput,
) (*GetAccountOutput, error) {
	if err := h.store.SetAccountActive(ctx, input.ID, input.Body.Active); err != nil {
		return nil, notFoundOr500(err, "account")
	}
	return h.GetAccount(ctx, &AccountIDInput{ID: input.ID})
}

func tokenStatus(t *domain.Token) *TokenStatus {
	ts := &TokenStatus{
		Environment:      t.Environment,
		HasAccessToken:   t.AccessToken != nil && *t.AccessToken != "",
		HasRefreshToken:  t.RefreshToken != nil && *t.RefreshToken != "",
		AccessExpiresAt:  t.AccessExpiresAt,
		RefreshExpiresAt: t.RefreshExpiresAt,
		LastRefreshedAt:  t.LastRefreshedAt,
	}
	if t.LastRefreshErrorCode != nil {
		ts.LastErrorCode = *t.LastRefreshErrorCode
	}
	if t.LastRefreshError != nil {
		ts.LastError = *t.LastRefreshError
	}
	return ts
}

func notFoundOr500(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return huma.Error404NotFound(what + " not found")
	}
	return huma.Error500InternalServerError("fetching " + what + " failed: " + err.Error())
}

// RegisterAccountRoutes registers account endpoints with the Huma API.
func RegisterAccountRoutes(api huma.API, h *AccountsHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "list-accounts",
		Method:      http.MethodGet,
		Path:        "/api/v1/accounts",
		Summary:     "List seller accounts",
		Description: "Returns every connected eBay seller account.",
		Tags:        []string{"accounts"},
		Errors:      []int{http.StatusInternalServerError},
	}, h.ListAccounts)

	huma.Register(api, huma.Operation{
		OperationID: "get-account",
		Method:      http.MethodGet,
		Path:        "/api/v1/accounts/{id}",
		Summary:     "Get seller account",
		Description: "Returns an account with the status of its stored token. Token values are never returned.",
		Tags:        []string{"accounts"},
		Errors:      []int{http.StatusNotFound, http.StatusInternalServerError},
	}, h.GetAccount)

	huma.Register(api, huma.Operation{
		OperationID: "set-account-active",
		Method:      http.MethodPatch,
		Path:        "/api/v1/accounts/{id}",
		Summary:     "Activate or deactivate an account",
		Description: "Inactive accounts are skipped by the refresh sweep and sync cycles.",
		Tags:        []string{"accounts"},
		Errors:      []int{http.StatusNotFound, http.StatusInternalServerError},
	}, h.SetAccountActive)
}
