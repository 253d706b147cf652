package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/ebay-seller-sync/internal/tokens"
	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

// TokenResolver resolves access tokens. *tokens.Provider implements it.
type TokenResolver interface {
	GetValidAccessToken(ctx context.Context, req tokens.Request) tokens.Result
}

// RefreshLogProvider lists token refresh attempts.
type RefreshLogProvider interface {
	ListTokenRefreshLogs(ctx context.Context, accountID string, limit int) ([]domain.TokenRefreshLog, error)
}

// TokensHandler exposes token refresh and its audit log.
type TokensHandler struct {
	tokens TokenResolver
	logs   RefreshLogProvider
}

// NewTokensHandler creates a new TokensHandler.
func NewTokensHandler(t TokenResolver, logs RefreshLogProvider) *TokensHandler {
	return &TokensHandler{tokens: t, logs: logs}
}

// RefreshTokenInput requests a token for an account.
type RefreshTokenInput struct {
	ID   string `path:"id" doc:"Account ID"`
	Body struct {
		Force     bool   `json:"force,omitempty"      doc:"Refresh even if the cached token is still valid"`
		APIFamily string `json:"api_family,omitempty" doc:"API family recorded in the refresh log"`
	}
}

// RefreshTokenOutput is the structured token result. The token itself is
// never returned.
type RefreshTokenOutput struct {
	Body tokens.Result
}

// ListRefreshLogsInput selects refresh log entries.
type ListRefreshLogsInput struct {
	ID    string `path:"id"     doc:"Account ID"`
	Limit int    `query:"limit" doc:"Maximum entries" default:"50" minimum:"1" maximum:"500"`
}

// ListRefreshLogsOutput is the response body for refresh logs.
type ListRefreshLogsOutput struct {
	Body []domain.TokenRefreshLog
}

// RefreshToken returns a valid token result for the account, refreshing it
// when needed or when forced. Token failures are reported in the body.
func (h *TokensHandler) RefreshToken(
	ctx context.Context,
	input *RefreshTokenInput,
) (*RefreshTokenOutput, error) {
	family := domain.APIFamily(input.Body.APIFamily)
	if family != "" && !family.Valid() {
		return nil, huma.Error400BadRequest("unknown api family: " + input.Body.APIFamily)
	}

	res := h.tokens.GetValidAccessToken(ctx, tokens.Request{
		AccountID:    input.ID,
		APIFamily:    family,
		ForceRefresh: input.Body.Force,
		TriggeredBy:  domain.TriggerManual,
	})
	return &RefreshTokenOutput{Body: res}, nil
}

// ListRefreshLogs returns the newest refresh attempts of an account.
func (h *TokensHandler) ListRefreshLogs(
	ctx context.Context,
	input *ListRefreshLogsInput,
) (*ListRefreshLogsOutput, error) {
	logs, err := h.logs.ListTokenRefreshLogs(ctx, input.ID, input.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing refresh logs failed: " + err.Error())
	}
	if logs == nil {
		logs = []domain.TokenRefreshLog{}
	}
	return &ListRefreshLogsOutput{Body: logs}, nil
}

// RegisterTokenRoutes registers token endpoints with the Huma API.
func RegisterTokenRoutes(api huma.API, h *TokensHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "refresh-token",
		Method:      http.MethodPost,
		Path:        "/api/v1/accounts/{id}/token/refresh",
		Summary:     "Refresh an account token",
		Description: "Returns a valid token result, refreshing through eBay OAuth when the cached token " +
			"is near expiry or force is set. Failures carry an error code instead of an HTTP error.",
		Tags:   []string{"tokens"},
		Errors: []int{http.StatusBadRequest},
	}, h.RefreshToken)

	huma.Register(api, huma.Operation{
		OperationID: "list-refresh-logs",
		Method:      http.MethodGet,
		Path:        "/api/v1/accounts/{id}/token/logs",
		Summary:     "List token refresh attempts",
		Description: "Returns the token refresh audit log of an account (newest first).",
		Tags:        []string{"tokens"},
		Errors:      []int{http.StatusInternalServerError},
	}, h.ListRefreshLogs)
}
