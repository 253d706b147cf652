package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/ebay-seller-sync/internal/api/handlers"
	"github.com/donaldgifford/ebay-seller-sync/internal/tokens"
	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

func TestClient_ConnectionRefused(t *testing.T) {
	t.Parallel()

	c := New("http://127.0.0.1:1") // nothing listening
	_, err := c.ListAccounts(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API server not running")
}

func TestClient_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.ListAccounts(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API error (HTTP 500)")
	assert.False(t, IsNotFound(err))
}

func TestClient_ProblemDetails(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "essctl", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"title":"Not Found","status":404,"detail":"account not found"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.GetAccount(context.Background(), "missing")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "account not found", apiErr.Detail)
	assert.Equal(t, "API error (HTTP 404): account not found", err.Error())
	assert.True(t, IsNotFound(err))
}

func TestClient_ListAccounts(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/accounts", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("active_only"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]domain.Account{{ID: "a1", EbayUserID: "seller1"}})
	}))
	defer srv.Close()

	c := New(srv.URL)
	accounts, err := c.ListAccounts(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "seller1", accounts[0].EbayUserID)
}

func TestClient_SetAccountActive(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/v1/accounts/a1", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]bool
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.False(t, body["active"])

		json.NewEncoder(w).Encode(handlers.AccountDetail{Account: domain.Account{ID: "a1"}})
	}))
	defer srv.Close()

	c := New(srv.URL)
	detail, err := c.SetAccountActive(context.Background(), "a1", false)
	require.NoError(t, err)
	assert.Equal(t, "a1", detail.ID)
	assert.False(t, detail.Active)
}

func TestClient_RefreshToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/accounts/a1/token/refresh", r.URL.Path)

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["force"])

		_, _ = w.Write([]byte(`{"success":false,"error_code":"AUTH_FAILED","source":"refresh","environment":"production"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	res, err := c.RefreshToken(context.Background(), "a1", true)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, tokens.CodeAuthFailed, res.ErrorCode)
}

func TestClient_ListRuns(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/runs", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "a1", q.Get("account_id"))
		assert.Equal(t, "orders", q.Get("api_family"))
		assert.Equal(t, "error", q.Get("status"))
		assert.Equal(t, "10", q.Get("limit"))
		assert.Empty(t, q.Get("offset"))
		json.NewEncoder(w).Encode([]domain.WorkerRun{{ID: "r1"}})
	}))
	defer srv.Close()

	c := New(srv.URL)
	runs, err := c.ListRuns(context.Background(), RunsQuery{
		AccountID: "a1",
		APIFamily: "orders",
		Status:    "error",
		Limit:     10,
	})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "r1", runs[0].ID)
}

func TestClient_SetSyncEnabled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/accounts/a1/sync/finances", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	require.NoError(t, c.SetSyncEnabled(context.Background(), "a1", "finances", true))
}

func TestClient_TriggerSync(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/sync/run", r.URL.Path)
		_, _ = w.Write([]byte(`{"due":3,"succeeded":2,"failed":1,"not_claimed":0,"skipped":0}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	sum, err := c.TriggerSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Due)
	assert.Equal(t, 1, sum.Failed)
}

func TestClient_GetQuota(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/quota", r.URL.Path)
		_, _ = w.Write([]byte(`{"daily_limit":5000,"daily_used":42,"remaining":4958,"exhausted":false,` +
			`"reset_at":"2026-10-16T00:00:00Z","families":[{"api_family":"orders","calls":40,"share":0.95},` +
			`{"api_family":"finances","calls":2,"share":0.05}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	q, err := c.GetQuota(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4958), q.Remaining)
	assert.False(t, q.Exhausted)
	require.Len(t, q.Families, 2)
	assert.Equal(t, FamilyQuota{APIFamily: "orders", Calls: 40, Share: 0.95}, q.Families[0])
}

func TestClient_GetJobHistory(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/jobs/token_refresh", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode([]domain.JobRun{{ID: "j1", JobName: "token_refresh"}})
	}))
	defer srv.Close()

	c := New(srv.URL)
	runs, err := c.GetJobHistory(context.Background(), "token_refresh", 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "token_refresh", runs[0].JobName)
}
