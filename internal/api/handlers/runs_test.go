package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/ebay-seller-sync/internal/api/handlers"
	"github.com/donaldgifford/ebay-seller-sync/internal/store"
	"github.com/donaldgifford/ebay-seller-sync/internal/worker"
	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

func TestListRuns_Filters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := store.NewMemoryStore()
	coord := worker.NewCoordinator(s)
	a := seedAccount(t, s, "alpha")
	b := seedAccount(t, s, "beta")

	h, err := coord.Claim(ctx, a.ID, domain.FamilyOrders)
	require.NoError(t, err)
	require.NoError(t, coord.Finish(ctx, h, domain.RunSuccess, &worker.Summary{Stored: 2}))

	_, err = coord.Claim(ctx, a.ID, domain.FamilyFinances)
	require.NoError(t, err)
	_, err = coord.Claim(ctx, b.ID, domain.FamilyOrders)
	require.NoError(t, err)

	_, api := humatest.New(t)
	handlers.RegisterRunRoutes(api, handlers.NewRunsHandler(s))

	decode := func(path string) []domain.WorkerRun {
		resp := api.Get(path)
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		var runs []domain.WorkerRun
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &runs))
		return runs
	}

	assert.Len(t, decode("/api/v1/runs"), 3)
	assert.Len(t, decode("/api/v1/runs?account_id="+a.ID), 2)
	assert.Len(t, decode("/api/v1/runs?api_family=orders"), 2)

	running := decode("/api/v1/runs?status=running")
	assert.Len(t, running, 2)

	done := decode("/api/v1/runs?account_id=" + a.ID + "&status=success")
	require.Len(t, done, 1)
	assert.Equal(t, domain.FamilyOrders, done[0].APIFamily)
}

func TestListRuns_Validation(t *testing.T) {
	t.Parallel()

	_, api := humatest.New(t)
	handlers.RegisterRunRoutes(api, handlers.NewRunsHandler(store.NewMemoryStore()))

	assert.Equal(t, http.StatusBadRequest, api.Get("/api/v1/runs?api_family=listings").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, api.Get("/api/v1/runs?status=bogus").Code)

	resp := api.Get("/api/v1/runs")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, "[]", resp.Body.String())
}
