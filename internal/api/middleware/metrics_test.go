package middleware_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	io_prometheus_client "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mw "github.com/donaldgifford/ebay-seller-sync/internal/api/middleware"
	"github.com/donaldgifford/ebay-seller-sync/internal/metrics"
)

func serve(e *echo.Echo, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, target, http.NoBody))
	return rec
}

func TestMetricsMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		route      string
		target     string
		handler    echo.HandlerFunc
		wantStatus string
	}{
		{
			name:   "records route template",
			method: http.MethodGet,
			route:  "/api/v1/accounts/:id",
			target: "/api/v1/accounts/acct-42",
			handler: func(c echo.Context) error {
				return c.JSON(http.StatusOK, map[string]string{"id": c.Param("id")})
			},
			wantStatus: "200",
		},
		{
			name:   "records POST request",
			method: http.MethodPost,
			route:  "/api/v1/sync/run",
			target: "/api/v1/sync/run",
			handler: func(c echo.Context) error {
				return c.NoContent(http.StatusAccepted)
			},
			wantStatus: "202",
		},
		{
			name:   "records status of returned HTTP error",
			method: http.MethodPut,
			route:  "/api/v1/accounts/:id/sync/:api_family",
			target: "/api/v1/accounts/acct-1/sync/bogus",
			handler: func(_ echo.Context) error {
				return echo.NewHTTPError(http.StatusUnprocessableEntity, "unknown family")
			},
			wantStatus: "422",
		},
		{
			name:   "records plain error as 500",
			method: http.MethodDelete,
			route:  "/api/v1/runs/:id",
			target: "/api/v1/runs/r1",
			handler: func(_ echo.Context) error {
				return errors.New("boom")
			},
			wantStatus: "500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.Use(mw.Metrics())
			e.Add(tt.method, tt.route, tt.handler)

			before := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(tt.method, tt.route, tt.wantStatus))
			serve(e, tt.method, tt.target)

			after := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(tt.method, tt.route, tt.wantStatus))
			assert.InDelta(t, before+1, after, 0)

			observer, err := metrics.HTTPRequestDuration.GetMetricWithLabelValues(tt.method, tt.route, tt.wantStatus)
			require.NoError(t, err)

			hm := &io_prometheus_client.Metric{}
			require.NoError(t, observer.(prometheus.Metric).Write(hm))
			assert.Positive(t, hm.GetHistogram().GetSampleCount())
		})
	}
}

func TestMetricsMiddleware_UnmatchedRoute(t *testing.T) {
	e := echo.New()
	e.Use(mw.Metrics())

	before := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404"))
	rec := serve(e, http.MethodGet, "/wp-login.php")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	after := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404"))
	assert.InDelta(t, before+1, after, 0)
}

func TestMetricsMiddleware_HealthGauges(t *testing.T) {
	ready := true

	e := echo.New()
	e.Use(mw.Metrics())
	e.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	e.GET("/readyz", func(c echo.Context) error {
		if !ready {
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	})

	serve(e, http.MethodGet, "/healthz")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.HealthStatus), 0)

	serve(e, http.MethodGet, "/readyz")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.DatabaseUp), 0)

	ready = false
	serve(e, http.MethodGet, "/readyz")
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.DatabaseUp), 0)

	// Health checks never show up in request metrics.
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/readyz", "503")), 0)
}
