// Package middleware provides Echo middleware for ebay-seller-sync.
package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/donaldgifford/ebay-seller-sync/internal/metrics"
)

// unmatchedPath labels requests that hit no route, so scanners cannot
// blow up label cardinality.
const unmatchedPath = "unmatched"

// Health check and scrape paths get no request metrics.
var metricsSkipPaths = map[string]struct{}{
	"/metrics": {},
	"/healthz": {},
	"/readyz":  {},
}

// Health check paths mirror their outcome into an up/down gauge.
var healthGauges = map[string]prometheus.Gauge{
	"/healthz": metrics.HealthStatus,
	"/readyz":  metrics.DatabaseUp,
}

// Metrics returns Echo middleware that records request duration and status
// by route template. The status of a returned error is taken from the error,
// since Echo writes the error response after the middleware chain unwinds.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			status := responseStatus(c, err)

			path := routePath(c)
			if _, skip := metricsSkipPaths[path]; skip {
				updateHealthGauge(path, status)
				return err
			}

			code := strconv.Itoa(status)
			method := c.Request().Method
			metrics.HTTPRequestDuration.
				WithLabelValues(method, path, code).
				Observe(time.Since(start).Seconds())
			metrics.HTTPRequestsTotal.
				WithLabelValues(method, path, code).
				Inc()

			return err
		}
	}
}

func routePath(c echo.Context) string {
	path := c.Path()
	if path == "" || path == "/*" {
		if _, ok := metricsSkipPaths[c.Request().URL.Path]; ok {
			return c.Request().URL.Path
		}
		return unmatchedPath
	}
	return path
}

func responseStatus(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

func updateHealthGauge(path string, status int) {
	gauge, ok := healthGauges[path]
	if !ok {
		return
	}

	if status >= 200 && status < 300 {
		gauge.Set(1)
	} else {
		gauge.Set(0)
	}
}
