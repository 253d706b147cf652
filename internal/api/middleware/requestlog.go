package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/trace"
)

const requestIDHeader = "X-Request-ID"

// healthPaths are logged once while healthy. Every failure is logged at
// WARN or above and re-arms logging of the next success.
var healthPaths = map[string]struct{}{
	"/healthz": {},
	"/readyz":  {},
}

// RequestLog returns Echo middleware that logs one line per request with the
// route template, the final status and the request ID. The ID is taken from
// X-Request-ID or generated, then echoed back and stored as "request_id" in
// the echo context. Server errors are logged at ERROR. Requests carrying a
// span are logged with its trace ID.
func RequestLog(log *slog.Logger) echo.MiddlewareFunc {
	var (
		mu          sync.Mutex
		healthLogged = make(map[string]bool)
	)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			reqID := c.Request().Header.Get(requestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}

			c.Set("request_id", reqID)
			c.Response().Header().Set(requestIDHeader, reqID)

			err := next(c)

			path := c.Request().URL.Path
			status := responseStatus(c, err)
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}

			if _, health := healthPaths[path]; health {
				mu.Lock()
				if status >= http.StatusBadRequest {
					healthLogged[path] = false
					level = max(level, slog.LevelWarn)
				} else if healthLogged[path] {
					mu.Unlock()
					return err
				} else {
					healthLogged[path] = true
				}
				mu.Unlock()
			}

			attrs := []any{
				"method", c.Request().Method,
				"path", path,
				"route", routePath(c),
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", reqID,
			}
			if sc := trace.SpanContextFromContext(c.Request().Context()); sc.IsValid() {
				attrs = append(attrs, "trace_id", sc.TraceID().String())
			}
			log.Log(c.Request().Context(), level, "request", attrs...)

			return err
		}
	}
}
