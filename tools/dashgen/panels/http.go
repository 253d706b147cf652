package panels

import (
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

const httpDuration = "ess_http_request_duration_seconds"

// RequestRate returns the HTTP request rate of the control API.
func RequestRate() *timeseries.PanelBuilder {
	return Line("Request Rate", "HTTP requests per second", TSWidth).
		WithTarget(PromQuery(`ess:http_requests:rate5m`, "req/s", "A")).
		Unit("reqps").
		Legend(TableLegend("mean", "max"))
}

// LatencyPercentiles returns p50, p95 and p99 request latency.
func LatencyPercentiles() *timeseries.PanelBuilder {
	return Line("Latency Percentiles", "HTTP request duration percentiles", TSWidth).
		WithTarget(PromQuery(Quantile(0.50, httpDuration), "p50", "A")).
		WithTarget(PromQuery(Quantile(0.95, httpDuration), "p95", "B")).
		WithTarget(PromQuery(Quantile(0.99, httpDuration), "p99", "C")).
		Unit("s").
		Legend(TableLegend("mean", "max"))
}

// ErrorRate returns the 5xx share of requests as a percentage.
func ErrorRate() *timeseries.PanelBuilder {
	return Line("Error Rate %", "HTTP 5xx error rate as percentage of total requests", TSWidth).
		WithTarget(PromQuery(`ess:http_errors:rate5m / ess:http_requests:rate5m * 100`, "error %", "A")).
		Unit("percent").
		Thresholds(ThresholdsGreenYellowRed(1, 5)).
		ColorScheme(ColorSchemeThresholds())
}
