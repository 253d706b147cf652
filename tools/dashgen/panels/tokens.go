package panels

import (
	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/stat"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// RefreshRate returns token refreshes per second by trigger and result.
func RefreshRate() *timeseries.PanelBuilder {
	return Line("Token Refreshes", "Refresh attempts per second by trigger and result", 8).
		WithTarget(PromQuery(`ess:token_refresh:rate5m`, "{{triggered_by}} {{result}}", "A")).
		Unit("ops").
		Legend(TableLegend("mean", "max"))
}

// RefreshFailures returns failed refreshes per second by error code.
func RefreshFailures() *timeseries.PanelBuilder {
	return Bars("Refresh Failures by Code", "Failed refreshes per second by error code", 8).
		WithTarget(PromQuery(`ess:token_refresh_failures:rate5m`, "{{error_code}}", "A")).
		Unit("ops")
}

// RefreshLatency returns the p95 round trip to the eBay token endpoint.
func RefreshLatency() *timeseries.PanelBuilder {
	return Line("Refresh Latency p95", "95th percentile token endpoint round trip", 8).
		WithTarget(PromQuery(Quantile(0.95, "ess_token_refresh_duration_seconds"), "p95", "A")).
		Unit("s")
}

// ReconnectStat counts accounts whose refresh token was rejected.
func ReconnectStat() *stat.PanelBuilder {
	return Stat("Needs Reconnect", "Accounts whose refresh token is expired or revoked",
		TSWidth, ThresholdsGreenYellowRed(1, 5)).
		WithTarget(PromQuery(Sel("ess_accounts_needing_reconnect"), "", "A")).
		ColorMode(common.BigValueColorModeBackground).
		TextMode(common.BigValueTextModeValue)
}

// LastSweep shows time since the proactive refresh sweep last completed.
func LastSweep() *stat.PanelBuilder {
	return Stat("Last Refresh Sweep", "Time since the proactive refresh sweep last completed",
		TSWidth, ThresholdsGreenYellowRed(1200, 1800)).
		WithTarget(PromQuery(Age("ess_refresh_sweep_last_success_timestamp"), "", "A")).
		Unit("s")
}
