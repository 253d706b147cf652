package main

import "errors"

// KnownMetrics is the set of metric names exported by ebay-seller-sync plus
// recording rule names referenced in dashboards and alerts.
var KnownMetrics = map[string]bool{
	// HTTP metrics.
	"ess_http_request_duration_seconds": true,
	"ess_http_requests_total":           true,
	"ess_http_panics_total":             true,

	// Health metrics.
	"ess_healthy":     true,
	"ess_database_up": true,

	// Token metrics.
	"ess_token_requests_total":           true,
	"ess_token_refresh_total":            true,
	"ess_token_refresh_duration_seconds": true,
	"ess_token_config_errors_total":      true,
	"ess_accounts_needing_reconnect":     true,

	// Refresh sweep metrics.
	"ess_refresh_sweep_candidates":            true,
	"ess_refresh_sweep_duration_seconds":      true,
	"ess_refresh_sweep_last_success_timestamp": true,

	// Worker metrics.
	"ess_worker_claims_total":         true,
	"ess_worker_stale_reclaims_total": true,
	"ess_worker_runs_total":           true,
	"ess_worker_run_duration_seconds": true,
	"ess_worker_records_stored_total": true,

	// Sync cycle metrics.
	"ess_sync_cycle_duration_seconds":       true,
	"ess_sync_cycle_pairs":                  true,
	"ess_sync_cycle_last_success_timestamp": true,

	// Scheduler metrics.
	"ess_scheduler_next_run_timestamp": true,
	"ess_scheduler_job_failures_total": true,

	// eBay API metrics.
	"ess_ebay_api_calls_total":        true,
	"ess_ebay_daily_usage":            true,
	"ess_ebay_daily_limit_hits_total": true,

	// Notification metrics.
	"ess_notifications_sent_total":      true,
	"ess_notification_failures_total":   true,
	"ess_notification_duration_seconds": true,

	// Recording rules.
	"ess:http_requests:rate5m":          true,
	"ess:http_errors:rate5m":            true,
	"ess:ebay_api_calls:rate5m":         true,
	"ess:token_refresh:rate5m":          true,
	"ess:token_refresh_failures:rate5m": true,
	"ess:worker_runs:rate5m":            true,

	// Standard Prometheus metrics referenced in dashboards.
	"up":                         true,
	"process_start_time_seconds": true,
}

// Config controls which artifacts the generator produces and where they go.
type Config struct {
	OutputDir        string
	DashboardEnabled bool
	RulesEnabled     bool
}

// DefaultConfig returns a Config that generates all artifacts into ../../deploy
// (relative to tools/dashgen/).
func DefaultConfig() Config {
	return Config{
		OutputDir:        "../../deploy",
		DashboardEnabled: true,
		RulesEnabled:     true,
	}
}

// Validate checks that the config is usable.
func (c Config) Validate() error {
	if c.OutputDir == "" {
		return errors.New("output directory must be set")
	}
	if !c.DashboardEnabled && !c.RulesEnabled {
		return errors.New("at least one of dashboard or rules must be enabled")
	}
	return nil
}
