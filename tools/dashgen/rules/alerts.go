package rules

// AlertRules returns a PrometheusRule CR containing alert rules for
// ebay-seller-sync operational monitoring.
func AlertRules() PrometheusRule {
	return newPrometheusRule("ess-alerts",
		RuleGroup{
			Name: "ess-alerts",
			Rules: []Rule{
				{
					Alert: "EssDown",
					Expr:  `absent(up{job="ebay-seller-sync"})`,
					For:   "2m",
					Labels: map[string]string{
						"severity": "critical",
					},
					Annotations: map[string]string{
						"summary":     "eBay Seller Sync is down",
						"description": "The ebay-seller-sync job has been absent for more than 2 minutes.",
					},
				},
				{
					Alert: "EssDatabaseDown",
					Expr:  `ess_database_up == 0`,
					For:   "2m",
					Labels: map[string]string{
						"severity": "critical",
					},
					Annotations: map[string]string{
						"summary":     "PostgreSQL is unreachable",
						"description": "The readiness probe has not reached the database for more than 2 minutes. No tokens can be refreshed and no runs can be claimed.",
					},
				},
				{
					Alert: "EssHighErrorRate",
					Expr:  `ess:http_errors:rate5m / ess:http_requests:rate5m > 0.05`,
					For:   "5m",
					Labels: map[string]string{
						"severity": "warning",
					},
					Annotations: map[string]string{
						"summary":     "High HTTP error rate on eBay Seller Sync",
						"description": "More than 5% of HTTP requests are returning 5xx errors over the last 5 minutes.",
					},
				},
				{
					Alert: "EssTokenRefreshFailing",
					Expr:  `sum(ess:token_refresh_failures:rate5m) > 0`,
					For:   "15m",
					Labels: map[string]string{
						"severity": "warning",
					},
					Annotations: map[string]string{
						"summary":     "Token refreshes are failing",
						"description": "Refresh attempts against the eBay token endpoint have been failing for 15 minutes.",
					},
				},
				{
					Alert: "EssAccountsNeedReconnect",
					Expr:  `ess_accounts_needing_reconnect > 0`,
					For:   "5m",
					Labels: map[string]string{
						"severity": "warning",
					},
					Annotations: map[string]string{
						"summary":     "Sellers need to reconnect their eBay account",
						"description": "One or more accounts have an expired or revoked refresh token and must be re-authorized.",
					},
				},
				{
					Alert: "EssTokenConfigError",
					Expr:  `increase(ess_token_config_errors_total[10m]) > 0`,
					For:   "0m",
					Labels: map[string]string{
						"severity": "critical",
					},
					Annotations: map[string]string{
						"summary":     "eBay application credentials are misconfigured",
						"description": "A token refresh failed because the client credentials are missing or were rejected.",
					},
				},
				{
					Alert: "EssRefreshSweepStale",
					Expr:  `time() - ess_refresh_sweep_last_success_timestamp > 1800`,
					For:   "5m",
					Labels: map[string]string{
						"severity": "warning",
					},
					Annotations: map[string]string{
						"summary":     "Proactive token refresh sweep is not running",
						"description": "The refresh sweep has not completed in the last 30 minutes. Tokens will only be refreshed on demand.",
					},
				},
				{
					Alert: "EssSyncCycleStale",
					Expr:  `time() - ess_sync_cycle_last_success_timestamp > 1800`,
					For:   "5m",
					Labels: map[string]string{
						"severity": "warning",
					},
					Annotations: map[string]string{
						"summary":     "Sync cycle is not running",
						"description": "No sync cycle has completed in the last 30 minutes.",
					},
				},
				{
					Alert: "EssStaleRunsReclaimed",
					Expr:  `increase(ess_worker_stale_reclaims_total[1h]) > 3`,
					For:   "0m",
					Labels: map[string]string{
						"severity": "warning",
					},
					Annotations: map[string]string{
						"summary":     "Worker runs are going stale",
						"description": "More than 3 runs were reclaimed after a missed heartbeat in the last hour. Workers may be crashing mid-run.",
					},
				},
				{
					Alert: "EssSchedulerJobFailing",
					Expr:  `increase(ess_scheduler_job_failures_total[30m]) > 0`,
					For:   "0m",
					Labels: map[string]string{
						"severity": "warning",
					},
					Annotations: map[string]string{
						"summary":     "Scheduled job failed",
						"description": "A scheduled job ({{ $labels.job_name }}) returned an error in the last 30 minutes.",
					},
				},
				{
					Alert: "EssEbayQuotaHigh",
					Expr:  `ess_ebay_daily_usage > 4000`,
					For:   "5m",
					Labels: map[string]string{
						"severity": "warning",
					},
					Annotations: map[string]string{
						"summary":     "eBay API daily usage is above 80% of the quota",
						"description": "Daily eBay API usage has exceeded 4000 calls (limit is 5000).",
					},
				},
				{
					Alert: "EssEbayLimitReached",
					Expr:  `increase(ess_ebay_daily_limit_hits_total[5m]) > 0`,
					For:   "0m",
					Labels: map[string]string{
						"severity": "critical",
					},
					Annotations: map[string]string{
						"summary":     "eBay API daily limit has been reached",
						"description": "The daily eBay API budget is exhausted. Sync runs are skipped until the window resets.",
					},
				},
				{
					Alert: "EssNotificationFailures",
					Expr:  `increase(ess_notification_failures_total[5m]) > 0`,
					For:   "1m",
					Labels: map[string]string{
						"severity": "warning",
					},
					Annotations: map[string]string{
						"summary":     "Notification delivery failures detected",
						"description": "One or more operator notifications (Discord webhooks) have failed to send.",
					},
				},
			},
		},
	)
}
