package rules

// RecordingRules returns a PrometheusRule CR containing pre-computed rate
// expressions used by dashboards and alert rules.
func RecordingRules() PrometheusRule {
	return newPrometheusRule("ess-recording-rules",
		RuleGroup{
			Name: "ess-recording",
			Rules: []Rule{
				{
					Record: "ess:http_requests:rate5m",
					Expr:   `sum(rate(ess_http_requests_total[5m]))`,
				},
				{
					Record: "ess:http_errors:rate5m",
					Expr:   `sum(rate(ess_http_requests_total{status=~"5.."}[5m]))`,
				},
				{
					Record: "ess:ebay_api_calls:rate5m",
					Expr:   `sum by (family) (rate(ess_ebay_api_calls_total[5m]))`,
				},
				{
					Record: "ess:token_refresh:rate5m",
					Expr:   `sum by (triggered_by, result) (rate(ess_token_refresh_total[5m]))`,
				},
				{
					Record: "ess:token_refresh_failures:rate5m",
					Expr:   `sum by (error_code) (rate(ess_token_refresh_total{result="failure"}[5m]))`,
				},
				{
					Record: "ess:worker_runs:rate5m",
					Expr:   `sum by (family, status) (rate(ess_worker_runs_total[5m]))`,
				},
			},
		},
	)
}
