package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/donaldgifford/ebay-seller-sync/tools/dashgen/dashboards"
	"github.com/donaldgifford/ebay-seller-sync/tools/dashgen/panels"
	"github.com/donaldgifford/ebay-seller-sync/tools/dashgen/rules"
	"github.com/donaldgifford/ebay-seller-sync/tools/dashgen/validate"
)

func TestDefaultConfigValid(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate_EmptyOutputDir(t *testing.T) {
	t.Parallel()
	cfg := Config{OutputDir: "", DashboardEnabled: true}
	assert.Error(t, cfg.Validate())
}

func TestConfigValidate_NothingEnabled(t *testing.T) {
	t.Parallel()
	cfg := Config{OutputDir: "/tmp", DashboardEnabled: false, RulesEnabled: false}
	assert.Error(t, cfg.Validate())
}

func TestBuildOverviewDashboard(t *testing.T) {
	t.Parallel()

	builder := dashboards.BuildOverview()
	dash, err := builder.Build()
	require.NoError(t, err)

	require.NotNil(t, dash.Uid)
	assert.Equal(t, "ess-overview", *dash.Uid)

	require.NotNil(t, dash.Title)
	assert.Equal(t, "eBay Seller Sync", *dash.Title)

	require.NotNil(t, dash.Templating)
	assert.Len(t, dash.Templating.List, 1)
	assert.Equal(t, "datasource", dash.Templating.List[0].Name)

	// Overview, HTTP, eBay API, Tokens, Workers, Notifications.
	assert.Len(t, dash.Panels, 6)

	totalPanels := 0
	for _, p := range dash.Panels {
		if p.RowPanel != nil {
			totalPanels += len(p.RowPanel.Panels)
		}
	}
	assert.Equal(t, 25, totalPanels)

	result := validate.Dashboard(dash, KnownMetrics)
	assert.True(t, result.Ok(), "validation errors: %v", result.Errors)
	assert.Empty(t, result.Warnings, "unexpected warnings: %v", result.Warnings)
}

func TestRecordingRules(t *testing.T) {
	t.Parallel()

	cr := rules.RecordingRules()
	assert.Equal(t, "monitoring.coreos.com/v1", cr.APIVersion)
	assert.Equal(t, "PrometheusRule", cr.Kind)
	assert.Equal(t, "ess-recording-rules", cr.Metadata.Name)

	require.Len(t, cr.Spec.Groups, 1)
	group := cr.Spec.Groups[0]
	assert.Equal(t, "ess-recording", group.Name)
	require.Len(t, group.Rules, 6)

	expectedRecords := []string{
		"ess:http_requests:rate5m",
		"ess:http_errors:rate5m",
		"ess:ebay_api_calls:rate5m",
		"ess:token_refresh:rate5m",
		"ess:token_refresh_failures:rate5m",
		"ess:worker_runs:rate5m",
	}
	for i, rule := range group.Rules {
		assert.Equal(t, expectedRecords[i], rule.Record)
		assert.NotEmpty(t, rule.Expr)
		assert.True(t, KnownMetrics[rule.Record], "%s missing from KnownMetrics", rule.Record)
	}

	result := validate.Rules(cr, KnownMetrics)
	assert.True(t, result.Ok(), "validation errors: %v", result.Errors)

	data, err := yaml.Marshal(cr)
	require.NoError(t, err)
	assert.Contains(t, string(data), "apiVersion: monitoring.coreos.com/v1")
}

func TestAlertRules(t *testing.T) {
	t.Parallel()

	cr := rules.AlertRules()
	assert.Equal(t, "monitoring.coreos.com/v1", cr.APIVersion)
	assert.Equal(t, "PrometheusRule", cr.Kind)
	assert.Equal(t, "ess-alerts", cr.Metadata.Name)

	require.Len(t, cr.Spec.Groups, 1)
	group := cr.Spec.Groups[0]
	assert.Equal(t, "ess-alerts", group.Name)
	require.Len(t, group.Rules, 13)

	expectedAlerts := []string{
		"EssDown",
		"EssDatabaseDown",
		"EssHighErrorRate",
		"EssTokenRefreshFailing",
		"EssAccountsNeedReconnect",
		"EssTokenConfigError",
		"EssRefreshSweepStale",
		"EssSyncCycleStale",
		"EssStaleRunsReclaimed",
		"EssSchedulerJobFailing",
		"EssEbayQuotaHigh",
		"EssEbayLimitReached",
		"EssNotificationFailures",
	}
	for i, rule := range group.Rules {
		assert.Equal(t, expectedAlerts[i], rule.Alert)
		assert.NotEmpty(t, rule.Expr)
		assert.NotEmpty(t, rule.Labels["severity"], "alert %s missing severity", rule.Alert)
		assert.NotEmpty(t, rule.Annotations["summary"], "alert %s missing summary", rule.Alert)
		assert.NotEmpty(t, rule.Annotations["description"], "alert %s missing description", rule.Alert)
	}

	result := validate.Rules(cr, KnownMetrics)
	assert.True(t, result.Ok(), "validation errors: %v", result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestValidate_RejectsBadExpressions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		expr string
	}{
		{name: "syntax error", expr: `sum(rate(ess_worker_runs_total[5m]`},
		{name: "unknown metric", expr: `rate(ess_does_not_exist_total[5m])`},
		{name: "unknown recording rule", expr: `ess:nothing:rate5m > 0`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var res validate.Result
			validate.Expr(&res, "test", tt.expr, KnownMetrics)
			assert.False(t, res.Ok())
		})
	}
}

func TestValidate_HistogramSeries(t *testing.T) {
	t.Parallel()

	var res validate.Result
	validate.Expr(&res, "test",
		`sum(rate(ess_worker_run_duration_seconds_bucket[5m])) by (le) / sum(rate(ess_worker_run_duration_seconds_count[5m]))`,
		KnownMetrics)
	assert.True(t, res.Ok(), "errors: %v", res.Errors)
}

func TestValidate_RulesSeeEarlierRecords(t *testing.T) {
	t.Parallel()

	cr := rules.PrometheusRule{Spec: rules.PrometheusRuleSpec{Groups: []rules.RuleGroup{{
		Name: "g",
		Rules: []rules.Rule{
			{Record: "ess:custom:rate5m", Expr: `sum(rate(ess_worker_runs_total[5m]))`},
			{Alert: "Custom", Expr: `ess:custom:rate5m > 1`, Labels: map[string]string{"severity": "info"}},
		},
	}}}}

	res := validate.Rules(cr, KnownMetrics)
	assert.True(t, res.Ok(), "errors: %v", res.Errors)
	assert.False(t, KnownMetrics["ess:custom:rate5m"], "validation must not mutate the known set")
}

func TestRun_WritesArtifacts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := Config{OutputDir: dir, DashboardEnabled: true, RulesEnabled: true}
	require.NoError(t, run(cfg, false))

	raw, err := os.ReadFile(filepath.Join(dir, dashboardPath))
	require.NoError(t, err)
	var dash map[string]any
	require.NoError(t, json.Unmarshal(raw, &dash))
	assert.Equal(t, "ess-overview", dash["uid"])

	for _, p := range []string{recordingPath, alertsPath} {
		raw, err := os.ReadFile(filepath.Join(dir, p))
		require.NoError(t, err)
		assert.Contains(t, string(raw), generatedHeader)

		var cr rules.PrometheusRule
		require.NoError(t, yaml.Unmarshal(raw, &cr))
		assert.Equal(t, "PrometheusRule", cr.Kind)
	}

	raw, err = os.ReadFile(filepath.Join(dir, standalonePath))
	require.NoError(t, err)
	var f rules.RuleFile
	require.NoError(t, yaml.Unmarshal(raw, &f))
	require.Len(t, f.Groups, 2)
	assert.Equal(t, "ess-recording", f.Groups[0].Name)
	assert.Equal(t, "ess-alerts", f.Groups[1].Name)
}

func TestRun_ValidateOnlyWritesNothing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, run(Config{OutputDir: dir, DashboardEnabled: true, RulesEnabled: true}, true))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPanelExpressions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		got  string
		want string
	}{
		{
			name: "selector",
			got:  panels.Sel("ess_healthy"),
			want: `ess_healthy{job="ebay-seller-sync"}`,
		},
		{
			name: "selector with matchers",
			got:  panels.Sel("ess_worker_runs_total", `status="error"`),
			want: `ess_worker_runs_total{job="ebay-seller-sync",status="error"}`,
		},
		{
			name: "rate by labels",
			got:  panels.RateBy("ess_worker_claims_total", "outcome"),
			want: `sum(rate(ess_worker_claims_total{job="ebay-seller-sync"}[5m])) by (outcome)`,
		},
		{
			name: "quantile",
			got:  panels.Quantile(0.95, "ess_worker_run_duration_seconds", "family"),
			want: `histogram_quantile(0.95, sum(rate(ess_worker_run_duration_seconds_bucket{job="ebay-seller-sync"}[5m])) by (le, family))`,
		},
		{
			name: "age",
			got:  panels.Age("process_start_time_seconds"),
			want: `time() - process_start_time_seconds{job="ebay-seller-sync"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.got)

			var res validate.Result
			validate.Expr(&res, tt.name, tt.got, KnownMetrics)
			assert.Empty(t, res.Errors)
		})
	}
}
