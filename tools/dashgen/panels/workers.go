package panels

import (
	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/stat"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// RunRate returns finished worker runs per second by family and status.
func RunRate() *timeseries.PanelBuilder {
	return Line("Worker Runs", "Finished runs per second by API family and status", 8).
		WithTarget(PromQuery(`ess:worker_runs:rate5m`, "{{family}} {{status}}", "A")).
		Unit("ops").
		Legend(TableLegend("mean", "max"))
}

// RunDuration returns the p95 run duration per family.
func RunDuration() *timeseries.PanelBuilder {
	return Line("Run Duration p95", "95th percentile worker run duration by API family", 8).
		WithTarget(PromQuery(Quantile(0.95, "ess_worker_run_duration_seconds", "family"), "{{family}}", "A")).
		Unit("s")
}

// ClaimOutcomes returns claim attempts per second by outcome.
func ClaimOutcomes() *timeseries.PanelBuilder {
	return Bars("Claim Outcomes", "Claim attempts per second by outcome", 8).
		WithTarget(PromQuery(RateBy("ess_worker_claims_total", "outcome"), "{{outcome}}", "A")).
		Unit("ops")
}

// RecordsStored returns records persisted per second by family.
func RecordsStored() *timeseries.PanelBuilder {
	return Line("Records Stored", "Records written by sync routines per second", TSWidth).
		WithTarget(PromQuery(RateBy("ess_worker_records_stored_total", "family"), "{{family}}", "A")).
		Unit("ops")
}

// StaleReclaims counts runs reclaimed after a missed heartbeat in 24h.
func StaleReclaims() *stat.PanelBuilder {
	return Stat("Stale Reclaims (24h)", "Runs taken over after their heartbeat went stale",
		StatWidth, ThresholdsGreenYellowRed(1, 5)).
		WithTarget(PromQuery("increase("+Sel("ess_worker_stale_reclaims_total")+"[24h])", "", "A")).
		ColorMode(common.BigValueColorModeBackground).
		GraphMode(common.BigValueGraphModeArea)
}

// LastCycle shows time since a sync cycle last completed.
func LastCycle() *stat.PanelBuilder {
	return Stat("Last Sync Cycle", "Time since the sync cycle last completed",
		StatWidth, ThresholdsGreenYellowRed(600, 1800)).
		WithTarget(PromQuery(Age("ess_sync_cycle_last_success_timestamp"), "", "A")).
		Unit("s")
}

// JobFailures returns scheduler job failures per hour by job.
func JobFailures() *timeseries.PanelBuilder {
	return Bars("Scheduler Job Failures", "Failed scheduler jobs in the last hour", FullWidth).
		WithTarget(PromQuery(
			"sum(increase("+Sel("ess_scheduler_job_failures_total")+"[1h])) by (job_name)",
			"{{job_name}}", "A",
		))
}
