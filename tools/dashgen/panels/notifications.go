package panels

import (
	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/stat"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// NotificationsRate returns operator notifications sent per hour by kind.
func NotificationsRate() *timeseries.PanelBuilder {
	return Bars("Notifications Sent", "Discord notifications delivered in the last hour, by kind", 8).
		WithTarget(PromQuery(
			"sum(increase("+Sel("ess_notifications_sent_total")+"[1h])) by (kind)",
			"{{kind}}", "A",
		))
}

// NotificationLatency returns the p95 webhook delivery latency.
func NotificationLatency() *timeseries.PanelBuilder {
	return Line("Notification Latency", "95th percentile webhook delivery time", 8).
		WithTarget(PromQuery(Quantile(0.95, "ess_notification_duration_seconds"), "p95", "A")).
		Unit("s")
}

// NotificationFailures counts failed deliveries in the last 24 hours.
func NotificationFailures() *stat.PanelBuilder {
	return Stat("Notification Failures (24h)", "Webhook deliveries that failed in the last 24 hours",
		8, ThresholdsGreenYellowRed(1, 5)).
		WithTarget(PromQuery("increase("+Sel("ess_notification_failures_total")+"[24h])", "", "A")).
		Height(TSHeight).
		ColorMode(common.BigValueColorModeBackground).
		GraphMode(common.BigValueGraphModeArea)
}
