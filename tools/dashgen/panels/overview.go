package panels

import (
	"fmt"

	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/gauge"
	"github.com/grafana/grafana-foundation-sdk/go/stat"
)

// HealthyStat shows the process health gauge.
func HealthyStat() *stat.PanelBuilder {
	return upDown("Healthy", "Process health (1 = ok, 0 = failing)", "ess_healthy")
}

// DatabaseStat shows whether PostgreSQL answers the readiness probe.
func DatabaseStat() *stat.PanelBuilder {
	return upDown("Database", "PostgreSQL reachability from /readyz (1 = up, 0 = down)", "ess_database_up")
}

func upDown(title, description, metric string) *stat.PanelBuilder {
	return Stat(title, description, StatWidth, ThresholdsRedGreen(1)).
		WithTarget(PromQuery(Sel(metric), "", "A")).
		ColorMode(common.BigValueColorModeBackground).
		TextMode(common.BigValueTextModeValue)
}

// QuotaGauge shows eBay API daily usage as a percentage of the limit.
func QuotaGauge() *gauge.PanelBuilder {
	return gauge.NewPanelBuilder().
		Title("eBay Quota %").
		Description("Daily eBay API usage as percentage of limit").
		Datasource(DSRef()).
		Height(StatHeight).
		Span(StatWidth).
		WithTarget(PromQuery(fmt.Sprintf("%s / %d * 100", Sel("ess_ebay_daily_usage"), EbayDailyLimit), "", "A")).
		Unit("percent").
		Min(0).
		Max(100).
		Thresholds(ThresholdsGreenYellowRed(80, 95)).
		ColorScheme(ColorSchemeThresholds())
}

// UptimeStat shows process uptime.
func UptimeStat() *stat.PanelBuilder {
	return Stat("Uptime", "Time since process start", StatWidth, ThresholdsGreenOnly()).
		WithTarget(PromQuery(Age("process_start_time_seconds"), "", "A")).
		Unit("s")
}
