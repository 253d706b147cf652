// Package dashboards assembles Grafana dashboard definitions from panel builders.
package dashboards

import (
	"github.com/grafana/grafana-foundation-sdk/go/dashboard"

	"github.com/donaldgifford/ebay-seller-sync/tools/dashgen/panels"
)

// BuildOverview constructs the ebay-seller-sync overview dashboard.
func BuildOverview() *dashboard.DashboardBuilder {
	b := dashboard.NewDashboardBuilder("eBay Seller Sync").
		Uid("ess-overview").
		Tags([]string{"ess", "ebay-seller-sync"}).
		Refresh("30s").
		Time("now-6h", "now").
		Timezone("browser").
		Editable().
		Tooltip(dashboard.DashboardCursorSyncCrosshair).
		WithVariable(datasourceVar())

	b.WithRow(dashboard.NewRowBuilder("Overview").
		WithPanel(panels.HealthyStat()).
		WithPanel(panels.DatabaseStat()).
		WithPanel(panels.QuotaGauge()).
		WithPanel(panels.UptimeStat()))

	b.WithRow(dashboard.NewRowBuilder("HTTP").
		WithPanel(panels.RequestRate()).
		WithPanel(panels.LatencyPercentiles()).
		WithPanel(panels.ErrorRate()))

	b.WithRow(dashboard.NewRowBuilder("eBay API").
		WithPanel(panels.APICallsRate()).
		WithPanel(panels.DailyUsage()).
		WithPanel(panels.LimitHits()))

	b.WithRow(dashboard.NewRowBuilder("Tokens").
		WithPanel(panels.RefreshRate()).
		WithPanel(panels.RefreshFailures()).
		WithPanel(panels.RefreshLatency()).
		WithPanel(panels.ReconnectStat()).
		WithPanel(panels.LastSweep()))

	b.WithRow(dashboard.NewRowBuilder("Workers").
		WithPanel(panels.RunRate()).
		WithPanel(panels.RunDuration()).
		WithPanel(panels.ClaimOutcomes()).
		WithPanel(panels.RecordsStored()).
		WithPanel(panels.StaleReclaims()).
		WithPanel(panels.LastCycle()).
		WithPanel(panels.JobFailures()))

	b.WithRow(dashboard.NewRowBuilder("Notifications").
		WithPanel(panels.NotificationsRate()).
		WithPanel(panels.NotificationLatency()).
		WithPanel(panels.NotificationFailures()))

	return b
}

func datasourceVar() *dashboard.DatasourceVariableBuilder {
	return dashboard.NewDatasourceVariableBuilder("datasource").
		Label("Datasource").
		Type("prometheus")
}
