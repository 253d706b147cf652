package panels

import (
	"fmt"

	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/stat"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// APICallsRate returns Sell API calls per second by family.
func APICallsRate() *timeseries.PanelBuilder {
	return Line("API Calls Rate", "eBay Sell API calls per second, by family", 8).
		WithTarget(PromQuery(`ess:ebay_api_calls:rate5m`, "{{family}}", "A")).
		Unit("reqps")
}

// DailyUsage returns rolling 24h eBay API usage against the daily limit.
func DailyUsage() *timeseries.PanelBuilder {
	limit := float64(EbayDailyLimit)
	return Line("Daily Usage vs Limit", fmt.Sprintf("Rolling 24h eBay API call count (limit: %d)", EbayDailyLimit), 8).
		WithTarget(PromQuery(Sel("ess_ebay_daily_usage"), "usage", "A")).
		Thresholds(ThresholdsGreenYellowRed(limit*0.8, limit)).
		ColorScheme(ColorSchemeThresholds())
}

// LimitHits counts daily limit hits in the past 24 hours.
func LimitHits() *stat.PanelBuilder {
	return Stat("Limit Hits (24h)", "Times the eBay daily limit was reached in the last 24 hours",
		8, ThresholdsGreenYellowRed(1, 3)).
		WithTarget(PromQuery("increase("+Sel("ess_ebay_daily_limit_hits_total")+"[24h])", "", "A")).
		Height(TSHeight).
		ColorMode(common.BigValueColorModeBackground).
		GraphMode(common.BigValueGraphModeArea)
}
