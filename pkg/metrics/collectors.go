package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cyberlombard"

//nolint:gochecknoglobals
var (
	DealTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deal_transitions_total",
		Help:      "Deal status transitions",
	}, []string{"from", "to"})

	Payouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payouts_total",
		Help:      "Loan payouts by result",
	}, []string{"result"})

	SweptDeals = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "swept_deals_total",
		Help:      "Deals closed by the expiry sweeper",
	}, []string{"outcome"})

	PriceFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "price_fallbacks_total",
		Help:      "Items priced by the estimator instead of the market table",
	})

	PriceRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "price_refreshes_total",
		Help:      "Bulk price table refreshes",
	}, []string{"result"})

	PriceTableSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "price_table_size",
		Help:      "Items in the current price snapshot",
	})

	UpstreamCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_calls_total",
		Help:      "Calls to external collaborators",
	}, []string{"collaborator", "operation", "result"})
)

func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
