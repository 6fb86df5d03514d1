package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for list pagination.
var (
	pageFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recruit_page_fetches_total",
		Help: "Total page fetches by list, kind (initial, more, count) and outcome",
	}, []string{"list", "kind", "outcome"})

	pageFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recruit_page_fetch_duration_seconds",
		Help:    "Page fetch duration in seconds by list",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"list"})

	pageItemsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recruit_page_items_received_total",
		Help: "Items received from list pages before deduplication",
	}, []string{"list"})

	sentinelFiresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recruit_scroll_sentinel_fires_total",
		Help: "Next-page fetches triggered by the scroll sentinel",
	}, []string{"list"})
)

// Fetch outcomes used as metric label values.
const (
	outcomeOK      = "ok"
	outcomeError   = "error"
	outcomeSkipped = "skipped"
	outcomeStale   = "stale"
	outcomeNoMore  = "exhausted"
	kindInitial    = "initial"
	kindMore       = "more"
	kindCount      = "count"
)

func fetchKind(isInitial bool) string {
	if isInitial {
		return kindInitial
	}
	return kindMore
}
