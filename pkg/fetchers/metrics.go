package fetchers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricFetcherResults = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "nowplaying",
	Name:      "fetcher_results_total",
	Help:      "Fetcher invocations by fetcher and whether they produced a result.",
}, []string{"fetcher", "outcome"})
