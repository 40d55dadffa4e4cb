package nowplaying

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nowplaying",
		Name:      "fetch_total",
		Help:      "Now playing lookups by path and outcome.",
	}, []string{"path", "outcome"})

	metricFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nowplaying",
		Name:      "fetch_duration_seconds",
		Help:      "Duration of now playing lookups.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"path"})

	metricSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "nowplaying",
		Name:      "active_sessions",
		Help:      "Number of running fetch sessions.",
	})
)
