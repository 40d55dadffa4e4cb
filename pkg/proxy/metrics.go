package proxy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricProxyRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "nowplaying",
	Name:      "proxy_requests_total",
	Help:      "Remote proxy requests by outcome.",
}, []string{"outcome"})
