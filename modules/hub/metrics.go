package hub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "nowplaying",
		Name:      "hub_clients",
		Help:      "Connected websocket clients.",
	})

	metricMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nowplaying",
		Name:      "hub_messages_total",
		Help:      "Messages through the hub by direction and type.",
	}, []string{"direction", "type"})

	metricDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "nowplaying",
		Name:      "hub_dropped_total",
		Help:      "Outbound messages dropped because a client queue was full.",
	})
)
