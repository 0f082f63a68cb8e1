package connector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	calls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "squash_connector_calls_total",
			Help: "Connector calls by server, backend kind and outcome",
		},
		[]string{"server", "kind", "outcome"},
	)

	callDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "squash_connector_call_duration_seconds",
			Help:    "Duration of connector calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"server", "kind"},
	)

	fallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "squash_connector_mock_fallbacks_total",
			Help: "Connectors that fell back to mock data, by the backend that failed",
		},
		[]string{"server", "from"},
	)
)
