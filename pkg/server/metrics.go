package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "iat",
		Name:      "requests_total",
		Help:      "Attestation requests by operation and PSA status.",
	}, []string{"operation", "status"})

	tokenSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "iat",
		Name:      "token_size_bytes",
		Help:      "Size of issued attestation tokens.",
		Buckets:   prometheus.LinearBuckets(128, 128, 8),
	})
)

func observe(operation string, status Status) {
	requestsTotal.WithLabelValues(operation, status.String()).Inc()
}
