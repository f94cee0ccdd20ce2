package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	PredictionLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stockcast",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of prediction endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	PredictionErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stockcast",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by prediction endpoint",
		},
		[]string{"endpoint"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(PredictionLatency, PredictionErrors)
	})
}
