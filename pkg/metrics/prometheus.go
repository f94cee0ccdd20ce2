package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	predictions *prometheus.CounterVec
	trainings   *prometheus.CounterVec
	modelMSE    *prometheus.GaugeVec
	modelR2     *prometheus.GaugeVec
	cacheTotal  *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		predictions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcast_predictions_total",
				Help: "Total number of predictions served, by outcome",
			},
			[]string{"ticker", "outcome"},
		),
		trainings: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcast_trainings_total",
				Help: "Total number of model training runs",
			},
			[]string{"ticker"},
		),
		modelMSE: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockcast_model_mse",
				Help: "Held-out mean squared error of the latest trained model",
			},
			[]string{"ticker"},
		),
		modelR2: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockcast_model_r2",
				Help: "Held-out R-squared of the latest trained model",
			},
			[]string{"ticker"},
		),
		cacheTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcast_prediction_cache_total",
				Help: "Prediction cache lookups by result",
			},
			[]string{"result"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockcast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordPrediction counts a served forecast; outcome is "ok" or "fallback".
func (r *Recorder) RecordPrediction(ticker, outcome string) {
	r.predictions.WithLabelValues(ticker, outcome).Inc()
}

// RecordTraining counts a training run and exposes its held-out metrics.
func (r *Recorder) RecordTraining(ticker string, mse, r2 float64) {
	r.trainings.WithLabelValues(ticker).Inc()
	r.modelMSE.WithLabelValues(ticker).Set(mse)
	r.modelR2.WithLabelValues(ticker).Set(r2)
}

// RecordCache counts a cache lookup; result is "hit" or "miss".
func (r *Recorder) RecordCache(result string) {
	r.cacheTotal.WithLabelValues(result).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
