// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecosort_api_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	Classifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecosort_classifications_total",
			Help: "Persisted classifications by label, source model and recyclability",
		},
		[]string{"label", "source", "recyclable"},
	)

	QualityScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ecosort_image_quality_score",
			Help:    "Quality score of uploaded images",
			Buckets: []float64{0, 25, 45, 55, 60, 70, 75, 80, 90, 100},
		},
	)

	ClassifierDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecosort_classifier_duration_seconds",
			Help:    "Model server predict latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)

	ClassifierErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecosort_classifier_errors_total",
			Help: "Failed model server predict calls",
		},
		[]string{"model"},
	)

	AchievementsUnlocked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecosort_achievements_unlocked_total",
			Help: "Achievement unlock events",
		},
		[]string{"achievement"},
	)

	ChatResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecosort_chat_responses_total",
			Help: "Chat replies by outcome (generated, fallback, unconfigured)",
		},
		[]string{"outcome"},
	)
)

// ObserveClassifier records one predict call.
func ObserveClassifier(model string, elapsed time.Duration, err error) {
	ClassifierDuration.WithLabelValues(model).Observe(elapsed.Seconds())
	if err != nil {
		ClassifierErrors.WithLabelValues(model).Inc()
	}
}

// RecordClassification counts a persisted classification.
func RecordClassification(label, source string, recyclable bool, qualityScore int) {
	r := "false"
	if recyclable {
		r = "true"
	}
	Classifications.WithLabelValues(label, source, r).Inc()
	QualityScore.Observe(float64(qualityScore))
}

// RecordAPIRequest records the latency of one HTTP request.
func RecordAPIRequest(method, route, status string, elapsed time.Duration) {
	APIRequestDuration.WithLabelValues(method, route, status).Observe(elapsed.Seconds())
}
