// Package metrics exposes the platform's Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Ingestion metrics
	DocumentsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waqedi_documents_ingested_total",
			Help: "Total number of documents accepted by category",
		},
		[]string{"file_category"},
	)

	DocumentsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waqedi_documents_rejected_total",
			Help: "Total number of uploads rejected by error code",
		},
		[]string{"code"},
	)

	// Pipeline metrics
	StageOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waqedi_stage_outcomes_total",
			Help: "Total number of stage units by terminal outcome",
		},
		[]string{"stage", "outcome"},
	)

	StageRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waqedi_stage_retries_total",
			Help: "Total number of transient-failure retries by stage",
		},
		[]string{"stage"},
	)

	StageLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "waqedi_stage_latency_seconds",
			Help:    "Time to a terminal outcome per stage unit in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"stage"},
	)

	// Answering metrics
	AnswerConfidence = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "waqedi_answer_confidence",
			Help:    "Confidence of generated answers",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	AnswersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waqedi_answers_total",
			Help: "Total number of answers by type",
		},
		[]string{"answer_type"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waqedi_api_requests_total",
			Help: "Total number of API requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "waqedi_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Stage outcome labels.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

func init() {
	prometheus.MustRegister(DocumentsIngested)
	prometheus.MustRegister(DocumentsRejected)
	prometheus.MustRegister(StageOutcomes)
	prometheus.MustRegister(StageRetries)
	prometheus.MustRegister(StageLatency)
	prometheus.MustRegister(AnswerConfidence)
	prometheus.MustRegister(AnswersTotal)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
