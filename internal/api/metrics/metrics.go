package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "phyl_chatbot_build_info",
			Help: "Build information of the chatbot API server",
		},
		[]string{"version", "commit", "date"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phyl_chatbot_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "phyl_chatbot_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 0.01s to ~41s
		},
	)

	QuestionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phyl_chatbot_questions_total",
			Help: "Total number of student questions handled",
		},
		[]string{"status"},
	)

	ConversationRounds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "phyl_chatbot_conversation_rounds",
			Help:    "Model turns consumed per question",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		},
	)
)
