package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts HTTP requests by method, path and status.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "askd",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// RequestDuration tracks request latency by method and path.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "askd",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// AnswersTotal counts answer pipeline outcomes.
	// Labels: mode (text, audio), result (success, error)
	AnswersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "askd",
			Subsystem: "ask",
			Name:      "answers_total",
			Help:      "Total number of answer requests by mode and result",
		},
		[]string{"mode", "result"},
	)

	// RateLimitRejections counts requests rejected at the rate limiter.
	// Labels: scope (audio, text)
	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "askd",
			Subsystem: "ratelimit",
			Name:      "rejections_total",
			Help:      "Total number of rate limited requests",
		},
		[]string{"scope"},
	)
)
