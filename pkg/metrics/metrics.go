// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LLM metrics
	LLMRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wayfare_llm_requests_total",
			Help: "Total number of LLM API requests",
		},
		[]string{"model", "status"},
	)

	LLMTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wayfare_llm_tokens_total",
			Help: "Total number of LLM tokens consumed",
		},
		[]string{"model", "type"}, // type: prompt/completion
	)

	LLMCostUSD = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wayfare_llm_cost_usd_total",
			Help: "Total estimated LLM cost in USD",
		},
		[]string{"model"},
	)

	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wayfare_llm_request_duration_seconds",
			Help:    "LLM request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~1min
		},
		[]string{"model"},
	)

	// Spend cap metrics
	SpendMonthUSD = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wayfare_spend_month_usd",
			Help: "Spend recorded in the current month in USD",
		},
	)

	SpendCapBlocks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wayfare_spend_cap_blocks_total",
			Help: "Total number of LLM calls that pushed spend over the monthly cap",
		},
	)

	SpendCappedTurns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wayfare_spend_capped_turns_total",
			Help: "Total number of chat turns answered with the spend cap fallback",
		},
	)

	// Action metrics
	ActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wayfare_actions_total",
			Help: "Total number of executed travel actions",
		},
		[]string{"action", "status"},
	)

	// Upstream API cache metrics
	APICacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wayfare_api_cache_requests_total",
			Help: "Total number of upstream API cache lookups",
		},
		[]string{"provider", "result"}, // result: hit/miss
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wayfare_http_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"route", "code"},
	)
)

// Status returns the label value for an outcome.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
