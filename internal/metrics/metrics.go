// Package metrics holds the Prometheus collectors for chat requests, store retries and auth failures.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tenantgate"

var (
	requestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Count of chat completion requests by response status and auth method.",
		},
		[]string{"status", "auth_method"},
	)
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Latency of chat completion requests.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"auth_method"},
	)
	storeRetryCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_retries_total",
			Help:      "Count of retried operations against the document store.",
		},
		[]string{"operation"},
	)
	authFailureCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Count of requests that resolved no identity.",
		},
		[]string{"reason"},
	)
)

var registerMetrics sync.Once

// Register all metrics with the default registry.
func Register() {
	registerMetrics.Do(func() {
		prometheus.MustRegister(requestCounter)
		prometheus.MustRegister(requestDuration)
		prometheus.MustRegister(storeRetryCounter)
		prometheus.MustRegister(authFailureCounter)
	})
}

// RecordRequest records the outcome and latency of one chat request.
func RecordRequest(status int, authMethod string, elapsed time.Duration) {
	requestCounter.WithLabelValues(strconv.Itoa(status), authMethod).Inc()
	requestDuration.WithLabelValues(authMethod).Observe(elapsed.Seconds())
}

// RecordStoreRetry records one retry of a store operation.
func RecordStoreRetry(operation string) {
	storeRetryCounter.WithLabelValues(operation).Inc()
}

// RecordAuthFailure records a request rejected as unauthenticated.
func RecordAuthFailure(reason string) {
	authFailureCounter.WithLabelValues(reason).Inc()
}
