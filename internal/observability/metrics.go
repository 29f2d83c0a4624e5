package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce          sync.Once
	requestsTotal         *prometheus.CounterVec
	latencySeconds        *prometheus.HistogramVec
	errorsTotal           *prometheus.CounterVec
	chatConnectionsTotal  prometheus.Counter
	chatMessagesSent      *prometheus.CounterVec
	broadcastFanoutTotal  *prometheus.CounterVec
	registrationDecisions *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "velora_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		latencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "velora_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "velora_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		chatConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "velora_chat_connections_total",
			Help: "Total number of websocket chat connections accepted.",
		})

		chatMessagesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "velora_chat_messages_sent_total",
			Help: "Total number of chat messages persisted, by type.",
		}, []string{"type"})

		broadcastFanoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "velora_broadcast_fanout_total",
			Help: "Per-channel outcomes of admin broadcast fan-out.",
		}, []string{"outcome"})

		registrationDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "velora_registration_decisions_total",
			Help: "Registration status transitions applied by admins.",
		}, []string{"status"})

		prometheus.MustRegister(requestsTotal, latencySeconds, errorsTotal,
			chatConnectionsTotal, chatMessagesSent, broadcastFanoutTotal, registrationDecisions)
	})
}

// Requests exposes the counter for API requests.
func Requests() *prometheus.CounterVec {
	RegisterMetrics()
	return requestsTotal
}

// Latency exposes the latency histogram for API requests.
func Latency() *prometheus.HistogramVec {
	RegisterMetrics()
	return latencySeconds
}

// Errors exposes the counter for API error responses.
func Errors() *prometheus.CounterVec {
	RegisterMetrics()
	return errorsTotal
}

// ChatConnectionsTotal exposes the websocket connection counter.
func ChatConnectionsTotal() prometheus.Counter {
	RegisterMetrics()
	return chatConnectionsTotal
}

// ChatMessagesSent exposes the per-type message counter.
func ChatMessagesSent() *prometheus.CounterVec {
	RegisterMetrics()
	return chatMessagesSent
}

// BroadcastFanout exposes the per-channel broadcast outcome counter.
func BroadcastFanout() *prometheus.CounterVec {
	RegisterMetrics()
	return broadcastFanoutTotal
}

// RegistrationDecisions exposes the admin decision counter.
func RegistrationDecisions() *prometheus.CounterVec {
	RegisterMetrics()
	return registrationDecisions
}

// MetricsHandler exposes the Prometheus scrape endpoint via Fiber.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.Handler())
}
