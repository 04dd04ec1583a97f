package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the portal
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// BackendCalls counts calls to the logistics backend by endpoint and outcome
	BackendCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "backend_calls_total", Help: "Backend calls by endpoint, encoding and outcome."},
		[]string{"endpoint", "encoding", "outcome"},
	)
	// BackendDuration records backend call latency in seconds
	BackendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "backend_call_duration_seconds", Help: "Backend call duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"endpoint"},
	)
	// EncodingFallbacks counts requests re-sent with a fallback body encoding
	EncodingFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "backend_encoding_fallbacks_total", Help: "Requests re-sent with a fallback encoding."},
		[]string{"endpoint", "encoding"},
	)

	// Submissions counts wizard submissions by mode and outcome
	Submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "shipment_submissions_total", Help: "Shipment submissions by mode and outcome."},
		[]string{"mode", "outcome"},
	)
	// StepTransitions counts Next attempts by step and whether they advanced
	StepTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "wizard_step_transitions_total", Help: "Wizard Next attempts by step and result."},
		[]string{"step", "result"},
	)
	// Quotes counts charge computations by source
	Quotes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "pricing_quotes_total", Help: "Charge computations by source."},
		[]string{"source"},
	)
	// LookupsSuperseded counts pincode/area lookups dropped for a newer request
	LookupsSuperseded = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "lookup_superseded_total", Help: "Lookups discarded because a newer one started."},
		[]string{"kind"},
	)
	// ActiveSessions tracks live portal sessions
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "portal_active_sessions", Help: "Live portal sessions."},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)
)

// RegisterDefault registers collectors to the portal registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests, HTTPDuration)
		Registry.MustRegister(BackendCalls, BackendDuration, EncodingFallbacks)
		Registry.MustRegister(Submissions, StepTransitions, Quotes, LookupsSuperseded, ActiveSessions)
		Registry.MustRegister(WebhookDeliveries, WebhookLatency)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
