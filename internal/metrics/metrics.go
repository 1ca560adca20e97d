// Package metrics provides Prometheus metrics for the relay.
package metrics

import (
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"event-relay/internal/config"
)

// Outbound call kinds used as the "kind" label.
const (
	KindForward  = "forward"
	KindCallback = "callback"
)

// Callback results used as the "result" label.
const (
	CallbackPosted  = "posted"
	CallbackFailed  = "failed"
	CallbackSkipped = "skipped"
)

// Default histogram buckets for API latency.
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// Metrics holds all Prometheus metric collectors for the relay.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	UpstreamDuration  *prometheus.HistogramVec
	UpstreamResponses *prometheus.CounterVec
	UpstreamErrors    *prometheus.CounterVec

	CallbackResults *prometheus.CounterVec
	RelaysInFlight  prometheus.Gauge
	RelaysRejected  prometheus.Counter

	scrapePath string
	paths      []string
}

// DefaultScrapePath is the metrics endpoint used when none is configured.
const DefaultScrapePath = "/metrics"

// relayRoutes lists the fixed route label values (bounded cardinality).
var relayRoutes = []string{"/forwardEvent", "/healthz", "/relay/status"}

// NewFromConfig creates Metrics whose path labels include the configured
// scrape path.
func NewFromConfig(cfg *config.Config) *Metrics {
	return newWithScrapePath(cfg.Metrics.Path)
}

// New creates a Metrics instance with a custom registry and all collectors
// registered, labelling DefaultScrapePath as the scrape endpoint.
func New() *Metrics {
	return newWithScrapePath(DefaultScrapePath)
}

func newWithScrapePath(scrapePath string) *Metrics {
	if scrapePath == "" {
		scrapePath = DefaultScrapePath
	}

	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry:   reg,
		scrapePath: scrapePath,
		paths:      append(slices.Clone(relayRoutes), scrapePath),

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "event_relay_http_requests_total",
			Help: "Total inbound HTTP requests.",
		}, []string{"method", "status_code", "path"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "event_relay_http_request_duration_seconds",
			Help:    "Inbound HTTP request latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method", "status_code", "path"}),

		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "event_relay_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed.",
		}),

		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "event_relay_upstream_request_duration_seconds",
			Help:    "Outbound call latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"kind", "method"}),

		UpstreamResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "event_relay_upstream_responses_total",
			Help: "Total outbound responses by kind, method and status code.",
		}, []string{"kind", "method", "status_code"}),

		UpstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "event_relay_upstream_errors_total",
			Help: "Outbound calls that failed before a response was received.",
		}, []string{"kind"}),

		CallbackResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "event_relay_callbacks_total",
			Help: "Callback deliveries by result (posted, failed, skipped).",
		}, []string{"result"}),

		RelaysInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "event_relay_relays_in_flight",
			Help: "Relays currently holding an outbound slot.",
		}),

		RelaysRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "event_relay_relays_rejected_total",
			Help: "Relays rejected because no outbound slot became free in time.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.UpstreamDuration,
		m.UpstreamResponses,
		m.UpstreamErrors,
		m.CallbackResults,
		m.RelaysInFlight,
		m.RelaysRejected,
	)

	return m
}

// knownMethods lists the allowed HTTP method label values (bounded cardinality).
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// NormalizeMethod returns a bounded HTTP method label for Prometheus metrics.
// Non-standard methods are mapped to "other" to prevent cardinality explosion.
func NormalizeMethod(method string) string {
	if knownMethods[method] {
		return method
	}
	return "other"
}

// ScrapePath returns the path the metrics endpoint is served on.
func (m *Metrics) ScrapePath() string {
	return m.scrapePath
}

// NormalizePath returns a bounded path label for Prometheus metrics: one of
// the relay routes, the scrape path, "/" or "other".
func (m *Metrics) NormalizePath(path string) string {
	if path == "/" {
		return "/"
	}
	for _, p := range m.paths {
		if path == p || strings.HasPrefix(path, p+"/") || strings.HasPrefix(path, p+"?") {
			return p
		}
	}
	return "other"
}
