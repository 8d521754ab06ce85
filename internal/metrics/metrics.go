// Package metrics exposes Prometheus metrics for queries and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Version is reported by zoneshare_build_info.
var Version = "dev"

// durationBuckets spans 5ms to ~20s.
var durationBuckets = prometheus.ExponentialBuckets(0.005, 2, 12)

// Provider owns a registry and the application collectors. It satisfies
// analysis.Recorder.
type Provider struct {
	reg *prometheus.Registry

	queries       *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	layers        *prometheus.CounterVec
	layerDuration *prometheus.HistogramVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// New creates a Provider with Go and process collectors registered.
func New() *Provider {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	build := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "zoneshare_build_info",
		Help: "Build info for this binary (value is always 1).",
	}, []string{"version"})
	build.WithLabelValues(Version).Set(1)

	p := &Provider{
		reg: reg,
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zoneshare_queries_total",
			Help: "Parcel queries by outcome.",
		}, []string{"outcome"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "zoneshare_query_duration_seconds",
			Help:    "Duration of parcel queries in seconds.",
			Buckets: durationBuckets,
		}, []string{"outcome"}),
		layers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zoneshare_layer_overlays_total",
			Help: "Reference layer overlays by layer and outcome.",
		}, []string{"layer", "outcome"}),
		layerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "zoneshare_layer_duration_seconds",
			Help:    "Duration of one layer overlay in seconds.",
			Buckets: durationBuckets,
		}, []string{"layer"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zoneshare_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "zoneshare_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: durationBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(build, p.queries, p.queryDuration, p.layers, p.layerDuration, p.httpRequests, p.httpDuration)
	return p
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (p *Provider) Registry() *prometheus.Registry { return p.reg }

// ObserveQuery records one finished query.
func (p *Provider) ObserveQuery(outcome string, d time.Duration) {
	p.queries.WithLabelValues(outcome).Inc()
	p.queryDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveLayer records one layer overlay.
func (p *Provider) ObserveLayer(layer, outcome string, d time.Duration) {
	p.layers.WithLabelValues(layer, outcome).Inc()
	p.layerDuration.WithLabelValues(layer).Observe(d.Seconds())
}

// ObserveHTTP records one HTTP request.
func (p *Provider) ObserveHTTP(method, route string, status int, d time.Duration) {
	p.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
