package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the VOD scheduler.
type Metrics struct {
	registry            *prometheus.Registry
	requestsTotal        prometheus.Counter
	manifestsBuiltTotal  prometheus.Counter
	ingestFailuresTotal  prometheus.Counter
	refreshFailuresTotal prometheus.Counter
	playlistsStored      prometheus.Gauge
	errorsTotal          prometheus.Counter
}

// New creates and registers Prometheus metrics for the scheduler.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vod_requests_total",
		Help: "Total number of HTTP requests received",
	})
	manifestsBuiltTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vod_manifests_built_total",
		Help: "Total number of manifests successfully built and served",
	})
	ingestFailuresTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vod_ingest_failures_total",
		Help: "Total number of rejected playlist ingestion requests",
	})
	refreshFailuresTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vod_refresh_failures_total",
		Help: "Total number of failed background refresh iterations",
	})
	playlistsStored := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vod_playlists_stored",
		Help: "Number of playlists currently in the state store",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vod_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})

	registry.MustRegister(
		requestsTotal,
		manifestsBuiltTotal,
		ingestFailuresTotal,
		refreshFailuresTotal,
		playlistsStored,
		errorsTotal,
	)

	return &Metrics{
		registry:             registry,
		requestsTotal:        requestsTotal,
		manifestsBuiltTotal:  manifestsBuiltTotal,
		ingestFailuresTotal:  ingestFailuresTotal,
		refreshFailuresTotal: refreshFailuresTotal,
		playlistsStored:      playlistsStored,
		errorsTotal:          errorsTotal,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncManifestsBuilt increments the manifests built counter.
func (m *Metrics) IncManifestsBuilt() {
	m.manifestsBuiltTotal.Inc()
}

// IncIngestFailures increments the rejected ingestion counter.
func (m *Metrics) IncIngestFailures() {
	m.ingestFailuresTotal.Inc()
}

// IncRefreshFailures increments the failed background refresh counter.
func (m *Metrics) IncRefreshFailures() {
	m.refreshFailuresTotal.Inc()
}

// SetPlaylistsStored sets the stored playlists gauge.
func (m *Metrics) SetPlaylistsStored(n int) {
	m.playlistsStored.Set(float64(n))
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g.
// stored playlists).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
