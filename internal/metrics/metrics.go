// Package metrics exposes the dev server's Prometheus instrumentation.
package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the pipeline and server metrics, registered on a private
// registry so tests can create as many as they want.
type Recorder struct {
	registry *prom.Registry

	builds            prom.Counter
	buildDuration     prom.Histogram
	documents         prom.Gauge
	livereloadClients prom.Gauge
	requests          *prom.CounterVec
}

// NewRecorder constructs and registers the metric set.
func NewRecorder() *Recorder {
	r := &Recorder{registry: prom.NewRegistry()}
	r.builds = prom.NewCounter(prom.CounterOpts{
		Namespace: "lith",
		Name:      "builds_total",
		Help:      "Completed build batches",
	})
	r.buildDuration = prom.NewHistogram(prom.HistogramOpts{
		Namespace: "lith",
		Name:      "build_duration_seconds",
		Help:      "Duration of one build batch",
		Buckets:   prom.DefBuckets,
	})
	r.documents = prom.NewGauge(prom.GaugeOpts{
		Namespace: "lith",
		Name:      "documents_total",
		Help:      "Documents in the current snapshot",
	})
	r.livereloadClients = prom.NewGauge(prom.GaugeOpts{
		Namespace: "lith",
		Name:      "livereload_clients",
		Help:      "Connected live-reload WebSocket clients",
	})
	r.requests = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "lith",
		Name:      "requests_total",
		Help:      "HTTP requests by status code",
	}, []string{"code"})
	r.registry.MustRegister(r.builds, r.buildDuration, r.documents, r.livereloadClients, r.requests)
	return r
}

// Handler serves the /metrics endpoint.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) ObserveBuild(d time.Duration, documents int) {
	if r == nil {
		return
	}
	r.builds.Inc()
	r.buildDuration.Observe(d.Seconds())
	r.documents.Set(float64(documents))
}

func (r *Recorder) SetLiveReloadClients(n int) {
	if r == nil {
		return
	}
	r.livereloadClients.Set(float64(n))
}

func (r *Recorder) IncRequest(code string) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(code).Inc()
}
