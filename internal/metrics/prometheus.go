package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder on a private registry. Metric names
// are created lazily so callers do not pre-register.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	gauges     map[string]prometheus.Gauge
	histograms map[string]prometheus.Histogram
}

// NewPrometheusRecorder creates a recorder with its own registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	return &PrometheusRecorder{
		registry:   prometheus.NewRegistry(),
		counters:   make(map[string]prometheus.Counter),
		gauges:     make(map[string]prometheus.Gauge),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// Handler returns the /metrics HTTP handler for the dev server.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *PrometheusRecorder) IncCounter(name string) { r.AddCounter(name, 1) }

func (r *PrometheusRecorder) AddCounter(name string, value float64) {
	r.mu.Lock()
	c, ok := r.counters[name]
	if !ok {
		c = prometheus.NewCounter(prometheus.CounterOpts{Name: name})
		r.registry.MustRegister(c)
		r.counters[name] = c
	}
	r.mu.Unlock()
	c.Add(value)
}

func (r *PrometheusRecorder) SetGauge(name string, value float64) {
	r.mu.Lock()
	g, ok := r.gauges[name]
	if !ok {
		g = prometheus.NewGauge(prometheus.GaugeOpts{Name: name})
		r.registry.MustRegister(g)
		r.gauges[name] = g
	}
	r.mu.Unlock()
	g.Set(value)
}

func (r *PrometheusRecorder) ObserveDuration(name string, d time.Duration) {
	r.mu.Lock()
	h, ok := r.histograms[name]
	if !ok {
		h = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    name,
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		})
		r.registry.MustRegister(h)
		r.histograms[name] = h
	}
	r.mu.Unlock()
	h.Observe(d.Seconds())
}

var _ Recorder = (*PrometheusRecorder)(nil)
