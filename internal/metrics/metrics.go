// Package metrics exposes Prometheus metrics for the pipeline API.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stageline/internal/domain"
	"stageline/internal/stage"
	"stageline/internal/stats"
)

// Source returns the full entry set the pipeline gauges describe.
type Source func(ctx context.Context) ([]domain.PipelineEntry, error)

// Option configures a Manager.
type Option func(*Manager)

func WithNamespace(ns string) Option {
	return func(m *Manager) {
		if ns != "" {
			m.namespace = ns
		}
	}
}

func WithRegistry(reg *prometheus.Registry) Option {
	return func(m *Manager) {
		if reg != nil {
			m.registry = reg
		}
	}
}

// WithSource enables the pipeline gauges, recomputed from src on every
// scrape.
func WithSource(src Source) Option {
	return func(m *Manager) { m.source = src }
}

func WithScrapeTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.scrapeTimeout = d
		}
	}
}

// Manager owns the registry and the HTTP request metrics.
type Manager struct {
	namespace     string
	registry      *prometheus.Registry
	source        Source
	scrapeTimeout time.Duration

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	moves        *prometheus.CounterVec
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:     "stageline",
		registry:      prometheus.NewRegistry(),
		scrapeTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	auto := promauto.With(m.registry)
	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "code"})
	m.httpDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})
	m.moves = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "stage_moves_total",
		Help:      "Committed stage moves by target stage.",
	}, []string{"to_stage"})
	if m.source != nil {
		m.registry.MustRegister(newPipelineCollector(m.namespace, m.source, m.scrapeTimeout))
	}
	return m
}

func (m *Manager) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Manager) ObserveRequest(route, method string, code int, d time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

func (m *Manager) RecordMove(to stage.Stage) {
	m.moves.WithLabelValues(string(to)).Inc()
}

type pipelineCollector struct {
	src     Source
	timeout time.Duration

	entries    *prometheus.Desc
	value      *prometheus.Desc
	interviews *prometheus.Desc
	placed     *prometheus.Desc
}

func newPipelineCollector(ns string, src Source, timeout time.Duration) *pipelineCollector {
	return &pipelineCollector{
		src:        src,
		timeout:    timeout,
		entries:    prometheus.NewDesc(prometheus.BuildFQName(ns, "pipeline", "entries"), "Pipeline entries by stage.", []string{"stage", "theme"}, nil),
		value:      prometheus.NewDesc(prometheus.BuildFQName(ns, "pipeline", "value_dollars"), "Sum of placement fees.", nil, nil),
		interviews: prometheus.NewDesc(prometheus.BuildFQName(ns, "pipeline", "interviews"), "Entries in screening or interview stages.", nil, nil),
		placed:     prometheus.NewDesc(prometheus.BuildFQName(ns, "pipeline", "placed"), "Entries in the Placed stage.", nil, nil),
	}
}

func (c *pipelineCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
	ch <- c.value
	ch <- c.interviews
	ch <- c.placed
}

func (c *pipelineCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	entries, err := c.src(ctx)
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.entries, err)
		return
	}
	counts := stats.CountByStage(entries)
	for _, s := range stage.Ordered() {
		ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(counts[s]), string(s), string(s.Theme()))
	}
	ch <- prometheus.MustNewConstMetric(c.value, prometheus.GaugeValue, stats.TotalValue(entries))
	ch <- prometheus.MustNewConstMetric(c.interviews, prometheus.GaugeValue, float64(stats.InterviewCount(entries)))
	ch <- prometheus.MustNewConstMetric(c.placed, prometheus.GaugeValue, float64(stats.PlacedCount(entries)))
}
