package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the service's Prometheus metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	pipelineRuns        *prometheus.CounterVec
	stageDuration       *prometheus.HistogramVec
	assetsUploaded      prometheus.Counter
	publishResults      *prometheus.CounterVec
	serviceInfo         *prometheus.GaugeVec
}

func NewCollector(serviceName, version string) *Collector {
	ns := strings.ReplaceAll(strings.TrimSpace(serviceName), "-", "_")
	if ns == "" {
		ns = "orchestrator"
	}
	c := &Collector{registry: prometheus.NewRegistry()}

	c.httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: ns + "_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})
	c.httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    ns + "_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
	c.pipelineRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: ns + "_pipeline_runs_total",
		Help: "Orchestration runs by final post status",
	}, []string{"status"})
	c.stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    ns + "_stage_duration_seconds",
		Help:    "Duration of each pipeline stage",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"stage"})
	c.assetsUploaded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: ns + "_assets_uploaded_total",
		Help: "Rendered images uploaded to object storage",
	})
	c.publishResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: ns + "_publish_results_total",
		Help: "Per-platform publish outcomes",
	}, []string{"platform", "outcome"})
	c.serviceInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: ns + "_service_info",
		Help: "Service information",
	}, []string{"version"})

	c.registry.MustRegister(
		c.httpRequestsTotal,
		c.httpRequestDuration,
		c.pipelineRuns,
		c.stageDuration,
		c.assetsUploaded,
		c.publishResults,
		c.serviceInfo,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.serviceInfo.WithLabelValues(version).Set(1)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	c.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (c *Collector) PipelineRun(status string) {
	if c == nil {
		return
	}
	c.pipelineRuns.WithLabelValues(status).Inc()
}

func (c *Collector) ObserveStage(stage string, d time.Duration) {
	if c == nil {
		return
	}
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (c *Collector) AssetsUploaded(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.assetsUploaded.Add(float64(n))
}

// PublishResult counts one platform outcome: success, failure or skipped.
func (c *Collector) PublishResult(platform, outcome string) {
	if c == nil {
		return
	}
	c.publishResults.WithLabelValues(platform, outcome).Inc()
}
