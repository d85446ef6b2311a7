package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "attribution"

// PrometheusRecorder exports metrics through a dedicated registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	linksGenerated *prometheus.CounterVec
	clicks         *prometheus.CounterVec
	conversions    *prometheus.CounterVec
	revenue        *prometheus.CounterVec
	landingViews   *prometheus.CounterVec
	events         *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// NewPrometheus creates a recorder with its own registry, including Go
// runtime and process collectors.
func NewPrometheus() *PrometheusRecorder {
	reg := prometheus.NewRegistry()

	p := &PrometheusRecorder{
		registry: reg,
		linksGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_generated_total",
			Help:      "Tracking links generated, by link type.",
		}, []string{"link_type"}),
		clicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_total",
			Help:      "Tracked clicks, by result.",
		}, []string{"result"}),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "Recorded conversions, by ingestion channel.",
		}, []string{"channel"}),
		revenue: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revenue_minor_units_total",
			Help:      "Attributed revenue in minor currency units.",
		}, []string{"currency"}),
		landingViews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "landing_views_total",
			Help:      "Public landing page renders, by template.",
		}, []string{"template"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Attribution events sent to the event stream.",
		}, []string{"event_type", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.linksGenerated,
		p.clicks,
		p.conversions,
		p.revenue,
		p.landingViews,
		p.events,
		p.httpDuration,
	)
	return p
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Registry exposes the underlying registry.
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}

func (p *PrometheusRecorder) IncLinkGenerated(linkType string) {
	p.linksGenerated.WithLabelValues(linkType).Inc()
}

func (p *PrometheusRecorder) IncClickTracked(result string) {
	p.clicks.WithLabelValues(result).Inc()
}

func (p *PrometheusRecorder) IncConversionRecorded(channel string) {
	p.conversions.WithLabelValues(channel).Inc()
}

func (p *PrometheusRecorder) AddRevenue(currency string, minorUnits int64) {
	if minorUnits <= 0 {
		return
	}
	p.revenue.WithLabelValues(currency).Add(float64(minorUnits))
}

func (p *PrometheusRecorder) IncLandingView(template string) {
	p.landingViews.WithLabelValues(template).Inc()
}

func (p *PrometheusRecorder) IncEventPublished(eventType, status string) {
	p.events.WithLabelValues(eventType, status).Inc()
}

func (p *PrometheusRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	p.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}
