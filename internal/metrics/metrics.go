package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors of the collection pipeline. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	sourceRequests      *prometheus.CounterVec
	sourceLatency       *prometheus.HistogramVec
	quotaRejections     *prometheus.CounterVec
	breakerState        *prometheus.GaugeVec
	aggregations        *prometheus.CounterVec
	imagesProcessed     *prometheus.CounterVec
	qualityOverall      prometheus.Histogram
	decisions           *prometheus.CounterVec
	itemsFinished       *prometheus.CounterVec
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	healthStatus        *prometheus.GaugeVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		sourceRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "image_source_requests_total",
			Help: "Image source API requests by source and outcome",
		}, []string{"source", "outcome"}),

		sourceLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "image_source_request_duration_seconds",
			Help:    "Image source search latency in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 20.0},
		}, []string{"source"}),

		quotaRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "image_source_quota_rejections_total",
			Help: "Requests refused by the per-source rate limiter",
		}, []string{"source"}),

		breakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "image_source_breaker_state",
			Help: "Circuit breaker state per source (0 closed, 1 half-open, 2 open)",
		}, []string{"source"}),

		aggregations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "image_aggregations_total",
			Help: "Aggregated multi-source searches by mode and outcome",
		}, []string{"mode", "outcome"}),

		imagesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "images_processed_total",
			Help: "Downloaded images by processing outcome",
		}, []string{"outcome"}),

		qualityOverall: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "image_quality_overall_score",
			Help:    "Distribution of overall quality scores",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 8, 8.5, 9, 10},
		}),

		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "image_decisions_total",
			Help: "Candidate decisions by resulting status",
		}, []string{"status"}),

		itemsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "collection_items_total",
			Help: "Orchestration passes by resulting item status",
		}, []string{"status"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status"}),

		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),

		healthStatus: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "health_check_status",
			Help: "Health check status (1 = healthy, 0 = unhealthy)",
		}, []string{"service"}),
	}
}

func (m *Metrics) SourceRequest(source, outcome string, latency time.Duration) {
	if m == nil {
		return
	}
	m.sourceRequests.WithLabelValues(source, outcome).Inc()
	m.sourceLatency.WithLabelValues(source).Observe(latency.Seconds())
}

func (m *Metrics) QuotaRejected(source string) {
	if m == nil {
		return
	}
	m.quotaRejections.WithLabelValues(source).Inc()
}

func (m *Metrics) BreakerState(source string, state int) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(source).Set(float64(state))
}

func (m *Metrics) Aggregation(mode, outcome string) {
	if m == nil {
		return
	}
	m.aggregations.WithLabelValues(mode, outcome).Inc()
}

func (m *Metrics) ImageProcessed(outcome string) {
	if m == nil {
		return
	}
	m.imagesProcessed.WithLabelValues(outcome).Inc()
}

func (m *Metrics) QualityScored(overall float64) {
	if m == nil {
		return
	}
	m.qualityOverall.Observe(overall)
}

func (m *Metrics) Decision(status string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(status).Inc()
}

func (m *Metrics) ItemFinished(status string) {
	if m == nil {
		return
	}
	m.itemsFinished.WithLabelValues(status).Inc()
}

// HTTPRequest records one served API request.
func (m *Metrics) HTTPRequest(method, endpoint, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// HealthCheck records the outcome of one dependency check.
func (m *Metrics) HealthCheck(service string, healthy bool) {
	if m == nil {
		return
	}
	v := 0.0
	if healthy {
		v = 1
	}
	m.healthStatus.WithLabelValues(service).Set(v)
}
