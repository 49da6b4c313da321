package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if matchLabels(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(metric *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, pair := range metric.GetLabel() {
		if v, ok := labels[pair.GetName()]; ok && v == pair.GetValue() {
			matched++
		}
	}
	return matched == len(labels)
}

func TestMetrics_RecordsIntoRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SourceRequest("unsplash", "success", 120*time.Millisecond)
	m.SourceRequest("unsplash", "error", time.Second)
	m.QuotaRejected("pexels")
	m.Decision("approved")
	m.Decision("approved")

	assert.Equal(t, 1.0, counterValue(t, reg, "image_source_requests_total", map[string]string{"source": "unsplash", "outcome": "success"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "image_source_quota_rejections_total", map[string]string{"source": "pexels"}))
	assert.Equal(t, 2.0, counterValue(t, reg, "image_decisions_total", map[string]string{"status": "approved"}))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SourceRequest("unsplash", "success", time.Millisecond)
		m.QuotaRejected("unsplash")
		m.BreakerState("unsplash", 2)
		m.Aggregation("standard", "success")
		m.ImageProcessed("ok")
		m.QualityScored(7.5)
		m.Decision("rejected")
		m.ItemFinished("completed")
		m.HTTPRequest("GET", "/health", "200", time.Millisecond)
		m.HealthCheck("postgresql", true)
	})
}

func TestMetrics_SeparateRegistriesDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}

func TestMetrics_HealthCheckGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.HealthCheck("postgresql", true)
	m.HealthCheck("redis", false)

	families, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, family := range families {
		if family.GetName() != "health_check_status" {
			continue
		}
		for _, metric := range family.GetMetric() {
			values[metric.GetLabel()[0].GetValue()] = metric.GetGauge().GetValue()
		}
	}
	assert.Equal(t, map[string]float64{"postgresql": 1, "redis": 0}, values)
}
