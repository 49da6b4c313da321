package services

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/temcen/vocabimg/internal/metrics"
)

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) error

type HealthService struct {
	logger      *logrus.Logger
	metrics     *metrics.Metrics
	critical    map[string]CheckFunc
	nonCritical map[string]CheckFunc
	timeout     time.Duration
}

type HealthStatus struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Services    map[string]string `json:"services"`
	Critical    []string          `json:"critical_failures,omitempty"`
	NonCritical []string          `json:"non_critical_failures,omitempty"`
	Latency     time.Duration     `json:"latency,omitempty"`
}

func NewHealthService(m *metrics.Metrics, logger *logrus.Logger) *HealthService {
	return &HealthService{
		logger:      logger,
		metrics:     m,
		critical:    make(map[string]CheckFunc),
		nonCritical: make(map[string]CheckFunc),
		timeout:     5 * time.Second,
	}
}

// Register adds a dependency check. A failed critical check makes the
// service unhealthy; a failed non-critical one only degrades it.
func (s *HealthService) Register(name string, critical bool, check CheckFunc) {
	if critical {
		s.critical[name] = check
		return
	}
	s.nonCritical[name] = check
}

func (s *HealthService) CheckHealth(ctx context.Context) *HealthStatus {
	start := time.Now()
	status := &HealthStatus{
		Timestamp: start.UTC(),
		Services:  make(map[string]string),
	}

	status.Critical = s.run(ctx, s.critical, status, logrus.ErrorLevel)
	status.NonCritical = s.run(ctx, s.nonCritical, status, logrus.WarnLevel)

	switch {
	case len(status.Critical) > 0:
		status.Status = "unhealthy"
	case len(status.NonCritical) > 0:
		status.Status = "degraded"
	default:
		status.Status = "healthy"
	}
	status.Latency = time.Since(start)
	return status
}

func (s *HealthService) run(ctx context.Context, checks map[string]CheckFunc, status *HealthStatus, level logrus.Level) []string {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	var failed []string
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err := checks[name](checkCtx)
		cancel()

		if err != nil {
			status.Services[name] = "unhealthy"
			failed = append(failed, name)
			s.logger.WithError(err).WithField("service", name).Log(level, "Dependency check failed")
			s.metrics.HealthCheck(name, false)
			continue
		}
		status.Services[name] = "healthy"
		s.metrics.HealthCheck(name, true)
	}
	return failed
}
