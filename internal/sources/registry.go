package sources

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/temcen/vocabimg/internal/config"
	"github.com/temcen/vocabimg/internal/metrics"
	"github.com/temcen/vocabimg/internal/ratelimit"
	"github.com/temcen/vocabimg/pkg/models"
)

// ErrSourceUnavailable is returned while a source's circuit breaker is open.
var ErrSourceUnavailable = errors.New("source temporarily unavailable")

// Registration describes one client handed to the registry.
type Registration struct {
	Client      SourceClient
	Priority    int
	HourlyQuota int
}

// SourceState is the operational view of a registered source.
type SourceState struct {
	Name        string `json:"name"`
	Priority    int    `json:"priority"`
	HourlyQuota int    `json:"hourly_quota"`
	Remaining   int    `json:"remaining"`
	Breaker     string `json:"breaker"`
}

// GuardedClient charges the rate limiter and runs searches through a circuit
// breaker before delegating to the provider client.
type GuardedClient struct {
	client   SourceClient
	limiter  ratelimit.Limiter
	breaker  *gobreaker.CircuitBreaker
	metrics  *metrics.Metrics
	priority int
	quota    int
}

func (g *GuardedClient) Name() string {
	return g.client.Name()
}

func (g *GuardedClient) Search(ctx context.Context, query string, opts SearchOptions) (*SearchResult, error) {
	if err := g.limiter.Consume(ctx, g.Name()); err != nil {
		if errors.Is(err, ratelimit.ErrQuotaExhausted) {
			g.metrics.QuotaRejected(g.Name())
		}
		return nil, err
	}

	start := time.Now()
	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.client.Search(ctx, query, opts)
	})
	if err != nil {
		g.metrics.SourceRequest(g.Name(), "error", time.Since(start))
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%s: %w: %v", g.Name(), ErrSourceUnavailable, err)
		}
		return nil, err
	}
	g.metrics.SourceRequest(g.Name(), "success", time.Since(start))
	return out.(*SearchResult), nil
}

// EnhancedSearch charges one request per query variant.
func (g *GuardedClient) EnhancedSearch(ctx context.Context, itemName, category string, opts SearchOptions) (*RankedResult, error) {
	return EnhancedSearch(ctx, g.Name(), g.Search, itemName, category, opts)
}

// Download goes to the provider CDN and is not charged against the API quota.
func (g *GuardedClient) Download(ctx context.Context, candidate *models.ImageCandidate) (*Download, error) {
	return g.client.Download(ctx, candidate)
}

// Registry holds the enabled sources in priority order. It is built once at
// startup and shared by the aggregator and the orchestrator.
type Registry struct {
	clients []*GuardedClient
	byName  map[string]*GuardedClient
	limiter ratelimit.Limiter
}

// NewRegistry wraps each registration with the limiter and a breaker.
func NewRegistry(limiter ratelimit.Limiter, breaker config.BreakerConfig, m *metrics.Metrics, logger *logrus.Logger, regs ...Registration) *Registry {
	r := &Registry{
		byName:  make(map[string]*GuardedClient),
		limiter: limiter,
	}

	failures := breaker.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}
	openTimeout := breaker.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = 2 * time.Minute
	}

	for _, reg := range regs {
		name := reg.Client.Name()
		limiter.Register(name, reg.HourlyQuota)

		g := &GuardedClient{
			client:   reg.Client,
			limiter:  limiter,
			metrics:  m,
			priority: reg.Priority,
			quota:    reg.HourlyQuota,
		}
		g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     openTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			// Client errors such as a bad key or query say nothing about provider health.
			IsSuccessful: func(err error) bool {
				return err == nil || !IsRetryable(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				m.BreakerState(name, int(to))
				logger.WithFields(logrus.Fields{
					"source": name,
					"from":   from.String(),
					"to":     to.String(),
				}).Warn("Image source circuit breaker changed state")
			},
		})

		r.clients = append(r.clients, g)
		r.byName[name] = g
	}

	sort.SliceStable(r.clients, func(i, j int) bool {
		return r.clients[i].priority < r.clients[j].priority
	})
	return r
}

// NewRegistryFromConfig builds the provider clients that are enabled and have credentials.
func NewRegistryFromConfig(cfg config.SourcesConfig, limiter ratelimit.Limiter, m *metrics.Metrics, logger *logrus.Logger) *Registry {
	retry := RetryPolicyFromConfig(cfg.Retry)

	var regs []Registration
	add := func(name string, sc config.SourceConfig, build func() SourceClient) {
		if !sc.Enabled {
			return
		}
		if sc.APIKey == "" {
			logger.WithField("source", name).Warn("Image source enabled without API key, skipping")
			return
		}
		regs = append(regs, Registration{Client: build(), Priority: sc.Priority, HourlyQuota: sc.HourlyQuota})
	}

	add(models.SourceUnsplash, cfg.Unsplash, func() SourceClient { return NewUnsplashClient(cfg.Unsplash, retry, logger) })
	add(models.SourcePexels, cfg.Pexels, func() SourceClient { return NewPexelsClient(cfg.Pexels, retry, logger) })
	add(models.SourcePixabay, cfg.Pixabay, func() SourceClient { return NewPixabayClient(cfg.Pixabay, retry, logger) })

	return NewRegistry(limiter, cfg.Breaker, m, logger, regs...)
}

// Clients returns the guarded clients in priority order.
func (r *Registry) Clients() []SourceClient {
	out := make([]SourceClient, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

func (r *Registry) Get(name string) (SourceClient, bool) {
	c, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return c, true
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.clients))
	for _, c := range r.clients {
		names = append(names, c.Name())
	}
	return names
}

func (r *Registry) States(ctx context.Context) []SourceState {
	states := make([]SourceState, 0, len(r.clients))
	for _, c := range r.clients {
		states = append(states, SourceState{
			Name:        c.Name(),
			Priority:    c.priority,
			HourlyQuota: c.quota,
			Remaining:   r.limiter.Remaining(ctx, c.Name()),
			Breaker:     c.breaker.State().String(),
		})
	}
	return states
}
