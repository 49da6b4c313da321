package aggregator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/temcen/vocabimg/internal/metrics"
	"github.com/temcen/vocabimg/internal/ratelimit"
	"github.com/temcen/vocabimg/internal/sources"
	"github.com/temcen/vocabimg/pkg/models"
)

const (
	ModeStandard = "standard"
	ModeEnhanced = "enhanced"

	defaultTimeout             = 20 * time.Second
	defaultMaxResultsPerSource = 10
	defaultMaxTotalResults     = 30
)

// ClientProvider hands out the source clients in priority order.
type ClientProvider interface {
	Clients() []sources.SourceClient
}

// Options controls one aggregated search.
type Options struct {
	MaxResultsPerSource int
	MaxTotalResults     int
	ExcludeSources      []string
	PrioritySources     []string
	Timeout             time.Duration
	Orientation         string
	CrossSourceRanking  bool
}

// SourceStat reports how one source fared in a search.
type SourceStat struct {
	Count     int           `json:"count"`
	Success   bool          `json:"success"`
	Skipped   bool          `json:"skipped,omitempty"`
	Error     string        `json:"error,omitempty"`
	Latency   time.Duration `json:"latency_ns"`
	Rank      int           `json:"rank"`
	Available int           `json:"available"`
}

// AggregatedResult is always returned; per-source failures are data, not errors.
type AggregatedResult struct {
	Success            bool                    `json:"success"`
	Mode               string                  `json:"mode"`
	Query              string                  `json:"query"`
	Category           string                  `json:"category,omitempty"`
	Images             []models.ImageCandidate `json:"images"`
	TotalImages        int                     `json:"total_images"`
	TotalFound         int                     `json:"total_found"`
	SourceStats        map[string]SourceStat   `json:"source_stats"`
	SearchedSources    []string                `json:"searched_sources"`
	SuccessfulSources  []string                `json:"successful_sources"`
	FailedSources      []string                `json:"failed_sources"`
	SkippedSources     []string                `json:"skipped_sources"`
	NoSourcesAvailable bool                    `json:"no_sources_available,omitempty"`
	Errors             map[string]string       `json:"errors,omitempty"`
	Duration           time.Duration           `json:"duration_ns"`
}

// Aggregator fans a search out to every active source.
type Aggregator struct {
	provider ClientProvider
	defaults Options
	metrics  *metrics.Metrics
	logger   *logrus.Logger
}

func New(provider ClientProvider, defaults Options, m *metrics.Metrics, logger *logrus.Logger) *Aggregator {
	if defaults.Timeout <= 0 {
		defaults.Timeout = defaultTimeout
	}
	if defaults.MaxResultsPerSource <= 0 {
		defaults.MaxResultsPerSource = defaultMaxResultsPerSource
	}
	if defaults.MaxTotalResults <= 0 {
		defaults.MaxTotalResults = defaultMaxTotalResults
	}
	return &Aggregator{
		provider: provider,
		defaults: defaults,
		metrics:  m,
		logger:   logger,
	}
}

// SearchAllSources runs query against every active source concurrently.
func (a *Aggregator) SearchAllSources(ctx context.Context, query, category string, opts Options) *AggregatedResult {
	opts = a.resolve(opts)
	searchOpts := sources.SearchOptions{PerPage: opts.MaxResultsPerSource, Orientation: opts.Orientation}

	return a.run(ctx, ModeStandard, query, category, opts, func(ctx context.Context, c sources.SourceClient) ([]models.ImageCandidate, int, error) {
		res, err := c.Search(ctx, query, searchOpts)
		if err != nil {
			return nil, 0, err
		}
		return res.Images, res.Total, nil
	})
}

// EnhancedSearchAllSources runs every source's query variants and ranks the
// merged set across sources.
func (a *Aggregator) EnhancedSearchAllSources(ctx context.Context, itemName, category string, opts Options) *AggregatedResult {
	opts = a.resolve(opts)
	opts.CrossSourceRanking = true
	searchOpts := sources.SearchOptions{PerPage: opts.MaxResultsPerSource, Orientation: opts.Orientation}

	return a.run(ctx, ModeEnhanced, itemName, category, opts, func(ctx context.Context, c sources.SourceClient) ([]models.ImageCandidate, int, error) {
		res, err := c.EnhancedSearch(ctx, itemName, category, searchOpts)
		if err != nil {
			return nil, 0, err
		}
		for strategy, msg := range res.Errors {
			a.logger.WithFields(logrus.Fields{
				"source":   c.Name(),
				"strategy": strategy,
			}).Debug("Query variant failed: " + msg)
		}
		return res.Images, res.Total, nil
	})
}

func (a *Aggregator) resolve(opts Options) Options {
	if opts.Timeout <= 0 {
		opts.Timeout = a.defaults.Timeout
	}
	if opts.MaxResultsPerSource <= 0 {
		opts.MaxResultsPerSource = a.defaults.MaxResultsPerSource
	}
	if opts.MaxTotalResults <= 0 {
		opts.MaxTotalResults = a.defaults.MaxTotalResults
	}
	return opts
}

type searchFn func(ctx context.Context, c sources.SourceClient) ([]models.ImageCandidate, int, error)

type sourceOutcome struct {
	images    []models.ImageCandidate
	available int
	err       error
	latency   time.Duration
}

func (a *Aggregator) run(ctx context.Context, mode, query, category string, opts Options, search searchFn) *AggregatedResult {
	start := time.Now()
	result := &AggregatedResult{
		Mode:              mode,
		Query:             query,
		Category:          category,
		Images:            []models.ImageCandidate{},
		SourceStats:       make(map[string]SourceStat),
		SearchedSources:   []string{},
		SuccessfulSources: []string{},
		FailedSources:     []string{},
		SkippedSources:    []string{},
		Errors:            make(map[string]string),
	}

	active := ActiveSources(a.provider.Clients(), opts.ExcludeSources, opts.PrioritySources)
	if len(active) == 0 {
		result.NoSourcesAvailable = true
		result.Duration = time.Since(start)
		a.metrics.Aggregation(mode, "no_sources")
		a.logger.WithField("query", query).Warn("No image sources available for search")
		return result
	}

	// Each goroutine owns one slot of outcomes.
	outcomes := make([]sourceOutcome, len(active))
	var g errgroup.Group

	for i, client := range active {
		result.SearchedSources = append(result.SearchedSources, client.Name())

		g.Go(func() error {
			outcomes[i] = a.searchOne(ctx, client, opts, search)
			return nil
		})
	}
	_ = g.Wait()

	var merged []models.ImageCandidate
	for i, client := range active {
		name := client.Name()
		out := outcomes[i]
		stat := SourceStat{Latency: out.latency, Rank: i + 1, Available: out.available}

		switch {
		case out.err == nil:
			images := out.images
			if len(images) > opts.MaxResultsPerSource {
				images = images[:opts.MaxResultsPerSource]
			}
			for _, img := range images {
				img.SourceRank = i + 1
				merged = append(merged, img)
			}
			stat.Success = true
			stat.Count = len(images)
			result.SuccessfulSources = append(result.SuccessfulSources, name)
		case errors.Is(out.err, ratelimit.ErrQuotaExhausted):
			stat.Skipped = true
			stat.Error = out.err.Error()
			result.SkippedSources = append(result.SkippedSources, name)
			result.Errors[name] = out.err.Error()
		default:
			stat.Error = out.err.Error()
			result.FailedSources = append(result.FailedSources, name)
			result.Errors[name] = out.err.Error()
		}
		result.SourceStats[name] = stat
	}

	ranked := Dedupe(merged)
	AnnotateQuality(ranked)
	if opts.CrossSourceRanking {
		RankCrossSource(ranked)
	} else {
		Rank(ranked)
	}

	result.TotalFound = len(ranked)
	if len(ranked) > opts.MaxTotalResults {
		ranked = ranked[:opts.MaxTotalResults]
	}
	result.Images = ranked
	result.TotalImages = len(ranked)
	result.Success = true
	result.Duration = time.Since(start)

	outcome := "success"
	if len(result.SuccessfulSources) == 0 {
		outcome = "empty"
	} else if len(result.FailedSources)+len(result.SkippedSources) > 0 {
		outcome = "partial"
	}
	a.metrics.Aggregation(mode, outcome)

	a.logger.WithFields(logrus.Fields{
		"mode":       mode,
		"query":      query,
		"category":   category,
		"images":     result.TotalImages,
		"succeeded":  len(result.SuccessfulSources),
		"failed":     len(result.FailedSources),
		"skipped":    len(result.SkippedSources),
		"latency_ms": result.Duration.Milliseconds(),
	}).Info("Aggregated image search completed")

	return result
}

// searchOne runs one source under its own timeout. Panics are reported as failures.
func (a *Aggregator) searchOne(ctx context.Context, client sources.SourceClient, opts Options, search searchFn) (out sourceOutcome) {
	start := time.Now()
	sctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	defer func() {
		out.latency = time.Since(start)
		if r := recover(); r != nil {
			out = sourceOutcome{err: fmt.Errorf("%s: search panicked: %v", client.Name(), r), latency: time.Since(start)}
		}
		if out.err != nil {
			a.logger.WithFields(logrus.Fields{
				"source":     client.Name(),
				"latency_ms": out.latency.Milliseconds(),
			}).WithError(out.err).Warn("Image source search failed")
		}
	}()

	images, available, err := search(sctx, client)
	if err != nil && errors.Is(sctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("%s: timed out after %s: %w", client.Name(), opts.Timeout, err)
	}
	return sourceOutcome{images: images, available: available, err: err}
}

// ActiveSources removes excluded sources and moves priority sources to the
// front in the order given. Remaining sources keep their registry order.
func ActiveSources(all []sources.SourceClient, exclude, priority []string) []sources.SourceClient {
	excluded := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		excluded[strings.ToLower(name)] = true
	}

	var kept []sources.SourceClient
	for _, c := range all {
		if !excluded[strings.ToLower(c.Name())] {
			kept = append(kept, c)
		}
	}

	active := make([]sources.SourceClient, 0, len(kept))
	used := make(map[string]bool, len(kept))
	for _, name := range priority {
		for _, c := range kept {
			key := strings.ToLower(c.Name())
			if key == strings.ToLower(name) && !used[key] {
				active = append(active, c)
				used[key] = true
			}
		}
	}
	for _, c := range kept {
		if key := strings.ToLower(c.Name()); !used[key] {
			active = append(active, c)
			used[key] = true
		}
	}
	return active
}
