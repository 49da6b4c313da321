package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/temcen/vocabimg/internal/config"
)

// ErrQuotaExhausted is returned when a source has no budget left for the
// current window. Callers skip the source instead of failing the search.
var ErrQuotaExhausted = errors.New("source quota exhausted")

// Limiter tracks the request budget of every image source.
type Limiter interface {
	// Register sets the hourly quota for a source. Unregistered sources are unlimited.
	Register(source string, quota int)
	// Consume takes one request from the source's budget.
	Consume(ctx context.Context, source string) error
	// Remaining reports the number of requests left, or -1 when the source is unlimited.
	Remaining(ctx context.Context, source string) int
}

// QuotaError annotates ErrQuotaExhausted with the source that ran out.
type QuotaError struct {
	Source string
	Wait   time.Duration
}

func (e *QuotaError) Error() string {
	if e.Wait > 0 {
		return fmt.Sprintf("%s: %v (next slot in %s)", e.Source, ErrQuotaExhausted, e.Wait.Round(time.Millisecond))
	}
	return fmt.Sprintf("%s: %v", e.Source, ErrQuotaExhausted)
}

func (e *QuotaError) Unwrap() error {
	return ErrQuotaExhausted
}

// Options controls how a limiter hands out tokens.
type Options struct {
	Window            time.Duration
	EvenDistribution  bool
	DistributionSlice time.Duration
	Block             bool
	MaxWait           time.Duration
}

// OptionsFromConfig maps the rate_limit config section.
func OptionsFromConfig(cfg config.RateLimitConfig) Options {
	return Options{
		Window:            cfg.Window,
		EvenDistribution:  cfg.EvenDistribution,
		DistributionSlice: cfg.DistributionSlice,
		Block:             cfg.Block,
		MaxWait:           cfg.MaxWait,
	}
}

func (o Options) withDefaults() Options {
	if o.Window <= 0 {
		o.Window = time.Hour
	}
	if o.DistributionSlice <= 0 || o.DistributionSlice > o.Window {
		o.DistributionSlice = 5 * time.Minute
		if o.DistributionSlice > o.Window {
			o.DistributionSlice = o.Window
		}
	}
	if o.MaxWait < 0 {
		o.MaxWait = 0
	}
	return o
}

// sliceShare is the part of quota that falls into one DistributionSlice,
// rounded up and never below one.
func sliceShare(quota int, o Options) int {
	share := float64(quota) * o.DistributionSlice.Seconds() / o.Window.Seconds()
	if n := int(math.Ceil(share)); n > 1 {
		return n
	}
	return 1
}
