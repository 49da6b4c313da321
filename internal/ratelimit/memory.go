package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MemoryLimiter keeps one token bucket per source in process memory.
//
// The bucket refills at quota/window. With EvenDistribution the burst is
// limited to the share of the quota that falls into one DistributionSlice,
// so a busy minute cannot drain the whole hour.
type MemoryLimiter struct {
	opts    Options
	mu      sync.RWMutex
	buckets map[string]*rate.Limiter
}

// NewMemoryLimiter creates an in-process limiter.
func NewMemoryLimiter(opts Options) *MemoryLimiter {
	return &MemoryLimiter{
		opts:    opts.withDefaults(),
		buckets: make(map[string]*rate.Limiter),
	}
}

func (l *MemoryLimiter) Register(source string, quota int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if quota <= 0 {
		delete(l.buckets, source)
		return
	}
	every := rate.Limit(float64(quota) / l.opts.Window.Seconds())
	l.buckets[source] = rate.NewLimiter(every, l.burst(quota))
}

func (l *MemoryLimiter) burst(quota int) int {
	if !l.opts.EvenDistribution {
		return quota
	}
	return sliceShare(quota, l.opts)
}

func (l *MemoryLimiter) bucket(source string) *rate.Limiter {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.buckets[source]
}

func (l *MemoryLimiter) Consume(ctx context.Context, source string) error {
	b := l.bucket(source)
	if b == nil {
		return nil
	}

	if !l.opts.Block {
		if b.Allow() {
			return nil
		}
		return &QuotaError{Source: source}
	}

	r := b.Reserve()
	if !r.OK() {
		return &QuotaError{Source: source}
	}
	delay := r.Delay()
	if delay == 0 {
		return nil
	}
	if delay > l.opts.MaxWait {
		r.Cancel()
		return &QuotaError{Source: source, Wait: delay}
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (l *MemoryLimiter) Remaining(_ context.Context, source string) int {
	b := l.bucket(source)
	if b == nil {
		return -1
	}
	tokens := b.Tokens()
	if tokens < 0 {
		return 0
	}
	return int(tokens)
}
