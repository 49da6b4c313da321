package sources

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/temcen/vocabimg/internal/config"
)

// RetryPolicy bounds how a provider call is repeated.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	IsRetryable     func(error) bool
	Notify          func(err error, wait time.Duration)
}

// DefaultRetryPolicy makes 3 attempts with exponential backoff capped at 5s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		IsRetryable:     IsRetryable,
	}
}

// RetryPolicyFromConfig maps the sources.retry config section.
func RetryPolicyFromConfig(cfg config.RetryConfig) RetryPolicy {
	p := DefaultRetryPolicy()
	if cfg.MaxAttempts > 0 {
		p.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialInterval > 0 {
		p.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		p.MaxInterval = cfg.MaxInterval
	}
	return p
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = d.InitialInterval
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = d.MaxInterval
	}
	if p.IsRetryable == nil {
		p.IsRetryable = d.IsRetryable
	}
	return p
}

// Retry runs op until it succeeds, returns a non-retryable error, or the
// policy runs out of attempts. The last error is returned unwrapped.
func Retry(ctx context.Context, policy RetryPolicy, op func() error) error {
	policy = policy.withDefaults()

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = policy.InitialInterval
	expo.MaxInterval = policy.MaxInterval
	expo.MaxElapsedTime = 0

	wait := &retryAfterBackOff{BackOff: expo}
	b := backoff.WithContext(backoff.WithMaxRetries(wait, uint64(policy.MaxAttempts-1)), ctx)

	attempt := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !policy.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		// A provider asking us to wait longer than the backoff ceiling is
		// treated as exhausted for this call.
		var se *SourceError
		if errors.As(err, &se) {
			if se.RetryAfter > policy.MaxInterval {
				return backoff.Permanent(err)
			}
			wait.floor = se.RetryAfter
		}
		return err
	}

	return backoff.RetryNotify(attempt, b, policy.Notify)
}

// retryAfterBackOff never waits less than the provider's last Retry-After.
type retryAfterBackOff struct {
	backoff.BackOff
	floor time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next != backoff.Stop && b.floor > next {
		next = b.floor
	}
	b.floor = 0
	return next
}
