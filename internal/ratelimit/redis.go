package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisLimiter implements a sliding window quota shared by every process
// talking to the same Redis. Redis failures allow the request.
type RedisLimiter struct {
	redisClient *redis.Client
	opts        Options
	logger      *logrus.Logger

	mu     sync.RWMutex
	quotas map[string]int
}

// NewRedisLimiter creates a new Redis backed limiter
func NewRedisLimiter(redisClient *redis.Client, opts Options, logger *logrus.Logger) *RedisLimiter {
	return &RedisLimiter{
		redisClient: redisClient,
		opts:        opts.withDefaults(),
		logger:      logger,
		quotas:      make(map[string]int),
	}
}

func (rl *RedisLimiter) Register(source string, quota int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if quota <= 0 {
		delete(rl.quotas, source)
		return
	}
	rl.quotas[source] = quota
}

func (rl *RedisLimiter) quota(source string) (int, bool) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	q, ok := rl.quotas[source]
	return q, ok
}

func quotaKey(source string) string {
	return fmt.Sprintf("source_quota:%s", source)
}

// Consume admits the request when the window, and with EvenDistribution the
// current slice, has room. With Block it polls until the next slot opens,
// giving up once MaxWait would be exceeded.
func (rl *RedisLimiter) Consume(ctx context.Context, source string) error {
	limit, ok := rl.quota(source)
	if !ok {
		return nil
	}

	deadline := time.Now().Add(rl.opts.MaxWait)
	for {
		wait, err := rl.reserve(ctx, source, limit)
		if err != nil {
			rl.logger.WithError(err).WithField("source", source).Warn("Quota check failed, allowing request")
			return nil
		}
		if wait == 0 {
			return nil
		}
		if !rl.opts.Block || time.Now().Add(wait).After(deadline) {
			return &QuotaError{Source: source, Wait: wait}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// usage is the state of one source's window just before a request.
type usage struct {
	inWindow       int64
	inSlice        int64
	oldestInWindow time.Time
	oldestInSlice  time.Time
}

// reserve records a request and returns zero when it was admitted.
// Otherwise the slot is released and the time until the next one is returned.
func (rl *RedisLimiter) reserve(ctx context.Context, source string, limit int) (time.Duration, error) {
	key := quotaKey(source)
	now := time.Now()
	windowStart := strconv.FormatInt(now.Add(-rl.opts.Window).UnixMilli(), 10)
	sliceStart := "(" + strconv.FormatInt(now.Add(-rl.opts.DistributionSlice).UnixMilli(), 10)
	member := fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString())

	pipe := rl.redisClient.Pipeline()

	// Remove expired entries
	pipe.ZRemRangeByScore(ctx, key, "0", windowStart)

	windowCmd := pipe.ZCard(ctx, key)
	sliceCmd := pipe.ZCount(ctx, key, sliceStart, "+inf")
	oldestCmd := pipe.ZRangeWithScores(ctx, key, 0, 0)
	oldestSliceCmd := pipe.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{Min: sliceStart, Max: "+inf", Count: 1})

	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: member,
	})

	pipe.Expire(ctx, key, rl.opts.Window)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}

	u := usage{inWindow: windowCmd.Val(), inSlice: sliceCmd.Val()}
	if z := oldestCmd.Val(); len(z) > 0 {
		u.oldestInWindow = time.UnixMilli(int64(z[0].Score))
	}
	if z := oldestSliceCmd.Val(); len(z) > 0 {
		u.oldestInSlice = time.UnixMilli(int64(z[0].Score))
	}

	wait := rl.nextSlot(u, limit, now)
	if wait == 0 {
		return 0, nil
	}

	// The denied request must not occupy a slot in the window.
	if err := rl.redisClient.ZRem(ctx, key, member).Err(); err != nil {
		rl.logger.WithError(err).WithField("source", source).Warn("Failed to release denied quota slot")
	}
	return wait, nil
}

// nextSlot returns how long until a request fits, zero when it fits now.
func (rl *RedisLimiter) nextSlot(u usage, limit int, now time.Time) time.Duration {
	var wait time.Duration
	if u.inWindow >= int64(limit) {
		wait = atLeastOneTick(u.oldestInWindow.Add(rl.opts.Window).Sub(now))
	}
	if rl.opts.EvenDistribution && u.inSlice >= int64(sliceShare(limit, rl.opts)) {
		if w := atLeastOneTick(u.oldestInSlice.Add(rl.opts.DistributionSlice).Sub(now)); w > wait {
			wait = w
		}
	}
	return wait
}

func atLeastOneTick(d time.Duration) time.Duration {
	if d < time.Millisecond {
		return time.Millisecond
	}
	return d
}

func (rl *RedisLimiter) Remaining(ctx context.Context, source string) int {
	limit, ok := rl.quota(source)
	if !ok {
		return -1
	}
	now := time.Now()
	windowStart := now.Add(-rl.opts.Window).UnixMilli()

	count, err := rl.redisClient.ZCount(ctx, quotaKey(source),
		strconv.FormatInt(windowStart, 10),
		strconv.FormatInt(now.UnixMilli(), 10)).Result()
	if err != nil {
		return limit
	}
	if left := limit - int(count); left > 0 {
		return left
	}
	return 0
}
