package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/vocabimg/internal/collection"
	"github.com/temcen/vocabimg/pkg/models"
)

const defaultProgressTTL = time.Hour

// ProgressCache puts a Redis read tier in front of a collection.Store. Writes
// go to the store first and then refresh the cache. Redis failures are logged
// and never fail the call.
type ProgressCache struct {
	collection.Store
	redis  *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

func NewProgressCache(store collection.Store, client *redis.Client, ttl time.Duration, logger *logrus.Logger) *ProgressCache {
	if ttl <= 0 {
		ttl = defaultProgressTTL
	}
	return &ProgressCache{Store: store, redis: client, ttl: ttl, logger: logger}
}

func progressKey(itemID string) string {
	return "collection_progress:" + itemID
}

func (c *ProgressCache) GetProgress(ctx context.Context, itemID string) (*models.CollectionProgress, error) {
	cached, err := c.redis.Get(ctx, progressKey(itemID)).Bytes()
	switch {
	case err == nil:
		var p models.CollectionProgress
		if jsonErr := json.Unmarshal(cached, &p); jsonErr == nil {
			return &p, nil
		}
		c.logger.WithField("item_id", itemID).Warn("Discarding unreadable cached progress")
	case !errors.Is(err, redis.Nil):
		c.logger.WithError(err).WithField("item_id", itemID).Warn("Progress cache read failed")
	}

	p, err := c.Store.GetProgress(ctx, itemID)
	if err != nil {
		return nil, err
	}
	c.put(ctx, *p)
	return p, nil
}

func (c *ProgressCache) SaveProgress(ctx context.Context, p models.CollectionProgress) error {
	if err := c.Store.SaveProgress(ctx, p); err != nil {
		if delErr := c.redis.Del(ctx, progressKey(p.ItemID)).Err(); delErr != nil {
			c.logger.WithError(delErr).WithField("item_id", p.ItemID).Warn("Progress cache invalidation failed")
		}
		return err
	}
	c.put(ctx, p)
	return nil
}

func (c *ProgressCache) put(ctx context.Context, p models.CollectionProgress) {
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, progressKey(p.ItemID), data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("item_id", p.ItemID).Warn("Progress cache write failed")
	}
}
