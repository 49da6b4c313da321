package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 6.0, cfg.Collection.MinQualityThreshold)
	assert.Equal(t, 8.5, cfg.Collection.AutoApprovalThreshold)
	assert.Equal(t, 3, cfg.Collection.TargetImagesPerItem)
	assert.Equal(t, 3, cfg.Collection.MaxSearchAttempts)
	assert.Equal(t, 24.0, cfg.Collection.RetryIntervalHours)
	assert.Equal(t, 20*time.Second, cfg.Collection.SearchTimeout)

	assert.Equal(t, 50, cfg.Sources.Unsplash.HourlyQuota)
	assert.Equal(t, 200, cfg.Sources.Pexels.HourlyQuota)
	assert.Equal(t, 5000, cfg.Sources.Pixabay.HourlyQuota)
	assert.Equal(t, "memory", cfg.RateLimit.Backend)
	assert.Equal(t, time.Hour, cfg.RateLimit.Window)

	assert.Equal(t, 400, cfg.Quality.MinWidth)
	assert.Equal(t, int64(10*1024*1024), cfg.Imaging.MaxBytes)
	assert.Equal(t, int64(40_000_000), cfg.Imaging.MaxPixels)
	assert.Equal(t, "filesystem", cfg.Storage.Backend)
	assert.True(t, cfg.Storage.Migrate)
	assert.Equal(t, "image-collection-events", cfg.Kafka.Topic)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("COLLECTION_TARGET_IMAGES_PER_ITEM", "5")
	t.Setenv("SOURCES_PEXELS_API_KEY", "pexels-key")
	t.Setenv("RATE_LIMIT_BACKEND", "redis")
	t.Setenv("SOURCES_RETRY_MAX_INTERVAL", "2s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Collection.TargetImagesPerItem)
	assert.Equal(t, "pexels-key", cfg.Sources.Pexels.APIKey)
	assert.Equal(t, "redis", cfg.RateLimit.Backend)
	assert.Equal(t, 2*time.Second, cfg.Sources.Retry.MaxInterval)
}

func TestDefaultVariants(t *testing.T) {
	variants := DefaultVariants()
	require.Len(t, variants, 4)
	assert.Equal(t, "thumbnail", variants[0].Name)
	assert.Equal(t, 1600, variants[3].MaxSide)
}
