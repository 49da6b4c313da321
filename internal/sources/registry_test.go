package sources

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/temcen/vocabimg/internal/config"
	"github.com/temcen/vocabimg/internal/ratelimit"
	"github.com/temcen/vocabimg/pkg/models"
)

type MockSourceClient struct {
	mock.Mock
	name string
}

func (m *MockSourceClient) Name() string {
	return m.name
}

func (m *MockSourceClient) Search(ctx context.Context, query string, opts SearchOptions) (*SearchResult, error) {
	args := m.Called(ctx, query, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SearchResult), args.Error(1)
}

func (m *MockSourceClient) EnhancedSearch(ctx context.Context, itemName, category string, opts SearchOptions) (*RankedResult, error) {
	args := m.Called(ctx, itemName, category, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*RankedResult), args.Error(1)
}

func (m *MockSourceClient) Download(ctx context.Context, candidate *models.ImageCandidate) (*Download, error) {
	args := m.Called(ctx, candidate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Download), args.Error(1)
}

func TestRegistry_OrdersByPriority(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(ratelimit.Options{})
	registry := NewRegistry(limiter, config.BreakerConfig{}, nil, quietLogger(),
		Registration{Client: &MockSourceClient{name: "pixabay"}, Priority: 3},
		Registration{Client: &MockSourceClient{name: "unsplash"}, Priority: 1},
		Registration{Client: &MockSourceClient{name: "pexels"}, Priority: 2},
	)

	assert.Equal(t, []string{"unsplash", "pexels", "pixabay"}, registry.Names())

	_, ok := registry.Get("pexels")
	assert.True(t, ok)
	_, ok = registry.Get("flickr")
	assert.False(t, ok)
}

func TestGuardedClient_ChargesLimiter(t *testing.T) {
	inner := &MockSourceClient{name: "unsplash"}
	inner.On("Search", mock.Anything, "dog", mock.Anything).Return(&SearchResult{Source: "unsplash"}, nil)

	limiter := ratelimit.NewMemoryLimiter(ratelimit.Options{Window: time.Hour})
	registry := NewRegistry(limiter, config.BreakerConfig{}, nil, quietLogger(),
		Registration{Client: inner, Priority: 1, HourlyQuota: 2},
	)
	client, _ := registry.Get("unsplash")

	ctx := context.Background()
	_, err := client.Search(ctx, "dog", SearchOptions{})
	require.NoError(t, err)
	_, err = client.Search(ctx, "dog", SearchOptions{})
	require.NoError(t, err)
	_, err = client.Search(ctx, "dog", SearchOptions{})
	assert.ErrorIs(t, err, ratelimit.ErrQuotaExhausted)

	inner.AssertNumberOfCalls(t, "Search", 2)

	states := registry.States(ctx)
	require.Len(t, states, 1)
	assert.Equal(t, 0, states[0].Remaining)
	assert.Equal(t, "closed", states[0].Breaker)
}

func TestGuardedClient_BreakerOpensOnRetryableFailures(t *testing.T) {
	inner := &MockSourceClient{name: "pexels"}
	inner.On("Search", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &SourceError{Source: "pexels", Kind: KindAPIError, StatusCode: 503})

	registry := NewRegistry(ratelimit.NewMemoryLimiter(ratelimit.Options{}),
		config.BreakerConfig{ConsecutiveFailures: 2, OpenTimeout: time.Minute}, nil, quietLogger(),
		Registration{Client: inner, Priority: 1},
	)
	client, _ := registry.Get("pexels")

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := client.Search(ctx, "cat", SearchOptions{})
		var se *SourceError
		assert.True(t, errors.As(err, &se))
	}

	_, err := client.Search(ctx, "cat", SearchOptions{})
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	inner.AssertNumberOfCalls(t, "Search", 2)
	assert.Equal(t, "open", registry.States(ctx)[0].Breaker)
}

func TestGuardedClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	inner := &MockSourceClient{name: "pixabay"}
	inner.On("Search", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &SourceError{Source: "pixabay", Kind: KindAPIError, StatusCode: 400})

	registry := NewRegistry(ratelimit.NewMemoryLimiter(ratelimit.Options{}),
		config.BreakerConfig{ConsecutiveFailures: 1}, nil, quietLogger(),
		Registration{Client: inner, Priority: 1},
	)
	client, _ := registry.Get("pixabay")

	for i := 0; i < 3; i++ {
		_, err := client.Search(context.Background(), "cat", SearchOptions{})
		assert.NotErrorIs(t, err, ErrSourceUnavailable)
	}
	inner.AssertNumberOfCalls(t, "Search", 3)
}

func TestGuardedClient_EnhancedSearchChargesEveryVariant(t *testing.T) {
	inner := &MockSourceClient{name: "unsplash"}
	inner.On("Search", mock.Anything, mock.Anything, mock.Anything).Return(&SearchResult{}, nil)

	limiter := ratelimit.NewMemoryLimiter(ratelimit.Options{Window: time.Hour})
	registry := NewRegistry(limiter, config.BreakerConfig{}, nil, quietLogger(),
		Registration{Client: inner, Priority: 1, HourlyQuota: 10},
	)
	client, _ := registry.Get("unsplash")

	_, err := client.EnhancedSearch(context.Background(), "dog", "animals", SearchOptions{})
	require.NoError(t, err)
	inner.AssertNumberOfCalls(t, "Search", 5)
	assert.Equal(t, 5, limiter.Remaining(context.Background(), "unsplash"))
}

func TestNewRegistryFromConfig_SkipsDisabledAndKeyless(t *testing.T) {
	cfg := config.SourcesConfig{
		Unsplash: config.SourceConfig{Enabled: true, APIKey: "u", Priority: 1, HourlyQuota: 50},
		Pexels:   config.SourceConfig{Enabled: true, Priority: 2},
		Pixabay:  config.SourceConfig{Enabled: false, APIKey: "p", Priority: 3},
	}

	registry := NewRegistryFromConfig(cfg, ratelimit.NewMemoryLimiter(ratelimit.Options{}), nil, quietLogger())
	assert.Equal(t, []string{models.SourceUnsplash}, registry.Names())
}
