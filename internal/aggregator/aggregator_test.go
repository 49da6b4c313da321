package aggregator

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/vocabimg/internal/config"
	"github.com/temcen/vocabimg/internal/ratelimit"
	"github.com/temcen/vocabimg/internal/sources"
	"github.com/temcen/vocabimg/pkg/models"
)

type fakeClient struct {
	name   string
	images []models.ImageCandidate
	err    error
	delay  time.Duration
	panics bool
}

func (f *fakeClient) Name() string { return f.name }

func (f *fakeClient) Search(ctx context.Context, query string, opts sources.SearchOptions) (*sources.SearchResult, error) {
	if f.panics {
		panic("provider exploded")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &sources.SearchResult{Source: f.name, Images: f.images, Total: len(f.images)}, nil
}

func (f *fakeClient) EnhancedSearch(ctx context.Context, itemName, category string, opts sources.SearchOptions) (*sources.RankedResult, error) {
	return sources.EnhancedSearch(ctx, f.name, f.Search, itemName, category, opts)
}

func (f *fakeClient) Download(ctx context.Context, c *models.ImageCandidate) (*sources.Download, error) {
	return nil, errors.New("not implemented")
}

type staticProvider []sources.SourceClient

func (p staticProvider) Clients() []sources.SourceClient { return p }

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func images(source string, ids ...string) []models.ImageCandidate {
	out := make([]models.ImageCandidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.ImageCandidate{
			Source:       source,
			SourceID:     id,
			Width:        1000,
			Height:       1000,
			SearchWeight: 1.0,
		})
	}
	return out
}

func TestSearchAllSources_PartialFailure(t *testing.T) {
	provider := staticProvider{
		&fakeClient{name: "unsplash", err: &sources.SourceError{Source: "unsplash", Kind: sources.KindAPIError, StatusCode: 500}},
		&fakeClient{name: "pexels", delay: time.Second},
		&fakeClient{name: "pixabay", images: images("pixabay", "1", "2", "3")},
	}
	agg := New(provider, Options{}, nil, quietLogger())

	result := agg.SearchAllSources(context.Background(), "dog", "animals", Options{Timeout: 50 * time.Millisecond})

	assert.True(t, result.Success)
	assert.Len(t, result.Images, 3)
	assert.ElementsMatch(t, []string{"unsplash", "pexels"}, result.FailedSources)
	assert.Equal(t, []string{"pixabay"}, result.SuccessfulSources)
	assert.Equal(t, []string{"unsplash", "pexels", "pixabay"}, result.SearchedSources)
	assert.Contains(t, result.Errors["pexels"], "timed out")
	assert.False(t, result.SourceStats["unsplash"].Success)
	assert.Equal(t, 3, result.SourceStats["pixabay"].Count)
}

func TestSearchAllSources_PanickingSourceIsIsolated(t *testing.T) {
	provider := staticProvider{
		&fakeClient{name: "unsplash", panics: true},
		&fakeClient{name: "pexels", images: images("pexels", "a")},
	}
	result := New(provider, Options{}, nil, quietLogger()).SearchAllSources(context.Background(), "cat", "", Options{})

	assert.True(t, result.Success)
	assert.Equal(t, []string{"unsplash"}, result.FailedSources)
	assert.Contains(t, result.Errors["unsplash"], "panicked")
	assert.Len(t, result.Images, 1)
}

func TestSearchAllSources_RateLimitIsolation(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(ratelimit.Options{Window: time.Hour})
	registry := sources.NewRegistry(limiter, config.BreakerConfig{}, nil, quietLogger(),
		sources.Registration{Client: &fakeClient{name: "unsplash", images: images("unsplash", "u1")}, Priority: 1, HourlyQuota: 1},
		sources.Registration{Client: &fakeClient{name: "pexels", images: images("pexels", "p1", "p2")}, Priority: 2, HourlyQuota: 100},
		sources.Registration{Client: &fakeClient{name: "pixabay", images: images("pixabay", "x1", "x2")}, Priority: 3, HourlyQuota: 100},
	)
	require.NoError(t, limiter.Consume(context.Background(), "unsplash"))

	result := New(registry, Options{}, nil, quietLogger()).SearchAllSources(context.Background(), "apple", "fruits", Options{})

	assert.True(t, result.Success)
	assert.Equal(t, []string{"unsplash"}, result.SkippedSources)
	assert.Empty(t, result.FailedSources)
	assert.ElementsMatch(t, []string{"pexels", "pixabay"}, result.SuccessfulSources)
	assert.Len(t, result.Images, 4)
	assert.True(t, result.SourceStats["unsplash"].Skipped)
}

func TestSearchAllSources_AllFail(t *testing.T) {
	boom := errors.New("boom")
	provider := staticProvider{
		&fakeClient{name: "unsplash", err: boom},
		&fakeClient{name: "pexels", err: boom},
	}
	result := New(provider, Options{}, nil, quietLogger()).SearchAllSources(context.Background(), "cat", "", Options{})

	assert.True(t, result.Success)
	assert.Empty(t, result.Images)
	assert.Len(t, result.Errors, 2)
	assert.Len(t, result.FailedSources, 2)
}

func TestSearchAllSources_NoSources(t *testing.T) {
	provider := staticProvider{&fakeClient{name: "unsplash"}}
	agg := New(provider, Options{}, nil, quietLogger())

	result := agg.SearchAllSources(context.Background(), "cat", "", Options{ExcludeSources: []string{"Unsplash"}})
	assert.False(t, result.Success)
	assert.True(t, result.NoSourcesAvailable)
	assert.Empty(t, result.Images)
	assert.NotNil(t, result.Images)

	empty := New(staticProvider{}, Options{}, nil, quietLogger()).SearchAllSources(context.Background(), "cat", "", Options{})
	assert.True(t, empty.NoSourcesAvailable)
}

func TestSearchAllSources_DedupesAndRanksBySource(t *testing.T) {
	dup := images("pexels", "same", "same", "other")
	provider := staticProvider{
		&fakeClient{name: "unsplash", images: images("unsplash", "u1")},
		&fakeClient{name: "pexels", images: dup},
	}
	result := New(provider, Options{}, nil, quietLogger()).SearchAllSources(context.Background(), "cat", "", Options{
		PrioritySources: []string{"pexels"},
	})

	seen := map[string]bool{}
	for _, img := range result.Images {
		require.False(t, seen[img.Key()], "duplicate %s", img.Key())
		seen[img.Key()] = true
	}
	require.Len(t, result.Images, 3)
	assert.Equal(t, "pexels", result.Images[0].Source)
	assert.Equal(t, 1, result.Images[0].SourceRank)
	assert.Equal(t, "unsplash", result.Images[2].Source)
	assert.Equal(t, 2, result.Images[2].SourceRank)
}

func TestSearchAllSources_Truncates(t *testing.T) {
	provider := staticProvider{
		&fakeClient{name: "unsplash", images: images("unsplash", "1", "2", "3", "4")},
		&fakeClient{name: "pexels", images: images("pexels", "1", "2", "3", "4")},
	}
	result := New(provider, Options{}, nil, quietLogger()).SearchAllSources(context.Background(), "cat", "", Options{
		MaxResultsPerSource: 3,
		MaxTotalResults:     5,
	})

	assert.Equal(t, 5, result.TotalImages)
	assert.Equal(t, 6, result.TotalFound)
	assert.Equal(t, 3, result.SourceStats["unsplash"].Count)
}

func TestEnhancedSearchAllSources_CrossSourceRanking(t *testing.T) {
	small := models.ImageCandidate{Source: "unsplash", SourceID: "small", Width: 300, Height: 900}
	big := models.ImageCandidate{Source: "pexels", SourceID: "big", Width: 2400, Height: 2400, Stats: models.EngagementStats{Likes: 500}}

	provider := staticProvider{
		&fakeClient{name: "unsplash", images: []models.ImageCandidate{small}},
		&fakeClient{name: "pexels", images: []models.ImageCandidate{big}},
	}
	result := New(provider, Options{}, nil, quietLogger()).EnhancedSearchAllSources(context.Background(), "zebra", "animals", Options{})

	require.True(t, result.Success)
	assert.Equal(t, ModeEnhanced, result.Mode)
	require.Len(t, result.Images, 2)
	assert.Equal(t, "big", result.Images[0].SourceID)
	assert.Equal(t, 1.0, result.Images[0].SearchWeight)
}

func TestActiveSources(t *testing.T) {
	all := []sources.SourceClient{
		&fakeClient{name: "unsplash"},
		&fakeClient{name: "pexels"},
		&fakeClient{name: "pixabay"},
	}

	names := func(cs []sources.SourceClient) []string {
		var out []string
		for _, c := range cs {
			out = append(out, c.Name())
		}
		return out
	}

	assert.Equal(t, []string{"pixabay", "unsplash", "pexels"}, names(ActiveSources(all, nil, []string{"pixabay"})))
	assert.Equal(t, []string{"pexels", "pixabay"}, names(ActiveSources(all, []string{"unsplash"}, []string{"unsplash", "pexels"})))
	assert.Equal(t, []string{"unsplash", "pexels", "pixabay"}, names(ActiveSources(all, nil, []string{"flickr"})))
}
