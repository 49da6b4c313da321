package sources

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/vocabimg/internal/ratelimit"
	"github.com/temcen/vocabimg/pkg/models"
)

func candidate(id string, likes, w, h int) models.ImageCandidate {
	return models.ImageCandidate{
		Source:   "fake",
		SourceID: id,
		Width:    w,
		Height:   h,
		Stats:    models.EngagementStats{Likes: likes},
	}
}

func TestQueryVariants(t *testing.T) {
	variants := QueryVariants("  Zebra ", "animals")
	require.Len(t, variants, 5)

	assert.Equal(t, "Zebra", variants[0].Query)
	assert.Equal(t, 1.0, variants[0].Weight)
	assert.Equal(t, "Zebra animals", variants[1].Query)
	assert.Equal(t, 0.9, variants[1].Weight)
	assert.Equal(t, "Zebra isolated white background", variants[2].Query)
	assert.Equal(t, "Zebra stock photo", variants[3].Query)
	assert.Equal(t, OrientationSquare, variants[4].Orientation)
	assert.Equal(t, 0.75, variants[4].Weight)

	for i := 1; i < len(variants); i++ {
		assert.Less(t, variants[i].Weight, variants[i-1].Weight)
	}
}

func TestQueryVariants_SkipsCategoryEqualToName(t *testing.T) {
	variants := QueryVariants("red", "Red")
	assert.Len(t, variants, 4)
	for _, v := range variants {
		assert.NotEqual(t, StrategyCategory, v.Strategy)
	}
}

func TestEnhancedSearch_DedupesKeepingStrongestVariant(t *testing.T) {
	queries := []string{}
	search := func(ctx context.Context, query string, opts SearchOptions) (*SearchResult, error) {
		queries = append(queries, query)
		switch query {
		case "apple":
			if opts.Orientation == OrientationSquare {
				return &SearchResult{Images: []models.ImageCandidate{candidate("sq", 0, 500, 500)}}, nil
			}
			return &SearchResult{Images: []models.ImageCandidate{candidate("a", 10, 100, 100), candidate("b", 5, 100, 100)}, Total: 2}, nil
		case "apple fruits":
			return &SearchResult{Images: []models.ImageCandidate{candidate("b", 5, 100, 100), candidate("c", 50, 100, 100)}, Total: 7}, nil
		default:
			return &SearchResult{}, nil
		}
	}

	result, err := EnhancedSearch(context.Background(), "fake", search, "apple", "fruits", SearchOptions{})
	require.NoError(t, err)

	assert.Len(t, queries, 5)
	assert.Equal(t, 7, result.Total)

	keys := map[string]bool{}
	for _, img := range result.Images {
		assert.False(t, keys[img.Key()], "duplicate %s", img.Key())
		keys[img.Key()] = true
	}
	require.Len(t, result.Images, 4)

	// Weight first, then likes.
	assert.Equal(t, "a", result.Images[0].SourceID)
	assert.Equal(t, "b", result.Images[1].SourceID)
	assert.Equal(t, StrategyDirect, result.Images[1].SearchStrategy)
	assert.Equal(t, "c", result.Images[2].SourceID)
	assert.Equal(t, 0.9, result.Images[2].SearchWeight)
	assert.Equal(t, "sq", result.Images[3].SourceID)
	assert.Equal(t, StrategySquare, result.Images[3].SearchStrategy)
}

func TestEnhancedSearch_PartialVariantFailure(t *testing.T) {
	search := func(ctx context.Context, query string, opts SearchOptions) (*SearchResult, error) {
		if query == "cat" && opts.Orientation == "" {
			return &SearchResult{Images: []models.ImageCandidate{candidate("1", 0, 10, 10)}}, nil
		}
		return nil, &SourceError{Source: "fake", Kind: KindAPIError, StatusCode: 500}
	}

	result, err := EnhancedSearch(context.Background(), "fake", search, "cat", "animals", SearchOptions{})
	require.NoError(t, err)
	assert.Len(t, result.Images, 1)
	assert.Len(t, result.Errors, 4)
	assert.Len(t, result.Strategies, 5)
}

func TestEnhancedSearch_AllVariantsFail(t *testing.T) {
	boom := errors.New("boom")
	search := func(ctx context.Context, query string, opts SearchOptions) (*SearchResult, error) {
		return nil, boom
	}

	_, err := EnhancedSearch(context.Background(), "fake", search, "cat", "animals", SearchOptions{})
	assert.ErrorIs(t, err, boom)
}

func TestEnhancedSearch_QuotaStopsRemainingVariants(t *testing.T) {
	calls := 0
	search := func(ctx context.Context, query string, opts SearchOptions) (*SearchResult, error) {
		calls++
		if calls == 1 {
			return &SearchResult{Images: []models.ImageCandidate{candidate("1", 0, 10, 10)}}, nil
		}
		return nil, &ratelimit.QuotaError{Source: "fake"}
	}

	result, err := EnhancedSearch(context.Background(), "fake", search, "cat", "animals", SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Len(t, result.Images, 1)
	assert.Contains(t, result.Errors, StrategyCategory)
}

func TestRankByWeight_TieBreaksOnArea(t *testing.T) {
	images := []models.ImageCandidate{
		candidate("small", 3, 100, 100),
		candidate("big", 3, 1000, 1000),
	}
	for i := range images {
		images[i].SearchWeight = 0.8
	}

	RankByWeight(images)
	assert.Equal(t, "big", images[0].SourceID)
}
