package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/temcen/vocabimg/pkg/models"
)

func TestDedupe_KeepsStrongestCopy(t *testing.T) {
	in := []models.ImageCandidate{
		{Source: "a", SourceID: "1", SearchWeight: 0.8},
		{Source: "b", SourceID: "1", SearchWeight: 0.8},
		{Source: "a", SourceID: "1", SearchWeight: 0.9},
		{Source: "a", SourceID: "2", SearchWeight: 0.7},
	}

	out := Dedupe(in)
	assert.Len(t, out, 3)
	assert.Equal(t, 0.9, out[0].SearchWeight)
}

func TestResolutionTier(t *testing.T) {
	assert.Equal(t, 0, ResolutionTier(799, 4000))
	assert.Equal(t, 1, ResolutionTier(800, 800))
	assert.Equal(t, 2, ResolutionTier(1200, 3000))
	assert.Equal(t, 3, ResolutionTier(2000, 2000))
}

func TestSquareness(t *testing.T) {
	assert.Equal(t, 1.0, Squareness(500, 500))
	assert.Equal(t, 0.5, Squareness(1000, 500))
	assert.Equal(t, 0.0, Squareness(0, 500))
}

func TestAnnotateQuality_Bounds(t *testing.T) {
	in := []models.ImageCandidate{
		{Width: 4000, Height: 4000, Stats: models.EngagementStats{Likes: 1000}},
		{Width: 100, Height: 400},
	}
	AnnotateQuality(in)

	assert.InDelta(t, 1.0, in[0].QualityHint, 1e-9)
	assert.InDelta(t, 0.075, in[1].QualityHint, 1e-9)
}

func TestRank_KeyOrder(t *testing.T) {
	older := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.AddDate(1, 0, 0)

	in := []models.ImageCandidate{
		{SourceID: "rank2", SourceRank: 2, SearchWeight: 1.0, QualityHint: 1},
		{SourceID: "low-weight", SourceRank: 1, SearchWeight: 0.8, QualityHint: 1},
		{SourceID: "old", SourceRank: 1, SearchWeight: 1.0, QualityHint: 0.5, CreatedAt: &older},
		{SourceID: "new", SourceRank: 1, SearchWeight: 1.0, QualityHint: 0.5, CreatedAt: &newer},
		{SourceID: "best", SourceRank: 1, SearchWeight: 1.0, QualityHint: 0.9},
	}
	Rank(in)

	var ids []string
	for _, c := range in {
		ids = append(ids, c.SourceID)
	}
	assert.Equal(t, []string{"best", "new", "old", "low-weight", "rank2"}, ids)
}

func TestRankCrossSource(t *testing.T) {
	in := []models.ImageCandidate{
		{SourceID: "weak", SourceRank: 1, SearchWeight: 0.75, QualityHint: 0.1},
		{SourceID: "strong", SourceRank: 3, SearchWeight: 1.0, QualityHint: 0.9},
		{SourceID: "tie-rank2", SourceRank: 2, SearchWeight: 0.75, QualityHint: 0.1},
	}
	RankCrossSource(in)

	assert.Equal(t, "strong", in[0].SourceID)
	assert.Equal(t, "weak", in[1].SourceID)
	assert.Equal(t, "tie-rank2", in[2].SourceID)
}
