package aggregator

import (
	"math"
	"sort"

	"github.com/temcen/vocabimg/pkg/models"
)

// Dedupe keeps the first candidate for every (source, source id) pair, or
// the one with the higher search weight when a later copy is stronger.
func Dedupe(images []models.ImageCandidate) []models.ImageCandidate {
	seen := make(map[string]int, len(images))
	out := make([]models.ImageCandidate, 0, len(images))
	for _, img := range images {
		if idx, ok := seen[img.Key()]; ok {
			if img.SearchWeight > out[idx].SearchWeight {
				out[idx] = img
			}
			continue
		}
		seen[img.Key()] = len(out)
		out = append(out, img)
	}
	return out
}

// ResolutionTier buckets the short side of an image: 0 below 800px, up to 3 at 2000px and above.
func ResolutionTier(width, height int) int {
	short := width
	if height < short {
		short = height
	}
	switch {
	case short >= 2000:
		return 3
	case short >= 1200:
		return 2
	case short >= 800:
		return 1
	default:
		return 0
	}
}

// Squareness is short side over long side, 1 for a square image.
func Squareness(width, height int) float64 {
	if width <= 0 || height <= 0 {
		return 0
	}
	short, long := float64(width), float64(height)
	if short > long {
		short, long = long, short
	}
	return short / long
}

// AnnotateQuality sets QualityHint on every candidate. Social proof is
// normalised against the best-liked candidate in the set.
func AnnotateQuality(images []models.ImageCandidate) {
	maxSocial := 0.0
	for _, img := range images {
		if s := math.Log1p(float64(img.Stats.Likes + img.Stats.Downloads)); s > maxSocial {
			maxSocial = s
		}
	}

	for i := range images {
		img := &images[i]
		social := 0.0
		if maxSocial > 0 {
			social = math.Log1p(float64(img.Stats.Likes+img.Stats.Downloads)) / maxSocial
		}
		hint := 0.4*float64(ResolutionTier(img.Width, img.Height))/3 +
			0.3*Squareness(img.Width, img.Height) +
			0.3*social
		img.QualityHint = math.Round(hint*1000) / 1000
	}
}

// Rank orders by source rank, search weight, quality hint, then recency.
func Rank(images []models.ImageCandidate) {
	sort.SliceStable(images, func(i, j int) bool {
		a, b := images[i], images[j]
		if a.SourceRank != b.SourceRank {
			return a.SourceRank < b.SourceRank
		}
		if a.SearchWeight != b.SearchWeight {
			return a.SearchWeight > b.SearchWeight
		}
		if a.QualityHint != b.QualityHint {
			return a.QualityHint > b.QualityHint
		}
		return newer(a, b)
	})
}

// CompositeScore blends search weight and quality hint for cross-source ranking.
func CompositeScore(c models.ImageCandidate) float64 {
	return math.Round((0.6*c.SearchWeight+0.4*c.QualityHint)*1000) / 1000
}

// RankCrossSource orders by composite score, then source rank, then recency.
func RankCrossSource(images []models.ImageCandidate) {
	sort.SliceStable(images, func(i, j int) bool {
		a, b := images[i], images[j]
		if ca, cb := CompositeScore(a), CompositeScore(b); ca != cb {
			return ca > cb
		}
		if a.SourceRank != b.SourceRank {
			return a.SourceRank < b.SourceRank
		}
		return newer(a, b)
	})
}

func newer(a, b models.ImageCandidate) bool {
	switch {
	case a.CreatedAt == nil:
		return false
	case b.CreatedAt == nil:
		return true
	default:
		return a.CreatedAt.After(*b.CreatedAt)
	}
}
