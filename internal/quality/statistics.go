package quality

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/temcen/vocabimg/pkg/models"
)

// Statistics summarises a set of scores. Buckets: excellent >= 9,
// good [7,9), acceptable [5,7), poor < 5.
func Statistics(scores []models.QualityScore) models.QualityStatistics {
	out := models.QualityStatistics{Count: len(scores)}
	if len(scores) == 0 {
		return out
	}

	tech := make([]float64, len(scores))
	rel := make([]float64, len(scores))
	aes := make([]float64, len(scores))
	use := make([]float64, len(scores))
	overall := make([]float64, len(scores))

	for i, s := range scores {
		tech[i], rel[i], aes[i], use[i], overall[i] = s.Technical, s.Relevance, s.Aesthetic, s.Usability, s.Overall

		switch {
		case s.Overall >= 9:
			out.Distribution.Excellent++
		case s.Overall >= 7:
			out.Distribution.Good++
		case s.Overall >= 5:
			out.Distribution.Acceptable++
		default:
			out.Distribution.Poor++
		}
	}

	out.Means = models.DimensionMeans{
		Technical: round2(stat.Mean(tech, nil)),
		Relevance: round2(stat.Mean(rel, nil)),
		Aesthetic: round2(stat.Mean(aes, nil)),
		Usability: round2(stat.Mean(use, nil)),
		Overall:   round2(stat.Mean(overall, nil)),
	}
	high := out.Distribution.Excellent + out.Distribution.Good
	out.HighQualityPercent = round1(100 * float64(high) / float64(len(scores)))
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
