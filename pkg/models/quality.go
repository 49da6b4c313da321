package models

import "time"

type Recommendation string

const (
	RecommendAutoApprove  Recommendation = "auto_approve"
	RecommendManualReview Recommendation = "manual_review"
	RecommendReject       Recommendation = "reject"
)

// Dimension weights of the overall score.
const (
	WeightTechnical = 0.25
	WeightRelevance = 0.35
	WeightAesthetic = 0.25
	WeightUsability = 0.15
)

// QualityScore is immutable once computed for a candidate and context pair.
type QualityScore struct {
	Technical      float64        `json:"technical"`
	Relevance      float64        `json:"relevance"`
	Aesthetic      float64        `json:"aesthetic"`
	Usability      float64        `json:"usability"`
	Overall        float64        `json:"overall"`
	Notes          []string       `json:"notes,omitempty"`
	Recommendation Recommendation `json:"recommendation,omitempty"`
	AssessedAt     time.Time      `json:"assessed_at"`
}

type DimensionMeans struct {
	Technical float64 `json:"technical"`
	Relevance float64 `json:"relevance"`
	Aesthetic float64 `json:"aesthetic"`
	Usability float64 `json:"usability"`
	Overall   float64 `json:"overall"`
}

type QualityDistribution struct {
	Excellent  int `json:"excellent"`
	Good       int `json:"good"`
	Acceptable int `json:"acceptable"`
	Poor       int `json:"poor"`
}

type QualityStatistics struct {
	Count              int                 `json:"count"`
	Means              DimensionMeans      `json:"means"`
	Distribution       QualityDistribution `json:"distribution"`
	HighQualityPercent float64             `json:"high_quality_percent"`
}
