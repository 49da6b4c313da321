package models

import (
	"time"

	"github.com/google/uuid"
)

type ProgressStatus string

const (
	ProgressPending    ProgressStatus = "pending"
	ProgressCollecting ProgressStatus = "collecting"
	ProgressCompleted  ProgressStatus = "completed"
	ProgressFailed     ProgressStatus = "failed"
)

type ImageStatus string

const (
	ImagePending      ImageStatus = "pending"
	ImageApproved     ImageStatus = "approved"
	ImageRejected     ImageStatus = "rejected"
	ImageManualReview ImageStatus = "manual_review"
)

const DefaultTargetCount = 3

type SourceProgress struct {
	Found          int        `json:"found"`
	Approved       int        `json:"approved"`
	LastSearchedAt *time.Time `json:"last_searched_at,omitempty"`
}

type ProgressError struct {
	At      time.Time `json:"at"`
	Stage   string    `json:"stage"`
	Message string    `json:"message"`
}

// CollectionProgress tracks one vocabulary item. It is treated as a value: transitions
// return a new copy and the storage collaborator persists it after each one.
type CollectionProgress struct {
	ItemID              string                    `json:"item_id" db:"item_id"`
	CategoryID          string                    `json:"category_id" db:"category_id"`
	Letter              string                    `json:"letter" db:"letter"`
	ItemName            string                    `json:"item_name" db:"item_name"`
	Status              ProgressStatus            `json:"status" db:"status"`
	TargetCount         int                       `json:"target_count" db:"target_count"`
	CollectedCount      int                       `json:"collected_count" db:"collected_count"`
	ApprovedCount       int                       `json:"approved_count" db:"approved_count"`
	RejectedCount       int                       `json:"rejected_count" db:"rejected_count"`
	ManualReviewCount   int                       `json:"manual_review_count" db:"manual_review_count"`
	Sources             map[string]SourceProgress `json:"sources" db:"sources"`
	SearchAttempts      int                       `json:"search_attempts" db:"search_attempts"`
	AverageQualityScore float64                   `json:"average_quality_score" db:"average_quality_score"`
	BestQualityScore    float64                   `json:"best_quality_score" db:"best_quality_score"`
	ScoredCount         int                       `json:"scored_count" db:"scored_count"`
	LastAttempt         *time.Time                `json:"last_attempt,omitempty" db:"last_attempt"`
	NextAttempt         *time.Time                `json:"next_attempt,omitempty" db:"next_attempt"`
	CompletedAt         *time.Time                `json:"completed_at,omitempty" db:"completed_at"`
	Errors              []ProgressError           `json:"errors,omitempty" db:"errors"`
	UpdatedAt           time.Time                 `json:"updated_at" db:"updated_at"`
}

// NewCollectionProgress returns a pending progress record for an item.
func NewCollectionProgress(item CollectionItem, targetCount int) CollectionProgress {
	if targetCount <= 0 {
		targetCount = DefaultTargetCount
	}
	return CollectionProgress{
		ItemID:      item.ItemID,
		CategoryID:  item.CategoryID,
		Letter:      item.Letter,
		ItemName:    item.Name,
		Status:      ProgressPending,
		TargetCount: targetCount,
		Sources:     map[string]SourceProgress{},
	}
}

// CollectionItem is the caller-supplied identity of a vocabulary item.
type CollectionItem struct {
	ItemID     string `json:"item_id" validate:"required"`
	CategoryID string `json:"category_id" validate:"required"`
	Letter     string `json:"letter" validate:"omitempty,len=1"`
	Name       string `json:"name" validate:"required,min=1,max=100"`
}

type StoredVariant struct {
	Name     string `json:"name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Format   string `json:"format"`
	Location string `json:"location"`
	Bytes    int    `json:"bytes"`
}

// StoredImage is the persisted representation of a downloaded candidate. It is never
// hard-deleted by the core, only status-transitioned.
type StoredImage struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	ItemID     string          `json:"item_id" db:"item_id"`
	CategoryID string          `json:"category_id" db:"category_id"`
	Source     string          `json:"source" db:"source"`
	SourceID   string          `json:"source_id" db:"source_id"`
	SourceURL  string          `json:"source_url" db:"source_url"`
	License    License         `json:"license" db:"license"`
	Author     Author          `json:"author" db:"author"`
	FilePath   string          `json:"file_path" db:"file_path"`
	Variants   []StoredVariant `json:"variants" db:"variants"`
	Metadata   ImageMetadata   `json:"metadata" db:"metadata"`
	Quality    QualityScore    `json:"quality" db:"quality"`
	Status     ImageStatus     `json:"status" db:"status"`
	IsPrimary  bool            `json:"is_primary" db:"is_primary"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	ReviewedAt *time.Time      `json:"reviewed_at,omitempty" db:"reviewed_at"`
}

// QualityOverrides replaces individual scoring constants for one category. Zero values
// keep the engine default.
type QualityOverrides struct {
	MinWidth            int     `json:"min_width,omitempty"`
	MinHeight           int     `json:"min_height,omitempty"`
	AspectTolerance     float64 `json:"aspect_tolerance,omitempty"`
	MinBrightness       float64 `json:"min_brightness,omitempty"`
	MaxBrightness       float64 `json:"max_brightness,omitempty"`
	MinContrast         float64 `json:"min_contrast,omitempty"`
	MinColorfulness     float64 `json:"min_colorfulness,omitempty"`
	MaxSaturation       float64 `json:"max_saturation,omitempty"`
	RequiredSaturation  float64 `json:"required_saturation,omitempty"`
	RequiredClarity     float64 `json:"required_clarity,omitempty"`
	MaxBackgroundDetail float64 `json:"max_background_detail,omitempty"`
}

// CollectionStrategy is owned by the caller and configures one category.
type CollectionStrategy struct {
	CategoryID            string            `json:"category_id"`
	Enabled               bool              `json:"enabled"`
	PreferredSources      []string          `json:"preferred_sources,omitempty"`
	ExcludedSources       []string          `json:"excluded_sources,omitempty"`
	AllowAIGeneration     bool              `json:"allow_ai_generation"`
	MinQualityThreshold   float64           `json:"min_quality_threshold"`
	TargetImagesPerItem   int               `json:"target_images_per_item"`
	AutoApprovalThreshold float64           `json:"auto_approval_threshold"`
	MaxSearchAttempts     int               `json:"max_search_attempts"`
	RetryIntervalHours    float64           `json:"retry_interval_hours"`
	MaxResultsPerSource   int               `json:"max_results_per_source,omitempty"`
	QualityOverrides      *QualityOverrides `json:"quality_overrides,omitempty"`
}

// RetryInterval converts the configured hours into a duration.
func (s CollectionStrategy) RetryInterval() time.Duration {
	return time.Duration(s.RetryIntervalHours * float64(time.Hour))
}
