package collection

import (
	"github.com/temcen/vocabimg/internal/config"
	"github.com/temcen/vocabimg/pkg/models"
)

// StrategyProvider resolves the collection strategy of a category.
type StrategyProvider interface {
	Strategy(categoryID string) models.CollectionStrategy
}

// Defaults fills unset strategy fields from the collection config.
type Defaults struct {
	cfg config.CollectionConfig
}

func NewDefaults(cfg config.CollectionConfig) *Defaults {
	return &Defaults{cfg: cfg}
}

// Strategy returns an enabled strategy built from config alone.
func (d *Defaults) Strategy(categoryID string) models.CollectionStrategy {
	return d.Apply(models.CollectionStrategy{CategoryID: categoryID, Enabled: true})
}

// Apply replaces the zero fields of s.
func (d *Defaults) Apply(s models.CollectionStrategy) models.CollectionStrategy {
	if s.MinQualityThreshold <= 0 {
		s.MinQualityThreshold = d.cfg.MinQualityThreshold
	}
	if s.AutoApprovalThreshold <= 0 {
		s.AutoApprovalThreshold = d.cfg.AutoApprovalThreshold
	}
	if s.TargetImagesPerItem <= 0 {
		s.TargetImagesPerItem = d.cfg.TargetImagesPerItem
	}
	if s.MaxSearchAttempts <= 0 {
		s.MaxSearchAttempts = d.cfg.MaxSearchAttempts
	}
	if s.RetryIntervalHours <= 0 {
		s.RetryIntervalHours = d.cfg.RetryIntervalHours
	}
	if s.MaxResultsPerSource <= 0 {
		s.MaxResultsPerSource = d.cfg.MaxResultsPerSource
	}
	return normalize(s)
}

// normalize applies the hard-coded fallbacks used when config is empty too.
func normalize(s models.CollectionStrategy) models.CollectionStrategy {
	if s.MinQualityThreshold <= 0 {
		s.MinQualityThreshold = 6.0
	}
	if s.AutoApprovalThreshold <= 0 {
		s.AutoApprovalThreshold = 8.5
	}
	if s.AutoApprovalThreshold < s.MinQualityThreshold {
		s.AutoApprovalThreshold = s.MinQualityThreshold
	}
	if s.TargetImagesPerItem <= 0 {
		s.TargetImagesPerItem = models.DefaultTargetCount
	}
	if s.MaxSearchAttempts <= 0 {
		s.MaxSearchAttempts = 3
	}
	if s.RetryIntervalHours <= 0 {
		s.RetryIntervalHours = 24
	}
	return s
}
