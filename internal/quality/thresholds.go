package quality

import (
	"github.com/temcen/vocabimg/internal/config"
	"github.com/temcen/vocabimg/pkg/models"
)

// Thresholds holds every tunable constant of the scoring rubric. The values
// were tuned by inspection and are defaults, not requirements.
type Thresholds struct {
	MinWidth            int
	MinHeight           int
	HighResWidth        int
	MinFileBytes        int64
	MaxFileBytes        int64
	AspectTolerance     float64
	MinBrightness       float64
	MaxBrightness       float64
	MinContrast         float64
	MinColorfulness     float64
	MaxSaturation       float64
	RequiredSaturation  float64
	RequiredClarity     float64
	MaxBackgroundDetail float64
	MinDisplayDimension int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinWidth:            400,
		MinHeight:           400,
		HighResWidth:        1920,
		MinFileBytes:        10 << 10,
		MaxFileBytes:        5 << 20,
		AspectTolerance:     0.5,
		MinBrightness:       0.2,
		MaxBrightness:       0.85,
		MinContrast:         0.15,
		MinColorfulness:     0.2,
		MaxSaturation:       0.9,
		RequiredSaturation:  0.4,
		RequiredClarity:     0.5,
		MaxBackgroundDetail: 0.35,
		MinDisplayDimension: 800,
	}
}

// ThresholdsFromConfig overlays non-zero config values on the defaults.
func ThresholdsFromConfig(cfg config.QualityConfig) Thresholds {
	t := DefaultThresholds()
	setInt(&t.MinWidth, cfg.MinWidth)
	setInt(&t.MinHeight, cfg.MinHeight)
	setInt(&t.HighResWidth, cfg.HighResWidth)
	setInt(&t.MinDisplayDimension, cfg.MinDisplayDimension)
	if cfg.MinFileBytes > 0 {
		t.MinFileBytes = cfg.MinFileBytes
	}
	if cfg.MaxFileBytes > 0 {
		t.MaxFileBytes = cfg.MaxFileBytes
	}
	setFloat(&t.AspectTolerance, cfg.AspectTolerance)
	setFloat(&t.MinBrightness, cfg.MinBrightness)
	setFloat(&t.MaxBrightness, cfg.MaxBrightness)
	setFloat(&t.MinContrast, cfg.MinContrast)
	setFloat(&t.MinColorfulness, cfg.MinColorfulness)
	setFloat(&t.MaxSaturation, cfg.MaxSaturation)
	setFloat(&t.RequiredSaturation, cfg.RequiredSaturation)
	setFloat(&t.RequiredClarity, cfg.RequiredClarity)
	setFloat(&t.MaxBackgroundDetail, cfg.MaxBackgroundDetail)
	return t
}

// WithOverrides applies per-category overrides.
func (t Thresholds) WithOverrides(o *models.QualityOverrides) Thresholds {
	if o == nil {
		return t
	}
	setInt(&t.MinWidth, o.MinWidth)
	setInt(&t.MinHeight, o.MinHeight)
	setFloat(&t.AspectTolerance, o.AspectTolerance)
	setFloat(&t.MinBrightness, o.MinBrightness)
	setFloat(&t.MaxBrightness, o.MaxBrightness)
	setFloat(&t.MinContrast, o.MinContrast)
	setFloat(&t.MinColorfulness, o.MinColorfulness)
	setFloat(&t.MaxSaturation, o.MaxSaturation)
	setFloat(&t.RequiredSaturation, o.RequiredSaturation)
	setFloat(&t.RequiredClarity, o.RequiredClarity)
	setFloat(&t.MaxBackgroundDetail, o.MaxBackgroundDetail)
	return t
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}
