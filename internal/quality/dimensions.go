package quality

import (
	"fmt"
	"math"

	"github.com/temcen/vocabimg/pkg/models"
)

const (
	categoryAnimals = "animals"
	categoryFood    = "food"
	categoryColors  = "colors"
	categoryObjects = "objects"
	categoryDefault = "default"
)

// scorer accumulates one dimension and the notes explaining it.
type scorer struct {
	name  string
	value float64
	notes []string
}

func (s *scorer) add(delta float64, format string, args ...interface{}) {
	s.value += delta
	sign := "+"
	if delta < 0 {
		sign = ""
	}
	s.notes = append(s.notes, fmt.Sprintf("%s %s%.1f: %s", s.name, sign, delta, fmt.Sprintf(format, args...)))
}

func (s *scorer) result() float64 {
	return round1(clamp(s.value, 0, 10))
}

func technical(a models.ImageAnalysis, t Thresholds) (float64, []string) {
	s := &scorer{name: "technical", value: 10}
	m := a.Metadata

	if m.Width < t.MinWidth || m.Height < t.MinHeight {
		ratio := math.Min(float64(m.Width)/float64(t.MinWidth), float64(m.Height)/float64(t.MinHeight))
		deficit := clamp(1-ratio, 0, 1)
		s.add(-(3 + 4*deficit), "%dx%d below minimum %dx%d", m.Width, m.Height, t.MinWidth, t.MinHeight)
	}

	switch {
	case t.MaxFileBytes > 0 && m.SizeBytes > t.MaxFileBytes:
		s.add(-1.5, "file size %d exceeds %d bytes", m.SizeBytes, t.MaxFileBytes)
	case m.SizeBytes > 0 && m.SizeBytes < t.MinFileBytes:
		s.add(-1.0, "file size %d below %d bytes", m.SizeBytes, t.MinFileBytes)
	}

	if dev := aspectDeviation(m.Width, m.Height); dev > t.AspectTolerance {
		s.add(-math.Min(2, (dev-t.AspectTolerance)*2), "aspect ratio %.2f:1 far from square", 1+dev)
	}

	if m.Width >= t.HighResWidth || m.Height >= t.HighResWidth {
		s.add(0.5, "high resolution")
	}
	switch m.Format {
	case "webp":
		s.add(0.5, "efficient format %s", m.Format)
	case "jpeg":
		s.add(0.25, "efficient format %s", m.Format)
	}

	return s.result(), s.notes
}

func relevance(a models.ImageAnalysis, itemName, cat string, t Thresholds) (float64, []string) {
	s := &scorer{name: "relevance", value: 7}
	p := a.Properties

	if share, ok := overlap(itemName, a.Description); ok {
		switch {
		case share >= 1:
			s.add(2, "description mentions %q", itemName)
		case share > 0:
			s.add(2*share, "description partly matches %q", itemName)
		default:
			s.add(-2, "description does not mention %q", itemName)
		}
	}

	switch category(cat) {
	case categoryAnimals:
		if p.EdgeDensity >= 0.05 && p.EdgeDensity <= t.MaxBackgroundDetail {
			s.add(0.5, "natural background detail")
		}
		if p.CenterFocus < t.RequiredClarity {
			s.add(-2.5, "subject clarity %.2f below required %.2f", p.CenterFocus, t.RequiredClarity)
		}
	case categoryFood:
		switch {
		case p.Colorfulness >= 2*t.MinColorfulness:
			s.add(1, "vivid colours suit %s", cat)
		case p.Colorfulness < t.MinColorfulness:
			s.add(-1, "dull colours for %s", cat)
		}
	case categoryColors:
		if p.Saturation < t.RequiredSaturation {
			s.add(-3, "saturation %.2f below required %.2f", p.Saturation, t.RequiredSaturation)
		} else {
			s.add(1, "strong saturation")
		}
	case categoryObjects:
		switch {
		case p.EdgeDensity <= t.MaxBackgroundDetail/2:
			s.add(1, "clean background")
		case p.EdgeDensity > t.MaxBackgroundDetail:
			s.add(-1, "cluttered background")
		}
	}

	return s.result(), s.notes
}

func aesthetic(a models.ImageAnalysis, t Thresholds) (float64, []string) {
	s := &scorer{name: "aesthetic", value: 7}
	p := a.Properties

	switch {
	case p.Brightness < t.MinBrightness:
		s.add(-math.Min(2, (t.MinBrightness-p.Brightness)*10), "too dark (%.2f)", p.Brightness)
	case p.Brightness > t.MaxBrightness:
		s.add(-math.Min(2, (p.Brightness-t.MaxBrightness)*10), "too bright (%.2f)", p.Brightness)
	}

	if p.Contrast < t.MinContrast {
		s.add(-2*(t.MinContrast-p.Contrast)/t.MinContrast, "low contrast (%.2f)", p.Contrast)
	}
	if p.Colorfulness < t.MinColorfulness {
		s.add(-1.5*(t.MinColorfulness-p.Colorfulness)/t.MinColorfulness, "low colourfulness (%.2f)", p.Colorfulness)
	}

	switch n := len(p.DominantColors); {
	case n >= 3:
		s.add(1, "%d dominant colours", n)
	case n == 2:
		s.add(0.5, "two dominant colours")
	}

	if p.Saturation > t.MaxSaturation {
		s.add(-1.5, "over-saturated (%.2f)", p.Saturation)
	}

	return s.result(), s.notes
}

func usability(a models.ImageAnalysis, textOverlay bool, t Thresholds) (float64, []string) {
	s := &scorer{name: "usability", value: 8}
	p := a.Properties
	m := a.Metadata

	if p.EdgeDensity > t.MaxBackgroundDetail {
		s.add(-(1 + math.Min(1.5, (p.EdgeDensity-t.MaxBackgroundDetail)*5)), "busy background (%.2f)", p.EdgeDensity)
	}
	if p.CenterFocus < t.RequiredClarity {
		s.add(-2*(t.RequiredClarity-p.CenterFocus)/t.RequiredClarity, "weak subject clarity (%.2f)", p.CenterFocus)
	}
	if textOverlay {
		s.add(-2, "text overlay")
	}
	if dev := aspectDeviation(m.Width, m.Height); m.Width > 0 && m.Height > 0 && dev <= 0.5 {
		s.add(1, "thumbnail friendly aspect ratio")
	}
	if m.Width >= t.MinDisplayDimension && m.Height >= t.MinDisplayDimension {
		s.add(1, "large enough for web display")
	}

	return s.result(), s.notes
}

// aspectDeviation is long side over short side minus one, 0 for a square.
func aspectDeviation(w, h int) float64 {
	if w <= 0 || h <= 0 {
		return math.Inf(1)
	}
	long, short := float64(w), float64(h)
	if short > long {
		long, short = short, long
	}
	return long/short - 1
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
