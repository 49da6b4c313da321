package sources

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/temcen/vocabimg/internal/ratelimit"
	"github.com/temcen/vocabimg/pkg/models"
)

// Query variant strategies, strongest first.
const (
	StrategyDirect   = "direct"
	StrategyCategory = "category"
	StrategyIsolated = "isolated"
	StrategyStock    = "stock"
	StrategySquare   = "square"
)

// QueryVariant is one formulation of an item search.
type QueryVariant struct {
	Strategy    string
	Query       string
	Weight      float64
	Orientation string
}

// SearchFunc matches SourceClient.Search.
type SearchFunc func(ctx context.Context, query string, opts SearchOptions) (*SearchResult, error)

// QueryVariants lists the searches run for an item, in execution order.
func QueryVariants(itemName, category string) []QueryVariant {
	name := strings.TrimSpace(itemName)
	cat := strings.TrimSpace(category)

	variants := []QueryVariant{{Strategy: StrategyDirect, Query: name, Weight: 1.0}}
	if cat != "" && !strings.EqualFold(cat, name) {
		variants = append(variants, QueryVariant{Strategy: StrategyCategory, Query: name + " " + cat, Weight: 0.9})
	}
	variants = append(variants,
		QueryVariant{Strategy: StrategyIsolated, Query: name + " isolated white background", Weight: 0.85},
		QueryVariant{Strategy: StrategyStock, Query: name + " stock photo", Weight: 0.8},
		QueryVariant{Strategy: StrategySquare, Query: name, Weight: 0.75, Orientation: OrientationSquare},
	)
	return variants
}

// EnhancedSearch runs every query variant through search in sequence, tags
// each hit with its variant, keeps the strongest copy of every image and
// ranks the result. It fails only when no variant succeeded. A quota refusal
// stops the remaining variants.
func EnhancedSearch(ctx context.Context, source string, search SearchFunc, itemName, category string, opts SearchOptions) (*RankedResult, error) {
	result := &RankedResult{
		Source: source,
		Errors: make(map[string]string),
	}
	seen := make(map[string]int)
	succeeded := 0
	var lastErr error

	for _, variant := range QueryVariants(itemName, category) {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		variantOpts := opts
		if variant.Orientation != "" {
			variantOpts.Orientation = variant.Orientation
		}

		outcome := StrategyOutcome{Strategy: variant.Strategy, Query: variant.Query, Weight: variant.Weight}
		page, err := search(ctx, variant.Query, variantOpts)
		if err != nil {
			outcome.Error = err.Error()
			result.Errors[variant.Strategy] = err.Error()
			result.Strategies = append(result.Strategies, outcome)
			lastErr = err
			if errors.Is(err, ratelimit.ErrQuotaExhausted) {
				break
			}
			continue
		}
		succeeded++

		if page.Total > result.Total {
			result.Total = page.Total
		}
		for _, img := range page.Images {
			img.SearchWeight = variant.Weight
			img.SearchStrategy = variant.Strategy
			if idx, ok := seen[img.Key()]; ok {
				if img.SearchWeight > result.Images[idx].SearchWeight {
					result.Images[idx] = img
				}
				continue
			}
			seen[img.Key()] = len(result.Images)
			result.Images = append(result.Images, img)
			outcome.Count++
		}
		result.Strategies = append(result.Strategies, outcome)
	}

	if succeeded == 0 {
		if lastErr == nil {
			lastErr = errors.New("no query variants to run")
		}
		return nil, lastErr
	}

	RankByWeight(result.Images)
	return result, nil
}

// RankByWeight orders candidates by search weight, then social proof, then pixel area.
func RankByWeight(images []models.ImageCandidate) {
	sort.SliceStable(images, func(i, j int) bool {
		a, b := images[i], images[j]
		if a.SearchWeight != b.SearchWeight {
			return a.SearchWeight > b.SearchWeight
		}
		if pa, pb := socialProof(a), socialProof(b); pa != pb {
			return pa > pb
		}
		return a.Width*a.Height > b.Width*b.Height
	})
}

func socialProof(c models.ImageCandidate) int {
	return c.Stats.Likes + c.Stats.Downloads
}
