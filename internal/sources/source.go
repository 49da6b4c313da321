package sources

import (
	"context"
	"io"

	"github.com/temcen/vocabimg/pkg/models"
)

// Orientation filters understood by every client. Each client maps them to
// its provider's vocabulary.
const (
	OrientationLandscape = "landscape"
	OrientationPortrait  = "portrait"
	OrientationSquare    = "square"
)

const defaultPerPage = 10

// SearchOptions narrows a provider search.
type SearchOptions struct {
	Page        int
	PerPage     int
	Orientation string
	Size        string
	Color       string
}

func (o SearchOptions) page() int {
	if o.Page < 1 {
		return 1
	}
	return o.Page
}

func (o SearchOptions) perPage(min, max int) int {
	n := o.PerPage
	if n <= 0 {
		n = defaultPerPage
	}
	if n < min {
		n = min
	}
	if n > max {
		n = max
	}
	return n
}

// SearchResult is one page of normalized candidates from a single source.
type SearchResult struct {
	Source  string                  `json:"source"`
	Images  []models.ImageCandidate `json:"images"`
	Total   int                     `json:"total"`
	Page    int                     `json:"page"`
	HasMore bool                    `json:"has_more"`
}

// StrategyOutcome describes one query variant of an enhanced search.
type StrategyOutcome struct {
	Strategy string  `json:"strategy"`
	Query    string  `json:"query"`
	Weight   float64 `json:"weight"`
	Count    int     `json:"count"`
	Error    string  `json:"error,omitempty"`
}

// RankedResult is the deduplicated, weight-ranked output of an enhanced search.
type RankedResult struct {
	Source     string                  `json:"source"`
	Images     []models.ImageCandidate `json:"images"`
	Total      int                     `json:"total"`
	Strategies []StrategyOutcome       `json:"strategies"`
	Errors     map[string]string       `json:"errors,omitempty"`
}

// Download is an open image stream. The caller closes Body.
type Download struct {
	Body          io.ReadCloser
	ContentLength int64
	ContentType   string
	URL           string
}

// SourceClient is implemented once per image provider.
type SourceClient interface {
	Name() string
	Search(ctx context.Context, query string, opts SearchOptions) (*SearchResult, error)
	EnhancedSearch(ctx context.Context, itemName, category string, opts SearchOptions) (*RankedResult, error)
	Download(ctx context.Context, candidate *models.ImageCandidate) (*Download, error)
}

func downloadURL(c *models.ImageCandidate) string {
	switch {
	case c.URLs.Regular != "":
		return c.URLs.Regular
	case c.URLs.Large != "":
		return c.URLs.Large
	default:
		return c.URLs.Small
	}
}
