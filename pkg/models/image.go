package models

import "time"

// Source provider identifiers.
const (
	SourceUnsplash = "unsplash"
	SourcePexels   = "pexels"
	SourcePixabay  = "pixabay"
)

type ImageURLs struct {
	Regular          string `json:"regular"`
	Large            string `json:"large,omitempty"`
	Small            string `json:"small,omitempty"`
	Thumb            string `json:"thumb,omitempty"`
	Page             string `json:"page,omitempty"`
	DownloadLocation string `json:"download_location,omitempty"`
}

type License struct {
	Type          string `json:"type"`
	Attribution   string `json:"attribution,omitempty"`
	CommercialUse bool   `json:"commercial_use"`
	URL           string `json:"url,omitempty"`
}

type Author struct {
	Name       string `json:"name"`
	Username   string `json:"username,omitempty"`
	ProfileURL string `json:"profile_url,omitempty"`
}

type EngagementStats struct {
	Likes     int `json:"likes"`
	Downloads int `json:"downloads"`
	Views     int `json:"views"`
}

// ImageCandidate is the provider-neutral shape of a search hit. It only lives for the
// duration of a search and is never persisted until approved.
type ImageCandidate struct {
	Source         string          `json:"source"`
	SourceID       string          `json:"source_id"`
	URLs           ImageURLs       `json:"urls"`
	Width          int             `json:"width"`
	Height         int             `json:"height"`
	Description    string          `json:"description,omitempty"`
	Tags           []string        `json:"tags,omitempty"`
	Color          string          `json:"color,omitempty"`
	License        License         `json:"license"`
	Author         Author          `json:"author"`
	Stats          EngagementStats `json:"stats"`
	SearchWeight   float64         `json:"search_weight"`
	SearchStrategy string          `json:"search_strategy,omitempty"`
	SourceRank     int             `json:"source_rank"`
	QualityHint    float64         `json:"quality_hint"`
	CreatedAt      *time.Time      `json:"created_at,omitempty"`
}

// Key identifies a candidate across sources.
func (c ImageCandidate) Key() string {
	return c.Source + ":" + c.SourceID
}

// AltText joins the free-text fields providers attach to an image.
func (c ImageCandidate) AltText() string {
	text := c.Description
	for _, tag := range c.Tags {
		text += " " + tag
	}
	return text
}

type ImageMetadata struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Format     string `json:"format"`
	SizeBytes  int64  `json:"size_bytes"`
	ColorSpace string `json:"color_space"`
	HasAlpha   bool   `json:"has_alpha"`
}

// ImageProperties are the heuristic colour and structure measures derived from pixels.
// All values are approximations in [0,1] except DominantColors.
type ImageProperties struct {
	Brightness     float64  `json:"brightness"`
	Contrast       float64  `json:"contrast"`
	Colorfulness   float64  `json:"colorfulness"`
	Saturation     float64  `json:"saturation"`
	DominantColors []string `json:"dominant_colors"`
	EdgeDensity    float64  `json:"edge_density"`
	CenterFocus    float64  `json:"center_focus"`
	TextOverlay    bool     `json:"text_overlay"`
}

// ImageAnalysis bundles everything the quality engine reads about one image.
type ImageAnalysis struct {
	Metadata    ImageMetadata   `json:"metadata"`
	Properties  ImageProperties `json:"properties"`
	Description string          `json:"description,omitempty"`
}
