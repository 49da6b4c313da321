package sources

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/temcen/vocabimg/internal/config"
	"github.com/temcen/vocabimg/pkg/models"
)

const unsplashMaxPerPage = 30

// Colours accepted by the Unsplash color filter.
var unsplashColors = map[string]bool{
	"black_and_white": true, "black": true, "white": true, "yellow": true,
	"orange": true, "red": true, "purple": true, "magenta": true,
	"green": true, "teal": true, "blue": true,
}

type unsplashSearchResponse struct {
	Total      int             `json:"total"`
	TotalPages int             `json:"total_pages"`
	Results    []unsplashPhoto `json:"results"`
}

type unsplashPhoto struct {
	ID             string  `json:"id"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Color          string  `json:"color"`
	Description    *string `json:"description"`
	AltDescription *string `json:"alt_description"`
	Likes          int     `json:"likes"`
	CreatedAt      string  `json:"created_at"`
	URLs           struct {
		Raw     string `json:"raw"`
		Full    string `json:"full"`
		Regular string `json:"regular"`
		Small   string `json:"small"`
		Thumb   string `json:"thumb"`
	} `json:"urls"`
	Links struct {
		HTML             string `json:"html"`
		DownloadLocation string `json:"download_location"`
	} `json:"links"`
	User struct {
		Name     string `json:"name"`
		Username string `json:"username"`
		Links    struct {
			HTML string `json:"html"`
		} `json:"links"`
	} `json:"user"`
	Tags []struct {
		Title string `json:"title"`
	} `json:"tags"`
}

// UnsplashClient searches api.unsplash.com.
type UnsplashClient struct {
	endpoint
}

// NewUnsplashClient creates a client authenticated with a Client-ID access key.
func NewUnsplashClient(cfg config.SourceConfig, retry RetryPolicy, logger *logrus.Logger) *UnsplashClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.unsplash.com"
	}
	c := &UnsplashClient{endpoint: newEndpoint(models.SourceUnsplash, baseURL, cfg.Timeout, retry, logger)}
	apiKey := cfg.APIKey
	c.authorize = func(req *http.Request) {
		req.Header.Set("Authorization", "Client-ID "+apiKey)
		req.Header.Set("Accept-Version", "v1")
	}
	return c
}

func (c *UnsplashClient) Name() string {
	return models.SourceUnsplash
}

func (c *UnsplashClient) Search(ctx context.Context, query string, opts SearchOptions) (*SearchResult, error) {
	page := opts.page()
	perPage := opts.perPage(1, unsplashMaxPerPage)

	params := url.Values{}
	params.Set("query", query)
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("content_filter", "high")
	switch opts.Orientation {
	case OrientationLandscape, OrientationPortrait:
		params.Set("orientation", opts.Orientation)
	case OrientationSquare:
		params.Set("orientation", "squarish")
	}
	if unsplashColors[opts.Color] {
		params.Set("color", opts.Color)
	}

	var body unsplashSearchResponse
	if err := c.getJSON(ctx, "/search/photos", params, &body); err != nil {
		return nil, err
	}

	images := make([]models.ImageCandidate, 0, len(body.Results))
	for _, photo := range body.Results {
		images = append(images, c.toCandidate(photo))
	}

	return &SearchResult{
		Source:  c.Name(),
		Images:  images,
		Total:   body.Total,
		Page:    page,
		HasMore: page < body.TotalPages,
	}, nil
}

func (c *UnsplashClient) EnhancedSearch(ctx context.Context, itemName, category string, opts SearchOptions) (*RankedResult, error) {
	return EnhancedSearch(ctx, c.Name(), c.Search, itemName, category, opts)
}

// Download opens the photo and reports the download to Unsplash as its API
// guidelines require. A failed report is logged, not returned.
func (c *UnsplashClient) Download(ctx context.Context, candidate *models.ImageCandidate) (*Download, error) {
	if loc := candidate.URLs.DownloadLocation; loc != "" {
		if err := c.trackDownload(ctx, loc); err != nil {
			c.logger.WithFields(logrus.Fields{
				"source":    c.Name(),
				"source_id": candidate.SourceID,
			}).WithError(err).Warn("Failed to report Unsplash download")
		}
	}
	return c.download(ctx, downloadURL(candidate))
}

func (c *UnsplashClient) trackDownload(ctx context.Context, location string) error {
	resp, err := c.do(ctx, location, true)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (c *UnsplashClient) toCandidate(photo unsplashPhoto) models.ImageCandidate {
	description := ""
	if photo.Description != nil {
		description = *photo.Description
	}
	if description == "" && photo.AltDescription != nil {
		description = *photo.AltDescription
	}

	tags := make([]string, 0, len(photo.Tags))
	for _, tag := range photo.Tags {
		if tag.Title != "" {
			tags = append(tags, tag.Title)
		}
	}

	candidate := models.ImageCandidate{
		Source:   models.SourceUnsplash,
		SourceID: photo.ID,
		URLs: models.ImageURLs{
			Regular:          photo.URLs.Regular,
			Large:            photo.URLs.Full,
			Small:            photo.URLs.Small,
			Thumb:            photo.URLs.Thumb,
			Page:             photo.Links.HTML,
			DownloadLocation: photo.Links.DownloadLocation,
		},
		Width:       photo.Width,
		Height:      photo.Height,
		Description: description,
		Tags:        tags,
		Color:       photo.Color,
		License: models.License{
			Type:          "unsplash",
			Attribution:   "Photo by " + photo.User.Name + " on Unsplash",
			CommercialUse: true,
			URL:           "https://unsplash.com/license",
		},
		Author: models.Author{
			Name:       photo.User.Name,
			Username:   photo.User.Username,
			ProfileURL: photo.User.Links.HTML,
		},
		Stats:          models.EngagementStats{Likes: photo.Likes},
		SearchWeight:   1.0,
		SearchStrategy: StrategyDirect,
	}
	if t, err := time.Parse(time.RFC3339, photo.CreatedAt); err == nil {
		candidate.CreatedAt = &t
	}
	return candidate
}
