package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/temcen/vocabimg/internal/config"
	"github.com/temcen/vocabimg/pkg/models"
)

const (
	pixabayMinPerPage = 3
	pixabayMaxPerPage = 200
	// Pixabay rejects queries longer than 100 characters.
	pixabayMaxQuery = 100
)

type pixabaySearchResponse struct {
	Total     int          `json:"total"`
	TotalHits int          `json:"totalHits"`
	Hits      []pixabayHit `json:"hits"`
}

type pixabayHit struct {
	ID            int64  `json:"id"`
	PageURL       string `json:"pageURL"`
	Tags          string `json:"tags"`
	PreviewURL    string `json:"previewURL"`
	WebformatURL  string `json:"webformatURL"`
	LargeImageURL string `json:"largeImageURL"`
	ImageWidth    int    `json:"imageWidth"`
	ImageHeight   int    `json:"imageHeight"`
	Views         int    `json:"views"`
	Downloads     int    `json:"downloads"`
	Likes         int    `json:"likes"`
	User          string `json:"user"`
	UserID        int64  `json:"user_id"`
}

// PixabayClient searches pixabay.com/api. The key travels as a query parameter.
type PixabayClient struct {
	endpoint
	apiKey string
}

func NewPixabayClient(cfg config.SourceConfig, retry RetryPolicy, logger *logrus.Logger) *PixabayClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://pixabay.com/api"
	}
	return &PixabayClient{
		endpoint: newEndpoint(models.SourcePixabay, baseURL, cfg.Timeout, retry, logger),
		apiKey:   cfg.APIKey,
	}
}

func (c *PixabayClient) Name() string {
	return models.SourcePixabay
}

func (c *PixabayClient) Search(ctx context.Context, query string, opts SearchOptions) (*SearchResult, error) {
	page := opts.page()
	perPage := opts.perPage(pixabayMinPerPage, pixabayMaxPerPage)

	if r := []rune(query); len(r) > pixabayMaxQuery {
		query = string(r[:pixabayMaxQuery])
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("q", query)
	params.Set("image_type", "photo")
	params.Set("safesearch", "true")
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))
	switch opts.Orientation {
	case OrientationLandscape:
		params.Set("orientation", "horizontal")
	case OrientationPortrait:
		params.Set("orientation", "vertical")
	}
	if opts.Color != "" {
		params.Set("colors", opts.Color)
	}

	var body pixabaySearchResponse
	if err := c.getJSON(ctx, "/", params, &body); err != nil {
		return nil, err
	}

	images := make([]models.ImageCandidate, 0, len(body.Hits))
	for _, hit := range body.Hits {
		images = append(images, c.toCandidate(hit))
	}

	return &SearchResult{
		Source:  c.Name(),
		Images:  images,
		Total:   body.TotalHits,
		Page:    page,
		HasMore: page*perPage < body.TotalHits,
	}, nil
}

func (c *PixabayClient) EnhancedSearch(ctx context.Context, itemName, category string, opts SearchOptions) (*RankedResult, error) {
	return EnhancedSearch(ctx, c.Name(), c.Search, itemName, category, opts)
}

func (c *PixabayClient) Download(ctx context.Context, candidate *models.ImageCandidate) (*Download, error) {
	return c.download(ctx, downloadURL(candidate))
}

func (c *PixabayClient) toCandidate(hit pixabayHit) models.ImageCandidate {
	var tags []string
	for _, tag := range strings.Split(hit.Tags, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}

	return models.ImageCandidate{
		Source:   models.SourcePixabay,
		SourceID: strconv.FormatInt(hit.ID, 10),
		URLs: models.ImageURLs{
			Regular: hit.WebformatURL,
			Large:   hit.LargeImageURL,
			Small:   hit.WebformatURL,
			Thumb:   hit.PreviewURL,
			Page:    hit.PageURL,
		},
		Width:       hit.ImageWidth,
		Height:      hit.ImageHeight,
		Description: strings.Join(tags, " "),
		Tags:        tags,
		License: models.License{
			Type:          "pixabay",
			Attribution:   "Image by " + hit.User + " from Pixabay",
			CommercialUse: true,
			URL:           "https://pixabay.com/service/license-summary/",
		},
		Author: models.Author{
			Name:       hit.User,
			Username:   hit.User,
			ProfileURL: fmt.Sprintf("https://pixabay.com/users/%s-%d/", hit.User, hit.UserID),
		},
		Stats: models.EngagementStats{
			Likes:     hit.Likes,
			Downloads: hit.Downloads,
			Views:     hit.Views,
		},
		SearchWeight:   1.0,
		SearchStrategy: StrategyDirect,
	}
}
