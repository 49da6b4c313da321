package sources

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/temcen/vocabimg/internal/config"
	"github.com/temcen/vocabimg/pkg/models"
)

const pexelsMaxPerPage = 80

type pexelsSearchResponse struct {
	TotalResults int           `json:"total_results"`
	Page         int           `json:"page"`
	PerPage      int           `json:"per_page"`
	Photos       []pexelsPhoto `json:"photos"`
	NextPage     string        `json:"next_page"`
}

type pexelsPhoto struct {
	ID              int64  `json:"id"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	URL             string `json:"url"`
	Photographer    string `json:"photographer"`
	PhotographerURL string `json:"photographer_url"`
	PhotographerID  int64  `json:"photographer_id"`
	AvgColor        string `json:"avg_color"`
	Alt             string `json:"alt"`
	Src             struct {
		Original string `json:"original"`
		Large2x  string `json:"large2x"`
		Large    string `json:"large"`
		Medium   string `json:"medium"`
		Small    string `json:"small"`
		Tiny     string `json:"tiny"`
	} `json:"src"`
}

// PexelsClient searches api.pexels.com.
type PexelsClient struct {
	endpoint
}

func NewPexelsClient(cfg config.SourceConfig, retry RetryPolicy, logger *logrus.Logger) *PexelsClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.pexels.com/v1"
	}
	c := &PexelsClient{endpoint: newEndpoint(models.SourcePexels, baseURL, cfg.Timeout, retry, logger)}
	apiKey := cfg.APIKey
	c.authorize = func(req *http.Request) {
		req.Header.Set("Authorization", apiKey)
	}
	return c
}

func (c *PexelsClient) Name() string {
	return models.SourcePexels
}

func (c *PexelsClient) Search(ctx context.Context, query string, opts SearchOptions) (*SearchResult, error) {
	page := opts.page()
	perPage := opts.perPage(1, pexelsMaxPerPage)

	params := url.Values{}
	params.Set("query", query)
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))
	switch opts.Orientation {
	case OrientationLandscape, OrientationPortrait, OrientationSquare:
		params.Set("orientation", opts.Orientation)
	}
	switch opts.Size {
	case "large", "medium", "small":
		params.Set("size", opts.Size)
	}
	if opts.Color != "" {
		params.Set("color", opts.Color)
	}

	var body pexelsSearchResponse
	if err := c.getJSON(ctx, "/search", params, &body); err != nil {
		return nil, err
	}

	images := make([]models.ImageCandidate, 0, len(body.Photos))
	for _, photo := range body.Photos {
		images = append(images, c.toCandidate(photo))
	}

	return &SearchResult{
		Source:  c.Name(),
		Images:  images,
		Total:   body.TotalResults,
		Page:    page,
		HasMore: body.NextPage != "",
	}, nil
}

func (c *PexelsClient) EnhancedSearch(ctx context.Context, itemName, category string, opts SearchOptions) (*RankedResult, error) {
	return EnhancedSearch(ctx, c.Name(), c.Search, itemName, category, opts)
}

func (c *PexelsClient) Download(ctx context.Context, candidate *models.ImageCandidate) (*Download, error) {
	return c.download(ctx, downloadURL(candidate))
}

func (c *PexelsClient) toCandidate(photo pexelsPhoto) models.ImageCandidate {
	return models.ImageCandidate{
		Source:   models.SourcePexels,
		SourceID: strconv.FormatInt(photo.ID, 10),
		URLs: models.ImageURLs{
			Regular: photo.Src.Large,
			Large:   photo.Src.Large2x,
			Small:   photo.Src.Medium,
			Thumb:   photo.Src.Tiny,
			Page:    photo.URL,
		},
		Width:       photo.Width,
		Height:      photo.Height,
		Description: photo.Alt,
		Color:       photo.AvgColor,
		License: models.License{
			Type:          "pexels",
			Attribution:   "Photo by " + photo.Photographer + " on Pexels",
			CommercialUse: true,
			URL:           "https://www.pexels.com/license/",
		},
		Author: models.Author{
			Name:       photo.Photographer,
			Username:   strconv.FormatInt(photo.PhotographerID, 10),
			ProfileURL: photo.PhotographerURL,
		},
		SearchWeight:   1.0,
		SearchStrategy: StrategyDirect,
	}
}
