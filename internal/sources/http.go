package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const userAgent = "vocabimg/1.0 (+https://github.com/temcen/vocabimg)"

// maxErrorBody limits how much of an error response ends up in SourceError.
const maxErrorBody = 512

// endpoint is the HTTP plumbing shared by the provider clients.
type endpoint struct {
	source     string
	baseURL    string
	httpClient *http.Client
	retry      RetryPolicy
	logger     *logrus.Logger
	authorize  func(req *http.Request)
}

func newEndpoint(source, baseURL string, timeout time.Duration, retry RetryPolicy, logger *logrus.Logger) endpoint {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	e := endpoint{
		source:     source,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry,
		logger:     logger,
		authorize:  func(*http.Request) {},
	}
	e.retry.Notify = func(err error, wait time.Duration) {
		logger.WithFields(logrus.Fields{
			"source": source,
			"wait":   wait.String(),
		}).WithError(err).Warn("Retrying image source request")
	}
	return e
}

// getJSON issues an authorized GET against the provider API and decodes the body into out.
func (e *endpoint) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	target := e.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	return Retry(ctx, e.retry, func() error {
		resp, err := e.do(ctx, target, true)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return invalidResponse(e.source, fmt.Errorf("decode response: %w", err))
		}
		return nil
	})
}

// open starts a GET and returns the live response once the status is 2xx.
func (e *endpoint) open(ctx context.Context, target string, authorize bool) (*http.Response, error) {
	var resp *http.Response
	err := Retry(ctx, e.retry, func() error {
		r, err := e.do(ctx, target, authorize)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (e *endpoint) do(ctx context.Context, target string, authorize bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, invalidResponse(e.source, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, image/*")
	if authorize {
		e.authorize(req)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, networkError(e.source, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, statusError(e.source, resp, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

func (e *endpoint) download(ctx context.Context, target string) (*Download, error) {
	if target == "" {
		return nil, invalidResponse(e.source, fmt.Errorf("candidate has no downloadable url"))
	}
	resp, err := e.open(ctx, target, false)
	if err != nil {
		return nil, err
	}
	return &Download{
		Body:          resp.Body,
		ContentLength: resp.ContentLength,
		ContentType:   resp.Header.Get("Content-Type"),
		URL:           target,
	}, nil
}
