package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ErrorKind classifies a failed provider call.
type ErrorKind string

const (
	KindNetwork         ErrorKind = "network"
	KindRateLimited     ErrorKind = "rate_limited"
	KindAPIError        ErrorKind = "api_error"
	KindInvalidResponse ErrorKind = "invalid_response"
)

// SourceError is returned by every provider client.
type SourceError struct {
	Source     string
	Kind       ErrorKind
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func (e *SourceError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Source, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the request can succeed.
func (e *SourceError) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindRateLimited:
		return true
	case KindAPIError:
		return e.StatusCode >= 500
	default:
		return false
	}
}

// IsRetryable is the default retry predicate.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *SourceError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return false
}

func networkError(source string, err error) error {
	return &SourceError{Source: source, Kind: KindNetwork, Err: err}
}

func invalidResponse(source string, err error) error {
	return &SourceError{Source: source, Kind: KindInvalidResponse, Err: err}
}

func statusError(source string, resp *http.Response, body string) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		return &SourceError{
			Source:     source,
			Kind:       KindRateLimited,
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
			Err:        errors.New("provider rate limit exceeded"),
		}
	}
	var err error
	if body != "" {
		err = errors.New(body)
	}
	return &SourceError{Source: source, Kind: KindAPIError, StatusCode: resp.StatusCode, Err: err}
}

func parseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
