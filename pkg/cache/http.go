package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// ErrMalformedResponse is returned when a response body is not valid JSON.
var ErrMalformedResponse = errors.New("malformed JSON response")

// HTTPError is returned by URLFetcher for non-2xx responses.
type HTTPError struct {
	// URL is the requested URL without its query string.
	URL        string
	StatusCode int
	Status     string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %s", e.URL, e.Status)
}

// URLFetcher builds a Fetcher that GETs rawURL and hands the body to
// extract. Non-2xx responses and bodies that are not valid JSON are errors.
// A nil extract unmarshals the whole body into T.
func URLFetcher[T any](httpClient *http.Client, rawURL string, extract func(body []byte) (T, error)) Fetcher[T] {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if extract == nil {
		extract = func(body []byte) (T, error) {
			var v T
			err := json.Unmarshal(body, &v)
			return v, err
		}
	}

	return func(ctx context.Context) (T, error) {
		var zero T

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return zero, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := httpClient.Do(req)
		if err != nil {
			var urlErr *url.Error
			if errors.As(err, &urlErr) {
				// The query string carries the API key.
				urlErr.URL = stripQuery(urlErr.URL)
			}
			return zero, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return zero, fmt.Errorf("read response body: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return zero, &HTTPError{
				URL:        stripQuery(rawURL),
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
			}
		}

		if !json.Valid(body) {
			return zero, fmt.Errorf("GET %s: %w", stripQuery(rawURL), ErrMalformedResponse)
		}

		return extract(body)
	}
}

// JSONField returns an extractor that decodes the named top-level field of
// a JSON object into T. A missing or null field yields the zero value of T.
func JSONField[T any](field string) func(body []byte) (T, error) {
	return func(body []byte) (T, error) {
		var (
			zero   T
			object map[string]json.RawMessage
		)
		if err := json.Unmarshal(body, &object); err != nil {
			return zero, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}

		raw, ok := object[field]
		if !ok {
			return zero, nil
		}

		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return zero, fmt.Errorf("decode field %q: %w", field, err)
		}
		return v, nil
	}
}

func stripQuery(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	return u.String()
}
