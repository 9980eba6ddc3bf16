// Package discovery fetches listing and article pages, discovers article
// links on listing pages and extracts article fields with selector fallback
// chains.
package discovery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/Vaibhav-Sahai/periodic-scraper/logger"
)

const (
	// maxBodySize bounds how much of a response body is read.
	maxBodySize = 10 << 20

	// maxBackoff bounds the wait between retries regardless of max_retries.
	maxBackoff = 30 * time.Second
)

// ErrUnexpectedStatus is wrapped by FetchError for non-200 responses.
var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

// FetchError is a network failure for a single URL. It is never fatal to a
// run: the listing or article it belongs to is skipped.
type FetchError struct {
	URL        string
	StatusCode int // zero for transport failures
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher retrieves the raw body of a page. Implementations return a
// *FetchError for anything other than a successful response.
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers map[string]string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, url string, headers map[string]string) ([]byte, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	return f(ctx, url, headers)
}

// HTTPFetcher fetches pages over HTTP with a per-request timeout and an
// optional number of retries for transient failures.
type HTTPFetcher struct {
	client     *http.Client
	maxRetries int
	backoff    time.Duration
	log        logger.Logger
}

// NewHTTPFetcher creates a fetcher. maxRetries of zero means each URL is
// requested exactly once.
func NewHTTPFetcher(timeout time.Duration, maxRetries int, log logger.Logger) *HTTPFetcher {
	if log == nil {
		log = logger.NewNop()
	}
	return &HTTPFetcher{
		client:     &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		backoff:    time.Second,
		log:        log,
	}
}

// Fetch performs a GET with the given headers and returns the body of a 200
// response.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	var lastErr *FetchError

	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			wait := f.backoffFor(attempt)
			f.log.Debug("Retrying fetch",
				logger.String("url", url),
				logger.Int("attempt", attempt),
				logger.Duration("backoff", wait),
			)

			select {
			case <-ctx.Done():
				return nil, &FetchError{URL: url, Err: ctx.Err()}
			case <-time.After(wait):
			}
		}

		body, err := f.do(ctx, url, headers)
		if err == nil {
			return body, nil
		}

		lastErr = err
		if !isRetryable(err) || ctx.Err() != nil {
			break
		}
	}

	return nil, lastErr
}

// backoffFor returns the wait before the given retry attempt: the base
// backoff doubled per earlier retry, capped at maxBackoff.
func (f *HTTPFetcher) backoffFor(attempt int) time.Duration {
	wait := f.backoff
	for i := 1; i < attempt && wait < maxBackoff; i++ {
		wait *= 2
	}
	return min(wait, maxBackoff)
}

func (f *HTTPFetcher) do(ctx context.Context, url string, headers map[string]string) ([]byte, *FetchError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	for name, value := range headers {
		req.Header.Set(name, value)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Err: ErrUnexpectedStatus}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("failed to read body: %w", err)}
	}

	return body, nil
}

// isRetryable reports whether a failed request may succeed if repeated:
// transport errors and throttling or gateway statuses.
func isRetryable(err *FetchError) bool {
	if err.StatusCode == 0 {
		return !errors.Is(err.Err, context.Canceled)
	}
	return isRetryableStatus(err.StatusCode)
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// ParseHTML parses a fetched page into a queryable document.
func ParseHTML(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}
