package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrNoData is returned when the source answered without any sensor payload
var ErrNoData = errors.New("no sensor data received")

// FetchResult is one successful response of the sensor data endpoint
type FetchResult struct {
	Payload    map[string]any
	StatusCode int
	Endpoint   string
}

// FetchError describes a failed fetch; StatusCode is 0 for transport errors
type FetchError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP error! status: %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.Endpoint, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher retrieves one raw sensor payload
type Fetcher interface {
	Fetch(ctx context.Context) (*FetchResult, error)
}

// FetchFunc adapts a plain function to Fetcher
type FetchFunc func(ctx context.Context) (*FetchResult, error)

// Fetch calls f
func (f FetchFunc) Fetch(ctx context.Context) (*FetchResult, error) {
	return f(ctx)
}

// HTTPFetcher reads the sensor data endpoint with GET
type HTTPFetcher struct {
	logger     *zap.Logger
	url        string
	httpClient *http.Client
}

// NewHTTPFetcher creates a new HTTP sensor data fetcher
func NewHTTPFetcher(logger *zap.Logger, url string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		logger: logger,
		url:    url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Endpoint returns the URL being polled
func (f *HTTPFetcher) Endpoint() string {
	return f.url
}

// Fetch performs one GET and decodes the JSON body
func (f *HTTPFetcher) Fetch(ctx context.Context) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, &FetchError{Endpoint: f.url, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "SmartSensors-Client/1.0")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Endpoint: f.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{
			Endpoint:   f.url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &FetchError{Endpoint: f.url, Err: fmt.Errorf("failed to decode payload: %w", err)}
	}

	f.logger.Debug("Sensor data received",
		zap.String("url", f.url),
		zap.Int("status_code", resp.StatusCode),
		zap.Int("keys", len(payload)))

	return &FetchResult{
		Payload:    payload,
		StatusCode: resp.StatusCode,
		Endpoint:   f.url,
	}, nil
}
