// Package crawler queries the search API and turns its results into articles.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"cvetracker/internal/config"
	"cvetracker/internal/logger"
	"cvetracker/internal/telemetry"
	"cvetracker/pkg/utils"
)

// Fetch errors.
var (
	// ErrUnexpectedStatusCode indicates an HTTP response other than 200.
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	// ErrInvalidJSON indicates a 200 response whose body is not a JSON object.
	ErrInvalidJSON = errors.New("response is not a JSON object")
	// ErrRetriesExhausted indicates every attempt failed with a transient error.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// errorBodyLimit bounds how much of a failed response body is reported.
const errorBodyLimit = 500

// credentialParams are redacted whenever a request URL is logged.
var credentialParams = []string{"key", "cx"}

// Fetcher performs search API requests with config-driven retry logic and a
// politeness delay between the end of one query and the start of the next.
type Fetcher struct {
	client       *http.Client
	politeness   *rate.Limiter
	headers      http.Header
	logger       *logger.Logger
	metrics      *telemetry.Metrics
	sleep        func(ctx context.Context, d time.Duration) error
	retryPolicy  config.RetryPolicy
	bufferSizeKb int
}

// NewFetcher creates a fetcher from the tracker configuration.
func NewFetcher(cfg *config.Config, log *logger.Logger, metrics *telemetry.Metrics) *Fetcher {
	if log == nil {
		log = logger.Discard()
	}

	if metrics == nil {
		metrics = telemetry.NewMetrics()
	}

	return &Fetcher{
		client: &http.Client{
			Timeout:   cfg.Tracker.Retry.GetTimeout(),
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		politeness:   newPolitenessLimiter(cfg.Tracker.Search.PolitenessDelay()),
		headers:      utils.BuildHeaders(cfg.Tracker.Search.UserAgent),
		logger:       log,
		metrics:      metrics,
		sleep:        sleepContext,
		retryPolicy:  cfg.Tracker.Retry,
		bufferSizeKb: cfg.Advanced.BufferSizeKb,
	}
}

// newPolitenessLimiter allows one query per delay; a zero delay disables the limit.
func newPolitenessLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}

	return rate.NewLimiter(rate.Every(delay), 1)
}

// holdOff empties the politeness bucket at t, so the next Wait blocks for a
// full delay counted from the end of the query that just finished.
func holdOff(limiter *rate.Limiter, t time.Time) {
	limiter.SetBurstAt(t, 0)
	limiter.SetBurstAt(t, 1)
}

// Fetch issues a GET to endpoint with params and returns the parsed JSON
// object. 429 and 503 responses and transport failures are retried with
// exponential backoff; any other failure is returned immediately.
func (f *Fetcher) Fetch(ctx context.Context, endpoint string, params url.Values) (gjson.Result, error) {
	if err := f.politeness.Wait(ctx); err != nil {
		return gjson.Result{}, fmt.Errorf("politeness wait interrupted: %w", err)
	}

	defer func() {
		holdOff(f.politeness, time.Now())
	}()

	reqURL, err := buildURL(endpoint, params)
	if err != nil {
		return gjson.Result{}, err
	}

	maxAttempts := max(f.retryPolicy.MaxAttempts, 1)

	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		doc, retryable, err := f.attempt(ctx, reqURL)
		if err == nil {
			return doc, nil
		}

		if !retryable {
			return gjson.Result{}, err
		}

		lastErr = err

		if attempt == maxAttempts-1 {
			break
		}

		delay := f.retryPolicy.GetRetryDelay(attempt)
		f.logger.Warn("Search request failed, backing off",
			"url", utils.RedactQuery(reqURL, credentialParams...),
			"attempt", attempt+1,
			"max_attempts", maxAttempts,
			"delay", delay,
			"error", err)

		if sleepErr := f.sleep(ctx, delay); sleepErr != nil {
			return gjson.Result{}, fmt.Errorf("backoff interrupted: %w", sleepErr)
		}
	}

	f.logger.Error("Exceeded retries for search request",
		"url", utils.RedactQuery(reqURL, credentialParams...),
		"attempts", maxAttempts)

	return gjson.Result{}, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, maxAttempts, lastErr)
}

// attempt performs a single request. The boolean reports whether the
// failure is transient and worth retrying.
func (f *Fetcher) attempt(ctx context.Context, reqURL string) (gjson.Result, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return gjson.Result{}, false, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header = f.headers.Clone()

	resp, err := f.client.Do(req)
	if err != nil {
		f.metrics.FetchAttempts.WithLabelValues(telemetry.OutcomeTransport).Inc()

		if ctxErr := ctx.Err(); ctxErr != nil {
			return gjson.Result{}, false, ctxErr
		}

		// The transport error embeds the request URL, credentials included.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = utils.RedactQuery(urlErr.URL, credentialParams...)
		}

		return gjson.Result{}, true, fmt.Errorf("request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
		limit := int64(f.bufferSizeKb) * 1024

		body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
		if err != nil {
			f.metrics.FetchAttempts.WithLabelValues(telemetry.OutcomeTransport).Inc()

			return gjson.Result{}, true, fmt.Errorf("failed to read response body: %w", err)
		}

		doc, err := parseObject(body)
		if err != nil {
			f.metrics.FetchAttempts.WithLabelValues(telemetry.OutcomeInvalidJSON).Inc()

			return gjson.Result{}, false, err
		}

		f.metrics.FetchAttempts.WithLabelValues(telemetry.OutcomeSuccess).Inc()

		return doc, false, nil

	case isRetryableStatus(resp.StatusCode):
		f.metrics.FetchAttempts.WithLabelValues(telemetry.OutcomeRetryable).Inc()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, errorBodyLimit))

		return gjson.Result{}, true, fmt.Errorf("%w: %d", ErrUnexpectedStatusCode, resp.StatusCode)

	default:
		f.metrics.FetchAttempts.WithLabelValues(telemetry.OutcomePermanent).Inc()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))

		return gjson.Result{}, false, fmt.Errorf("%w: %d: %s",
			ErrUnexpectedStatusCode, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
}

func parseObject(body []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, ErrInvalidJSON
	}

	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return gjson.Result{}, fmt.Errorf("%w: top-level value is %s", ErrInvalidJSON, doc.Type)
	}

	return doc, nil
}

func buildURL(endpoint string, params url.Values) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}

	q := u.Query()
	for key, values := range params {
		for _, v := range values {
			q.Add(key, v)
		}
	}

	u.RawQuery = q.Encode()

	return u.String(), nil
}

// isRetryableStatus reports whether the status signals rate limiting or a
// temporarily unavailable upstream.
func isRetryableStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode == http.StatusServiceUnavailable
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
