// Package rxnav is a small client for the NLM RxNav REST API. It returns raw
// concept tuples; normalization happens in drugparser.
package rxnav

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/juju/ratelimit"

	"github.com/giygas/rxnorm-search-api/drugparser/entities"
	"github.com/giygas/rxnorm-search-api/interfaces"
	"github.com/giygas/rxnorm-search-api/logging"
	"github.com/giygas/rxnorm-search-api/metrics"
)

// Compile-time check to ensure Client implements ConceptSource
var _ interfaces.ConceptSource = (*Client)(nil)

const (
	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 2
	defaultRetryWait  = 250 * time.Millisecond
	defaultRate       = 15
	maxRetryAfter     = 5 * time.Second
	maxResponseBytes  = 10 << 20
)

// ErrNotFound is returned when RxNav has no match for a term
var ErrNotFound = interfaces.ErrNotFound

// StatusError is a non-2xx answer from RxNav
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
	RetryAfter time.Duration // from the Retry-After header, capped
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("rxnav %s: HTTP %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("rxnav %s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth another attempt
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// Client talks to RxNav with a shared outbound token bucket
type Client struct {
	baseURL    string
	httpClient *http.Client
	bucket     *ratelimit.Bucket
	maxRetries int
	retryWait  time.Duration
	userAgent  string
}

// NewClient creates a client for baseURL, which must be an http(s) URL
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid RxNav base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid RxNav base URL: scheme must be http or https, got %q", parsed.Scheme)
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		bucket:     newBucket(defaultRate),
		maxRetries: defaultMaxRetries,
		retryWait:  defaultRetryWait,
		userAgent:  "rxnorm-search-api",
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func newBucket(perSecond int) *ratelimit.Bucket {
	return ratelimit.NewBucketWithRate(float64(perSecond), int64(perSecond))
}

// DrugsByName returns every concept RxNav lists for name
func (c *Client) DrugsByName(ctx context.Context, name string) ([]entities.ConceptTuple, error) {
	var resp drugsResponse
	if err := c.get(ctx, "drugs", "/drugs.json", url.Values{"name": {name}}, &resp); err != nil {
		return nil, err
	}
	return toTuples(resp.DrugGroup.ConceptGroup), nil
}

// ApproximateTerm returns the RxCUI of the best approximate match for term
func (c *Client) ApproximateTerm(ctx context.Context, term string) (string, error) {
	var resp approximateResponse
	params := url.Values{"term": {term}, "maxEntries": {"1"}}
	if err := c.get(ctx, "approximateTerm", "/approximateTerm.json", params, &resp); err != nil {
		return "", err
	}

	for _, candidate := range resp.ApproximateGroup.Candidate {
		if rxcui := strings.TrimSpace(candidate.RxCUI); rxcui != "" {
			return rxcui, nil
		}
	}
	return "", fmt.Errorf("approximate term %q: %w", term, ErrNotFound)
}

// RelatedByType returns the concepts related to rxcui with the given term types
func (c *Client) RelatedByType(ctx context.Context, rxcui string, termTypes ...entities.TermType) ([]entities.ConceptTuple, error) {
	if len(termTypes) == 0 {
		return nil, fmt.Errorf("related concepts for %s: at least one term type is required", rxcui)
	}

	ttys := make([]string, len(termTypes))
	for i, tt := range termTypes {
		ttys[i] = string(tt)
	}

	var resp relatedResponse
	// Space separated, encoded as BN+SBD
	params := url.Values{"tty": {strings.Join(ttys, " ")}}
	path := "/rxcui/" + url.PathEscape(rxcui) + "/related.json"
	if err := c.get(ctx, "related", path, params, &resp); err != nil {
		return nil, err
	}
	return toTuples(resp.RelatedGroup.ConceptGroup), nil
}

// Version returns the RxNorm release RxNav is serving
func (c *Client) Version(ctx context.Context) (string, error) {
	var resp versionResponse
	if err := c.get(ctx, "version", "/version.json", nil, &resp); err != nil {
		return "", err
	}
	if resp.Version == "" {
		return "", fmt.Errorf("rxnav version: empty version in response")
	}
	return resp.Version, nil
}

// get performs a GET with throttling and bounded retries, decoding JSON into out
func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values, out any) error {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	policy := c.newRetryPolicy()
	attempts := 0

	operation := func() error {
		attempts++
		if err := c.throttle(ctx); err != nil {
			return backoff.Permanent(err)
		}

		err := c.do(ctx, endpoint, fullURL, out)
		if err == nil {
			return nil
		}
		if !shouldRetry(ctx, err) {
			return backoff.Permanent(err)
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			policy.retryAfter = statusErr.RetryAfter
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		logging.Debug("Retrying RxNav request", "endpoint", endpoint, "attempt", attempts, "wait", wait, "error", err)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxRetries)), ctx)
	err := backoff.RetryNotify(operation, b, notify)
	if err != nil && attempts > c.maxRetries && ctx.Err() == nil {
		return fmt.Errorf("rxnav %s failed after %d attempts: %w", endpoint, attempts, err)
	}
	return err
}

// retryPolicy is an exponential backoff that never waits less than the last
// Retry-After hint nor more than maxRetryAfter
type retryPolicy struct {
	backoff.BackOff
	retryAfter time.Duration
}

func (c *Client) newRetryPolicy() *retryPolicy {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.retryWait
	exp.MaxInterval = maxRetryAfter
	exp.MaxElapsedTime = 0
	exp.Reset()
	return &retryPolicy{BackOff: exp}
}

func (p *retryPolicy) NextBackOff() time.Duration {
	next := p.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	next = min(max(next, p.retryAfter), maxRetryAfter)
	p.retryAfter = 0
	return next
}

func (p *retryPolicy) Reset() {
	p.BackOff.Reset()
	p.retryAfter = 0
}

func (c *Client) do(ctx context.Context, endpoint, fullURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.UpstreamRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequestTotals.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("rxnav %s: %w", endpoint, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logging.Warn("Failed to close RxNav response body", "error", closeErr)
		}
	}()

	metrics.UpstreamRequestTotals.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("rxnav %s: failed to read response body: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       truncate(strings.TrimSpace(string(body)), 200),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("rxnav %s: failed to decode response: %w", endpoint, err)
	}
	return nil
}

// throttle blocks until the outbound bucket grants a token or ctx ends
func (c *Client) throttle(ctx context.Context) error {
	if c.bucket == nil {
		return nil
	}
	return sleep(ctx, c.bucket.Take(1))
}

func shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}

	// Decoding errors will not fix themselves
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return false
	}

	return true
}

// parseRetryAfter reads a delay-seconds Retry-After value, capped
func parseRetryAfter(value string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seconds <= 0 {
		return 0
	}
	return min(time.Duration(seconds)*time.Second, maxRetryAfter)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
