package adapter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/address-discovery/internal/circuitbreaker"
	"github.com/address-discovery/internal/errors"
	"github.com/address-discovery/internal/logging"
	"github.com/address-discovery/internal/metrics"
	"github.com/address-discovery/internal/retry"
)

const (
	redditSource       = "reddit"
	defaultRedditBase  = "https://www.reddit.com"
	defaultUserAgent   = "CryptoIntelX/0.1 (team@example.com)"
	detailCommentLimit = 500
)

// Waiter blocks until the caller may issue one request. Both
// *rate.Limiter and *ratelimit.RequestBudget satisfy it.
type Waiter interface {
	Wait(ctx context.Context) error
}

// RedditClientConfig configures a RedditClient
type RedditClientConfig struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration // per attempt
	Retry      *retry.RetryConfig
	HTTPClient *http.Client
	// Pacers are waited on, in order, before every attempt. Optional.
	Pacers  []Waiter
	Breaker *circuitbreaker.CircuitBreaker
}

// RedditClient implements SourceConnector against Reddit's public JSON listings
type RedditClient struct {
	baseURL    string
	userAgent  string
	timeout    time.Duration
	retry      *retry.RetryConfig
	client     *http.Client
	pacers     []Waiter
	breaker    *circuitbreaker.CircuitBreaker
	retryStats *retry.RetryStatsTracker
}

// NewRedditClient creates a client, filling unset fields with defaults
func NewRedditClient(cfg RedditClientConfig) *RedditClient {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultRedditBase
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	retryCfg := cfg.Retry
	if retryCfg == nil {
		retryCfg = retry.DefaultRetryConfig()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &RedditClient{
		baseURL:    base,
		userAgent:  ua,
		timeout:    timeout,
		retry:      retryCfg,
		client:     httpClient,
		pacers:     cfg.Pacers,
		breaker:    cfg.Breaker,
		retryStats: retry.NewRetryStatsTracker(),
	}
}

// listing is the Reddit "Listing" envelope
type listing struct {
	Data struct {
		After    *string `json:"after"`
		Children []struct {
			Kind string          `json:"kind"`
			Data json.RawMessage `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// FetchPage implements SourceConnector
func (c *RedditClient) FetchPage(ctx context.Context, channel, mode string, pageSize int, after string) (*PageResult, error) {
	if mode == "" {
		mode = "new"
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(pageSize))
	if after != "" {
		q.Set("after", after)
	}
	pageURL := fmt.Sprintf("%s/r/%s/%s.json?%s", c.baseURL, url.PathEscape(channel), url.PathEscape(mode), q.Encode())

	resp, err := c.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	result := &PageResult{
		URL:        pageURL,
		StatusCode: resp.statusCode,
		SHA256:     resp.sha256,
		Items:      []Post{},
		FetchedAt:  resp.fetchedAt,
	}

	var body listing
	if err := json.Unmarshal(resp.body, &body); err != nil {
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"url":    pageURL,
			"status": resp.statusCode,
		}).Warn("Listing body is not valid JSON")
		return result, nil
	}

	result.Parsed = true
	if body.Data.After != nil {
		result.After = *body.Data.After
	}
	for _, child := range body.Data.Children {
		post, err := DecodePost(child.Data)
		if err != nil {
			logging.FromContext(ctx).WithError(err).Warn("Skipping undecodable listing child")
			continue
		}
		result.Items = append(result.Items, *post)
	}

	return result, nil
}

// FetchItemDetail implements SourceConnector
func (c *RedditClient) FetchItemDetail(ctx context.Context, channel, itemID string) (*ItemDetailResult, error) {
	detailURL := fmt.Sprintf("%s/r/%s/comments/%s.json?limit=%d",
		c.baseURL, url.PathEscape(channel), url.PathEscape(itemID), detailCommentLimit)

	resp, err := c.get(ctx, detailURL)
	if err != nil {
		return nil, err
	}

	result := &ItemDetailResult{
		URL:        detailURL,
		StatusCode: resp.statusCode,
		SHA256:     resp.sha256,
		Comments:   []Comment{},
		FetchedAt:  resp.fetchedAt,
	}

	// The detail endpoint answers with [itemListing, commentListing]
	var listings []listing
	if err := json.Unmarshal(resp.body, &listings); err != nil {
		return result, nil
	}
	result.Parsed = true

	if len(listings) > 0 && len(listings[0].Data.Children) > 0 {
		if post, err := DecodePost(listings[0].Data.Children[0].Data); err == nil {
			result.Item = post
		}
	}
	if len(listings) > 1 {
		for _, child := range listings[1].Data.Children {
			var cm Comment
			if err := json.Unmarshal(child.Data, &cm); err != nil {
				continue
			}
			// "more" stubs carry no body
			if cm.Body == "" {
				continue
			}
			result.Comments = append(result.Comments, cm)
		}
	}

	return result, nil
}

// RetryStats returns cumulative retry statistics for this client
func (c *RedditClient) RetryStats() retry.RetryStats {
	return c.retryStats.GetStats()
}

// DecodePost decodes one listing child and keeps its raw JSON
func DecodePost(raw json.RawMessage) (*Post, error) {
	var p Post
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	p.Raw = append(json.RawMessage(nil), raw...)
	return &p, nil
}

type rawResponse struct {
	statusCode int
	body       []byte
	sha256     string
	fetchedAt  time.Time
}

// retryableStatusError marks a 429/5xx answer so the retry loop tries again
type retryableStatusError struct {
	status int
}

func (e *retryableStatusError) Error() string {
	return fmt.Sprintf("retryable HTTP status %d", e.status)
}

// get performs a GET with retries. 429 and 5xx answers are retried; when the
// budget runs out the last such answer is returned without error. Transport
// failures are retried too and surface as a provider error once exhausted;
// a final attempt cut off by the request timeout surfaces as a provider timeout.
func (c *RedditClient) get(ctx context.Context, target string) (*rawResponse, error) {
	logger := logging.FromContext(ctx).WithField("url", target)

	var last *rawResponse
	attemptFn := func(ctx context.Context, attempt int) error {
		resp, err := c.attempt(ctx, target)
		if err != nil {
			metrics.UpstreamRequests.WithLabelValues(redditSource, "error").Inc()
			return err
		}
		metrics.UpstreamRequests.WithLabelValues(redditSource, strconv.Itoa(resp.statusCode)).Inc()

		last = resp
		if resp.statusCode == http.StatusTooManyRequests || resp.statusCode >= 500 {
			return &retryableStatusError{status: resp.statusCode}
		}
		return nil
	}

	var result *retry.RetryResult
	run := func() error {
		result = retry.WithExponentialBackoff(ctx, c.retry, attemptFn)
		if result.Success {
			return nil
		}
		return result.LastError
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(ctx, run)
	} else {
		err = run()
	}
	if result != nil {
		c.retryStats.RecordResult(result)
	}

	if err == nil {
		return last, nil
	}

	var statusErr *retryableStatusError
	if stderrors.As(err, &statusErr) && last != nil {
		logger.WithField("status", last.statusCode).Warn("Provider kept failing, returning last response")
		return last, nil
	}
	if stderrors.Is(err, circuitbreaker.ErrCircuitOpen) || stderrors.Is(err, circuitbreaker.ErrTooManyRequests) {
		return nil, errors.NewServiceUnavailableError(redditSource)
	}

	if stderrors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		logger.WithError(err).Error("Provider request timed out")
		return nil, errors.NewProviderTimeoutError(redditSource)
	}

	logger.WithError(err).Error("Provider request failed")
	return nil, errors.NewProviderError(redditSource, err)
}

// waitForSlot consults every pacer, giving up after one request timeout
func (c *RedditClient) waitForSlot(ctx context.Context) error {
	if len(c.pacers) == 0 {
		return nil
	}
	waitCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	for _, p := range c.pacers {
		if err := p.Wait(waitCtx); err != nil {
			return fmt.Errorf("waiting for request slot: %w", err)
		}
	}
	return nil
}

// attempt performs one bounded HTTP round trip
func (c *RedditClient) attempt(ctx context.Context, target string) (*rawResponse, error) {
	if err := c.waitForSlot(ctx); err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	sum := sha256.Sum256(body)
	return &rawResponse{
		statusCode: resp.StatusCode,
		body:       body,
		sha256:     hex.EncodeToString(sum[:]),
		fetchedAt:  time.Now().UTC(),
	}, nil
}
