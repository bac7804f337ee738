// Package openfoodfacts implements the page Fetcher against the OpenFoodFacts
// search API.
package openfoodfacts

import (
	"bytes"
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

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-pipeline/internal/catalog"
	"github.com/JakeFAU/catalog-pipeline/internal/metrics"
)

const (
	// DefaultBaseURL is the public v2 API root.
	DefaultBaseURL = "https://world.openfoodfacts.org/api/v2"
	// DefaultUserAgent identifies the pipeline to the API operators.
	DefaultUserAgent = "catalog-pipeline/1.0 (+https://github.com/JakeFAU/catalog-pipeline)"
	// DefaultFields is the projection requested for every product.
	DefaultFields = "code,product_name,brands,categories,nutriscore_grade,nova_group," +
		"energy_100g,fat_100g,sugars_100g,salt_100g,proteins_100g," +
		"ingredients_text,packaging_tags,labels_tags,countries_tags"

	defaultTimeout   = 30 * time.Second
	maxBodyBytes     = 64 << 20
	errorBodySnippet = 256
)

// Categories lists category tags known to return data.
var Categories = []string{
	"chocolats",
	"biscuits",
	"boissons",
	"yaourts",
	"pates",
	"pizzas",
	"fromages",
	"pain",
	"cereales",
	"fruits",
	"legumes",
	"viandes",
	"poissons",
}

// Config controls the HTTP client.
type Config struct {
	BaseURL   string
	UserAgent string
	Fields    string
	Timeout   time.Duration
	Backoff   catalog.Backoff
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithPauser overrides how the client sleeps between retries.
func WithPauser(p catalog.Pauser) Option {
	return func(c *Client) {
		if p != nil {
			c.pauser = p
		}
	}
}

// Client fetches search pages with rate limiting, retry, and backoff.
type Client struct {
	httpClient *http.Client
	cfg        Config
	endpoint   string
	limiter    catalog.Limiter
	pauser     catalog.Pauser
	logger     *zap.Logger
}

// New builds a Client. The limiter is consulted before every attempt,
// retries included.
func New(cfg Config, limiter catalog.Limiter, logger *zap.Logger, opts ...Option) (*Client, error) {
	if limiter == nil {
		return nil, errors.New("rate limiter is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Backoff == (catalog.Backoff{}) {
		cfg.Backoff = catalog.DefaultBackoff()
	}
	if err := cfg.Backoff.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + "/search",
		limiter:    limiter,
		pauser:     catalog.TimerPauser{},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Fetch retrieves one page. Transport failures, timeouts, 429 and 5xx responses
// are retried with exponential backoff; other 4xx responses fail immediately
// with *catalog.RequestError; undecodable payloads yield
// *catalog.MalformedResponseError; exhausted retries yield
// *catalog.TransientError.
func (c *Client) Fetch(ctx context.Context, request catalog.PageRequest) (catalog.PageResponse, error) {
	reqURL := c.pageURL(request)
	logger := c.logger.With(zap.String("category", request.Category), zap.Int("page", request.Page))

	for attempt := 1; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return catalog.PageResponse{}, err
		}

		start := time.Now()
		resp, err := c.attempt(ctx, reqURL, request.Page)
		if err == nil {
			metrics.ObserveFetch("success", time.Since(start))
			metrics.ObservePage()
			logger.Debug("page received", zap.Int("records", len(resp.Records)), zap.Int("attempt", attempt))
			return resp, nil
		}

		var retryable *retryableError
		if !errors.As(err, &retryable) {
			metrics.ObserveFetch(outcomeOf(err), time.Since(start))
			return catalog.PageResponse{}, err
		}
		metrics.ObserveFetch("transient", time.Since(start))

		if attempt > c.cfg.Backoff.MaxRetries {
			logger.Error("retries exhausted", zap.Int("attempts", attempt), zap.Error(retryable.err))
			return catalog.PageResponse{}, &catalog.TransientError{
				URL:        reqURL,
				Attempts:   attempt,
				StatusCode: retryable.status,
				Err:        retryable.err,
			}
		}

		delay := c.cfg.Backoff.Delay(attempt)
		logger.Warn("transient fetch failure, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(retryable.err),
		)
		metrics.ObserveRetry()
		if err := c.pauser.Pause(ctx, delay); err != nil {
			return catalog.PageResponse{}, err
		}
	}
}

// retryableError marks a failure worth another attempt.
type retryableError struct {
	status int
	err    error
}

func (e *retryableError) Error() string { return e.err.Error() }

func (e *retryableError) Unwrap() error { return e.err }

func (c *Client) attempt(ctx context.Context, reqURL string, page int) (catalog.PageResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return catalog.PageResponse{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return catalog.PageResponse{}, fmt.Errorf("request canceled: %w", ctxErr)
		}
		return catalog.PageResponse{}, &retryableError{err: fmt.Errorf("transport: %w", err)}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return catalog.PageResponse{}, fmt.Errorf("read canceled: %w", ctxErr)
		}
		return catalog.PageResponse{}, &retryableError{status: resp.StatusCode, err: fmt.Errorf("read body: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return catalog.PageResponse{}, &retryableError{
			status: resp.StatusCode,
			err:    fmt.Errorf("server responded %d", resp.StatusCode),
		}
	case resp.StatusCode >= 400:
		return catalog.PageResponse{}, &catalog.RequestError{
			URL:        reqURL,
			StatusCode: resp.StatusCode,
			Body:       snippet(body),
		}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return catalog.PageResponse{}, &catalog.MalformedResponseError{
			URL: reqURL,
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	out, err := decodePage(body, page)
	if err != nil {
		return catalog.PageResponse{}, &catalog.MalformedResponseError{URL: reqURL, Err: err}
	}
	return out, nil
}

type searchPayload struct {
	Count    json.RawMessage      `json:"count"`
	Page     json.RawMessage      `json:"page"`
	Products *[]catalog.RawRecord `json:"products"`
}

func decodePage(body []byte, requested int) (catalog.PageResponse, error) {
	var payload searchPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return catalog.PageResponse{}, fmt.Errorf("decode payload: %w", err)
	}
	if payload.Products == nil {
		return catalog.PageResponse{}, errors.New("payload has no products list")
	}
	records := make([]catalog.RawRecord, 0, len(*payload.Products))
	for _, rec := range *payload.Products {
		if rec == nil {
			continue
		}
		records = append(records, rec)
	}
	out := catalog.PageResponse{Records: records, Page: requested}
	if total, ok := flexibleInt(payload.Count); ok {
		out.Total = total
		out.TotalKnown = true
	}
	if page, ok := flexibleInt(payload.Page); ok {
		out.Page = page
	}
	return out, nil
}

// flexibleInt accepts an integer sent either as a JSON number or a string.
func flexibleInt(raw json.RawMessage) (int, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, false
		}
	}
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, false
	}
	return n, true
}

func (c *Client) pageURL(request catalog.PageRequest) string {
	params := url.Values{}
	params.Set("categories_tags", request.Category)
	params.Set("page", strconv.Itoa(request.Page))
	params.Set("page_size", strconv.Itoa(request.PageSize))
	if c.cfg.Fields != "" {
		params.Set("fields", c.cfg.Fields)
	}
	params.Set("json", "1")
	return c.endpoint + "?" + params.Encode()
}

func outcomeOf(err error) string {
	var reqErr *catalog.RequestError
	var malformed *catalog.MalformedResponseError
	switch {
	case errors.As(err, &reqErr):
		return "client_error"
	case errors.As(err, &malformed):
		return "malformed"
	default:
		return "canceled"
	}
}

func snippet(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > errorBodySnippet {
		return text[:errorBodySnippet]
	}
	return text
}
