// Package vkapi provides a small VK API client for the methods vktop needs,
// with request pacing, rate-limit cooldowns and bounded retries.
package vkapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/vktop/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for VK API requests.
var (
	vkRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vk_requests_total",
		Help: "Total VK API requests by method and status",
	}, []string{"method", "status"})

	vkRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vk_request_duration_seconds",
		Help:    "VK API request duration in seconds by method",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"method"})

	vkErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vk_errors_total",
		Help: "Total VK API errors by class",
	}, []string{"class"})
)

const (
	// DefaultBaseURL is the VK API method endpoint.
	DefaultBaseURL = "https://api.vk.com/method/"

	// DefaultVersion is the API version sent with every request.
	DefaultVersion = "5.199"

	// DefaultRequestsPerSecond is VK's documented per-token limit.
	DefaultRequestsPerSecond = 3

	// MaxBatchSize is the largest count wall.get accepts.
	MaxBatchSize = 100
)

// Client is the VK API client. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	gate       ratelimit.Gate
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the method endpoint, with or without a trailing slash.
	BaseURL string

	// Version is the API version ("v" parameter).
	Version string

	// AccessToken is a service or user token. Public walls need one too.
	AccessToken string

	// Lang selects the language of error messages and texts.
	Lang string

	// Timeout bounds a single HTTP request.
	Timeout time.Duration

	// RequestsPerSecond paces all requests of this client. 0 disables pacing.
	RequestsPerSecond float64

	// Retry controls backoff on rate-limit responses.
	Retry RetryConfig

	// Gate is consulted before each request and told about rate-limit hits.
	// Defaults to an in-process ratelimit.LocalGate.
	Gate ratelimit.Gate

	// HTTPClient overrides the transport (tests).
	HTTPClient *http.Client
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(accessToken string) Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		Version:           DefaultVersion,
		AccessToken:       accessToken,
		Lang:              "en",
		Timeout:           15 * time.Second,
		RequestsPerSecond: DefaultRequestsPerSecond,
		Retry:             DefaultRetryConfig(),
	}
}

// New creates a new VK API client.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("api version is required")
	}
	if cfg.RequestsPerSecond < 0 {
		return nil, fmt.Errorf("requests_per_second must be >= 0 (got %v)", cfg.RequestsPerSecond)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.Retry = cfg.Retry.withDefaults()

	logger = logger.With().Str("component", "vk-client").Logger()

	if cfg.AccessToken == "" {
		logger.Warn().Msg("No access token configured, wall.get will likely be rejected")
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	gate := cfg.Gate
	if gate == nil {
		gate = ratelimit.NewLocalGate(ratelimit.DefaultCooldown, logger)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, 1),
		gate:       gate,
		config:     cfg,
		logger:     logger,
	}, nil
}

// envelope is the top-level shape of every VK API response.
type envelope struct {
	Response json.RawMessage `json:"response"`
	Error    *apiError       `json:"error"`
}

type apiError struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_msg"`
}

// Call invokes an API method and decodes the "response" field into out.
// Rate-limit errors are retried with backoff; every other failure is
// returned as *SourceError or *TransportError.
func (c *Client) Call(ctx context.Context, method string, params url.Values, out any) error {
	return retryWithBackoff(ctx, c.config.Retry, c.logger.With().Str("method", method).Logger(), func() error {
		return c.do(ctx, method, params, out)
	})
}

// do performs a single request without retries.
func (c *Client) do(ctx context.Context, method string, params url.Values, out any) error {
	if err := c.gate.Wait(ctx); err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	startTime := time.Now()
	defer func() {
		vkRequestDuration.WithLabelValues(method).Observe(time.Since(startTime).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.methodURL(method, params), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("method", method).
		Str("offset", params.Get("offset")).
		Str("count", params.Get("count")).
		Msg("Executing VK request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		vkErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		vkRequestsTotal.WithLabelValues(method, "network_error").Inc()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.logger.Error().Err(err).Str("method", method).Msg("HTTP request failed")
		return &TransportError{Method: method, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		vkErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		vkRequestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()
		return &TransportError{Method: method, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		vkErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		vkRequestsTotal.WithLabelValues(method, "network_error").Inc()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &TransportError{Method: method, Err: fmt.Errorf("read body: %w", err)}
	}

	if err := c.decode(ctx, method, body, out); err != nil {
		class := ClassOf(err)
		vkErrorsTotal.WithLabelValues(string(class)).Inc()
		vkRequestsTotal.WithLabelValues(method, string(class)).Inc()
		return err
	}

	vkRequestsTotal.WithLabelValues(method, "ok").Inc()
	return nil
}

// decode unpacks the envelope. API errors become *SourceError and rate-limit
// hits are reported to the gate before returning.
func (c *Client) decode(ctx context.Context, method string, body []byte, out any) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return malformed(method, "undecodable response", err)
	}

	if env.Error != nil {
		srcErr := &SourceError{
			Method:  method,
			Code:    env.Error.Code,
			Message: env.Error.Message,
			Class:   classifyCode(env.Error.Code),
		}
		if srcErr.Class == ErrorClassRateLimit {
			if err := c.gate.ReportRateLimited(ctx); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to report rate limit")
			}
		}
		c.logger.Warn().
			Str("method", method).
			Int("error_code", srcErr.Code).
			Str("error_class", string(srcErr.Class)).
			Str("error_msg", srcErr.Message).
			Msg("VK API error")
		return srcErr
	}

	raw := bytes.TrimSpace(env.Response)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return malformed(method, "missing response field", nil)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return malformed(method, "undecodable response field", err)
	}
	return nil
}

// methodURL builds the request URL with the common parameters applied.
func (c *Client) methodURL(method string, params url.Values) string {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("v", c.config.Version)
	if c.config.AccessToken != "" {
		q.Set("access_token", c.config.AccessToken)
	}
	if c.config.Lang != "" {
		q.Set("lang", c.config.Lang)
	}
	return strings.TrimRight(c.config.BaseURL, "/") + "/" + method + "?" + q.Encode()
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
