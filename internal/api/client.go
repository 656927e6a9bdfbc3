package api

import (
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 2

	// DefaultRetryDelay is multiplied by the retry number between attempts.
	DefaultRetryDelay = time.Second

	// DefaultNoDataStatus is the terminal's "no data for this query" status.
	DefaultNoDataStatus = 472

	// DefaultFanOutConcurrency bounds parallel sub-range fetches.
	DefaultFanOutConcurrency = 4

	// apiVersionPrefix is stripped from next_page links before reuse.
	apiVersionPrefix = "/v2"
)

// Client provides access to the terminal's REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *RateLimiter

	maxRetries        int
	retryDelay        time.Duration
	noDataStatus      int
	fanOutConcurrency int
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client. baseURL includes the version
// prefix, e.g. http://127.0.0.1:25510/v2.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:            slog.Default(),
		limiter:           NewRateLimiter(0, 1),
		maxRetries:        DefaultMaxRetries,
		retryDelay:        DefaultRetryDelay,
		noDataStatus:      DefaultNoDataStatus,
		fanOutConcurrency: DefaultFanOutConcurrency,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry count and the linear backoff step.
func WithRetries(max int, delay time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryDelay = delay
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimiter shares a limiter across clients.
func WithRateLimiter(l *RateLimiter) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.limiter = l
		}
	}
}

// WithNoDataStatus overrides the status code meaning "no data".
func WithNoDataStatus(code int) ClientOption {
	return func(c *Client) {
		c.noDataStatus = code
	}
}

// WithFanOutConcurrency sets how many sub-range fetches run at once.
func WithFanOutConcurrency(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.fanOutConcurrency = n
		}
	}
}
