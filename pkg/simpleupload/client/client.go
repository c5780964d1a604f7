// Package client uploads local files through a simpleupload endpoint: it asks
// the server for signed authorizations and then moves the bytes straight to
// object storage.
package client

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Client drives uploads against one upload endpoint
type Client struct {
	endpoint      string
	httpClient    *http.Client
	retryAttempts int
	retryDelay    time.Duration
	header        http.Header
	limiter       *rate.Limiter
	logger        *slog.Logger
}

// Option is a functional option for configuring a Client
type Option func(*Client)

// New creates a client for the upload endpoint at endpoint
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Minute,
		},
		retryAttempts: 3,
		retryDelay:    1 * time.Second,
		header:        http.Header{},
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithRetry configures retry behavior. attempts counts the first try.
//
// Transport errors and 5xx responses are retried, including the authorization
// POST to the upload endpoint. Each retried POST runs the route hooks again
// and, for multipart routes, opens new multipart sessions in storage. Sessions
// from a failed attempt are never used by the client; servers running the
// session sweeper abort them once they age out. Use WithRetry(1, 0) when hooks
// must run at most once per upload.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Client) {
		if attempts < 1 {
			attempts = 1
		}
		c.retryAttempts = attempts
		c.retryDelay = delay
	}
}

// WithHeader adds a header to every request sent to the upload endpoint.
// Storage requests never carry it.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.header.Add(key, value)
	}
}

// WithBandwidthLimit caps the combined upload rate of all transfers
func WithBandwidthLimit(bytesPerSecond int) Option {
	return func(c *Client) {
		if bytesPerSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(bytesPerSecond), bytesPerSecond)
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}
