// Package rest provides a small JSON HTTP client for the game backend.
//
// It supports retries with exponential backoff, timeouts, and proxies using a
// functional options pattern.
package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/qntx/gamelink/logger"
)

// --------------------------------------------------------------------------------
// Constants

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 10 * time.Second
	// DefaultRetryCount is the default number of retries for failed requests.
	DefaultRetryCount = 0
	// DefaultRetryWaitTime is the backoff base between retries.
	DefaultRetryWaitTime = 100 * time.Millisecond
	// DefaultRetryMaxWaitTime is the maximum wait time between retries.
	DefaultRetryMaxWaitTime = 2 * time.Second
)

// --------------------------------------------------------------------------------
// Errors

var (
	// ErrInvalidTransport indicates that the HTTP transport is not compatible.
	ErrInvalidTransport = errors.New("underlying transport is not an http.Transport")
)

// --------------------------------------------------------------------------------
// Types

// Client manages HTTP requests with configurable settings such as retries and timeouts.
type Client struct {
	baseURL          string
	debug            bool
	httpClient       *http.Client
	logger           logger.Interface
	header           http.Header
	retryCount       uint
	retryWaitTime    time.Duration
	retryMaxWaitTime time.Duration
}

// Option defines a function to configure a Client instance.
type Option func(*Client) error

// --------------------------------------------------------------------------------
// Constructors

// New creates a new Client with default settings and applies the provided options.
//
// Example:
//
//	client, err := New("https://api.example.com",
//	    WithTimeout(15*time.Second),
//	    WithRetries(3, 200*time.Millisecond, 5*time.Second),
//	)
func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:          strings.TrimRight(baseURL, "/"),
		httpClient:       &http.Client{Timeout: DefaultTimeout},
		logger:           logger.Nop(),
		header:           make(http.Header),
		retryCount:       DefaultRetryCount,
		retryWaitTime:    DefaultRetryWaitTime,
		retryMaxWaitTime: DefaultRetryMaxWaitTime,
	}

	return c.With(opts...)
}

// --------------------------------------------------------------------------------
// Public Methods

// With applies a list of options to an existing Client and returns the modified instance.
func (c *Client) With(opts ...Option) (*Client, error) {
	for i, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(c); err != nil {
			return c, fmt.Errorf("failed to apply option at index %d: %w", i, err)
		}
	}

	return c, nil
}

// R creates a new Request inheriting the Client's headers and retry settings.
//
// Example:
//
//	resp, err := client.R(WithContext(ctx), WithResult(&out)).Get("/users")
func (c *Client) R(opts ...RequestOption) *Request {
	r := &Request{
		header:           c.header.Clone(),
		query:            make(url.Values),
		retryCount:       c.retryCount,
		retryWaitTime:    c.retryWaitTime,
		retryMaxWaitTime: c.retryMaxWaitTime,
		client:           c,
		ctx:              context.Background(),
	}

	if _, err := r.With(opts...); err != nil {
		r.err = err
	}

	return r
}

// BaseURL returns the URL every request path is appended to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// --------------------------------------------------------------------------------
// Configuration Options

// WithDebug enables or disables colorized request/response dumps.
func WithDebug(debug bool) Option {
	return func(c *Client) error {
		c.debug = debug

		return nil
	}
}

// WithTimeout sets the HTTP request timeout for the Client.
//
// A negative timeout falls back to the default.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout < 0 {
			timeout = DefaultTimeout
		}

		c.httpClient.Timeout = timeout

		return nil
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("http client cannot be nil")
		}

		c.httpClient = hc

		return nil
	}
}

// WithProxy configures the Client to use a specified proxy URL.
func WithProxy(proxyURL string) Option {
	return func(c *Client) error {
		pURL, err := url.Parse(proxyURL)
		if err != nil {
			return fmt.Errorf("invalid proxy URL: %w", err)
		}

		return setTransportProxy(c, http.ProxyURL(pURL))
	}
}

// WithEnvProxy configures the Client to use proxy settings from the environment.
func WithEnvProxy() Option {
	return func(c *Client) error {
		return setTransportProxy(c, http.ProxyFromEnvironment)
	}
}

// WithRetries configures retry settings for the Client.
//
// Requests are retried on transport errors and 5xx responses. Negative wait
// times fall back to the defaults.
func WithRetries(count uint, waitTime, maxWaitTime time.Duration) Option {
	return func(c *Client) error {
		if waitTime < 0 {
			waitTime = DefaultRetryWaitTime
		}

		if maxWaitTime < 0 {
			maxWaitTime = DefaultRetryMaxWaitTime
		}

		c.retryCount = count
		c.retryWaitTime = waitTime
		c.retryMaxWaitTime = maxWaitTime

		return nil
	}
}

// WithDefaultHeader sets a header sent with every request.
func WithDefaultHeader(key, value string) Option {
	return func(c *Client) error {
		if key == "" {
			return ErrEmptyKey
		}

		c.header.Set(key, value)

		return nil
	}
}

// WithLogger sets the logger used for retries and failures.
func WithLogger(l logger.Interface) Option {
	return func(c *Client) error {
		if l == nil {
			return errors.New("logger cannot be nil")
		}

		c.logger = l

		return nil
	}
}

// --------------------------------------------------------------------------------
// Private Helpers

// setTransportProxy configures the HTTP transport with a proxy function.
func setTransportProxy(c *Client, proxy func(*http.Request) (*url.URL, error)) error {
	if c.httpClient.Transport == nil {
		c.httpClient.Transport = http.DefaultTransport.(*http.Transport).Clone()
	}

	transport, ok := c.httpClient.Transport.(*http.Transport)
	if !ok {
		return ErrInvalidTransport
	}

	transport.Proxy = proxy

	return nil
}
