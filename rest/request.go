package rest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/bytedance/sonic"
	"github.com/qntx/gamelink/util"
)

// --------------------------------------------------------------------------------
// Errors

var (
	// ErrMethodRequired indicates that the request method is missing.
	ErrMethodRequired = errors.New("request method is required")
	// ErrURLRequired indicates that the request URL is missing.
	ErrURLRequired = errors.New("request URL is required")
	// ErrEmptyKey indicates that a header or query key is empty.
	ErrEmptyKey = errors.New("key cannot be empty")
	// ErrNilContext indicates that a nil context was provided.
	ErrNilContext = errors.New("context cannot be nil")
)

// --------------------------------------------------------------------------------
// Types

// Request is one HTTP call being built. Configure it with RequestOptions and
// send it with Get, Post, Put, Delete or Execute.
type Request struct {
	method           string
	url              string
	header           http.Header
	query            map[string][]string
	body             any
	result           any
	errResult        any
	retryCount       uint
	retryWaitTime    time.Duration
	retryMaxWaitTime time.Duration
	time             time.Time
	client           *Client
	attempt          uint
	ctx              context.Context
	err              error // First option error; reported on execute.
}

// RequestOption defines a function to configure a Request instance.
type RequestOption func(*Request) error

// --------------------------------------------------------------------------------
// Public Methods

// With applies a list of options to the Request and returns the modified instance.
func (r *Request) With(opts ...RequestOption) (*Request, error) {
	for i, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(r); err != nil {
			return r, fmt.Errorf("failed to apply option at index %d: %w", i, err)
		}
	}

	return r, nil
}

// Get executes a GET request with the specified URL.
func (r *Request) Get(url string) (*Response, error) {
	return r.execute(http.MethodGet, url)
}

// Post executes a POST request with the specified URL.
func (r *Request) Post(url string) (*Response, error) {
	return r.execute(http.MethodPost, url)
}

// Put executes a PUT request with the specified URL.
func (r *Request) Put(url string) (*Response, error) {
	return r.execute(http.MethodPut, url)
}

// Delete executes a DELETE request with the specified URL.
func (r *Request) Delete(url string) (*Response, error) {
	return r.execute(http.MethodDelete, url)
}

// Execute sends the request configured with WithMethod and WithURL.
func (r *Request) Execute() (*Response, error) {
	if r.method == "" {
		return nil, ErrMethodRequired
	}

	if r.url == "" {
		return nil, ErrURLRequired
	}

	return r.execute(r.method, r.url)
}

// --------------------------------------------------------------------------------
// Private Methods

// execute performs the request, retrying transport errors and 5xx responses.
func (r *Request) execute(method, url string) (*Response, error) {
	if r.err != nil {
		return nil, r.err
	}

	r.method = method
	r.url = url
	r.time = time.Now()

	for {
		resp, err := r.do()
		r.attempt++

		if err == nil && resp.StatusCode() < http.StatusInternalServerError {
			return resp, nil
		}

		if r.attempt > r.retryCount || r.ctx.Err() != nil {
			return resp, err
		}

		if err != nil {
			r.client.logger.Warn("%s %s failed (attempt %d/%d): %v", r.method, r.url, r.attempt, r.retryCount+1, err)
		} else {
			r.client.logger.Warn("%s %s returned %d (attempt %d/%d)", r.method, r.url, resp.StatusCode(), r.attempt, r.retryCount+1)
		}

		if err := util.Wait(r.ctx, r.attempt, r.retryWaitTime, r.retryMaxWaitTime, util.DefaultJitterFactor); err != nil {
			return nil, err
		}
	}
}

// do constructs and sends the HTTP request, returning the response.
func (r *Request) do() (*Response, error) {
	req, err := r.newRequest()
	if err != nil {
		return nil, err
	}

	if r.client.debug {
		PrintRequest(req)
	}

	resp, err := r.client.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	response, err := NewResponse(r, resp)
	if err != nil {
		return nil, err
	}

	if r.client.debug {
		PrintResponse(response)
	}

	return response, nil
}

// newRequest constructs an HTTP request from the configured settings.
func (r *Request) newRequest() (*http.Request, error) {
	var body io.Reader

	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON body: %w", err)
		}

		r.header.Set("Content-Type", "application/json")

		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(r.ctx, r.method, buildFullURL(r.client.baseURL, r.url, r.query), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, values := range r.header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	return req, nil
}

// --------------------------------------------------------------------------------
// Configuration Options

// WithMethod sets the HTTP method for the request (e.g., "GET", "POST").
func WithMethod(method string) RequestOption {
	return func(r *Request) error {
		r.method = strings.ToUpper(method)

		return nil
	}
}

// WithURL sets the request URL path, relative to the client's base URL.
func WithURL(url string) RequestOption {
	return func(r *Request) error {
		r.url = url

		return nil
	}
}

// WithHeader adds a single header key-value pair to the request.
func WithHeader(key, value string) RequestOption {
	return func(r *Request) error {
		if key == "" {
			return ErrEmptyKey
		}

		r.header.Set(key, value)

		return nil
	}
}

// WithQuery adds a single query parameter to the request.
func WithQuery(key, value string) RequestOption {
	return func(r *Request) error {
		if key == "" {
			return ErrEmptyKey
		}

		r.query[key] = []string{value}

		return nil
	}
}

// WithBody sets the request body to be marshaled as JSON.
func WithBody(body any) RequestOption {
	return func(r *Request) error {
		r.body = body

		return nil
	}
}

// WithResult sets the target for unmarshaling a successful JSON response body.
func WithResult(result any) RequestOption {
	return func(r *Request) error {
		r.result = result

		return nil
	}
}

// WithError sets the target for unmarshaling an error JSON response body.
func WithError(err any) RequestOption {
	return func(r *Request) error {
		r.errResult = err

		return nil
	}
}

// WithContext sets the context for the request, controlling its lifecycle.
func WithContext(ctx context.Context) RequestOption {
	return func(r *Request) error {
		if ctx == nil {
			return ErrNilContext
		}

		r.ctx = ctx

		return nil
	}
}
