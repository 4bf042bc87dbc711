package rest

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/bytedance/sonic"
)

// --------------------------------------------------------------------------------
// Errors

var (
	// ErrNilRequest indicates that a nil request was provided.
	ErrNilRequest = errors.New("request cannot be nil")
	// ErrNilResponse indicates that a nil raw response was provided.
	ErrNilResponse = errors.New("raw response cannot be nil")
)

// --------------------------------------------------------------------------------
// Types

// Response is the result of an executed request with its body read and cached.
type Response struct {
	request     *Request
	rawResponse *http.Response
	body        []byte
	receivedAt  time.Time
}

// --------------------------------------------------------------------------------
// Constructors

// NewResponse reads and closes raw's body. JSON bodies are decoded into the
// request's result (2xx) or error (4xx/5xx) target when one was set.
func NewResponse(req *Request, raw *http.Response) (*Response, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	if raw == nil {
		return nil, ErrNilResponse
	}

	resp := &Response{
		request:     req,
		rawResponse: raw,
		receivedAt:  time.Now(),
	}

	if err := resp.readBody(); err != nil {
		return nil, err
	}

	return resp, nil
}

// --------------------------------------------------------------------------------
// Public Methods

// Status returns the HTTP status string (e.g., "200 OK").
func (r *Response) Status() string {
	return r.rawResponse.Status
}

// StatusCode returns the HTTP status code (e.g., 200).
func (r *Response) StatusCode() int {
	return r.rawResponse.StatusCode
}

// Header returns the HTTP response headers.
func (r *Response) Header() http.Header {
	return r.rawResponse.Header
}

// String returns the response body as a string.
func (r *Response) String() string {
	return string(r.body)
}

// Bytes returns the cached response body.
func (r *Response) Bytes() []byte {
	return r.body
}

// Duration returns the time elapsed from request start to response receipt, retries included.
func (r *Response) Duration() time.Duration {
	return r.receivedAt.Sub(r.request.time)
}

// IsSuccess checks if the status code is in the 2xx range.
func (r *Response) IsSuccess() bool {
	return r.StatusCode() >= http.StatusOK && r.StatusCode() < http.StatusMultipleChoices
}

// IsError checks if the status code is 400 or above.
func (r *Response) IsError() bool {
	return r.StatusCode() >= http.StatusBadRequest
}

// IsJSON reports whether the response declared a JSON content type.
func (r *Response) IsJSON() bool {
	return strings.Contains(r.Header().Get("Content-Type"), "json")
}

// --------------------------------------------------------------------------------
// Private Methods

func (r *Response) readBody() error {
	if r.rawResponse.Body == nil {
		return nil
	}

	defer r.rawResponse.Body.Close()

	body, err := io.ReadAll(r.rawResponse.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	r.body = body

	if len(body) == 0 || !r.IsJSON() {
		return nil
	}

	if r.IsSuccess() && r.request.result != nil {
		if err := json.Unmarshal(body, r.request.result); err != nil {
			return fmt.Errorf("failed to unmarshal success response: %w", err)
		}

		return nil
	}

	if r.IsError() && r.request.errResult != nil {
		if err := json.Unmarshal(body, r.request.errResult); err != nil {
			r.request.client.logger.Debug("Ignoring undecodable error body: %v", err)
		}
	}

	return nil
}
