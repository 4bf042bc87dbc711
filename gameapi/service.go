// Package gameapi is the client for the game backend's JSON HTTP API.
//
// Every call returns a Response envelope instead of an error: failures are
// logged and reported through Success and Error so callers can render them.
package gameapi

import (
	"context"
	"net/http"

	json "github.com/bytedance/sonic"
	"github.com/qntx/gamelink/logger"
	"github.com/qntx/gamelink/rest"
)

// UnknownError is reported when the server gives no error message.
const UnknownError = "Unknown error occurred"

// Response is the outcome of one API call.
type Response[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Service calls endpoints relative to a base URL.
type Service struct {
	client *rest.Client
	logger logger.Interface
}

// New creates a Service for baseURL. Options configure the underlying REST client.
func New(baseURL string, l logger.Interface, opts ...rest.Option) (*Service, error) {
	if l == nil {
		l = logger.Nop()
	}

	opts = append([]rest.Option{
		rest.WithLogger(l),
		rest.WithDefaultHeader("Content-Type", "application/json"),
		rest.WithDefaultHeader("Accept", "application/json"),
	}, opts...)

	c, err := rest.New(baseURL, opts...)
	if err != nil {
		return nil, err
	}

	return &Service{client: c, logger: l}, nil
}

// Get fetches endpoint.
func Get[T any](ctx context.Context, s *Service, endpoint string) Response[T] {
	return call[T](ctx, s, http.MethodGet, endpoint, nil)
}

// Post sends body to endpoint.
func Post[T any](ctx context.Context, s *Service, endpoint string, body any) Response[T] {
	return call[T](ctx, s, http.MethodPost, endpoint, body)
}

// Put replaces endpoint with body.
func Put[T any](ctx context.Context, s *Service, endpoint string, body any) Response[T] {
	return call[T](ctx, s, http.MethodPut, endpoint, body)
}

// Delete removes endpoint.
func Delete[T any](ctx context.Context, s *Service, endpoint string) Response[T] {
	return call[T](ctx, s, http.MethodDelete, endpoint, nil)
}

type errorBody struct {
	Error string `json:"error"`
}

func call[T any](ctx context.Context, s *Service, method, endpoint string, body any) Response[T] {
	opts := []rest.RequestOption{
		rest.WithContext(ctx),
		rest.WithMethod(method),
		rest.WithURL(endpoint),
	}
	if body != nil {
		opts = append(opts, rest.WithBody(body))
	}

	resp, err := s.client.R(opts...).Execute()
	if err != nil {
		s.logger.Error("API %s %s error: %v", method, endpoint, err)

		return Response[T]{Error: err.Error()}
	}

	// Bodies are decoded whatever Content-Type the server declared.
	if !resp.IsSuccess() {
		var apiErr errorBody
		if err := json.Unmarshal(resp.Bytes(), &apiErr); err != nil || apiErr.Error == "" {
			apiErr.Error = UnknownError
		}

		s.logger.Warn("API %s %s returned %s: %s", method, endpoint, resp.Status(), apiErr.Error)

		return Response[T]{Error: apiErr.Error}
	}

	out := Response[T]{Success: true}

	// An empty 2xx body (204 No Content) leaves Data at its zero value.
	if len(resp.Bytes()) == 0 {
		return out
	}

	if err := json.Unmarshal(resp.Bytes(), &out.Data); err != nil {
		s.logger.Error("API %s %s returned an undecodable body: %v", method, endpoint, err)

		return Response[T]{Error: err.Error()}
	}

	return out
}
