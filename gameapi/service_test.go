package gameapi_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/qntx/gamelink/gameapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type match struct {
	ID      string   `json:"id"`
	Players []string `json:"players"`
}

func newService(t *testing.T, h http.HandlerFunc) *gameapi.Service {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	s, err := gameapi.New(srv.URL, nil)
	require.NoError(t, err)

	return s
}

func TestCalls(t *testing.T) {
	t.Parallel()

	s := newService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "application/json")

		switch r.Method {
		case http.MethodGet, http.MethodDelete:
			_ = json.NewEncoder(w).Encode(match{ID: "m1", Players: []string{"neo"}})
		default:
			body, _ := io.ReadAll(r.Body)
			_, _ = w.Write(body)
		}
	})

	tests := []struct {
		name string
		call func() gameapi.Response[match]
	}{
		{name: "Get", call: func() gameapi.Response[match] { return gameapi.Get[match](testContext(t), s, "/matches/m1") }},
		{name: "Delete", call: func() gameapi.Response[match] { return gameapi.Delete[match](testContext(t), s, "/matches/m1") }},
		{name: "Post", call: func() gameapi.Response[match] {
			return gameapi.Post[match](testContext(t), s, "/matches", match{ID: "m1", Players: []string{"neo"}})
		}},
		{name: "Put", call: func() gameapi.Response[match] {
			return gameapi.Put[match](testContext(t), s, "/matches/m1", match{ID: "m1", Players: []string{"neo"}})
		}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := tt.call()
			assert.True(t, got.Success)
			assert.Empty(t, got.Error)
			assert.Equal(t, match{ID: "m1", Players: []string{"neo"}}, got.Data)
		})
	}
}

func TestServerError(t *testing.T) {
	t.Parallel()

	s := newService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"error":"match is full"}`)
	})

	got := gameapi.Post[match](testContext(t), s, "/matches/m1/join", map[string]string{"player": "smith"})
	assert.False(t, got.Success)
	assert.Equal(t, "match is full", got.Error)
}

func TestServerErrorWithoutMessage(t *testing.T) {
	t.Parallel()

	s := newService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{}`)
	})

	got := gameapi.Get[match](testContext(t), s, "/matches")
	assert.False(t, got.Success)
	assert.Equal(t, gameapi.UnknownError, got.Error)
}

func TestTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	s, err := gameapi.New(srv.URL, nil)
	require.NoError(t, err)

	got := gameapi.Get[match](testContext(t), s, "/matches")
	assert.False(t, got.Success)
	assert.NotEmpty(t, got.Error)
}

func TestBodyDecodedWithoutJSONContentType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		want        gameapi.Response[match]
	}{
		{
			name:   "SuccessWithoutContentType",
			status: http.StatusOK,
			body:   `{"id":"m1","players":["neo"]}`,
			want:   gameapi.Response[match]{Success: true, Data: match{ID: "m1", Players: []string{"neo"}}},
		},
		{
			name:        "SuccessAsPlainText",
			status:      http.StatusOK,
			contentType: "text/plain",
			body:        `{"id":"m2"}`,
			want:        gameapi.Response[match]{Success: true, Data: match{ID: "m2"}},
		},
		{
			name:   "ErrorWithoutContentType",
			status: http.StatusConflict,
			body:   `{"error":"match is full"}`,
			want:   gameapi.Response[match]{Error: "match is full"},
		},
		{
			name:        "ErrorAsHTML",
			status:      http.StatusBadGateway,
			contentType: "text/html",
			body:        `<html>bad gateway</html>`,
			want:        gameapi.Response[match]{Error: gameapi.UnknownError},
		},
		{
			name:   "NoContent",
			status: http.StatusNoContent,
			want:   gameapi.Response[match]{Success: true},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := newService(t, func(w http.ResponseWriter, _ *http.Request) {
				if tt.contentType != "" {
					w.Header().Set("Content-Type", tt.contentType)
				} else {
					w.Header()["Content-Type"] = nil
				}

				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			assert.Equal(t, tt.want, gameapi.Get[match](testContext(t), s, "/matches/m1"))
		})
	}
}

func TestUndecodableSuccessBody(t *testing.T) {
	t.Parallel()

	s := newService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, `<html>maintenance</html>`)
	})

	got := gameapi.Get[match](testContext(t), s, "/matches/m1")
	assert.False(t, got.Success)
	assert.NotEmpty(t, got.Error)
	assert.Zero(t, got.Data)
}
