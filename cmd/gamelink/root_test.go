package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", "testdata-missing.env"}, args...))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := cmd.ExecuteContext(ctx)

	return out.String(), err
}

func TestAPICommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if r.URL.Path != "/api/players" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"no such endpoint"}`))

			return
		}

		_, _ = w.Write([]byte(`[{"name":"ana"}]`))
	}))
	t.Cleanup(srv.Close)

	t.Setenv("GAMELINK_API_URL", srv.URL+"/api")

	out, err := run(t, "api", "get", "/players")
	require.NoError(t, err)
	assert.Contains(t, out, `"success": true`)
	assert.Contains(t, out, `"ana"`)

	out, err = run(t, "api", "get", "/missing")
	require.EqualError(t, err, "no such endpoint")
	assert.Contains(t, out, `"success": false`)
}

func TestAPICommandInvalidBody(t *testing.T) {
	_, err := run(t, "api", "post", "/players", "{not json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")
}

func TestSendCommand(t *testing.T) {
	frames := make(chan []byte, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}

		frames <- frame
	}))
	t.Cleanup(srv.Close)

	t.Setenv("GAMELINK_URL", "ws"+strings.TrimPrefix(srv.URL, "http"))
	t.Setenv("GAMELINK_RETRY_COUNT", "0")

	_, err := run(t, "send", "move", `{"x":1}`)
	require.NoError(t, err)

	select {
	case frame := <-frames:
		assert.JSONEq(t, `{"type":"move","data":{"x":1}}`, string(frame))
	case <-time.After(5 * time.Second):
		t.Fatal("server received nothing")
	}
}

func TestInvalidConfig(t *testing.T) {
	t.Setenv("GAMELINK_TRANSPORT", "carrier-pigeon")

	_, err := run(t, "send", "move")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GAMELINK_TRANSPORT")
}
