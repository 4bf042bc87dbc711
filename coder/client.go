// Package coder provides a gamelink.Dialer built on coder/websocket.
//
// It is the context-first alternative to the gorilla based dialer in the
// websocket package.
package coder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/qntx/gamelink"
	"github.com/qntx/gamelink/logger"
)

var (
	// ErrNotConnected is returned by operations on a closed connection.
	ErrNotConnected = errors.New("gamelink/coder: websocket connection is closed")
	// ErrEmptyURL is returned by Dial when no URL is given.
	ErrEmptyURL = errors.New("gamelink/coder: URL is required")
)

// Config holds the configuration for the dialer.
type Config struct {
	Heartbeat   time.Duration // Ping interval; 0 disables heartbeats.
	ReadLimit   int64         // Max message size in bytes; 0 keeps the library default.
	DialOptions *websocket.DialOptions
	Logger      logger.Interface
}

// DefaultConfig returns a Config with a 30 second heartbeat.
func DefaultConfig() Config {
	return Config{
		Heartbeat: 30 * time.Second,
	}
}

var _ gamelink.Dialer = (*Dialer)(nil)

// Dialer opens coder/websocket connections.
type Dialer struct {
	cfg Config
}

// New creates a Dialer.
func New(cfg Config) *Dialer {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	return &Dialer{cfg: cfg}
}

// Dial establishes a WebSocket connection.
func (d *Dialer) Dial(ctx context.Context, url string) (gamelink.Conn, error) {
	if url == "" {
		return nil, ErrEmptyURL
	}

	ws, resp, err := websocket.Dial(ctx, url, d.cfg.DialOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to dial websocket: %w", err)
	}

	if d.cfg.ReadLimit > 0 {
		ws.SetReadLimit(d.cfg.ReadLimit)
	}

	hbCtx, cancel := context.WithCancel(context.Background())

	c := &Conn{
		ws:       ws,
		httpResp: resp,
		logger:   d.cfg.Logger,
		cancel:   cancel,
	}

	if d.cfg.Heartbeat > 0 {
		c.wg.Add(1)

		go c.heartbeat(hbCtx, d.cfg.Heartbeat)
	}

	return c, nil
}

var _ gamelink.Conn = (*Conn)(nil)

// Conn wraps one coder/websocket connection. It allows one concurrent reader
// and multiple concurrent writers.
type Conn struct {
	ws       *websocket.Conn
	httpResp *http.Response
	logger   logger.Interface

	mu     sync.Mutex
	closed bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Read reads a single message. Only one goroutine may call Read.
func (c *Conn) Read(ctx context.Context) (gamelink.MessageType, []byte, error) {
	ws, err := c.getConn()
	if err != nil {
		return 0, nil, err
	}

	typ, p, err := ws.Read(ctx)
	if err != nil {
		return 0, nil, err
	}

	return gamelink.MessageType(typ), p, nil
}

// Write writes a single message. It is safe for concurrent use by multiple goroutines.
func (c *Conn) Write(ctx context.Context, typ gamelink.MessageType, p []byte) error {
	ws, err := c.getConn()
	if err != nil {
		return err
	}

	return ws.Write(ctx, websocket.MessageType(typ), p)
}

// Close gracefully closes the connection. It's safe to call Close multiple times.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()

		return nil
	}

	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()

	return c.ws.Close(websocket.StatusNormalClosure, "closing connection")
}

// HandshakeResponse returns the HTTP response from the WebSocket handshake.
func (c *Conn) HandshakeResponse() *http.Response {
	return c.httpResp
}

// getConn safely retrieves the connection unless it has been closed.
func (c *Conn) getConn() (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrNotConnected
	}

	return c.ws, nil
}

// heartbeat sends periodic pings. Pongs are only observed while a Read is pending.
func (c *Conn) heartbeat(ctx context.Context, every time.Duration) {
	defer c.wg.Done()

	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		if err := c.ws.Ping(ctx); err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("Heartbeat failed: %v", err)
			}

			return
		}
	}
}
