// Package websocket provides a gamelink.Dialer built on gorilla/websocket.
//
// It covers handshake configuration (proxy, TLS, headers, subprotocols,
// compression, buffers), read limits, and optional keep-alive pings. Reconnect
// and dispatch live in the channel package; this package only moves frames.
package websocket

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/qntx/gamelink"
	"github.com/qntx/gamelink/logger"
)

// --------------------------------------------------------------------------------
// Constants

// Constants defining default configuration values for the dialer.
const (
	DefaultTimeout      = 30 * time.Second // Default timeout for handshakes and writes.
	DefaultPingInterval = 30 * time.Second // Default interval for keep-alive pings.
	DefaultPingMessage  = "ping"           // Default payload for ping messages.
)

// --------------------------------------------------------------------------------
// Errors

var (
	// ErrClosed is returned by operations on a closed connection.
	ErrClosed = errors.New("gamelink/websocket: connection closed")
	// ErrUnsupportedType is returned when writing a message type other than text or binary.
	ErrUnsupportedType = errors.New("gamelink/websocket: unsupported message type")
)

// --------------------------------------------------------------------------------
// Types

// Option defines a function that configures a Dialer and returns an error if configuration fails.
type Option func(*Dialer) error

// Config encapsulates handshake and connection settings.
//
// All fields are optional; unset values fall back to defaults defined above.
type Config struct {
	Proxy             func(*http.Request) (*url.URL, error) // Proxy routing function; nil disables proxy.
	TLSClientConfig   *tls.Config                           // TLS settings for wss://; nil uses system defaults.
	Timeout           time.Duration                         // Timeout for handshake and writes.
	ReadBufferSize    int                                   // Read buffer size in bytes; 0 for default.
	WriteBufferSize   int                                   // Write buffer size in bytes; 0 for default.
	Subprotocols      []string                              // Supported subprotocols; nil for none.
	EnableCompression bool                                  // Enables RFC 7692 per-message compression if true.
	ReadLimit         int64                                 // Max message size in bytes; 0 for no limit.
	KeepAlive         bool                                  // Enables periodic pings if true.
	PingInterval      time.Duration                         // Interval between ping messages.
	PingMessage       []byte                                // Ping payload.
	Debug             bool                                  // Prints every frame with colors.
}

var _ gamelink.Dialer = (*Dialer)(nil)

// Dialer opens gorilla/websocket connections. It is safe for concurrent use.
type Dialer struct {
	config Config
	header http.Header
	logger logger.Interface
}

// --------------------------------------------------------------------------------
// Initialization

// New creates a Dialer with the given options.
func New(opts ...Option) (*Dialer, error) {
	d := &Dialer{
		config: Config{
			Timeout:      DefaultTimeout,
			PingInterval: DefaultPingInterval,
			PingMessage:  []byte(DefaultPingMessage),
		},
		header: make(http.Header),
		logger: logger.Nop(),
	}

	return d.With(opts...)
}

// With applies a list of options to the Dialer and returns the modified instance along with any error.
func (d *Dialer) With(opts ...Option) (*Dialer, error) {
	for i, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(d); err != nil {
			return d, fmt.Errorf("failed to apply option at index %d: %w", i, err)
		}
	}

	return d, nil
}

// Config returns a copy of the dialer configuration.
func (d *Dialer) Config() Config {
	return d.config
}

// --------------------------------------------------------------------------------
// Dialing

// Dial performs the WebSocket handshake against endpoint.
func (d *Dialer) Dial(ctx context.Context, endpoint string) (gamelink.Conn, error) {
	dialer := &websocket.Dialer{
		Proxy:             d.config.Proxy,
		TLSClientConfig:   d.config.TLSClientConfig,
		HandshakeTimeout:  d.config.Timeout,
		ReadBufferSize:    d.config.ReadBufferSize,
		WriteBufferSize:   d.config.WriteBufferSize,
		Subprotocols:      d.config.Subprotocols,
		EnableCompression: d.config.EnableCompression,
	}

	ws, resp, err := dialer.DialContext(ctx, endpoint, d.header.Clone())
	if err != nil {
		if resp != nil {
			d.logger.Error("Handshake rejected: %s", resp.Status)
		}

		return nil, fmt.Errorf("dial failed: %w", err)
	}

	if d.config.ReadLimit > 0 {
		ws.SetReadLimit(d.config.ReadLimit)
	}

	c := &Conn{
		ws:     ws,
		config: d.config,
		logger: d.logger,
		done:   make(chan struct{}),
	}
	c.setupHandlers()

	if d.config.Debug {
		PrintConnectMessage(endpoint)
	}

	if d.config.KeepAlive && d.config.PingInterval > 0 {
		c.wg.Add(1)

		go c.keepAlive()
	}

	return c, nil
}

// --------------------------------------------------------------------------------
// Connection

var _ gamelink.Conn = (*Conn)(nil)

// Conn is one gorilla/websocket connection.
type Conn struct {
	ws     *websocket.Conn
	config Config
	logger logger.Interface

	writeMu   sync.Mutex // gorilla allows one concurrent writer.
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// Read returns the next text or binary frame. Control frames are handled internally.
func (c *Conn) Read(ctx context.Context) (gamelink.MessageType, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}

	typ, data, err := c.ws.ReadMessage()
	if err != nil {
		if c.config.Debug {
			PrintErrorMessage(err)
		}

		return 0, nil, fmt.Errorf("message read failed: %w", err)
	}

	if c.config.Debug {
		switch typ {
		case websocket.TextMessage:
			PrintTextMessage(data, "Received")
		case websocket.BinaryMessage:
			PrintBinaryMessage(data, "Received")
		}
	}

	switch typ {
	case websocket.BinaryMessage:
		return gamelink.MessageBinary, data, nil
	default:
		return gamelink.MessageText, data, nil
	}
}

// Write sends one data frame, honoring ctx's deadline or the configured timeout.
func (c *Conn) Write(ctx context.Context, typ gamelink.MessageType, p []byte) error {
	var wsType int

	switch typ {
	case gamelink.MessageText:
		wsType = websocket.TextMessage
	case gamelink.MessageBinary:
		wsType = websocket.BinaryMessage
	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedType, typ)
	}

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.SetWriteDeadline(c.deadline(ctx)); err != nil {
		return fmt.Errorf("set write deadline failed: %w", err)
	}

	if err := c.ws.WriteMessage(wsType, p); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}

	if c.config.Debug {
		if typ == gamelink.MessageBinary {
			PrintBinaryMessage(p, "Sent")
		} else {
			PrintTextMessage(p, "Sent")
		}
	}

	return nil
}

// Close sends a normal closure frame and releases the connection. It is idempotent.
func (c *Conn) Close() error {
	var err error

	c.closeOnce.Do(func() {
		close(c.done)

		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if werr := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); werr != nil {
			c.logger.Debug("Failed to send close message: %v", werr)
		}

		if cerr := c.ws.Close(); cerr != nil {
			err = fmt.Errorf("connection close failed: %w", cerr)
		}

		c.wg.Wait()
	})

	return err
}

// setupHandlers configures ping, pong, and close frame handlers.
func (c *Conn) setupHandlers() {
	c.ws.SetPingHandler(func(data string) error {
		c.logger.Debug("Ping received: %s", data)

		if c.config.Debug {
			PrintPingMessage([]byte(data), "Received")
		}

		err := c.ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(c.config.Timeout))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}

		return err
	})

	c.ws.SetPongHandler(func(data string) error {
		c.logger.Debug("Pong received: %s", data)

		if c.config.Debug {
			PrintPongMessage([]byte(data), "Received")
		}

		return nil
	})

	c.ws.SetCloseHandler(func(code int, text string) error {
		c.logger.Info("Connection closed by peer: %d - %s", code, text)

		if c.config.Debug {
			PrintCloseMessage(code, text)
		}

		msg := websocket.FormatCloseMessage(code, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))

		return nil
	})
}

// keepAlive sends periodic pings until the connection closes or a ping fails.
func (c *Conn) keepAlive() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, c.config.PingMessage, time.Now().Add(c.config.Timeout)); err != nil {
				c.logger.Warn("Keep-alive ping failed: %v", err)

				return
			}
		}
	}
}

func (c *Conn) deadline(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		return dl
	}

	if c.config.Timeout > 0 {
		return time.Now().Add(c.config.Timeout)
	}

	return time.Time{}
}

// --------------------------------------------------------------------------------
// Option Functions

// WithProxy configures the proxy using a URL string or custom function.
//
// Returns an error if the proxy URL is invalid or the type is unsupported.
func WithProxy(proxy any) Option {
	return func(d *Dialer) error {
		switch p := proxy.(type) {
		case string:
			if p == "" {
				d.config.Proxy = nil

				return nil
			}

			u, err := url.Parse(p)
			if err != nil {
				return fmt.Errorf("invalid proxy URL %q: %w", p, err)
			}

			d.config.Proxy = http.ProxyURL(u)
		case func(*http.Request) (*url.URL, error):
			d.config.Proxy = p
		case nil:
			d.config.Proxy = nil
		default:
			return fmt.Errorf("unsupported proxy type: %T", proxy)
		}

		return nil
	}
}

// WithEnvProxy enables proxy settings from environment variables.
func WithEnvProxy() Option {
	return func(d *Dialer) error {
		d.config.Proxy = http.ProxyFromEnvironment

		return nil
	}
}

// WithTLS sets the TLS configuration for secure connections.
func WithTLS(cfg *tls.Config) Option {
	return func(d *Dialer) error {
		d.config.TLSClientConfig = cfg

		return nil
	}
}

// WithTimeout sets the timeout for handshakes and writes.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dialer) error {
		if timeout < 0 {
			return fmt.Errorf("timeout cannot be negative: %v", timeout)
		}

		d.config.Timeout = timeout

		return nil
	}
}

// WithBuffers configures the read and write buffer sizes in bytes.
func WithBuffers(read, write int) Option {
	return func(d *Dialer) error {
		if read < 0 || write < 0 {
			return fmt.Errorf("buffer sizes cannot be negative: read=%d, write=%d", read, write)
		}

		d.config.ReadBufferSize = read
		d.config.WriteBufferSize = write

		return nil
	}
}

// WithSubprotocols specifies supported WebSocket subprotocols.
func WithSubprotocols(protos ...string) Option {
	return func(d *Dialer) error {
		d.config.Subprotocols = protos

		return nil
	}
}

// WithCompression enables or disables RFC 7692 per-message compression.
func WithCompression(enable bool) Option {
	return func(d *Dialer) error {
		d.config.EnableCompression = enable

		return nil
	}
}

// WithReadLimit sets the maximum allowed message size in bytes.
func WithReadLimit(limit int64) Option {
	return func(d *Dialer) error {
		if limit < 0 {
			return fmt.Errorf("read limit cannot be negative: %d", limit)
		}

		d.config.ReadLimit = limit

		return nil
	}
}

// WithKeepAlive enables periodic ping messages with a custom interval and payload.
func WithKeepAlive(interval time.Duration, msg []byte) Option {
	return func(d *Dialer) error {
		if interval <= 0 {
			return fmt.Errorf("ping interval must be positive: %v", interval)
		}

		d.config.KeepAlive = true
		d.config.PingInterval = interval
		d.config.PingMessage = msg

		return nil
	}
}

// WithDebug toggles colorized frame tracing on stdout.
func WithDebug(enable bool) Option {
	return func(d *Dialer) error {
		d.config.Debug = enable

		return nil
	}
}

// WithLogger sets a custom logger for the dialer and its connections.
func WithLogger(l logger.Interface) Option {
	return func(d *Dialer) error {
		if l == nil {
			return errors.New("logger cannot be nil")
		}

		d.logger = l

		return nil
	}
}

// WithHeader adds a single key-value pair to the handshake headers.
func WithHeader(key, value string) Option {
	return func(d *Dialer) error {
		if key == "" {
			return errors.New("header key cannot be empty")
		}

		d.header.Set(key, value)

		return nil
	}
}

// WithHeaders applies multiple headers to the handshake from a map.
func WithHeaders(headers map[string]string) Option {
	return func(d *Dialer) error {
		for k, v := range headers {
			if k == "" {
				return errors.New("header key cannot be empty")
			}

			d.header.Set(k, v)
		}

		return nil
	}
}
