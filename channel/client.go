// Package channel implements the game message channel: one reconnecting
// connection, a typed envelope codec, and a handler table keyed by message kind.
//
// A Client moves through Idle, Connecting, Open, ClosedRetrying and
// ClosedPermanent. Unexpected closures are retried with capped exponential
// backoff; Disconnect stops everything until the next Connect.
package channel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qntx/gamelink"
	"github.com/qntx/gamelink/logger"
	"github.com/qntx/gamelink/util"
	"github.com/qntx/gamelink/websocket"
)

// --------------------------------------------------------------------------------
// Constants

// Constants defining default configuration values for the channel client.
const (
	DefaultRetryCount   = 5                // Default number of automatic reconnection attempts.
	DefaultRetryWait    = 1 * time.Second  // Default backoff base.
	DefaultRetryMaxWait = 30 * time.Second // Default backoff cap.
	DefaultWriteTimeout = 10 * time.Second // Default deadline for a single Send.
)

// --------------------------------------------------------------------------------
// Errors

var (
	// ErrNotConnected is returned by Send when the channel is not open.
	ErrNotConnected = errors.New("gamelink/channel: channel is not open")
	// ErrEmptyKind is returned for an empty message kind.
	ErrEmptyKind = errors.New("gamelink/channel: message kind cannot be empty")
	// ErrDisconnected resolves a connect attempt overtaken by Disconnect.
	ErrDisconnected = errors.New("gamelink/channel: disconnected")
)

// --------------------------------------------------------------------------------
// Types

// State is the lifecycle state of a Client.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosedRetrying
	StateClosedPermanent
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosedRetrying:
		return "closed-retrying"
	case StateClosedPermanent:
		return "closed-permanent"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// HandlerFunc receives the payload of an envelope of the kind it is registered for.
type HandlerFunc func(data Payload)

// Option defines a function that configures a Client and returns an error if configuration fails.
type Option func(*Client) error

// afterFunc schedules f after d and returns a function that cancels it.
type afterFunc func(d time.Duration, f func()) (stop func() bool)

// Client is a reconnecting message channel. It is safe for concurrent use.
//
// Handlers run on the connection's reader goroutine, one envelope at a time.
// They may call any Client method, including On, Off, Send and Disconnect.
type Client struct {
	id           string
	url          string
	dialer       gamelink.Dialer
	logger       logger.Interface
	retryCount   uint
	retryWait    time.Duration
	retryMaxWait time.Duration
	writeTimeout time.Duration
	debug        bool
	after        afterFunc

	mu         sync.Mutex // Protects everything below up to sendMu.
	state      State
	conn       gamelink.Conn
	gen        uint64 // Bumped whenever a new attempt starts or Disconnect runs.
	attempts   uint   // Automatic retries since the last successful open.
	pending    *attempt
	cancelDial context.CancelFunc
	stopRetry  func() bool

	sendMu sync.Mutex // Serializes writes on the connection.

	handlersMu sync.RWMutex
	handlers   map[string]HandlerFunc

	onConnect func(*Client)
	onClose   func(error, *Client)
	onRetry   func(attempt, maxAttempts uint, delay time.Duration, c *Client)
}

// attempt is one in-flight connect. done is closed once err is final.
type attempt struct {
	done chan struct{}
	err  error
}

func (a *attempt) resolve(err error) {
	a.err = err
	close(a.done)
}

func (a *attempt) wait(ctx context.Context) error {
	select {
	case <-a.done:
		return a.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// --------------------------------------------------------------------------------
// Initialization

// New creates a Client for endpoint. Nothing is dialed until Connect.
//
// Without WithDialer, a gorilla/websocket dialer with default settings is used.
func New(endpoint string, opts ...Option) (*Client, error) {
	l, err := logger.New("info", os.Stdout)
	if err != nil {
		return nil, err
	}

	c := &Client{
		id:           uuid.NewString(),
		url:          endpoint,
		logger:       l,
		retryCount:   DefaultRetryCount,
		retryWait:    DefaultRetryWait,
		retryMaxWait: DefaultRetryMaxWait,
		writeTimeout: DefaultWriteTimeout,
		after: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
		handlers: make(map[string]HandlerFunc),
	}

	if _, err := c.With(opts...); err != nil {
		return nil, err
	}

	if c.dialer == nil {
		d, err := websocket.New(websocket.WithLogger(c.logger), websocket.WithDebug(c.debug))
		if err != nil {
			return nil, err
		}

		c.dialer = d
	}

	c.logger = c.logger.With("client", c.id)

	return c, nil
}

// With applies a list of options to the Client and returns the modified instance along with any error.
func (c *Client) With(opts ...Option) (*Client, error) {
	for i, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(c); err != nil {
			return c, fmt.Errorf("failed to apply option at index %d: %w", i, err)
		}
	}

	c.normalizeRetries()

	return c, nil
}

// normalizeRetries replaces negative backoff durations with the defaults. It
// runs after all options so the warning reaches the configured logger.
func (c *Client) normalizeRetries() {
	if c.retryWait < 0 {
		c.logger.Warn("retry wait time must be non-negative, using default")

		c.retryWait = DefaultRetryWait
	}

	if c.retryMaxWait < 0 {
		c.logger.Warn("retry max wait time must be non-negative, using default")

		c.retryMaxWait = DefaultRetryMaxWait
	}
}

// ID returns the client's session identifier, attached to every log entry.
func (c *Client) ID() string {
	return c.id
}

// URL returns the endpoint the client dials.
func (c *Client) URL() string {
	return c.url
}

// State reports the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// --------------------------------------------------------------------------------
// Connection Management

// Connect establishes the channel and blocks until it is open or the attempt fails.
//
// If an attempt is already in flight, Connect waits for that attempt instead of
// starting another. If the channel is already open it returns nil. Calling
// Connect after Disconnect or after retries were exhausted starts over with a
// fresh retry budget. A failed attempt also schedules an automatic retry.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()

	switch c.state {
	case StateOpen:
		c.mu.Unlock()

		return nil
	case StateConnecting:
		a := c.pending
		c.mu.Unlock()

		return a.wait(ctx)
	case StateClosedRetrying:
		c.cancelRetryLocked()
	case StateClosedPermanent:
		c.attempts = 0
	}

	a, gen, dctx := c.beginLocked(ctx)
	c.mu.Unlock()

	c.establish(dctx, a, gen)

	return a.err
}

// Disconnect cancels any scheduled retry or in-flight dial, closes the
// connection, and leaves the client ClosedPermanent. It is idempotent, and no
// retry starts after it returns. OnClose fires only when a connection was open
// or a dial was in flight.
func (c *Client) Disconnect() {
	c.mu.Lock()

	if c.state == StateClosedPermanent && c.conn == nil {
		c.mu.Unlock()

		return
	}

	// Only a live connection or an in-flight dial has anything to report.
	active := c.conn != nil || c.state == StateConnecting

	c.gen++
	c.cancelRetryLocked()

	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}

	conn := c.conn
	c.conn = nil
	c.state = StateClosedPermanent
	c.mu.Unlock()

	if conn != nil {
		c.closeConn(conn)
	}

	if !active {
		return
	}

	c.logger.Info("Disconnected from %s", c.url)

	if c.onClose != nil {
		c.onClose(nil, c)
	}
}

// --------------------------------------------------------------------------------
// Messaging

// Send encodes (kind, payload) and writes it if the channel is open.
//
// It never queues: when the channel is not open it logs and returns ErrNotConnected.
func (c *Client) Send(kind string, payload any) error {
	frame, err := EncodeEnvelope(kind, payload)
	if err != nil {
		c.logger.Error("Send %q failed: %v", kind, err)

		return err
	}

	c.mu.Lock()
	conn, state := c.conn, c.state
	c.mu.Unlock()

	if state != StateOpen || conn == nil {
		c.logger.Warn("Send %q dropped: channel is %s", kind, state)

		return ErrNotConnected
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.writeTimeout)
	defer cancel()

	if err := conn.Write(ctx, gamelink.MessageText, frame); err != nil {
		c.logger.Error("Send %q failed: %v", kind, err)

		return fmt.Errorf("send %q: %w", kind, err)
	}

	return nil
}

// On registers handler for kind, replacing any previous handler.
func (c *Client) On(kind string, handler HandlerFunc) {
	if handler == nil {
		c.Off(kind)

		return
	}

	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()

	c.handlers[kind] = handler
}

// Off removes the handler for kind, if any.
func (c *Client) Off(kind string) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()

	delete(c.handlers, kind)
}

// --------------------------------------------------------------------------------
// Lifecycle (Private)

// beginLocked enters Connecting with a new generation and attempt.
func (c *Client) beginLocked(parent context.Context) (*attempt, uint64, context.Context) {
	c.gen++
	c.state = StateConnecting
	c.pending = &attempt{done: make(chan struct{})}

	ctx, cancel := context.WithCancel(parent)
	c.cancelDial = cancel

	return c.pending, c.gen, ctx
}

// establish dials and resolves a. gen identifies the attempt; if it no longer
// matches, Disconnect or a newer attempt took over and the result is discarded.
func (c *Client) establish(ctx context.Context, a *attempt, gen uint64) {
	c.logger.Debug("Connecting to %s", c.url)

	conn, err := c.dialer.Dial(ctx, c.url)

	c.mu.Lock()

	if gen != c.gen {
		c.mu.Unlock()

		if conn != nil {
			c.closeConn(conn)
		}

		a.resolve(ErrDisconnected)

		return
	}

	c.cancelDial()
	c.cancelDial = nil
	c.pending = nil

	if err != nil {
		retry := c.failLocked(gen)
		c.mu.Unlock()

		c.logger.Error("Connect to %s failed: %v", c.url, err)
		a.resolve(fmt.Errorf("connect %s: %w", c.url, err))
		c.notifyFailure(err, retry)

		return
	}

	c.conn = conn
	c.state = StateOpen
	c.attempts = 0
	c.mu.Unlock()

	c.logger.Info("Connected to %s", c.url)

	go c.readLoop(conn, gen)

	a.resolve(nil)

	if c.onConnect != nil {
		c.onConnect(c)
	}
}

// retryPlan describes what failLocked scheduled.
type retryPlan struct {
	scheduled bool
	attempt   uint
	delay     time.Duration
}

// failLocked handles an unexpected closure for generation gen: it schedules the
// next retry, or moves to ClosedPermanent once the retry budget is spent.
func (c *Client) failLocked(gen uint64) retryPlan {
	c.conn = nil

	if c.attempts >= c.retryCount {
		c.state = StateClosedPermanent

		return retryPlan{}
	}

	c.attempts++
	delay := util.Backoff(c.attempts, c.retryWait, c.retryMaxWait)
	c.state = StateClosedRetrying
	c.stopRetry = c.after(delay, func() { c.retry(gen) })

	return retryPlan{scheduled: true, attempt: c.attempts, delay: delay}
}

// retry runs when a scheduled backoff elapses.
func (c *Client) retry(gen uint64) {
	c.mu.Lock()

	if gen != c.gen || c.state != StateClosedRetrying {
		c.mu.Unlock()

		return
	}

	c.stopRetry = nil
	a, next, ctx := c.beginLocked(context.Background())
	c.mu.Unlock()

	c.establish(ctx, a, next)
}

func (c *Client) cancelRetryLocked() {
	if c.stopRetry != nil {
		c.stopRetry()
		c.stopRetry = nil
	}
}

// lost handles the end of connection gen's read loop.
func (c *Client) lost(conn gamelink.Conn, gen uint64, cause error) {
	c.mu.Lock()

	if gen != c.gen || c.state != StateOpen {
		c.mu.Unlock()

		return
	}

	plan := c.failLocked(gen)
	c.mu.Unlock()

	c.logger.Warn("Connection lost: %v", cause)
	c.closeConn(conn)

	if c.onClose != nil {
		c.onClose(cause, c)
	}

	c.notifyFailure(cause, plan)
}

func (c *Client) notifyFailure(cause error, plan retryPlan) {
	if c.debug {
		websocket.PrintErrorMessage(cause)
	}

	if !plan.scheduled {
		c.logger.Error("Reconnection stopped after %d attempts", c.retryCount)

		return
	}

	c.logger.Info("Reconnecting in %v (attempt %d/%d)", plan.delay, plan.attempt, c.retryCount)

	if c.debug {
		websocket.PrintRetryMessage(plan.attempt, c.retryCount, plan.delay, cause)
	}

	if c.onRetry != nil {
		c.onRetry(plan.attempt, c.retryCount, plan.delay, c)
	}
}

func (c *Client) closeConn(conn gamelink.Conn) {
	if err := conn.Close(); err != nil {
		c.logger.Debug("Close failed: %v", err)
	}
}

// --------------------------------------------------------------------------------
// Dispatch (Private)

// readLoop reads frames from conn until it fails, dispatching each in order.
func (c *Client) readLoop(conn gamelink.Conn, gen uint64) {
	for {
		_, frame, err := conn.Read(context.Background())
		if err != nil {
			c.lost(conn, gen, err)

			return
		}

		c.dispatch(frame)
	}
}

// dispatch decodes frame and invokes the handler registered for its kind at
// this moment. Malformed frames and unknown kinds are dropped.
func (c *Client) dispatch(frame []byte) {
	env, err := DecodeEnvelope(frame)
	if err != nil {
		c.logger.Warn("Dropping message: %v", err)

		return
	}

	c.handlersMu.RLock()
	h, ok := c.handlers[env.Type]
	c.handlersMu.RUnlock()

	if !ok {
		c.logger.Debug("No handler for %q", env.Type)

		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Handler for %q panicked: %v", env.Type, r)
		}
	}()

	h(env.Data)
}

// --------------------------------------------------------------------------------
// Option Functions

// WithDialer sets the transport used to open connections.
func WithDialer(d gamelink.Dialer) Option {
	return func(c *Client) error {
		if d == nil {
			return errors.New("dialer cannot be nil")
		}

		c.dialer = d

		return nil
	}
}

// WithRetries configures the retry budget and the backoff base and cap.
//
// Negative durations fall back to the defaults with a warning.
func WithRetries(count uint, wait, maxWait time.Duration) Option {
	return func(c *Client) error {
		c.retryCount = count
		c.retryWait = wait
		c.retryMaxWait = maxWait

		return nil
	}
}

// WithWriteTimeout bounds each Send.
func WithWriteTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout <= 0 {
			return fmt.Errorf("write timeout must be positive: %v", timeout)
		}

		c.writeTimeout = timeout

		return nil
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(l logger.Interface) Option {
	return func(c *Client) error {
		if l == nil {
			return errors.New("logger cannot be nil")
		}

		c.logger = l

		return nil
	}
}

// WithDebug prints colorized lifecycle traces. It also enables frame tracing
// on the default dialer.
func WithDebug(enable bool) Option {
	return func(c *Client) error {
		c.debug = enable

		return nil
	}
}

// OnConnect registers a callback for every successful open.
func OnConnect(fn func(*Client)) Option {
	return func(c *Client) error {
		c.onConnect = fn

		return nil
	}
}

// OnClose registers a callback for closures. err is nil for Disconnect.
func OnClose(fn func(error, *Client)) Option {
	return func(c *Client) error {
		c.onClose = fn

		return nil
	}
}

// OnRetry registers a callback invoked whenever a reconnect is scheduled.
func OnRetry(fn func(attempt, maxAttempts uint, delay time.Duration, c *Client)) Option {
	return func(c *Client) error {
		c.onRetry = fn

		return nil
	}
}
