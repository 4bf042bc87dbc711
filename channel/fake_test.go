package channel

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/qntx/gamelink"
	"github.com/qntx/gamelink/logger"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------------
// Fake transport

var errDial = errors.New("connection refused")

type fakeConn struct {
	in   chan []byte
	done chan struct{}
	once sync.Once

	mu   sync.Mutex
	sent [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte), done: make(chan struct{})}
}

func (f *fakeConn) Read(ctx context.Context) (gamelink.MessageType, []byte, error) {
	select {
	case p := <-f.in:
		return gamelink.MessageText, p, nil
	case <-f.done:
		return 0, nil, io.EOF
	}
}

func (f *fakeConn) Write(_ context.Context, _ gamelink.MessageType, p []byte) error {
	select {
	case <-f.done:
		return io.ErrClosedPipe
	default:
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = append(f.sent, p)

	return nil
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.done) })

	return nil
}

// deliver hands a frame to the client's reader, blocking until it is taken.
func (f *fakeConn) deliver(t *testing.T, frame string) {
	t.Helper()

	select {
	case f.in <- []byte(frame):
	case <-time.After(time.Second):
		t.Fatalf("reader did not take frame %q", frame)
	}
}

func (f *fakeConn) written() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([][]byte(nil), f.sent...)
}

func (f *fakeConn) isClosed() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

type fakeDialer struct {
	mu    sync.Mutex
	fail  bool
	gate  chan struct{} // When set, Dial blocks until it is closed or ctx ends.
	dials int
	conns []*fakeConn
}

func (d *fakeDialer) Dial(ctx context.Context, _ string) (gamelink.Conn, error) {
	d.mu.Lock()
	d.dials++
	gate, fail := d.gate, d.fail
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if fail {
		return nil, errDial
	}

	c := newFakeConn()

	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()

	return c, nil
}

func (d *fakeDialer) setFail(fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.fail = fail
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.dials
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.conns) == 0 {
		return nil
	}

	return d.conns[len(d.conns)-1]
}

// --------------------------------------------------------------------------------
// Manual clock

type manualTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

// manualClock records scheduled retries; tests fire them explicitly.
type manualClock struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (m *manualClock) after(d time.Duration, fn func()) func() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &manualTimer{delay: d, fn: fn}
	m.timers = append(m.timers, t)

	return func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()

		if t.stopped || t.fired {
			return false
		}

		t.stopped = true

		return true
	}
}

func (m *manualClock) delays() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]time.Duration, 0, len(m.timers))
	for _, t := range m.timers {
		out = append(out, t.delay)
	}

	return out
}

func (m *manualClock) pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0

	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}

	return n
}

// fireNext runs the oldest live timer on the calling goroutine.
func (m *manualClock) fireNext() bool {
	m.mu.Lock()

	var next *manualTimer

	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			next = t

			break
		}
	}

	if next == nil {
		m.mu.Unlock()

		return false
	}

	next.fired = true
	m.mu.Unlock()

	next.fn()

	return true
}

// forceFire runs timer i even if it was stopped, as a timer that lost the race with Stop would.
func (m *manualClock) forceFire(i int) {
	m.mu.Lock()
	t := m.timers[i]
	m.mu.Unlock()

	t.fn()
}

// --------------------------------------------------------------------------------
// Helpers

const testURL = "ws://game.test/ws"

func newTestClient(t *testing.T, d *fakeDialer, opts ...Option) (*Client, *manualClock) {
	t.Helper()

	base := []Option{
		WithDialer(d),
		WithLogger(logger.Nop()),
		WithRetries(DefaultRetryCount, DefaultRetryWait, DefaultRetryMaxWait),
	}

	c, err := New(testURL, append(base, opts...)...)
	require.NoError(t, err)

	clock := &manualClock{}
	c.after = clock.after

	t.Cleanup(c.Disconnect)

	return c, clock
}

func waitState(t *testing.T, c *Client, want State) {
	t.Helper()

	require.Eventually(t, func() bool { return c.State() == want }, time.Second, 5*time.Millisecond,
		"state never became %s (now %s)", want, c.State())
}
