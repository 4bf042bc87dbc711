// Package gamelink defines the transport contract shared by the game channel
// client and its WebSocket dialers.
//
// The channel package owns the reconnect and dispatch logic; the websocket and
// coder packages provide Dialer implementations on top of gorilla/websocket and
// coder/websocket respectively.
package gamelink

import (
	"context"
)

type MessageType int

const (
	// MessageText is for UTF-8 encoded text messages like JSON.
	MessageText MessageType = iota + 1
	// MessageBinary is for binary messages like protobufs.
	MessageBinary
)

// String returns the frame type name used in logs.
func (t MessageType) String() string {
	switch t {
	case MessageText:
		return "text"
	case MessageBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Conn is one established bidirectional connection.
//
// Read is called from a single goroutine. Write may be called concurrently
// with Read but callers serialize Writes. Close unblocks a pending Read.
type Conn interface {
	Read(ctx context.Context) (MessageType, []byte, error)
	Write(ctx context.Context, typ MessageType, p []byte) error
	Close() error
}

// Dialer opens connections to a URL.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, url string) (Conn, error)

// Dial calls f(ctx, url).
func (f DialerFunc) Dial(ctx context.Context, url string) (Conn, error) {
	return f(ctx, url)
}
