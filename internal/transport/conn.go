// Package transport defines the message channel the STOMP session runs over.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Conn abstracts a WebSocket connection carrying text frames.
// Implementations must allow Write and Close concurrently with Read.
type Conn interface {
	// Read blocks for the next text message.
	// Returns ErrNormalClosure when the peer closed with code 1000.
	Read(ctx context.Context) ([]byte, error)

	// Write sends data as a single text message.
	Write(ctx context.Context, data []byte) error

	// Close performs a normal (1000) closure.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}

// Dialer opens a Conn to a ws:// or wss:// URL.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Options are the socket timeouts shared by all drivers.
// ReadTimeout bounds the wait for the upgrade response; an open socket may
// stay idle indefinitely.
type Options struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// DefaultOptions returns 15s connect, 60s read and 15s write timeouts.
func DefaultOptions() Options {
	return Options{
		ConnectTimeout: 15 * time.Second,
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   15 * time.Second,
	}
}

// CloseReason is sent with the normal closure frame.
const CloseReason = "Normal closure"

// ErrNormalClosure is returned by Read after the peer closed with code 1000.
var ErrNormalClosure = errors.New("websocket closed normally")

// HandshakeError is returned by Dial when the server answered the upgrade
// request with a non-101 HTTP status.
type HandshakeError struct {
	StatusCode int
	Err        error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("websocket handshake failed with HTTP %d: %v", e.StatusCode, e.Err)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// Describe renders a transport failure for the error callback, appending the
// HTTP status when the failure carried one.
func Describe(err error) string {
	msg := fmt.Sprintf("WebSocket connection failed: %v", err)
	var he *HandshakeError
	if errors.As(err, &he) {
		msg += fmt.Sprintf(" (HTTP %d)", he.StatusCode)
	}
	return msg
}
