// Package gobwas provides a WebSocket transport on github.com/gobwas/ws, for
// deployments that prefer its zero-copy net.Conn model.
package gobwas

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/omochice/counsel-chat/internal/transport"
)

// Dialer dials with gobwas/ws.
type Dialer struct {
	opts transport.Options
}

// NewDialer creates a Dialer.
func NewDialer(opts transport.Options) *Dialer {
	return &Dialer{opts: opts}
}

// Dial implements transport.Dialer.
func (d *Dialer) Dial(ctx context.Context, url string) (transport.Conn, error) {
	var status int
	netDialer := &net.Dialer{Timeout: d.opts.ConnectTimeout}
	dialer := ws.Dialer{
		Timeout: d.opts.ConnectTimeout + d.opts.ReadTimeout,
		NetDial: netDialer.DialContext,
		OnStatusError: func(code int, reason []byte, resp io.Reader) {
			status = code
		},
	}

	conn, br, _, err := dialer.Dial(ctx, url)
	if err != nil {
		if status != 0 {
			return nil, &transport.HandshakeError{StatusCode: status, Err: err}
		}
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	return newConn(conn, br, d.opts.WriteTimeout), nil
}

// Conn adapts a client-side net.Conn to transport.Conn.
// Writes, including control replies issued while reading, are serialized.
type Conn struct {
	conn         net.Conn
	rw           io.ReadWriter
	writeTimeout time.Duration
	mu           sync.Mutex
	closeOnce    sync.Once
	closeErr     error
}

func newConn(conn net.Conn, br *bufio.Reader, writeTimeout time.Duration) *Conn {
	c := &Conn{conn: conn, writeTimeout: writeTimeout}

	// br holds bytes the server sent right behind the handshake response.
	var r io.Reader = conn
	if br != nil {
		r = br
	}
	c.rw = struct {
		io.Reader
		io.Writer
	}{r, lockedWriter{c}}
	return c
}

type lockedWriter struct {
	c *Conn
}

func (w lockedWriter) Write(p []byte) (int, error) {
	w.c.mu.Lock()
	defer w.c.mu.Unlock()
	return w.c.conn.Write(p)
}

// Read implements transport.Conn. Pings are answered and skipped.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		data, op, err := wsutil.ReadServerData(c.rw)
		if err != nil {
			var closed wsutil.ClosedError
			if errors.As(err, &closed) && closed.Code == ws.StatusNormalClosure {
				return nil, transport.ErrNormalClosure
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		if op == ws.OpText || op == ws.OpBinary {
			return data, nil
		}
	}
}

// Write implements transport.Conn.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := time.Time{}
	if c.writeTimeout > 0 {
		deadline = time.Now().Add(c.writeTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	c.conn.SetWriteDeadline(deadline)
	defer c.conn.SetWriteDeadline(time.Time{})

	return wsutil.WriteClientText(c.conn, data)
}

// Close implements transport.Conn. It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		body := ws.NewCloseFrameBody(ws.StatusNormalClosure, transport.CloseReason)
		_ = wsutil.WriteClientMessage(c.conn, ws.OpClose, body)
		c.mu.Unlock()
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// RemoteAddr implements transport.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
