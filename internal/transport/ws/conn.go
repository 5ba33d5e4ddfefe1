// Package ws provides the default WebSocket transport on nhooyr.io/websocket.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"github.com/omochice/counsel-chat/internal/transport"
)

// readLimit caps a single inbound message.
const readLimit = 1 << 20

// Dialer dials with nhooyr.io/websocket.
type Dialer struct {
	opts   transport.Options
	client *http.Client
}

// NewDialer creates a Dialer. The connect timeout bounds TCP and TLS setup,
// the read timeout bounds the wait for the upgrade response.
func NewDialer(opts transport.Options) *Dialer {
	netDialer := &net.Dialer{Timeout: opts.ConnectTimeout}
	return &Dialer{
		opts: opts,
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           netDialer.DialContext,
				TLSHandshakeTimeout:   opts.ConnectTimeout,
				ResponseHeaderTimeout: opts.ReadTimeout,
			},
		},
	}
}

// Dial implements transport.Dialer.
func (d *Dialer) Dial(ctx context.Context, url string) (transport.Conn, error) {
	conn, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPClient: d.client})
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return nil, &transport.HandshakeError{StatusCode: resp.StatusCode, Err: err}
		}
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	conn.SetReadLimit(readLimit)

	addr := ""
	if resp != nil && resp.Request != nil {
		addr = resp.Request.URL.Host
	}
	return NewConnWithAddr(conn, addr, d.opts.WriteTimeout), nil
}

// Conn adapts a websocket.Conn to transport.Conn.
type Conn struct {
	conn         *websocket.Conn
	remoteAddr   string
	writeTimeout time.Duration
}

// NewConn wraps a websocket.Conn with empty remote address and no write timeout.
func NewConn(conn *websocket.Conn) *Conn {
	return &Conn{conn: conn}
}

// NewConnWithAddr wraps a websocket.Conn with the specified remote address.
func NewConnWithAddr(conn *websocket.Conn, addr string, writeTimeout time.Duration) *Conn {
	return &Conn{conn: conn, remoteAddr: addr, writeTimeout: writeTimeout}
}

// Read implements transport.Conn.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
			return nil, transport.ErrNormalClosure
		}
		return nil, err
	}
	return data, nil
}

// Write implements transport.Conn.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	if c.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.writeTimeout)
		defer cancel()
	}
	return c.conn.Write(ctx, websocket.MessageText, data)
}

// Close implements transport.Conn.
func (c *Conn) Close() error {
	err := c.conn.Close(websocket.StatusNormalClosure, transport.CloseReason)
	if err != nil && errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// RemoteAddr implements transport.Conn.
func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}
