package relay

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/omochice/counsel-chat/internal/log"
	"github.com/omochice/counsel-chat/pkg/stomp"
)

const (
	sendBuffer     = 256
	maxMessageSize = 1 << 20
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = pongWait * 9 / 10
	closeGrace     = time.Second
)

// Client is one STOMP connection on the relay.
type Client struct {
	ID     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger zerolog.Logger

	done     chan struct{}
	doneOnce sync.Once
	readDone chan struct{}
}

func newClient(hub *Hub, conn *websocket.Conn, logger zerolog.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		ID:       id,
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		logger:   logger.With().Str(log.FieldSessionID, id).Str(log.FieldRemoteAddr, conn.RemoteAddr().String()).Logger(),
		done:     make(chan struct{}),
		readDone: make(chan struct{}),
	}
}

// deliver queues a MESSAGE frame for one of the client's subscriptions.
func (c *Client) deliver(destination, subscriptionID string, body []byte) {
	f := stomp.Frame{
		Command: stomp.CommandMessage,
		Headers: []stomp.Header{
			{Key: stomp.HeaderDestination, Value: destination},
			{Key: stomp.HeaderSubscription, Value: subscriptionID},
			{Key: stomp.HeaderMessageID, Value: uuid.NewString()},
			{Key: stomp.HeaderContentType, Value: stomp.ContentTypeJSON},
		},
		Body: body,
	}
	c.enqueue(f.Bytes())
}

// enqueue drops data when the client is gone or too slow.
func (c *Client) enqueue(data []byte) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- data:
	default:
		c.logger.Warn().Msg("send buffer full, frame dropped")
	}
}

// fail sends an ERROR frame and closes the connection.
func (c *Client) fail(reason string) {
	c.logger.Warn().Str("reason", reason).Msg("closing with ERROR frame")
	f := stomp.Frame{
		Command: stomp.CommandError,
		Headers: []stomp.Header{
			{Key: stomp.HeaderMessage, Value: reason},
			{Key: stomp.HeaderContentType, Value: "text/plain"},
		},
		Body: []byte(reason),
	}
	c.enqueue(f.Bytes())
	c.shutdown()
}

// shutdown makes the write pump flush queued frames and close normally.
func (c *Client) shutdown() {
	c.doneOnce.Do(func() {
		close(c.done)
	})
}

func (c *Client) readPump(handler func(*Client, []byte)) {
	defer func() {
		c.hub.Unregister(c)
		c.shutdown()
		close(c.readDone)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn().Err(err).Msg("websocket error")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.logger.Debug().Str(log.FieldFrame, log.Frame(string(message))).Msg("<<<")

		handler(c, message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.write(message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.flush()
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			select {
			case <-c.readDone:
			case <-time.After(closeGrace):
			}
			return
		}
	}
}

func (c *Client) flush() {
	for {
		select {
		case message := <-c.send:
			if err := c.write(message); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) write(message []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.logger.Debug().Str(log.FieldFrame, log.Frame(string(message))).Msg(">>>")
	return c.conn.WriteMessage(websocket.TextMessage, message)
}
