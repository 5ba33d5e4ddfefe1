// Package client implements the STOMP session that carries a counseling
// conversation over a WebSocket.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/omochice/counsel-chat/internal/log"
	"github.com/omochice/counsel-chat/internal/transport"
	"github.com/omochice/counsel-chat/pkg/stomp"
)

var (
	ErrAlreadyConnected = errors.New("session already connected")
	ErrNotReady         = errors.New("session not ready")
	ErrClosed           = errors.New("session closed")
)

// MessageHandler receives chat messages delivered on a message queue.
type MessageHandler func(stomp.ChatMessage)

// ErrorHandler receives human-readable failure descriptions.
type ErrorHandler func(string)

// Option configures a Session.
type Option func(*Session)

// WithPath overrides the WebSocket path appended to the base URL.
func WithPath(path string) Option {
	return func(s *Session) {
		s.path = path
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// Session drives one STOMP conversation at a time.
//
// Connect may be called again after the previous connection reached Closed
// or Failed. Callbacks run on the session's reader goroutine and must not
// block for long.
type Session struct {
	baseURL      string
	path         string
	dialer       transport.Dialer
	logger       zerolog.Logger
	minHeartBeat time.Duration

	mu    sync.Mutex
	state State
	link  *link
}

// link is the per-connection state. A goroutine holding a link that is no
// longer s.link belongs to a torn down connection and must not touch s.state.
type link struct {
	id          string
	userID      int64
	counselorID int64
	onMessage   MessageHandler
	onError     ErrorHandler
	logger      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu   sync.Mutex
	conn transport.Conn

	settled    chan struct{}
	settleErr  error
	settleOnce sync.Once
	closeOnce  sync.Once
}

// New creates a Session for the backend at baseURL (http or https).
func New(baseURL string, dialer transport.Dialer, opts ...Option) *Session {
	s := &Session{
		baseURL:      baseURL,
		path:         transport.DefaultPath,
		dialer:       dialer,
		logger:       log.L(),
		minHeartBeat: stomp.ClientHeartBeatMillis * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str(log.FieldComponent, "stomp-session").Logger()
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect opens the WebSocket and sends CONNECT. It returns once the frame is
// written; use WaitReady to wait for the subscriptions. A dial failure is
// reported to onError and returned.
func (s *Session) Connect(ctx context.Context, userID, counselorID int64, onMessage MessageHandler, onError ErrorHandler) error {
	if onMessage == nil {
		onMessage = func(stomp.ChatMessage) {}
	}
	if onError == nil {
		onError = func(string) {}
	}

	s.mu.Lock()
	if !s.state.canConnect() {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}

	l := s.newLink(userID, counselorID, onMessage, onError)
	s.link = l
	s.setState(l, StateConnecting)
	s.mu.Unlock()

	url, err := transport.WebSocketURL(s.baseURL, s.path)
	if err != nil {
		s.fail(l, transport.Describe(err), err)
		return err
	}
	l.logger.Info().Str(log.FieldURL, url).Msg("connecting")

	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(l.ctx, cancel)
	defer stop()

	conn, err := s.dialer.Dial(dialCtx, url)
	if err != nil {
		if l.ctx.Err() != nil {
			return ErrClosed
		}
		s.fail(l, transport.Describe(err), err)
		return fmt.Errorf("failed to connect: %w", err)
	}

	s.mu.Lock()
	if s.link != l || s.state != StateConnecting {
		s.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
	s.setState(l, StateAwaitingConnected)
	s.mu.Unlock()

	l.logger.Info().Str(log.FieldRemoteAddr, conn.RemoteAddr()).Msg("websocket open")

	go s.receive(l)

	if err := s.write(ctx, l, stomp.Connect()); err != nil {
		s.fail(l, transport.Describe(err), err)
		return fmt.Errorf("failed to send CONNECT: %w", err)
	}
	return nil
}

// WaitReady blocks until the current connection is Ready, fails or closes.
func (s *Session) WaitReady(ctx context.Context) error {
	s.mu.Lock()
	l := s.link
	s.mu.Unlock()

	if l == nil {
		return ErrNotReady
	}

	select {
	case <-l.settled:
		return l.settleErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendMessage sends a chat message to the private chat destination.
func (s *Session) SendMessage(ctx context.Context, senderID, receiverID int64, senderType stomp.SenderType, content string) error {
	s.mu.Lock()
	state, l := s.state, s.link
	s.mu.Unlock()

	switch state {
	case StateReady:
	case StateClosing, StateClosed:
		return ErrClosed
	default:
		return ErrNotReady
	}

	body, err := stomp.EncodeSendPayload(stomp.SendPayload{
		SenderID:   senderID,
		ReceiverID: receiverID,
		SenderType: senderType,
		Content:    content,
	})
	if err != nil {
		return err
	}

	if err := s.write(ctx, l, stomp.Send(stomp.PrivateChatDestination, body)); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Disconnect closes the connection with a normal closure. It is safe to call
// in any state, more than once, and from a callback.
func (s *Session) Disconnect() {
	s.mu.Lock()
	l := s.link
	if s.state.canConnect() {
		s.state = StateClosed
		s.mu.Unlock()
		if l != nil {
			s.teardown(l)
		}
		return
	}
	s.setState(l, StateClosing)
	s.mu.Unlock()

	l.settle(ErrClosed)
	s.teardown(l)

	s.mu.Lock()
	if s.link == l {
		s.setState(l, StateClosed)
	}
	s.mu.Unlock()
	l.logger.Info().Msg("disconnected")
}

func (s *Session) newLink(userID, counselorID int64, onMessage MessageHandler, onError ErrorHandler) *link {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	return &link{
		id:          id,
		userID:      userID,
		counselorID: counselorID,
		onMessage:   onMessage,
		onError:     onError,
		logger: s.logger.With().
			Str(log.FieldSessionID, id).
			Int64(log.FieldUserID, userID).
			Int64(log.FieldCounselorID, counselorID).
			Logger(),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		settled: make(chan struct{}),
	}
}

// setState must be called with s.mu held.
func (s *Session) setState(l *link, state State) {
	s.state = state
	l.logger.Debug().Stringer(log.FieldState, state).Msg("state changed")
}

func (s *Session) receive(l *link) {
	for {
		data, err := l.conn.Read(l.ctx)
		if err != nil {
			s.readFailed(l, err)
			return
		}

		text := string(data)
		l.logger.Debug().Str(log.FieldFrame, log.Frame(text)).Msg("<<<")

		ev, err := stomp.Decode(text)
		if err != nil {
			l.logger.Warn().Err(err).Msg("failed to process message")
			l.onError(fmt.Sprintf("failed to process message: %v", err))
			continue
		}

		switch ev.Type {
		case stomp.EventHeartbeat, stomp.EventEmpty:
		case stomp.EventConnected:
			s.subscribe(l, ev.HeartBeat)
		case stomp.EventError:
			s.fail(l, "STOMP error: "+ev.Error, errors.New(ev.Error))
			return
		case stomp.EventServerError:
			l.logger.Warn().Str("reason", ev.Error).Msg("server error")
			l.onError("Server error: " + ev.Error)
		case stomp.EventMessage:
			l.onMessage(ev.Message)
		}
	}
}

func (s *Session) readFailed(l *link, err error) {
	select {
	case <-l.done:
		return
	default:
	}

	if errors.Is(err, transport.ErrNormalClosure) {
		s.mu.Lock()
		if s.link == l && !s.state.canConnect() {
			s.setState(l, StateClosed)
		}
		s.mu.Unlock()

		l.logger.Info().Msg("websocket closed by server")
		l.settle(ErrClosed)
		s.teardown(l)
		return
	}

	s.fail(l, transport.Describe(err), err)
}

func (s *Session) subscribe(l *link, hb stomp.HeartBeat) {
	s.mu.Lock()
	if s.link != l || s.state != StateAwaitingConnected {
		s.mu.Unlock()
		l.logger.Warn().Msg("unexpected CONNECTED frame ignored")
		return
	}
	s.setState(l, StateSubscribing)
	s.mu.Unlock()

	for _, sub := range Subscriptions(l.userID, l.counselorID) {
		if err := s.write(l.ctx, l, stomp.Subscribe(sub.ID, sub.Destination)); err != nil {
			s.fail(l, transport.Describe(err), err)
			return
		}
		l.logger.Debug().Str(log.FieldDestination, sub.Destination).Msg("subscribed")
	}

	s.mu.Lock()
	if s.link != l || s.state != StateSubscribing {
		s.mu.Unlock()
		return
	}
	s.setState(l, StateReady)
	s.mu.Unlock()

	l.settle(nil)
	l.logger.Info().Msg("ready")

	if hb.Incoming > 0 {
		interval := max(time.Duration(hb.Incoming)*time.Millisecond, s.minHeartBeat)
		go s.heartbeat(l, interval)
	}
}

// heartbeat writes an EOL every interval until the link is torn down.
func (s *Session) heartbeat(l *link, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			if err := l.conn.Write(l.ctx, stomp.EOL); err != nil {
				l.logger.Warn().Err(err).Msg("failed to send heart-beat")
			}
		}
	}
}

func (s *Session) write(ctx context.Context, l *link, f stomp.Frame) error {
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()

	if conn == nil {
		return ErrNotReady
	}

	data := f.Bytes()
	l.logger.Debug().Str(log.FieldFrame, log.Frame(string(data))).Msg(">>>")
	return conn.Write(ctx, data)
}

// fail moves a live link to Failed, closes its socket and reports msg.
func (s *Session) fail(l *link, msg string, cause error) {
	s.mu.Lock()
	if s.link != l || s.state.canConnect() {
		s.mu.Unlock()
		return
	}
	s.setState(l, StateFailed)
	s.mu.Unlock()

	l.logger.Error().Err(cause).Msg(msg)
	l.settle(errors.New(msg))
	s.teardown(l)
	l.onError(msg)
}

// teardown closes the socket before cancelling the link context so the
// close handshake can complete.
func (s *Session) teardown(l *link) {
	l.closeOnce.Do(func() {
		close(l.done)

		l.mu.Lock()
		conn := l.conn
		l.mu.Unlock()

		if conn != nil {
			if err := conn.Close(); err != nil {
				l.logger.Debug().Err(err).Msg("close failed")
			}
		}
		l.cancel()
	})
}

func (l *link) settle(err error) {
	l.settleOnce.Do(func() {
		l.settleErr = err
		close(l.settled)
	})
}
