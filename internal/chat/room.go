package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/omochice/counsel-chat/internal/client"
	"github.com/omochice/counsel-chat/internal/domain"
	"github.com/omochice/counsel-chat/internal/log"
	"github.com/omochice/counsel-chat/pkg/stomp"
)

const eventBuffer = 32

// ErrEmptyContent is returned by Send for blank messages.
var ErrEmptyContent = errors.New("message content is empty")

// Transport is the live side of a Room. *client.Session satisfies it.
type Transport interface {
	Connect(ctx context.Context, userID, counselorID int64, onMessage client.MessageHandler, onError client.ErrorHandler) error
	WaitReady(ctx context.Context) error
	SendMessage(ctx context.Context, senderID, receiverID int64, senderType stomp.SenderType, content string) error
	Disconnect()
}

// HistoryFetcher loads past messages of a conversation.
type HistoryFetcher interface {
	Conversation(ctx context.Context, userID, counselorID int64) ([]domain.DisplayMessage, error)
}

// EventType classifies a Room event.
type EventType int

const (
	EventConnected EventType = iota
	EventMessage
	EventHistoryLoaded
	EventError
)

// String returns the string representation of EventType
func (et EventType) String() string {
	switch et {
	case EventConnected:
		return "CONNECTED"
	case EventMessage:
		return "MESSAGE"
	case EventHistoryLoaded:
		return "HISTORY_LOADED"
	case EventError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event is delivered on Room.Events.
type Event struct {
	Type    EventType
	Message domain.DisplayMessage
	Error   string
}

// RoomOption configures a Room.
type RoomOption func(*Room)

// WithRole sets the side this room speaks for. The default is USER.
func WithRole(role stomp.SenderType) RoomOption {
	return func(r *Room) {
		r.role = role
	}
}

// WithHistory loads past messages on Open.
func WithHistory(h HistoryFetcher) RoomOption {
	return func(r *Room) {
		r.history = h
	}
}

// WithConversation replaces the message list, e.g. to inject a clock.
func WithConversation(c *Conversation) RoomOption {
	return func(r *Room) {
		r.conv = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) RoomOption {
	return func(r *Room) {
		r.logger = logger
	}
}

// Room is one conversation between a user and a counselor. Local sends and
// received messages go through the same Conversation, so an echo of a local
// send is dropped.
type Room struct {
	userID      int64
	counselorID int64
	role        stomp.SenderType
	transport   Transport
	history     HistoryFetcher
	conv        *Conversation
	logger      zerolog.Logger

	events    chan Event
	done      chan struct{}
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// NewRoom creates a Room for the conversation between userID and counselorID.
func NewRoom(userID, counselorID int64, t Transport, opts ...RoomOption) *Room {
	r := &Room{
		userID:      userID,
		counselorID: counselorID,
		role:        stomp.SenderUser,
		transport:   t,
		logger:      log.L(),
		events:      make(chan Event, eventBuffer),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.conv == nil {
		r.conv = NewConversation()
	}
	r.logger = r.logger.With().
		Str(log.FieldComponent, "room").
		Int64(log.FieldUserID, userID).
		Int64(log.FieldCounselorID, counselorID).
		Str(log.FieldSenderType, string(r.role)).
		Logger()
	return r
}

// Open loads history and connects concurrently. It returns when the session
// is ready or the connection failed. A history failure is reported as an
// event and does not fail Open.
func (r *Room) Open(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if r.history != nil {
		g.Go(func() error {
			msgs, err := r.history.Conversation(gctx, r.userID, r.counselorID)
			if err != nil {
				r.logger.Warn().Err(err).Msg("failed to load history")
				r.emit(Event{Type: EventError, Error: fmt.Sprintf("failed to load history: %v", err)})
				return nil
			}
			r.conv.LoadHistory(msgs)
			r.logger.Info().Int("count", len(msgs)).Msg("history loaded")
			r.emit(Event{Type: EventHistoryLoaded})
			return nil
		})
	}

	g.Go(func() error {
		// Connection failures reach the error callback, so they are only returned here.
		if err := r.transport.Connect(gctx, r.userID, r.counselorID, r.receive, r.reportError); err != nil {
			return err
		}
		if err := r.transport.WaitReady(gctx); err != nil {
			return err
		}
		r.emit(Event{Type: EventConnected})
		return nil
	})

	return g.Wait()
}

// Send appends content optimistically and sends it. A failed send is
// reported and returned, and the local message stays in place.
func (r *Room) Send(ctx context.Context, content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}

	self, peer := r.participants()
	m := domain.DisplayMessage{
		ID:               r.conv.NextID(),
		SenderType:       string(r.role),
		MessageType:      domain.MessageTypeText,
		Content:          content,
		SentTime:         NormalizeTimestamp("", r.conv.now()),
		UserID:           r.userID,
		CounselorID:      r.counselorID,
		ConversationType: domain.ConversationTypePrivate,
	}
	if r.conv.Add(m) {
		r.emit(Event{Type: EventMessage, Message: m})
	}

	if err := r.transport.SendMessage(ctx, self, peer, r.role, content); err != nil {
		r.logger.Warn().Err(err).Msg("send failed")
		r.emit(Event{Type: EventError, Error: err.Error()})
		return err
	}
	return nil
}

// Messages returns the current message list.
func (r *Room) Messages() []domain.DisplayMessage {
	return r.conv.Messages()
}

// Events returns the event stream. It is closed by Close.
func (r *Room) Events() <-chan Event {
	return r.events
}

// Close disconnects and closes the event stream. It is safe to call more than once.
func (r *Room) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
		r.transport.Disconnect()

		r.mu.Lock()
		r.closed = true
		close(r.events)
		r.mu.Unlock()
	})
}

// participants returns (sender, receiver) ids for the room's role.
func (r *Room) participants() (int64, int64) {
	if r.role == stomp.SenderCounselor {
		return r.counselorID, r.userID
	}
	return r.userID, r.counselorID
}

func (r *Room) receive(cm stomp.ChatMessage) {
	m := FromChatMessage(cm, r.conv.NextID(), r.conv.now())
	if !r.conv.Add(m) {
		r.logger.Debug().Str(log.FieldSenderType, m.SenderType).Msg("echo dropped")
		return
	}
	r.emit(Event{Type: EventMessage, Message: m})
}

func (r *Room) reportError(msg string) {
	r.emit(Event{Type: EventError, Error: msg})
}

func (r *Room) emit(ev Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return
	}
	select {
	case r.events <- ev:
	case <-r.done:
	}
}

// FromChatMessage converts a received message with the given local id.
// now supplies the timestamp when the message has none.
func FromChatMessage(cm stomp.ChatMessage, id int64, now time.Time) domain.DisplayMessage {
	userID, counselorID := cm.SenderID, cm.ReceiverID
	if cm.SenderType == stomp.SenderCounselor {
		userID, counselorID = cm.ReceiverID, cm.SenderID
	}

	return domain.DisplayMessage{
		ID:               id,
		SenderType:       string(cm.SenderType),
		MessageType:      domain.MessageTypeText,
		Content:          cm.Content,
		SentTime:         NormalizeTimestamp(cm.Timestamp, now),
		UserID:           userID,
		CounselorID:      counselorID,
		ConversationType: domain.ConversationTypePrivate,
	}
}
