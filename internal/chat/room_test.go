package chat_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/omochice/counsel-chat/internal/chat"
	"github.com/omochice/counsel-chat/internal/client"
	"github.com/omochice/counsel-chat/internal/domain"
	"github.com/omochice/counsel-chat/pkg/stomp"
)

type sentMessage struct {
	senderID   int64
	receiverID int64
	senderType stomp.SenderType
	content    string
}

// mockTransport is a mock implementation of chat.Transport for testing.
type mockTransport struct {
	mu          sync.Mutex
	connectErr  error
	readyErr    error
	sendErr     error
	onMessage   client.MessageHandler
	onError     client.ErrorHandler
	sent        []sentMessage
	disconnects int
}

func (m *mockTransport) Connect(ctx context.Context, userID, counselorID int64, onMessage client.MessageHandler, onError client.ErrorHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onMessage = onMessage
	m.onError = onError
	if m.connectErr != nil {
		onError("WebSocket connection failed: " + m.connectErr.Error())
		return m.connectErr
	}
	return nil
}

func (m *mockTransport) WaitReady(ctx context.Context) error {
	return m.readyErr
}

func (m *mockTransport) SendMessage(ctx context.Context, senderID, receiverID int64, senderType stomp.SenderType, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{senderID, receiverID, senderType, content})
	return m.sendErr
}

func (m *mockTransport) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnects++
}

func (m *mockTransport) deliver(cm stomp.ChatMessage) {
	m.mu.Lock()
	h := m.onMessage
	m.mu.Unlock()
	h(cm)
}

type mockHistory struct {
	msgs []domain.DisplayMessage
	err  error
}

func (h *mockHistory) Conversation(ctx context.Context, userID, counselorID int64) ([]domain.DisplayMessage, error) {
	return h.msgs, h.err
}

func nextEvent(t *testing.T, r *chat.Room) chat.Event {
	t.Helper()
	select {
	case ev, ok := <-r.Events():
		if !ok {
			t.Fatal("event stream closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return chat.Event{}
}

func expectNoEvent(t *testing.T, r *chat.Room) {
	t.Helper()
	select {
	case ev := <-r.Events():
		t.Errorf("unexpected event %v %+v", ev.Type, ev)
	default:
	}
}

func newTestRoom(tr *mockTransport, clock *fakeClock, opts ...chat.RoomOption) *chat.Room {
	opts = append([]chat.RoomOption{
		chat.WithConversation(chat.NewConversation(chat.WithClock(clock.Now))),
		chat.WithLogger(zerolog.Nop()),
	}, opts...)
	return chat.NewRoom(7, 3, tr, opts...)
}

func TestRoom_OpenLoadsHistoryAndConnects(t *testing.T) {
	tr := &mockTransport{}
	h := &mockHistory{msgs: []domain.DisplayMessage{
		{ID: 2, SenderType: "COUNSELOR", Content: "b", SentTime: "2024-01-01T10:02:00"},
		{ID: 1, SenderType: "USER", Content: "a", SentTime: "2024-01-01T10:01:00"},
	}}
	r := newTestRoom(tr, newFakeClock(time.Now()), chat.WithHistory(h))
	defer r.Close()

	if err := r.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	seen := map[chat.EventType]bool{}
	for i := 0; i < 2; i++ {
		seen[nextEvent(t, r).Type] = true
	}
	if !seen[chat.EventConnected] || !seen[chat.EventHistoryLoaded] {
		t.Errorf("events = %v, want CONNECTED and HISTORY_LOADED", seen)
	}

	msgs := r.Messages()
	if len(msgs) != 2 || msgs[0].SentTime != "2024-01-01T10:01:00" || msgs[1].SentTime != "2024-01-01T10:02:00" {
		t.Errorf("Messages() = %+v, want ascending sentTime", msgs)
	}
}

func TestRoom_OpenHistoryFailureIsNotFatal(t *testing.T) {
	tr := &mockTransport{}
	r := newTestRoom(tr, newFakeClock(time.Now()), chat.WithHistory(&mockHistory{err: errors.New("HTTP 500")}))
	defer r.Close()

	if err := r.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	var sawError bool
	for i := 0; i < 2; i++ {
		if ev := nextEvent(t, r); ev.Type == chat.EventError {
			sawError = true
			if !strings.Contains(ev.Error, "failed to load history") {
				t.Errorf("Error = %q", ev.Error)
			}
		}
	}
	if !sawError {
		t.Error("expected a history error event")
	}
}

func TestRoom_OpenConnectFailureReportedOnce(t *testing.T) {
	tr := &mockTransport{connectErr: errors.New("connection refused")}
	r := newTestRoom(tr, newFakeClock(time.Now()))
	defer r.Close()

	if err := r.Open(context.Background()); err == nil {
		t.Fatal("Open() should fail")
	}

	if ev := nextEvent(t, r); ev.Type != chat.EventError {
		t.Errorf("event = %v, want ERROR", ev.Type)
	}
	expectNoEvent(t, r)
}

func TestRoom_SendDropsEcho(t *testing.T) {
	tr := &mockTransport{}
	clock := newFakeClock(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	r := newTestRoom(tr, clock)
	defer r.Close()

	if err := r.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	nextEvent(t, r)

	if err := r.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	ev := nextEvent(t, r)
	if ev.Type != chat.EventMessage || ev.Message.Content != "hello" || ev.Message.SentTime != "2024-01-01T10:00:00" {
		t.Errorf("optimistic event = %+v", ev)
	}

	want := sentMessage{7, 3, stomp.SenderUser, "hello"}
	if len(tr.sent) != 1 || tr.sent[0] != want {
		t.Errorf("sent = %+v, want [%+v]", tr.sent, want)
	}

	clock.Advance(300 * time.Millisecond)
	tr.deliver(stomp.ChatMessage{SenderID: 7, ReceiverID: 3, SenderType: stomp.SenderUser, Content: "hello", Timestamp: "2024-01-01 10:00:00"})
	expectNoEvent(t, r)

	clock.Advance(6 * time.Second)
	tr.deliver(stomp.ChatMessage{SenderID: 7, ReceiverID: 3, SenderType: stomp.SenderUser, Content: "hello"})
	if ev := nextEvent(t, r); ev.Type != chat.EventMessage {
		t.Errorf("event = %v, want MESSAGE", ev.Type)
	}

	if got := len(r.Messages()); got != 2 {
		t.Errorf("len(Messages()) = %d, want 2", got)
	}
}

func TestRoom_ReceiveFromPeer(t *testing.T) {
	tr := &mockTransport{}
	r := newTestRoom(tr, newFakeClock(time.Now()))
	defer r.Close()

	if err := r.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	nextEvent(t, r)

	tr.deliver(stomp.ChatMessage{SenderID: 3, ReceiverID: 7, SenderType: stomp.SenderCounselor, Content: "how are you?", Timestamp: "2024-01-01 10:00:00"})

	ev := nextEvent(t, r)
	if ev.Type != chat.EventMessage {
		t.Fatalf("event = %v, want MESSAGE", ev.Type)
	}
	m := ev.Message
	if m.SenderType != "COUNSELOR" || m.UserID != 7 || m.CounselorID != 3 || m.SentTime != "2024-01-01T10:00:00" {
		t.Errorf("message = %+v", m)
	}
	if m.MessageType != domain.MessageTypeText || m.ConversationType != domain.ConversationTypePrivate {
		t.Errorf("message = %+v", m)
	}
}

func TestRoom_SendFailureKeepsOptimisticMessage(t *testing.T) {
	tr := &mockTransport{sendErr: client.ErrNotReady}
	r := newTestRoom(tr, newFakeClock(time.Now()))
	defer r.Close()

	err := r.Send(context.Background(), "hello")
	if !errors.Is(err, client.ErrNotReady) {
		t.Fatalf("Send() error = %v, want ErrNotReady", err)
	}

	if ev := nextEvent(t, r); ev.Type != chat.EventMessage {
		t.Errorf("first event = %v, want MESSAGE", ev.Type)
	}
	if ev := nextEvent(t, r); ev.Type != chat.EventError {
		t.Errorf("second event = %v, want ERROR", ev.Type)
	}
	if got := len(r.Messages()); got != 1 {
		t.Errorf("len(Messages()) = %d, want 1", got)
	}
}

func TestRoom_SendEmpty(t *testing.T) {
	tr := &mockTransport{}
	r := newTestRoom(tr, newFakeClock(time.Now()))
	defer r.Close()

	if err := r.Send(context.Background(), "   "); !errors.Is(err, chat.ErrEmptyContent) {
		t.Errorf("Send() error = %v, want ErrEmptyContent", err)
	}
	if len(tr.sent) != 0 {
		t.Errorf("sent = %+v, want none", tr.sent)
	}
}

func TestRoom_CounselorRole(t *testing.T) {
	tr := &mockTransport{}
	r := newTestRoom(tr, newFakeClock(time.Now()), chat.WithRole(stomp.SenderCounselor))
	defer r.Close()

	if err := r.Send(context.Background(), "hi"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	want := sentMessage{3, 7, stomp.SenderCounselor, "hi"}
	if len(tr.sent) != 1 || tr.sent[0] != want {
		t.Errorf("sent = %+v, want [%+v]", tr.sent, want)
	}
	if got := r.Messages()[0].SenderType; got != "COUNSELOR" {
		t.Errorf("SenderType = %q, want COUNSELOR", got)
	}
}

func TestRoom_Close(t *testing.T) {
	tr := &mockTransport{}
	r := newTestRoom(tr, newFakeClock(time.Now()))

	r.Close()
	r.Close()

	if _, ok := <-r.Events(); ok {
		t.Error("Events() should be closed")
	}
	if tr.disconnects != 1 {
		t.Errorf("Disconnect called %d times, want 1", tr.disconnects)
	}

	// Events after Close are dropped.
	_ = r.Send(context.Background(), "after close")
}

func TestFromChatMessage(t *testing.T) {
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	m := chat.FromChatMessage(stomp.ChatMessage{SenderID: 7, ReceiverID: 3, SenderType: stomp.SenderUser, Content: "x"}, 42, now)

	want := domain.DisplayMessage{
		ID:               42,
		SenderType:       "USER",
		MessageType:      domain.MessageTypeText,
		Content:          "x",
		SentTime:         "2024-05-06T07:08:09",
		UserID:           7,
		CounselorID:      3,
		ConversationType: domain.ConversationTypePrivate,
	}
	if m != want {
		t.Errorf("FromChatMessage() = %+v, want %+v", m, want)
	}
}
