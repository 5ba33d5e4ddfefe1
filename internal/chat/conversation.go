// Package chat reconciles optimistic sends with server echoes and exposes a
// conversation as an event stream.
package chat

import (
	"sync"
	"time"

	"github.com/omochice/counsel-chat/internal/domain"
)

// DuplicateWindow is how far apart, in id units (milliseconds), two messages
// with the same content and sender type must be to both be kept.
const DuplicateWindow = 5000

// ConversationOption configures a Conversation.
type ConversationOption func(*Conversation)

// WithClock sets the wall clock used for ids and synthesized timestamps.
func WithClock(now func() time.Time) ConversationOption {
	return func(c *Conversation) {
		c.now = now
	}
}

// Conversation is the ordered, de-duplicated message list of one chat.
// It is safe for concurrent use.
type Conversation struct {
	mu       sync.Mutex
	messages []domain.DisplayMessage
	lastID   int64
	now      func() time.Time
}

// NewConversation creates an empty Conversation.
func NewConversation(opts ...ConversationOption) *Conversation {
	c := &Conversation{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NextID returns the wall clock in milliseconds, bumped past the previous id
// so ids never repeat.
func (c *Conversation) NextID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.now().UnixMilli()
	if id <= c.lastID {
		id = c.lastID + 1
	}
	c.lastID = id
	return id
}

// Add appends m unless an existing message has the same content and sender
// type and an id at most DuplicateWindow-1 below m's. It reports whether m
// was appended.
//
// An existing id above m's never marks m as an echo. Ids from NextID only
// grow, so this only matters for callers that assign ids themselves.
func (c *Conversation) Add(m domain.DisplayMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, existing := range c.messages {
		if isEcho(existing, m) {
			return false
		}
	}
	c.messages = append(c.messages, m)
	return true
}

func isEcho(existing, candidate domain.DisplayMessage) bool {
	if existing.Content != candidate.Content || existing.SenderType != candidate.SenderType {
		return false
	}
	d := candidate.ID - existing.ID
	return d >= 0 && d < DuplicateWindow
}

// LoadHistory replaces the list with history sorted by sent time, followed by
// the live messages that arrived before the history did. A live message that
// the history already holds (same content, sender type and sent second) is
// dropped.
func (c *Conversation) LoadHistory(history []domain.DisplayMessage) {
	sorted := make([]domain.DisplayMessage, len(history))
	copy(sorted, history)
	domain.SortBySentTime(sorted)

	stored := make(map[recordKey]struct{}, len(sorted))
	for _, m := range sorted {
		stored[keyOf(m)] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	merged := sorted
	for _, m := range c.messages {
		if _, ok := stored[keyOf(m)]; ok {
			continue
		}
		merged = append(merged, m)
	}
	c.messages = merged
}

type recordKey struct {
	content    string
	senderType string
	sentTime   string
}

// keyOf identifies a message across the live feed and the history endpoint,
// which may differ in separator and fractional seconds.
func keyOf(m domain.DisplayMessage) recordKey {
	ts := NormalizeTimestamp(m.SentTime, time.Time{})
	if m.SentTime == "" {
		ts = ""
	}
	if len(ts) > len(TimestampLayout) {
		ts = ts[:len(TimestampLayout)]
	}
	return recordKey{content: m.Content, senderType: m.SenderType, sentTime: ts}
}

// Messages returns a copy of the current list.
func (c *Conversation) Messages() []domain.DisplayMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.DisplayMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}
