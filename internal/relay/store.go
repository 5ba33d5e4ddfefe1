package relay

import (
	"sync"
	"time"

	"github.com/omochice/counsel-chat/internal/chat"
	"github.com/omochice/counsel-chat/internal/domain"
	"github.com/omochice/counsel-chat/pkg/stomp"
)

// Store keeps delivered messages in memory for the history endpoint.
type Store struct {
	mu       sync.RWMutex
	lastID   int64
	messages []domain.DisplayMessage
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Append records p as sent at the given time and returns the stored entry.
func (s *Store) Append(p stomp.SendPayload, at time.Time) domain.DisplayMessage {
	userID, counselorID := p.SenderID, p.ReceiverID
	if p.SenderType == stomp.SenderCounselor {
		userID, counselorID = p.ReceiverID, p.SenderID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID++
	m := domain.DisplayMessage{
		ID:               s.lastID,
		SenderType:       string(p.SenderType),
		MessageType:      domain.MessageTypeText,
		Content:          p.Content,
		SentTime:         at.UTC().Format(chat.TimestampLayout),
		UserID:           userID,
		CounselorID:      counselorID,
		ConversationType: domain.ConversationTypePrivate,
	}
	s.messages = append(s.messages, m)
	return m
}

// Conversation returns up to limit messages between userID and counselorID,
// newest first, skipping the newest offset. A non-positive limit means no limit.
func (s *Store) Conversation(userID, counselorID int64, limit, offset int) []domain.DisplayMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.DisplayMessage{}
	skipped := 0
	for i := len(s.messages) - 1; i >= 0; i-- {
		m := s.messages[i]
		if m.UserID != userID || m.CounselorID != counselorID {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Len returns the number of stored messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}
