package stomp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// SenderType identifies which side of a conversation sent a message.
type SenderType string

const (
	SenderUser      SenderType = "USER"
	SenderCounselor SenderType = "COUNSELOR"
)

// Peer returns the opposite role.
func (st SenderType) Peer() SenderType {
	if st == SenderCounselor {
		return SenderUser
	}
	return SenderCounselor
}

// path returns the lower-cased role used in queue destinations.
func (st SenderType) path() string {
	return strings.ToLower(string(st))
}

// ChatMessage is the payload of a MESSAGE frame delivered on a message queue.
type ChatMessage struct {
	SenderID   int64
	ReceiverID int64
	SenderType SenderType
	Content    string
	// Timestamp is server-formatted and may be empty.
	Timestamp string
}

// SendPayload is the JSON body of a SEND to the private chat destination.
// Field order is the wire order.
type SendPayload struct {
	SenderID   int64      `json:"senderId"`
	ReceiverID int64      `json:"receiverId"`
	SenderType SenderType `json:"senderType"`
	Content    string     `json:"content"`
}

// ErrorPayload is the JSON body delivered on an error queue.
type ErrorPayload struct {
	Message string `json:"message"`
}

// EncodeSendPayload marshals p without HTML escaping and without a trailing newline.
func EncodeSendPayload(p SendPayload) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("failed to encode send payload: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// wireMessage mirrors ChatMessage with presence tracking for required fields.
type wireMessage struct {
	SenderID   *int64          `json:"senderId"`
	ReceiverID *int64          `json:"receiverId"`
	SenderType *string         `json:"senderType"`
	Content    *string         `json:"content"`
	Timestamp  json.RawMessage `json:"timestamp"`
}

func decodeChatMessage(body string) (ChatMessage, error) {
	var w wireMessage
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		return ChatMessage{}, fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}

	switch {
	case w.SenderID == nil:
		return ChatMessage{}, fmt.Errorf("%w: missing senderId", ErrInvalidBody)
	case w.ReceiverID == nil:
		return ChatMessage{}, fmt.Errorf("%w: missing receiverId", ErrInvalidBody)
	case w.SenderType == nil:
		return ChatMessage{}, fmt.Errorf("%w: missing senderType", ErrInvalidBody)
	case w.Content == nil:
		return ChatMessage{}, fmt.Errorf("%w: missing content", ErrInvalidBody)
	}

	return ChatMessage{
		SenderID:   *w.SenderID,
		ReceiverID: *w.ReceiverID,
		SenderType: SenderType(*w.SenderType),
		Content:    *w.Content,
		Timestamp:  timestampText(w.Timestamp),
	}, nil
}

// timestampText reads an optional timestamp. Strings are unquoted, null or
// absent yields "", anything else is kept as its JSON text.
func timestampText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}
	return string(trimmed)
}
