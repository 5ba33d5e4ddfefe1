package stomp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// UnknownError is reported for an ERROR frame without a message header.
const UnknownError = "Unknown STOMP error"

// unknownServerError is reported for an error-queue payload without a message.
const unknownServerError = "Unknown server error"

const maxQuotedFrame = 100

var (
	ErrUnsupportedFrame = errors.New("unsupported STOMP frame")
	ErrInvalidBody      = errors.New("invalid STOMP message body")
)

// EventType classifies a decoded inbound frame.
type EventType int

const (
	// EventHeartbeat is a bare EOL sent by the server to keep the link alive.
	EventHeartbeat EventType = iota
	// EventConnected completes the STOMP handshake.
	EventConnected
	// EventError is a server ERROR frame.
	EventError
	// EventMessage carries a ChatMessage.
	EventMessage
	// EventEmpty is a MESSAGE frame with an empty body. It is dropped.
	EventEmpty
	// EventServerError is an ErrorPayload delivered on an error queue.
	EventServerError
)

// String returns the string representation of EventType
func (et EventType) String() string {
	switch et {
	case EventHeartbeat:
		return "HEARTBEAT"
	case EventConnected:
		return "CONNECTED"
	case EventError:
		return "ERROR"
	case EventMessage:
		return "MESSAGE"
	case EventEmpty:
		return "EMPTY"
	case EventServerError:
		return "SERVER_ERROR"
	default:
		return "UNKNOWN"
	}
}

// HeartBeat is the server side of heart-beat negotiation in milliseconds.
// Outgoing is how often the server sends, Incoming how often it wants to hear
// from the client. Zero disables that direction.
type HeartBeat struct {
	Outgoing int
	Incoming int
}

// Event is the result of decoding one inbound frame.
type Event struct {
	Type      EventType
	Message   ChatMessage
	Error     string
	HeartBeat HeartBeat
}

// Decode classifies raw inbound text by its leading command.
//
// CONNECTED completes the handshake. ERROR yields the value of the first
// "message:" line, or UnknownError. MESSAGE yields the JSON body after the first
// blank line; an empty body yields EventEmpty. Anything else is an error.
func Decode(text string) (Event, error) {
	if strings.Trim(text, "\r\n") == "" {
		return Event{Type: EventHeartbeat}, nil
	}

	switch {
	case strings.HasPrefix(text, CommandConnected):
		ev := Event{Type: EventConnected}
		if v, ok := scanHeader(text, HeaderHeartBeat); ok {
			ev.HeartBeat = parseHeartBeat(v)
		}
		return ev, nil

	case strings.HasPrefix(text, CommandError):
		msg, ok := scanHeader(text, HeaderMessage)
		if !ok {
			msg = UnknownError
		}
		return Event{Type: EventError, Error: msg}, nil

	case strings.HasPrefix(text, CommandMessage):
		return decodeMessage(text)
	}

	return Event{}, fmt.Errorf("%w: %s", ErrUnsupportedFrame, quote(text))
}

func decodeMessage(text string) (Event, error) {
	lines := strings.Split(text, "\n")

	bodyStart := -1
	for i, line := range lines {
		if strings.TrimSuffix(line, "\r") == "" {
			bodyStart = i + 1
			break
		}
	}
	if bodyStart < 0 {
		return Event{}, fmt.Errorf("%w: no header terminator in %s", ErrMalformedFrame, quote(text))
	}

	body := strings.Join(lines[bodyStart:], "\n")
	body = strings.TrimSpace(body)
	body = strings.TrimSuffix(body, "\x00")
	if body == "" {
		return Event{Type: EventEmpty}, nil
	}

	if dest, ok := lookupHeader(lines[1:bodyStart-1], HeaderDestination); ok && IsErrorQueue(dest) {
		return Event{Type: EventServerError, Error: decodeErrorPayload(body)}, nil
	}

	msg, err := decodeChatMessage(body)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: EventMessage, Message: msg}, nil
}

func decodeErrorPayload(body string) string {
	var p ErrorPayload
	if err := json.Unmarshal([]byte(body), &p); err != nil || p.Message == "" {
		return unknownServerError
	}
	return p.Message
}

// scanHeader returns the value after the first line starting with "key:",
// scanning every line of the frame.
func scanHeader(text, key string) (string, bool) {
	prefix := key + string(headerSeparator)
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSuffix(strings.TrimPrefix(line, prefix), "\r"), true
		}
	}
	return "", false
}

// lookupHeader searches header lines only.
func lookupHeader(lines []string, key string) (string, bool) {
	for _, line := range lines {
		k, v, ok := strings.Cut(strings.TrimSuffix(line, "\r"), string(headerSeparator))
		if ok && k == key {
			return v, true
		}
	}
	return "", false
}

func parseHeartBeat(v string) HeartBeat {
	out, in, ok := strings.Cut(v, ",")
	if !ok {
		return HeartBeat{}
	}
	sx, err1 := strconv.Atoi(strings.TrimSpace(out))
	sy, err2 := strconv.Atoi(strings.TrimSpace(in))
	if err1 != nil || err2 != nil || sx < 0 || sy < 0 {
		return HeartBeat{}
	}
	return HeartBeat{Outgoing: sx, Incoming: sy}
}

func quote(text string) string {
	if len(text) > maxQuotedFrame {
		text = text[:maxQuotedFrame]
	}
	return strconv.Quote(text)
}
