// Package stomp implements the subset of STOMP 1.2 framing spoken between the
// chat client and the counseling backend.
package stomp

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// Commands used by this protocol subset.
const (
	CommandConnect    = "CONNECT"
	CommandConnected  = "CONNECTED"
	CommandSubscribe  = "SUBSCRIBE"
	CommandSend       = "SEND"
	CommandMessage    = "MESSAGE"
	CommandError      = "ERROR"
	CommandDisconnect = "DISCONNECT"
)

// Header keys.
const (
	HeaderAcceptVersion = "accept-version"
	HeaderHeartBeat     = "heart-beat"
	HeaderID            = "id"
	HeaderDestination   = "destination"
	HeaderContentType   = "content-type"
	HeaderMessage       = "message"
	HeaderVersion       = "version"
	HeaderSubscription  = "subscription"
	HeaderMessageID     = "message-id"
)

// ClientHeartBeatMillis is the interval advertised in both directions of the
// CONNECT heart-beat header.
const ClientHeartBeatMillis = 10000

// ContentTypeJSON is declared on frames with a JSON body.
const ContentTypeJSON = "application/json"

const (
	acceptVersion   = "1.1,1.2"
	clientHeartBeat = "10000,10000"
	nul             = 0x00
	headerSeparator = ':'
)

// EOL is the heart-beat payload: a bare end-of-line.
var EOL = []byte("\n")

// ErrMalformedFrame is returned when a frame has no command or header block.
var ErrMalformedFrame = errors.New("malformed STOMP frame")

// Header is a single header line. Order matters on the wire.
type Header struct {
	Key   string
	Value string
}

// Frame is one STOMP protocol unit.
type Frame struct {
	Command string
	Headers []Header
	Body    []byte
}

// Connect returns the CONNECT frame sent right after the socket opens.
func Connect() Frame {
	return Frame{
		Command: CommandConnect,
		Headers: []Header{
			{Key: HeaderAcceptVersion, Value: acceptVersion},
			{Key: HeaderHeartBeat, Value: clientHeartBeat},
		},
	}
}

// Subscribe returns a SUBSCRIBE frame for destination under subscription id.
func Subscribe(id, destination string) Frame {
	return Frame{
		Command: CommandSubscribe,
		Headers: []Header{
			{Key: HeaderID, Value: id},
			{Key: HeaderDestination, Value: destination},
		},
	}
}

// Send returns a SEND frame. A non-empty body is declared as JSON.
func Send(destination string, body []byte) Frame {
	f := Frame{
		Command: CommandSend,
		Headers: []Header{{Key: HeaderDestination, Value: destination}},
		Body:    body,
	}
	if len(body) > 0 {
		f.Headers = append(f.Headers, Header{Key: HeaderContentType, Value: ContentTypeJSON})
	}
	return f
}

// Header returns the value of the first header named key.
func (f Frame) Header(key string) (string, bool) {
	for _, h := range f.Headers {
		if h.Key == key {
			return h.Value, true
		}
	}
	return "", false
}

// Bytes encodes the frame: command line, header lines, blank line, body, NUL.
// Header values are written verbatim; this subset does not escape.
func (f Frame) Bytes() []byte {
	var buf bytes.Buffer
	buf.WriteString(f.Command)
	buf.WriteByte('\n')
	for _, h := range f.Headers {
		buf.WriteString(h.Key)
		buf.WriteByte(headerSeparator)
		buf.WriteString(h.Value)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	buf.Write(f.Body)
	buf.WriteByte(nul)
	return buf.Bytes()
}

func (f Frame) String() string {
	return string(f.Bytes())
}

// Parse reads a complete frame in any command. It accepts LF or CRLF line
// endings, skips leading heart-beat EOLs and stops the body at the first NUL.
// The first occurrence of a repeated header wins when looked up with Header.
func Parse(data []byte) (Frame, error) {
	text := strings.TrimLeft(string(data), "\r\n")
	if text == "" {
		return Frame{}, fmt.Errorf("%w: empty frame", ErrMalformedFrame)
	}

	var lines []string
	rest := text
	for {
		i := strings.IndexByte(rest, '\n')
		if i < 0 {
			return Frame{}, fmt.Errorf("%w: missing blank line after headers", ErrMalformedFrame)
		}
		line := strings.TrimSuffix(rest[:i], "\r")
		rest = rest[i+1:]
		if line == "" {
			break
		}
		lines = append(lines, line)
	}

	if len(lines) == 0 {
		return Frame{}, fmt.Errorf("%w: missing command", ErrMalformedFrame)
	}

	f := Frame{Command: lines[0]}
	for _, line := range lines[1:] {
		key, value, ok := strings.Cut(line, string(headerSeparator))
		if !ok {
			return Frame{}, fmt.Errorf("%w: header %q has no separator", ErrMalformedFrame, line)
		}
		f.Headers = append(f.Headers, Header{Key: key, Value: value})
	}

	if i := strings.IndexByte(rest, nul); i >= 0 {
		rest = rest[:i]
	}
	if rest != "" {
		f.Body = []byte(rest)
	}
	return f, nil
}
