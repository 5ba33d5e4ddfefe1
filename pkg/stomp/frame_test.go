package stomp_test

import (
	"errors"
	"testing"

	"github.com/omochice/counsel-chat/pkg/stomp"
)

func TestFrame_Bytes(t *testing.T) {
	tests := []struct {
		name  string
		frame stomp.Frame
		want  string
	}{
		{
			name:  "connect",
			frame: stomp.Connect(),
			want:  "CONNECT\naccept-version:1.1,1.2\nheart-beat:10000,10000\n\n\x00",
		},
		{
			name:  "subscribe",
			frame: stomp.Subscribe("sub-user-7-messages", "/queue/messages/user/7"),
			want:  "SUBSCRIBE\nid:sub-user-7-messages\ndestination:/queue/messages/user/7\n\n\x00",
		},
		{
			name:  "send with body",
			frame: stomp.Send("/app/chat.private", []byte(`{"a":1}`)),
			want:  "SEND\ndestination:/app/chat.private\ncontent-type:application/json\n\n{\"a\":1}\x00",
		},
		{
			name:  "send without body",
			frame: stomp.Send("/app/chat.private", nil),
			want:  "SEND\ndestination:/app/chat.private\n\n\x00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(tt.frame.Bytes()); got != tt.want {
				t.Errorf("Frame.Bytes() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFrame_Header(t *testing.T) {
	f := stomp.Subscribe("sub-1", "/queue/a")

	if got, ok := f.Header(stomp.HeaderDestination); !ok || got != "/queue/a" {
		t.Errorf("Header(destination) = %q, %v, want %q, true", got, ok, "/queue/a")
	}
	if _, ok := f.Header(stomp.HeaderContentType); ok {
		t.Error("Header(content-type) should be absent on SUBSCRIBE")
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		command string
		headers map[string]string
		body    string
		wantErr error
	}{
		{
			name:    "send frame",
			data:    "SEND\ndestination:/app/chat.private\ncontent-type:application/json\n\n{\"x\":1}\x00",
			command: stomp.CommandSend,
			headers: map[string]string{"destination": "/app/chat.private", "content-type": "application/json"},
			body:    `{"x":1}`,
		},
		{
			name:    "crlf line endings",
			data:    "SUBSCRIBE\r\nid:sub-0\r\ndestination:/queue/a\r\n\r\n\x00",
			command: stomp.CommandSubscribe,
			headers: map[string]string{"id": "sub-0", "destination": "/queue/a"},
		},
		{
			name:    "leading heart-beats are skipped",
			data:    "\n\nCONNECT\naccept-version:1.2\n\n\x00",
			command: stomp.CommandConnect,
			headers: map[string]string{"accept-version": "1.2"},
		},
		{
			name:    "header value keeps later colons",
			data:    "ERROR\nmessage:bad: thing\n\n\x00",
			command: stomp.CommandError,
			headers: map[string]string{"message": "bad: thing"},
		},
		{
			name:    "missing blank line",
			data:    "SEND\ndestination:/a",
			wantErr: stomp.ErrMalformedFrame,
		},
		{
			name:    "header without separator",
			data:    "SEND\nbogus\n\n\x00",
			wantErr: stomp.ErrMalformedFrame,
		},
		{
			name:    "only heart-beats",
			data:    "\n\r\n",
			wantErr: stomp.ErrMalformedFrame,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := stomp.Parse([]byte(tt.data))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Parse() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() unexpected error: %v", err)
			}
			if f.Command != tt.command {
				t.Errorf("Command = %q, want %q", f.Command, tt.command)
			}
			for k, v := range tt.headers {
				if got, _ := f.Header(k); got != v {
					t.Errorf("Header(%q) = %q, want %q", k, got, v)
				}
			}
			if string(f.Body) != tt.body {
				t.Errorf("Body = %q, want %q", f.Body, tt.body)
			}
		})
	}
}

func TestParse_EncodedFramesRoundTrip(t *testing.T) {
	f := stomp.Send("/app/chat.private", []byte(`{"content":"hi"}`))

	got, err := stomp.Parse(f.Bytes())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got.Command != f.Command || string(got.Body) != string(f.Body) || len(got.Headers) != len(f.Headers) {
		t.Errorf("Parse(Bytes()) = %+v, want %+v", got, f)
	}
}
