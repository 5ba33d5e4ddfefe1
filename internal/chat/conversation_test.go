package chat_test

import (
	"sync"
	"testing"
	"time"

	"github.com/omochice/counsel-chat/internal/chat"
	"github.com/omochice/counsel-chat/internal/domain"
)

// fakeClock returns a fixed time that tests can move.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func text(id int64, senderType, content string) domain.DisplayMessage {
	return domain.DisplayMessage{ID: id, SenderType: senderType, Content: content}
}

func TestConversation_DuplicateWindow(t *testing.T) {
	const t0 = int64(1_700_000_000_000)

	tests := []struct {
		name      string
		candidate domain.DisplayMessage
		want      bool
	}{
		{"same id", text(t0, "USER", "hello"), false},
		{"inside window", text(t0+4999, "USER", "hello"), false},
		{"window edge", text(t0+5000, "USER", "hello"), true},
		{"after window", text(t0+5001, "USER", "hello"), true},
		{"older than existing", text(t0-1, "USER", "hello"), true},
		{"other content", text(t0+10, "USER", "hello!"), true},
		{"other sender", text(t0+10, "COUNSELOR", "hello"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := chat.NewConversation()
			if !c.Add(text(t0, "USER", "hello")) {
				t.Fatal("first Add() = false")
			}

			if got := c.Add(tt.candidate); got != tt.want {
				t.Errorf("Add() = %v, want %v", got, tt.want)
			}

			wantLen := 1
			if tt.want {
				wantLen = 2
			}
			if got := c.Len(); got != wantLen {
				t.Errorf("Len() = %d, want %d", got, wantLen)
			}
		})
	}
}

func TestConversation_NextIDIsMonotonic(t *testing.T) {
	clock := newFakeClock(time.UnixMilli(1000))
	c := chat.NewConversation(chat.WithClock(clock.Now))

	if got := c.NextID(); got != 1000 {
		t.Errorf("NextID() = %d, want 1000", got)
	}
	if got := c.NextID(); got != 1001 {
		t.Errorf("NextID() on same millisecond = %d, want 1001", got)
	}

	clock.Advance(-time.Second)
	if got := c.NextID(); got != 1002 {
		t.Errorf("NextID() after clock went back = %d, want 1002", got)
	}

	clock.Advance(10 * time.Second)
	if got := c.NextID(); got != 10000 {
		t.Errorf("NextID() = %d, want 10000", got)
	}
}

func TestConversation_LoadHistory(t *testing.T) {
	c := chat.NewConversation()
	c.Add(domain.DisplayMessage{ID: 99, Content: "live", SentTime: "2024-01-01T09:00:00"})

	c.LoadHistory([]domain.DisplayMessage{
		{ID: 2, Content: "second", SentTime: "2024-01-01T10:02:00"},
		{ID: 1, Content: "first", SentTime: "2024-01-01T10:01:00"},
	})

	got := c.Messages()
	want := []string{"2024-01-01T10:01:00", "2024-01-01T10:02:00", "2024-01-01T09:00:00"}
	if len(got) != len(want) {
		t.Fatalf("len(Messages()) = %d, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].SentTime != w {
			t.Errorf("Messages()[%d].SentTime = %q, want %q", i, got[i].SentTime, w)
		}
	}
}

func TestConversation_LoadHistorySkipsLiveCopies(t *testing.T) {
	c := chat.NewConversation(chat.WithClock(newFakeClock(time.Date(2024, 1, 1, 10, 1, 0, 0, time.UTC)).Now))
	c.Add(domain.DisplayMessage{ID: c.NextID(), SenderType: "COUNSELOR", Content: "hi", SentTime: "2024-01-01T10:01:00"})
	c.Add(domain.DisplayMessage{ID: c.NextID(), SenderType: "USER", Content: "hi", SentTime: "2024-01-01T10:01:30"})

	c.LoadHistory([]domain.DisplayMessage{
		{ID: 41, SenderType: "COUNSELOR", Content: "hi", SentTime: "2024-01-01T10:01:00.250"},
		{ID: 40, SenderType: "USER", Content: "hello", SentTime: "2024-01-01T10:00:00"},
	})

	got := c.Messages()
	wantIDs := []int64{40, 41}
	if len(got) != 3 {
		t.Fatalf("Messages() = %+v, want 3 entries", got)
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Errorf("Messages()[%d].ID = %d, want %d", i, got[i].ID, id)
		}
	}
	// Same content from the other side is a different message.
	if got[2].SenderType != "USER" || got[2].Content != "hi" {
		t.Errorf("Messages()[2] = %+v, want the live USER message", got[2])
	}
}

func TestConversation_MessagesIsACopy(t *testing.T) {
	c := chat.NewConversation()
	c.Add(text(1, "USER", "a"))

	msgs := c.Messages()
	msgs[0].Content = "changed"

	if got := c.Messages()[0].Content; got != "a" {
		t.Errorf("stored Content = %q, want %q", got, "a")
	}
}

func TestConversation_ConcurrentAdd(t *testing.T) {
	c := chat.NewConversation()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Add(text(int64(i)*idGap, "USER", "same"))
		}(i)
	}
	wg.Wait()

	if got := c.Len(); got != 50 {
		t.Errorf("Len() = %d, want 50", got)
	}
}

// idGap keeps generated ids outside each other's window.
const idGap = chat.DuplicateWindow * 2
