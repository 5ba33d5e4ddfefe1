package chat_test

import (
	"testing"
	"time"

	"github.com/omochice/counsel-chat/internal/chat"
)

func TestNormalizeTimestamp(t *testing.T) {
	now := time.Date(2024, 3, 5, 1, 2, 3, 0, time.FixedZone("JST", 9*60*60))

	tests := []struct {
		name string
		ts   string
		want string
	}{
		{"empty uses now in UTC", "", "2024-03-04T16:02:03"},
		{"iso unchanged", "2024-01-01T10:00:00", "2024-01-01T10:00:00"},
		{"iso with fraction unchanged", "2024-01-01T10:00:00.123", "2024-01-01T10:00:00.123"},
		{"space separator", "2024-01-01 10:00:00", "2024-01-01T10:00:00"},
		{"only first space", "2024-01-01 10:00:00 extra", "2024-01-01T10:00:00 extra"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := chat.NormalizeTimestamp(tt.ts, now); got != tt.want {
				t.Errorf("NormalizeTimestamp(%q) = %q, want %q", tt.ts, got, tt.want)
			}
		})
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		name string
		ts   string
		want string
	}{
		{"utc to utc+8", "2024-01-01T10:05:00", "18:05"},
		{"crosses midnight", "2024-01-01T20:30:59", "04:30"},
		{"space separator", "2024-01-01 02:15:00", "10:15"},
		{"fractional seconds", "2024-01-01T10:05:00.123456", "18:05"},
		{"trailing zone ignored", "2024-01-01T10:05:00Z", "18:05"},
		{"unparseable date falls back to clock text", "yesterdayT09:41", "09:41"},
		{"short clock text", "2024-01-01T9:4", chat.NoClock},
		{"garbage", "garbage", chat.NoClock},
		{"empty", "", chat.NoClock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := chat.FormatClock(tt.ts); got != tt.want {
				t.Errorf("FormatClock(%q) = %q, want %q", tt.ts, got, tt.want)
			}
		})
	}
}
