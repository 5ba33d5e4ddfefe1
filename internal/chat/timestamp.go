package chat

import (
	"strings"
	"time"
)

const (
	// TimestampLayout is the stored form: UTC, no offset.
	TimestampLayout = "2006-01-02T15:04:05"

	// NoClock is rendered for timestamps that cannot be read.
	NoClock = "--:--"

	clockLayout = "15:04"
)

// displayZone is fixed regardless of the local time zone.
var displayZone = time.FixedZone("UTC+8", 8*60*60)

// NormalizeTimestamp returns ts in stored form. An empty ts becomes now in
// UTC; a space separator is replaced with "T".
func NormalizeTimestamp(ts string, now time.Time) string {
	switch {
	case ts == "":
		return now.UTC().Format(TimestampLayout)
	case strings.Contains(ts, "T"):
		return ts
	default:
		return strings.Replace(ts, " ", "T", 1)
	}
}

// FormatClock renders a stored UTC timestamp as HH:mm in UTC+8. Fractional
// seconds and trailing offsets are ignored. Timestamps that do not parse fall
// back to the five characters after "T", or NoClock.
func FormatClock(ts string) string {
	if ts == "" {
		return NoClock
	}
	ts = NormalizeTimestamp(ts, time.Time{})

	if len(ts) >= len(TimestampLayout) {
		if t, err := time.ParseInLocation(TimestampLayout, ts[:len(TimestampLayout)], time.UTC); err == nil {
			return t.In(displayZone).Format(clockLayout)
		}
	}

	if _, clock, ok := strings.Cut(ts, "T"); ok && len(clock) >= len(clockLayout) {
		return clock[:len(clockLayout)]
	}
	return NoClock
}
