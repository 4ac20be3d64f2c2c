// Package timestamp provides ISO-8601 timestamp handling for debug events.
//
// Event timestamps travel as strings on the wire and in log files. This
// package fixes one canonical layout (UTC, millisecond precision, "Z" suffix)
// and provides lenient parsing for timestamps supplied by collaborators.
//
// Zero Value Semantics:
//   - An empty string means "not set"; Parse reports ok=false for it
//   - Format of a zero time.Time returns ""
//
// Usage:
//
//	ts := timestamp.Format(clock.Now())      // "2024-05-01T09:30:00.123Z"
//	t, ok := timestamp.Parse(ev.Timestamp)
//	day := timestamp.Date(clock.Now())       // "2024-05-01"
package timestamp

import (
	"fmt"
	"strconv"
	"time"
)

// Layout is the canonical event timestamp layout.
const Layout = "2006-01-02T15:04:05.000Z07:00"

// DateLayout is used in generated filenames.
const DateLayout = "2006-01-02"

// Format renders t in the canonical layout, in UTC.
func Format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(Layout)
}

// Date renders the UTC calendar date of t as YYYY-MM-DD.
func Date(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// Parse reads a timestamp in the canonical layout, any RFC 3339 variant, or
// a numeric Unix time (milliseconds if > 1e12, otherwise seconds).
func Parse(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range []string{Layout, time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
		return fromUnix(n), true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		if f > 1e12 {
			return time.UnixMilli(int64(f)).UTC(), true
		}
		return time.UnixMilli(int64(f * 1000)).UTC(), true
	}

	return time.Time{}, false
}

// Normalize rewrites any parseable timestamp in the canonical layout and
// returns the input unchanged when it cannot be parsed.
func Normalize(s string) string {
	t, ok := Parse(s)
	if !ok {
		return s
	}
	return Format(t)
}

// Compare orders two timestamps chronologically. Unparseable values sort
// before parseable ones and compare lexically among themselves.
func Compare(a, b string) int {
	ta, okA := Parse(a)
	tb, okB := Parse(b)

	switch {
	case okA && okB:
		return ta.Compare(tb)
	case okA:
		return 1
	case okB:
		return -1
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// InRange reports whether ts lies within [from, to]. A zero bound is open.
// Unparseable timestamps are never in range when any bound is set.
func InRange(ts string, from, to time.Time) bool {
	if from.IsZero() && to.IsZero() {
		return true
	}
	t, ok := Parse(ts)
	if !ok {
		return false
	}
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && t.After(to) {
		return false
	}
	return true
}

// Validate checks that a timestamp parses and is not unreasonably far in the future.
func Validate(s string) error {
	t, ok := Parse(s)
	if !ok {
		return fmt.Errorf("invalid timestamp: %q", s)
	}
	if t.Year() >= 3000 {
		return fmt.Errorf("timestamp too far in future: %q", s)
	}
	return nil
}

func fromUnix(n int64) time.Time {
	// Values beyond 1e12 are milliseconds (year 2001 in seconds)
	if n > 1e12 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}
