package logfile

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/c360/debugtel/event"
	"github.com/c360/debugtel/pkg/timestamp"
)

const lineWidth = 80

// Message lines after the first are indented by continuation so that no
// message line can be read as a separator or a field.
const continuation = "  "

var (
	banner    = strings.Repeat("=", lineWidth)
	separator = strings.Repeat("-", lineWidth)
)

// Category is one named partition of the history rendered as a log file.
type Category struct {
	Name     string             `json:"name"`
	Events   []event.DebugEvent `json:"events"`
	Filename string             `json:"filename"`
	Size     int                `json:"size"`
	Content  string             `json:"content"`
}

// sortedByTime returns a copy of events in ascending timestamp order.
// Events with equal timestamps keep their relative order.
func sortedByTime(events []event.DebugEvent) []event.DebugEvent {
	out := slices.Clone(events)
	slices.SortStableFunc(out, func(a, b event.DebugEvent) int {
		return timestamp.Compare(a.Timestamp, b.Timestamp)
	})
	return out
}

// FormatText renders events as a log file. Events must already be sorted.
func FormatText(name string, events []event.DebugEvent, generated time.Time) string {
	var b strings.Builder

	b.WriteString(banner + "\n")
	fmt.Fprintf(&b, "DEBUG LOG: %s\n", name)
	fmt.Fprintf(&b, "Generated: %s\n", timestamp.Format(generated))
	fmt.Fprintf(&b, "Total Events: %d\n", len(events))
	b.WriteString(banner + "\n\n")

	for _, ev := range events {
		writeEntry(&b, ev)
	}

	b.WriteString(banner + "\n")
	fmt.Fprintf(&b, "END OF LOG: %s (%d events)\n", name, len(events))
	b.WriteString(banner + "\n")
	return b.String()
}

func writeEntry(b *strings.Builder, ev event.DebugEvent) {
	fmt.Fprintf(b, "[%s] [%s] [%s] [%s]\n",
		ev.Timestamp, strings.ToUpper(string(ev.Severity)), ev.Type, ev.Source)
	fmt.Fprintf(b, "Message: %s\n", strings.ReplaceAll(ev.Message, "\n", "\n"+continuation))
	if ev.Data != nil {
		b.WriteString("Data:\n")
		b.WriteString(prettyData(ev.Data))
		b.WriteString("\n")
	}
	if ev.SessionID != "" {
		fmt.Fprintf(b, "Session: %s\n", ev.SessionID)
	}
	if ev.UserID != "" {
		fmt.Fprintf(b, "User: %s\n", ev.UserID)
	}
	b.WriteString(separator + "\n\n")
}

func prettyData(v any) string {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(out)
}

// Filename returns the file name for a category, with the date of now
// appended when withDate is set.
func Filename(name string, now time.Time, withDate bool) string {
	if withDate {
		return name + "-" + timestamp.Date(now) + ".log"
	}
	return name + ".log"
}

// slug lowercases s and collapses every run of characters outside [a-z0-9]
// into a single hyphen.
func slug(s string) string {
	var b strings.Builder
	hyphen := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			hyphen = false
			continue
		}
		if !hyphen && b.Len() > 0 {
			b.WriteByte('-')
			hyphen = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "unknown"
	}
	return out
}
