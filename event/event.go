package event

import (
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/c360/debugtel/pkg/timestamp"
)

const (
	// MaxMessageLength is the longest message, in runes, kept verbatim.
	MaxMessageLength = 1000

	// TruncationSuffix is appended to messages cut at MaxMessageLength.
	TruncationSuffix = "... [truncated]"

	defaultExcerptSize = 256
)

// DebugEvent is one captured occurrence. JSON field names are the upload
// wire format.
type DebugEvent struct {
	ID        string   `json:"id"`
	Timestamp string   `json:"timestamp"`
	Type      Type     `json:"type"`
	Severity  Severity `json:"severity"`
	Source    string   `json:"source"`
	Message   string   `json:"message"`
	Data      any      `json:"data,omitempty"`
	SessionID string   `json:"sessionId,omitempty"`
	UserID    string   `json:"userId,omitempty"`
}

// ErrorInfo is the serializable form of an error value carried in event data.
type ErrorInfo struct {
	Name       string         `json:"name"`
	Message    string         `json:"message"`
	Stack      string         `json:"stack,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// TruncatedData replaces an event's data when the event is too large.
type TruncatedData struct {
	Truncated    bool   `json:"_truncated"`
	OriginalSize int    `json:"_originalSize"`
	Excerpt      string `json:"_excerpt,omitempty"`
}

// NewID returns a fresh event identifier.
func NewID() string {
	return uuid.NewString()
}

// Time parses the event timestamp.
func (e DebugEvent) Time() (time.Time, bool) {
	return timestamp.Parse(e.Timestamp)
}

// Normalize fills a missing id and timestamp and maps unknown type and
// severity values to custom and low.
func (e DebugEvent) Normalize(now time.Time) DebugEvent {
	if e.ID == "" {
		e.ID = NewID()
	}
	if e.Timestamp == "" {
		e.Timestamp = timestamp.Format(now)
	}
	if !e.Type.Valid() {
		e.Type = ParseType(string(e.Type))
	}
	if !e.Severity.Valid() {
		e.Severity = ParseSeverity(string(e.Severity))
	}
	return e
}

// EstimateSize returns the length of the event's JSON encoding in bytes.
// Unencodable events report the size of their encodable fields plus the
// length of the data's printed form.
func EstimateSize(e DebugEvent) int {
	b, err := json.Marshal(e)
	if err == nil {
		return len(b)
	}
	data := e.Data
	e.Data = nil
	b, _ = json.Marshal(e)
	return len(b) + len(fmt.Sprint(data))
}

// TruncateMessage cuts msg to MaxMessageLength runes plus TruncationSuffix.
// It reports whether msg was cut.
func TruncateMessage(msg string) (string, bool) {
	if utf8.RuneCountInString(msg) <= MaxMessageLength {
		return msg, false
	}
	return cutRunes(msg, MaxMessageLength) + TruncationSuffix, true
}

// FitSize shrinks e until its JSON encoding is at most maxSize bytes. The
// data payload is replaced by a TruncatedData excerpt first; the message is
// shortened only if that is not enough. Data that cannot be encoded as JSON
// is always replaced. A non-positive maxSize disables the size check. It
// reports whether anything changed.
func FitSize(e DebugEvent, maxSize int) (DebugEvent, bool) {
	b, err := json.Marshal(e)
	if err == nil && (maxSize <= 0 || len(b) <= maxSize) {
		return e, false
	}
	size := EstimateSize(e)

	if e.Data != nil {
		encoded, err := json.Marshal(e.Data)
		if err != nil {
			encoded = []byte(fmt.Sprint(e.Data))
		}
		stub := TruncatedData{Truncated: true, OriginalSize: size}
		e.Data = stub

		room := defaultExcerptSize
		if maxSize > 0 {
			room = maxSize - EstimateSize(e) - len(`,"_excerpt":""`)
		}
		if room > 0 {
			stub.Excerpt = excerpt(string(encoded), room)
			e.Data = stub
		}
		if maxSize <= 0 || EstimateSize(e) <= maxSize {
			return e, true
		}
	}

	// Last resort: shorten the message until the event fits
	for EstimateSize(e) > maxSize && e.Message != "" {
		over := EstimateSize(e) - maxSize
		keep := utf8.RuneCountInString(e.Message) - over - len(TruncationSuffix)
		if keep <= 0 {
			e.Message = ""
			break
		}
		e.Message = cutRunes(e.Message, keep) + TruncationSuffix
	}
	return e, true
}

// excerpt returns a prefix of s whose JSON string encoding fits in room bytes.
func excerpt(s string, room int) string {
	cut := cutBytes(s, room)
	for cut != "" {
		b, _ := json.Marshal(cut)
		encoded := len(b) - 2
		if encoded <= room {
			return cut
		}
		// Escapes can inflate the encoding, so scale down proportionally
		next := len(cut) * room / encoded
		if next >= len(cut) {
			next = len(cut) - 1
		}
		cut = cutBytes(cut, next)
	}
	return ""
}

func cutRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func cutBytes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
