package event

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTypeAndSeverity(t *testing.T) {
	assert.Equal(t, TypeNetwork, ParseType("Network"))
	assert.Equal(t, TypeCustom, ParseType("telemetry"))
	assert.Equal(t, SeverityCritical, ParseSeverity(" CRITICAL "))
	assert.Equal(t, SeverityLow, ParseSeverity("urgent"))

	assert.True(t, SeverityHigh.AtLeast(SeverityMedium))
	assert.False(t, SeverityLow.AtLeast(SeverityMedium))
	assert.Equal(t, -1, Severity("nope").Rank())
	assert.Len(t, Types(), 6)
	assert.Equal(t, TypeConsole, Types()[0])
}

func TestNormalize(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 30, 0, 123e6, time.UTC)

	ev := DebugEvent{Type: "bogus", Severity: "HIGH", Message: "x"}.Normalize(now)

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "2024-06-01T10:30:00.123Z", ev.Timestamp)
	assert.Equal(t, TypeCustom, ev.Type)
	assert.Equal(t, SeverityHigh, ev.Severity)

	kept := DebugEvent{ID: "abc", Timestamp: "2020-01-01T00:00:00.000Z", Type: TypeAuth, Severity: SeverityLow}.Normalize(now)
	assert.Equal(t, "abc", kept.ID)
	assert.Equal(t, "2020-01-01T00:00:00.000Z", kept.Timestamp)

	parsed, ok := ev.Time()
	require.True(t, ok)
	assert.True(t, parsed.Equal(now))
}

func TestTruncateMessage(t *testing.T) {
	exact := strings.Repeat("a", MaxMessageLength)
	got, cut := TruncateMessage(exact)
	assert.False(t, cut)
	assert.Equal(t, exact, got)

	over := strings.Repeat("a", MaxMessageLength+1)
	got, cut = TruncateMessage(over)
	assert.True(t, cut)
	assert.Equal(t, strings.Repeat("a", MaxMessageLength)+TruncationSuffix, got)

	// Counted in runes, not bytes
	wide := strings.Repeat("é", MaxMessageLength)
	got, cut = TruncateMessage(wide)
	assert.False(t, cut)
	assert.Equal(t, MaxMessageLength, utf8.RuneCountInString(got))
}

func TestEstimateSize(t *testing.T) {
	ev := DebugEvent{ID: "1", Message: "hello", Data: map[string]any{"k": "v"}}
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Equal(t, len(b), EstimateSize(ev))

	// Unencodable data still produces a size
	ev.Data = make(chan int)
	assert.Positive(t, EstimateSize(ev))
}

func TestFitSize_ReplacesData(t *testing.T) {
	ev := DebugEvent{
		ID:       "evt-1",
		Type:     TypeNetwork,
		Severity: SeverityLow,
		Message:  "response body",
		Data:     map[string]any{"body": strings.Repeat("x", 5000)},
	}
	original := EstimateSize(ev)

	fitted, changed := FitSize(ev, 1024)
	require.True(t, changed)
	assert.LessOrEqual(t, EstimateSize(fitted), 1024)
	assert.Equal(t, "response body", fitted.Message, "message is kept when dropping data is enough")

	stub, ok := fitted.Data.(TruncatedData)
	require.True(t, ok)
	assert.True(t, stub.Truncated)
	assert.Equal(t, original, stub.OriginalSize)
	assert.True(t, strings.HasPrefix(stub.Excerpt, `{"body":"xxx`))
}

func TestFitSize_ShortensMessageAsLastResort(t *testing.T) {
	ev := DebugEvent{ID: "evt-2", Message: strings.Repeat("m", 900), Data: "payload"}

	fitted, changed := FitSize(ev, 300)
	require.True(t, changed)
	assert.LessOrEqual(t, EstimateSize(fitted), 300)
	assert.True(t, strings.HasSuffix(fitted.Message, TruncationSuffix))
}

func TestFitSize_SmallEventUntouched(t *testing.T) {
	ev := DebugEvent{ID: "evt-3", Message: "ok"}
	fitted, changed := FitSize(ev, 10240)
	assert.False(t, changed)
	assert.Equal(t, ev, fitted)
}

func TestFitSize_UnencodableData(t *testing.T) {
	ev := DebugEvent{ID: "evt-4", Message: "ok", Data: func() {}}
	fitted, changed := FitSize(ev, 0)
	require.True(t, changed)

	_, err := json.Marshal(fitted)
	assert.NoError(t, err)
	assert.IsType(t, TruncatedData{}, fitted.Data)
}

func TestExcerptRespectsEscaping(t *testing.T) {
	s := strings.Repeat("<", 50)
	got := excerpt(s, 30)
	b, _ := json.Marshal(got)
	assert.LessOrEqual(t, len(b)-2, 30)
	assert.NotEmpty(t, got)
}
