package event

import "strings"

// Type classifies what produced an event.
type Type string

// Event types, in canonical order.
const (
	TypeConsole     Type = "console"
	TypeNetwork     Type = "network"
	TypeAuth        Type = "auth"
	TypeError       Type = "error"
	TypePerformance Type = "performance"
	TypeCustom      Type = "custom"
)

// Types returns every event type in canonical order.
func Types() []Type {
	return []Type{TypeConsole, TypeNetwork, TypeAuth, TypeError, TypePerformance, TypeCustom}
}

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	switch t {
	case TypeConsole, TypeNetwork, TypeAuth, TypeError, TypePerformance, TypeCustom:
		return true
	}
	return false
}

func (t Type) String() string { return string(t) }

// ParseType maps s case-insensitively to a Type. Unknown values become TypeCustom.
func ParseType(s string) Type {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if t.Valid() {
		return t
	}
	return TypeCustom
}

// Severity is the ordered importance of an event.
type Severity string

// Severities from least to most important.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities returns every severity from lowest to highest.
func Severities() []Severity {
	return []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
}

// Rank orders severities: low=0 through critical=3. Unknown severities rank -1.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	}
	return -1
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool { return s.Rank() >= 0 }

// AtLeast reports whether s is as important as other.
func (s Severity) AtLeast(other Severity) bool { return s.Rank() >= other.Rank() }

func (s Severity) String() string { return string(s) }

// ParseSeverity maps s case-insensitively to a Severity. Unknown values become SeverityLow.
func ParseSeverity(s string) Severity {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if sev.Valid() {
		return sev
	}
	return SeverityLow
}
