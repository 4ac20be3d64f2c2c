package logfile

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/c360/debugtel/errors"
	"github.com/c360/debugtel/event"
)

// ParsedEntry is one event read back from log text.
type ParsedEntry struct {
	Timestamp string
	Severity  event.Severity
	Type      event.Type
	Source    string
	Message   string
	Data      string
	SessionID string
	UserID    string
}

// ParsedLog is the content of one log file.
type ParsedLog struct {
	Name        string
	Generated   string
	TotalEvents int
	Entries     []ParsedEntry
}

var entryHeader = regexp.MustCompile(`^\[([^\]]*)\] \[([A-Z]*)\] \[([^\]]*)\] \[(.*)\]$`)

// ParseLogText reads text produced by FormatText. Indented message lines are
// joined to the message with newlines.
func ParseLogText(text string) (ParsedLog, error) {
	var (
		out     ParsedLog
		cur     *ParsedEntry
		inData  bool
		header  bool
		counted bool
	)

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if cur == nil {
			switch {
			case line == "" || line == banner:
			case !header && strings.HasPrefix(line, "DEBUG LOG: "):
				out.Name = strings.TrimPrefix(line, "DEBUG LOG: ")
				header = true
			case header && !counted && strings.HasPrefix(line, "Generated: "):
				out.Generated = strings.TrimPrefix(line, "Generated: ")
			case header && !counted && strings.HasPrefix(line, "Total Events: "):
				n, err := strconv.Atoi(strings.TrimPrefix(line, "Total Events: "))
				if err != nil {
					return ParsedLog{}, errors.WrapInvalid(errors.ErrParsingFailed, "logfile", "ParseLogText", "read event count")
				}
				out.TotalEvents = n
				counted = true
			case strings.HasPrefix(line, "END OF LOG: "):
			default:
				m := entryHeader.FindStringSubmatch(line)
				if m == nil {
					return ParsedLog{}, errors.WrapInvalid(errors.ErrParsingFailed, "logfile", "ParseLogText",
						fmt.Sprintf("unexpected line %q", truncateLine(line)))
				}
				cur = &ParsedEntry{
					Timestamp: m[1],
					Severity:  event.Severity(strings.ToLower(m[2])),
					Type:      event.Type(m[3]),
					Source:    m[4],
				}
				inData = false
			}
			continue
		}

		switch {
		case line == separator:
			out.Entries = append(out.Entries, *cur)
			cur = nil
		case strings.HasPrefix(line, "Message: ") && cur.Message == "" && !inData:
			cur.Message = strings.TrimPrefix(line, "Message: ")
		case strings.HasPrefix(line, continuation) && !inData:
			cur.Message += "\n" + strings.TrimPrefix(line, continuation)
		case line == "Data:":
			inData = true
		case strings.HasPrefix(line, "Session: "):
			cur.SessionID = strings.TrimPrefix(line, "Session: ")
			inData = false
		case strings.HasPrefix(line, "User: "):
			cur.UserID = strings.TrimPrefix(line, "User: ")
			inData = false
		case inData:
			if cur.Data != "" {
				cur.Data += "\n"
			}
			cur.Data += line
		default:
			return ParsedLog{}, errors.WrapInvalid(errors.ErrParsingFailed, "logfile", "ParseLogText",
				fmt.Sprintf("unexpected line %q in entry", truncateLine(line)))
		}
	}

	if !header || !counted {
		return ParsedLog{}, errors.WrapInvalid(errors.ErrParsingFailed, "logfile", "ParseLogText", "read header")
	}
	if cur != nil {
		return ParsedLog{}, errors.WrapInvalid(errors.ErrParsingFailed, "logfile", "ParseLogText", "unterminated entry")
	}
	if len(out.Entries) != out.TotalEvents {
		return ParsedLog{}, errors.WrapInvalid(errors.ErrParsingFailed, "logfile", "ParseLogText",
			fmt.Sprintf("header counts %d events, found %d", out.TotalEvents, len(out.Entries)))
	}
	return out, nil
}

func truncateLine(s string) string {
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}
