package transport

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/c360/debugtel/errors"
	"github.com/c360/debugtel/event"
)

// HeaderIdempotencyKey carries Batch.Key on transports with headers.
const HeaderIdempotencyKey = "Idempotency-Key"

// Transport delivers one batch to the collector. Send returns nil only when
// the collector acknowledged the batch.
type Transport interface {
	Send(ctx context.Context, batch Batch) error
	Close() error
}

// Batch is a bounded, ordered run of events sent in one call.
type Batch struct {
	Key    string
	Events []event.DebugEvent
}

// NewBatch builds a batch keyed by BatchKey.
func NewBatch(events []event.DebugEvent) Batch {
	return Batch{Key: BatchKey(events), Events: events}
}

// BatchKey is the hex BLAKE3 digest of the ordered event IDs. The same events
// in the same order always produce the same key.
func BatchKey(events []event.DebugEvent) string {
	h := blake3.New()
	for i, ev := range events {
		if i > 0 {
			_, _ = h.Write([]byte{'\n'})
		}
		_, _ = h.Write([]byte(ev.ID))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Payload is the upload request body.
type Payload struct {
	Events []event.DebugEvent `json:"events"`
}

// Encode marshals the batch as a Payload. Failures are invalid, not transient.
func Encode(b Batch) ([]byte, error) {
	events := b.Events
	if events == nil {
		events = []event.DebugEvent{}
	}
	data, err := json.Marshal(Payload{Events: events})
	if err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrEncoding, err), "transport", "Encode", "marshal payload")
	}
	return data, nil
}

// Response is the collector's reply body.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// DecodeResponse interprets a reply body. An empty body counts as success;
// success:false and malformed bodies are transient failures.
func DecodeResponse(data []byte) error {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrParsingFailed, err), "transport", "DecodeResponse", "parse reply")
	}
	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = "no message"
		}
		return errors.WrapTransient(fmt.Errorf("%w: %s", errors.ErrRejected, msg), "transport", "DecodeResponse", "check reply")
	}
	return nil
}

// PayloadSchema is the JSON Schema of the upload body.
const PayloadSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["events"],
  "properties": {
    "events": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "timestamp", "type", "severity", "source", "message"],
        "properties": {
          "id":        {"type": "string", "minLength": 1},
          "timestamp": {"type": "string", "minLength": 1},
          "type":      {"enum": ["console", "network", "auth", "error", "performance", "custom"]},
          "severity":  {"enum": ["low", "medium", "high", "critical"]},
          "source":    {"type": "string"},
          "message":   {"type": "string", "maxLength": 1015},
          "data":      {},
          "sessionId": {"type": "string"},
          "userId":    {"type": "string"}
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`
