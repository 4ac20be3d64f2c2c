// Package event defines the debug event data model.
//
// A DebugEvent is one captured occurrence: a console message, a failed
// network call, an auth failure, an error, a performance sample or anything
// custom. Events are JSON encoded with camelCase field names, which is also
// the upload wire format.
//
// Size bounds are enforced here so every consumer agrees on them:
//
//	msg, cut := event.TruncateMessage(ev.Message)   // 1000 runes + "... [truncated]"
//	ev, shrunk := event.FitSize(ev, maxEventDataSize)
//
// FitSize replaces oversized data with a TruncatedData stub carrying the
// original size and a prefix of the encoded payload.
package event
