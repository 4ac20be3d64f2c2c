// Package errors provides standardized error handling for debugtel components.
//
// # Overview
//
// Errors are sorted into three classes that drive handling decisions in the
// pipeline: Transient (temporary, retried by the uploader), Invalid (bad input,
// never retried) and Fatal (unrecoverable, surfaced at startup only).
//
//   - Transient: transport failures, timeouts, unavailable storage
//   - Invalid: encoding failures, malformed responses, empty batches
//   - Fatal: invalid or missing configuration
//
// # Error Wrapping Pattern
//
// All wrapping follows the format:
//
//	"component.method: action failed: %w"
//
// Three wrappers set the class explicitly:
//
//	errors.WrapTransient(err, "httppost", "Send", "post batch")
//	errors.WrapInvalid(err, "httppost", "Send", "encode batch")
//	errors.WrapFatal(err, "config", "Load", "read layer")
//
// The generic Wrap() adds context and leaves classification to the wrapped
// error chain.
//
// # Uploader integration
//
// The batch uploader converts Invalid errors into retry.NonRetryable so that
// a batch that can never be encoded is requeued immediately instead of
// burning its retry budget:
//
//	if errors.IsInvalid(err) {
//	    return retry.NonRetryable(err)
//	}
//
// # Bounded error history
//
// Truncate shortens an error message on a rune boundary. The pipeline keeps
// the last five upload errors, each cut to 200 bytes.
//
// # Thread Safety
//
// Error variables are immutable and ClassifiedError values are safe to share
// across goroutines after creation.
package errors
