// Package sanitizer removes sensitive data from debug telemetry.
//
// # Rules
//
// Redaction is driven by an ordered table of Rule values (pattern,
// replacement, category, severity). DefaultRules covers e-mail addresses,
// card numbers, SSNs, phone numbers, bearer tokens, API keys, passwords,
// JWTs, database URIs, file paths, IPv4 addresses and, as a conservative
// catch-all, any run of 32 or more ASCII letters and digits. Each rule is
// gated by a Config switch so whole categories can be turned off:
//
//	s, err := sanitizer.New(sanitizer.DefaultConfig())
//	clean := s.SanitizeString("mail jane@example.com")  // "mail [EMAIL_REDACTED]"
//
// AddRule and RemoveRule change the table at runtime. A call to Sanitize
// works on a snapshot taken when it starts. Every marker is a fixed point
// of the table, so sanitizing twice gives the same result as once.
//
// # Structured values
//
// Sanitize walks maps, slices and structs (structs via their JSON form).
// Values under keys that look secret (password, token, cookie, session and
// similar) are replaced by [REDACTED] without inspection. Errors become
// event.ErrorInfo with the stack trace cut to MaxStackTraceDepth lines.
//
// # Rate limiting and violations
//
// ShouldRateLimitErrorReporting answers true once a key has been reported
// RateLimitMax times within the trailing RateLimitWindow (10 per minute by
// default). Windows live in a TTL cache so idle keys disappear.
//
// LogSecurityViolation keeps the most recent violations in a ring buffer. In
// production, critical violations are also sent to a Reporter from a single
// background worker; failures there are logged at debug level and dropped so
// reporting can never recurse into more errors.
package sanitizer
