// Package retry provides bounded retry logic for transient failures.
//
// # Overview
//
// Do runs a function until it succeeds, returns a NonRetryable error, the
// context is cancelled, or MaxAttempts is reached. Between attempts it sleeps
// according to either exponential backoff (InitialDelay * Multiplier^n) or,
// with Linear set, InitialDelay * n after the n-th failed attempt.
//
// # Configuration Presets
//
//   - DefaultConfig(): 3 attempts, 100ms-5s exponential delay
//   - Quick(): 10 attempts, 50ms-1s delay (connection startup)
//   - LinearConfig(retries, delay): one attempt plus retries, linear delay
//
// # Usage
//
// The batch uploader retries a transport send with linear backoff:
//
//	cfg := retry.LinearConfig(3, time.Second)
//	err := retry.Do(ctx, cfg, func() error {
//	    return sender.Send(ctx, batch)
//	})
//
// Errors that can never succeed are marked so the loop exits at once:
//
//	if encodeErr != nil {
//	    return retry.NonRetryable(encodeErr)
//	}
//
// OnRetry is invoked before every backoff sleep and is where callers count
// retries for their own statistics.
//
// # Context Cancellation
//
// All retry operations respect context cancellation, both during operation
// execution and during backoff delay.
//
// # Thread Safety
//
// All functions are safe for concurrent use. The jitter mechanism uses a
// mutex-guarded random source.
package retry
