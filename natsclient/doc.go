// Package natsclient provides a NATS client with circuit breaker protection,
// automatic reconnection and the JetStream object store access used by the
// telemetry transports and log delivery.
//
// # Circuit breaker
//
// Connection failures are counted per round. After the threshold (default 5)
// the circuit opens, Connect fails fast with ErrCircuitOpen, and the backoff
// doubles up to the configured maximum. After the backoff the circuit
// half-opens and the next Connect may try again.
//
// # Usage
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithName("debugtel"),
//	    natsclient.WithLogger(logger),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
//	reply, err := client.Request(ctx, "debugtel.upload", body,
//	    map[string]string{"Idempotency-Key": key})
//
// # Object store
//
// CreateObjectStore returns an existing bucket or creates it, tolerating a
// concurrent create by another process.
//
// # Testing
//
// NewTestClient starts a NATS container through testcontainers-go and
// registers cleanup on the test. Integration tests are behind the
// "integration" build tag.
package natsclient
