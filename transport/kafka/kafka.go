// Package kafka writes upload batches to a Kafka topic. A batch counts as
// delivered once the brokers acknowledge the write.
package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/c360/debugtel/errors"
	"github.com/c360/debugtel/transport"
)

// MessageWriter is the subset of *kafka.Writer the transport needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Transport publishes one Kafka message per batch, keyed by the batch key.
type Transport struct {
	writer MessageWriter
	topic  string
	logger *slog.Logger
}

// Option configures a Transport
type Option func(*Transport)

// WithWriter replaces the Kafka writer, mainly for tests.
func WithWriter(w MessageWriter) Option {
	return func(t *Transport) {
		if w != nil {
			t.writer = w
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New creates a Kafka transport. No connection is made until the first Send.
func New(cfg transport.KafkaConfig, opts ...Option) (*Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	writeTimeout := cfg.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 10 * time.Second
	}

	t := &Transport{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
			Balancer:     &kafka.Hash{},
			WriteTimeout: writeTimeout,
			BatchSize:    1,
		},
		topic:  cfg.Topic,
		logger: slog.Default().With("component", "kafka"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Register adds the kafka kind to a transport registry
func Register(r *transport.Registry) error {
	return r.Register(transport.KindKafka, func(cfg transport.Config, deps transport.Dependencies) (transport.Transport, error) {
		return New(cfg.Kafka, WithLogger(deps.GetLogger("kafka")))
	})
}

// Send writes the encoded batch as a single message.
func (t *Transport) Send(ctx context.Context, batch transport.Batch) error {
	body, err := transport.Encode(batch)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(batch.Key),
		Value: body,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: transport.HeaderIdempotencyKey, Value: []byte(batch.Key)},
			{Key: "Content-Type", Value: []byte("application/json")},
		},
	}

	if err := t.writer.WriteMessages(ctx, msg); err != nil {
		t.logger.Debug("Write failed", "topic", t.topic, "error", err)
		return errors.WrapTransient(err, "kafka", "Send", "write to "+t.topic)
	}
	return nil
}

// Close flushes and closes the writer
func (t *Transport) Close() error {
	return t.writer.Close()
}
