// Package natsreq sends upload batches as NATS requests and waits for the
// collector's reply.
package natsreq

import (
	"context"
	"log/slog"
	"time"

	"github.com/c360/debugtel/errors"
	"github.com/c360/debugtel/transport"
)

const defaultTimeout = 10 * time.Second

// Requester is the subset of natsclient.Client the transport needs.
type Requester interface {
	Request(ctx context.Context, subject string, data []byte, headers map[string]string) ([]byte, error)
}

// Transport is a request/reply transport over NATS.
type Transport struct {
	client  Requester
	subject string
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a NATS transport. The client's lifecycle belongs to the caller.
func New(cfg transport.NATSConfig, client Requester, logger *slog.Logger) (*Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "natsreq", "New", "NATS client required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Transport{
		client:  client,
		subject: cfg.Subject,
		timeout: timeout,
		logger:  logger.With("component", "natsreq"),
	}, nil
}

// Register adds the nats kind to a transport registry
func Register(r *transport.Registry) error {
	return r.Register(transport.KindNATS, func(cfg transport.Config, deps transport.Dependencies) (transport.Transport, error) {
		if deps.NATSClient == nil {
			return nil, errors.WrapInvalid(errors.ErrMissingConfig, "natsreq", "Register", "NATS client required")
		}
		return New(cfg.NATS, deps.NATSClient, deps.GetLogger("natsreq"))
	})
}

// Send requests the subject with the encoded batch and checks the reply.
func (t *Transport) Send(ctx context.Context, batch transport.Batch) error {
	body, err := transport.Encode(batch)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	reply, err := t.client.Request(ctx, t.subject, body, map[string]string{
		transport.HeaderIdempotencyKey: batch.Key,
		"Content-Type":                 "application/json",
	})
	if err != nil {
		t.logger.Debug("Request failed", "subject", t.subject, "error", err)
		return errors.WrapTransient(err, "natsreq", "Send", "request "+t.subject)
	}

	return transport.DecodeResponse(reply)
}

// Close is a no-op; the shared client is closed by its owner.
func (t *Transport) Close() error {
	return nil
}
