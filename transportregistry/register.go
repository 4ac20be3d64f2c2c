// Package transportregistry registers every built-in upload transport.
package transportregistry

import (
	"errors"

	pkgerrors "github.com/c360/debugtel/errors"
	"github.com/c360/debugtel/transport"
	"github.com/c360/debugtel/transport/httppost"
	"github.com/c360/debugtel/transport/kafka"
	"github.com/c360/debugtel/transport/natsreq"
)

// Register registers the built-in transports with the provided registry:
//   - http: JSON POST to the collector endpoint
//   - nats: NATS request/reply on a subject
//   - kafka: one keyed message per batch
func Register(registry *transport.Registry) error {
	// A nil registry is a programming error, not invalid input
	if registry == nil {
		return pkgerrors.WrapFatal(
			errors.New("registry cannot be nil"),
			"TransportRegistry", "Register", "registry validation")
	}

	if err := httppost.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "TransportRegistry", "Register", "HTTP transport registration")
	}

	if err := natsreq.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "TransportRegistry", "Register", "NATS transport registration")
	}

	if err := kafka.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "TransportRegistry", "Register", "Kafka transport registration")
	}

	return nil
}

// New builds the transport selected by cfg from a registry holding every
// built-in kind.
func New(cfg transport.Config, deps transport.Dependencies) (transport.Transport, error) {
	registry := transport.NewRegistry()
	if err := Register(registry); err != nil {
		return nil, err
	}
	return registry.New(cfg, deps)
}
