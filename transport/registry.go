package transport

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/c360/debugtel/errors"
	"github.com/c360/debugtel/metric"
	"github.com/c360/debugtel/natsclient"
	"github.com/c360/debugtel/pkg/security"
)

// Dependencies are the shared resources a transport factory may use.
type Dependencies struct {
	NATSClient      *natsclient.Client      // required by the nats kind
	MetricsRegistry *metric.MetricsRegistry // can be nil
	Logger          *slog.Logger            // can be nil, defaults to slog.Default()
	Security        security.Config
}

// GetLogger returns the configured logger tagged with a component name
func (d Dependencies) GetLogger(component string) *slog.Logger {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", component)
}

// Factory builds a transport from configuration. Factories do no I/O.
type Factory func(cfg Config, deps Dependencies) (Transport, error)

// Registry maps kinds to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[Kind]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[Kind]Factory)}
}

// Register adds a factory. A kind may be registered once.
func (r *Registry) Register(kind Kind, factory Factory) error {
	if kind == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register", "kind validation")
	}
	if factory == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register", "factory validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[kind]; exists {
		return errors.WrapInvalid(fmt.Errorf("transport %q is already registered", kind),
			"Registry", "Register", "duplicate kind check")
	}
	r.factories[kind] = factory
	return nil
}

// Kinds lists the registered kinds in sorted order
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]Kind, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// New validates cfg and builds the transport for cfg.Kind (http when empty).
func (r *Registry) New(cfg Config, deps Dependencies) (Transport, error) {
	if cfg.Kind == "" {
		cfg.Kind = KindHTTP
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	factory, ok := r.factories[cfg.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: transport %q is not registered", errors.ErrInvalidConfig, cfg.Kind),
			"Registry", "New", "factory lookup")
	}
	return factory(cfg, deps)
}
