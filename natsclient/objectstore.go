package natsclient

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/debugtel/errors"
)

// CreateObjectStore creates or gets a JetStream object store bucket.
func (m *Client) CreateObjectStore(ctx context.Context, cfg jetstream.ObjectStoreConfig) (jetstream.ObjectStore, error) {
	if m.Status() == StatusCircuitOpen {
		return nil, ErrCircuitOpen
	}

	if m.Status() != StatusConnected {
		return nil, ErrNotConnected
	}

	js, err := m.JetStream()
	if err != nil {
		m.recordFailure()
		return nil, err
	}

	store, err := js.ObjectStore(ctx, cfg.Bucket)
	if err == nil {
		m.resetCircuit()
		return store, nil
	}

	store, err = js.CreateObjectStore(ctx, cfg)
	if err != nil {
		if isAlreadyExistsError(err) {
			// Lost a create race; the bucket is there now.
			store, err = js.ObjectStore(ctx, cfg.Bucket)
			if err != nil {
				m.recordFailure()
				return nil, errors.Wrap(err, "Client", "CreateObjectStore",
					fmt.Sprintf("access existing bucket %s", cfg.Bucket))
			}
			m.resetCircuit()
			return store, nil
		}
		m.recordFailure()
		return nil, errors.WrapTransient(err, "Client", "CreateObjectStore",
			fmt.Sprintf("create bucket %s", cfg.Bucket))
	}

	m.logger.Info("Created object store bucket", "bucket", cfg.Bucket)
	m.resetCircuit()
	return store, nil
}

// DeleteObjectStore removes an object store bucket.
func (m *Client) DeleteObjectStore(ctx context.Context, bucket string) error {
	if m.Status() != StatusConnected {
		return ErrNotConnected
	}

	js, err := m.JetStream()
	if err != nil {
		return err
	}

	if err := js.DeleteObjectStore(ctx, bucket); err != nil {
		return errors.WrapTransient(err, "Client", "DeleteObjectStore", fmt.Sprintf("delete bucket %s", bucket))
	}
	return nil
}
