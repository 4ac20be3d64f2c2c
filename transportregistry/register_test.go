package transportregistry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/debugtel/errors"
	"github.com/c360/debugtel/transport"
	"github.com/c360/debugtel/transport/httppost"
	"github.com/c360/debugtel/transport/kafka"
)

func TestRegister(t *testing.T) {
	registry := transport.NewRegistry()
	require.NoError(t, Register(registry))

	assert.Equal(t,
		[]transport.Kind{transport.KindHTTP, transport.KindKafka, transport.KindNATS},
		registry.Kinds())

	// Registering twice reports the duplicate
	assert.Error(t, Register(registry))
}

func TestRegister_NilRegistry(t *testing.T) {
	err := Register(nil)
	assert.True(t, errors.IsFatal(err))
}

func TestNew_SelectsKind(t *testing.T) {
	cfg := transport.DefaultConfig()

	tr, err := New(cfg, transport.Dependencies{})
	require.NoError(t, err)
	assert.IsType(t, &httppost.Transport{}, tr)

	cfg.Kind = transport.KindKafka
	tr, err = New(cfg, transport.Dependencies{})
	require.NoError(t, err)
	assert.IsType(t, &kafka.Transport{}, tr)
	require.NoError(t, tr.Close())
}
