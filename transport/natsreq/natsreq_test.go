package natsreq

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/debugtel/errors"
	"github.com/c360/debugtel/event"
	"github.com/c360/debugtel/transport"
)

type fakeRequester struct {
	subject  string
	data     []byte
	headers  map[string]string
	deadline bool
	reply    []byte
	err      error
}

func (f *fakeRequester) Request(ctx context.Context, subject string, data []byte, headers map[string]string) ([]byte, error) {
	f.subject = subject
	f.data = data
	f.headers = headers
	_, f.deadline = ctx.Deadline()
	return f.reply, f.err
}

func batch() transport.Batch {
	return transport.NewBatch([]event.DebugEvent{{ID: "e1", Type: event.TypeAuth, Severity: event.SeverityLow}})
}

func TestSend_Success(t *testing.T) {
	fake := &fakeRequester{reply: []byte(`{"success":true}`)}
	tr, err := New(transport.NATSConfig{Subject: "collector.upload"}, fake, nil)
	require.NoError(t, err)

	b := batch()
	require.NoError(t, tr.Send(context.Background(), b))

	assert.Equal(t, "collector.upload", fake.subject)
	assert.Equal(t, b.Key, fake.headers[transport.HeaderIdempotencyKey])
	assert.True(t, fake.deadline, "request must be bounded by the transport timeout")

	var payload transport.Payload
	require.NoError(t, json.Unmarshal(fake.data, &payload))
	require.Len(t, payload.Events, 1)
	assert.Equal(t, "e1", payload.Events[0].ID)
}

func TestSend_Rejected(t *testing.T) {
	fake := &fakeRequester{reply: []byte(`{"success":false,"message":"busy"}`)}
	tr, err := New(transport.NATSConfig{Subject: "collector.upload"}, fake, nil)
	require.NoError(t, err)

	err = tr.Send(context.Background(), batch())
	assert.ErrorIs(t, err, errors.ErrRejected)
}

func TestSend_RequestError(t *testing.T) {
	fake := &fakeRequester{err: fmt.Errorf("nats: no responders available for request")}
	tr, err := New(transport.NATSConfig{Subject: "collector.upload", Timeout: time.Second}, fake, nil)
	require.NoError(t, err)

	err = tr.Send(context.Background(), batch())
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(transport.NATSConfig{}, &fakeRequester{}, nil)
	assert.True(t, errors.IsInvalid(err))

	_, err = New(transport.NATSConfig{Subject: "x"}, nil, nil)
	assert.True(t, errors.IsInvalid(err))
}

func TestRegister_RequiresClient(t *testing.T) {
	r := transport.NewRegistry()
	require.NoError(t, Register(r))

	cfg := transport.DefaultConfig()
	cfg.Kind = transport.KindNATS
	_, err := r.New(cfg, transport.Dependencies{})
	assert.True(t, errors.IsInvalid(err))
}
