//go:build integration

package logfile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/debugtel/natsclient"
)

func TestIntegration_ObjectStoreDownloader(t *testing.T) {
	tc := natsclient.NewTestClient(t, natsclient.WithJetStream(), natsclient.WithFastStartup())
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	d, err := NewObjectStoreDownloader(ctx, tc.Client, "debugtel-logs-test")
	require.NoError(t, err)

	src := &fakeSource{events: sampleEvents()}
	g, err := New(DefaultConfig(), src, WithDownloader(d))
	require.NoError(t, err)

	n, err := g.DownloadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	js, err := tc.Client.JetStream()
	require.NoError(t, err)
	store, err := js.ObjectStore(ctx, "debugtel-logs-test")
	require.NoError(t, err)

	cats := g.GenerateLogFiles()
	data, err := store.GetBytes(ctx, cats[0].Filename)
	require.NoError(t, err)

	parsed, err := ParseLogText(string(data))
	require.NoError(t, err)
	assert.Equal(t, 3, parsed.TotalEvents)
}
