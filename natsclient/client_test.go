package natsclient

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/flowkit/errors"
)

func TestNewClient(t *testing.T) {
	t.Run("requires url", func(t *testing.T) {
		_, err := NewClient("")
		assert.Error(t, err)
	})

	t.Run("defaults", func(t *testing.T) {
		c, err := NewClient("nats://localhost:4222")
		require.NoError(t, err)
		assert.Equal(t, "nats://localhost:4222", c.URL())
		assert.Equal(t, StatusDisconnected, c.Status())
		assert.Equal(t, -1, c.maxReconnects)
		assert.False(t, c.IsConnected())
	})

	t.Run("options applied", func(t *testing.T) {
		c, err := NewClient("nats://localhost:4222",
			WithClientName("editor"),
			WithMaxReconnects(3),
			WithReconnectWait(time.Second),
			WithConnectTimeout(2*time.Second),
			WithDrainTimeout(10*time.Second),
		)
		require.NoError(t, err)
		assert.Equal(t, "editor", c.clientName)
		assert.Equal(t, 3, c.maxReconnects)
		assert.Equal(t, time.Second, c.reconnectWait)
		assert.Equal(t, 2*time.Second, c.timeout)
		assert.Equal(t, 10*time.Second, c.drainTimeout)
	})
}

func TestConnectionStatusString(t *testing.T) {
	assert.Equal(t, "disconnected", StatusDisconnected.String())
	assert.Equal(t, "connecting", StatusConnecting.String())
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "reconnecting", StatusReconnecting.String())
	assert.Equal(t, "closed", StatusClosed.String())
	assert.Equal(t, "unknown", ConnectionStatus(42).String())
}

func TestJetStreamRequiresConnection(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	_, err = c.JetStream()
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrNoConnection))
}

func TestKVErrorHelpers(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		assert.False(t, IsKVNotFoundError(nil))
		assert.True(t, IsKVNotFoundError(errors.ErrKeyNotFound))
		assert.True(t, IsKVNotFoundError(jetstream.ErrKeyNotFound))
		assert.True(t, IsKVNotFoundError(stderrors.New("nats: key not found")))
		assert.False(t, IsKVNotFoundError(stderrors.New("some other failure")))
	})

	t.Run("conflict", func(t *testing.T) {
		assert.False(t, IsKVConflictError(nil))
		assert.True(t, IsKVConflictError(errors.ErrVersionConflict))
		assert.True(t, IsKVConflictError(errors.ErrAlreadyExists))
		assert.True(t, IsKVConflictError(jetstream.ErrKeyExists))
		assert.True(t, IsKVConflictError(stderrors.New("nats: wrong last sequence: 7")))
		assert.False(t, IsKVConflictError(stderrors.New("timeout")))
	})
}
