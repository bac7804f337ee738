package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherStoresPayloads(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), map[string]string{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), "payload")
	require.NoError(t, err)
	assert.Equal(t, "memory-2", id2)

	payloads := pub.Payloads()
	require.Len(t, payloads, 2)
	payloads[1] = "modified"
	assert.Equal(t, "payload", pub.Payloads()[1])
}

func TestPublisherErrors(t *testing.T) {
	t.Parallel()

	pub := New()
	pub.Err = errors.New("unavailable")
	_, err := pub.Publish(context.Background(), "x")
	require.EqualError(t, err, "unavailable")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New().Publish(ctx, "x")
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, pub.Payloads())
}
