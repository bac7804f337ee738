package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffDelay(t *testing.T) {
	t.Parallel()

	b := DefaultBackoff()
	assert.Equal(t, 2*time.Second, b.Delay(1))
	assert.Equal(t, 4*time.Second, b.Delay(2))
	assert.Equal(t, 8*time.Second, b.Delay(3))
	assert.Equal(t, 10*time.Second, b.Delay(4), "capped at max")
	assert.Equal(t, 10*time.Second, b.Delay(500))
	assert.Equal(t, 2*time.Second, b.Delay(0))
}

func TestBackoffValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultBackoff().Validate())
	require.Error(t, Backoff{MaxRetries: -1, Multiplier: 2}.Validate())
	require.Error(t, Backoff{Base: -time.Second, Multiplier: 2}.Validate())
	require.Error(t, Backoff{Base: time.Second, Multiplier: 0.5, Max: time.Second}.Validate())
	require.Error(t, Backoff{Base: time.Second, Multiplier: 2, Max: time.Millisecond}.Validate())
}

func TestTimerPauser(t *testing.T) {
	t.Parallel()

	var p TimerPauser
	start := time.Now()
	require.NoError(t, p.Pause(context.Background(), 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, p.Pause(ctx, time.Hour))
	require.NoError(t, p.Pause(context.Background(), 0))
}
