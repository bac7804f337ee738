package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClockNow(t *testing.T) {
	t.Parallel()

	got := New().Now()
	assert.Equal(t, time.UTC, got.Location())
	assert.Zero(t, got.Nanosecond())
	assert.WithinDuration(t, time.Now().UTC(), got, 2*time.Second)
}
