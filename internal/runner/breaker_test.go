package runner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := NewBreaker(3, time.Hour)

	for i := 0; i < 2; i++ {
		b.Record(false)
		assert.NoError(t, b.Allow())
	}
	b.Record(false)
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	b := NewBreaker(2, time.Hour)

	b.Record(false)
	b.Record(true)
	b.Record(false)
	assert.NoError(t, b.Allow())
}

func TestBreakerClosesAfterCooldown(t *testing.T) {
	b := NewBreaker(1, 20*time.Millisecond)

	b.Record(false)
	require.ErrorIs(t, b.Allow(), ErrCircuitOpen)

	time.Sleep(30 * time.Millisecond)
	assert.NoError(t, b.Allow())
}
