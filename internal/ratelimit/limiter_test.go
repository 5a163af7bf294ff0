package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/amirk1998/univ-erp/pkg/errors"
)

func TestRateLimiter(t *testing.T) {
	t.Run("Should allow the burst then refuse", func(t *testing.T) {
		rl := NewRateLimiter(1, 3)
		for range 3 {
			assert.NoError(t, rl.CheckLimit("login:stu1"))
		}
		assert.ErrorIs(t, rl.CheckLimit("login:stu1"), errors.ErrRateLimitExceeded)
	})

	t.Run("Should keep separate buckets per key", func(t *testing.T) {
		rl := NewRateLimiter(1, 1)
		assert.NoError(t, rl.CheckLimit("login:a"))
		assert.NoError(t, rl.CheckLimit("login:b"))
		assert.Error(t, rl.CheckLimit("login:a"))
	})

	t.Run("Should treat a non-positive rate as unlimited", func(t *testing.T) {
		rl := NewRateLimiter(0, 0)
		for range 100 {
			assert.NoError(t, rl.CheckLimit("login:a"))
		}
	})

	t.Run("Should refill over time", func(t *testing.T) {
		now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
		rl := NewRateLimiter(1, 1)
		rl.now = func() time.Time { return now }

		assert.NoError(t, rl.CheckLimit("ip:10.0.0.1"))
		assert.Error(t, rl.CheckLimit("ip:10.0.0.1"))

		now = now.Add(time.Second)
		assert.NoError(t, rl.CheckLimit("ip:10.0.0.1"))
	})
}

func TestCleanup(t *testing.T) {
	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1)
	rl.now = func() time.Time { return now }

	assert.NoError(t, rl.CheckLimit("login:old"))
	now = now.Add(DefaultIdleTTL - time.Minute)
	assert.NoError(t, rl.CheckLimit("login:fresh"))
	now = now.Add(2 * time.Minute)

	assert.Equal(t, 1, rl.Cleanup())
	assert.Equal(t, 1, rl.Len())
}
