package approuters

import (
	"testing"
	"time"

	"Flort/internal/configuration"

	"github.com/stretchr/testify/assert"
)

func TestLimiterPoolEvictsIdleClients(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	pool := newLimiterPool(configuration.RateLimitConfig{RPS: 10, Burst: 2})
	pool.now = func() time.Time { return now }

	for i := 0; i < 100; i++ {
		pool.Allow("10.0.0." + string(rune('0'+i%10)) + string(rune('0'+i/10)))
	}
	assert.Equal(t, 100, pool.Len())

	now = now.Add(5 * time.Minute)
	assert.True(t, pool.Allow("10.1.1.1"))
	assert.Equal(t, 101, pool.Len(), "clients seen five minutes ago are kept")

	now = now.Add(limiterIdleTTL + time.Second)
	assert.True(t, pool.Allow("10.1.1.2"))
	assert.Equal(t, 1, pool.Len())
}

func TestLimiterPoolKeepsBucketUntilItWouldHaveRefilled(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	pool := newLimiterPool(configuration.RateLimitConfig{RPS: 0.001, Burst: 1})
	pool.now = func() time.Time { return now }

	assert.True(t, pool.Allow("a"))
	assert.False(t, pool.Allow("a"))

	now = now.Add(limiterIdleTTL + time.Minute)
	assert.False(t, pool.Allow("a"), "an exhausted bucket must not be reset by eviction")

	now = now.Add(20 * time.Minute)
	assert.True(t, pool.Allow("b"))
	assert.True(t, pool.Allow("a"))
}

func TestLimiterPoolDefaults(t *testing.T) {
	pool := newLimiterPool(configuration.RateLimitConfig{})
	assert.Equal(t, 20.0, pool.cfg.RPS)
	assert.Equal(t, 40, pool.cfg.Burst)
}
