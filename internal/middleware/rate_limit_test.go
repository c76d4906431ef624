package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUserRateLimiterPerUser(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	l := NewUserRateLimiter(1, 2, time.Minute)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow(1))
	assert.True(t, l.Allow(1))
	assert.False(t, l.Allow(1))
	// 其他用户不受影响
	assert.True(t, l.Allow(2))

	now = now.Add(time.Second)
	assert.True(t, l.Allow(1))
	assert.False(t, l.Allow(1))
}

func TestUserRateLimiterSweep(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	l := NewUserRateLimiter(1, 1, time.Minute)
	l.now = func() time.Time { return now }

	l.Allow(1)
	now = now.Add(30 * time.Second)
	l.Allow(2)
	now = now.Add(45 * time.Second)

	assert.Equal(t, 1, l.Sweep())
	l.mu.Lock()
	_, kept := l.buckets[2]
	l.mu.Unlock()
	assert.True(t, kept)
}
