package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLimiter_FixedWindow(t *testing.T) {
	mr, client := newTestRedis(t)
	l := NewRedisLimiter(client, 2, time.Hour)
	fixed := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }
	ctx := context.Background()

	ok, _, err := l.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _, err = l.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, retryAfter, err := l.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 30*time.Minute, retryAfter, "window opened at 12:00, resets at 13:00")

	windowStart := fixed.Truncate(time.Hour)
	assert.True(t, mr.Exists(fmt.Sprintf("ratelimit:gen:user-1:%d", windowStart.Unix())))

	// Other users have their own counters.
	ok, _, err = l.Allow(ctx, "user-2")
	require.NoError(t, err)
	assert.True(t, ok)

	// A new window starts fresh.
	fixed = fixed.Add(time.Hour)
	ok, _, err = l.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	l := NewMemoryLimiter(2, time.Hour)
	fixed := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, _, err := l.Allow(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, retryAfter, err := l.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 30*time.Minute, retryAfter)

	ok, _, err = l.Allow(ctx, "user-2")
	require.NoError(t, err)
	assert.True(t, ok, "limits are per user")

	fixed = fixed.Add(time.Hour)
	ok, _, err = l.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, ok, "new window starts fresh")
}
