package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// Limiter enforces the per-user generation quota.
type Limiter interface {
	// Allow consumes one slot for userID. When the quota is exhausted it
	// returns false plus the time until the current window resets.
	Allow(ctx context.Context, userID string) (bool, time.Duration, error)
}

// RedisLimiter counts generations per user in fixed windows, keyed
// ratelimit:gen:<userID>:<windowStart>. Counters expire with the window.
type RedisLimiter struct {
	client *backend.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRedisLimiter wraps an existing Redis client. limit is the number of
// generations permitted per window.
func NewRedisLimiter(client *backend.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window, now: time.Now}
}

// Allow consumes one slot for userID.
func (l *RedisLimiter) Allow(ctx context.Context, userID string) (bool, time.Duration, error) {
	now := l.now()
	windowStart := now.Truncate(l.window)
	key := fmt.Sprintf("ratelimit:gen:%s:%d", userID, windowStart.Unix())

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("rate limit: %w", err)
	}
	if incr.Val() > int64(l.limit) {
		return false, windowStart.Add(l.window).Sub(now), nil
	}
	return true, 0, nil
}

// MemoryLimiter is the in-process fixed-window counter used when Redis is
// not configured.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows map[string]*memoryWindow
	now     func() time.Time
}

type memoryWindow struct {
	start time.Time
	count int
}

// NewMemoryLimiter returns an in-memory limiter. limit is the number of
// generations permitted per window.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		windows: make(map[string]*memoryWindow),
		now:     time.Now,
	}
}

// Allow consumes one slot for userID. Stale windows reset on first use.
func (l *MemoryLimiter) Allow(_ context.Context, userID string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	start := now.Truncate(l.window)
	w := l.windows[userID]
	if w == nil || !w.start.Equal(start) {
		w = &memoryWindow{start: start}
		l.windows[userID] = w
	}
	w.count++
	if w.count > l.limit {
		return false, start.Add(l.window).Sub(now), nil
	}
	return true, 0, nil
}
