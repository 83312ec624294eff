// Package ratelimit provides fixed-window request limiters keyed by caller.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable is returned when the limiter backend cannot be reached.
var ErrUnavailable = errors.New("rate limit store unavailable")

// Limiter decides whether another event for key fits in the current window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// StatusChangeKey is the limiter key for a user's status-change submissions.
func StatusChangeKey(userID uint) string {
	return fmt.Sprintf("status_change:user:%d", userID)
}

// RedisLimiter counts events with INCR and starts the window with EXPIRE on the first hit,
// so every replica shares one budget per key.
type RedisLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// NewRedisLimiter returns a limiter allowing limit events per window. A limit of 0 disables it.
func NewRedisLimiter(rdb *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, limit: limit, window: window, prefix: "rl:"}
}

// Allow implements Limiter.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	if l.rdb == nil {
		return false, ErrUnavailable
	}

	k := l.prefix + key
	cnt, err := l.rdb.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if cnt == 1 {
		if err := l.rdb.Expire(ctx, k, l.window).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return cnt <= int64(l.limit), nil
}

type windowState struct {
	start time.Time
	count int
}

// MemoryLimiter is a process-local fixed-window limiter. It is used when Redis is
// not configured and in tests; budgets are not shared across replicas.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	windows map[string]*windowState
}

// NewMemoryLimiter returns a limiter allowing limit events per window. A limit of 0 disables it.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: make(map[string]*windowState),
	}
}

// WithClock replaces the time source.
func (l *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	l.now = now
	return l
}

// Allow implements Limiter.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.window {
		l.windows[key] = &windowState{start: now, count: 1}
		l.sweep(now)
		return true, nil
	}

	w.count++
	return w.count <= l.limit, nil
}

// sweep drops expired windows so the map does not grow with every caller ever seen.
func (l *MemoryLimiter) sweep(now time.Time) {
	if len(l.windows) < 1024 {
		return
	}
	for k, w := range l.windows {
		if now.Sub(w.start) >= l.window {
			delete(l.windows, k)
		}
	}
}

// Unlimited never refuses.
type Unlimited struct{}

// Allow implements Limiter.
func (Unlimited) Allow(context.Context, string) (bool, error) { return true, nil }
