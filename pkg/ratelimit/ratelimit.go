// Package ratelimit 提供按 key 计数的限流器：Redis 滑动窗口与进程内令牌桶两种实现。
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter 按 key 限流
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// SlidingWindow Redis 滑动窗口计数接口，由 pkg/redis.Client 实现
type SlidingWindow interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// redisLimiter 基于 Redis 的分布式限流
type redisLimiter struct {
	store  SlidingWindow
	limit  int
	window time.Duration
}

// NewRedis 创建 Redis 滑动窗口限流器
func NewRedis(store SlidingWindow, limit int, window time.Duration) Limiter {
	return &redisLimiter{store: store, limit: limit, window: window}
}

func (l *redisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return l.store.CheckRateLimit(ctx, key, l.limit, l.window)
}

// Local 进程内令牌桶限流：window 内最多 limit 次，按 key 独立计数
// 仅在 Redis 不可用时使用，多实例部署下各实例独立计数
type Local struct {
	mu      sync.Mutex
	every   rate.Limit
	burst   int
	idleTTL time.Duration
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewLocal 创建进程内限流器
func NewLocal(limit int, window time.Duration) *Local {
	if limit <= 0 {
		limit = 1
	}
	return &Local{
		every:   rate.Every(window / time.Duration(limit)),
		burst:   limit,
		idleTTL: 2 * window,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (l *Local) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.every, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	allowed := b.lim.AllowN(now, 1)

	l.sweep(now)
	return allowed, nil
}

// sweep 清理长时间未访问的 key
func (l *Local) sweep(now time.Time) {
	if len(l.buckets) < 1024 {
		return
	}
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idleTTL {
			delete(l.buckets, k)
		}
	}
}

// Fallback 优先使用 primary，primary 出错时降级到 secondary
type Fallback struct {
	primary   Limiter
	secondary Limiter
	onError   func(error)
}

// NewFallback 创建带降级的限流器；onError 可为 nil
func NewFallback(primary, secondary Limiter, onError func(error)) *Fallback {
	return &Fallback{primary: primary, secondary: secondary, onError: onError}
}

func (f *Fallback) Allow(ctx context.Context, key string) (bool, error) {
	ok, err := f.primary.Allow(ctx, key)
	if err == nil {
		return ok, nil
	}
	if f.onError != nil {
		f.onError(err)
	}
	return f.secondary.Allow(ctx, key)
}

// New 根据 Redis 可用性组装限流器；store 为 nil 时只使用进程内实现
func New(store SlidingWindow, limit int, window time.Duration, onError func(error)) Limiter {
	local := NewLocal(limit, window)
	if store == nil {
		return local
	}
	return NewFallback(NewRedis(store, limit, window), local, onError)
}
