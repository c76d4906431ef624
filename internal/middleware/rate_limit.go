package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/kataras/iris/v12"
	"golang.org/x/time/rate"
)

// UserRateLimiter 按用户限流，每个用户一个令牌桶，长时间不活跃的桶会被清理
type UserRateLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	buckets map[int64]*bucket
	now     func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewUserRateLimiter perSecond 为每秒补充的令牌数，burst 为桶容量
func NewUserRateLimiter(perSecond float64, burst int, ttl time.Duration) *UserRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &UserRateLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		ttl:     ttl,
		buckets: make(map[int64]*bucket),
		now:     time.Now,
	}
}

// Allow 检查用户是否还有令牌
func (l *UserRateLimiter) Allow(userID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[userID]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[userID] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Sweep 清理超过 ttl 未访问的桶，返回清理数量
func (l *UserRateLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	n := 0
	for id, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.ttl {
			delete(l.buckets, id)
			n++
		}
	}
	return n
}

// Run 按 ttl 周期清理，直到 ctx 结束
func (l *UserRateLimiter) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.Sweep()
		}
	}
}

// Handler 限流中间件，需要放在 Auth 之后
func (l *UserRateLimiter) Handler() iris.Handler {
	return func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default(UserIDKey, 0)
		if !l.Allow(userID) {
			ctx.StopWithJSON(iris.StatusTooManyRequests, iris.Map{
				"code": iris.StatusTooManyRequests,
				"msg":  "请求过于频繁，请稍后再试",
			})
			return
		}
		ctx.Next()
	}
}
