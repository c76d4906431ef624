package auth

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	radix "github.com/mediocregopher/radix/v3"
	"go.uber.org/zap"

	"github.com/example/canteen/internal/config"
)

const tokenCacheKey = "canteen:jwt:%s"

// TokenCache 把 JWT 解析结果缓存在 Redis，减少每次请求的验签开销。
// redis 为空时退化为直接解析。
type TokenCache struct {
	redis radix.Client
	jwt   *config.JWTConfig
	ttl   time.Duration
}

// NewTokenCache 构建缓存器
func NewTokenCache(redis radix.Client, jwtCfg *config.JWTConfig, ttl time.Duration) *TokenCache {
	return &TokenCache{
		redis: redis,
		jwt:   jwtCfg,
		ttl:   ttl,
	}
}

func cacheKey(token string) string {
	sum := sha1.Sum([]byte(token))
	return fmt.Sprintf(tokenCacheKey, hex.EncodeToString(sum[:]))
}

// Verify 先查缓存，未命中再验签并回填
func (c *TokenCache) Verify(ctx context.Context, token string) (*Claims, error) {
	if claims, ok := c.get(token); ok {
		return claims, nil
	}
	claims, err := ParseToken(c.jwt, token)
	if err != nil {
		return nil, err
	}
	c.set(token, claims)
	return claims, nil
}

func (c *TokenCache) enabled() bool {
	return c.redis != nil && c.ttl > 0
}

func (c *TokenCache) get(token string) (*Claims, bool) {
	if !c.enabled() {
		return nil, false
	}
	key := cacheKey(token)
	var raw string
	if err := c.redis.Do(radix.Cmd(&raw, "GET", key)); err != nil {
		zap.L().Warn("token cache get failed", zap.Error(err))
		return nil, false
	}
	if raw == "" {
		return nil, false
	}
	var claims Claims
	if err := json.Unmarshal([]byte(raw), &claims); err != nil {
		// 数据损坏，清理后走正常解析
		_ = c.redis.Do(radix.Cmd(nil, "DEL", key))
		return nil, false
	}
	// 缓存时间可能长于 token 剩余有效期
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return nil, false
	}
	return &claims, true
}

func (c *TokenCache) set(token string, claims *Claims) {
	if !c.enabled() {
		return
	}
	body, err := json.Marshal(claims)
	if err != nil {
		return
	}
	ttl := c.ttl
	if claims.ExpiresAt != nil {
		if left := time.Until(claims.ExpiresAt.Time); left < ttl {
			ttl = left
		}
	}
	if ttl < time.Second {
		return
	}
	if err := c.redis.Do(radix.FlatCmd(nil, "SETEX", cacheKey(token), int64(ttl/time.Second), body)); err != nil {
		zap.L().Warn("token cache set failed", zap.Error(err))
	}
}
