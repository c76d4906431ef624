package redis

import (
	"sync"
	"time"

	radix "github.com/mediocregopher/radix/v3"
	"go.uber.org/zap"

	"github.com/example/canteen/internal/config"
)

var (
	client radix.Client
	once   sync.Once
)

// Init 初始化 Redis 连接池，仅用于缓存 JWT 校验结果
func Init(cfg *config.RedisConfig) radix.Client {
	once.Do(func() {
		size := cfg.PoolSize
		if size <= 0 {
			size = 10
		}
		pool, err := radix.NewPool("tcp", cfg.Addr, size, radix.PoolConnFunc(connFunc(cfg)))
		if err != nil {
			zap.L().Fatal("failed to connect redis", zap.String("addr", cfg.Addr), zap.Error(err))
		}
		if err := pool.Do(radix.Cmd(nil, "PING")); err != nil {
			zap.L().Fatal("redis ping failed", zap.String("addr", cfg.Addr), zap.Error(err))
		}
		zap.L().Info("redis connected", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB), zap.Int("pool_size", size))
		client = pool
	})
	return client
}

// connFunc 按配置建立单个连接：超时、密码、库号
func connFunc(cfg *config.RedisConfig) radix.ConnFunc {
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	opts := []radix.DialOpt{radix.DialTimeout(timeout)}
	if cfg.Password != "" {
		opts = append(opts, radix.DialAuthPass(cfg.Password))
	}
	if cfg.DB > 0 {
		opts = append(opts, radix.DialSelectDB(cfg.DB))
	}
	return func(network, addr string) (radix.Conn, error) {
		return radix.Dial(network, addr, opts...)
	}
}

// Client 获取 Redis 客户端
func Client() radix.Client {
	return client
}
