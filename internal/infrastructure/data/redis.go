package data

import (
	"context"
	"fmt"
	"time"

	"github.com/bionicotaku/lingo-services-listing/internal/infrastructure/configloader"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient 创建 Redis 客户端并确认可达。
func NewRedisClient(ctx context.Context, c configloader.RedisConfig, logger log.Logger) (*redis.Client, func(), error) {
	helper := log.NewHelper(logger)

	opts := &redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	}
	if c.DialTimeout.Duration > 0 {
		opts.DialTimeout = c.DialTimeout.Duration
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis %s: %w", c.Addr, err)
	}
	helper.Infof("redis client connected: addr=%s db=%d", c.Addr, c.DB)

	cleanup := func() {
		helper.Info("closing redis client")
		if err := client.Close(); err != nil {
			helper.Warnf("redis close: %v", err)
		}
	}
	return client, cleanup, nil
}
