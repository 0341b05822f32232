package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/portal/internal/clock"
	"github.com/smallbiznis/portal/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("rate.limit",
	fx.Provide(NewRedisClient),
	fx.Provide(NewBucket),
	fx.Provide(NewAuthLimiter),
	fx.Provide(NewLocker),
)

// NewRedisClient returns nil when redis is disabled.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config) (*redis.Client, error) {
	if !cfg.Redis.Enabled && !cfg.RateLimit.Enabled {
		return nil, nil
	}
	addr := strings.TrimSpace(cfg.Redis.Addr)
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func NewBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return NewTokenBucket(client)
}

func NewLocker(client *redis.Client, clk clock.Clock, log *zap.Logger) Locker {
	if client == nil {
		log.Info("redis disabled, using in-process locks")
		return NewLocalLocker(clk.Now)
	}
	return NewRedisLocker(client)
}

// LockTTL is the lease length for tenant-wide writes.
func LockTTL(cfg config.Config) time.Duration {
	if cfg.RateLimit.LockTTLSec <= 0 {
		return 15 * time.Second
	}
	return time.Duration(cfg.RateLimit.LockTTLSec) * time.Second
}
