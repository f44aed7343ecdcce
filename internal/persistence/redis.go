package persistence

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bugsage-dev/bugsage/internal/config"
)

// Redis holds the client behind login sessions and the dashboard cache.
type Redis struct {
	Client *redis.Client
}

// NewRedis builds the client and checks it once. Startup continues when
// Redis is down: logins fail and reports skip the cache until readiness
// turns green again.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *Redis {
	opts := redisOptions(cfg)
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	fields := []zap.Field{zap.String("addr", opts.Addr), zap.Int("db", opts.DB), zap.Int("pool_size", opts.PoolSize)}
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, sessions and report cache degraded", append(fields, zap.Error(err))...)
	} else {
		logger.Info("redis ready", fields...)
	}
	return &Redis{Client: client}
}

// redisOptions maps the REDIS_* settings onto go-redis options.
func redisOptions(cfg config.RedisConfig) *redis.Options {
	opts := &redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout(),
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	return opts
}

func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping backs the redis readiness check.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}
