// cartstore/redis_backend.go

package cartstore

import (
	"context"
	"time"

	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	cartField          = "cart"
	maxConnectAttempts = 30
	maxConnectBackoff  = 30 * time.Second
)

// RedisBackend stores each cart in a Redis hash under its key, field "cart".
type RedisBackend struct {
	client *redis.Client
	log    logrus.FieldLogger
}

// NewRedisBackend builds a backend for redisAddr, which is either a redis:// URL
// or a plain "host:port".
func NewRedisBackend(redisAddr string, log logrus.FieldLogger) *RedisBackend {
	opts, err := redis.ParseURL(redisAddr)
	if err != nil {
		opts = &redis.Options{
			Addr:         redisAddr,
			MinIdleConns: 1,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
			PoolTimeout:  4 * time.Second,
			IdleTimeout:  180 * time.Second,
		}
	}

	client := redis.NewClient(opts)
	client.AddHook(redisotel.NewTracingHook())

	return &RedisBackend{client: client, log: log.WithField("backend", "redis")}
}

// Initialize waits for Redis to answer a ping, retrying with exponential backoff.
func (r *RedisBackend) Initialize(ctx context.Context) error {
	for i := 0; i < maxConnectAttempts; i++ {
		if r.Ping(ctx) {
			r.log.WithField("attempt", i+1).Info("connected to redis")
			return nil
		}

		backoff := time.Second << uint(i)
		if backoff > maxConnectBackoff || backoff <= 0 {
			backoff = maxConnectBackoff
		}
		r.log.WithField("attempt", i+1).WithField("backoff", backoff.String()).Warn("redis not reachable, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return errors.Errorf("failed to connect to redis after %d attempts", maxConnectAttempts)
}

// Load reads the cart bytes stored under key.
func (r *RedisBackend) Load(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.HGet(ctx, key, cartField).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "redis HGET %s", key)
	}
	return val, nil
}

// Save writes the cart bytes under key.
func (r *RedisBackend) Save(ctx context.Context, key string, data []byte) error {
	if err := r.client.HSet(ctx, key, cartField, data).Err(); err != nil {
		return errors.Wrapf(err, "redis HSET %s", key)
	}
	return nil
}

// Ping reports whether Redis answers a PING.
func (r *RedisBackend) Ping(ctx context.Context) bool {
	return r.client.Ping(ctx).Err() == nil
}

// Close releases the connection pool.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}
