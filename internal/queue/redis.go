package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	redisPollTimeout = 2 * time.Second
	redisRetryDelay  = time.Second
)

// RedisQueue uses a Redis list: LPUSH to publish, BRPOP to consume
type RedisQueue struct {
	rdb    *redis.Client
	key    string
	logger *zap.Logger
}

// NewRedis connects to url and checks the server answers
func NewRedis(ctx context.Context, url, key string, logger *zap.Logger) (*RedisQueue, error) {
	if url == "" {
		url = "redis://localhost:6379/0"
	}
	if key == "" {
		key = DefaultName
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis unreachable: %w", err)
	}

	logger.Info("connected to redis", zap.String("addr", opts.Addr), zap.String("key", key))
	return &RedisQueue{rdb: rdb, key: key, logger: logger}, nil
}

// Publish pushes id onto the list
func (q *RedisQueue) Publish(ctx context.Context, id uuid.UUID) error {
	if err := q.rdb.LPush(ctx, q.key, id.String()).Err(); err != nil {
		return fmt.Errorf("failed to publish session %s: %w", id, err)
	}
	return nil
}

// Ping round-trips to the server
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.rdb.Ping(ctx).Err()
}

// Consume pops ids until ctx is done. Connection errors are logged and
// retried after a short delay.
func (q *RedisQueue) Consume(ctx context.Context, h Handler) error {
	for ctx.Err() == nil {
		res, err := q.rdb.BRPop(ctx, redisPollTimeout, q.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, redis.ErrClosed) {
				return ErrClosed
			}
			q.logger.Warn("redis pop failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(redisRetryDelay):
			}
			continue
		}
		// res is [key, value]
		id, err := uuid.Parse(res[len(res)-1])
		if err != nil {
			q.logger.Warn("dropping malformed message", zap.String("body", res[len(res)-1]))
			continue
		}
		handle(ctx, h, id, q.logger)
	}
	return nil
}

// Close closes the client
func (q *RedisQueue) Close() error {
	return q.rdb.Close()
}
