package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the Redis list the API pushes to and workers pop from.
const DefaultKey = "staging:jobs"

const defaultBlockTimeout = 5 * time.Second

type redisLists interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

// RedisQueue pushes on the left and blocks popping on the right.
type RedisQueue struct {
	client  redisLists
	key     string
	timeout time.Duration
}

// NewRedisQueue wraps an existing client. An empty key uses DefaultKey.
func NewRedisQueue(client redis.UniversalClient, key string) *RedisQueue {
	return newRedisQueue(client, key, defaultBlockTimeout)
}

func newRedisQueue(client redisLists, key string, timeout time.Duration) *RedisQueue {
	key = strings.TrimSpace(key)
	if key == "" {
		key = DefaultKey
	}
	return &RedisQueue{client: client, key: key, timeout: timeout}
}

// Connect parses a redis:// URL and verifies the server answers a PING.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 10 * time.Second
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, jobID string) error {
	if err := q.client.LPush(ctx, q.key, jobID).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", jobID, err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (string, error) {
	result, err := q.client.BRPop(ctx, q.timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrEmpty
		}
		return "", fmt.Errorf("dequeue: %w", err)
	}
	// result[0] is the list name.
	if len(result) != 2 || strings.TrimSpace(result[1]) == "" {
		return "", ErrEmpty
	}
	return result[1], nil
}
