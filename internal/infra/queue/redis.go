// Package queue is the Redis-list work queue.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bryanwahyu/automaton-ingest/internal/domain/items"
)

// RedisQueue pushes on the left and pops from the right, so tokens come out
// in insertion order. There is no ack: a popped token is gone.
type RedisQueue struct {
	client *redis.Client
	key    string
}

var _ items.Queue = (*RedisQueue)(nil)

// Connect opens a client and pings it.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx2).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) Push(ctx context.Context, id items.ID) error {
	return q.client.LPush(ctx, q.key, string(id)).Err()
}

func (q *RedisQueue) Pop(ctx context.Context) (items.ID, bool, error) {
	v, err := q.client.RPop(ctx, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return items.ID(v), true, nil
}

// Len is the current backlog.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// Ping is used by the readiness check.
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}
