package queue

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/sudarshan/search-indexer/internal/task"
)

// Redis is a TaskStore backed by a Redis list. Producers RPUSH encoded
// tasks onto key; Peek reads from the head with LRANGE (non-destructive,
// matching the TaskStore contract); Ack trims acknowledged entries from
// the head with LPOP.
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis creates a Redis-backed TaskStore using key as the list.
func NewRedis(addr, key string) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		key:    key,
	}
}

// Enqueue appends tasks to the tail of the Redis list.
func (r *Redis) Enqueue(ctx context.Context, tasks ...task.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	encoded := make([]interface{}, len(tasks))
	for i, t := range tasks {
		encoded[i] = encode(t)
	}
	if err := r.client.RPush(ctx, r.key, encoded...).Err(); err != nil {
		return fmt.Errorf("queue/redis: enqueue: %w", err)
	}
	return nil
}

// Peek implements TaskStore.
func (r *Redis) Peek(ctx context.Context, max int) ([]task.Task, error) {
	if max <= 0 {
		max = -1
	} else {
		max--
	}
	raw, err := r.client.LRange(ctx, r.key, 0, int64(max)).Result()
	if err != nil {
		return nil, fmt.Errorf("queue/redis: peek: %w", err)
	}

	tasks := make([]task.Task, 0, len(raw))
	for _, s := range raw {
		t, err := decode(s)
		if err != nil {
			return nil, fmt.Errorf("queue/redis: decode %q: %w", s, err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// Ack implements TaskStore by trimming len(ids) entries from the head.
func (r *Redis) Ack(ctx context.Context, ids []task.ID) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.client.LPopCount(ctx, r.key, len(ids)).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("queue/redis: ack: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

func encode(t task.Task) string {
	return fmt.Sprintf("%d|%d", uint64(t.ID), int(t.Kind))
}

func decode(s string) (task.Task, error) {
	parts := strings.SplitN(s, "|", 2)
	if len(parts) != 2 {
		return task.Task{}, fmt.Errorf("malformed entry")
	}
	id, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return task.Task{}, fmt.Errorf("parse id: %w", err)
	}
	kind, err := strconv.Atoi(parts[1])
	if err != nil {
		return task.Task{}, fmt.Errorf("parse kind: %w", err)
	}
	return task.Task{ID: task.ID(id), Kind: task.Kind(kind)}, nil
}
