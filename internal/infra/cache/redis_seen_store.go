// Package cache keeps watcher dedup state in Redis so that several bot
// instances, or a restarted one, agree on which proposals were announced.
package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultSeenKey = "governance_reminder_bot:seen_proposals"

// NewRedisClient parses a redis:// URL and checks the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// RedisSeenStore records handed-off proposal ids in a single Redis set.
type RedisSeenStore struct {
	client *redis.Client
	key    string
}

func NewRedisSeenStore(client *redis.Client, key string) *RedisSeenStore {
	if key == "" {
		key = defaultSeenKey
	}
	return &RedisSeenStore{client: client, key: key}
}

// MarkSeen adds id to the set and reports whether it was absent.
func (s *RedisSeenStore) MarkSeen(ctx context.Context, id string) (bool, error) {
	added, err := s.client.SAdd(ctx, s.key, id).Result()
	if err != nil {
		return false, fmt.Errorf("redis SADD %s: %w", id, err)
	}
	return added == 1, nil
}

func (s *RedisSeenStore) Forget(ctx context.Context, id string) error {
	if err := s.client.SRem(ctx, s.key, id).Err(); err != nil {
		return fmt.Errorf("redis SREM %s: %w", id, err)
	}
	return nil
}
