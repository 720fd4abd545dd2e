package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"giveaway-bot/internal/model"
)

// RedisStore keeps the JSON snapshot under a single Redis key.
// SET replaces the value atomically.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a new RedisStore instance.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

// Load reads the snapshot. A missing key yields no giveaways.
func (s *RedisStore) Load(ctx context.Context) ([]*model.Giveaway, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []*model.Giveaway{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from redis: %w", s.key, err)
	}

	giveaways, err := decodeSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("redis key %s: %w", s.key, err)
	}
	return giveaways, nil
}

// Save replaces the snapshot.
func (s *RedisStore) Save(ctx context.Context, giveaways []*model.Giveaway) error {
	data, err := encodeSnapshot(giveaways)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
