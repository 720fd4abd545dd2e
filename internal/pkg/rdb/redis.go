// Package rdb provides Redis connection management.
package rdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"giveaway-bot/internal/config"
)

// ErrEmptyAddr is returned when no Redis address is configured.
var ErrEmptyAddr = errors.New("empty redis addr")

// Open creates a new Redis client and pings it to validate the connection.
func Open(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, ErrEmptyAddr
	}

	log.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("Connecting to Redis")

	c := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.Info().Msg("Successfully connected to Redis")

	return c, nil
}
