// Package cache mirrors the latest bot status into Redis so external
// dashboards can read it without hitting the API.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/koshedutech/binance-futures-bot/config"
)

const (
	statusKey = "tradingbot:status"
	statusTTL = 2 * time.Minute
)

// Cache is a thin Redis wrapper. All operations degrade gracefully; a
// dead Redis never affects trading.
type Cache struct {
	client *redis.Client
	log    zerolog.Logger
}

// Connect opens the Redis client. Returns (nil, nil) when disabled.
func Connect(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (*Cache, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info().Str("addr", cfg.Address).Msg("redis connected")
	return &Cache{client: client, log: log}, nil
}

// Close releases the client.
func (c *Cache) Close() {
	c.client.Close()
}

// SetStatus stores the status snapshot with a short TTL so stale data
// expires if the bot dies.
func (c *Cache) SetStatus(ctx context.Context, status interface{}) {
	data, err := json.Marshal(status)
	if err != nil {
		c.log.Warn().Err(err).Msg("status snapshot encode failed")
		return
	}

	if err := c.client.Set(ctx, statusKey, data, statusTTL).Err(); err != nil {
		c.log.Warn().Err(err).Msg("status snapshot write failed")
	}
}

// GetStatus reads the last stored snapshot into out.
func (c *Cache) GetStatus(ctx context.Context, out interface{}) error {
	data, err := c.client.Get(ctx, statusKey).Bytes()
	if err != nil {
		return fmt.Errorf("failed to read status snapshot: %w", err)
	}
	return json.Unmarshal(data, out)
}
