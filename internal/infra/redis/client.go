// Package redis wraps the Redis operations the notifier uses for
// cross-restart notification dedupe.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps Redis operations for notification dedupe.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func dedupeKey(notificationID, endpoint string) string {
	return fmt.Sprintf("notified:%s:%s", notificationID, endpoint)
}

// MarkSent records that notificationID was sent to endpoint, expiring after
// ttl. It returns false when the pair was already marked inside the window,
// meaning the send should be skipped.
func (c *Client) MarkSent(ctx context.Context, endpoint, notificationID string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, dedupeKey(notificationID, endpoint), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx failed: %w", err)
	}
	return ok, nil
}

// ClearSent drops the dedupe marker, re-allowing delivery (e.g. after a
// failed send that should be retried by a later dispatch).
func (c *Client) ClearSent(ctx context.Context, endpoint, notificationID string) error {
	return c.rdb.Del(ctx, dedupeKey(notificationID, endpoint)).Err()
}
