package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	signedLinkPrefix     = "signed-link:"
	processedEventPrefix = "processed-event:"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client and verifies the connection
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// GetSignedLink returns a cached signed link for an object key.
// A miss is reported as ("", false, nil).
func (c *Client) GetSignedLink(ctx context.Context, objectKey string) (string, bool, error) {
	link, err := c.rdb.Get(ctx, signedLinkPrefix+objectKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return link, true, nil
}

// SetSignedLink caches a signed link; ttl must be shorter than the link lifetime
func (c *Client) SetSignedLink(ctx context.Context, objectKey, link string, ttl time.Duration) error {
	return c.rdb.Set(ctx, signedLinkPrefix+objectKey, link, ttl).Err()
}

// MarkEventProcessed records an event id and reports whether it was new
func (c *Client) MarkEventProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, processedEventPrefix+eventID, 1, ttl).Result()
}
