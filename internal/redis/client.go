package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

func Initialize(redisURL string) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

func projectTreeKey(projectID uint) string {
	return fmt.Sprintf("project_tree:%d", projectID)
}

// Project tree cache

// GetProjectTree decodes the cached tree into dest. The boolean is false on a
// cache miss.
func (c *Client) GetProjectTree(ctx context.Context, projectID uint, dest interface{}) (bool, error) {
	val, err := c.rdb.Get(ctx, projectTreeKey(projectID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get project tree: %w", err)
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal project tree: %w", err)
	}
	return true, nil
}

func (c *Client) SetProjectTree(ctx context.Context, projectID uint, tree interface{}, ttl time.Duration) error {
	jsonData, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("failed to marshal project tree: %w", err)
	}
	return c.rdb.Set(ctx, projectTreeKey(projectID), jsonData, ttl).Err()
}

func (c *Client) InvalidateProject(ctx context.Context, projectID uint) error {
	return c.rdb.Del(ctx, projectTreeKey(projectID)).Err()
}

// Close Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}
