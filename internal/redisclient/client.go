package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"recommendation-dashboard/internal/models"

	"github.com/go-redis/redis/v8"
)

// ErrNotFound is returned when no dataset is stored for a session
var ErrNotFound = errors.New("dataset not found")

const datasetKeyPrefix = "dataset:"

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client and checks connectivity
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

// NewFromRedis wraps an existing go-redis client
func NewFromRedis(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping reports whether Redis is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// DatasetKey is the Redis key holding a session's uploaded rows
func DatasetKey(sessionID string) string {
	return datasetKeyPrefix + sessionID
}

// SaveDataset stores the dataset as JSON, replacing any previous upload for the session
func (c *Client) SaveDataset(ctx context.Context, sessionID string, ds *models.Dataset, ttl time.Duration) error {
	payload, err := json.Marshal(ds)
	if err != nil {
		return fmt.Errorf("failed to marshal dataset: %w", err)
	}

	if err := c.rdb.Set(ctx, DatasetKey(sessionID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save dataset: %w", err)
	}
	return nil
}

// LoadDataset reads the session's dataset and extends its expiry
func (c *Client) LoadDataset(ctx context.Context, sessionID string, ttl time.Duration) (*models.Dataset, error) {
	key := DatasetKey(sessionID)

	pipe := c.rdb.TxPipeline()
	get := pipe.Get(ctx, key)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}

	payload, err := get.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}

	var ds models.Dataset
	if err := json.Unmarshal(payload, &ds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dataset: %w", err)
	}
	return &ds, nil
}

// DeleteDataset removes the session's dataset; deleting a missing key is not an error
func (c *Client) DeleteDataset(ctx context.Context, sessionID string) error {
	if err := c.rdb.Del(ctx, DatasetKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	return nil
}
