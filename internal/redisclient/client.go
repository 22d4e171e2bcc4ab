package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shoepalace/internal/models"

	"github.com/go-redis/redis/v8"
)

// ErrCartLineNotFound is returned when a cart operation references a line
// that is not in the user's cart.
var ErrCartLineNotFound = errors.New("cart line not found")

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
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

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func cartKey(userID string) string {
	return fmt.Sprintf("cart:%s", userID)
}

// ListCartLines returns every line in the user's cart
func (c *Client) ListCartLines(ctx context.Context, userID string) ([]models.CartLine, error) {
	raw, err := c.rdb.HGetAll(ctx, cartKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}

	lines := make([]models.CartLine, 0, len(raw))
	for _, data := range raw {
		var line models.CartLine
		if err := json.Unmarshal([]byte(data), &line); err != nil {
			return nil, fmt.Errorf("corrupt cart line: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// GetCartLine returns a single cart line by ID
func (c *Client) GetCartLine(ctx context.Context, userID, lineID string) (*models.CartLine, error) {
	data, err := c.rdb.HGet(ctx, cartKey(userID), lineID).Result()
	if err == redis.Nil {
		return nil, ErrCartLineNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cart line: %w", err)
	}

	var line models.CartLine
	if err := json.Unmarshal([]byte(data), &line); err != nil {
		return nil, fmt.Errorf("corrupt cart line: %w", err)
	}
	return &line, nil
}

// PutCartLine creates or replaces a cart line
func (c *Client) PutCartLine(ctx context.Context, userID string, line *models.CartLine) error {
	data, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("failed to marshal cart line: %w", err)
	}
	return c.rdb.HSet(ctx, cartKey(userID), line.ID, data).Err()
}

// RemoveCartLine deletes a single cart line
func (c *Client) RemoveCartLine(ctx context.Context, userID, lineID string) error {
	removed, err := c.rdb.HDel(ctx, cartKey(userID), lineID).Result()
	if err != nil {
		return fmt.Errorf("failed to remove cart line: %w", err)
	}
	if removed == 0 {
		return ErrCartLineNotFound
	}
	return nil
}

// ClearCart deletes the user's entire cart
func (c *Client) ClearCart(ctx context.Context, userID string) error {
	return c.rdb.Del(ctx, cartKey(userID)).Err()
}
