package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RiskCache implements ports.RiskScoreCache with one expiring key per
// recipient, shared across engine instances.
type RiskCache struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRiskCache creates a Redis risk score cache. ttl <= 0 keeps scores
// until evicted by Redis.
func NewRiskCache(client goredis.UniversalClient, ttl time.Duration) *RiskCache {
	return &RiskCache{client: client, prefix: "risk:", ttl: ttl}
}

func (c *RiskCache) key(recipient string) string {
	return c.prefix + strings.ToLower(recipient)
}

// Record stores the latest score for recipient.
func (c *RiskCache) Record(ctx context.Context, recipient string, score int) error {
	ttl := c.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, c.key(recipient), score, ttl).Err(); err != nil {
		return fmt.Errorf("redis set risk score: %w", err)
	}
	return nil
}

// Lookup returns the cached score for recipient.
func (c *RiskCache) Lookup(ctx context.Context, recipient string) (int, bool, error) {
	val, err := c.client.Get(ctx, c.key(recipient)).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis get risk score: %w", err)
	}
	score, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt risk score %q: %w", val, err)
	}
	return score, true, nil
}
