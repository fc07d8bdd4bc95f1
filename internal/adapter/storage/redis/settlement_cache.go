package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marketplace-ledger/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// SettlementCache implements ports.SettlementCache. It only short-circuits
// repeated settlements; the order_settlements table stays authoritative.
type SettlementCache struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewSettlementCache creates a cache whose entries live for ttl (0 keeps them forever).
func NewSettlementCache(client goredis.UniversalClient, ttl time.Duration) *SettlementCache {
	return &SettlementCache{
		client: client,
		prefix: "settlement:",
		ttl:    ttl,
	}
}

// Get returns the cached marker of an order, or nil on a miss.
func (c *SettlementCache) Get(ctx context.Context, orderID string) (*domain.OrderSettlement, error) {
	val, err := c.client.Get(ctx, c.prefix+orderID).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis settlement get: %w", err)
	}

	var s domain.OrderSettlement
	if err := json.Unmarshal(val, &s); err != nil {
		return nil, fmt.Errorf("decoding cached settlement %s: %w", orderID, err)
	}
	return &s, nil
}

// Set caches the marker of a settled order.
func (c *SettlementCache) Set(ctx context.Context, s *domain.OrderSettlement) error {
	val, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding settlement %s: %w", s.OrderID, err)
	}
	if err := c.client.Set(ctx, c.prefix+s.OrderID, val, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis settlement set: %w", err)
	}
	return nil
}
