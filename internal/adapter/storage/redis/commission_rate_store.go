package redis

import (
	"context"
	"errors"
	"fmt"

	"marketplace-ledger/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// CommissionRateStore implements ports.CommissionRateStore. The rate lives
// under a single key so every API instance sees a change immediately.
// When the key is unset or unreadable the configured fallback is returned.
type CommissionRateStore struct {
	client   goredis.UniversalClient
	key      string
	fallback decimal.Decimal
	log      zerolog.Logger
}

// NewCommissionRateStore creates a store reading key, defaulting to fallback.
func NewCommissionRateStore(client goredis.UniversalClient, key string, fallback decimal.Decimal, log zerolog.Logger) *CommissionRateStore {
	return &CommissionRateStore{
		client:   client,
		key:      key,
		fallback: fallback,
		log:      log,
	}
}

// CommissionRate returns the rate in effect right now.
func (s *CommissionRateStore) CommissionRate(ctx context.Context) (decimal.Decimal, error) {
	val, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			s.log.Warn().Err(err).Str("key", s.key).Msg("reading commission rate failed, using configured default")
		}
		return s.fallback, nil
	}

	rate, err := decimal.NewFromString(val)
	if err != nil || !domain.IsValidRate(rate) {
		s.log.Warn().Str("key", s.key).Str("value", val).Msg("invalid commission rate in redis, using configured default")
		return s.fallback, nil
	}
	return rate, nil
}

// SetCommissionRate stores a new rate without expiry.
func (s *CommissionRateStore) SetCommissionRate(ctx context.Context, rate decimal.Decimal) error {
	if err := s.client.Set(ctx, s.key, rate.String(), 0).Err(); err != nil {
		return fmt.Errorf("redis commission rate set: %w", err)
	}
	return nil
}
