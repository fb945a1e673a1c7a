package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/valuation-service/internal/repository"
)

const valuationKeyPrefix = "valuation:"

// ValuationCacheImpl provides a concrete implementation for the ValuationCache interface using Redis.
type ValuationCacheImpl struct {
	client *redis.Client
}

// NewValuationCache creates a new instance of ValuationCacheImpl.
func NewValuationCache(client *redis.Client) *ValuationCacheImpl {
	return &ValuationCacheImpl{client: client}
}

// Quotes depend on mileage, so it is part of the key.
func valuationKey(plate string, mileage int) string {
	return fmt.Sprintf("%s%s:%d", valuationKeyPrefix, strings.ToUpper(plate), mileage)
}

func (r *ValuationCacheImpl) GetValuation(ctx context.Context, plate string, mileage int) (string, error) {
	val, err := r.client.Get(ctx, valuationKey(plate, mileage)).Result()
	if errors.Is(err, redis.Nil) {
		return "", repository.ErrCacheMiss
	}
	return val, err
}

// SetValuation stores a resolved valuation. Sentinels are never cached by callers.
func (r *ValuationCacheImpl) SetValuation(ctx context.Context, plate string, mileage int, valuation string, ttl time.Duration) error {
	return r.client.Set(ctx, valuationKey(plate, mileage), valuation, ttl).Err()
}
