package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/valuation-service/internal/repository"
	"github.com/user/valuation-service/pkg/utils"
)

const plateKeyPrefix = "plate:"

// noPlate is stored for images that were read but held no plate, since Redis cannot hold an empty marker distinctly.
const noPlate = "-"

// PlateCacheImpl provides a concrete implementation for the PlateCache interface using Redis.
type PlateCacheImpl struct {
	client *redis.Client
}

// NewPlateCache creates a new instance of PlateCacheImpl.
func NewPlateCache(client *redis.Client) *PlateCacheImpl {
	return &PlateCacheImpl{client: client}
}

// plateKey creates a consistent Redis key for an image URL by hashing it.
func plateKey(imageURL string) string {
	return fmt.Sprintf("%s%s", plateKeyPrefix, utils.HashURL(imageURL))
}

// GetPlate returns the cached plate for imageURL, or ErrCacheMiss.
func (r *PlateCacheImpl) GetPlate(ctx context.Context, imageURL string) (string, error) {
	val, err := r.client.Get(ctx, plateKey(imageURL)).Result()
	if errors.Is(err, redis.Nil) {
		return "", repository.ErrCacheMiss
	}
	if err != nil {
		return "", err
	}
	if val == noPlate {
		return "", nil
	}
	return val, nil
}

// SetPlate stores the OCR outcome for imageURL. An empty plate is cached as a negative result.
func (r *PlateCacheImpl) SetPlate(ctx context.Context, imageURL, plate string, ttl time.Duration) error {
	if plate == "" {
		plate = noPlate
	}
	return r.client.Set(ctx, plateKey(imageURL), plate, ttl).Err()
}
