package service

import (
	"context"
	"time"
)

// listingCache abstracts the redis-backed cache used for read-heavy listing
// endpoints. Implementations degrade gracefully when no backend is wired.
type listingCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
