package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key is absent or its TTL has passed.
var ErrNotFound = errors.New("cache: key not found")

// Store is the key-value surface shared by the pricing cache, the
// refresh/reset token store and the worker's notification dedupe keys.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
