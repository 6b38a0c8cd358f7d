// Package cache backs the sampler's short-lived per-tick store. The memory
// backend is the default; Redis is for multi-replica deployments where ticks
// overlap across processes.
package cache

import (
	"context"
	"time"
)

type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
