package store

import (
	"context"
	"time"
)

// KV is the minimal key/value surface the pipeline needs for
// idempotency and claim bookkeeping. Keys carry no payload; presence
// and TTL are the contract.
type KV interface {
	// SetIfAbsent atomically creates the key with the given TTL and
	// reports whether this call created it.
	SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, key string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
