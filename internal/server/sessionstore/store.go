// Package sessionstore provides key/value storage for session records with
// per-key expiry.
package sessionstore

import (
	"context"
	"time"
)

// Store is the shared session storage. Get returns common.ErrorNotFound for
// absent or expired keys; Delete of an absent key is not an error.
type Store interface {
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
