// Package metadata is a key/value store scoped by account key. The sync
// engine keeps the cached current user here.
package metadata

import (
	"context"
)

// Repository stores opaque values per account. Get returns (nil, nil) when
// the key is absent.
type Repository interface {
	Get(ctx context.Context, accountKey, key string) ([]byte, error)
	Set(ctx context.Context, accountKey, key string, value []byte) error
	Delete(ctx context.Context, accountKey, key string) error
	List(ctx context.Context, accountKey string) (map[string][]byte, error)
	Clear(ctx context.Context, accountKey string) error
}
