// Package store provides the key-value persistence used for conversation and
// preference records.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Namespaces used by the proxy. Each namespace is an independent key space.
const (
	NamespaceConversations = "conversations"
	NamespaceDPO           = "dpo_pairs"
)

// ErrInvalidDriver is returned by Open for an unknown driver name.
var ErrInvalidDriver = errors.New("invalid store driver")

// KV is a key-value namespace with per-entry expiry. Writes to the same key
// are last-write-wins; there are no transactions.
type KV interface {
	// Put stores value under key. A ttl <= 0 stores the entry without expiry.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the value for key, or nil if it is missing or expired (not an error).
	Get(ctx context.Context, key string) ([]byte, error)

	// List returns all non-expired keys in the namespace. Order is store-defined.
	List(ctx context.Context) ([]string, error)
}

// Backend owns the connection shared by all namespaces.
type Backend interface {
	// Namespace returns the key space with the given name.
	Namespace(name string) KV

	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}

// Sweeper is implemented by backends that do not expire entries natively.
type Sweeper interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ListValues reads every value in the namespace. Keys that expire between the
// list and the read are skipped. An empty namespace yields an empty, non-nil slice.
func ListValues(ctx context.Context, kv KV) ([][]byte, error) {
	keys, err := kv.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}

	values := make([][]byte, 0, len(keys))
	for _, key := range keys {
		value, err := kv.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", key, err)
		}
		if value == nil {
			continue
		}
		values = append(values, value)
	}
	return values, nil
}
