package outbound

import "context"

// BlobStore saves and retrieves text by key.
// Get returns domain.ErrBlobNotFound for a missing key.
type BlobStore interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists every key starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}
