// Package blobstore implements outbound.BlobStore on the filesystem, sqlite,
// postgres and NATS JetStream key/value buckets.
package blobstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/trusted-programming/tree-grepper/internal/domain/errors/domain"
)

// Store operation names used in error context.
const (
	opGet    = "get"
	opPut    = "put"
	opDelete = "delete"
	opKeys   = "keys"
	opOpen   = "open"
)

func notFound(key string) error {
	return fmt.Errorf("%w: %s", domain.ErrBlobNotFound, key)
}

func storeError(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return domain.NewStoreError(op, key, err)
}

// validateKey rejects keys that cannot be stored portably by every backend.
func validateKey(key string) error {
	switch {
	case key == "":
		return errors.New("key is empty")
	case strings.HasPrefix(key, "/"):
		return fmt.Errorf("key %q is absolute", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("key %q has an empty or relative segment", key)
		}
	}
	return nil
}
