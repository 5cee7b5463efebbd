package blobstore

import (
	"context"
	"strings"

	"github.com/trusted-programming/tree-grepper/internal/port/outbound"
)

// NamespacedStore prefixes every key with a namespace segment so several tools can
// share one backend.
type NamespacedStore struct {
	inner     outbound.BlobStore
	namespace string
}

// NewNamespacedStore wraps inner. An empty namespace leaves keys unchanged.
func NewNamespacedStore(inner outbound.BlobStore, namespace string) *NamespacedStore {
	return &NamespacedStore{inner: inner, namespace: strings.Trim(namespace, "/")}
}

// Namespace returns the key prefix without its separator.
func (s *NamespacedStore) Namespace() string {
	return s.namespace
}

func (s *NamespacedStore) qualify(key string) string {
	if s.namespace == "" {
		return key
	}
	return s.namespace + "/" + key
}

// Get reads key inside the namespace.
func (s *NamespacedStore) Get(ctx context.Context, key string) (string, error) {
	return s.inner.Get(ctx, s.qualify(key))
}

// Put writes key inside the namespace.
func (s *NamespacedStore) Put(ctx context.Context, key, value string) error {
	if err := validateKey(key); err != nil {
		return storeError(opPut, key, err)
	}
	return s.inner.Put(ctx, s.qualify(key), value)
}

// Delete removes key inside the namespace.
func (s *NamespacedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, s.qualify(key))
}

// Keys lists keys inside the namespace with the namespace stripped.
func (s *NamespacedStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := s.inner.Keys(ctx, s.qualify(prefix))
	if err != nil || s.namespace == "" {
		return keys, err
	}
	strip := s.namespace + "/"
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, strip))
	}
	return out, nil
}

// Close closes the wrapped store.
func (s *NamespacedStore) Close() error {
	return s.inner.Close()
}
