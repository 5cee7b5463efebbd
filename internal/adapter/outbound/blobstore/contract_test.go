package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trusted-programming/tree-grepper/internal/domain/errors/domain"
	"github.com/trusted-programming/tree-grepper/internal/port/outbound"
)

// runBlobStoreContract checks the behaviour every backend shares.
func runBlobStoreContract(t *testing.T, store outbound.BlobStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		_, err := store.Get(ctx, "src/lib.rs/clean/missing")
		assert.ErrorIs(t, err, domain.ErrBlobNotFound)
	})

	t.Run("put then get", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "src/lib.rs/clean/aa", "fn a() {}"))
		value, err := store.Get(ctx, "src/lib.rs/clean/aa")
		require.NoError(t, err)
		assert.Equal(t, "fn a() {}", value)
	})

	t.Run("put overwrites", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "src/lib.rs/unsafe/bb", "one"))
		require.NoError(t, store.Put(ctx, "src/lib.rs/unsafe/bb", "<unsafe>two</unsafe>"))
		value, err := store.Get(ctx, "src/lib.rs/unsafe/bb")
		require.NoError(t, err)
		assert.Equal(t, "<unsafe>two</unsafe>", value)
	})

	t.Run("keys by prefix", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "stdin/clean/cc", "struct S;"))
		require.NoError(t, store.Put(ctx, "my file.rs/clean/dd", "const X: u8 = 1;"))

		keys, err := store.Keys(ctx, "src/lib.rs/")
		require.NoError(t, err)
		assert.Equal(t, []string{"src/lib.rs/clean/aa", "src/lib.rs/unsafe/bb"}, keys)

		all, err := store.Keys(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, []string{
			"my file.rs/clean/dd",
			"src/lib.rs/clean/aa",
			"src/lib.rs/unsafe/bb",
			"stdin/clean/cc",
		}, all)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "src/lib.rs/clean/aa"))
		_, err := store.Get(ctx, "src/lib.rs/clean/aa")
		assert.ErrorIs(t, err, domain.ErrBlobNotFound)
		assert.NoError(t, store.Delete(ctx, "src/lib.rs/clean/aa"), "deleting twice is fine")

		keys, err := store.Keys(ctx, "src/")
		require.NoError(t, err)
		assert.Equal(t, []string{"src/lib.rs/unsafe/bb"}, keys)
	})

	t.Run("invalid keys", func(t *testing.T) {
		for _, key := range []string{"", "/abs", "a//b", "a/../b"} {
			err := store.Put(ctx, key, "x")
			assert.ErrorIs(t, err, domain.ErrStore, "key %q", key)
		}
	})
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key     string
		wantErr bool
	}{
		{key: "a/b/c", wantErr: false},
		{key: "src/lib.rs/clean/0f", wantErr: false},
		{key: "with space/x", wantErr: false},
		{key: "", wantErr: true},
		{key: "/a", wantErr: true},
		{key: "a/", wantErr: true},
		{key: "a/./b", wantErr: true},
		{key: "../a", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			err := validateKey(tt.key)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
