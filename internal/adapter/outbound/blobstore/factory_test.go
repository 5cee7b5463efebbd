package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trusted-programming/tree-grepper/internal/application/common/retry"
	"github.com/trusted-programming/tree-grepper/internal/config"
	"github.com/trusted-programming/tree-grepper/internal/domain/errors/domain"
)

func TestOpen_FileBackendIsNamespaced(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	store, err := Open(ctx, config.StoreConfig{
		Backend:   config.StoreBackendFile,
		Namespace: "tree-grepper",
		File:      config.FileStoreConfig{Root: root},
	})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put(ctx, "stdin/clean/aa", "fn a() {}"))
	_, err = os.Stat(filepath.Join(root, "tree-grepper", "stdin", "clean", "aa"))
	require.NoError(t, err)

	keys, err := store.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"stdin/clean/aa"}, keys)
}

func TestOpen_SQLiteBackend(t *testing.T) {
	store, err := Open(context.Background(), config.StoreConfig{
		Backend: config.StoreBackendSQLite,
		SQLite:  config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "blobs.db")},
	})
	require.NoError(t, err)
	defer store.Close()

	runBlobStoreContract(t, store)
}

func TestOpen_UnsupportedBackend(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Backend: "s3"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedStoreKind)
}

func TestNamespacedStore_Contract(t *testing.T) {
	inner, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, inner.Put(ctx, "other/stdin/clean/zz", "not ours"))

	store := NewNamespacedStore(inner, "/ns/")
	assert.Equal(t, "ns", store.Namespace())
	runBlobStoreContract(t, store)

	value, err := inner.Get(ctx, "other/stdin/clean/zz")
	require.NoError(t, err)
	assert.Equal(t, "not ours", value)
}

func TestConnectPolicy(t *testing.T) {
	policy := connectPolicy(config.ConnectConfig{MaxRetries: 5, InitialDelay: 10 * time.Millisecond})
	assert.Equal(t, 5, policy.MaxRetries)
	assert.Equal(t, 10*time.Millisecond, policy.InitialDelay)
	assert.Equal(t, retry.DefaultPolicy().MaxDelay, policy.MaxDelay)

	assert.Zero(t, connectPolicy(config.ConnectConfig{}).MaxRetries)
}
