package archive

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trusted-programming/tree-grepper/internal/adapter/outbound/blobstore"
	"github.com/trusted-programming/tree-grepper/internal/domain/errors/domain"
)

func TestExporter_WritesEveryKeyUnderPrefix(t *testing.T) {
	ctx := context.Background()
	store, err := blobstore.NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "src/lib.rs/clean/aa", "fn a() {}"))
	require.NoError(t, store.Put(ctx, "src/lib.rs/unsafe/bb", "<unsafe>unsafe fn b() {}</unsafe>"))
	require.NoError(t, store.Put(ctx, "stdin/clean/cc", "struct S;"))

	var buf bytes.Buffer
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	report, err := NewExporter(store, WithClock(func() time.Time { return fixed })).Export(ctx, "src/", &buf)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Entries)
	assert.Equal(t, int64(len("fn a() {}")+len("<unsafe>unsafe fn b() {}</unsafe>")), report.Bytes)

	entries, err := ReadArchive(&buf)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"src/lib.rs/clean/aa":  "fn a() {}",
		"src/lib.rs/unsafe/bb": "<unsafe>unsafe fn b() {}</unsafe>",
	}, entries)
}

func TestExporter_Deterministic(t *testing.T) {
	ctx := context.Background()
	store, err := blobstore.NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "a/b", "1"))
	require.NoError(t, store.Put(ctx, "a/c", "2"))

	clock := WithClock(func() time.Time { return time.Unix(0, 0) })
	var first, second bytes.Buffer
	_, err = NewExporter(store, clock).Export(ctx, "", &first)
	require.NoError(t, err)
	_, err = NewExporter(store, clock).Export(ctx, "", &second)
	require.NoError(t, err)

	assert.Equal(t, first.Bytes(), second.Bytes())
}

func TestExporter_EmptyPrefixMatch(t *testing.T) {
	store, err := blobstore.NewFileStore(t.TempDir())
	require.NoError(t, err)

	var buf bytes.Buffer
	report, err := NewExporter(store).Export(context.Background(), "nothing/", &buf)
	require.NoError(t, err)
	assert.Zero(t, report.Entries)

	entries, err := ReadArchive(&buf)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type failingKeys struct {
	*blobstore.FileStore
}

func (failingKeys) Keys(context.Context, string) ([]string, error) {
	return nil, domain.NewStoreError("keys", "", errors.New("unavailable"))
}

func TestExporter_PropagatesStoreErrors(t *testing.T) {
	inner, err := blobstore.NewFileStore(t.TempDir())
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = NewExporter(failingKeys{inner}).Export(context.Background(), "", &buf)
	assert.ErrorIs(t, err, domain.ErrStore)
}

func TestReadArchive_RejectsGarbage(t *testing.T) {
	_, err := ReadArchive(bytes.NewReader([]byte("not gzip")))
	assert.Error(t, err)
}
