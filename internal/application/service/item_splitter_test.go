package service

import (
	"context"
	"errors"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/trusted-programming/tree-grepper/internal/adapter/outbound/treesitter"
	"github.com/trusted-programming/tree-grepper/internal/domain/errors/domain"
	"github.com/trusted-programming/tree-grepper/internal/domain/valueobject"
)

const splitRustSource = "fn a() {}\nstruct S;\nunsafe fn b() {}\n"

func newRustSplitter(t *testing.T, store *MockBlobStore) *ItemSplitter {
	t.Helper()
	profile, _ := defaultRustCategories(t)
	markup := NewMarkupEngine(NewMatchExtractor(treesitter.NewProvider()))
	if store == nil {
		return NewItemSplitter(markup, nil, valueobject.Rust, profile.Items, nil)
	}
	return NewItemSplitter(markup, store, valueobject.Rust, profile.Items, nil)
}

func TestItemSplitter_Split(t *testing.T) {
	splitter := newRustSplitter(t, nil)
	provider := treesitter.NewProvider()
	buffer := valueobject.NewSourceBuffer([]byte(splitRustSource))

	tree, err := provider.Parse(context.Background(), valueobject.Rust, buffer)
	require.NoError(t, err)
	defer tree.Close()

	byStart, err := splitter.Split(context.Background(), tree, buffer)
	require.NoError(t, err)
	assert.Equal(t, "struct_item", byStart[10].Kind)
	assert.Equal(t, uint32(36), byStart[20].End)

	spans := OrderedSpans(byStart)
	require.Len(t, spans, 3)
	assert.Equal(t, "fn a() {}", string(spans[0].Bytes))
	assert.Equal(t, "function_item", spans[0].Kind)
	assert.Equal(t, "struct S;", string(spans[1].Bytes))
	assert.Equal(t, "unsafe fn b() {}", string(spans[2].Bytes))
}

func TestItemSplitter_ProcessClassifiesItems(t *testing.T) {
	splitter := newRustSplitter(t, nil)
	_, categories := defaultRustCategories(t)

	artifacts, err := splitter.Process(context.Background(),
		valueobject.NewFileSourceBuffer("src/lib.rs", []byte(splitRustSource)), categories)
	require.NoError(t, err)

	require.Len(t, artifacts, 3)
	assert.Equal(t, ItemClassClean, artifacts[0].Class)
	assert.Equal(t, ItemClassClean, artifacts[1].Class)
	assert.Equal(t, ItemClassUnsafe, artifacts[2].Class)

	b := artifacts[2]
	assert.Equal(t, "src/lib.rs", b.Source)
	assert.Equal(t, ContentAddress([]byte("unsafe fn b() {}")), b.Address)
	assert.Equal(t, "src/lib.rs/unsafe/"+b.Address, b.Key())
	assert.Equal(t, "<unsafe><lifetime></lifetime>unsafe fn b() {}</unsafe>", string(b.Markup))
}

func TestItemSplitter_IdenticalItemsShareAnAddress(t *testing.T) {
	splitter := newRustSplitter(t, nil)
	_, categories := defaultRustCategories(t)

	artifacts, err := splitter.Process(context.Background(),
		valueobject.NewSourceBuffer([]byte("fn a() {}\nfn a() {}\n")), categories)
	require.NoError(t, err)

	require.Len(t, artifacts, 2)
	assert.Equal(t, artifacts[0].Address, artifacts[1].Address)
	assert.Equal(t, artifacts[0].Key(), artifacts[1].Key())
	assert.Equal(t, StdinSourceLabel, artifacts[0].Source)
}

func TestItemSplitter_Persist(t *testing.T) {
	ctx := context.Background()
	store := new(MockBlobStore)
	splitter := newRustSplitter(t, store)

	artifacts := []ItemArtifact{
		{Source: "src/x.rs", Address: "aa", Class: ItemClassUnsafe, Markup: []byte("<unsafe>u</unsafe>")},
		{Source: "src/x.rs", Address: "bb", Class: ItemClassClean, Markup: []byte("c")},
		{Source: "src/x.rs", Address: "aa", Class: ItemClassClean, Markup: []byte("u")},
	}

	store.On("Put", ctx, "src/x.rs/unsafe/aa", "<unsafe>u</unsafe>").Return(nil).Once()
	store.On("Get", ctx, "src/x.rs/clean/aa").Return("u", nil).Once()
	store.On("Delete", ctx, "src/x.rs/clean/aa").Return(nil).Once()
	store.On("Get", ctx, "src/x.rs/unsafe/bb").Return("", domain.ErrBlobNotFound).Once()
	store.On("Put", ctx, "src/x.rs/clean/bb", "c").Return(nil).Once()
	store.On("Get", ctx, "src/x.rs/unsafe/aa").Return("<unsafe>u</unsafe>", nil).Once()

	report, err := splitter.Persist(ctx, artifacts)

	require.NoError(t, err)
	assert.Equal(t, PersistReport{Written: 2, Skipped: 1, Replaced: 1}, report)
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "Put", ctx, "src/x.rs/clean/aa", mock.Anything)
}

func TestItemSplitter_PersistPropagatesStoreErrors(t *testing.T) {
	ctx := context.Background()
	store := new(MockBlobStore)
	splitter := newRustSplitter(t, store)
	boom := domain.NewStoreError("get", "src/x.rs/unsafe/bb", errors.New("connection reset"))

	store.On("Get", ctx, "src/x.rs/unsafe/bb").Return("", boom).Once()

	report, err := splitter.Persist(ctx, []ItemArtifact{
		{Source: "src/x.rs", Address: "bb", Class: ItemClassClean, Markup: []byte("c")},
	})

	require.ErrorIs(t, err, domain.ErrStore)
	assert.Equal(t, PersistReport{}, report)
	store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything)
}

func TestItemSplitter_PersistWithoutStore(t *testing.T) {
	splitter := newRustSplitter(t, nil)

	_, err := splitter.Persist(context.Background(), []ItemArtifact{{Class: ItemClassClean}})

	assert.ErrorIs(t, err, domain.ErrStore)
}

func TestContentAddressAndKeys(t *testing.T) {
	address := ContentAddress([]byte("fn a() {}"))
	assert.Len(t, address, 64)
	assert.Equal(t, address, ContentAddress([]byte("fn a() {}")))
	assert.NotEqual(t, address, ContentAddress([]byte("fn b() {}")))

	assert.Equal(t, "stdin/clean/"+address, ArtifactKey(StdinSourceLabel, ItemClassClean, address))
	assert.Equal(t, StdinSourceLabel, SourceLabel(valueobject.NewSourceBuffer(nil)))
	assert.Equal(t, "a/b.rs", SourceLabel(valueobject.NewFileSourceBuffer("a/b.rs", nil)))
}

func TestSourceLabel_DistinctPathsNeverCollide(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "x/a.rs", want: "x/a.rs"},
		{path: "/x/a.rs", want: "%2F/x/a.rs"},
		{path: "../x/a.rs", want: "%2E%2E/x/a.rs"},
		{path: "./x/../x/a.rs", want: "x/a.rs"},
		{path: "stdin", want: "%73tdin"},
		{path: "odd %name.rs", want: "odd%20%25name.rs"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			label := SourceLabel(valueobject.NewFileSourceBuffer(tt.path, nil))
			assert.Equal(t, tt.want, label)

			unescaped, err := url.PathUnescape(label)
			require.NoError(t, err)
			if strings.HasPrefix(unescaped, "//") {
				unescaped = unescaped[1:]
			}
			assert.Equal(t, filepath.ToSlash(filepath.Clean(tt.path)), unescaped)
		})
	}
}
