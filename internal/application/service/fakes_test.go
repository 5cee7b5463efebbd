package service

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/trusted-programming/tree-grepper/internal/domain/valueobject"
	"github.com/trusted-programming/tree-grepper/internal/port/outbound"
)

// stubTree and stubQuery let extraction edge cases run without a grammar.
type stubTree struct {
	source valueobject.SourceBuffer
}

func (t *stubTree) Language() valueobject.Language   { return valueobject.Rust }
func (t *stubTree) Source() valueobject.SourceBuffer { return t.source }
func (t *stubTree) Root() valueobject.SyntaxNode     { return valueobject.SyntaxNode{Kind: "source_file"} }
func (t *stubTree) HasError() bool                   { return false }
func (t *stubTree) Close()                           {}

type stubQuery struct {
	names []string
}

func (q *stubQuery) Language() valueobject.Language                  { return valueobject.Rust }
func (q *stubQuery) CaptureNames() []string                          { return q.names }
func (q *stubQuery) Directives() []valueobject.SubstitutionDirective { return nil }
func (q *stubQuery) PatternCount() uint32                            { return 1 }
func (q *stubQuery) Close()                                          {}

type stubProvider struct {
	matches []outbound.QueryMatch
}

func (p *stubProvider) Parse(
	_ context.Context,
	_ valueobject.Language,
	buffer valueobject.SourceBuffer,
) (outbound.SyntaxTree, error) {
	return &stubTree{source: buffer}, nil
}

func (p *stubProvider) Edit(
	_ context.Context,
	_ outbound.SyntaxTree,
	_ valueobject.InputEdit,
	next valueobject.SourceBuffer,
) (outbound.SyntaxTree, error) {
	return &stubTree{source: next}, nil
}

func (p *stubProvider) Compile(_ valueobject.Language, _ string) (outbound.Query, error) {
	return &stubQuery{}, nil
}

func (p *stubProvider) Matches(_ context.Context, _ outbound.Query, _ outbound.SyntaxTree) ([]outbound.QueryMatch, error) {
	return p.matches, nil
}

func (p *stubProvider) Languages() []valueobject.Language {
	return []valueobject.Language{valueobject.Rust}
}

func stubNode(start, end uint32) valueobject.SyntaxNode {
	return valueobject.SyntaxNode{
		Kind:       "identifier",
		StartByte:  start,
		EndByte:    end,
		StartPoint: valueobject.Point{Column: start},
		EndPoint:   valueobject.Point{Column: end},
	}
}

// MockBlobStore is a testify mock of outbound.BlobStore.
type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockBlobStore) Put(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockBlobStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockBlobStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	args := m.Called(ctx, prefix)
	keys, _ := args.Get(0).([]string)
	return keys, args.Error(1)
}

func (m *MockBlobStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
