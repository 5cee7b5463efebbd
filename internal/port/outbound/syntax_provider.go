package outbound

import (
	"context"

	"github.com/trusted-programming/tree-grepper/internal/domain/valueobject"
)

// SyntaxTree is a parse result bound to exactly one SourceBuffer version.
// A tree is owned by one call and must be closed when no longer needed.
type SyntaxTree interface {
	Language() valueobject.Language
	Source() valueobject.SourceBuffer
	Root() valueobject.SyntaxNode
	// HasError reports whether the tree contains error or missing nodes.
	HasError() bool
	Close()
}

// Query is a compiled pattern for one language.
type Query interface {
	Language() valueobject.Language
	// CaptureNames returns capture names addressable by capture index.
	CaptureNames() []string
	// Directives returns the substitution directives decoded at compile time.
	Directives() []valueobject.SubstitutionDirective
	PatternCount() uint32
	Close()
}

// QueryCapture is a single (capture index, node) pair of a match.
type QueryCapture struct {
	Index uint32
	Node  valueobject.SyntaxNode
}

// QueryMatch is one application of a pattern, with predicates already applied.
type QueryMatch struct {
	PatternIndex uint16
	Captures     []QueryCapture
}

// SyntaxProvider parses source, applies edits and runs queries.
type SyntaxProvider interface {
	// Parse produces a tree for buffer.
	Parse(ctx context.Context, language valueobject.Language, buffer valueobject.SourceBuffer) (SyntaxTree, error)

	// Edit registers edit against tree and reparses incrementally against next.
	// The old tree is consumed and must not be used afterwards.
	Edit(
		ctx context.Context,
		tree SyntaxTree,
		edit valueobject.InputEdit,
		next valueobject.SourceBuffer,
	) (SyntaxTree, error)

	// Compile compiles pattern for language. Errors carry the offending byte offset.
	Compile(language valueobject.Language, pattern string) (Query, error)

	// Matches returns every match of query in tree in traversal order.
	Matches(ctx context.Context, query Query, tree SyntaxTree) ([]QueryMatch, error)

	// Languages lists the grammars the provider can parse.
	Languages() []valueobject.Language
}
