package treesitter

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/trusted-programming/tree-grepper/internal/domain/valueobject"
)

// Tree is a parse tree bound to one buffer version.
type Tree struct {
	language valueobject.Language
	source   valueobject.SourceBuffer
	grammar  *sitter.Language
	raw      *sitter.Tree
}

// Language returns the tree's language.
func (t *Tree) Language() valueobject.Language { return t.language }

// Source returns the buffer version the tree was parsed from.
func (t *Tree) Source() valueobject.SourceBuffer { return t.source }

// Root returns the root node.
func (t *Tree) Root() valueobject.SyntaxNode { return toSyntaxNode(t.raw.RootNode()) }

// HasError reports whether the tree contains error or missing nodes.
func (t *Tree) HasError() bool { return t.raw.RootNode().HasError() }

// Close releases the native tree.
func (t *Tree) Close() {
	if t.raw != nil {
		t.raw.Close()
		t.raw = nil
	}
}

func toSyntaxNode(n *sitter.Node) valueobject.SyntaxNode {
	start, end := n.StartPoint(), n.EndPoint()
	return valueobject.SyntaxNode{
		Kind:       n.Type(),
		StartByte:  n.StartByte(),
		EndByte:    n.EndByte(),
		StartPoint: valueobject.Point{Row: start.Row, Column: start.Column},
		EndPoint:   valueobject.Point{Row: end.Row, Column: end.Column},
	}
}

func toSitterPoint(p valueobject.Point) sitter.Point {
	return sitter.Point{Row: p.Row, Column: p.Column}
}
