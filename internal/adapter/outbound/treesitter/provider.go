package treesitter

import (
	"context"
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/trusted-programming/tree-grepper/internal/application/common/slogger"
	"github.com/trusted-programming/tree-grepper/internal/domain/errors/domain"
	"github.com/trusted-programming/tree-grepper/internal/domain/valueobject"
	"github.com/trusted-programming/tree-grepper/internal/port/outbound"
)

// Provider implements outbound.SyntaxProvider on top of the tree-sitter C runtime.
// A new native parser is created for every Parse and Edit, so a Provider can be shared
// between goroutines while trees and queries cannot.
type Provider struct {
	languages []valueobject.Language
}

// NewProvider creates a provider for every bundled grammar.
func NewProvider() *Provider {
	names := supportedLanguageNames()
	languages := make([]valueobject.Language, 0, len(names))
	for _, name := range names {
		if lang, ok := valueobject.LookupLanguage(name); ok {
			languages = append(languages, lang)
		}
	}
	return &Provider{languages: languages}
}

var _ outbound.SyntaxProvider = (*Provider)(nil)

// Languages returns the supported languages sorted by name.
func (p *Provider) Languages() []valueobject.Language {
	out := make([]valueobject.Language, len(p.languages))
	copy(out, p.languages)
	return out
}

// Parse produces a tree for buffer.
func (p *Provider) Parse(
	ctx context.Context,
	language valueobject.Language,
	buffer valueobject.SourceBuffer,
) (outbound.SyntaxTree, error) {
	grammar, ok := grammarFor(language)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedLanguage, language.Name())
	}
	raw, err := parse(ctx, grammar, nil, buffer.Bytes())
	if err != nil {
		return nil, domain.NewParseError(language.Name(), err)
	}
	return &Tree{language: language, source: buffer, grammar: grammar, raw: raw}, nil
}

// Edit registers edit on tree and reparses next incrementally. The old tree is closed.
func (p *Provider) Edit(
	ctx context.Context,
	tree outbound.SyntaxTree,
	edit valueobject.InputEdit,
	next valueobject.SourceBuffer,
) (outbound.SyntaxTree, error) {
	old, ok := tree.(*Tree)
	if !ok || old.raw == nil {
		return nil, fmt.Errorf("%w: tree was not produced by this provider or is closed", domain.ErrInvalidInput)
	}
	defer old.Close()

	old.raw.Edit(sitter.EditInput{
		StartIndex:  edit.StartByte,
		OldEndIndex: edit.OldEndByte,
		NewEndIndex: edit.NewEndByte,
		StartPoint:  toSitterPoint(edit.StartPoint),
		OldEndPoint: toSitterPoint(edit.OldEndPoint),
		NewEndPoint: toSitterPoint(edit.NewEndPoint),
	})

	raw, err := parse(ctx, old.grammar, old.raw, next.Bytes())
	if err != nil {
		return nil, domain.NewParseError(old.language.Name(), err)
	}
	return &Tree{language: old.language, source: next, grammar: old.grammar, raw: raw}, nil
}

func parse(ctx context.Context, grammar *sitter.Language, old *sitter.Tree, src []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	raw, err := parser.ParseCtx(ctx, old, src)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.New("parser returned no tree")
	}
	return raw, nil
}

// Compile compiles pattern for language.
func (p *Provider) Compile(language valueobject.Language, pattern string) (outbound.Query, error) {
	grammar, ok := grammarFor(language)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedLanguage, language.Name())
	}
	raw, err := sitter.NewQuery([]byte(pattern), grammar)
	if err != nil {
		return nil, compileError(language, err)
	}
	q := newQuery(language, raw)

	slogger.DebugNoCtx("query compiled", slogger.Fields{
		"language":   language.Name(),
		"captures":   len(q.captureNames),
		"patterns":   raw.PatternCount(),
		"directives": len(q.directives),
	})
	return q, nil
}

func compileError(language valueobject.Language, err error) error {
	var qerr *sitter.QueryError
	if errors.As(err, &qerr) {
		return domain.NewCompileError(language.Name(), qerr.Message, int(qerr.Offset)).
			WithDetails("error_type", int(qerr.Type))
	}
	return domain.NewCompileError(language.Name(), err.Error(), 0).WithCause(err)
}

// Matches runs query over tree and returns every match whose predicates hold.
func (p *Provider) Matches(
	ctx context.Context,
	query outbound.Query,
	tree outbound.SyntaxTree,
) ([]outbound.QueryMatch, error) {
	q, ok := query.(*Query)
	if !ok || q.raw == nil {
		return nil, fmt.Errorf("%w: query was not produced by this provider or is closed", domain.ErrInvalidInput)
	}
	t, ok := tree.(*Tree)
	if !ok || t.raw == nil {
		return nil, fmt.Errorf("%w: tree was not produced by this provider or is closed", domain.ErrInvalidInput)
	}
	if !q.language.Equal(t.language) {
		return nil, domain.NewCompileError(t.language.Name(),
			fmt.Sprintf("query compiled for %s cannot run on a %s tree", q.language.Name(), t.language.Name()), 0)
	}

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(q.raw, t.raw.RootNode())

	src := t.source.Bytes()
	var matches []outbound.QueryMatch
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, ok := cursor.NextMatch()
		if !ok {
			break
		}
		m = cursor.FilterPredicates(m, src)
		if len(m.Captures) == 0 {
			continue
		}
		match := outbound.QueryMatch{
			PatternIndex: m.PatternIndex,
			Captures:     make([]outbound.QueryCapture, 0, len(m.Captures)),
		}
		for _, c := range m.Captures {
			match.Captures = append(match.Captures, outbound.QueryCapture{
				Index: c.Index,
				Node:  toSyntaxNode(c.Node),
			})
		}
		matches = append(matches, match)
	}
	return matches, nil
}
