package treesitter

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/trusted-programming/tree-grepper/internal/domain/valueobject"
)

// Query is a compiled tree-sitter query.
type Query struct {
	language     valueobject.Language
	raw          *sitter.Query
	captureNames []string
	directives   []valueobject.SubstitutionDirective
}

func newQuery(language valueobject.Language, raw *sitter.Query) *Query {
	names := make([]string, raw.CaptureCount())
	for i := range names {
		names[i] = raw.CaptureNameForId(uint32(i))
	}
	return &Query{
		language:     language,
		raw:          raw,
		captureNames: names,
		directives:   decodeDirectives(readPredicates(raw)),
	}
}

// Language returns the grammar the query was compiled for.
func (q *Query) Language() valueobject.Language { return q.language }

// CaptureNames returns a copy of the capture names in index order.
func (q *Query) CaptureNames() []string {
	out := make([]string, len(q.captureNames))
	copy(out, q.captureNames)
	return out
}

// Directives returns the decoded substitution directives.
func (q *Query) Directives() []valueobject.SubstitutionDirective {
	out := make([]valueobject.SubstitutionDirective, len(q.directives))
	copy(out, q.directives)
	return out
}

// PatternCount returns the number of patterns in the query.
func (q *Query) PatternCount() uint32 { return q.raw.PatternCount() }

// Close releases the native query.
func (q *Query) Close() {
	if q.raw != nil {
		q.raw.Close()
		q.raw = nil
	}
}
