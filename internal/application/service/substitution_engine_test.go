package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trusted-programming/tree-grepper/internal/adapter/outbound/treesitter"
	"github.com/trusted-programming/tree-grepper/internal/domain/errors/domain"
	"github.com/trusted-programming/tree-grepper/internal/domain/valueobject"
)

func rewrite(
	t *testing.T,
	language valueobject.Language,
	pattern, source string,
	opts ...SubstitutionEngineOption,
) (*RewriteResult, error) {
	t.Helper()
	provider := treesitter.NewProvider()
	query, err := provider.Compile(language, pattern)
	require.NoError(t, err)
	t.Cleanup(query.Close)

	engine := NewSubstitutionEngine(NewMatchExtractor(provider), opts...)
	return engine.Rewrite(context.Background(), valueobject.NewSourceBuffer([]byte(source)), query)
}

func TestSubstitutionEngine_ReplacesCaptureWithResolvedTemplate(t *testing.T) {
	result, err := rewrite(t, valueobject.JavaScript,
		`(variable_declarator name: (identifier) @x value: (string (string_fragment) @y) (#sub! @x "prefix_@y_suffix"))`,
		`let old = "VAL";`)

	require.NoError(t, err)
	assert.Equal(t, `let prefix_VAL_suffix = "VAL";`, string(result.Source.Bytes()))
	assert.Equal(t, 1, result.Substitutions)
	assert.Equal(t, 2, result.Passes)
	assert.True(t, result.Changed())
}

func TestSubstitutionEngine_RewritesEveryOccurrence(t *testing.T) {
	result, err := rewrite(t, valueobject.JavaScript,
		`(variable_declarator name: (identifier) @n value: (number) @v (#sub! @n "n@v"))`,
		"// head\nlet a = 1; let b = 2;\n// tail\n")

	require.NoError(t, err)
	assert.Equal(t, "// head\nlet n1 = 1; let n2 = 2;\n// tail\n", string(result.Source.Bytes()))
	assert.Equal(t, 2, result.Substitutions)
	assert.Equal(t, 3, result.Passes)
}

func TestSubstitutionEngine_ChainedDirectivesConverge(t *testing.T) {
	pattern := `(variable_declarator
		name: (identifier) @n
		value: (string (string_fragment) @v)
		(#sub! @n "@v")
		(#sub! @v "zz"))`

	result, err := rewrite(t, valueobject.JavaScript, pattern, `let a = "b";`)

	require.NoError(t, err)
	assert.Equal(t, `let zz = "zz";`, string(result.Source.Bytes()))
	assert.Equal(t, 3, result.Substitutions)
	assert.Equal(t, 4, result.Passes)

	_, err = rewrite(t, valueobject.JavaScript, pattern, `let a = "b";`, WithMaxRewriteIterations(3))
	require.NoError(t, err)
	_, err = rewrite(t, valueobject.JavaScript, pattern, `let a = "b";`, WithMaxRewriteIterations(2))
	assert.ErrorIs(t, err, domain.ErrRewriteDivergence)
}

func TestSubstitutionEngine_NoDirectivesLeavesSourceUntouched(t *testing.T) {
	result, err := rewrite(t, valueobject.JavaScript, "(identifier) @x", "let a = 1;")

	require.NoError(t, err)
	assert.Equal(t, "let a = 1;", string(result.Source.Bytes()))
	assert.Equal(t, 0, result.Passes)
	assert.False(t, result.Changed())
}

func TestSubstitutionEngine_FixpointIsANoOp(t *testing.T) {
	result, err := rewrite(t, valueobject.JavaScript,
		`(variable_declarator name: (identifier) @n value: (number) @v (#sub! @n "n@v"))`,
		"let n1 = 1;")

	require.NoError(t, err)
	assert.Equal(t, "let n1 = 1;", string(result.Source.Bytes()))
	assert.Equal(t, 0, result.Substitutions)
	assert.Equal(t, 1, result.Passes)
}

func TestSubstitutionEngine_SelfReferenceDiverges(t *testing.T) {
	result, err := rewrite(t, valueobject.JavaScript,
		`(expression_statement (identifier) @x (#sub! @x "@x_"))`,
		"a;")

	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrRewriteDivergence)
	assert.Contains(t, err.Error(), "after 2 substitution passes")
}

func TestSubstitutionEngine_ConfiguredLimit(t *testing.T) {
	pattern := `(variable_declarator name: (identifier) @n value: (number) @v (#sub! @n "n@v"))`

	_, err := rewrite(t, valueobject.JavaScript, pattern, "let a = 1; let b = 2;", WithMaxRewriteIterations(1))
	require.ErrorIs(t, err, domain.ErrRewriteDivergence)

	var engineErr *domain.EngineError
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, 1, engineErr.Details["limit"])
	assert.Equal(t, "javascript", engineErr.Language)

	result, err := rewrite(t, valueobject.JavaScript, pattern, "let a = 1; let b = 2;", WithMaxRewriteIterations(2))
	require.NoError(t, err)
	assert.Equal(t, "let n1 = 1; let n2 = 2;", string(result.Source.Bytes()))
}

func TestSubstitutionEngine_PreservesPath(t *testing.T) {
	provider := treesitter.NewProvider()
	query, err := provider.Compile(valueobject.JavaScript,
		`(variable_declarator name: (identifier) @n value: (number) @v (#sub! @n "n@v"))`)
	require.NoError(t, err)
	defer query.Close()

	engine := NewSubstitutionEngine(NewMatchExtractor(provider))
	result, err := engine.Rewrite(context.Background(),
		valueobject.NewFileSourceBuffer("a.js", []byte("let a = 1;")), query)
	require.NoError(t, err)

	path, ok := result.Source.Path()
	assert.True(t, ok)
	assert.Equal(t, "a.js", path)
}

func TestResolveTemplate(t *testing.T) {
	captures := []valueobject.Capture{
		{Index: 0, Name: "x", Text: "old"},
		{Index: 1, Name: "y", Text: "VAL"},
	}

	tests := []struct {
		name     string
		template string
		captures []valueobject.Capture
		want     string
	}{
		{name: "reference between literals", template: "prefix-@y-suffix", captures: captures, want: "prefix-VAL-suffix"},
		{name: "several references", template: "@x@y@x", captures: captures, want: "oldVALold"},
		{name: "no references", template: "plain", captures: captures, want: "plain"},
		{name: "unresolved reference is kept", template: "@missing-@y", captures: captures, want: "@missing-VAL"},
		{name: "empty template", template: "", captures: captures, want: ""},
		{
			name:     "longest name first",
			template: "@ab+@a",
			captures: []valueobject.Capture{{Name: "a", Text: "1"}, {Name: "ab", Text: "2"}},
			want:     "2+1",
		},
		{
			name:     "nested reference resolves",
			template: "@outer",
			captures: []valueobject.Capture{{Name: "outer", Text: "<@inner>"}, {Name: "inner", Text: "v"}},
			want:     "<v>",
		},
		{
			name:     "duplicate name takes the last capture",
			template: "@d",
			captures: []valueobject.Capture{{Index: 0, Name: "d", Text: "first"}, {Index: 1, Name: "d", Text: "last"}},
			want:     "last",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveTemplate(tt.template, valueobject.Match{Captures: tt.captures}))
		})
	}
}

func TestResolveTemplate_CyclicReferencesTerminate(t *testing.T) {
	captures := []valueobject.Capture{
		{Name: "x", Text: "@y"},
		{Name: "y", Text: "@x"},
	}

	first := ResolveTemplate("@x", valueobject.Match{Captures: captures})
	assert.Contains(t, first, ReferenceSigil)
	assert.Equal(t, first, ResolveTemplate("@x", valueobject.Match{Captures: captures}))
}
