package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trusted-programming/tree-grepper/internal/adapter/outbound/treesitter"
	"github.com/trusted-programming/tree-grepper/internal/application/common/logging"
	"github.com/trusted-programming/tree-grepper/internal/application/common/slogger"
	"github.com/trusted-programming/tree-grepper/internal/domain/errors/domain"
	"github.com/trusted-programming/tree-grepper/internal/domain/valueobject"
	"github.com/trusted-programming/tree-grepper/internal/port/outbound"
)

func extractFile(
	t *testing.T,
	extractor *MatchExtractor,
	language valueobject.Language,
	pattern, source string,
) *valueobject.ExtractedFile {
	t.Helper()
	query, err := extractor.Provider().Compile(language, pattern)
	require.NoError(t, err)
	defer query.Close()

	extracted, err := extractor.ExtractFile(context.Background(), query, valueobject.NewSourceBuffer([]byte(source)))
	require.NoError(t, err)
	return extracted
}

func TestMatchExtractor_ExtractsNamedCaptures(t *testing.T) {
	extractor := NewMatchExtractor(treesitter.NewProvider())

	extracted := extractFile(t, extractor, valueobject.Elm,
		"(import_clause (upper_case_qid)@import)", "import Html.Styled")

	require.NotNil(t, extracted)
	require.Len(t, extracted.Matches, 1)
	assert.Equal(t, "import", extracted.Matches[0].Name)
	assert.Equal(t, "Html.Styled", extracted.Matches[0].Text)
	assert.Equal(t, "elm", extracted.FileType)
	assert.Nil(t, extracted.File)
}

func TestMatchExtractor_IgnoredCapturesAreNotReported(t *testing.T) {
	extractor := NewMatchExtractor(treesitter.NewProvider())

	extracted := extractFile(t, extractor, valueobject.Elm,
		"(import_clause (upper_case_qid)@_import)", "import Html.Styled")

	assert.Nil(t, extracted)
}

func TestMatchExtractor_IgnoredCapturesConstrainMatching(t *testing.T) {
	extractor := NewMatchExtractor(treesitter.NewProvider())

	extracted := extractFile(t, extractor, valueobject.JavaScript,
		`(call_expression (identifier)@_fn (arguments . (string)@import .) (#eq? @_fn require))`,
		`let foo = require("foo.js")`)

	require.NotNil(t, extracted)
	require.Len(t, extracted.Matches, 1)
	assert.Equal(t, "import", extracted.Matches[0].Name)
	assert.Equal(t, `"foo.js"`, extracted.Matches[0].Text)
}

func TestMatchExtractor_EmptyIgnorePrefixReportsEverything(t *testing.T) {
	extractor := NewMatchExtractor(treesitter.NewProvider(), WithIgnorePrefix(""))

	extracted := extractFile(t, extractor, valueobject.Elm,
		"(import_clause (upper_case_qid)@_import)", "import Html.Styled")

	require.NotNil(t, extracted)
	assert.Equal(t, "_import", extracted.Matches[0].Name)
}

func TestMatchExtractor_NoMatchAndSuppressedAreDistinguishable(t *testing.T) {
	provider := treesitter.NewProvider()
	extractor := NewMatchExtractor(provider)
	ctx := context.Background()
	buffer := valueobject.NewSourceBuffer([]byte("import Html.Styled"))

	tree, err := provider.Parse(ctx, valueobject.Elm, buffer)
	require.NoError(t, err)
	defer tree.Close()

	suppressed, err := provider.Compile(valueobject.Elm, "(import_clause (upper_case_qid)@_import)")
	require.NoError(t, err)
	defer suppressed.Close()

	result, err := extractor.Extract(ctx, tree, buffer, suppressed)
	require.NoError(t, err)
	assert.False(t, result.HasVisible())
	assert.Len(t, result.All, 1, "the pattern matched even though nothing is visible")
	assert.Equal(t, uint32(0), result.NameIndex["_import"])

	none, err := provider.Compile(valueobject.Elm, "(value_declaration) @decl")
	require.NoError(t, err)
	defer none.Close()

	result, err = extractor.Extract(ctx, tree, buffer, none)
	require.NoError(t, err)
	assert.False(t, result.HasVisible())
	assert.Empty(t, result.All)
}

func TestMatchExtractor_Deterministic(t *testing.T) {
	extractor := NewMatchExtractor(treesitter.NewProvider())
	source := "let a = 1;\nlet b = f(a, 2);\nconst c = [a, b];\n"

	first := extractFile(t, extractor, valueobject.JavaScript, "(identifier) @id (number) @num", source)
	require.NotNil(t, first)
	for range 5 {
		again := extractFile(t, extractor, valueobject.JavaScript, "(identifier) @id (number) @num", source)
		assert.Equal(t, first, again)
	}
	assert.Len(t, first.Matches, 9)
}

func TestMatchExtractor_PathIsReported(t *testing.T) {
	extractor := NewMatchExtractor(treesitter.NewProvider())
	query, err := extractor.Provider().Compile(valueobject.Elm, "(import_clause (upper_case_qid)@import)")
	require.NoError(t, err)
	defer query.Close()

	extracted, err := extractor.ExtractFile(context.Background(), query,
		valueobject.NewFileSourceBuffer("src/Main.elm", []byte("import Html.Styled")))
	require.NoError(t, err)
	require.NotNil(t, extracted)
	assert.Equal(t, "src/Main.elm:7:1:8:18:1:19:import:Html.Styled\n", extracted.String())
}

func TestMatchExtractor_DecodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		source []byte
		node   valueobject.SyntaxNode
	}{
		{
			name:   "invalid utf-8",
			source: []byte{'a', 0xff, 0xfe, 'b'},
			node:   stubNode(0, 4),
		},
		{
			name:   "range past end of buffer",
			source: []byte("ab"),
			node:   stubNode(1, 5),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &stubProvider{matches: []outbound.QueryMatch{
				{Captures: []outbound.QueryCapture{{Index: 0, Node: stubNode(0, 1)}}},
				{Captures: []outbound.QueryCapture{{Index: 0, Node: tt.node}}},
			}}
			extractor := NewMatchExtractor(provider)

			extracted, err := extractor.ExtractFile(context.Background(), &stubQuery{names: []string{"x"}},
				valueobject.NewFileSourceBuffer("bad.rs", tt.source))

			require.Error(t, err)
			assert.Nil(t, extracted, "no partial results")
			assert.ErrorIs(t, err, domain.ErrDecode)
			category, ok := domain.CategoryOf(err)
			assert.True(t, ok)
			assert.Equal(t, domain.ErrorCategoryDecode, category)
			assert.Contains(t, err.Error(), "bad.rs")
		})
	}
}

func TestMatchExtractor_NameIndexLastWins(t *testing.T) {
	provider := &stubProvider{matches: []outbound.QueryMatch{
		{Captures: []outbound.QueryCapture{{Index: 0, Node: stubNode(0, 1)}, {Index: 1, Node: stubNode(2, 3)}}},
	}}
	extractor := NewMatchExtractor(provider)
	query := &stubQuery{names: []string{"dup", "dup"}}
	buffer := valueobject.NewSourceBuffer([]byte("a b"))

	result, err := extractor.Extract(context.Background(), &stubTree{source: buffer}, buffer, query)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), result.NameIndex["dup"])
	assert.Equal(t, 2, result.CaptureCount())
}

func bufferGlobalLogger(t *testing.T) logging.ApplicationLogger {
	t.Helper()
	logger, err := logging.NewApplicationLogger(logging.Config{Level: "WARN", Format: "json", Output: "buffer"})
	require.NoError(t, err)
	slogger.SetGlobalLogger(logger)
	t.Cleanup(func() { _ = slogger.Configure(logging.DefaultConfig()) })
	return logger
}

func TestMatchExtractor_WarnsOnSyntaxErrors(t *testing.T) {
	logger := bufferGlobalLogger(t)
	extractor := NewMatchExtractor(treesitter.NewProvider())
	query, err := extractor.Provider().Compile(valueobject.Rust, "(function_item name: (identifier) @name)")
	require.NoError(t, err)
	defer query.Close()

	_, err = extractor.ExtractFile(context.Background(), query,
		valueobject.NewFileSourceBuffer("clean.rs", []byte("fn ok() {}\n")))
	require.NoError(t, err)
	assert.Empty(t, logging.BufferedOutput(logger))

	extracted, err := extractor.ExtractFile(context.Background(), query,
		valueobject.NewFileSourceBuffer("broken.rs", []byte("fn ok() {}\nfn (")))
	require.NoError(t, err)
	require.NotNil(t, extracted)
	assert.Equal(t, "ok", extracted.Matches[0].Text)

	out := logging.BufferedOutput(logger)
	assert.Contains(t, out, "source parsed with syntax errors")
	assert.Contains(t, out, "broken.rs")
}
