package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/trusted-programming/tree-grepper/internal/application/common/logging"
	"github.com/trusted-programming/tree-grepper/internal/application/common/slogger"
	"github.com/trusted-programming/tree-grepper/internal/domain/errors/domain"
	"github.com/trusted-programming/tree-grepper/internal/domain/valueobject"
	"github.com/trusted-programming/tree-grepper/internal/port/outbound"
)

// DefaultIgnorePrefix marks captures that constrain matching but are never reported.
const DefaultIgnorePrefix = "_"

// ExtractionResult holds the matches of one extraction call.
type ExtractionResult struct {
	// All keeps every capture, including ignored ones, for reference resolution.
	All []valueobject.Match
	// Visible keeps only reportable captures; matches left empty are dropped.
	Visible []valueobject.Match
	// NameIndex maps capture names to indexes. When a name repeats, the last index wins.
	NameIndex map[string]uint32
}

// HasVisible reports whether at least one capture survived ignore filtering.
func (r *ExtractionResult) HasVisible() bool {
	return len(r.Visible) > 0
}

// VisibleCaptures flattens the visible matches in order.
func (r *ExtractionResult) VisibleCaptures() []valueobject.Capture {
	var out []valueobject.Capture
	for _, m := range r.Visible {
		out = append(out, m.Captures...)
	}
	return out
}

// CaptureCount returns the number of captures in All.
func (r *ExtractionResult) CaptureCount() int {
	n := 0
	for _, m := range r.All {
		n += len(m.Captures)
	}
	return n
}

// MatchExtractor flattens query matches into capture records.
type MatchExtractor struct {
	provider     outbound.SyntaxProvider
	ignorePrefix string
	metrics      *EngineMetrics
	logger       logging.ApplicationLogger
}

// MatchExtractorOption configures a MatchExtractor.
type MatchExtractorOption func(*MatchExtractor)

// WithIgnorePrefix sets the capture-name prefix hidden from results. An empty prefix
// hides nothing.
func WithIgnorePrefix(prefix string) MatchExtractorOption {
	return func(e *MatchExtractor) { e.ignorePrefix = prefix }
}

// WithExtractorMetrics attaches metrics.
func WithExtractorMetrics(metrics *EngineMetrics) MatchExtractorOption {
	return func(e *MatchExtractor) { e.metrics = metrics }
}

// NewMatchExtractor creates an extractor on provider.
func NewMatchExtractor(provider outbound.SyntaxProvider, opts ...MatchExtractorOption) *MatchExtractor {
	e := &MatchExtractor{
		provider:     provider,
		ignorePrefix: DefaultIgnorePrefix,
		logger:       slogger.WithComponent("match-extractor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Provider returns the syntax provider the extractor runs on.
func (e *MatchExtractor) Provider() outbound.SyntaxProvider {
	return e.provider
}

// IsIgnored reports whether a capture name is hidden from results.
func (e *MatchExtractor) IsIgnored(name string) bool {
	return e.ignorePrefix != "" && strings.HasPrefix(name, e.ignorePrefix)
}

// Extract runs query over tree and decodes every capture against buffer.
// A capture that is not valid UTF-8 fails the whole call.
func (e *MatchExtractor) Extract(
	ctx context.Context,
	tree outbound.SyntaxTree,
	buffer valueobject.SourceBuffer,
	query outbound.Query,
) (*ExtractionResult, error) {
	result, err := e.extract(ctx, tree, buffer, query)
	if err != nil {
		return nil, err
	}

	outcome := extractionOutcomeMatched
	switch {
	case len(result.All) == 0:
		outcome = extractionOutcomeNoMatch
	case !result.HasVisible():
		outcome = extractionOutcomeSuppressed
	}
	e.metrics.recordExtraction(ctx, query.Language().Name(), outcome, len(result.VisibleCaptures()))
	return result, nil
}

// extract is Extract without metrics, for callers that re-extract one source repeatedly.
func (e *MatchExtractor) extract(
	ctx context.Context,
	tree outbound.SyntaxTree,
	buffer valueobject.SourceBuffer,
	query outbound.Query,
) (*ExtractionResult, error) {
	raw, err := e.provider.Matches(ctx, query, tree)
	if err != nil {
		return nil, err
	}

	names := query.CaptureNames()
	result := &ExtractionResult{
		All:       make([]valueobject.Match, 0, len(raw)),
		NameIndex: make(map[string]uint32, len(names)),
	}
	for i, name := range names {
		result.NameIndex[name] = uint32(i)
	}

	src := buffer.Bytes()
	for _, qm := range raw {
		match := valueobject.Match{PatternIndex: qm.PatternIndex, Captures: make([]valueobject.Capture, 0, len(qm.Captures))}
		visible := valueobject.Match{PatternIndex: qm.PatternIndex}

		for _, qc := range qm.Captures {
			if int(qc.Index) >= len(names) {
				return nil, domain.NewCompileError(query.Language().Name(), "capture index outside query", int(qc.Index))
			}
			name := names[qc.Index]
			node := qc.Node
			if node.StartByte > node.EndByte || int(node.EndByte) > len(src) {
				return nil, domain.NewDecodeError(name, node.StartByte, node.EndByte)
			}
			text := src[node.StartByte:node.EndByte]
			if !utf8.Valid(text) {
				return nil, domain.NewDecodeError(name, node.StartByte, node.EndByte)
			}
			capture := valueobject.Capture{
				Index:     qc.Index,
				Name:      name,
				Kind:      node.Kind,
				Text:      string(text),
				StartByte: node.StartByte,
				EndByte:   node.EndByte,
				Start:     node.StartPoint,
				End:       node.EndPoint,
			}
			match.Captures = append(match.Captures, capture)
			if !e.IsIgnored(name) {
				visible.Captures = append(visible.Captures, capture)
			}
		}

		result.All = append(result.All, match)
		if len(visible.Captures) > 0 {
			result.Visible = append(result.Visible, visible)
		}
	}
	return result, nil
}

// ExtractFile parses buffer, runs query and returns the report record. It returns
// nil without error when no visible capture remains.
func (e *MatchExtractor) ExtractFile(
	ctx context.Context,
	query outbound.Query,
	buffer valueobject.SourceBuffer,
) (*valueobject.ExtractedFile, error) {
	start := time.Now()
	language := query.Language()

	path, _ := buffer.Path()
	tree, err := e.provider.Parse(ctx, language, buffer)
	if err != nil {
		return nil, domain.WithPathIfMissing(err, path)
	}
	defer tree.Close()
	warnOnSyntaxErrors(ctx, e.logger, tree, path)

	result, err := e.Extract(ctx, tree, buffer, query)
	if err != nil {
		return nil, domain.WithPathIfMissing(err, path)
	}

	e.logger.LogPerformance(ctx, "extract", time.Since(start), logging.Fields{
		"path":     path,
		"language": language.Name(),
		"matches":  len(result.All),
		"visible":  len(result.Visible),
	})

	if !result.HasVisible() {
		return nil, nil //nolint:nilnil // no visible match is not an error
	}
	return valueobject.NewExtractedFile(buffer, language.Name(), result.VisibleCaptures()), nil
}

// warnOnSyntaxErrors logs trees holding error or missing nodes. Matching still runs
// on the recovered tree.
func warnOnSyntaxErrors(ctx context.Context, logger logging.ApplicationLogger, tree outbound.SyntaxTree, path string) {
	if !tree.HasError() {
		return
	}
	logger.Warn(ctx, "source parsed with syntax errors", logging.Fields{
		"path":     path,
		"language": tree.Language().Name(),
	})
}
