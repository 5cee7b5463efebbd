package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/trusted-programming/tree-grepper/internal/application/common/logging"
	"github.com/trusted-programming/tree-grepper/internal/application/common/slogger"
	"github.com/trusted-programming/tree-grepper/internal/domain/errors/domain"
	"github.com/trusted-programming/tree-grepper/internal/domain/valueobject"
	"github.com/trusted-programming/tree-grepper/internal/port/outbound"
)

// ReferenceSigil introduces a capture reference inside a substitution template.
const ReferenceSigil = "@"

// RewriteResult is the outcome of a rewrite.
type RewriteResult struct {
	Source valueobject.SourceBuffer
	// Substitutions counts applied byte-range replacements.
	Substitutions int
	// Passes counts extraction passes, including the final one that found nothing to do.
	Passes int
}

// Changed reports whether any substitution was applied.
func (r *RewriteResult) Changed() bool {
	return r.Substitutions > 0
}

// SubstitutionEngine applies sub! directives until the source reaches a fixpoint.
type SubstitutionEngine struct {
	extractor     *MatchExtractor
	maxIterations int
	metrics       *EngineMetrics
	logger        logging.ApplicationLogger
}

// SubstitutionEngineOption configures a SubstitutionEngine.
type SubstitutionEngineOption func(*SubstitutionEngine)

// WithMaxRewriteIterations overrides the derived restart cap. Zero keeps the derived cap.
func WithMaxRewriteIterations(n int) SubstitutionEngineOption {
	return func(s *SubstitutionEngine) { s.maxIterations = n }
}

// WithRewriteMetrics attaches metrics.
func WithRewriteMetrics(metrics *EngineMetrics) SubstitutionEngineOption {
	return func(s *SubstitutionEngine) { s.metrics = metrics }
}

// NewSubstitutionEngine creates an engine reading matches through extractor.
func NewSubstitutionEngine(extractor *MatchExtractor, opts ...SubstitutionEngineOption) *SubstitutionEngine {
	s := &SubstitutionEngine{
		extractor: extractor,
		logger:    slogger.WithComponent("substitution-engine"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type pendingSubstitution struct {
	capture valueobject.Capture
	text    string
}

// Rewrite applies the query's substitution directives to buffer. After every applied
// replacement the tree is edited, reparsed and extraction restarts from scratch.
// Bytes outside substituted ranges are never changed.
func (s *SubstitutionEngine) Rewrite(
	ctx context.Context,
	buffer valueobject.SourceBuffer,
	query outbound.Query,
) (*RewriteResult, error) {
	start := time.Now()
	language := query.Language()
	path, _ := buffer.Path()

	templates := make(map[uint32]string)
	for _, d := range query.Directives() {
		templates[d.CaptureIndex()] = d.Template
	}
	if len(templates) == 0 {
		return &RewriteResult{Source: buffer}, nil
	}

	provider := s.extractor.Provider()
	tree, err := provider.Parse(ctx, language, buffer)
	if err != nil {
		return nil, domain.WithPathIfMissing(err, path)
	}
	defer func() { tree.Close() }()

	current := buffer
	applied := 0
	limit := 0
	for pass := 1; ; pass++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		extract := s.extractor.extract
		if pass == 1 {
			extract = s.extractor.Extract
		}
		result, err := extract(ctx, tree, current, query)
		if err != nil {
			return nil, domain.WithPathIfMissing(err, path)
		}
		if pass == 1 {
			limit = s.restartLimit(result, templates)
		}

		next, found := nextSubstitution(result.All, templates)
		if !found {
			s.metrics.recordRewrite(ctx, language.Name(), applied, pass)
			s.logger.LogPerformance(ctx, "rewrite", time.Since(start), logging.Fields{
				"path":          path,
				"language":      language.Name(),
				"substitutions": applied,
				"passes":        pass,
			})
			return &RewriteResult{Source: current, Substitutions: applied, Passes: pass}, nil
		}
		if applied >= limit {
			return nil, domain.NewRewriteDivergenceError(limit).WithPath(path).WithLanguage(language.Name())
		}

		replacement := []byte(next.text)
		spliced, err := current.Splice(next.capture.StartByte, next.capture.EndByte, replacement)
		if err != nil {
			return nil, domain.NewDecodeError(next.capture.Name, next.capture.StartByte, next.capture.EndByte).
				WithCause(err).WithPath(path)
		}
		edit := valueobject.NewReplacementEdit(next.capture, len(replacement))
		edited, err := provider.Edit(ctx, tree, edit, spliced)
		if err != nil {
			return nil, domain.WithPathIfMissing(err, path)
		}
		tree = edited
		current = spliced
		applied++

		s.logger.Debug(ctx, "substitution applied", logging.Fields{
			"path":       path,
			"capture":    next.capture.Name,
			"start_byte": next.capture.StartByte,
			"old_len":    next.capture.Len(),
			"new_len":    len(replacement),
		})
	}
}

// restartLimit bounds applied substitutions: every substitutable occurrence of the
// first pass may change once per distinct key, plus one slack round per key.
func (s *SubstitutionEngine) restartLimit(result *ExtractionResult, templates map[uint32]string) int {
	if s.maxIterations > 0 {
		return s.maxIterations
	}
	occurrences := 0
	for _, m := range result.All {
		for _, c := range m.Captures {
			if _, ok := templates[c.Index]; ok {
				occurrences++
			}
		}
	}
	keys := len(templates)
	return max(1, occurrences*keys) + keys
}

// nextSubstitution finds the first capture, in traversal order, whose resolved
// template differs from its current text.
func nextSubstitution(matches []valueobject.Match, templates map[uint32]string) (pendingSubstitution, bool) {
	for _, m := range matches {
		for _, c := range m.Captures {
			template, ok := templates[c.Index]
			if !ok {
				continue
			}
			resolved := ResolveTemplate(template, m)
			if resolved != c.Text {
				return pendingSubstitution{capture: c, text: resolved}, true
			}
		}
	}
	return pendingSubstitution{}, false
}

// ResolveTemplate replaces @name references with the text of the same-named capture
// of match; with duplicate names the last capture wins. Longer names are replaced
// first so @ab is not read as @a. Resolution repeats while references remain and a
// pass still replaces something; references without a capture are left verbatim.
func ResolveTemplate(template string, match valueobject.Match) string {
	values := make(map[string]string, len(match.Captures))
	for _, c := range match.Captures {
		if _, seen := values[c.Name]; seen {
			continue
		}
		named, _ := match.CaptureNamed(c.Name)
		values[c.Name] = named.Text
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	text := template
	for pass := 0; pass <= len(names); pass++ {
		if !strings.Contains(text, ReferenceSigil) {
			break
		}
		replaced := false
		for _, name := range names {
			token := ReferenceSigil + name
			if strings.Contains(text, token) {
				text = strings.ReplaceAll(text, token, values[name])
				replaced = true
			}
		}
		if !replaced {
			break
		}
	}
	return text
}
