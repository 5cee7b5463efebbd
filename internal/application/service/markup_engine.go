package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/trusted-programming/tree-grepper/internal/application/common/logging"
	"github.com/trusted-programming/tree-grepper/internal/application/common/slogger"
	"github.com/trusted-programming/tree-grepper/internal/domain/errors/domain"
	"github.com/trusted-programming/tree-grepper/internal/domain/valueobject"
	"github.com/trusted-programming/tree-grepper/internal/port/outbound"
)

// Annotation is the result of a markup pass.
type Annotation struct {
	Output []byte
	// Regions holds every resolved region, sorted by start.
	Regions []valueobject.AnnotatedRegion
	// Emitted holds the regions that produced output.
	Emitted []valueobject.AnnotatedRegion
}

// HasScope reports whether an emitted region belongs to a scope category.
func (a *Annotation) HasScope(categories []valueobject.MarkupCategory) bool {
	for _, r := range a.Emitted {
		if r.Category < len(categories) && categories[r.Category].Scope && r.Kind == valueobject.CategoryWrap {
			return true
		}
	}
	return false
}

// MarkupEngine overlays independent category queries on one tree as inline tags.
type MarkupEngine struct {
	extractor *MatchExtractor
	guard     uint32
	metrics   *EngineMetrics
	logger    logging.ApplicationLogger
}

// MarkupEngineOption configures a MarkupEngine.
type MarkupEngineOption func(*MarkupEngine)

// WithBoundaryGuard sets the boundary suppression distance.
func WithBoundaryGuard(guard uint32) MarkupEngineOption {
	return func(m *MarkupEngine) { m.guard = guard }
}

// WithMarkupMetrics attaches metrics.
func WithMarkupMetrics(metrics *EngineMetrics) MarkupEngineOption {
	return func(m *MarkupEngine) { m.metrics = metrics }
}

// NewMarkupEngine creates a markup engine reading matches through extractor.
func NewMarkupEngine(extractor *MatchExtractor, opts ...MarkupEngineOption) *MarkupEngine {
	m := &MarkupEngine{
		extractor: extractor,
		guard:     DefaultBoundaryGuard,
		logger:    slogger.WithComponent("markup-engine"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Annotate evaluates every category against tree and renders the merged output.
func (m *MarkupEngine) Annotate(
	ctx context.Context,
	tree outbound.SyntaxTree,
	buffer valueobject.SourceBuffer,
	categories []valueobject.MarkupCategory,
) (*Annotation, error) {
	start := time.Now()
	path, _ := buffer.Path()

	regions, err := m.resolveRegions(ctx, tree, buffer, categories)
	if err != nil {
		return nil, domain.WithPathIfMissing(err, path)
	}

	output, emitted, err := RenderMarkup(buffer.Bytes(), categories, regions, m.guard)
	if err != nil {
		return nil, domain.NewEngineError(domain.ErrorCategoryDecode, "markup regions do not fit the source").
			WithPath(path).WithCause(err)
	}
	for _, r := range emitted {
		m.metrics.recordMarkupRegion(ctx, r.Tag)
	}

	m.logger.LogPerformance(ctx, "annotate", time.Since(start), logging.Fields{
		"path":       path,
		"categories": len(categories),
		"regions":    len(regions),
		"emitted":    len(emitted),
	})
	return &Annotation{Output: output, Regions: regions, Emitted: emitted}, nil
}

// AnnotateSource parses buffer with language and annotates it.
func (m *MarkupEngine) AnnotateSource(
	ctx context.Context,
	language valueobject.Language,
	buffer valueobject.SourceBuffer,
	categories []valueobject.MarkupCategory,
) (*Annotation, error) {
	path, _ := buffer.Path()
	tree, err := m.extractor.Provider().Parse(ctx, language, buffer)
	if err != nil {
		return nil, domain.WithPathIfMissing(err, path)
	}
	defer tree.Close()
	warnOnSyntaxErrors(ctx, m.logger, tree, path)
	return m.Annotate(ctx, tree, buffer, categories)
}

func (m *MarkupEngine) resolveRegions(
	ctx context.Context,
	tree outbound.SyntaxTree,
	buffer valueobject.SourceBuffer,
	categories []valueobject.MarkupCategory,
) ([]valueobject.AnnotatedRegion, error) {
	provider := m.extractor.Provider()
	seen := make(map[valueobject.AnnotatedRegion]struct{})
	var regions []valueobject.AnnotatedRegion

	for i, category := range categories {
		if err := category.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidMarkupProfile, err)
		}
		query, err := provider.Compile(tree.Language(), category.Query)
		if err != nil {
			return nil, err
		}
		result, err := m.extractor.Extract(ctx, tree, buffer, query)
		query.Close()
		if err != nil {
			return nil, err
		}
		for _, c := range result.VisibleCaptures() {
			region := valueobject.AnnotatedRegion{
				Category: i,
				Tag:      category.Tag,
				Kind:     category.Kind,
				Start:    c.StartByte,
				End:      c.EndByte,
			}
			if _, dup := seen[region]; dup {
				continue
			}
			seen[region] = struct{}{}
			regions = append(regions, region)
		}
	}

	sort.SliceStable(regions, func(i, j int) bool {
		if regions[i].Start != regions[j].Start {
			return regions[i].Start < regions[j].Start
		}
		if regions[i].Category != regions[j].Category {
			return regions[i].Category < regions[j].Category
		}
		return regions[i].End > regions[j].End
	})
	return regions, nil
}
