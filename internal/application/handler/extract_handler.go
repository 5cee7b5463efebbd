package handler

import (
	"context"
	"errors"

	"github.com/trusted-programming/tree-grepper/internal/application/command"
	"github.com/trusted-programming/tree-grepper/internal/application/common/slogger"
	"github.com/trusted-programming/tree-grepper/internal/application/dto"
	"github.com/trusted-programming/tree-grepper/internal/domain/valueobject"
	"github.com/trusted-programming/tree-grepper/internal/port/outbound"
)

// FileExtractor runs a compiled query against one buffer.
type FileExtractor interface {
	Provider() outbound.SyntaxProvider
	ExtractFile(ctx context.Context, query outbound.Query, buffer valueobject.SourceBuffer) (*valueobject.ExtractedFile, error)
}

// ExtractHandler handles extract commands.
type ExtractHandler struct {
	extractor FileExtractor
	opts      Options
}

// NewExtractHandler creates a new extract handler.
func NewExtractHandler(extractor FileExtractor, opts Options) *ExtractHandler {
	return &ExtractHandler{extractor: extractor, opts: opts}
}

// Handle compiles every query, then runs each query of a file's language over that
// file. Records are ordered by input path, then query order.
func (h *ExtractHandler) Handle(ctx context.Context, cmd command.ExtractCommand) (*dto.ExtractReport, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	queries, err := compileQueries(h.extractor.Provider(), cmd.Queries)
	if err != nil {
		return nil, err
	}
	defer closeQueries(queries)

	languages := make([]valueobject.Language, len(queries))
	for i, q := range queries {
		languages[i] = q.Language()
	}
	sources, err := resolveSources(ctx, h.opts, cmd.Inputs, languageSet(languages...))
	if err != nil {
		return nil, err
	}

	perSource, failures, stats, err := runSources(ctx, sources, h.opts, cmd.FailFast,
		func(ctx context.Context, src source) ([]*valueobject.ExtractedFile, error) {
			return h.extractSource(ctx, src, queries)
		})
	if err != nil && !errors.Is(err, ErrInputsFailed) {
		return nil, err
	}

	report := &dto.ExtractReport{Failures: failures, Stats: stats}
	for _, records := range perSource {
		report.Files = append(report.Files, records...)
	}

	slogger.Info(ctx, "extract finished", slogger.Fields{
		"inputs":   len(sources),
		"records":  len(report.Files),
		"failed":   stats.Failed,
		"duration": stats.Duration.String(),
		"queries":  len(queries),
	})
	return report, err
}

func (h *ExtractHandler) extractSource(
	ctx context.Context,
	src source,
	queries []outbound.Query,
) ([]*valueobject.ExtractedFile, error) {
	buffer, err := src.load()
	if err != nil {
		return nil, err
	}

	var records []*valueobject.ExtractedFile
	for _, q := range queries {
		if !src.stdin && !q.Language().Equal(src.language) {
			continue
		}
		record, err := h.extractor.ExtractFile(ctx, q, buffer)
		if err != nil {
			return nil, err
		}
		if record != nil {
			records = append(records, record)
		}
	}
	return records, nil
}

func compileQueries(provider outbound.SyntaxProvider, specs []command.QuerySpec) ([]outbound.Query, error) {
	queries := make([]outbound.Query, 0, len(specs))
	for _, spec := range specs {
		query, err := compileQuery(provider, spec)
		if err != nil {
			closeQueries(queries)
			return nil, err
		}
		queries = append(queries, query)
	}
	return queries, nil
}

func compileQuery(provider outbound.SyntaxProvider, spec command.QuerySpec) (outbound.Query, error) {
	language, err := spec.LanguageValue()
	if err != nil {
		return nil, err
	}
	return provider.Compile(language, spec.Pattern)
}

func closeQueries(queries []outbound.Query) {
	for _, q := range queries {
		q.Close()
	}
}
