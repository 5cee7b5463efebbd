package handler

import (
	"context"
	"errors"

	"github.com/trusted-programming/tree-grepper/internal/application/command"
	"github.com/trusted-programming/tree-grepper/internal/application/common/slogger"
	"github.com/trusted-programming/tree-grepper/internal/application/dto"
	"github.com/trusted-programming/tree-grepper/internal/application/service"
	"github.com/trusted-programming/tree-grepper/internal/config"
	"github.com/trusted-programming/tree-grepper/internal/domain/valueobject"
	"github.com/trusted-programming/tree-grepper/internal/port/outbound"
)

// ErrNoStore is returned by split runs when no blob store is configured.
var ErrNoStore = errors.New("split mode needs a blob store")

// MarkupHandler handles markup commands.
type MarkupHandler struct {
	markup  *service.MarkupEngine
	store   outbound.BlobStore
	metrics *service.EngineMetrics
	opts    Options
}

// NewMarkupHandler creates a new markup handler. store may be nil when split mode
// is never used.
func NewMarkupHandler(
	markup *service.MarkupEngine,
	store outbound.BlobStore,
	metrics *service.EngineMetrics,
	opts Options,
) *MarkupHandler {
	return &MarkupHandler{markup: markup, store: store, metrics: metrics, opts: opts}
}

// Handle annotates every input of the profile's language. In split mode each
// top-level item is annotated on its own and persisted instead of returned.
func (h *MarkupHandler) Handle(ctx context.Context, cmd command.MarkupCommand) (*dto.MarkupReport, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if cmd.Split && h.store == nil {
		return nil, ErrNoStore
	}

	profile, err := config.LoadMarkupProfile(cmd.ProfilePath)
	if err != nil {
		return nil, err
	}
	language, err := profile.LanguageValue()
	if err != nil {
		return nil, err
	}
	categories, err := profile.MarkupCategories()
	if err != nil {
		return nil, err
	}

	sources, err := resolveSources(ctx, h.opts, cmd.Inputs, languageSet(language))
	if err != nil {
		return nil, err
	}

	var splitter *service.ItemSplitter
	if cmd.Split {
		splitter = service.NewItemSplitter(h.markup, h.store, language, profile.Items, h.metrics)
	}

	marked, failures, stats, err := runSources(ctx, sources, h.opts, cmd.FailFast,
		func(ctx context.Context, src source) (dto.MarkedUpSource, error) {
			buffer, err := src.load()
			if err != nil {
				return dto.MarkedUpSource{}, err
			}
			if splitter != nil {
				return splitSource(ctx, splitter, src.name, buffer, categories)
			}
			annotation, err := h.markup.AnnotateSource(ctx, language, buffer, categories)
			if err != nil {
				return dto.MarkedUpSource{}, err
			}
			return dto.MarkedUpSource{Input: src.name, Output: string(annotation.Output)}, nil
		})
	if err != nil && !errors.Is(err, ErrInputsFailed) {
		return nil, err
	}

	slogger.Info(ctx, "markup finished", slogger.Fields{
		"inputs":   len(sources),
		"language": language.Name(),
		"split":    cmd.Split,
		"failed":   stats.Failed,
		"duration": stats.Duration.String(),
	})
	return &dto.MarkupReport{Sources: marked, Failures: failures, Stats: stats}, err
}

func splitSource(
	ctx context.Context,
	splitter *service.ItemSplitter,
	name string,
	buffer valueobject.SourceBuffer,
	categories []valueobject.MarkupCategory,
) (dto.MarkedUpSource, error) {
	artifacts, err := splitter.Process(ctx, buffer, categories)
	if err != nil {
		return dto.MarkedUpSource{}, err
	}
	persisted, err := splitter.Persist(ctx, artifacts)
	if err != nil {
		return dto.MarkedUpSource{}, err
	}
	return dto.MarkedUpSource{
		Input:    name,
		Items:    len(artifacts),
		Written:  persisted.Written,
		Skipped:  persisted.Skipped,
		Replaced: persisted.Replaced,
	}, nil
}
