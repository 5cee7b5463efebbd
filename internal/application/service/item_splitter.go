package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/trusted-programming/tree-grepper/internal/application/common/logging"
	"github.com/trusted-programming/tree-grepper/internal/application/common/slogger"
	"github.com/trusted-programming/tree-grepper/internal/domain/errors/domain"
	"github.com/trusted-programming/tree-grepper/internal/domain/valueobject"
	"github.com/trusted-programming/tree-grepper/internal/port/outbound"
)

// ItemClass classifies an item artifact by the scope regions its markup emitted.
type ItemClass string

const (
	ItemClassUnsafe ItemClass = "unsafe"
	ItemClassClean  ItemClass = "clean"
)

// StdinSourceLabel names buffers without a path in artifact keys.
const StdinSourceLabel = "stdin"

// ItemSpan is the byte range of one top-level item.
type ItemSpan struct {
	Start uint32
	End   uint32
	Kind  string
	Bytes []byte
}

// ItemArtifact is the markup of one item and its storage identity.
type ItemArtifact struct {
	Source  string
	Span    ItemSpan
	Address string
	Class   ItemClass
	Markup  []byte
}

// Key returns the store key of the artifact.
func (a ItemArtifact) Key() string {
	return ArtifactKey(a.Source, a.Class, a.Address)
}

// ArtifactKey builds <source>/<class>/<address>. Namespacing is applied by the store.
func ArtifactKey(source string, class ItemClass, address string) string {
	return path.Join(source, string(class), address)
}

// ContentAddress is the SHA-256 hex digest of unmarked item bytes.
func ContentAddress(span []byte) string {
	sum := sha256.Sum256(span)
	return hex.EncodeToString(sum[:])
}

// escapedStdinPath labels a file literally named "stdin" ('s' is 0x73).
const escapedStdinPath = "%73tdin"

// SourceLabel derives the artifact source segments from a buffer identity. Segments
// are percent-escaped, the root becomes "%2F" and relative segments become "%2E" or
// "%2E%2E", so distinct paths never share a label and every label unescapes to its path.
func SourceLabel(buffer valueobject.SourceBuffer) string {
	p, ok := buffer.Path()
	if !ok || p == "" {
		return StdinSourceLabel
	}
	p = filepath.ToSlash(filepath.Clean(p))
	if p == StdinSourceLabel {
		return escapedStdinPath
	}

	segments := strings.Split(p, "/")
	for i, segment := range segments {
		switch segment {
		case "":
			segments[i] = "%2F"
		case ".":
			segments[i] = "%2E"
		case "..":
			segments[i] = "%2E%2E"
		default:
			segments[i] = url.PathEscape(segment)
		}
	}
	return strings.Join(segments, "/")
}

// PersistReport summarizes a Persist call.
type PersistReport struct {
	Written  int
	Skipped  int
	Replaced int
}

// ItemSplitter partitions a file into top-level items and annotates each independently.
type ItemSplitter struct {
	markup    *MarkupEngine
	store     outbound.BlobStore
	language  valueobject.Language
	itemsExpr string
	metrics   *EngineMetrics
	logger    logging.ApplicationLogger
}

// NewItemSplitter creates a splitter selecting items of language with itemsQuery.
// store may be nil when artifacts are never persisted.
func NewItemSplitter(
	markup *MarkupEngine,
	store outbound.BlobStore,
	language valueobject.Language,
	itemsQuery string,
	metrics *EngineMetrics,
) *ItemSplitter {
	return &ItemSplitter{
		markup:    markup,
		store:     store,
		language:  language,
		itemsExpr: itemsQuery,
		metrics:   metrics,
		logger:    slogger.WithComponent("item-splitter"),
	}
}

// Split maps the start offset of every top-level item of tree to its span. Items
// sharing a start keep the widest span.
func (s *ItemSplitter) Split(
	ctx context.Context,
	tree outbound.SyntaxTree,
	buffer valueobject.SourceBuffer,
) (map[uint32]ItemSpan, error) {
	extractor := s.markup.extractor
	query, err := extractor.Provider().Compile(tree.Language(), s.itemsExpr)
	if err != nil {
		return nil, err
	}
	defer query.Close()

	result, err := extractor.Extract(ctx, tree, buffer, query)
	if err != nil {
		return nil, err
	}

	byStart := make(map[uint32]ItemSpan)
	for _, c := range result.VisibleCaptures() {
		if existing, ok := byStart[c.StartByte]; ok && existing.End >= c.EndByte {
			continue
		}
		byStart[c.StartByte] = ItemSpan{
			Start: c.StartByte,
			End:   c.EndByte,
			Kind:  c.Kind,
			Bytes: []byte(c.Text),
		}
	}

	return byStart, nil
}

// OrderedSpans returns the spans of a Split result ordered by start offset.
func OrderedSpans(byStart map[uint32]ItemSpan) []ItemSpan {
	spans := make([]ItemSpan, 0, len(byStart))
	for _, span := range byStart {
		spans = append(spans, span)
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
	return spans
}

// Process splits buffer and annotates every item re-parsed as a standalone buffer.
func (s *ItemSplitter) Process(
	ctx context.Context,
	buffer valueobject.SourceBuffer,
	categories []valueobject.MarkupCategory,
) ([]ItemArtifact, error) {
	filePath, _ := buffer.Path()
	provider := s.markup.extractor.Provider()

	tree, err := provider.Parse(ctx, s.language, buffer)
	if err != nil {
		return nil, domain.WithPathIfMissing(err, filePath)
	}
	byStart, err := s.Split(ctx, tree, buffer)
	tree.Close()
	if err != nil {
		return nil, domain.WithPathIfMissing(err, filePath)
	}
	spans := OrderedSpans(byStart)

	source := SourceLabel(buffer)
	artifacts := make([]ItemArtifact, 0, len(spans))
	for _, span := range spans {
		annotation, err := s.markup.AnnotateSource(ctx, s.language, valueobject.NewSourceBuffer(span.Bytes), categories)
		if err != nil {
			return nil, domain.WithPathIfMissing(err, filePath)
		}
		class := ItemClassClean
		if annotation.HasScope(categories) {
			class = ItemClassUnsafe
		}
		s.metrics.recordItem(ctx, class)
		artifacts = append(artifacts, ItemArtifact{
			Source:  source,
			Span:    span,
			Address: ContentAddress(span.Bytes),
			Class:   class,
			Markup:  annotation.Output,
		})
	}

	s.logger.Debug(ctx, "items annotated", logging.Fields{
		"path":  filePath,
		"items": len(artifacts),
	})
	return artifacts, nil
}

// Persist writes artifacts to the store. A clean artifact is skipped when the unsafe
// variant of its address exists, and writing an unsafe artifact removes the clean
// variant, so no address is stored under both classes.
func (s *ItemSplitter) Persist(ctx context.Context, artifacts []ItemArtifact) (PersistReport, error) {
	var report PersistReport
	if s.store == nil {
		return report, domain.NewStoreError("persist", "", errors.New("no blob store configured"))
	}

	for _, a := range artifacts {
		switch a.Class {
		case ItemClassUnsafe:
			if err := s.store.Put(ctx, a.Key(), string(a.Markup)); err != nil {
				return report, err
			}
			report.Written++
			cleanKey := ArtifactKey(a.Source, ItemClassClean, a.Address)
			if _, err := s.store.Get(ctx, cleanKey); err == nil {
				if err := s.store.Delete(ctx, cleanKey); err != nil {
					return report, err
				}
				report.Replaced++
			} else if !errors.Is(err, domain.ErrBlobNotFound) {
				return report, err
			}
		default:
			unsafeKey := ArtifactKey(a.Source, ItemClassUnsafe, a.Address)
			_, err := s.store.Get(ctx, unsafeKey)
			switch {
			case err == nil:
				report.Skipped++
				continue
			case !errors.Is(err, domain.ErrBlobNotFound):
				return report, err
			}
			if err := s.store.Put(ctx, a.Key(), string(a.Markup)); err != nil {
				return report, err
			}
			report.Written++
		}
	}

	s.logger.Info(ctx, "item artifacts persisted", logging.Fields{
		"written":  report.Written,
		"skipped":  report.Skipped,
		"replaced": report.Replaced,
	})
	return report, nil
}
