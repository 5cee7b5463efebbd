package service

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Engine metric names.
const (
	EngineMeterName              = "tree-grepper/engine"
	EngineExtractionsCounterName = "engine_extractions_total"
	EngineCapturesCounterName    = "engine_captures_total"
	EngineSubstitutionsCounter   = "engine_substitutions_total"
	EngineRewritePassesHistogram = "engine_rewrite_passes"
	EngineMarkupRegionsCounter   = "engine_markup_regions_total"
	EngineItemsCounterName       = "engine_items_total"
	AttrLanguage                 = "language"
	AttrCategory                 = "category"
	AttrItemClass                = "class"
	AttrExtractionOutcome        = "outcome"
	extractionOutcomeMatched     = "matched"
	extractionOutcomeSuppressed  = "suppressed"
	extractionOutcomeNoMatch     = "no_match"
)

// EngineMetrics records engine activity through OpenTelemetry. A nil *EngineMetrics
// records nothing.
type EngineMetrics struct {
	extractions   metric.Int64Counter
	captures      metric.Int64Counter
	substitutions metric.Int64Counter
	rewritePasses metric.Int64Histogram
	markupRegions metric.Int64Counter
	items         metric.Int64Counter
}

// NewEngineMetrics creates engine metrics on the global meter provider.
func NewEngineMetrics() (*EngineMetrics, error) {
	return NewEngineMetricsWithProvider(otel.GetMeterProvider())
}

// NewEngineMetricsWithProvider creates engine metrics on provider.
func NewEngineMetricsWithProvider(provider metric.MeterProvider) (*EngineMetrics, error) {
	meter := provider.Meter(EngineMeterName)
	m := &EngineMetrics{}
	var err error

	if m.extractions, err = meter.Int64Counter(EngineExtractionsCounterName,
		metric.WithDescription("Extraction calls by outcome")); err != nil {
		return nil, err
	}
	if m.captures, err = meter.Int64Counter(EngineCapturesCounterName,
		metric.WithDescription("Visible captures produced by extraction")); err != nil {
		return nil, err
	}
	if m.substitutions, err = meter.Int64Counter(EngineSubstitutionsCounter,
		metric.WithDescription("Byte-range substitutions applied by rewrites")); err != nil {
		return nil, err
	}
	if m.rewritePasses, err = meter.Int64Histogram(EngineRewritePassesHistogram,
		metric.WithDescription("Extraction passes needed to reach a rewrite fixpoint"),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 5, 8, 13, 21, 50, 100)); err != nil {
		return nil, err
	}
	if m.markupRegions, err = meter.Int64Counter(EngineMarkupRegionsCounter,
		metric.WithDescription("Markup regions emitted by category")); err != nil {
		return nil, err
	}
	if m.items, err = meter.Int64Counter(EngineItemsCounterName,
		metric.WithDescription("Top-level items processed by classification")); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *EngineMetrics) recordExtraction(ctx context.Context, language, outcome string, visible int) {
	if m == nil {
		return
	}
	lang := attribute.String(AttrLanguage, language)
	m.extractions.Add(ctx, 1, metric.WithAttributes(lang, attribute.String(AttrExtractionOutcome, outcome)))
	if visible > 0 {
		m.captures.Add(ctx, int64(visible), metric.WithAttributes(lang))
	}
}

func (m *EngineMetrics) recordRewrite(ctx context.Context, language string, substitutions, passes int) {
	if m == nil {
		return
	}
	lang := metric.WithAttributes(attribute.String(AttrLanguage, language))
	if substitutions > 0 {
		m.substitutions.Add(ctx, int64(substitutions), lang)
	}
	m.rewritePasses.Record(ctx, int64(passes), lang)
}

func (m *EngineMetrics) recordMarkupRegion(ctx context.Context, tag string) {
	if m == nil {
		return
	}
	m.markupRegions.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrCategory, tag)))
}

func (m *EngineMetrics) recordItem(ctx context.Context, class ItemClass) {
	if m == nil {
		return
	}
	m.items.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrItemClass, string(class))))
}
