package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trusted-programming/tree-grepper/internal/adapter/outbound/treesitter"
	"github.com/trusted-programming/tree-grepper/internal/domain/valueobject"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumByAttribute(t *testing.T, m metricdata.Metrics, key string) map[string]int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)

	out := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		value, _ := dp.Attributes.Value(attribute.Key(key))
		out[value.AsString()] += dp.Value
	}
	return out
}

func newTestMetrics(t *testing.T) (*EngineMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	metrics, err := NewEngineMetricsWithProvider(provider)
	require.NoError(t, err)
	return metrics, reader
}

func TestEngineMetrics_RecordsExtractionOutcomes(t *testing.T) {
	metrics, reader := newTestMetrics(t)
	extractor := NewMatchExtractor(treesitter.NewProvider(), WithExtractorMetrics(metrics))

	extractFile(t, extractor, valueobject.Elm, "(import_clause (upper_case_qid)@import)", "import Html.Styled")
	extractFile(t, extractor, valueobject.Elm, "(import_clause (upper_case_qid)@_import)", "import Html.Styled")
	extractFile(t, extractor, valueobject.Elm, "(value_declaration) @decl", "import Html.Styled")

	collected := collectMetrics(t, reader)
	outcomes := sumByAttribute(t, collected[EngineExtractionsCounterName], AttrExtractionOutcome)
	assert.Equal(t, map[string]int64{"matched": 1, "suppressed": 1, "no_match": 1}, outcomes)

	captures := sumByAttribute(t, collected[EngineCapturesCounterName], AttrLanguage)
	assert.Equal(t, int64(1), captures["elm"])
}

func TestEngineMetrics_RecordsRewrites(t *testing.T) {
	metrics, reader := newTestMetrics(t)

	_, err := rewrite(t, valueobject.JavaScript,
		`(variable_declarator name: (identifier) @n value: (number) @v (#sub! @n "n@v"))`,
		"let a = 1; let b = 2;", WithRewriteMetrics(metrics))
	require.NoError(t, err)

	collected := collectMetrics(t, reader)
	substitutions := sumByAttribute(t, collected[EngineSubstitutionsCounter], AttrLanguage)
	assert.Equal(t, int64(2), substitutions["javascript"])

	passes, ok := collected[EngineRewritePassesHistogram].Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, passes.DataPoints, 1)
	assert.Equal(t, uint64(1), passes.DataPoints[0].Count)
	assert.Equal(t, int64(3), passes.DataPoints[0].Sum)
}

func TestEngineMetrics_RewriteCountsOneExtraction(t *testing.T) {
	metrics, reader := newTestMetrics(t)
	provider := treesitter.NewProvider()
	query, err := provider.Compile(valueobject.JavaScript,
		`(variable_declarator name: (identifier) @n value: (number) @v (#sub! @n "n@v"))`)
	require.NoError(t, err)
	defer query.Close()

	engine := NewSubstitutionEngine(NewMatchExtractor(provider, WithExtractorMetrics(metrics)), WithRewriteMetrics(metrics))
	result, err := engine.Rewrite(context.Background(),
		valueobject.NewSourceBuffer([]byte("let a = 1; let b = 2;")), query)
	require.NoError(t, err)
	require.Equal(t, 3, result.Passes)

	collected := collectMetrics(t, reader)
	outcomes := sumByAttribute(t, collected[EngineExtractionsCounterName], AttrExtractionOutcome)
	assert.Equal(t, map[string]int64{"matched": 1}, outcomes)
}

func TestEngineMetrics_RecordsMarkupAndItems(t *testing.T) {
	metrics, reader := newTestMetrics(t)
	profile, categories := defaultRustCategories(t)
	markup := NewMarkupEngine(NewMatchExtractor(treesitter.NewProvider()), WithMarkupMetrics(metrics))
	splitter := NewItemSplitter(markup, nil, valueobject.Rust, profile.Items, metrics)

	_, err := splitter.Process(context.Background(),
		valueobject.NewSourceBuffer([]byte(splitRustSource)), categories)
	require.NoError(t, err)

	collected := collectMetrics(t, reader)
	items := sumByAttribute(t, collected[EngineItemsCounterName], AttrItemClass)
	assert.Equal(t, map[string]int64{"clean": 2, "unsafe": 1}, items)

	regions := sumByAttribute(t, collected[EngineMarkupRegionsCounter], AttrCategory)
	assert.Equal(t, int64(2), regions["unsafe"])
	assert.Equal(t, int64(3), regions["lifetime"])
}

func TestEngineMetrics_NilIsSafe(t *testing.T) {
	var metrics *EngineMetrics
	assert.NotPanics(t, func() {
		metrics.recordExtraction(context.Background(), "rust", extractionOutcomeMatched, 1)
		metrics.recordRewrite(context.Background(), "rust", 1, 2)
		metrics.recordMarkupRegion(context.Background(), "unsafe")
		metrics.recordItem(context.Background(), ItemClassClean)
	})
}
