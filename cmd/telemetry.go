package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/trusted-programming/tree-grepper/internal/version"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
)

// telemetry owns the meter provider of one invocation. Without a reader every
// instrument is a no-op.
type telemetry struct {
	provider metric.MeterProvider
	sdk      *sdkmetric.MeterProvider
	reader   *sdkmetric.ManualReader
}

func newTelemetry(enabled bool) *telemetry {
	if !enabled {
		return &telemetry{provider: noop.NewMeterProvider()}
	}

	info := version.Get()
	reader := sdkmetric.NewManualReader()
	sdk := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(resource.NewSchemaless(
			attribute.String("service.name", version.ApplicationName),
			attribute.String("service.version", info.Version),
		)),
	)
	return &telemetry{provider: sdk, sdk: sdk, reader: reader}
}

// report writes one line per collected data point, sorted, then shuts the provider down.
func (t *telemetry) report(ctx context.Context, w io.Writer) error {
	if t.reader == nil {
		return nil
	}
	defer func() { _ = t.sdk.Shutdown(ctx) }()

	var rm metricdata.ResourceMetrics
	if err := t.reader.Collect(ctx, &rm); err != nil {
		return fmt.Errorf("collecting metrics: %w", err)
	}

	lines := metricLines(rm)
	sort.Strings(lines)
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func metricLines(rm metricdata.ResourceMetrics) []string {
	var lines []string
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					lines = append(lines, fmt.Sprintf("%s%s %d", m.Name, formatAttributes(dp.Attributes), dp.Value))
				}
			case metricdata.Histogram[int64]:
				for _, dp := range data.DataPoints {
					lines = append(lines, fmt.Sprintf("%s%s count=%d sum=%d",
						m.Name, formatAttributes(dp.Attributes), dp.Count, dp.Sum))
				}
			}
		}
	}
	return lines
}

func formatAttributes(set attribute.Set) string {
	if set.Len() == 0 {
		return ""
	}
	parts := make([]string, 0, set.Len())
	iter := set.Iter()
	for iter.Next() {
		kv := iter.Attribute()
		parts = append(parts, fmt.Sprintf("%s=%q", kv.Key, kv.Value.Emit()))
	}
	return "{" + strings.Join(parts, ",") + "}"
}
