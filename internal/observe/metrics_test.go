package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestRecordStageDuration(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordStageDuration(ctx, "term_correction", 0.002)
	m.RecordStageDuration(ctx, "term_correction", 0.004)

	rm := collect(t, reader)
	metric := findMetric(rm, "medscribe.postprocess.stage.duration")
	if metric == nil {
		t.Fatal("stage duration metric not found")
	}
	hist, ok := metric.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("unexpected data type %T", metric.Data)
	}
	if len(hist.DataPoints) != 1 {
		t.Fatalf("got %d data points, want 1", len(hist.DataPoints))
	}
	if hist.DataPoints[0].Count != 2 {
		t.Errorf("count=%d, want 2", hist.DataPoints[0].Count)
	}
}

func TestRecordReplacements(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordReplacements(ctx, "radiology", "exact", 3)
	m.RecordReplacements(ctx, "radiology", "fuzzy", 1)
	m.RecordReplacements(ctx, "radiology", "exact", 0) // no-op

	rm := collect(t, reader)
	metric := findMetric(rm, "medscribe.correction.replacements")
	if metric == nil {
		t.Fatal("replacements metric not found")
	}
	sum, ok := metric.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type %T", metric.Data)
	}
	if len(sum.DataPoints) != 2 {
		t.Fatalf("got %d data points, want 2 (exact and fuzzy)", len(sum.DataPoints))
	}

	for _, dp := range sum.DataPoints {
		method, _ := dp.Attributes.Value(attribute.Key("method"))
		switch method.AsString() {
		case "exact":
			if dp.Value != 3 {
				t.Errorf("exact=%d, want 3", dp.Value)
			}
		case "fuzzy":
			if dp.Value != 1 {
				t.Errorf("fuzzy=%d, want 1", dp.Value)
			}
		default:
			t.Errorf("unexpected method attribute %q", method.AsString())
		}
	}
}

func TestRecordCacheLookup(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCacheLookup(ctx, "radiology", true)
	m.RecordCacheLookup(ctx, "radiology", true)
	m.RecordCacheLookup(ctx, "radiology", false)

	rm := collect(t, reader)

	hits := findMetric(rm, "medscribe.lexicon.cache.hits")
	if hits == nil {
		t.Fatal("cache hits metric not found")
	}
	if sum := hits.Data.(metricdata.Sum[int64]); sum.DataPoints[0].Value != 2 {
		t.Errorf("hits=%d, want 2", sum.DataPoints[0].Value)
	}

	misses := findMetric(rm, "medscribe.lexicon.cache.misses")
	if misses == nil {
		t.Fatal("cache misses metric not found")
	}
	if sum := misses.Data.(metricdata.Sum[int64]); sum.DataPoints[0].Value != 1 {
		t.Errorf("misses=%d, want 1", sum.DataPoints[0].Value)
	}
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different instances")
	}
}
