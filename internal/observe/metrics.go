// Package observe provides application-wide observability primitives for
// medscribe: OpenTelemetry metrics, tracing, and trace-enriched logging.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still
// be scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all medscribe metrics.
const meterName = "github.com/parsavox/medscribe"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// StageDuration tracks post-processing stage latency. Use with
	// attribute.String("stage", ...).
	StageDuration metric.Float64Histogram

	// PipelineDuration tracks full post-processing pipeline latency per
	// transcript.
	PipelineDuration metric.Float64Histogram

	// TermReplacements counts substitutions applied to transcripts. Use
	// with attributes:
	//   attribute.String("lexicon_id", ...), attribute.String("method", "exact"|"fuzzy")
	TermReplacements metric.Int64Counter

	// StageFailures counts stage executions that fell back to their input
	// text. Use with attribute.String("stage", ...).
	StageFailures metric.Int64Counter

	// ValidationRejections counts lexicon candidates rejected by the
	// validator. Use with attribute.String("issue", ...).
	ValidationRejections metric.Int64Counter

	// LexiconCacheHits and LexiconCacheMisses count term-map cache
	// lookups, with attribute.String("lexicon_id", ...).
	LexiconCacheHits   metric.Int64Counter
	LexiconCacheMisses metric.Int64Counter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized
// for in-process text rewriting, which completes in milliseconds even on
// long transcripts.
var latencyBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("medscribe.postprocess.stage.duration",
		metric.WithDescription("Latency of one post-processing stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PipelineDuration, err = m.Float64Histogram("medscribe.postprocess.pipeline.duration",
		metric.WithDescription("Latency of the full post-processing pipeline per transcript."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TermReplacements, err = m.Int64Counter("medscribe.correction.replacements",
		metric.WithDescription("Total term substitutions by lexicon and match method."),
	); err != nil {
		return nil, err
	}
	if met.StageFailures, err = m.Int64Counter("medscribe.postprocess.stage.failures",
		metric.WithDescription("Total stage executions that fell back to their input text."),
	); err != nil {
		return nil, err
	}
	if met.ValidationRejections, err = m.Int64Counter("medscribe.lexicon.validation.rejections",
		metric.WithDescription("Total lexicon candidates rejected by the validator, by issue code."),
	); err != nil {
		return nil, err
	}
	if met.LexiconCacheHits, err = m.Int64Counter("medscribe.lexicon.cache.hits",
		metric.WithDescription("Term-map cache hits by lexicon."),
	); err != nil {
		return nil, err
	}
	if met.LexiconCacheMisses, err = m.Int64Counter("medscribe.lexicon.cache.misses",
		metric.WithDescription("Term-map cache misses by lexicon."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordStageDuration records one stage execution's latency in seconds.
func (m *Metrics) RecordStageDuration(ctx context.Context, stage string, seconds float64) {
	m.StageDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordReplacements records n substitutions for a lexicon and method.
func (m *Metrics) RecordReplacements(ctx context.Context, lexiconID, method string, n int64) {
	if n == 0 {
		return
	}
	m.TermReplacements.Add(ctx, n,
		metric.WithAttributes(
			attribute.String("lexicon_id", lexiconID),
			attribute.String("method", method),
		),
	)
}

// RecordStageFailure records one stage falling back to its input text.
func (m *Metrics) RecordStageFailure(ctx context.Context, stage string) {
	m.StageFailures.Add(ctx, 1,
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordValidationRejection records one rejected lexicon candidate.
func (m *Metrics) RecordValidationRejection(ctx context.Context, issue string) {
	m.ValidationRejections.Add(ctx, 1,
		metric.WithAttributes(attribute.String("issue", issue)),
	)
}

// RecordCacheLookup records a term-map cache hit or miss.
func (m *Metrics) RecordCacheLookup(ctx context.Context, lexiconID string, hit bool) {
	counter := m.LexiconCacheMisses
	if hit {
		counter = m.LexiconCacheHits
	}
	counter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("lexicon_id", lexiconID)),
	)
}
