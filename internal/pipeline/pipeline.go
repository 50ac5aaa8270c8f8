// Package pipeline assembles the transcript post-processing pipeline:
// lexicon term correction, numeral normalization, and text cleanup, applied
// in that order to raw speech-to-text output.
//
// Stages are isolated: a failing stage is recorded and skipped, and the
// text carries forward from the last successful stage. A transcript is
// never lost to a stage fault — the degenerate outcome of a fully failing
// pipeline is the input text unchanged.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/parsavox/medscribe/internal/correct"
	"github.com/parsavox/medscribe/internal/lexicon"
	"github.com/parsavox/medscribe/internal/numeral"
	"github.com/parsavox/medscribe/internal/observe"
)

// Stage names a pipeline stage in results, logs, and metrics.
type Stage string

const (
	StageTermCorrection       Stage = "term_correction"
	StageNumeralNormalization Stage = "numeral_normalization"
	StageTextCleanup          Stage = "text_cleanup"
)

// StageResult records the outcome of one stage for one transcript.
type StageResult struct {
	// Stage identifies the stage this result belongs to.
	Stage Stage

	// Applied reports whether the stage ran and its output was used.
	// A skipped (disabled) or failed stage has Applied false.
	Applied bool

	// Err is the stage failure, nil when the stage succeeded or was
	// skipped because it is disabled.
	Err error

	// Duration is how long the stage ran.
	Duration time.Duration
}

// Result is the outcome of processing one transcript.
type Result struct {
	// Input is the raw transcript text as received.
	Input string

	// Text is the fully processed text. When every stage fails this
	// equals Input.
	Text string

	// Replacements itemizes the substitutions made by term correction,
	// in application order. Empty and non-nil when the stage ran clean
	// with nothing to replace; nil when the stage did not run.
	Replacements []correct.Replacement

	// Stages holds one entry per configured stage, in execution order.
	Stages []StageResult
}

// Failed reports whether any stage recorded an error.
func (r Result) Failed() bool {
	for _, s := range r.Stages {
		if s.Err != nil {
			return true
		}
	}
	return false
}

// Cleaner is the text cleanup stage contract. Implementations live in the
// cleanup package; they must be safe for concurrent use.
type Cleaner interface {
	Clean(ctx context.Context, text string) (string, error)
}

// Config carries the per-call processing parameters.
type Config struct {
	// LexiconID selects the term lexicon. Empty disables term correction
	// for this call.
	LexiconID string

	// EnableFuzzyMatching turns on the fuzzy substitution pass of term
	// correction.
	EnableFuzzyMatching bool

	// FuzzyMatchThreshold is the minimum similarity (0–100) for a fuzzy
	// substitution. Zero means the engine default.
	FuzzyMatchThreshold int

	// NumeralStrategy is the caller's numeral strategy. The lexicon's
	// configured strategy, when set, overrides it.
	NumeralStrategy numeral.Strategy
}

// Pipeline is the post-processing pipeline. It is immutable after
// construction and safe for concurrent use; per-call variation comes in
// through [Config].
type Pipeline struct {
	store   lexicon.Store
	cleaner Cleaner
	metrics *observe.Metrics
	logger  *slog.Logger

	defaultStrategy numeral.Strategy
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithCleaner enables the text cleanup stage.
func WithCleaner(c Cleaner) Option {
	return func(p *Pipeline) { p.cleaner = c }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithDefaultNumeralStrategy sets the strategy used when a call's Config
// leaves NumeralStrategy empty.
func WithDefaultNumeralStrategy(s numeral.Strategy) Option {
	return func(p *Pipeline) {
		if s.IsValid() {
			p.defaultStrategy = s
		}
	}
}

// New builds a Pipeline reading lexicons from store. store may be nil when
// term correction is never used.
func New(store lexicon.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:           store,
		logger:          slog.Default(),
		defaultStrategy: numeral.StrategyContextAware,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs the configured stages over text and returns the combined
// result. The returned error is non-nil only for invalid configuration;
// stage faults are carried in [Result.Stages] instead.
func (p *Pipeline) Process(ctx context.Context, text string, cfg Config) (Result, error) {
	strategy := cfg.NumeralStrategy
	if strategy == "" {
		strategy = p.defaultStrategy
	}
	if !strategy.IsValid() {
		return Result{}, fmt.Errorf("pipeline: %q: %w", strategy, numeral.ErrUnknownStrategy)
	}

	ctx, span := observe.StartSpan(ctx, "pipeline.process")
	defer span.End()

	res := Result{Input: text, Text: text}
	start := time.Now()

	var lex lexicon.Lexicon
	if cfg.LexiconID != "" {
		lex = p.correctTerms(ctx, &res, cfg)
	}

	strategy = p.resolveStrategy(ctx, strategy, lex)
	p.normalizeNumerals(ctx, &res, strategy)

	if p.cleaner != nil {
		p.cleanText(ctx, &res)
	}

	if p.metrics != nil {
		p.metrics.PipelineDuration.Record(ctx, time.Since(start).Seconds())
	}
	return res, nil
}

// correctTerms runs the term correction stage and returns the lexicon
// metadata for downstream strategy resolution. A store or engine fault
// leaves the text untouched and records the failure.
func (p *Pipeline) correctTerms(ctx context.Context, res *Result, cfg Config) lexicon.Lexicon {
	ctx, span := observe.StartSpan(ctx, "pipeline.term_correction")
	defer span.End()

	sr := StageResult{Stage: StageTermCorrection}
	start := time.Now()
	defer func() {
		sr.Duration = time.Since(start)
		p.finishStage(ctx, res, sr)
	}()

	lex, err := p.store.Lexicon(ctx, cfg.LexiconID)
	if err != nil {
		sr.Err = fmt.Errorf("load lexicon %q: %w", cfg.LexiconID, err)
		return lexicon.Lexicon{}
	}
	terms, err := p.store.Terms(ctx, cfg.LexiconID)
	if err != nil {
		sr.Err = fmt.Errorf("load terms %q: %w", cfg.LexiconID, err)
		return lex
	}

	corrected, matches, err := correct.Correct(res.Text, terms, correct.Options{
		FuzzyEnabled:   cfg.EnableFuzzyMatching,
		FuzzyThreshold: cfg.FuzzyMatchThreshold,
	})
	if err != nil {
		sr.Err = fmt.Errorf("correct: %w", err)
		return lex
	}

	if matches == nil {
		matches = []correct.Replacement{}
	}
	res.Text = corrected
	res.Replacements = matches
	sr.Applied = true

	if p.metrics != nil {
		var exact, fuzzy int64
		for _, m := range matches {
			if m.Kind == correct.MatchFuzzy {
				fuzzy++
			} else {
				exact++
			}
		}
		p.metrics.RecordReplacements(ctx, cfg.LexiconID, "exact", exact)
		p.metrics.RecordReplacements(ctx, cfg.LexiconID, "fuzzy", fuzzy)
	}
	return lex
}

// resolveStrategy applies the lexicon's numeral strategy override. An
// invalid override is logged and ignored rather than failing the call.
func (p *Pipeline) resolveStrategy(ctx context.Context, def numeral.Strategy, lex lexicon.Lexicon) numeral.Strategy {
	resolved, err := numeral.Resolve(def, lex.NumeralStrategy)
	if err != nil {
		p.logger.WarnContext(ctx, "ignoring invalid lexicon numeral strategy",
			"lexicon_id", lex.ID, "strategy", lex.NumeralStrategy, "error", err)
		return def
	}
	return resolved
}

func (p *Pipeline) normalizeNumerals(ctx context.Context, res *Result, strategy numeral.Strategy) {
	ctx, span := observe.StartSpan(ctx, "pipeline.numeral_normalization")
	defer span.End()

	sr := StageResult{Stage: StageNumeralNormalization}
	start := time.Now()

	normalized, err := numeral.Normalize(res.Text, strategy)
	if err != nil {
		sr.Err = fmt.Errorf("normalize: %w", err)
	} else {
		res.Text = normalized
		sr.Applied = true
	}

	sr.Duration = time.Since(start)
	p.finishStage(ctx, res, sr)
}

func (p *Pipeline) cleanText(ctx context.Context, res *Result) {
	ctx, span := observe.StartSpan(ctx, "pipeline.text_cleanup")
	defer span.End()

	sr := StageResult{Stage: StageTextCleanup}
	start := time.Now()

	cleaned, err := p.cleaner.Clean(ctx, res.Text)
	if err != nil {
		sr.Err = fmt.Errorf("clean: %w", err)
	} else {
		res.Text = cleaned
		sr.Applied = true
	}

	sr.Duration = time.Since(start)
	p.finishStage(ctx, res, sr)
}

func (p *Pipeline) finishStage(ctx context.Context, res *Result, sr StageResult) {
	res.Stages = append(res.Stages, sr)

	if sr.Err != nil {
		p.logger.WarnContext(ctx, "pipeline stage failed, continuing with previous text",
			"stage", string(sr.Stage), "error", sr.Err)
	}
	if p.metrics != nil {
		p.metrics.RecordStageDuration(ctx, string(sr.Stage), sr.Duration.Seconds())
		if sr.Err != nil {
			p.metrics.RecordStageFailure(ctx, string(sr.Stage))
		}
	}
}
