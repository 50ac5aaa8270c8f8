package lexicon

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/parsavox/medscribe/internal/observe"
)

// TermReader loads the full active term records of a lexicon. Unlike
// [Store.Terms] it preserves storage identity, which validation needs to
// exclude the entry being updated from uniqueness checks.
type TermReader interface {
	ActiveTerms(ctx context.Context, lexiconID string) ([]Term, error)
}

// Writer persists lexicon mutations. Implementations live in storage
// backends such as the postgres package.
type Writer interface {
	SaveLexicon(ctx context.Context, lex Lexicon) error
	SaveTerm(ctx context.Context, term Term) (Term, error)
	DeactivateTerm(ctx context.Context, lexiconID, termID string) error
}

// Admin validates and applies lexicon mutations. Every write goes through
// the validator first; rejected writes never reach the store. Accepted
// writes invalidate the read cache so pipelines pick up changes.
type Admin struct {
	reader    TermReader
	writer    Writer
	validator *Validator
	inval     Invalidator
	metrics   *observe.Metrics
	logger    *slog.Logger
}

// AdminOption configures an Admin.
type AdminOption func(*Admin)

// WithAdminValidator overrides the default validator.
func WithAdminValidator(v *Validator) AdminOption {
	return func(a *Admin) {
		if v != nil {
			a.validator = v
		}
	}
}

// WithAdminInvalidator registers a cache to invalidate after writes.
func WithAdminInvalidator(inv Invalidator) AdminOption {
	return func(a *Admin) { a.inval = inv }
}

// WithAdminMetrics sets the metrics sink for validation rejections.
func WithAdminMetrics(m *observe.Metrics) AdminOption {
	return func(a *Admin) {
		if m != nil {
			a.metrics = m
		}
	}
}

// WithAdminLogger sets the admin logger.
func WithAdminLogger(logger *slog.Logger) AdminOption {
	return func(a *Admin) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAdmin builds an Admin reading existing terms from reader and writing
// through writer.
func NewAdmin(reader TermReader, writer Writer, opts ...AdminOption) *Admin {
	a := &Admin{
		reader:    reader,
		writer:    writer,
		validator: NewValidator(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AddTerm validates cand against the lexicon's active terms and persists
// it when validation passes. The returned Result always carries the
// validation outcome, including warnings on success.
func (a *Admin) AddTerm(ctx context.Context, lexiconID string, cand Candidate) (Term, Result, error) {
	existing, err := a.existingTerms(ctx, lexiconID)
	if err != nil {
		return Term{}, Result{}, err
	}

	res := a.validator.Validate(lexiconID, cand, existing)
	if !res.Valid() {
		a.recordRejections(ctx, res)
		return Term{}, res, nil
	}
	for _, w := range res.Warnings {
		a.logger.InfoContext(ctx, "lexicon term accepted with warning",
			"lexicon_id", lexiconID, "term", cand.Term, "code", w.Code)
	}

	saved, err := a.writer.SaveTerm(ctx, Term{
		ID:          cand.ExcludeID,
		LexiconID:   lexiconID,
		Term:        cand.Term,
		Normalized:  Normalize(cand.Term),
		Replacement: cand.Replacement,
		Active:      true,
	})
	if err != nil {
		return Term{}, res, fmt.Errorf("lexicon: save term: %w", err)
	}
	a.invalidate(lexiconID)
	return saved, res, nil
}

// AddTerms validates a batch as a unit and persists only when every
// candidate passes. Results are positional, one per candidate.
func (a *Admin) AddTerms(ctx context.Context, lexiconID string, cands []Candidate) ([]Term, []Result, error) {
	existing, err := a.existingTerms(ctx, lexiconID)
	if err != nil {
		return nil, nil, err
	}

	results := a.validator.ValidateBatch(lexiconID, cands, existing)
	ok := true
	for _, res := range results {
		if !res.Valid() {
			a.recordRejections(ctx, res)
			ok = false
		}
	}
	if !ok {
		return nil, results, nil
	}

	saved := make([]Term, 0, len(cands))
	for _, cand := range cands {
		term, err := a.writer.SaveTerm(ctx, Term{
			ID:          cand.ExcludeID,
			LexiconID:   lexiconID,
			Term:        cand.Term,
			Normalized:  Normalize(cand.Term),
			Replacement: cand.Replacement,
			Active:      true,
		})
		if err != nil {
			a.invalidate(lexiconID)
			return saved, results, fmt.Errorf("lexicon: save term %q: %w", cand.Term, err)
		}
		saved = append(saved, term)
	}
	a.invalidate(lexiconID)
	return saved, results, nil
}

// RemoveTerm deactivates a term. Deactivated terms stop matching and stop
// participating in validation.
func (a *Admin) RemoveTerm(ctx context.Context, lexiconID, termID string) error {
	if err := a.writer.DeactivateTerm(ctx, lexiconID, termID); err != nil {
		return fmt.Errorf("lexicon: deactivate term: %w", err)
	}
	a.invalidate(lexiconID)
	return nil
}

// SaveLexicon creates or updates lexicon metadata.
func (a *Admin) SaveLexicon(ctx context.Context, lex Lexicon) error {
	if lex.ID == "" {
		return fmt.Errorf("lexicon: lexicon id is required")
	}
	if err := a.writer.SaveLexicon(ctx, lex); err != nil {
		return fmt.Errorf("lexicon: save lexicon: %w", err)
	}
	a.invalidate(lex.ID)
	return nil
}

func (a *Admin) existingTerms(ctx context.Context, lexiconID string) ([]Term, error) {
	terms, err := a.reader.ActiveTerms(ctx, lexiconID)
	if err != nil {
		return nil, fmt.Errorf("lexicon: load terms for validation: %w", err)
	}
	return terms, nil
}

func (a *Admin) invalidate(lexiconID string) {
	if a.inval != nil {
		a.inval.Invalidate(lexiconID)
	}
}

func (a *Admin) recordRejections(ctx context.Context, res Result) {
	if a.metrics == nil {
		return
	}
	for _, iss := range res.Errors {
		a.metrics.RecordValidationRejection(ctx, string(iss.Code))
	}
}
