package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parsavox/medscribe/internal/lexicon"
)

// Compile-time interface checks.
var (
	_ lexicon.Store      = (*Store)(nil)
	_ lexicon.TermReader = (*Store)(nil)
	_ lexicon.Writer     = (*Store)(nil)
)

// Store is the PostgreSQL-backed lexicon store. It holds a single
// [pgxpool.Pool]; all operations are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore establishes a connection pool to the database at dsn and runs
// [Migrate] to ensure the lexicon tables exist.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Lexicon implements [lexicon.Store].
func (s *Store) Lexicon(ctx context.Context, id string) (lexicon.Lexicon, error) {
	const q = `
		SELECT id, name, numeral_strategy
		FROM   lexicons
		WHERE  id = $1`

	var lex lexicon.Lexicon
	err := s.pool.QueryRow(ctx, q, id).Scan(&lex.ID, &lex.Name, &lex.NumeralStrategy)
	if errors.Is(err, pgx.ErrNoRows) {
		return lexicon.Lexicon{}, fmt.Errorf("postgres store: lexicon %q: %w", id, lexicon.ErrNotFound)
	}
	if err != nil {
		return lexicon.Lexicon{}, fmt.Errorf("postgres store: get lexicon: %w", err)
	}
	return lex, nil
}

// Terms implements [lexicon.Store]. Unknown lexicons return
// [lexicon.ErrNotFound]; a known lexicon with no active terms returns an
// empty, non-nil map.
func (s *Store) Terms(ctx context.Context, id string) (lexicon.TermMap, error) {
	if _, err := s.Lexicon(ctx, id); err != nil {
		return nil, err
	}

	const q = `
		SELECT term, replacement
		FROM   lexicon_terms
		WHERE  lexicon_id = $1
		  AND  active
		ORDER  BY normalized_term`

	rows, err := s.pool.Query(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("postgres store: get terms: %w", err)
	}

	terms, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (lexicon.Entry, error) {
		var e lexicon.Entry
		err := row.Scan(&e.Term, &e.Replacement)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan terms: %w", err)
	}
	if terms == nil {
		terms = lexicon.TermMap{}
	}
	return terms, nil
}

// ActiveTerms implements [lexicon.TermReader].
func (s *Store) ActiveTerms(ctx context.Context, lexiconID string) ([]lexicon.Term, error) {
	const q = `
		SELECT id, lexicon_id, term, normalized_term, replacement, active
		FROM   lexicon_terms
		WHERE  lexicon_id = $1
		  AND  active
		ORDER  BY normalized_term`

	rows, err := s.pool.Query(ctx, q, lexiconID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: get active terms: %w", err)
	}

	terms, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (lexicon.Term, error) {
		var t lexicon.Term
		err := row.Scan(&t.ID, &t.LexiconID, &t.Term, &t.Normalized, &t.Replacement, &t.Active)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan active terms: %w", err)
	}
	return terms, nil
}

// SaveLexicon implements [lexicon.Writer]. It upserts the metadata record.
func (s *Store) SaveLexicon(ctx context.Context, lex lexicon.Lexicon) error {
	const q = `
		INSERT INTO lexicons (id, name, numeral_strategy)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    numeral_strategy = EXCLUDED.numeral_strategy,
		    updated_at = now()`

	if _, err := s.pool.Exec(ctx, q, lex.ID, lex.Name, lex.NumeralStrategy); err != nil {
		return fmt.Errorf("postgres store: save lexicon: %w", err)
	}
	return nil
}

// SaveTerm implements [lexicon.Writer]. An empty term ID inserts a new row
// with a generated ID; a non-empty ID updates the existing row.
func (s *Store) SaveTerm(ctx context.Context, term lexicon.Term) (lexicon.Term, error) {
	if term.ID == "" {
		const q = `
			INSERT INTO lexicon_terms (lexicon_id, term, normalized_term, replacement, active)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`

		err := s.pool.QueryRow(ctx, q,
			term.LexiconID, term.Term, term.Normalized, term.Replacement, term.Active,
		).Scan(&term.ID)
		if err != nil {
			return lexicon.Term{}, fmt.Errorf("postgres store: insert term: %w", err)
		}
		return term, nil
	}

	const q = `
		UPDATE lexicon_terms
		SET    term = $3,
		       normalized_term = $4,
		       replacement = $5,
		       active = $6,
		       updated_at = now()
		WHERE  id = $1
		  AND  lexicon_id = $2`

	tag, err := s.pool.Exec(ctx, q,
		term.ID, term.LexiconID, term.Term, term.Normalized, term.Replacement, term.Active)
	if err != nil {
		return lexicon.Term{}, fmt.Errorf("postgres store: update term: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return lexicon.Term{}, fmt.Errorf("postgres store: term %q: %w", term.ID, lexicon.ErrNotFound)
	}
	return term, nil
}

// DeactivateTerm implements [lexicon.Writer]. Rows are kept for audit.
func (s *Store) DeactivateTerm(ctx context.Context, lexiconID, termID string) error {
	const q = `
		UPDATE lexicon_terms
		SET    active = FALSE,
		       updated_at = now()
		WHERE  id = $1
		  AND  lexicon_id = $2`

	tag, err := s.pool.Exec(ctx, q, termID, lexiconID)
	if err != nil {
		return fmt.Errorf("postgres store: deactivate term: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres store: term %q: %w", termID, lexicon.ErrNotFound)
	}
	return nil
}
