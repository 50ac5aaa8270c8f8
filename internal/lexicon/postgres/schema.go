// Package postgres provides the PostgreSQL-backed lexicon store. It serves
// reads for the correction pipeline ([lexicon.Store]), full-record reads for
// validation ([lexicon.TermReader]), and writes for lexicon administration
// ([lexicon.Writer]), all on a single shared [pgxpool.Pool].
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	terms, _ := store.Terms(ctx, "radiology")
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlLexicons = `
CREATE TABLE IF NOT EXISTS lexicons (
    id               TEXT         PRIMARY KEY,
    name             TEXT         NOT NULL,
    numeral_strategy TEXT         NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at       TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

const ddlLexiconTerms = `
CREATE TABLE IF NOT EXISTS lexicon_terms (
    id              TEXT         PRIMARY KEY DEFAULT gen_random_uuid()::text,
    lexicon_id      TEXT         NOT NULL REFERENCES lexicons (id),
    term            TEXT         NOT NULL,
    normalized_term TEXT         NOT NULL,
    replacement     TEXT         NOT NULL,
    active          BOOLEAN      NOT NULL DEFAULT TRUE,
    created_at      TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_lexicon_terms_lexicon_id
    ON lexicon_terms (lexicon_id);

CREATE UNIQUE INDEX IF NOT EXISTS uq_lexicon_terms_active_normalized
    ON lexicon_terms (lexicon_id, normalized_term)
    WHERE active;
`

// Migrate creates or ensures all required tables and indexes exist. It is
// idempotent and safe to call on every application start.
//
// The partial unique index on (lexicon_id, normalized_term) WHERE active is
// the storage-level backstop for the validator's uniqueness rule: inactive
// rows are kept for audit and do not block re-adding a term.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		ddlLexicons,
		ddlLexiconTerms,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
