// Package lexicon defines the data model for domain lexicons — named
// collections of term→replacement pairs used to correct speech-to-text
// output — together with the integrity validator that guards lexicon
// writes and the store/cache layer that serves lexicon reads.
//
// A lexicon (identified by its lexicon ID, e.g. "radiology") maps terms as
// the STT provider tends to produce them to the canonical forms clinicians
// expect. Within one lexicon, at most one active term may share a
// normalized (lowercased, trimmed) form; the [Validator] enforces this
// along with replacement-cycle and overlap checks before a term is
// admitted.
package lexicon

import "strings"

// Term is one entry of a lexicon as persisted by a [Store] implementation.
type Term struct {
	// ID is the storage identity of the entry. Opaque to this package;
	// used only to exclude an entry from uniqueness checks on update.
	ID string

	// LexiconID names the lexicon this term belongs to.
	LexiconID string

	// Term is the original-case text to match in transcripts.
	Term string

	// Normalized is the lowercased, whitespace-trimmed form of Term.
	// Uniqueness within a lexicon is defined over this field.
	Normalized string

	// Replacement is the text substituted for Term.
	Replacement string

	// Active reports whether the entry participates in correction.
	// Inactive entries are retained for audit but never loaded.
	Active bool
}

// Entry is a single (term, replacement) pair as delivered to the
// correction engine. Order within a [TermMap] is not significant; the
// engine imposes its own longest-match-first ordering.
type Entry struct {
	Term        string
	Replacement string
}

// TermMap is the ephemeral collection of active term→replacement pairs
// for one lexicon. It is rebuilt per correction call and never mutated
// in place.
type TermMap []Entry

// Lexicon is the metadata record for one named lexicon.
type Lexicon struct {
	// ID is the lexicon identifier, e.g. "radiology".
	ID string

	// Name is the human-readable display name.
	Name string

	// NumeralStrategy optionally overrides the caller-supplied numeral
	// normalization strategy for transcripts corrected with this lexicon.
	// Empty means no override.
	NumeralStrategy string
}

// Normalize returns the canonical comparison form of a term:
// lowercased and stripped of surrounding whitespace.
func Normalize(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}
