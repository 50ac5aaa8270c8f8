package lexicon

import (
	"context"
	"errors"
)

// ErrNotFound is returned by [Store] implementations when a lexicon ID is
// unknown.
var ErrNotFound = errors.New("lexicon not found")

// Store supplies lexicon metadata and active term maps to the
// post-processing pipeline. Implementations must be safe for concurrent
// use; the pipeline treats a Store as a pure data source and performs no
// writes through it.
type Store interface {
	// Lexicon returns the metadata record for id, or [ErrNotFound].
	Lexicon(ctx context.Context, id string) (Lexicon, error)

	// Terms returns the active term→replacement pairs of lexicon id.
	// A known lexicon with no active terms returns an empty, non-nil map.
	Terms(ctx context.Context, id string) (TermMap, error)
}

// Invalidator is implemented by stores that cache term maps. The lexicon
// administration path calls Invalidate after every successful write so
// subsequent correction calls observe the update. Invalidation is
// last-writer-wins: a correction call already in flight with a stale map
// is an accepted eventual-consistency window, reviewable via the feedback
// workflow.
type Invalidator interface {
	Invalidate(lexiconID string)
}
