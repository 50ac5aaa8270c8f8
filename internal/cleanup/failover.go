package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrAllCleanersFailed is returned by [Failover.Clean] when every cleaner
// in the chain fails or is skipped by an open breaker.
var ErrAllCleanersFailed = errors.New("all cleaners failed")

const (
	defaultMaxFailures  = 5
	defaultResetTimeout = 30 * time.Second
)

// breaker is a minimal two-state circuit breaker: after maxFailures
// consecutive failures it rejects calls until resetTimeout elapses, then
// lets one probe through. Safe for concurrent use.
type breaker struct {
	maxFailures  int
	resetTimeout time.Duration

	mu              sync.Mutex
	consecutiveFail int
	lastFailure     time.Time
}

// allow reports whether a call may proceed.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.consecutiveFail < b.maxFailures {
		return true
	}
	return time.Since(b.lastFailure) >= b.resetTimeout
}

func (b *breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		b.consecutiveFail = 0
		return
	}
	b.consecutiveFail++
	b.lastFailure = time.Now()
}

// cleaner pairs a named cleaner with its breaker.
type chainEntry struct {
	name    string
	clean   func(ctx context.Context, text string) (string, error)
	breaker *breaker
}

// Failover chains cleaners: the primary is tried first, and on failure
// (or an open breaker) the next cleaner takes over. A primary that fails
// repeatedly is bypassed entirely until its reset timeout elapses, so a
// down model endpoint does not add a timeout to every transcript.
//
// Failover is safe for concurrent use.
type Failover struct {
	entries []chainEntry
	logger  *slog.Logger
}

// FailoverOption configures a Failover.
type FailoverOption func(*Failover)

// WithFailoverLogger sets the logger used when a cleaner is bypassed.
func WithFailoverLogger(logger *slog.Logger) FailoverOption {
	return func(f *Failover) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFailover chains primary and fallbacks in order. Each cleaner gets
// its own breaker with default thresholds.
func NewFailover(primary NamedCleaner, fallbacks []NamedCleaner, opts ...FailoverOption) *Failover {
	f := &Failover{logger: slog.Default()}
	for _, nc := range append([]NamedCleaner{primary}, fallbacks...) {
		f.entries = append(f.entries, chainEntry{
			name:  nc.Name,
			clean: nc.Cleaner.Clean,
			breaker: &breaker{
				maxFailures:  defaultMaxFailures,
				resetTimeout: defaultResetTimeout,
			},
		})
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NamedCleaner labels a cleaner for failover logs.
type NamedCleaner struct {
	Name    string
	Cleaner interface {
		Clean(ctx context.Context, text string) (string, error)
	}
}

// Clean tries each cleaner in chain order until one succeeds.
func (f *Failover) Clean(ctx context.Context, text string) (string, error) {
	var lastErr error
	for i := range f.entries {
		e := &f.entries[i]
		if !e.breaker.allow() {
			f.logger.DebugContext(ctx, "skipping cleaner, breaker open", "cleaner", e.name)
			continue
		}

		out, err := e.clean(ctx, text)
		e.breaker.record(err)
		if err == nil {
			return out, nil
		}
		lastErr = err
		f.logger.WarnContext(ctx, "cleaner failed, trying next", "cleaner", e.name, "error", err)
	}

	if lastErr != nil {
		return "", fmt.Errorf("%w: %w", ErrAllCleanersFailed, lastErr)
	}
	return "", ErrAllCleanersFailed
}
