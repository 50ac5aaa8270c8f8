package cleanup_test

import (
	"context"
	"errors"
	"testing"

	"github.com/parsavox/medscribe/internal/cleanup"
)

type scriptedCleaner struct {
	calls int
	fail  bool
	out   string
}

func (c *scriptedCleaner) Clean(_ context.Context, text string) (string, error) {
	c.calls++
	if c.fail {
		return "", errors.New("unavailable")
	}
	if c.out != "" {
		return c.out, nil
	}
	return text, nil
}

func TestFailoverPrimarySucceeds(t *testing.T) {
	t.Parallel()

	primary := &scriptedCleaner{out: "primary"}
	fallback := &scriptedCleaner{out: "fallback"}
	f := cleanup.NewFailover(
		cleanup.NamedCleaner{Name: "llm", Cleaner: primary},
		[]cleanup.NamedCleaner{{Name: "rules", Cleaner: fallback}})

	got, err := f.Clean(context.Background(), "text")
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if got != "primary" {
		t.Errorf("Clean() = %q, want primary output", got)
	}
	if fallback.calls != 0 {
		t.Errorf("fallback called %d times, want 0", fallback.calls)
	}
}

func TestFailoverFallsBack(t *testing.T) {
	t.Parallel()

	primary := &scriptedCleaner{fail: true}
	fallback := &scriptedCleaner{out: "fallback"}
	f := cleanup.NewFailover(
		cleanup.NamedCleaner{Name: "llm", Cleaner: primary},
		[]cleanup.NamedCleaner{{Name: "rules", Cleaner: fallback}})

	got, err := f.Clean(context.Background(), "text")
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if got != "fallback" {
		t.Errorf("Clean() = %q, want fallback output", got)
	}
}

func TestFailoverAllFail(t *testing.T) {
	t.Parallel()

	f := cleanup.NewFailover(
		cleanup.NamedCleaner{Name: "llm", Cleaner: &scriptedCleaner{fail: true}},
		[]cleanup.NamedCleaner{{Name: "rules", Cleaner: &scriptedCleaner{fail: true}}})

	_, err := f.Clean(context.Background(), "text")
	if !errors.Is(err, cleanup.ErrAllCleanersFailed) {
		t.Errorf("Clean() error = %v, want ErrAllCleanersFailed", err)
	}
}

func TestFailoverBreakerBypassesFailingPrimary(t *testing.T) {
	t.Parallel()

	primary := &scriptedCleaner{fail: true}
	fallback := &scriptedCleaner{}
	f := cleanup.NewFailover(
		cleanup.NamedCleaner{Name: "llm", Cleaner: primary},
		[]cleanup.NamedCleaner{{Name: "rules", Cleaner: fallback}})

	ctx := context.Background()
	for range 10 {
		if _, err := f.Clean(ctx, "text"); err != nil {
			t.Fatalf("Clean() error = %v", err)
		}
	}

	// The breaker opens after the consecutive-failure threshold; later
	// calls must stop reaching the primary.
	if primary.calls >= 10 {
		t.Errorf("primary called %d times, breaker never opened", primary.calls)
	}
	if fallback.calls != 10 {
		t.Errorf("fallback called %d times, want 10", fallback.calls)
	}
}
