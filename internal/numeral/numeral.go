// Package numeral rewrites digit glyphs in mixed Persian/Latin transcript
// text according to a configurable strategy.
//
// Persian clinical dictation mixes Persian digits (۰–۹) in running prose
// with Western digits in medical codes: vertebral levels ("L4-L5"),
// dosages ("500mg"), and alphanumeric codes ("B12"). The context-aware
// strategy keeps those codes parseable by forcing them to Western digits
// while converting everything else to Persian digits.
//
// All functions are pure and safe for concurrent use.
package numeral

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Strategy selects how digits are rewritten by [Normalize].
type Strategy string

const (
	// StrategyEnglish replaces every Persian digit with its Western form.
	StrategyEnglish Strategy = "english"

	// StrategyPersian replaces every Western digit with its Persian form.
	StrategyPersian Strategy = "persian"

	// StrategyPreserve leaves the text unchanged.
	StrategyPreserve Strategy = "preserve"

	// StrategyContextAware converts prose digits to Persian while forcing
	// protected medical-code spans to Western digits.
	StrategyContextAware Strategy = "context_aware"
)

// IsValid reports whether s is a recognised strategy.
func (s Strategy) IsValid() bool {
	switch s {
	case StrategyEnglish, StrategyPersian, StrategyPreserve, StrategyContextAware:
		return true
	}
	return false
}

// ErrUnknownStrategy is returned when a strategy name is not recognised.
// This is a configuration error, distinct from processing failures: the
// caller supplied a bad strategy name, not bad text.
var ErrUnknownStrategy = errors.New("unknown numeral strategy")

// Resolve picks the effective strategy for one normalization call.
// A non-empty per-lexicon override takes precedence over the
// caller-supplied default. An unrecognised name in either position is
// reported, never silently defaulted.
func Resolve(def Strategy, override string) (Strategy, error) {
	if override != "" {
		s := Strategy(override)
		if !s.IsValid() {
			return "", fmt.Errorf("%w: %q (lexicon override)", ErrUnknownStrategy, override)
		}
		return s, nil
	}
	if !def.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, def)
	}
	return def, nil
}

// ProtectedSpan is a half-open byte range of the input identified as a
// medical code or measurement. Spans are produced transiently during
// context-aware normalization; they are exported for debug logging only.
type ProtectedSpan struct {
	Start int
	End   int
	Text  string
}

// digit glyph tables. Index i maps digit value i.
var (
	persianDigits = [10]rune{'۰', '۱', '۲', '۳', '۴', '۵', '۶', '۷', '۸', '۹'}
	westernDigits = [10]rune{'0', '1', '2', '3', '4', '5', '6', '7', '8', '9'}
)

// Protected-span patterns in priority order. All digit positions accept
// both Western and Persian glyphs so that a Persian-digit vertebral code
// is still recognised (and then forced to Western).
//
// Order matters twice: earlier patterns win overlap ties, and the
// vertebral pattern must outrank the generic code pattern so that ranges
// like "L4-L5" are captured whole.
var protectedPatterns = []*regexp.Regexp{
	// Vertebral/spinal level, optionally a range: T12, l4-l5, C۳.
	regexp.MustCompile(`(?i)[TLCS][0-9۰-۹]+(?:-[TLCS][0-9۰-۹]+)?`),
	// Measurement immediately followed by a unit: 500mg, 2.5cm, ۷۵kg.
	regexp.MustCompile(`(?i)[0-9۰-۹]+(?:\.[0-9۰-۹]+)?(?:mg|kg|ml|cm|mm|g|l|m)`),
	// Alphanumeric code: B12, a1.5.
	regexp.MustCompile(`(?i)[A-Z][0-9۰-۹]+(?:\.[0-9۰-۹]+)?`),
}

// Normalize rewrites digit glyphs in text according to strategy.
// Non-digit content is preserved verbatim under every strategy.
// An unrecognised strategy returns the input unchanged along with
// [ErrUnknownStrategy]. Any unexpected internal failure is recovered
// and returned as an error with the input unchanged, so a caller can
// always keep the pre-normalization transcript.
func Normalize(text string, strategy Strategy) (normalized string, err error) {
	defer func() {
		if r := recover(); r != nil {
			normalized = text
			err = fmt.Errorf("numeral: internal failure: %v", r)
		}
	}()

	switch strategy {
	case StrategyPreserve:
		return text, nil
	case StrategyEnglish:
		return toWestern(text), nil
	case StrategyPersian:
		return toPersian(text), nil
	case StrategyContextAware:
		return normalizeContextAware(text), nil
	default:
		return text, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}

// ProtectedSpans scans text for medical-code spans using the fixed
// pattern set. Overlapping candidates are resolved by earliest start,
// then by pattern priority.
func ProtectedSpans(text string) []ProtectedSpan {
	type candidate struct {
		span     ProtectedSpan
		priority int
	}

	var candidates []candidate
	for prio, re := range protectedPatterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			start, end := loc[0], loc[1]
			if !codeBoundaries(text, start, end) {
				continue
			}
			candidates = append(candidates, candidate{
				span:     ProtectedSpan{Start: start, End: end, Text: text[start:end]},
				priority: prio,
			})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].span.Start != candidates[j].span.Start {
			return candidates[i].span.Start < candidates[j].span.Start
		}
		return candidates[i].priority < candidates[j].priority
	})

	var spans []ProtectedSpan
	lastEnd := -1
	for _, c := range candidates {
		if c.span.Start < lastEnd {
			continue
		}
		spans = append(spans, c.span)
		lastEnd = c.span.End
	}
	return spans
}

// codeBoundaries reports whether the match at [start,end) stands on its
// own: not preceded or followed by a letter or digit. Without this,
// "hb12" would yield a protected "b12" and "5mla" a protected "5ml".
func codeBoundaries(text string, start, end int) bool {
	if start > 0 {
		r := lastRune(text[:start])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	if end < len(text) {
		r := firstRune(text[end:])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}

func lastRune(s string) rune {
	var last rune
	for _, r := range s {
		last = r
	}
	return last
}

// normalizeContextAware applies the context-aware strategy: protected
// spans are forced to Western digits, everything else becomes Persian.
// The output is assembled in a single left-to-right pass so that a span
// already written is never revisited by the surrounding conversion.
func normalizeContextAware(text string) string {
	spans := ProtectedSpans(text)
	if len(spans) == 0 {
		return toPersian(text)
	}

	var b strings.Builder
	b.Grow(len(text) + len(text)/4)

	cursor := 0
	for _, span := range spans {
		b.WriteString(toPersian(text[cursor:span.Start]))
		b.WriteString(toWestern(span.Text))
		cursor = span.End
	}
	b.WriteString(toPersian(text[cursor:]))
	return b.String()
}

// toWestern replaces Persian digits with Western digits.
func toWestern(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '۰' && r <= '۹' {
			return westernDigits[r-'۰']
		}
		return r
	}, s)
}

// toPersian replaces Western digits with Persian digits.
func toPersian(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return persianDigits[r-'0']
		}
		return r
	}, s)
}
