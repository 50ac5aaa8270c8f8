// Package correct implements the lexicon-driven term correction engine
// for speech-to-text transcripts.
//
// Raw STT output is rarely right for domain vocabulary — a radiology
// dictation comes back with "ام آر آی" or "mri" where the report needs
// "MRI". The engine rewrites transcript text using a lexicon's
// term→replacement pairs under three rules:
//
//  1. Longest match first: a term that is a substring of another term
//     never shadows the longer, more specific one.
//  2. Word-boundary safety with Unicode-aware classification, so Persian
//     letters count as word characters and "scan" never fires inside
//     "prescanning".
//  3. Case preservation computed from the matched text, not from the
//     lexicon's stored casing.
//
// An optional fuzzy pass (Jaro-Winkler, via github.com/antzucaro/matchr)
// catches near-miss tokens the exact pass left untouched. Exact matches
// always win: the fuzzy pass never revisits text an exact substitution
// already produced.
//
// All functions are pure over their inputs and safe for concurrent use.
package correct

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/antzucaro/matchr"

	"github.com/parsavox/medscribe/internal/lexicon"
)

// MatchKind distinguishes how a substitution was found.
type MatchKind string

const (
	MatchExact MatchKind = "exact"
	MatchFuzzy MatchKind = "fuzzy"
)

// Replacement records one substitution for logging and debugging. Offsets
// are byte positions in the text as it stood when the substitution was
// applied. Replacements are never persisted.
type Replacement struct {
	Start       int
	End         int
	Matched     string
	SourceTerm  string
	Replacement string
	Kind        MatchKind

	// Score is the similarity score in [0,100]. Exact matches score 100.
	Score float64
}

// Options is the per-call configuration value for [Correct]. It is
// constructed once per invocation by the caller; the engine holds no
// state of its own.
type Options struct {
	// FuzzyEnabled turns on the fuzzy pass over unmatched word tokens.
	FuzzyEnabled bool

	// FuzzyThreshold is the minimum similarity score in [0,100] a fuzzy
	// candidate must reach. Values outside the range are clamped.
	FuzzyThreshold int
}

// Correct rewrites text using the lexicon's term map and returns the
// corrected text together with the substitution records.
//
// Malformed entries (empty or whitespace-only terms) are skipped, never
// raised. Any unexpected internal failure is recovered and returned as an
// error with the input text unchanged, so a caller can always fall back
// to the pre-correction transcript.
func Correct(text string, terms lexicon.TermMap, opts Options) (corrected string, matches []Replacement, err error) {
	defer func() {
		if r := recover(); r != nil {
			corrected = text
			matches = nil
			err = fmt.Errorf("correct: internal failure: %v", r)
		}
	}()

	if text == "" || len(terms) == 0 {
		return text, nil, nil
	}

	sorted := sortLongestFirst(terms)
	if len(sorted) == 0 {
		return text, nil, nil
	}

	out, locked, matches := exactPass(text, sorted)

	if opts.FuzzyEnabled {
		out, matches = fuzzyPass(out, locked, sorted, clampThreshold(opts.FuzzyThreshold), matches)
	}

	return out, matches, nil
}

// sortLongestFirst returns the usable entries ordered by term length
// (in runes) descending. Entries with equal length keep their input
// order, which also fixes the fuzzy tie-break order.
func sortLongestFirst(terms lexicon.TermMap) []lexicon.Entry {
	usable := make([]lexicon.Entry, 0, len(terms))
	for _, e := range terms {
		if strings.TrimSpace(e.Term) == "" {
			continue
		}
		usable = append(usable, e)
	}
	sort.SliceStable(usable, func(i, j int) bool {
		return len([]rune(usable[i].Term)) > len([]rune(usable[j].Term))
	})
	return usable
}

// exactPass substitutes every boundary-respecting, case-insensitive
// occurrence of each term, longest term first. It returns the rewritten
// text and a byte-level mask of positions produced by a substitution;
// masked bytes are never re-matched by shorter terms or the fuzzy pass.
func exactPass(text string, sorted []lexicon.Entry) (string, []bool, []Replacement) {
	locked := make([]bool, len(text))
	var matches []Replacement

	for _, entry := range sorted {
		re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(entry.Term))
		if err != nil {
			// QuoteMeta makes this unreachable for well-formed UTF-8;
			// skip defensively rather than fail the transcript.
			continue
		}

		pos := 0
		for pos < len(text) {
			loc := re.FindStringIndex(text[pos:])
			if loc == nil {
				break
			}
			start, end := pos+loc[0], pos+loc[1]

			if !wordBoundary(text, start, end) || anyLocked(locked, start, end) {
				pos = start + 1
				continue
			}

			repl := applyCase(text[start:end], entry.Replacement)
			matches = append(matches, Replacement{
				Start:       start,
				End:         start + len(repl),
				Matched:     text[start:end],
				SourceTerm:  entry.Term,
				Replacement: repl,
				Kind:        MatchExact,
				Score:       100,
			})

			text = text[:start] + repl + text[end:]
			locked = spliceMask(locked, start, end, len(repl))
			pos = start + len(repl)
		}
	}

	return text, locked, matches
}

// fuzzyPass rebuilds text token by token, replacing word tokens that the
// exact pass did not touch when their best Jaro-Winkler score against any
// term reaches the threshold. Ties at equal score resolve to the first
// candidate in the longest-first term order.
func fuzzyPass(text string, locked []bool, sorted []lexicon.Entry, threshold int, matches []Replacement) (string, []Replacement) {
	var b strings.Builder
	b.Grow(len(text))

	for _, tok := range tokenize(text) {
		if !tok.word || anyLocked(locked, tok.start, tok.end) {
			b.WriteString(text[tok.start:tok.end])
			continue
		}

		entry, score, ok := bestFuzzy(text[tok.start:tok.end], sorted, threshold)
		if !ok {
			b.WriteString(text[tok.start:tok.end])
			continue
		}

		repl := applyCase(text[tok.start:tok.end], entry.Replacement)
		start := b.Len()
		b.WriteString(repl)
		matches = append(matches, Replacement{
			Start:       start,
			End:         start + len(repl),
			Matched:     text[tok.start:tok.end],
			SourceTerm:  entry.Term,
			Replacement: repl,
			Kind:        MatchFuzzy,
			Score:       float64(score),
		})
	}

	return b.String(), matches
}

// bestFuzzy scores token against every term and returns the best entry
// when its score reaches the threshold. Strict improvement keeps the
// first-encountered candidate on ties.
func bestFuzzy(token string, sorted []lexicon.Entry, threshold int) (lexicon.Entry, int, bool) {
	tokenLower := strings.ToLower(token)

	var (
		best      lexicon.Entry
		bestScore = -1
	)
	for _, entry := range sorted {
		score := similarity(tokenLower, lexicon.Normalize(entry.Term))
		if score > bestScore {
			best = entry
			bestScore = score
		}
	}

	if bestScore < threshold {
		return lexicon.Entry{}, 0, false
	}
	// An exact-equal token would have been caught by the exact pass; a
	// score of 100 here means casing or combining differences only, which
	// is still a legitimate fuzzy hit.
	return best, bestScore, true
}

// similarity is the Jaro-Winkler score between two strings scaled to the
// engine's integer [0,100] range.
func similarity(a, b string) int {
	return int(matchr.JaroWinkler(a, b, false) * 100)
}

// token is a half-open byte range of text. Word tokens are maximal runs
// of word characters; separator tokens carry everything between them.
type token struct {
	start int
	end   int
	word  bool
}

// tokenize splits text into alternating word and separator tokens
// covering the whole input.
func tokenize(text string) []token {
	var tokens []token
	start := 0
	inWord := false

	for i, r := range text {
		w := isWordChar(r)
		if i == 0 {
			inWord = w
			continue
		}
		if w != inWord {
			tokens = append(tokens, token{start: start, end: i, word: inWord})
			start = i
			inWord = w
		}
	}
	if len(text) > 0 {
		tokens = append(tokens, token{start: start, end: len(text), word: inWord})
	}
	return tokens
}

// wordBoundary reports whether the match at [start,end) is delimited by
// non-word characters (or the text edges) on both sides. Classification
// is Unicode-aware: Persian letters are word characters, Persian and
// Latin punctuation are not.
func wordBoundary(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordChar(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isWordChar(r) {
			return false
		}
	}
	return true
}

func isWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func clampThreshold(threshold int) int {
	if threshold < 0 {
		return 0
	}
	if threshold > 100 {
		return 100
	}
	return threshold
}

// anyLocked reports whether any byte in [start,end) was produced by an
// earlier substitution.
func anyLocked(locked []bool, start, end int) bool {
	for i := start; i < end && i < len(locked); i++ {
		if locked[i] {
			return true
		}
	}
	return false
}

// spliceMask replaces mask bytes [start,end) with replLen locked bytes,
// mirroring the text splice that produced them.
func spliceMask(locked []bool, start, end, replLen int) []bool {
	out := make([]bool, 0, len(locked)-(end-start)+replLen)
	out = append(out, locked[:start]...)
	for i := 0; i < replLen; i++ {
		out = append(out, true)
	}
	out = append(out, locked[end:]...)
	return out
}

// applyCase recomputes the replacement casing from the matched text:
// an all-uppercase match (more than one letter) uppercases the
// replacement; a title-case or lone-uppercase-letter match capitalizes
// only the replacement's first character; anything else uses the
// replacement exactly as stored.
func applyCase(matched, replacement string) string {
	runes := []rune(matched)

	letters := 0
	upper := 0
	for _, r := range runes {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters == 0 {
		return replacement
	}

	if letters > 1 && upper == letters {
		return strings.ToUpper(replacement)
	}

	if firstLetterUpper(runes) && upper == 1 {
		return capitalizeFirst(replacement)
	}

	return replacement
}

func firstLetterUpper(runes []rune) bool {
	for _, r := range runes {
		if unicode.IsLetter(r) {
			return unicode.IsUpper(r)
		}
	}
	return false
}

func capitalizeFirst(s string) string {
	for i, r := range s {
		return string(unicode.ToUpper(r)) + s[i+len(string(r)):]
	}
	return s
}
