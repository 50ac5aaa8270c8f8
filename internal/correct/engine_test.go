package correct_test

import (
	"testing"

	"github.com/parsavox/medscribe/internal/correct"
	"github.com/parsavox/medscribe/internal/lexicon"
)

func terms(pairs ...string) lexicon.TermMap {
	tm := make(lexicon.TermMap, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		tm = append(tm, lexicon.Entry{Term: pairs[i], Replacement: pairs[i+1]})
	}
	return tm
}

func mustCorrect(t *testing.T, text string, tm lexicon.TermMap, opts correct.Options) string {
	t.Helper()
	got, _, err := correct.Correct(text, tm, opts)
	if err != nil {
		t.Fatalf("Correct(%q): %v", text, err)
	}
	return got
}

func TestCorrect_ExactSubstitution(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		tm   lexicon.TermMap
		want string
	}{
		{
			"simple replacement",
			"the mri was clear",
			terms("mri", "MRI"),
			"the MRI was clear",
		},
		{
			"longest match wins",
			"an mri scan",
			terms("mri", "MRI", "mri scan", "MRI Scan"),
			"an MRI Scan",
		},
		{
			"longest match wins regardless of input order",
			"an mri scan",
			terms("mri scan", "MRI Scan", "mri", "MRI"),
			"an MRI Scan",
		},
		{
			"word boundary inside word",
			"prescanning the patient",
			terms("scan", "SCAN"),
			"prescanning the patient",
		},
		{
			"boundary at text edges",
			"scan",
			terms("scan", "SCAN"),
			"SCAN",
		},
		{
			"multiple occurrences",
			"mri here, mri there",
			terms("mri", "MRI"),
			"MRI here, MRI there",
		},
		{
			"persian term",
			"گزارش ام ار ای بیمار",
			terms("ام ار ای", "MRI"),
			"گزارش MRI بیمار",
		},
		{
			"persian letters fragment nothing",
			"سونوگرافی شکم",
			terms("سونو", "سونوگرافی"),
			"سونوگرافی شکم",
		},
		{
			"match adjacent to persian punctuation",
			"ام ار ای، سپس سی تی",
			terms("ام ار ای", "MRI", "سی تی", "CT"),
			"MRI، سپس CT",
		},
		{
			"no match is identity",
			"perfectly ordinary sentence",
			terms("mri", "MRI"),
			"perfectly ordinary sentence",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := mustCorrect(t, tc.text, tc.tm, correct.Options{})
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCorrect_CasePreservation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		tm   lexicon.TermMap
		want string
	}{
		{"uppercase match uppercases replacement", "the MRI result", terms("mri", "mri scan"), "the MRI SCAN result"},
		{"title case match capitalizes replacement", "Mri result", terms("mri", "magnetic resonance"), "Magnetic resonance result"},
		{"lowercase match uses stored replacement", "the mri result", terms("mri", "MRI"), "the MRI result"},
		{"mixed case match uses stored replacement", "the mRi result", terms("mri", "scan"), "the scan result"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := mustCorrect(t, tc.text, tc.tm, correct.Options{})
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCorrect_Idempotent(t *testing.T) {
	t.Parallel()

	tm := terms("mri", "MRI", "ct scan", "CT Scan")
	once := mustCorrect(t, "the mri and the ct scan", tm, correct.Options{})
	twice := mustCorrect(t, once, tm, correct.Options{})
	if once != twice {
		t.Errorf("second pass changed output: %q vs %q", once, twice)
	}
}

func TestCorrect_ReplacementNotRematched(t *testing.T) {
	t.Parallel()

	// The replacement of the longer term contains the shorter term; the
	// shorter term must not fire inside the already substituted text.
	tm := terms("mri scan", "mri imaging", "mri", "MRI")
	got := mustCorrect(t, "order an mri scan", tm, correct.Options{})
	if got != "order an mri imaging" {
		t.Errorf("got %q, want %q", got, "order an mri imaging")
	}
}

func TestCorrect_FailOpen(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		tm   lexicon.TermMap
	}{
		{"empty text", "", terms("mri", "MRI")},
		{"nil term map", "some text", nil},
		{"empty term map", "some text", lexicon.TermMap{}},
		{"malformed entries skipped", "some text", terms("", "X", "   ", "Y")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, matches, err := correct.Correct(tc.text, tc.tm, correct.Options{FuzzyEnabled: true, FuzzyThreshold: 80})
			if err != nil {
				t.Fatalf("Correct: %v", err)
			}
			if got != tc.text {
				t.Errorf("got %q, want input unchanged", got)
			}
			if len(matches) != 0 {
				t.Errorf("got %d matches, want 0", len(matches))
			}
		})
	}
}

func TestCorrect_FuzzyMatching(t *testing.T) {
	t.Parallel()

	opts := correct.Options{FuzzyEnabled: true, FuzzyThreshold: 80}

	got := mustCorrect(t, "the mrl was clear", terms("mri", "MRI"), opts)
	if got != "the MRI was clear" {
		t.Errorf("got %q, want %q", got, "the MRI was clear")
	}
}

func TestCorrect_FuzzyBelowThresholdUntouched(t *testing.T) {
	t.Parallel()

	opts := correct.Options{FuzzyEnabled: true, FuzzyThreshold: 95}
	got := mustCorrect(t, "the mrl was clear", terms("mri", "MRI"), opts)
	if got != "the mrl was clear" {
		t.Errorf("got %q, want input unchanged below threshold", got)
	}
}

func TestCorrect_ExactWinsOverFuzzy(t *testing.T) {
	t.Parallel()

	// "mri" is exact-replaced; the fuzzy pass must not revisit the
	// substituted token even though "MRI" still scores 100 against the
	// lexicon term.
	opts := correct.Options{FuzzyEnabled: true, FuzzyThreshold: 80}
	got, matches, err := correct.Correct("mri and mrl", terms("mri", "MRI"), opts)
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	if got != "MRI and MRI" {
		t.Fatalf("got %q, want %q", got, "MRI and MRI")
	}

	kinds := map[correct.MatchKind]int{}
	for _, m := range matches {
		kinds[m.Kind]++
	}
	if kinds[correct.MatchExact] != 1 || kinds[correct.MatchFuzzy] != 1 {
		t.Errorf("match kinds=%v, want one exact and one fuzzy", kinds)
	}
}

func TestCorrect_FuzzyTieBreakFirstInSortedOrder(t *testing.T) {
	t.Parallel()

	// Both terms score identically against the token; the first entry in
	// the longest-first order must win.
	tm := terms("abcd", "FIRST", "abce", "SECOND")
	opts := correct.Options{FuzzyEnabled: true, FuzzyThreshold: 80}
	got := mustCorrect(t, "abcf", tm, opts)
	if got != "FIRST" {
		t.Errorf("got %q, want %q", got, "FIRST")
	}
}

func TestCorrect_FuzzyCasePreservedFromToken(t *testing.T) {
	t.Parallel()

	// Case is recomputed from the transcript token, not from the
	// fuzzy-matched lexicon term.
	opts := correct.Options{FuzzyEnabled: true, FuzzyThreshold: 80}
	got := mustCorrect(t, "MRL was clear", terms("mri", "mri scan"), opts)
	if got != "MRI SCAN was clear" {
		t.Errorf("got %q, want %q", got, "MRI SCAN was clear")
	}
}

func TestCorrect_ReportsReplacements(t *testing.T) {
	t.Parallel()

	_, matches, err := correct.Correct("the mri was clear", terms("mri", "MRI"), correct.Options{})
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	m := matches[0]
	if m.Matched != "mri" || m.SourceTerm != "mri" || m.Replacement != "MRI" {
		t.Errorf("unexpected match record: %+v", m)
	}
	if m.Kind != correct.MatchExact || m.Score != 100 {
		t.Errorf("kind=%s score=%v, want exact/100", m.Kind, m.Score)
	}
}
