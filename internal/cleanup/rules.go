// Package cleanup provides text cleanup implementations for the final
// post-processing stage: a deterministic rule-based cleaner for
// whitespace and punctuation, and an optional LLM-backed cleaner for
// dictation artifacts the rules cannot see.
//
// Both cleaners are conservative: they never reorder, translate, or
// rewrite content, and on any doubt they return their input unchanged.
package cleanup

import (
	"context"
	"regexp"
	"strings"
)

var (
	// Runs of spaces and tabs collapse to one space; newlines are kept.
	reSpaceRun = regexp.MustCompile(`[ \t]+`)

	// No space before terminal or Persian punctuation.
	reSpaceBeforePunct = regexp.MustCompile(` +([.,!?:;،؛؟])`)

	// Persian comma and semicolon need a following space. Latin marks are
	// left alone: "2.5" must not become "2. 5".
	reMissingSpaceAfter = regexp.MustCompile(`([،؛])(\S)`)
)

// dupPunct lists marks whose accidental repetition ("؟؟", "!!") is a
// dictation artifact. The period is excluded: ellipses and decimal
// points are legitimate.
var dupPunct = []string{"،", "؛", "؟", "!", "?", ","}

// Rules is a deterministic whitespace/punctuation cleaner for mixed
// Persian/Latin transcript text. The zero value is ready to use; Rules is
// stateless and safe for concurrent use.
type Rules struct{}

// Clean normalises whitespace and punctuation spacing. The text's words,
// digits, and punctuation marks themselves are never altered.
func (Rules) Clean(_ context.Context, text string) (string, error) {
	if text == "" {
		return text, nil
	}

	out := reSpaceRun.ReplaceAllString(text, " ")
	out = reSpaceBeforePunct.ReplaceAllString(out, "$1")
	for _, p := range dupPunct {
		for strings.Contains(out, p+p) {
			out = strings.ReplaceAll(out, p+p, p)
		}
	}
	out = reMissingSpaceAfter.ReplaceAllString(out, "$1 $2")
	out = strings.TrimSpace(out)
	return out, nil
}
