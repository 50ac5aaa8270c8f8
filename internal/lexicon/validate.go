package lexicon

import (
	"fmt"
	"strings"
)

// Default length bounds enforced by [Validator]. Terms shorter than the
// minimum match too aggressively to be useful; the maxima guard the
// storage layer against pathological input.
const (
	defaultMinTermLen        = 2
	defaultMaxTermLen        = 200
	defaultMaxReplacementLen = 500
)

// Field names the part of a candidate a [Issue] refers to.
type Field string

const (
	FieldTerm        Field = "term"
	FieldReplacement Field = "replacement"
)

// IssueCode is the machine-readable classification of a validation finding.
type IssueCode string

const (
	IssueEmptyOrWhitespace       IssueCode = "empty_or_whitespace"
	IssueTooShort                IssueCode = "too_short"
	IssueTooLong                 IssueCode = "too_long"
	IssueDuplicate               IssueCode = "duplicate"
	IssueDuplicateInBatch        IssueCode = "duplicate_in_batch"
	IssueSelfReference           IssueCode = "self_reference"
	IssueCircularReference       IssueCode = "circular_reference"
	IssueContainsExistingTerm    IssueCode = "contains_existing_term"
	IssueContainedInExistingTerm IssueCode = "contained_in_existing_term"
)

// Issue is a single validation finding. Issues are produced per call and
// consumed immediately by the administration caller; they are never
// persisted.
type Issue struct {
	// Field identifies which input the finding refers to.
	Field Field

	// Code classifies the finding.
	Code IssueCode

	// Value is the offending input text.
	Value string

	// Context carries finding-specific detail, e.g. the conflicting
	// existing term for duplicates or the full chain for cycles.
	Context map[string]string
}

// Result is the outcome of validating one candidate term. A candidate is
// admissible iff Errors is empty; Warnings surface latent matching
// ambiguity without blocking admission.
type Result struct {
	Errors   []Issue
	Warnings []Issue
}

// Valid reports whether the candidate may be admitted.
func (r Result) Valid() bool { return len(r.Errors) == 0 }

// Candidate is one (term, replacement) pair submitted for validation.
type Candidate struct {
	Term        string
	Replacement string

	// ExcludeID, when non-empty, names the stored entry being updated so
	// that the candidate does not collide with itself in uniqueness checks.
	ExcludeID string
}

// ValidatorOption is a functional option for configuring a [Validator].
type ValidatorOption func(*Validator)

// WithTermLengthBounds overrides the minimum and maximum accepted term
// length in characters. Defaults: 2 and 200.
func WithTermLengthBounds(minLen, maxLen int) ValidatorOption {
	return func(v *Validator) {
		v.minTermLen = minLen
		v.maxTermLen = maxLen
	}
}

// WithMaxReplacementLength overrides the maximum accepted replacement
// length in characters. Default: 500.
func WithMaxReplacementLength(maxLen int) ValidatorOption {
	return func(v *Validator) {
		v.maxReplacementLen = maxLen
	}
}

// Validator checks candidate lexicon terms against format rules and
// against the existing active term set of a lexicon. It is pure: it
// never mutates its inputs, holds no state between calls, and returns
// every finding rather than logging side effects. Safe for concurrent use.
type Validator struct {
	minTermLen        int
	maxTermLen        int
	maxReplacementLen int
}

// NewValidator returns a [Validator] with the supplied options applied.
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{
		minTermLen:        defaultMinTermLen,
		maxTermLen:        defaultMaxTermLen,
		maxReplacementLen: defaultMaxReplacementLen,
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Validate checks a single candidate against the active terms of a
// lexicon. existing must contain the current active terms of lexiconID;
// entries whose ID equals cand.ExcludeID are skipped so updates do not
// conflict with themselves.
//
// Check order follows the admission contract: format problems
// short-circuit (a malformed candidate is rejected before uniqueness or
// cycle analysis), then case-insensitive uniqueness, then replacement
// cycles, then non-blocking overlap warnings.
func (v *Validator) Validate(lexiconID string, cand Candidate, existing []Term) Result {
	res := v.checkFormat(cand)
	if len(res.Errors) > 0 {
		return res
	}

	active := relevantTerms(lexiconID, cand.ExcludeID, existing)

	if dup := findDuplicate(cand, active); dup != nil {
		res.Errors = append(res.Errors, *dup)
		return res
	}

	if cyc := findCycle(cand, active); cyc != nil {
		res.Errors = append(res.Errors, *cyc)
		return res
	}

	res.Warnings = append(res.Warnings, overlapWarnings(cand, active)...)
	return res
}

// ValidateBatch checks candidates submitted together for one lexicon.
// In addition to the per-candidate checks of [Validator.Validate], it
// rejects duplicates within the batch itself (first occurrence wins) and
// evaluates cycles against the union of existing terms and all other
// batch candidates. The returned slice is parallel to candidates.
func (v *Validator) ValidateBatch(lexiconID string, candidates []Candidate, existing []Term) []Result {
	results := make([]Result, len(candidates))
	seen := make(map[string]int, len(candidates))

	for i, cand := range candidates {
		res := v.checkFormat(cand)
		if len(res.Errors) > 0 {
			results[i] = res
			continue
		}

		norm := Normalize(cand.Term)
		if first, ok := seen[norm]; ok {
			res.Errors = append(res.Errors, Issue{
				Field: FieldTerm,
				Code:  IssueDuplicateInBatch,
				Value: cand.Term,
				Context: map[string]string{
					"first_occurrence": candidates[first].Term,
				},
			})
			results[i] = res
			continue
		}
		seen[norm] = i

		active := relevantTerms(lexiconID, cand.ExcludeID, existing)

		if dup := findDuplicate(cand, active); dup != nil {
			res.Errors = append(res.Errors, *dup)
			results[i] = res
			continue
		}

		// Cycles must account for edges the rest of the batch introduces.
		union := active
		for j, other := range candidates {
			if j == i {
				continue
			}
			union = append(union, Term{
				Term:        other.Term,
				Normalized:  Normalize(other.Term),
				Replacement: other.Replacement,
				Active:      true,
			})
		}
		if cyc := findCycle(cand, union); cyc != nil {
			res.Errors = append(res.Errors, *cyc)
			results[i] = res
			continue
		}

		res.Warnings = append(res.Warnings, overlapWarnings(cand, active)...)
		results[i] = res
	}

	return results
}

// checkFormat applies the fatal format rules and the non-fatal
// surrounding-whitespace warning.
func (v *Validator) checkFormat(cand Candidate) Result {
	var res Result

	termTrimmed := Normalize(cand.Term)
	replTrimmed := Normalize(cand.Replacement)

	switch {
	case termTrimmed == "":
		res.Errors = append(res.Errors, Issue{
			Field: FieldTerm, Code: IssueEmptyOrWhitespace, Value: cand.Term,
		})
	case len([]rune(termTrimmed)) < v.minTermLen:
		res.Errors = append(res.Errors, Issue{
			Field: FieldTerm, Code: IssueTooShort, Value: cand.Term,
			Context: map[string]string{"min_length": fmt.Sprint(v.minTermLen)},
		})
	case len([]rune(cand.Term)) > v.maxTermLen:
		res.Errors = append(res.Errors, Issue{
			Field: FieldTerm, Code: IssueTooLong, Value: cand.Term,
			Context: map[string]string{"max_length": fmt.Sprint(v.maxTermLen)},
		})
	}

	switch {
	case replTrimmed == "":
		res.Errors = append(res.Errors, Issue{
			Field: FieldReplacement, Code: IssueEmptyOrWhitespace, Value: cand.Replacement,
		})
	case len([]rune(cand.Replacement)) > v.maxReplacementLen:
		res.Errors = append(res.Errors, Issue{
			Field: FieldReplacement, Code: IssueTooLong, Value: cand.Replacement,
			Context: map[string]string{"max_length": fmt.Sprint(v.maxReplacementLen)},
		})
	}

	if len(res.Errors) > 0 {
		return res
	}

	if strings.TrimSpace(cand.Term) != cand.Term {
		res.Warnings = append(res.Warnings, Issue{
			Field: FieldTerm, Code: IssueEmptyOrWhitespace, Value: cand.Term,
			Context: map[string]string{"reason": "leading_or_trailing_whitespace"},
		})
	}
	if strings.TrimSpace(cand.Replacement) != cand.Replacement {
		res.Warnings = append(res.Warnings, Issue{
			Field: FieldReplacement, Code: IssueEmptyOrWhitespace, Value: cand.Replacement,
			Context: map[string]string{"reason": "leading_or_trailing_whitespace"},
		})
	}

	return res
}

// relevantTerms filters existing down to the active terms of lexiconID,
// excluding the entry identified by excludeID (the entry being updated).
func relevantTerms(lexiconID, excludeID string, existing []Term) []Term {
	out := make([]Term, 0, len(existing))
	for _, t := range existing {
		if !t.Active || t.LexiconID != lexiconID {
			continue
		}
		if excludeID != "" && t.ID == excludeID {
			continue
		}
		if t.Normalized == "" {
			t.Normalized = Normalize(t.Term)
		}
		out = append(out, t)
	}
	return out
}

// findDuplicate returns a duplicate error when the candidate's normalized
// term collides with an active term, or nil.
func findDuplicate(cand Candidate, active []Term) *Issue {
	norm := Normalize(cand.Term)
	for _, t := range active {
		if t.Normalized == norm {
			return &Issue{
				Field: FieldTerm,
				Code:  IssueDuplicate,
				Value: cand.Term,
				Context: map[string]string{
					"conflicts_with": t.Term,
					"existing_id":    t.ID,
				},
			}
		}
	}
	return nil
}

// findCycle reports whether admitting the candidate edge would create a
// replacement cycle. The direct self-reference (term == replacement after
// normalization) is detected first as an O(1) short-circuit; otherwise an
// iterative walk follows replacement edges from the candidate, tracking
// the visited set of the current path so cycles elsewhere in the graph
// cannot loop the walk forever.
//
// The reported chain uses original-case terms, starting and ending at the
// candidate, e.g. ["A", "B", "A"].
func findCycle(cand Candidate, active []Term) *Issue {
	start := Normalize(cand.Term)
	target := Normalize(cand.Replacement)

	if start == target {
		return &Issue{
			Field: FieldReplacement,
			Code:  IssueSelfReference,
			Value: cand.Replacement,
		}
	}

	// Adjacency over normalized forms plus an original-case lookup for
	// diagnostics. Each node has at most one outgoing edge because terms
	// are unique within a lexicon.
	next := make(map[string]string, len(active)+1)
	display := make(map[string]string, len(active)+1)
	for _, t := range active {
		next[t.Normalized] = Normalize(t.Replacement)
		display[t.Normalized] = t.Term
	}
	next[start] = target
	display[start] = cand.Term
	if _, ok := display[target]; !ok {
		display[target] = cand.Replacement
	}

	chain := []string{display[start]}
	visited := map[string]bool{start: true}
	node := target
	for {
		chain = append(chain, display[node])
		if node == start {
			return &Issue{
				Field: FieldReplacement,
				Code:  IssueCircularReference,
				Value: cand.Replacement,
				Context: map[string]string{
					"chain": strings.Join(chain, chainSeparator),
				},
			}
		}
		if visited[node] {
			// A loop that does not include the candidate; the candidate
			// edge itself is admissible.
			return nil
		}
		visited[node] = true

		nxt, ok := next[node]
		if !ok {
			return nil
		}
		if _, ok := display[nxt]; !ok {
			// Replacement of an intermediate node that is not itself a
			// term; keep its literal form for chain reporting.
			display[nxt] = lookupReplacement(node, active)
		}
		node = nxt
	}
}

// lookupReplacement returns the original-case replacement of the active
// term whose normalized form is node, or node itself when absent.
func lookupReplacement(node string, active []Term) string {
	for _, t := range active {
		if t.Normalized == node {
			return t.Replacement
		}
	}
	return node
}

// chainSeparator joins cycle chain elements for error context.
const chainSeparator = " -> "

// CycleChain extracts the original-case cycle chain from a
// circular-reference issue. Returns nil for other issues.
func CycleChain(iss Issue) []string {
	if iss.Code != IssueCircularReference {
		return nil
	}
	raw, ok := iss.Context["chain"]
	if !ok {
		return nil
	}
	return strings.Split(raw, chainSeparator)
}

// overlapWarnings emits containment warnings between the candidate and
// every other active term. One term being a substring of another is not
// an error — longest-match-first resolves the ambiguity at correction
// time — but maintainers should see it.
func overlapWarnings(cand Candidate, active []Term) []Issue {
	norm := Normalize(cand.Term)
	var warnings []Issue
	for _, t := range active {
		if t.Normalized == norm || t.Normalized == "" {
			continue
		}
		switch {
		case strings.Contains(norm, t.Normalized):
			warnings = append(warnings, Issue{
				Field: FieldTerm,
				Code:  IssueContainsExistingTerm,
				Value: cand.Term,
				Context: map[string]string{
					"existing_term": t.Term,
				},
			})
		case strings.Contains(t.Normalized, norm):
			warnings = append(warnings, Issue{
				Field: FieldTerm,
				Code:  IssueContainedInExistingTerm,
				Value: cand.Term,
				Context: map[string]string{
					"existing_term": t.Term,
				},
			})
		}
	}
	return warnings
}

