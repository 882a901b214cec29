package diff

import (
	"errors"
	"fmt"
	"strings"
)

// Outcome tags a PatchResult.
type Outcome int

const (
	Applied Outcome = iota
	Rejected
)

// String returns the string representation of the outcome
func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// PatchResult is the outcome of applying a patch. Text is set only when Kind
// is Applied; Reason and Err only when it is Rejected.
type PatchResult struct {
	Kind   Outcome
	Text   string
	Reason string
	Err    error
}

// IsApplied reports whether the patch produced a new document.
func (r PatchResult) IsApplied() bool {
	return r.Kind == Applied
}

// RejectError describes why a patch could not be applied. Hunk is 1-indexed;
// zero means the patch as a whole was unusable.
type RejectError struct {
	Hunk   int
	Reason string
}

func (e *RejectError) Error() string {
	if e.Hunk == 0 {
		return e.Reason
	}
	return fmt.Sprintf("hunk %d: %s", e.Hunk, e.Reason)
}

// Options tune how hunks are located.
type Options struct {
	// AllowOffset lets a hunk whose context does not match at its header
	// position apply at a unique matching location further down the document.
	AllowOffset bool
}

// Apply applies a unified diff to base using strict hunk positions.
func Apply(base, patchText string) PatchResult {
	return ApplyWithOptions(base, patchText, Options{})
}

// ApplyWithOptions parses patchText and applies it to base. The base string is
// never modified; either every hunk applies or the result is Rejected.
func ApplyWithOptions(base, patchText string, opts Options) PatchResult {
	patch, err := Parse(patchText)
	if err != nil {
		return reject(&RejectError{Reason: err.Error()})
	}
	return ApplyPatch(base, patch, opts)
}

// ApplyPatch applies an already parsed patch to base.
func ApplyPatch(base string, patch *Patch, opts Options) PatchResult {
	if patch == nil || len(patch.Hunks) == 0 {
		return reject(&RejectError{Reason: "patch contains no hunks"})
	}

	lines := SplitLines(base)
	result := make([]string, 0, len(lines))
	cursor := 0

	for i, h := range patch.Hunks {
		if err := checkCounts(h); err != nil {
			return reject(&RejectError{Hunk: i + 1, Reason: err.Error()})
		}
		pos, err := locate(lines, h, cursor, opts)
		if err != nil {
			return reject(&RejectError{Hunk: i + 1, Reason: err.Error()})
		}

		result = append(result, lines[cursor:pos]...)
		result = append(result, h.NewLines()...)
		cursor = pos + len(h.OldLines())
	}
	result = append(result, lines[cursor:]...)

	return PatchResult{Kind: Applied, Text: strings.Join(result, "\n")}
}

// SplitLines splits a document on "\n". A trailing newline yields a final
// empty line so that joining the result with "\n" restores the input.
func SplitLines(text string) []string {
	return strings.Split(text, "\n")
}

// checkCounts compares a hunk header's line counts with the hunk body
func checkCounts(h Hunk) error {
	if h.Headerless {
		return nil
	}
	oldLen, newLen := len(h.OldLines()), len(h.NewLines())
	if oldLen != h.OldCount || newLen != h.NewCount {
		return fmt.Errorf("header expects -%d +%d lines but the body has -%d +%d", h.OldCount, h.NewCount, oldLen, newLen)
	}
	return nil
}

func reject(err *RejectError) PatchResult {
	return PatchResult{Kind: Rejected, Reason: err.Error(), Err: err}
}

// locate returns the index in lines where the hunk's old lines start. Hunks
// must not reach back before cursor.
func locate(lines []string, h Hunk, cursor int, opts Options) (int, error) {
	old := h.OldLines()

	if !h.Headerless {
		expected := h.OldStart - 1
		if h.OldCount == 0 {
			// empty ranges name the line just before the insertion point
			expected = h.OldStart
		}
		if expected >= cursor && matchAt(lines, old, expected) {
			return expected, nil
		}
		if !opts.AllowOffset {
			if expected < cursor {
				return 0, errors.New("overlaps the previous hunk")
			}
			return 0, fmt.Errorf("context does not match at line %d", expected+1)
		}
	}

	if len(old) == 0 {
		if isEmptyDocument(lines) && cursor == 0 {
			return 0, nil
		}
		return 0, errors.New("no context to locate the change")
	}

	matches := findConsecutive(lines, old, cursor)
	switch len(matches) {
	case 0:
		return 0, errors.New("context not found")
	case 1:
		return matches[0], nil
	default:
		return 0, fmt.Errorf("context is not unique (lines %s)", formatLineNumbers(matches))
	}
}

func isEmptyDocument(lines []string) bool {
	return len(lines) == 1 && lines[0] == ""
}

func matchAt(lines, want []string, at int) bool {
	if at < 0 || at+len(want) > len(lines) {
		return false
	}
	for j, w := range want {
		if lines[at+j] != w {
			return false
		}
	}
	return true
}

// findConsecutive finds all positions at or after from where want matches
// line for line.
func findConsecutive(lines, want []string, from int) []int {
	var matches []int
	for i := from; i+len(want) <= len(lines); i++ {
		if matchAt(lines, want, i) {
			matches = append(matches, i)
		}
	}
	return matches
}

func formatLineNumbers(positions []int) string {
	parts := make([]string, len(positions))
	for i, p := range positions {
		parts[i] = fmt.Sprintf("%d", p+1)
	}
	return strings.Join(parts, ", ")
}
