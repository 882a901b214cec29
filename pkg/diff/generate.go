package diff

import (
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
)

// DefaultContext is the number of unchanged lines around each hunk.
const DefaultContext = 3

// Unified returns a unified diff turning base into target, using the file
// names "original" and "new". Identical inputs produce an empty string.
func Unified(base, target string) (string, error) {
	return UnifiedNamed("original", "new", base, target, DefaultContext)
}

// UnifiedNamed is Unified with explicit file names and context size.
func UnifiedNamed(fromName, toName, base, target string, context int) (string, error) {
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(base),
		B:        difflib.SplitLines(target),
		FromFile: fromName,
		ToFile:   toName,
		Context:  context,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return "", fmt.Errorf("failed to generate diff: %w", err)
	}
	return text, nil
}
