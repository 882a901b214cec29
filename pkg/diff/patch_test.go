package diff

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numberedLines(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i+1)
	}
	return lines
}

func TestApplyRoundTrip(t *testing.T) {
	long := numberedLines(20)
	longChanged := append([]string(nil), long...)
	longChanged[1] = "LINE 2"
	longChanged[17] = "LINE 18"

	tests := []struct {
		name   string
		base   string
		target string
	}{
		{"replace a line", "a\nb\nc\n", "a\nB\nc\n"},
		{"insert in the middle", "a\nb\nc\n", "a\nb\nx\ny\nc\n"},
		{"delete lines", "a\nb\nc\nd\n", "a\nd\n"},
		{"append at the end", "a\nb\n", "a\nb\nc\n"},
		{"prepend at the start", "b\nc\n", "a\nb\nc\n"},
		{"no trailing newline", "func f() {\n\treturn 1\n}", "func f() {\n\treturn 2\n}"},
		{"add trailing newline", "a\nb", "a\nb\n"},
		{"from empty document", "", "x\ny\n"},
		{"to empty document", "a\n", ""},
		{"two distant hunks", strings.Join(long, "\n") + "\n", strings.Join(longChanged, "\n") + "\n"},
		{"blank lines", "a\n\n\nb\n", "a\n\nb\n\n"},
		{"canvas seed", "function helloWorld() {\n  console.log('Hello, world!');\n}", "function helloWorld(name) {\n  console.log(`Hello, ${name}!`);\n}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patch, err := Unified(tt.base, tt.target)
			require.NoError(t, err)
			require.NotEmpty(t, patch)

			result := Apply(tt.base, patch)
			require.True(t, result.IsApplied(), "rejected: %s\n%s", result.Reason, patch)
			assert.Equal(t, tt.target, result.Text)
		})
	}
}

func TestApply(t *testing.T) {
	t.Run("should reject a patch whose context no longer matches", func(t *testing.T) {
		base := "a\nb\nc\n"
		patch, err := Unified(base, "a\nB\nc\n")
		require.NoError(t, err)

		edited := "a\nbee\nc\n"
		result := Apply(edited, patch)
		assert.Equal(t, Rejected, result.Kind)
		assert.Empty(t, result.Text)
		assert.Contains(t, result.Reason, "hunk 1")
		assert.Equal(t, "a\nbee\nc\n", edited)
	})

	t.Run("should reject reapplying a patch to its own output", func(t *testing.T) {
		base := "one\ntwo\nthree\n"
		patch, err := Unified(base, "one\n2\nthree\n")
		require.NoError(t, err)

		first := Apply(base, patch)
		require.True(t, first.IsApplied())

		second := Apply(first.Text, patch)
		assert.Equal(t, Rejected, second.Kind)
	})

	t.Run("should leave earlier hunks unapplied when a later hunk fails", func(t *testing.T) {
		long := numberedLines(20)
		changed := append([]string(nil), long...)
		changed[1] = "LINE 2"
		changed[17] = "LINE 18"
		patch, err := Unified(strings.Join(long, "\n"), strings.Join(changed, "\n"))
		require.NoError(t, err)

		stale := append([]string(nil), long...)
		stale[16] = "edited by hand"
		result := Apply(strings.Join(stale, "\n"), patch)
		assert.Equal(t, Rejected, result.Kind)
		assert.Empty(t, result.Text)

		var rejectErr *RejectError
		require.True(t, errors.As(result.Err, &rejectErr))
		assert.Equal(t, 2, rejectErr.Hunk)
	})

	t.Run("should find shifted context only when offsets are allowed", func(t *testing.T) {
		base := "a\nb\nc\n"
		patch, err := Unified(base, "a\nB\nc\n")
		require.NoError(t, err)

		shifted := "header\nmore\na\nb\nc\n"
		assert.Equal(t, Rejected, Apply(shifted, patch).Kind)

		result := ApplyWithOptions(shifted, patch, Options{AllowOffset: true})
		require.True(t, result.IsApplied(), result.Reason)
		assert.Equal(t, "header\nmore\na\nB\nc\n", result.Text)
	})

	t.Run("should locate a headerless hunk by its context", func(t *testing.T) {
		result := Apply("a\nb\nd", " a\n-b\n+c\n")
		require.True(t, result.IsApplied(), result.Reason)
		assert.Equal(t, "a\nc\nd", result.Text)
	})

	t.Run("should reject ambiguous headerless context", func(t *testing.T) {
		result := Apply("x\ny\nx\ny\n", " x\n-y\n+z\n")
		assert.Equal(t, Rejected, result.Kind)
		assert.Contains(t, result.Reason, "not unique")
	})

	t.Run("should apply a headerless pure addition only to an empty document", func(t *testing.T) {
		result := Apply("", "+line\n")
		require.True(t, result.IsApplied(), result.Reason)
		assert.Equal(t, "line\n", result.Text)

		assert.Equal(t, Rejected, Apply("existing\n", "+line\n").Kind)
	})

	t.Run("should accept the blank line the original backend writes before the end marker", func(t *testing.T) {
		base := "a\nb\n"
		patch, err := Unified(base, "a\nc\n")
		require.NoError(t, err)

		section := Extract(StartMarker + "\n" + patch + "\n" + EndMarker + "\n")
		require.Equal(t, CompleteSection, section.Kind)

		result := Apply(base, section.Body)
		require.True(t, result.IsApplied(), result.Reason)
		assert.Equal(t, "a\nc\n", result.Text)
	})

	t.Run("should reject a hunk whose header counts disagree with its body", func(t *testing.T) {
		for _, patch := range []string{
			"@@ -2,2 +2 @@\n-b\n+B\n",
			"@@ -2 +2,3 @@\n-b\n+B\n",
			"@@ -1,3 +1,3 @@\n a\n-b\n+B\n",
		} {
			result := Apply("a\nb\nc", patch)
			assert.Equal(t, Rejected, result.Kind, "patch %q", patch)

			var rejectErr *RejectError
			require.True(t, errors.As(result.Err, &rejectErr))
			assert.Equal(t, 1, rejectErr.Hunk)
			assert.Contains(t, result.Reason, "header expects")
		}

		result := Apply("a\nb\nc", "@@ -2 +2 @@\n-b\n+B\n")
		require.True(t, result.IsApplied(), result.Reason)
		assert.Equal(t, "a\nB\nc", result.Text)
	})

	t.Run("should reject unusable patches", func(t *testing.T) {
		for _, patch := range []string{"", "\n\n", "--- original\n+++ new\n", "@@ -x +1 @@\n+a\n", "@@ -1 +1 @@\n", "@@ -1 +1 @@\n*bogus\n"} {
			result := Apply("a\n", patch)
			assert.Equal(t, Rejected, result.Kind, "patch %q", patch)
			assert.NotEmpty(t, result.Reason)
		}
	})
}

func TestParse(t *testing.T) {
	t.Run("should read headers and hunks", func(t *testing.T) {
		p, err := Parse("--- original\n+++ new\n@@ -1,2 +1,2 @@ func main\n a\n-b\n+c\n\\ No newline at end of file\n")
		require.NoError(t, err)
		assert.Equal(t, "original", p.OldName)
		assert.Equal(t, "new", p.NewName)
		require.Len(t, p.Hunks, 1)

		h := p.Hunks[0]
		assert.Equal(t, 1, h.OldStart)
		assert.Equal(t, 2, h.OldCount)
		assert.Equal(t, "func main", h.Section)
		assert.Equal(t, []string{"a", "b"}, h.OldLines())
		assert.Equal(t, []string{"a", "c"}, h.NewLines())
	})

	t.Run("should default a missing range count to one", func(t *testing.T) {
		p, err := Parse("@@ -3 +3,2 @@\n-x\n+y\n+z\n")
		require.NoError(t, err)
		assert.Equal(t, 1, p.Hunks[0].OldCount)
		assert.Equal(t, 2, p.Hunks[0].NewCount)
	})

	t.Run("should read an empty line inside a hunk as empty context", func(t *testing.T) {
		p, err := Parse("@@ -1,3 +1,3 @@\n a\n\n-b\n+c\n")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "", "b"}, p.Hunks[0].OldLines())
	})
}
