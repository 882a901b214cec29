package diff

import (
	"fmt"
	"strconv"
	"strings"
)

// LineType is the role of a line inside a hunk.
type LineType int

const (
	LineContext LineType = iota
	LineAdded
	LineRemoved
)

// String returns the string representation of a line type.
func (t LineType) String() string {
	switch t {
	case LineContext:
		return "context"
	case LineAdded:
		return "added"
	case LineRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Line is a single hunk line without its prefix character.
type Line struct {
	Type    LineType
	Content string
}

// Hunk is a contiguous change. OldStart and NewStart are 1-indexed as written
// in the hunk header; both are zero for a headerless hunk.
type Hunk struct {
	OldStart   int
	OldCount   int
	NewStart   int
	NewCount   int
	Section    string
	Lines      []Line
	Headerless bool
}

// OldLines returns the lines the hunk expects to find in the base document.
func (h Hunk) OldLines() []string {
	var out []string
	for _, l := range h.Lines {
		if l.Type != LineAdded {
			out = append(out, l.Content)
		}
	}
	return out
}

// NewLines returns the lines that replace OldLines.
func (h Hunk) NewLines() []string {
	var out []string
	for _, l := range h.Lines {
		if l.Type != LineRemoved {
			out = append(out, l.Content)
		}
	}
	return out
}

// Patch is a parsed unified diff.
type Patch struct {
	OldName string
	NewName string
	Hunks   []Hunk
}

// Parse reads a unified diff body. File headers before the first hunk are
// recorded when present and otherwise ignored. A body without any "@@" header
// is read as a single headerless hunk.
func Parse(text string) (*Patch, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimRight(text, "\n")
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("patch is empty")
	}

	patch := &Patch{}
	var current *Hunk

	for i, raw := range strings.Split(text, "\n") {
		if current == nil {
			switch {
			case strings.HasPrefix(raw, "@@"):
			case strings.HasPrefix(raw, "--- "):
				patch.OldName = strings.TrimSpace(strings.TrimPrefix(raw, "--- "))
				continue
			case strings.HasPrefix(raw, "+++ "):
				patch.NewName = strings.TrimSpace(strings.TrimPrefix(raw, "+++ "))
				continue
			case strings.HasPrefix(raw, "diff "), strings.HasPrefix(raw, "index "):
				continue
			case raw == "":
				continue
			default:
				// No header: everything from here is one hunk located by context
				patch.Hunks = append(patch.Hunks, Hunk{Headerless: true})
				current = &patch.Hunks[len(patch.Hunks)-1]
			}
		}

		if strings.HasPrefix(raw, "@@") {
			h, err := parseHunkHeader(raw)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i+1, err)
			}
			patch.Hunks = append(patch.Hunks, h)
			current = &patch.Hunks[len(patch.Hunks)-1]
			continue
		}

		line, ok, err := parseHunkLine(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		if ok {
			current.Lines = append(current.Lines, line)
		}
	}

	if len(patch.Hunks) == 0 {
		return nil, fmt.Errorf("patch contains no hunks")
	}
	for i, h := range patch.Hunks {
		if len(h.Lines) == 0 {
			return nil, fmt.Errorf("hunk %d is empty", i+1)
		}
	}
	return patch, nil
}

func parseHunkLine(raw string) (Line, bool, error) {
	if raw == "" {
		return Line{Type: LineContext}, true, nil
	}
	switch raw[0] {
	case ' ':
		return Line{Type: LineContext, Content: raw[1:]}, true, nil
	case '+':
		return Line{Type: LineAdded, Content: raw[1:]}, true, nil
	case '-':
		return Line{Type: LineRemoved, Content: raw[1:]}, true, nil
	case '\\':
		// "\ No newline at end of file"
		return Line{}, false, nil
	default:
		return Line{}, false, fmt.Errorf("unexpected hunk line %q", raw)
	}
}

// parseHunkHeader parses "@@ -a[,b] +c[,d] @@ [section]".
func parseHunkHeader(raw string) (Hunk, error) {
	rest := strings.TrimPrefix(raw, "@@")
	end := strings.Index(rest, "@@")
	if end < 0 {
		return Hunk{}, fmt.Errorf("malformed hunk header %q", raw)
	}
	fields := strings.Fields(rest[:end])
	if len(fields) != 2 || !strings.HasPrefix(fields[0], "-") || !strings.HasPrefix(fields[1], "+") {
		return Hunk{}, fmt.Errorf("malformed hunk header %q", raw)
	}

	oldStart, oldCount, err := parseRange(fields[0][1:])
	if err != nil {
		return Hunk{}, fmt.Errorf("malformed hunk header %q: %w", raw, err)
	}
	newStart, newCount, err := parseRange(fields[1][1:])
	if err != nil {
		return Hunk{}, fmt.Errorf("malformed hunk header %q: %w", raw, err)
	}

	return Hunk{
		OldStart: oldStart,
		OldCount: oldCount,
		NewStart: newStart,
		NewCount: newCount,
		Section:  strings.TrimSpace(rest[end+2:]),
	}, nil
}

func parseRange(s string) (start, count int, err error) {
	startStr, countStr, hasCount := strings.Cut(s, ",")
	start, err = strconv.Atoi(startStr)
	if err != nil || start < 0 {
		return 0, 0, fmt.Errorf("invalid range start %q", startStr)
	}
	count = 1
	if hasCount {
		count, err = strconv.Atoi(countStr)
		if err != nil || count < 0 {
			return 0, 0, fmt.Errorf("invalid range count %q", countStr)
		}
	}
	return start, count, nil
}
