package diff

import "strings"

// Section delimiters. Matching is literal and case-sensitive.
const (
	StartMarker = "--- DIFF ---"
	EndMarker   = "--- END DIFF ---"
)

// SectionKind reports how much of a diff section is present in a buffer.
type SectionKind int

const (
	NoSection SectionKind = iota
	PartialSection
	CompleteSection
)

// String returns the string representation of the section kind
func (k SectionKind) String() string {
	switch k {
	case NoSection:
		return "none"
	case PartialSection:
		return "partial"
	case CompleteSection:
		return "complete"
	default:
		return "unknown"
	}
}

// Section is the result of scanning an accumulated buffer for a diff section.
//
// Offsets index into the scanned buffer. Start is the first byte of the start
// marker and End is one past the end marker including the newline that follows
// it, when present. Both are -1 when no start marker was found; End is -1 for
// partial sections.
type Section struct {
	Kind   SectionKind
	Before string // conversational text preceding the start marker
	Body   string // diff text between the marker lines (complete sections only)
	After  string // conversational text following the end marker (complete sections only)
	Start  int
	End    int
}

// Conversational returns the text that should be displayed for the scanned
// buffer: everything except the diff region.
func (s Section) Conversational() string {
	if s.Kind == CompleteSection {
		return s.Before + s.After
	}
	return s.Before
}

// Extract scans the full accumulated buffer for the first diff section.
//
// The first start marker wins and the section closes at the first end marker
// after it. Later start markers between the two are part of the body, and an
// end marker that appears before any start marker is plain text. Only one
// section is extracted; markers in the text after it are left untouched.
//
// Extract is pure: the result depends only on buffer.
func Extract(buffer string) Section {
	start := strings.Index(buffer, StartMarker)
	if start < 0 {
		return Section{Kind: NoSection, Before: buffer, Start: -1, End: -1}
	}

	bodyStart := skipNewline(buffer, start+len(StartMarker))
	rel := strings.Index(buffer[start+len(StartMarker):], EndMarker)
	if rel < 0 {
		return Section{Kind: PartialSection, Before: buffer[:start], Start: start, End: -1}
	}

	endMarker := start + len(StartMarker) + rel
	end := skipNewline(buffer, endMarker+len(EndMarker))

	return Section{
		Kind:   CompleteSection,
		Before: buffer[:start],
		Body:   buffer[bodyStart:endMarker],
		After:  buffer[end:],
		Start:  start,
		End:    end,
	}
}

// skipNewline returns the offset just past a line terminator at i, or i when
// there is none.
func skipNewline(s string, i int) int {
	switch {
	case strings.HasPrefix(s[i:], "\r\n"):
		return i + 2
	case strings.HasPrefix(s[i:], "\n"):
		return i + 1
	default:
		return i
	}
}

// Wrap encloses a diff body in section markers, each on its own line.
func Wrap(body string) string {
	if body != "" && body[len(body)-1] != '\n' {
		body += "\n"
	}
	return StartMarker + "\n" + body + EndMarker + "\n"
}
