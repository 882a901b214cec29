package headless

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/killallgit/canvaschat/pkg/logger"
)

// Output handles console output for headless mode
type Output struct {
	w       io.Writer
	added   lipgloss.Style
	removed lipgloss.Style
	hunk    lipgloss.Style
	status  lipgloss.Style
	warning lipgloss.Style
}

// NewOutput creates an output handler writing to w. Colours are only used
// when w is a terminal.
func NewOutput(w io.Writer) *Output {
	r := lipgloss.NewRenderer(w)
	return &Output{
		w:       w,
		added:   r.NewStyle().Foreground(lipgloss.Color("2")),
		removed: r.NewStyle().Foreground(lipgloss.Color("1")),
		hunk:    r.NewStyle().Foreground(lipgloss.Color("6")),
		status:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("4")),
		warning: r.NewStyle().Bold(true).Foreground(lipgloss.Color("3")),
	}
}

// Text writes streamed reply text as is
func (o *Output) Text(s string) {
	fmt.Fprint(o.w, s)
}

// Diff prints a proposed patch with added and removed lines coloured
func (o *Output) Diff(body string) {
	fmt.Fprintln(o.w)
	o.Status("Proposed changes:")
	for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "@@"):
			line = o.hunk.Render(line)
		case strings.HasPrefix(line, "+"):
			line = o.added.Render(line)
		case strings.HasPrefix(line, "-"):
			line = o.removed.Render(line)
		}
		fmt.Fprintln(o.w, line)
	}
}

// Tokens prints the token usage summary
func (o *Output) Tokens(sent, received int) {
	fmt.Fprintf(o.w, "[Tokens - Sent: %d, Received: %d, Total: %d]\n", sent, received, sent+received)
}

// Status prints a highlighted status line
func (o *Output) Status(msg string) {
	fmt.Fprintln(o.w, o.status.Render(msg))
}

// Warning prints a warning line
func (o *Output) Warning(msg string) {
	fmt.Fprintln(o.w, o.warning.Render(msg))
}

// Error prints an error message using the logger
func (o *Output) Error(msg string) {
	logger.Error("%s", msg)
	fmt.Fprintln(o.w, o.warning.Render("Error: "+msg))
}
