package headless

import (
	"strings"
)

// headlessStreamHandler prints the displayed assistant text as it grows.
// Each update carries the whole text; only the new suffix is printed, and a
// text that no longer extends what was printed is shown again in full.
type headlessStreamHandler struct {
	output  *Output
	printed string
}

func newHeadlessStreamHandler(output *Output) *headlessStreamHandler {
	return &headlessStreamHandler{output: output}
}

// OnText handles a TextUpdated update
func (h *headlessStreamHandler) OnText(text string) {
	if strings.HasPrefix(text, h.printed) {
		h.output.Text(text[len(h.printed):])
	} else {
		h.output.Text("\n" + text)
	}
	h.printed = text
}

// Finish terminates the printed text with a newline
func (h *headlessStreamHandler) Finish() {
	if h.printed != "" && !strings.HasSuffix(h.printed, "\n") {
		h.output.Text("\n")
	}
}

// GetContent returns the text printed so far
func (h *headlessStreamHandler) GetContent() string {
	return h.printed
}
