package processor

import (
	"fmt"
	"io"
	"strings"
)

// consoleProgress draws a single-line progress bar
type consoleProgress struct {
	w     io.Writer
	width int
}

func newConsoleProgress(w io.Writer) *consoleProgress {
	return &consoleProgress{w: w, width: 30}
}

func (c *consoleProgress) Start(total int) {
	fmt.Fprintf(c.w, "  Translating %d paragraphs...\n", total)
}

func (c *consoleProgress) Advance(current, total int) {
	if total <= 0 {
		return
	}
	filled := c.width * current / total
	fmt.Fprintf(c.w, "\r  [%s%s] %d/%d", strings.Repeat("#", filled), strings.Repeat(".", c.width-filled), current, total)
}

func (c *consoleProgress) Finish() {
	fmt.Fprintln(c.w)
}
