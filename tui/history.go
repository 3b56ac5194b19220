// Package tui provides a Bubble Tea terminal UI for the PactCore engine.
package tui

// History keeps recent input lines for up/down recall.
type History struct {
	lines  []string
	max    int
	cursor int // len(lines) = not navigating
}

// NewHistory creates a history buffer holding at most max lines.
func NewHistory(max int) *History {
	return &History{max: max, cursor: 0}
}

// Add records a line. Blank lines and immediate repeats are dropped, and the
// cursor returns to the fresh-input position.
func (h *History) Add(line string) {
	defer h.Reset()
	if line == "" {
		return
	}
	if n := len(h.lines); n > 0 && h.lines[n-1] == line {
		return
	}
	h.lines = append(h.lines, line)
	if len(h.lines) > h.max {
		copy(h.lines, h.lines[1:])
		h.lines = h.lines[:h.max]
	}
}

// Older steps back in time. The first call returns the most recent line.
func (h *History) Older() (string, bool) {
	if len(h.lines) == 0 {
		return "", false
	}
	if h.cursor > 0 {
		h.cursor--
	}
	return h.lines[h.cursor], true
}

// Newer steps forward, returning ("", false) once past the newest line.
func (h *History) Newer() (string, bool) {
	if h.cursor >= len(h.lines) {
		return "", false
	}
	h.cursor++
	if h.cursor == len(h.lines) {
		return "", false
	}
	return h.lines[h.cursor], true
}

// Reset puts the cursor back at fresh input.
func (h *History) Reset() {
	h.cursor = len(h.lines)
}
