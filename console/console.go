package console

import (
	"strings"
)

const (
	// TextSize is the scrollback ring capacity in character cells.
	TextSize = 131072

	// NumNotifyLines is how many recent lines can show as overlay.
	NumNotifyLines = 4

	minLineWidth = 38
)

// Console is the scrollback: a fixed ring of character cells organized into
// lines of lineWidth. Printing wraps words; resizing reflows the ring at
// the new width, dropping the oldest content if it no longer fits.
type Console struct {
	text       []byte
	lineWidth  int
	totalLines int

	current int // line the next character lands on
	x       int // column in the current line
	display int // bottom line on screen (scrollback offset)

	// times stamps the most recent lines for the notify overlay,
	// indexed current % NumNotifyLines.
	times [NumNotifyLines]float64
}

func New(widthChars int) *Console {
	c := &Console{}
	c.resize(widthChars)
	return c
}

func (c *Console) resize(widthChars int) {
	if widthChars < minLineWidth {
		widthChars = minLineWidth
	}
	c.lineWidth = widthChars
	c.totalLines = TextSize / widthChars
	c.text = make([]byte, c.totalLines*widthChars)
	for i := range c.text {
		c.text[i] = ' '
	}
	c.current = 0
	c.x = 0
	c.display = 0
}

// CheckResize reflows the ring when the viewport width changes. Existing
// lines re-wrap into the new width; if the reflowed content would overflow
// the ring the oldest lines fall off.
func (c *Console) CheckResize(widthChars int) {
	if widthChars < minLineWidth {
		widthChars = minLineWidth
	}
	if widthChars == c.lineWidth {
		return
	}
	lines := c.Lines()
	stamps := c.times
	c.resize(widthChars)
	for _, line := range lines {
		c.Print(line+"\n", 0)
	}
	// Notify stamps survive a resize so live overlay lines don't flicker.
	c.times = stamps
}

// Print appends text at the cursor, wrapping on width and on newlines.
// Word wrap scans ahead: a word longer than the remaining space moves
// whole to the next line.
func (c *Console) Print(s string, nowMs float64) {
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '\n':
			c.lineFeed(nowMs)
		case '\r':
			c.x = 0
		default:
			// Word wrap: a word that fits on a line but not in the space
			// left moves whole to the next line.
			if c.x > 0 {
				wl := wordLen(s[i:])
				if wl > 0 && wl <= c.lineWidth && c.x+wl > c.lineWidth {
					c.lineFeed(nowMs)
				}
			}
			c.text[(c.current%c.totalLines)*c.lineWidth+c.x] = ch
			c.x++
			if c.x >= c.lineWidth {
				c.lineFeed(nowMs)
			}
		}
		c.times[c.current%NumNotifyLines] = nowMs
	}
}

func wordLen(s string) int {
	n := 0
	for n < len(s) && s[n] != ' ' && s[n] != '\n' && s[n] != '\r' {
		n++
	}
	return n
}

func (c *Console) lineFeed(nowMs float64) {
	c.times[c.current%NumNotifyLines] = nowMs
	if c.display == c.current {
		c.display++
	}
	c.current++
	c.x = 0
	row := (c.current % c.totalLines) * c.lineWidth
	for i := 0; i < c.lineWidth; i++ {
		c.text[row+i] = ' '
	}
}

// Line returns one logical line's text, trailing spaces trimmed. Index 0 is
// the oldest retained line.
func (c *Console) Line(idx int) string {
	first := c.firstLine()
	line := first + idx
	if line > c.current {
		return ""
	}
	row := (line % c.totalLines) * c.lineWidth
	return strings.TrimRight(string(c.text[row:row+c.lineWidth]), " ")
}

// NumLines is the count of retained lines including the one being typed.
func (c *Console) NumLines() int {
	return c.current - c.firstLine() + 1
}

func (c *Console) firstLine() int {
	if c.current < c.totalLines {
		return 0
	}
	return c.current - c.totalLines + 1
}

// Lines snapshots the retained scrollback, oldest first, without the
// trailing empty tail.
func (c *Console) Lines() []string {
	n := c.NumLines()
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, c.Line(i))
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}

// Notify returns the recent lines still inside the notify window, oldest
// first, for the in-game overlay.
func (c *Console) Notify(nowMs, notifyTimeMs float64) []string {
	var out []string
	start := c.current - NumNotifyLines + 1
	if start < 0 {
		start = 0
	}
	for line := start; line <= c.current; line++ {
		stamp := c.times[line%NumNotifyLines]
		if stamp == 0 || nowMs-stamp >= notifyTimeMs {
			continue
		}
		row := (line % c.totalLines) * c.lineWidth
		text := strings.TrimRight(string(c.text[row:row+c.lineWidth]), " ")
		if text != "" {
			out = append(out, text)
		}
	}
	return out
}

// CursorVisible implements the classic blink: on when (realtime>>8)&1.
func CursorVisible(realtimeMs int) bool {
	return (realtimeMs>>8)&1 == 1
}

// LineWidth reports the current reflow width in cells.
func (c *Console) LineWidth() int { return c.lineWidth }
