package sink

import (
	"bytes"
	"strings"
	"sync"
)

// Capture keeps the last N lines of the job output in a circular buffer. Thread safe.
type Capture struct {
	maxLines int
	lines    []string
	partial  []byte // incomplete last line
	mu       sync.Mutex
}

// NewCapture makes io.Writer capturing up to maxLines last lines, zero disables capturing
func NewCapture(maxLines int) *Capture {
	return &Capture{maxLines: maxLines}
}

// Write satisfies io.Writer. A line split between writes is joined before it is stored.
func (c *Capture) Write(p []byte) (int, error) {
	if c.maxLines <= 0 {
		return len(p), nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	data := append(c.partial, p...)
	c.partial = nil
	for len(data) > 0 {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			c.partial = append([]byte(nil), data...)
			break
		}
		c.add(string(data[:idx]))
		data = data[idx+1:]
	}
	return len(p), nil
}

func (c *Capture) add(line string) {
	if line == "" {
		return
	}
	if len(c.lines) >= c.maxLines {
		c.lines = c.lines[1:]
	}
	c.lines = append(c.lines, line)
}

// Output returns captured lines joined with \n, including an incomplete last line
func (c *Capture) Output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines := c.lines
	if len(c.partial) > 0 {
		lines = append(append([]string(nil), lines...), string(c.partial))
		if len(lines) > c.maxLines {
			lines = lines[1:]
		}
	}
	return strings.Join(lines, "\n")
}
