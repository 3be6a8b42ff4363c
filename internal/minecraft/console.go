package minecraft

import "sync"

// ConsoleBuffer keeps the most recent console lines of one server.
type ConsoleBuffer struct {
	mu    sync.RWMutex
	lines []string
	max   int
}

// NewConsoleBuffer creates a buffer holding at most max lines (default 1000).
func NewConsoleBuffer(max int) *ConsoleBuffer {
	if max <= 0 {
		max = 1000
	}
	return &ConsoleBuffer{max: max}
}

// Append adds a line, dropping the oldest when full.
func (b *ConsoleBuffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.lines) >= b.max {
		copy(b.lines, b.lines[1:])
		b.lines[len(b.lines)-1] = line
		return
	}
	b.lines = append(b.lines, line)
}

// Lines returns a copy of the buffered lines, oldest first.
func (b *ConsoleBuffer) Lines() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// Reset drops every line.
func (b *ConsoleBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = b.lines[:0]
}
