package process

import (
	"strings"
	"sync"
)

// lineTail keeps the most recent N lines of a stream.
type lineTail struct {
	mu    sync.Mutex
	lines []string
	size  int
	head  int
	count int
}

func newLineTail(size int) *lineTail {
	return &lineTail{
		lines: make([]string, size),
		size:  size,
	}
}

// Add records a line, evicting the oldest when full.
func (t *lineTail) Add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lines[t.head] = line
	t.head = (t.head + 1) % t.size
	if t.count < t.size {
		t.count++
	}
}

// Reset clears the tail.
func (t *lineTail) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.head = 0
	t.count = 0
}

// String returns the retained lines in order, newline-joined.
func (t *lineTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.count == 0 {
		return ""
	}

	ordered := make([]string, 0, t.count)
	if t.count < t.size {
		ordered = append(ordered, t.lines[:t.count]...)
	} else {
		ordered = append(ordered, t.lines[t.head:]...)
		ordered = append(ordered, t.lines[:t.head]...)
	}
	return strings.Join(ordered, "\n")
}
