package log

import (
	"strings"
	"sync"
)

// Ring is a fixed capacity in-memory sink holding the most recent log lines.
// It backs the host's log window.
type Ring struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

// NewRing returns a Ring keeping at most capacity lines.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 512
	}
	return &Ring{lines: make([]string, capacity)}
}

// Write implements io.Writer. Each call may carry several newline separated lines.
func (r *Ring) Write(p []byte) (int, error) {
	text := strings.TrimRight(string(p), "\n")
	if text == "" {
		return len(p), nil
	}
	r.mu.Lock()
	for _, line := range strings.Split(text, "\n") {
		r.lines[r.next] = line
		r.next = (r.next + 1) % len(r.lines)
		if r.next == 0 {
			r.full = true
		}
	}
	r.mu.Unlock()
	return len(p), nil
}

// Lines returns the buffered lines, oldest first.
func (r *Ring) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		return append([]string(nil), r.lines[:r.next]...)
	}
	out := make([]string, 0, len(r.lines))
	out = append(out, r.lines[r.next:]...)
	return append(out, r.lines[:r.next]...)
}

// Clear drops all buffered lines.
func (r *Ring) Clear() {
	r.mu.Lock()
	for i := range r.lines {
		r.lines[i] = ""
	}
	r.next = 0
	r.full = false
	r.mu.Unlock()
}
