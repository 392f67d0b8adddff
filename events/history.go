package events

import "sync"

// History keeps the most recent events in arrival order.
type History struct {
	mu     sync.RWMutex
	events []Event
	max    int
}

// NewHistory returns a History holding at most maxSize events.
func NewHistory(maxSize int) *History {
	if maxSize <= 0 {
		maxSize = 256
	}
	return &History{events: make([]Event, 0, maxSize), max: maxSize}
}

// Add appends ev, evicting the oldest event when full.
func (h *History) Add(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.events) == h.max {
		copy(h.events, h.events[1:])
		h.events = h.events[:len(h.events)-1]
	}
	h.events = append(h.events, ev)
}

// Recent returns up to n events, newest last. n <= 0 returns all.
func (h *History) Recent(n int) []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n <= 0 || n > len(h.events) {
		n = len(h.events)
	}
	return append([]Event(nil), h.events[len(h.events)-n:]...)
}

// ByPlugin returns the retained events about plugin.
func (h *History) ByPlugin(plugin string) []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []Event
	for _, ev := range h.events {
		if ev.Plugin == plugin {
			out = append(out, ev)
		}
	}
	return out
}

// Len returns the number of retained events.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.events)
}
