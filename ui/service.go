package ui

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-lynx/vectorium/log"
)

// Service shares the host's Handle with plugins and runs the render
// callbacks they register. A panicking callback is reported and skipped.
type Service struct {
	mu        sync.RWMutex
	handle    *Handle
	callbacks map[string]func(Surface)
	onError   func(string)
}

// NewService returns a Service lending h.
func NewService(h *Handle) *Service {
	return &Service{handle: h, callbacks: make(map[string]func(Surface))}
}

func (s *Service) Context() *Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handle
}

func (s *Service) SetContext(h *Handle) {
	s.mu.Lock()
	s.handle = h
	s.mu.Unlock()
}

func (s *Service) IsContextValid() bool { return s.Context() != nil }

func (s *Service) RegisterPluginUI(plugin string, render func(Surface)) {
	if render == nil {
		return
	}
	s.mu.Lock()
	s.callbacks[plugin] = render
	s.mu.Unlock()
}

func (s *Service) UnregisterPluginUI(plugin string) {
	s.mu.Lock()
	delete(s.callbacks, plugin)
	s.mu.Unlock()
}

func (s *Service) RegisteredPluginCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.callbacks)
}

func (s *Service) SetErrorCallback(cb func(string)) {
	s.mu.Lock()
	s.onError = cb
	s.mu.Unlock()
}

// RenderPluginUIs invokes every registered callback in plugin name order.
func (s *Service) RenderPluginUIs(surface Surface) {
	s.mu.RLock()
	names := make([]string, 0, len(s.callbacks))
	for n := range s.callbacks {
		names = append(names, n)
	}
	cbs := make(map[string]func(Surface), len(s.callbacks))
	for n, cb := range s.callbacks {
		cbs[n] = cb
	}
	s.mu.RUnlock()
	sort.Strings(names)

	for _, n := range names {
		cb := cbs[n]
		s.guard(n, func() { cb(surface) })
	}
}

// ExecuteWithContext runs fn with the current handle, reporting false when
// the handle is missing or fn panics.
func (s *Service) ExecuteWithContext(fn func(*Handle), operation string) bool {
	h := s.Context()
	if h == nil {
		s.report(fmt.Sprintf("%s: no UI context", operation))
		return false
	}
	return s.guard(operation, func() { fn(h) })
}

func (s *Service) guard(name string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			s.report(fmt.Sprintf("%s: panic during render: %v", name, r))
		}
	}()
	fn()
	return true
}

func (s *Service) report(msg string) {
	log.Errorf("[ui] %s", msg)
	s.mu.RLock()
	cb := s.onError
	s.mu.RUnlock()
	if cb != nil {
		cb(msg)
	}
}

// DiagnosticInfo summarises the service state.
func (s *Service) DiagnosticInfo() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var b strings.Builder
	if s.handle != nil {
		fmt.Fprintf(&b, "context=%s frame=%d", s.handle.Name(), s.handle.Frame())
	} else {
		b.WriteString("context=<nil>")
	}
	fmt.Fprintf(&b, " callbacks=%d", len(s.callbacks))
	return b.String()
}
