// Package plugintest provides an in-memory plugins.Context for unit testing
// plugins without a host.
package plugintest

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/go-lynx/vectorium/log"
	"github.com/go-lynx/vectorium/packet"
	"github.com/go-lynx/vectorium/plugins"
	"github.com/go-lynx/vectorium/service"
	"github.com/go-lynx/vectorium/ui"
)

// LogLine is one message captured by MockLogger.
type LogLine struct {
	Level   log.Level
	Message string
}

// MockLogger records every message it receives, debug included.
type MockLogger struct {
	mu    sync.Mutex
	name  string
	lines []LogLine
	debug bool
}

func (m *MockLogger) Log(level log.Level, msg string) {
	m.mu.Lock()
	m.lines = append(m.lines, LogLine{Level: level, Message: msg})
	m.mu.Unlock()
}

func (m *MockLogger) Logf(level log.Level, format string, args ...any) {
	m.Log(level, fmt.Sprintf(format, args...))
}

func (m *MockLogger) EnableDebugLogging() {
	m.mu.Lock()
	m.debug = true
	m.mu.Unlock()
}

func (m *MockLogger) DisableDebugLogging() {
	m.mu.Lock()
	m.debug = false
	m.mu.Unlock()
}

func (m *MockLogger) IsDebugLoggingEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.debug
}

func (m *MockLogger) SetPluginName(name string) {
	m.mu.Lock()
	m.name = name
	m.mu.Unlock()
}

// Lines returns a copy of the captured messages.
func (m *MockLogger) Lines() []LogLine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LogLine(nil), m.lines...)
}

// MockContext is a self-contained plugins.Context. Dispatched packets are
// recorded and delivered to handlers registered on the same mock.
type MockContext struct {
	name     string
	logger   *MockLogger
	registry *packet.Registry

	mu         sync.Mutex
	services   map[reflect.Type]any
	dispatched []*packet.Packet
	handle     *ui.Handle
}

var _ plugins.Context = (*MockContext)(nil)

// NewMockContext returns a MockContext for a plugin called name.
func NewMockContext(name string) *MockContext {
	if name == "" {
		name = "MockPlugin"
	}
	return &MockContext{
		name:     name,
		logger:   &MockLogger{name: name},
		registry: packet.NewRegistry(),
		services: make(map[reflect.Type]any),
	}
}

func (m *MockContext) Name() string { return m.name }

func (m *MockContext) LookupService(t reflect.Type) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	svc, ok := m.services[t]
	return svc, ok
}

func (m *MockContext) HasService(t reflect.Type) bool {
	_, ok := m.LookupService(t)
	return ok
}

func (m *MockContext) SetLocalService(t reflect.Type, svc any) {
	m.mu.Lock()
	m.services[t] = svc
	m.mu.Unlock()
}

func (m *MockContext) RemoveLocalService(t reflect.Type) {
	m.mu.Lock()
	delete(m.services, t)
	m.mu.Unlock()
}

func (m *MockContext) Dispatch(p *packet.Packet) {
	if p.Empty() {
		return
	}
	m.mu.Lock()
	m.dispatched = append(m.dispatched, p)
	m.mu.Unlock()
	m.registry.Dispatch(p)
}

func (m *MockContext) RegisterHandler(t reflect.Type, h packet.Handler) {
	m.registry.RegisterHandler(t, h, m.name)
}

func (m *MockContext) RegisterWildcardHandler(h packet.Handler) {
	m.registry.RegisterWildcardHandler(h, m.name)
}

func (m *MockContext) UnregisterHandlers() {
	m.registry.UnregisterForOwner(m.name)
}

func (m *MockContext) Logger() service.Logger { return m.logger }

func (m *MockContext) Log(level log.Level, msg string) { m.logger.Log(level, msg) }

func (m *MockContext) Logf(level log.Level, format string, args ...any) {
	m.logger.Logf(level, format, args...)
}

func (m *MockContext) UIContext() *ui.Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle
}

func (m *MockContext) SetUIContext(h *ui.Handle) bool {
	m.mu.Lock()
	m.handle = h
	m.mu.Unlock()
	return true
}

// MockLogger returns the context's capturing logger.
func (m *MockContext) MockLogger() *MockLogger { return m.logger }

// Dispatched returns every packet dispatched through the mock.
func (m *MockContext) Dispatched() []*packet.Packet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*packet.Packet(nil), m.dispatched...)
}

// HandlerCount returns how many handlers the plugin registered for t.
func (m *MockContext) HandlerCount(t reflect.Type) int {
	return m.registry.HandlerCount(t)
}

// Registry exposes the mock's bus, e.g. to inject packets from a test.
func (m *MockContext) Registry() *packet.Registry { return m.registry }
