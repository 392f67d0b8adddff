package plugins

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/go-lynx/vectorium/log"
	"github.com/go-lynx/vectorium/packet"
	"github.com/go-lynx/vectorium/service"
	"github.com/go-lynx/vectorium/ui"
)

// Context is the single object a plugin receives from the host. Every host
// capability a plugin uses is reached through it.
type Context interface {
	// Name returns the owning plugin's name.
	Name() string

	// LookupService resolves t from the plugin's local overrides, then from
	// the shared container.
	LookupService(t reflect.Type) (any, bool)
	HasService(t reflect.Type) bool
	SetLocalService(t reflect.Type, svc any)
	RemoveLocalService(t reflect.Type)

	// Dispatch publishes p on the data bus. Packets without payload are dropped.
	Dispatch(p *packet.Packet)
	RegisterHandler(t reflect.Type, h packet.Handler)
	RegisterWildcardHandler(h packet.Handler)
	UnregisterHandlers()

	Logger() service.Logger
	Log(level log.Level, msg string)
	Logf(level log.Level, format string, args ...any)

	UIContext() *ui.Handle
	SetUIContext(h *ui.Handle) bool
}

// UIAccessors are the host-supplied functions through which a context
// reaches the shared UI handle.
type UIAccessors struct {
	Get func() *ui.Handle
	Set func(*ui.Handle) bool
}

// RuntimeContext is the host's Context implementation, one per loaded plugin.
type RuntimeContext struct {
	name      string
	container *service.Container
	registry  *packet.Registry
	logger    service.Logger

	mu    sync.RWMutex
	local map[reflect.Type]any

	// lifeMu is held for reading across every registration so that Close
	// never interleaves with one.
	lifeMu sync.RWMutex
	closed bool

	uiMu sync.RWMutex
	ui   UIAccessors
}

// NewRuntimeContext wires a context for plugin name. A nil container,
// registry or logger is a host bug and panics.
func NewRuntimeContext(name string, container *service.Container, registry *packet.Registry, logger service.Logger) *RuntimeContext {
	if container == nil || registry == nil || logger == nil {
		panic(fmt.Sprintf("plugins: runtime context for %q needs a container, a registry and a logger", name))
	}
	return &RuntimeContext{
		name:      name,
		container: container,
		registry:  registry,
		logger:    logger,
		local:     make(map[reflect.Type]any),
	}
}

// PopulateServices copies the commonly used shared services into the local
// map. The logger slot receives the plugin's scoped logger so that anything
// the plugin logs through GetService[service.Logger] stays attributed to it.
func (c *RuntimeContext) PopulateServices() {
	if c.container.Has(TypeOf[service.Logger]()) {
		c.SetLocalService(TypeOf[service.Logger](), c.logger)
	}
	for _, t := range []reflect.Type{TypeOf[service.RestClient](), TypeOf[service.UI]()} {
		if svc, ok := c.container.Lookup(t); ok {
			c.SetLocalService(t, svc)
		}
	}
}

// SetUIAccessors installs the host's UI accessor functions.
func (c *RuntimeContext) SetUIAccessors(a UIAccessors) {
	c.uiMu.Lock()
	c.ui = a
	c.uiMu.Unlock()
	c.Log(log.DebugLevel, "UI context accessors set")
}

func (c *RuntimeContext) Name() string { return c.name }

func (c *RuntimeContext) LookupService(t reflect.Type) (any, bool) {
	c.mu.RLock()
	svc, ok := c.local[t]
	c.mu.RUnlock()
	if ok {
		return svc, true
	}
	return c.container.Lookup(t)
}

func (c *RuntimeContext) HasService(t reflect.Type) bool {
	_, ok := c.LookupService(t)
	return ok
}

func (c *RuntimeContext) SetLocalService(t reflect.Type, svc any) {
	if t == nil || svc == nil {
		return
	}
	c.lifeMu.RLock()
	defer c.lifeMu.RUnlock()
	if c.closed {
		return
	}
	c.mu.Lock()
	c.local[t] = svc
	c.mu.Unlock()
}

func (c *RuntimeContext) RemoveLocalService(t reflect.Type) {
	c.mu.Lock()
	delete(c.local, t)
	c.mu.Unlock()
}

// ClearLocalServices drops every override; called on unload.
func (c *RuntimeContext) ClearLocalServices() {
	c.mu.Lock()
	c.local = make(map[reflect.Type]any)
	c.mu.Unlock()
}

func (c *RuntimeContext) Dispatch(p *packet.Packet) {
	if p.Empty() || c.Closed() {
		return
	}
	c.registry.Dispatch(p)
}

func (c *RuntimeContext) RegisterHandler(t reflect.Type, h packet.Handler) {
	c.lifeMu.RLock()
	defer c.lifeMu.RUnlock()
	if c.closed {
		c.Logf(log.WarnLevel, "ignoring handler for %s registered after teardown", t)
		return
	}
	c.registry.RegisterHandler(t, h, c.name)
	c.Logf(log.DebugLevel, "registered handler for %s", t)
}

func (c *RuntimeContext) RegisterWildcardHandler(h packet.Handler) {
	c.lifeMu.RLock()
	defer c.lifeMu.RUnlock()
	if c.closed {
		c.Log(log.WarnLevel, "ignoring wildcard handler registered after teardown")
		return
	}
	c.registry.RegisterWildcardHandler(h, c.name)
	c.Log(log.DebugLevel, "registered wildcard handler")
}

// Close removes the plugin's handlers and overrides and turns later
// registrations, overrides and dispatches into no-ops. It is idempotent.
func (c *RuntimeContext) Close() {
	c.lifeMu.Lock()
	c.closed = true
	c.UnregisterHandlers()
	c.ClearLocalServices()
	c.lifeMu.Unlock()
}

// Closed reports whether Close has run.
func (c *RuntimeContext) Closed() bool {
	c.lifeMu.RLock()
	defer c.lifeMu.RUnlock()
	return c.closed
}

func (c *RuntimeContext) UnregisterHandlers() {
	n := c.registry.UnregisterForOwner(c.name)
	c.Logf(log.DebugLevel, "unregistered %d handlers", n)
}

func (c *RuntimeContext) Logger() service.Logger { return c.logger }

func (c *RuntimeContext) Log(level log.Level, msg string) {
	c.logger.Log(level, msg)
}

func (c *RuntimeContext) Logf(level log.Level, format string, args ...any) {
	c.logger.Logf(level, format, args...)
}

func (c *RuntimeContext) UIContext() *ui.Handle {
	c.uiMu.RLock()
	get := c.ui.Get
	c.uiMu.RUnlock()
	if get == nil {
		c.Log(log.WarnLevel, "no UI context accessor available")
		return nil
	}
	return get()
}

func (c *RuntimeContext) SetUIContext(h *ui.Handle) bool {
	c.uiMu.RLock()
	set := c.ui.Set
	c.uiMu.RUnlock()
	if set == nil {
		c.Log(log.WarnLevel, "no UI context setter available")
		return false
	}
	return set(h)
}
