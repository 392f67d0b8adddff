// Package service holds the host's type-keyed service container, the
// safe-access Proxy and the capability interfaces plugins consume.
package service

import (
	"reflect"
	"sort"
	"sync"
)

// Container is a process-wide registry of shared service instances keyed by
// their interface type. It knows nothing about plugins.
type Container struct {
	mu       sync.RWMutex
	services map[reflect.Type]any
}

// NewContainer returns an empty Container.
func NewContainer() *Container {
	return &Container{services: make(map[reflect.Type]any)}
}

// Register stores svc under t, replacing any previous instance.
func (c *Container) Register(t reflect.Type, svc any) {
	if t == nil || svc == nil {
		return
	}
	c.mu.Lock()
	c.services[t] = svc
	c.mu.Unlock()
}

// Unregister removes the instance stored under t and reports whether one existed.
func (c *Container) Unregister(t reflect.Type) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.services[t]
	delete(c.services, t)
	return ok
}

// Lookup returns the instance stored under t. It never constructs one.
func (c *Container) Lookup(t reflect.Type) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	svc, ok := c.services[t]
	return svc, ok
}

// Has reports whether an instance is stored under t.
func (c *Container) Has(t reflect.Type) bool {
	_, ok := c.Lookup(t)
	return ok
}

// Types returns the registered type keys sorted by name.
func (c *Container) Types() []reflect.Type {
	c.mu.RLock()
	out := make([]reflect.Type, 0, len(c.services))
	for t := range c.services {
		out = append(out, t)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Clear drops every registered instance.
func (c *Container) Clear() {
	c.mu.Lock()
	c.services = make(map[reflect.Type]any)
	c.mu.Unlock()
}

// Register stores svc in c under the interface type T.
func Register[T any](c *Container, svc T) {
	c.Register(reflect.TypeFor[T](), svc)
}

// Unregister removes the instance stored under T.
func Unregister[T any](c *Container) bool {
	return c.Unregister(reflect.TypeFor[T]())
}

// Resolve wraps the container's instance of T, if any, in a Proxy.
func Resolve[T any](c *Container) Proxy[T] {
	svc, ok := c.Lookup(reflect.TypeFor[T]())
	return NewProxy[T](svc, ok)
}
