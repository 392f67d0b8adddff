package service

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// ErrServiceUnavailable is the panic value of Proxy.Get when neither a live
// instance nor a null object exists for the requested type.
var ErrServiceUnavailable = errors.New("service unavailable")

// Proxy gives safe access to a service that may be missing. When the live
// instance is absent and a null object is registered for T, Get returns the
// null object so routine calls need no availability checks. Types without a
// null object fail loudly instead.
type Proxy[T any] struct {
	live      T
	available bool
	null      T
	hasNull   bool
}

// NewProxy builds a Proxy from a lookup result. A svc that does not
// implement T is treated as unavailable.
func NewProxy[T any](svc any, ok bool) Proxy[T] {
	p := Proxy[T]{}
	if ok && svc != nil {
		if v, isT := svc.(T); isT {
			p.live = v
			p.available = true
		}
	}
	if n, found := nullFor[T](); found {
		p.null = n
		p.hasNull = true
	}
	return p
}

// Available reports whether a live instance backs the proxy.
func (p Proxy[T]) Available() bool { return p.available }

// HasFallback reports whether a null object stands in when unavailable.
func (p Proxy[T]) HasFallback() bool { return p.hasNull }

// Get returns the live instance, or the null object. It panics with
// ErrServiceUnavailable when T has neither; guard such types with Available.
func (p Proxy[T]) Get() T {
	if p.available {
		return p.live
	}
	if p.hasNull {
		return p.null
	}
	panic(fmt.Errorf("%w: %s has no live instance and no null object", ErrServiceUnavailable, reflect.TypeFor[T]()))
}

// TryGet returns the live instance and true, or the zero value and false.
func (p Proxy[T]) TryGet() (T, bool) {
	return p.live, p.available
}

var (
	nullMu   sync.RWMutex
	nullObjs = map[reflect.Type]any{}
)

// RegisterNull installs the null object used for T when no live instance exists.
func RegisterNull[T any](null T) {
	nullMu.Lock()
	nullObjs[reflect.TypeFor[T]()] = null
	nullMu.Unlock()
}

// HasNull reports whether a null object is registered for t.
func HasNull(t reflect.Type) bool {
	nullMu.RLock()
	defer nullMu.RUnlock()
	_, ok := nullObjs[t]
	return ok
}

func nullFor[T any]() (T, bool) {
	nullMu.RLock()
	v, ok := nullObjs[reflect.TypeFor[T]()]
	nullMu.RUnlock()
	if !ok {
		var zero T
		return zero, false
	}
	n, ok := v.(T)
	return n, ok
}
