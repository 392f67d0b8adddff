package packet

import (
	"errors"
	"reflect"
	"sort"
	"sync"

	"github.com/go-lynx/vectorium/log"
	"github.com/go-lynx/vectorium/observability/metrics"
)

type entry struct {
	handler Handler
	owner   string
}

// Registry is a type-keyed and wildcard fan-out bus. Dispatch is best
// effort: every interested handler is called once, in registration order,
// whatever earlier handlers returned.
type Registry struct {
	mu       sync.RWMutex
	typed    map[reflect.Type][]entry
	wildcard []entry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{typed: make(map[reflect.Type][]entry)}
}

// DispatchResult summarises one Dispatch call.
type DispatchResult struct {
	Invoked  int
	Rejected int
	Panicked int
}

// RegisterHandler appends h to the handlers for t, tagged with owner.
func (r *Registry) RegisterHandler(t reflect.Type, h Handler, owner string) {
	if t == nil || isNil(h) {
		return
	}
	r.mu.Lock()
	r.typed[t] = append(r.typed[t], entry{handler: h, owner: owner})
	r.mu.Unlock()
}

// RegisterWildcardHandler appends h to the handlers called for every packet.
func (r *Registry) RegisterWildcardHandler(h Handler, owner string) {
	if isNil(h) {
		return
	}
	r.mu.Lock()
	r.wildcard = append(r.wildcard, entry{handler: h, owner: owner})
	r.mu.Unlock()
}

// Register is the generic form of RegisterHandler for a typed function.
func Register[T any](r *Registry, fn func(T) error, owner string) {
	r.RegisterHandler(reflect.TypeFor[T](), Typed(fn), owner)
}

// UnregisterForOwner removes every typed and wildcard handler tagged with
// owner and returns how many were removed. Types left without handlers are
// pruned. A Dispatch already running on another goroutine keeps its
// snapshot and may still call the removed handlers.
func (r *Registry) UnregisterForOwner(owner string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for t, list := range r.typed {
		kept := list[:0:0]
		for _, e := range list {
			if e.owner == owner {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(r.typed, t)
		} else {
			r.typed[t] = kept
		}
	}

	kept := r.wildcard[:0:0]
	for _, e := range r.wildcard {
		if e.owner == owner {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	r.wildcard = kept
	return removed
}

// Dispatch delivers p to the handlers registered for its type, then to the
// wildcard handlers. Handlers run outside the lock on a snapshot, so they may
// register handlers or dispatch further packets themselves.
func (r *Registry) Dispatch(p *Packet) DispatchResult {
	var res DispatchResult
	if p == nil {
		return res
	}

	r.mu.RLock()
	targets := make([]entry, 0, len(r.typed[p.typ])+len(r.wildcard))
	targets = append(targets, r.typed[p.typ]...)
	targets = append(targets, r.wildcard...)
	r.mu.RUnlock()

	metrics.PacketsDispatched.WithLabelValues(typeLabel(p.typ)).Inc()

	for _, e := range targets {
		if isNil(e.handler) {
			continue
		}
		res.Invoked++
		switch err := invoke(e, p); {
		case err == nil:
			metrics.HandlerCalls.WithLabelValues(e.owner, metrics.ResultOK).Inc()
		case errors.Is(err, errHandlerPanic):
			res.Panicked++
			metrics.HandlerCalls.WithLabelValues(e.owner, metrics.ResultPanic).Inc()
		default:
			res.Rejected++
			metrics.HandlerCalls.WithLabelValues(e.owner, metrics.ResultRejected).Inc()
			log.Debugf("[packet] handler of %q rejected %s: %v", e.owner, p, err)
		}
	}
	return res
}

var errHandlerPanic = errors.New("handler panic")

func invoke(e entry, p *Packet) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Errorf("[packet] handler of %q panicked on %s: %v\n%s", e.owner, p, rec, log.Stack())
			err = errHandlerPanic
		}
	}()
	return e.handler.Handle(p)
}

// Types returns every type with at least one typed handler, sorted by name.
func (r *Registry) Types() []reflect.Type {
	r.mu.RLock()
	out := make([]reflect.Type, 0, len(r.typed))
	for t := range r.typed {
		out = append(out, t)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// HandlerCount returns how many typed handlers are registered for t.
func (r *Registry) HandlerCount(t reflect.Type) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.typed[t])
}

// WildcardCount returns how many wildcard handlers are registered.
func (r *Registry) WildcardCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.wildcard)
}

// OwnerCount returns how many handlers, typed and wildcard, owner holds.
func (r *Registry) OwnerCount(owner string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, list := range r.typed {
		for _, e := range list {
			if e.owner == owner {
				n++
			}
		}
	}
	for _, e := range r.wildcard {
		if e.owner == owner {
			n++
		}
	}
	return n
}

func isNil(h Handler) bool {
	if h == nil {
		return true
	}
	f, ok := h.(HandlerFunc)
	return ok && f == nil
}

func typeLabel(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
