package packet

// Handler consumes dispatched packets. A returned error marks the packet as
// rejected by this handler only; dispatch carries on.
type Handler interface {
	Handle(p *Packet) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(p *Packet) error

func (f HandlerFunc) Handle(p *Packet) error {
	return f(p)
}

// typed adapts a strongly typed function to the type-erased Handler.
type typed[T any] struct {
	fn func(T) error
}

// Typed wraps fn so it can be registered on the bus. Packets of another
// type are rejected with ErrBadCast.
func Typed[T any](fn func(T) error) Handler {
	return typed[T]{fn: fn}
}

func (t typed[T]) Handle(p *Packet) error {
	v, err := As[T](p)
	if err != nil {
		return err
	}
	return t.fn(v)
}
