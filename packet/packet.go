// Package packet implements the typed publish/subscribe bus plugins use to
// exchange payloads without knowing about each other.
package packet

import (
	"errors"
	"fmt"
	"reflect"
	"time"
)

// ErrBadCast is returned when a packet's payload is not of the requested type.
var ErrBadCast = errors.New("bad cast")

// Packet is an envelope around a shared payload. Its identity is the
// payload type; there is no id or sequence number.
type Packet struct {
	payload any
	typ     reflect.Type
	ts      time.Time
}

// New wraps v in a packet typed as T.
func New[T any](v T) *Packet {
	return &Packet{payload: v, typ: reflect.TypeFor[T](), ts: time.Now()}
}

// NewDynamic wraps v in a packet typed by its dynamic type.
func NewDynamic(v any) *Packet {
	return &Packet{payload: v, typ: reflect.TypeOf(v), ts: time.Now()}
}

// Payload returns the raw payload.
func (p *Packet) Payload() any { return p.payload }

// Type returns the payload type identifier.
func (p *Packet) Type() reflect.Type { return p.typ }

// Timestamp returns the creation time.
func (p *Packet) Timestamp() time.Time { return p.ts }

// Empty reports whether the packet carries no payload.
func (p *Packet) Empty() bool {
	if p == nil || p.payload == nil {
		return true
	}
	v := reflect.ValueOf(p.payload)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func (p *Packet) String() string {
	if p == nil {
		return "packet(<nil>)"
	}
	return fmt.Sprintf("packet(%s @ %s)", p.typ, p.ts.Format(time.RFC3339Nano))
}

// As returns the payload as T, or ErrBadCast when the packet holds another type.
func As[T any](p *Packet) (T, error) {
	var zero T
	if p == nil {
		return zero, fmt.Errorf("%w: nil packet", ErrBadCast)
	}
	if p.typ != reflect.TypeFor[T]() {
		return zero, fmt.Errorf("%w: packet holds %s, not %s", ErrBadCast, p.typ, reflect.TypeFor[T]())
	}
	v, ok := p.payload.(T)
	if !ok {
		return zero, fmt.Errorf("%w: payload is %T", ErrBadCast, p.payload)
	}
	return v, nil
}
