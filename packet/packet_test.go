package packet

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestPacketAs(t *testing.T) {
	before := time.Now()
	p := New(42)
	if p.Type() != reflect.TypeFor[int]() {
		t.Fatalf("unexpected type %v", p.Type())
	}
	if p.Timestamp().Before(before) {
		t.Fatal("timestamp predates creation")
	}
	v, err := As[int](p)
	if err != nil || v != 42 {
		t.Fatalf("As[int] = %v, %v", v, err)
	}
	if _, err := As[string](p); !errors.Is(err, ErrBadCast) {
		t.Fatalf("expected ErrBadCast, got %v", err)
	}
	if _, err := As[int](nil); !errors.Is(err, ErrBadCast) {
		t.Fatalf("expected ErrBadCast for nil packet, got %v", err)
	}
}

func TestPacketInterfaceTypeIdentity(t *testing.T) {
	var err error = errors.New("x")
	p := New(err)
	if p.Type() != reflect.TypeFor[error]() {
		t.Fatalf("New[error] should be keyed by the interface type, got %v", p.Type())
	}
	d := NewDynamic(err)
	if d.Type() == reflect.TypeFor[error]() {
		t.Fatal("NewDynamic should key by the concrete type")
	}
}

func TestPacketEmpty(t *testing.T) {
	var nilPtr *quote
	var nilPacket *Packet
	cases := []struct {
		name  string
		p     *Packet
		empty bool
	}{
		{"nil packet", nilPacket, true},
		{"nil pointer payload", New(nilPtr), true},
		{"nil slice payload", New([]int(nil)), true},
		{"value payload", New(quote{}), false},
		{"zero int payload", New(0), false},
	}
	for _, c := range cases {
		if got := c.p.Empty(); got != c.empty {
			t.Errorf("%s: Empty() = %v, want %v", c.name, got, c.empty)
		}
	}
}
