package plugins

import (
	"github.com/go-lynx/vectorium/packet"
	"github.com/go-lynx/vectorium/service"
)

// GetService resolves T through ctx and wraps the result in a Proxy. For
// types with a null object the proxy is always safe to call.
func GetService[T any](ctx Context) service.Proxy[T] {
	svc, ok := ctx.LookupService(TypeOf[T]())
	return service.NewProxy[T](svc, ok)
}

// HasService reports whether ctx can resolve a live T.
func HasService[T any](ctx Context) bool {
	return ctx.HasService(TypeOf[T]())
}

// SetLocalService installs a plugin-private T, visible only through ctx.
func SetLocalService[T any](ctx Context, svc T) {
	ctx.SetLocalService(TypeOf[T](), svc)
}

// RegisterTypedHandler subscribes fn to packets of type T, owned by ctx's plugin.
func RegisterTypedHandler[T any](ctx Context, fn func(T) error) {
	ctx.RegisterHandler(TypeOf[T](), packet.Typed(fn))
}

// Dispatch wraps v in a packet and dispatches it through ctx.
func Dispatch[T any](ctx Context, v T) {
	ctx.Dispatch(packet.New(v))
}
