// Package plugins defines the contract between the host and a plugin: the
// Plugin interface and its optional capabilities, the Descriptor a library
// exports, and the runtime Context each loaded plugin receives.
package plugins

import (
	"reflect"

	"github.com/go-lynx/vectorium/events"
	"github.com/go-lynx/vectorium/packet"
	"github.com/go-lynx/vectorium/ui"
)

// Plugin is the object a plugin library's factory returns.
type Plugin interface {
	// OnPluginLoad receives the plugin's runtime context. A non-nil error
	// aborts the load; the host then calls OnPluginUnload and discards the plugin.
	OnPluginLoad(ctx Context) error

	// OnPluginUnload releases everything the plugin acquired.
	OnPluginUnload()

	// Tick is called once per host frame on the host's main goroutine.
	Tick()

	// Type identifies the plugin's concrete type.
	Type() reflect.Type
}

// PacketReceiver is implemented by plugins that want packets pushed to a
// single method rather than registering handlers.
type PacketReceiver interface {
	OnDataPacket(p *packet.Packet) error
}

// EngineEventHandler is implemented by plugins that observe engine events.
type EngineEventHandler interface {
	OnEngineEvent(ev events.Event)
}

// UIWindow is implemented by plugins that render a window.
type UIWindow interface {
	HasUIWindow() bool
	UIWindowTitle() string
	IsUIWindowVisible() bool
	SetUIWindowVisible(visible bool)
	ToggleUIWindow()
	OnRender(s ui.Surface)
}

// noWindow is the UI capability of plugins that do not implement UIWindow.
type noWindow struct{}

func (noWindow) HasUIWindow() bool       { return false }
func (noWindow) UIWindowTitle() string   { return "" }
func (noWindow) IsUIWindowVisible() bool { return false }
func (noWindow) SetUIWindowVisible(bool) {}
func (noWindow) ToggleUIWindow()         {}
func (noWindow) OnRender(ui.Surface)     {}

// WindowOf returns p's UI capability, or a "no UI" stand-in.
func WindowOf(p Plugin) UIWindow {
	if w, ok := p.(UIWindow); ok {
		return w
	}
	return noWindow{}
}

// TypeOf returns the type identifier of T.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

// SecurityLevel is the tier a plugin requests. It is recorded but not enforced.
type SecurityLevel int

const (
	SecurityTrusted SecurityLevel = iota
	SecurityStandard
	SecurityRestricted
)

func (s SecurityLevel) String() string {
	switch s {
	case SecurityTrusted:
		return "trusted"
	case SecurityStandard:
		return "standard"
	case SecurityRestricted:
		return "restricted"
	default:
		return "unknown"
	}
}
