// Package events carries engine lifecycle notifications to host subscribers
// and to plugins implementing an engine event hook.
package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind identifies an engine event.
type Kind uint32

const (
	PluginLoaded Kind = iota + 1
	PluginUnloaded
	PluginLoadFailed
	PluginsDiscovered
	ConfigSaved
	ConfigReloaded
	Shutdown
)

// AllKinds lists every Kind, in declaration order.
var AllKinds = []Kind{
	PluginLoaded,
	PluginUnloaded,
	PluginLoadFailed,
	PluginsDiscovered,
	ConfigSaved,
	ConfigReloaded,
	Shutdown,
}

func (k Kind) String() string {
	switch k {
	case PluginLoaded:
		return "plugin_loaded"
	case PluginUnloaded:
		return "plugin_unloaded"
	case PluginLoadFailed:
		return "plugin_load_failed"
	case PluginsDiscovered:
		return "plugins_discovered"
	case ConfigSaved:
		return "config_saved"
	case ConfigReloaded:
		return "config_reloaded"
	case Shutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("kind(%d)", uint32(k))
	}
}

// Event is one engine notification.
type Event struct {
	ID        string
	Kind      Kind
	Plugin    string
	Message   string
	Err       error
	Data      map[string]any
	Timestamp time.Time
}

// Type returns the event type for kelindar/event compatibility.
func (e Event) Type() uint32 {
	return uint32(e.Kind)
}

// New creates an Event stamped with a fresh id and the current time.
func New(kind Kind, plugin, message string) Event {
	return Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Plugin:    plugin,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// With returns a copy of e carrying key=value in its data map.
func (e Event) With(key string, value any) Event {
	data := make(map[string]any, len(e.Data)+1)
	for k, v := range e.Data {
		data[k] = v
	}
	data[key] = value
	e.Data = data
	return e
}

// WithError returns a copy of e carrying err.
func (e Event) WithError(err error) Event {
	e.Err = err
	return e
}

// Get returns the raw value stored under key.
func (e Event) Get(key string) (any, bool) {
	v, ok := e.Data[key]
	return v, ok
}

// GetAs returns the value stored under key when it has type T.
func GetAs[T any](e Event, key string) (T, bool) {
	var zero T
	v, ok := e.Data[key]
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

func (e Event) String() string {
	if e.Plugin != "" {
		return fmt.Sprintf("%s[%s] %s", e.Kind, e.Plugin, e.Message)
	}
	return fmt.Sprintf("%s %s", e.Kind, e.Message)
}
