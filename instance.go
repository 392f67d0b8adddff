package vectorium

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-lynx/vectorium/loader"
	"github.com/go-lynx/vectorium/packet"
	"github.com/go-lynx/vectorium/plugins"
	"github.com/go-lynx/vectorium/ui"
)

// PluginInstance owns one loaded library, the plugin it produced and the
// plugin's runtime context. The library outlives the plugin and the context.
type PluginInstance struct {
	name     string
	lib      loader.Library
	plugin   plugins.Plugin
	ctx      *plugins.RuntimeContext
	desc     *plugins.Descriptor
	loadedAt time.Time

	// mu serializes frame calls with teardown.
	mu       sync.Mutex
	closed   bool
	closeErr error

	// closing is set before teardown starts and is read without mu by the
	// packet receiver adapter.
	closing atomic.Bool
}

// newPluginInstance refuses to build an instance with a missing part.
func newPluginInstance(lib loader.Library, plugin plugins.Plugin, ctx *plugins.RuntimeContext, name string) (*PluginInstance, error) {
	if lib == nil || plugin == nil || ctx == nil {
		return nil, plugins.NewPluginError(name, "instantiate", "library, plugin and context are required", plugins.ErrNilInstancePart)
	}
	return &PluginInstance{
		name:     name,
		lib:      lib,
		plugin:   plugin,
		ctx:      ctx,
		loadedAt: time.Now(),
	}, nil
}

func (i *PluginInstance) Name() string { return i.name }

func (i *PluginInstance) Plugin() plugins.Plugin { return i.plugin }

func (i *PluginInstance) Context() *plugins.RuntimeContext { return i.ctx }

// Descriptor returns the metadata the library exported at load time.
func (i *PluginInstance) Descriptor() *plugins.Descriptor { return i.desc }

func (i *PluginInstance) LoadedAt() time.Time { return i.loadedAt }

// Path returns the library path.
func (i *PluginInstance) Path() string { return i.lib.Path() }

func (i *PluginInstance) EnableDebugLogging() { i.ctx.Logger().EnableDebugLogging() }

func (i *PluginInstance) DisableDebugLogging() { i.ctx.Logger().DisableDebugLogging() }

func (i *PluginInstance) IsDebugLogging() bool { return i.ctx.Logger().IsDebugLoggingEnabled() }

// Close tears the instance down: packet handlers first, then the plugin's
// unload hook, then the context's overrides, then the library. Calling
// Close again returns the first result.
//
// Dispatch runs on a snapshot of the handler list, so a dispatch that
// started on another goroutine before Close may still reach one of the
// plugin's typed handlers while Close runs. The OnDataPacket adapter
// skips the plugin once Close has begun.
func (i *PluginInstance) Close() error {
	i.closing.Store(true)
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return i.closeErr
	}
	i.closed = true

	i.ctx.UnregisterHandlers()
	if err := safeUnload(i.name, i.plugin); err != nil {
		i.closeErr = err
	}
	i.ctx.Close()
	if err := i.lib.Close(); err != nil && i.closeErr == nil {
		i.closeErr = plugins.NewPluginError(i.name, "close library", err.Error(), err)
	}
	return i.closeErr
}

// receive adapts a PacketReceiver to a handler that goes quiet once Close
// has begun.
func (i *PluginInstance) receive(r plugins.PacketReceiver) packet.Handler {
	return packet.HandlerFunc(func(p *packet.Packet) error {
		if i.closing.Load() {
			return nil
		}
		return r.OnDataPacket(p)
	})
}

// Closed reports whether Close has run.
func (i *PluginInstance) Closed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.closed
}

// tick runs the plugin's Tick unless the instance has been closed.
func (i *PluginInstance) tick() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	return safeTick(i.name, i.plugin)
}

// Render draws the plugin's window on s when it has a visible one. A panic
// inside OnRender is recovered and reported as an error.
func (i *PluginInstance) Render(s ui.Surface) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	w := plugins.WindowOf(i.plugin)
	if !w.HasUIWindow() || !w.IsUIWindowVisible() {
		return nil
	}
	return safeRender(i.name, w, s)
}

// Window returns the plugin's UI capability.
func (i *PluginInstance) Window() plugins.UIWindow { return plugins.WindowOf(i.plugin) }

// ToggleWindow flips the plugin window's visibility and reports the new
// state. Plugins without a window report false.
func (i *PluginInstance) ToggleWindow() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	w := plugins.WindowOf(i.plugin)
	if i.closed || !w.HasUIWindow() {
		return false
	}
	w.ToggleUIWindow()
	return w.IsUIWindowVisible()
}

// WindowState reports the window title and visibility; ok is false for
// plugins without a window.
func (i *PluginInstance) WindowState() (title string, visible, ok bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	w := plugins.WindowOf(i.plugin)
	if i.closed || !w.HasUIWindow() {
		return "", false, false
	}
	return w.UIWindowTitle(), w.IsUIWindowVisible(), true
}

// Health returns the plugin's own report, or a healthy one for plugins
// that do not report. A panicking reporter is unhealthy.
func (i *PluginInstance) Health() plugins.HealthReport {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return plugins.HealthReport{Status: plugins.HealthUnhealthy, Message: "unloaded", Timestamp: time.Now()}
	}
	h, ok := i.plugin.(plugins.HealthReporter)
	if !ok {
		return plugins.HealthReport{Status: plugins.HealthHealthy, Timestamp: time.Now()}
	}
	rep, err := safeHealth(i.name, h)
	if err != nil {
		return plugins.HealthReport{Status: plugins.HealthUnhealthy, Message: err.Error(), Timestamp: time.Now()}
	}
	if rep.Timestamp.IsZero() {
		rep.Timestamp = time.Now()
	}
	return rep
}
