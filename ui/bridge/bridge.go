// Package bridge connects the engine to a UI surface: the configuration
// panel, the plugin and window menus, the loaded-plugin sidebar and the
// plugin windows themselves.
package bridge

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/go-lynx/vectorium"
	"github.com/go-lynx/vectorium/log"
	"github.com/go-lynx/vectorium/ui"
)

// ConfigPanel is the editable view of the manager's settings.
type ConfigPanel struct {
	AutoScan          bool
	AutoScanRunning   bool
	ScanInterval      time.Duration
	PluginDirectory   string
	WatchPluginFolder bool
	ConfigPath        string
}

// PluginMenuItem is one entry of the plugin menu.
type PluginMenuItem struct {
	Name   string
	Path   string
	Loaded bool
	Error  string
}

// WindowMenuItem is one entry of the windows menu.
type WindowMenuItem struct {
	Plugin  string
	Title   string
	Visible bool
}

// Bridge drives the host UI from an Engine.
type Bridge struct {
	engine *vectorium.Engine
	quit   atomic.Bool
	status atomic.Pointer[string]
}

// New returns a Bridge over e.
func New(e *vectorium.Engine) *Bridge {
	if e == nil {
		panic("bridge: nil engine")
	}
	return &Bridge{engine: e}
}

// ConfigPanel returns the current settings.
func (b *Bridge) ConfigPanel() ConfigPanel {
	m := b.engine.Manager()
	cfg := m.Config()
	return ConfigPanel{
		AutoScan:          cfg.AutoScan,
		AutoScanRunning:   m.AutoScanRunning(),
		ScanInterval:      cfg.ScanInterval(),
		PluginDirectory:   cfg.PluginDirectory,
		WatchPluginFolder: cfg.WatchPluginFolder,
		ConfigPath:        m.ConfigPath(),
	}
}

func (b *Bridge) SetAutoScan(enabled bool) {
	b.engine.Manager().SetAutoScan(enabled)
	b.setStatus(fmt.Sprintf("auto-scan %s", onOff(enabled)))
}

// SetScanInterval sets the auto-scan interval in seconds.
func (b *Bridge) SetScanInterval(seconds int) {
	m := b.engine.Manager()
	m.SetScanInterval(time.Duration(seconds) * time.Second)
	cfg := m.Config()
	b.setStatus(fmt.Sprintf("scan interval %s", cfg.ScanInterval()))
}

func (b *Bridge) SetWatchPluginFolder(enabled bool) {
	b.engine.Manager().SetWatchPluginFolder(enabled)
	b.setStatus(fmt.Sprintf("folder watcher %s", onOff(enabled)))
}

// SaveConfig persists the settings and the loaded set.
func (b *Bridge) SaveConfig() error {
	if err := b.engine.Manager().SaveConfig(); err != nil {
		b.setStatus("save failed: " + err.Error())
		return err
	}
	b.setStatus("config saved")
	return nil
}

// Rescan scans the plugin directory now.
func (b *Bridge) Rescan() ([]string, error) {
	added, err := b.engine.Manager().Scan("")
	if err != nil {
		b.setStatus("scan failed: " + err.Error())
		return nil, err
	}
	b.setStatus(fmt.Sprintf("scan found %d new plugin(s)", len(added)))
	return added, nil
}

// PluginMenu lists every discovered plugin with its load state.
func (b *Bridge) PluginMenu() []PluginMenuItem {
	infos := b.engine.Manager().Discovered()
	items := make([]PluginMenuItem, 0, len(infos))
	for _, info := range infos {
		items = append(items, PluginMenuItem{
			Name:   info.Name,
			Path:   info.Path,
			Loaded: info.Loaded,
			Error:  info.Error,
		})
	}
	return items
}

// TogglePlugin unloads name when loaded and loads it otherwise.
func (b *Bridge) TogglePlugin(name string) error {
	m := b.engine.Manager()
	if m.IsLoaded(name) {
		if err := m.Unload(name); err != nil {
			b.setStatus(fmt.Sprintf("unload %s failed: %v", name, err))
			return err
		}
		b.setStatus("unloaded " + name)
		return nil
	}
	if err := m.Load(m.PathFor(name), name); err != nil {
		b.setStatus(fmt.Sprintf("load %s failed: %v", name, err))
		return err
	}
	b.setStatus("loaded " + name)
	return nil
}

// WindowMenu lists the windows of loaded plugins that have one.
func (b *Bridge) WindowMenu() []WindowMenuItem {
	var items []WindowMenuItem
	for _, inst := range b.engine.Manager().Instances() {
		title, visible, ok := inst.WindowState()
		if !ok {
			continue
		}
		items = append(items, WindowMenuItem{Plugin: inst.Name(), Title: title, Visible: visible})
	}
	return items
}

// ToggleWindow flips the visibility of name's window. It reports false when
// name is not loaded or has no window.
func (b *Bridge) ToggleWindow(name string) bool {
	inst, ok := b.engine.Manager().Instance(name)
	if !ok {
		return false
	}
	if _, _, has := inst.WindowState(); !has {
		return false
	}
	state := "hidden"
	if inst.ToggleWindow() {
		state = "shown"
	}
	b.setStatus(fmt.Sprintf("%s window %s", name, state))
	return true
}

// RenderPlugins draws every visible plugin window onto s. A panicking
// window is reported and the others still draw.
func (b *Bridge) RenderPlugins(s ui.Surface) error {
	var result *multierror.Error
	for _, inst := range b.engine.Manager().Instances() {
		if err := inst.Render(s); err != nil {
			log.Warnf("render of %s failed: %v", inst.Name(), err)
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// DrawSidebar lists the loaded plugins with their version and debug flag.
func (b *Bridge) DrawSidebar(s ui.Surface) {
	m := b.engine.Manager()
	s.Window("Loaded Plugins", func(s ui.Surface) {
		insts := m.Instances()
		if len(insts) == 0 {
			s.Text("none")
			return
		}
		for _, inst := range insts {
			version := ""
			if d := inst.Descriptor(); d != nil {
				version = d.Version
			}
			flags := ""
			if inst.IsDebugLogging() {
				flags = " [debug]"
			}
			if st, ok := m.TickState(inst.Name()); ok && st != vectorium.CircuitStateClosed {
				flags += " [" + st.String() + "]"
			}
			s.Label(inst.Name(), version+flags)
		}
	})
}

// DrawMenuBar summarises the config panel and the two menus.
func (b *Bridge) DrawMenuBar(s ui.Surface) {
	p := b.ConfigPanel()
	s.Window("Config", func(s ui.Surface) {
		s.Label("auto-scan", onOff(p.AutoScan))
		s.Label("interval", p.ScanInterval)
		s.Label("directory", p.PluginDirectory)
		s.Label("watcher", onOff(p.WatchPluginFolder))
	})
	s.Window("Plugins", func(s ui.Surface) {
		for _, it := range b.PluginMenu() {
			mark := "[ ]"
			if it.Loaded {
				mark = "[x]"
			}
			s.Text("%s %s", mark, it.Name)
			if it.Error != "" {
				s.Error("    %s", it.Error)
			}
		}
	})
	if items := b.WindowMenu(); len(items) > 0 {
		s.Window("Windows", func(s ui.Surface) {
			for _, it := range items {
				mark := "[ ]"
				if it.Visible {
					mark = "[x]"
				}
				s.Text("%s %s", mark, it.Title)
			}
		})
	}
}

// DrawPacketPanel shows the handler counts of the packet registry.
func (b *Bridge) DrawPacketPanel(s ui.Surface) {
	r := b.engine.Registry()
	s.Window("Data Packets", func(s ui.Surface) {
		for _, t := range r.Types() {
			s.Label(t.String(), r.HandlerCount(t))
		}
		s.Label("wildcard", r.WildcardCount())
	})
}

// DrawStatusBar shows the frame counter and the last action.
func (b *Bridge) DrawStatusBar(s ui.Surface) {
	s.Separator()
	status := ""
	if p := b.status.Load(); p != nil {
		status = *p
	}
	s.Text("frame %d | %d loaded | %s", b.engine.Frame(), len(b.engine.Manager().LoadedNames()), status)
}

// Draw renders one full frame onto s.
func (b *Bridge) Draw(s ui.Surface) {
	b.DrawMenuBar(s)
	b.DrawSidebar(s)
	b.DrawPacketPanel(s)
	_ = b.RenderPlugins(s)
	b.engine.UIService().RenderPluginUIs(s)
	b.DrawStatusBar(s)
}

// Status returns the last action message.
func (b *Bridge) Status() string {
	if p := b.status.Load(); p != nil {
		return *p
	}
	return ""
}

func (b *Bridge) RequestQuit()     { b.quit.Store(true) }
func (b *Bridge) ShouldQuit() bool { return b.quit.Load() }

func (b *Bridge) setStatus(msg string) { b.status.Store(&msg) }

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
