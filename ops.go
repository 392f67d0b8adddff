// This file (ops.go) contains bulk plugin operations and configuration
// persistence:
//   - LoadEnabled, UnloadAll and Shutdown
//   - SaveConfig and ReloadConfig

package vectorium

import (
	"github.com/hashicorp/go-multierror"

	"github.com/go-lynx/vectorium/conf"
	"github.com/go-lynx/vectorium/events"
	"github.com/go-lynx/vectorium/log"
)

// LoadEnabled loads every plugin listed in the configuration's enabled set
// from the plugin directory. Failures are collected; the remaining plugins
// are still loaded.
func (m *PluginManager) LoadEnabled() error {
	cfg := m.Config()
	var result *multierror.Error
	for _, name := range cfg.EnabledPlugins {
		if err := m.Load(m.PathFor(name), name); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// UnloadAll unloads every plugin in reverse load order.
func (m *PluginManager) UnloadAll() error {
	m.mu.RLock()
	order := append([]string(nil), m.order...)
	m.mu.RUnlock()

	var result *multierror.Error
	for i := len(order) - 1; i >= 0; i-- {
		if err := m.Unload(order[i]); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Shutdown stops auto-scan, unloads every plugin and detaches from the
// event bus, closing it when the manager created it.
func (m *PluginManager) Shutdown() error {
	m.StopAutoScan()

	var result *multierror.Error
	if err := m.UnloadAll(); err != nil {
		result = multierror.Append(result, err)
	}
	m.detachOnce.Do(func() {
		m.publish(events.New(events.Shutdown, "", "plugin manager shut down"))
		m.unsubscribe()
		if m.ownsBus {
			if err := m.bus.Close(); err != nil {
				result = multierror.Append(result, err)
			}
		}
	})
	return result.ErrorOrNil()
}

// SaveConfig writes the current settings to the config path. The enabled
// set becomes the plugins loaded at the time of the call.
func (m *PluginManager) SaveConfig() error {
	cfg := m.Config()
	cfg.EnabledPlugins = m.LoadedNames()
	path := m.ConfigPath()
	if err := conf.Save(path, &cfg); err != nil {
		log.Errorf("failed to save config to %s: %v", path, err)
		return err
	}
	m.cfgMu.Lock()
	m.cfg.EnabledPlugins = append([]string(nil), cfg.EnabledPlugins...)
	m.cfgMu.Unlock()

	log.Infof("config saved to %s", path)
	m.publish(events.New(events.ConfigSaved, "", path))
	return nil
}

// ReloadConfig re-reads the config path and applies auto-scan, scan
// interval, plugin directory and the enabled set. Enabled plugins become
// known entries; nothing is loaded or unloaded.
func (m *PluginManager) ReloadConfig() error {
	path := m.ConfigPath()
	cfg, err := conf.Load(path)
	if err != nil {
		log.Errorf("failed to reload config from %s: %v", path, err)
		return err
	}

	m.cfgMu.Lock()
	m.cfg = cfg
	m.cfgMu.Unlock()

	for _, name := range cfg.EnabledPlugins {
		m.reference(name)
	}

	m.scan.mu.Lock()
	if cfg.AutoScan {
		// Restart only a task the host has started before.
		if m.scan.cancel != nil || m.scan.parent != nil {
			m.scan.stopLocked()
			m.scan.startLocked()
		}
	} else {
		m.scan.stopLocked()
	}
	m.scan.mu.Unlock()

	log.Infof("config reloaded from %s", path)
	m.publish(events.New(events.ConfigReloaded, "", path))
	return nil
}
