// Package logging provides the scoped service.Logger implementation handed
// to plugins and registered as the host's shared logger.
package logging

import (
	"fmt"
	"sync"
	"sync/atomic"

	klog "github.com/go-kratos/kratos/v2/log"

	"github.com/go-lynx/vectorium/log"
)

// Version is the advertised service version.
const Version = "1.1.0"

// PluginLogger prefixes every line with its plugin name. Debug lines are
// emitted only while the plugin's debug switch is on, or when the host runs
// at debug level.
type PluginLogger struct {
	base  klog.Logger
	debug atomic.Bool

	mu     sync.RWMutex
	name   string
	scoped klog.Logger
}

// New returns a PluginLogger for name writing to base. A nil base uses the
// host's unfiltered root logger.
func New(base klog.Logger, name string) *PluginLogger {
	if base == nil {
		base = log.Raw()
	}
	l := &PluginLogger{base: base}
	l.SetPluginName(name)
	return l
}

// SetPluginName changes the attribution of subsequent lines.
func (l *PluginLogger) SetPluginName(name string) {
	l.mu.Lock()
	l.name = name
	l.scoped = klog.With(l.base, "plugin", name)
	l.mu.Unlock()
}

// PluginName returns the current attribution.
func (l *PluginLogger) PluginName() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.name
}

func (l *PluginLogger) Log(level log.Level, msg string) {
	if !l.enabled(level) {
		return
	}
	l.mu.RLock()
	scoped := l.scoped
	l.mu.RUnlock()
	_ = scoped.Log(level.Kratos(), klog.DefaultMessageKey, msg)
}

func (l *PluginLogger) Logf(level log.Level, format string, args ...any) {
	if !l.enabled(level) {
		return
	}
	l.Log(level, fmt.Sprintf(format, args...))
}

func (l *PluginLogger) enabled(level log.Level) bool {
	global := log.GetLevel()
	if level == log.DebugLevel {
		return l.debug.Load() || global <= log.DebugLevel
	}
	return level >= global
}

func (l *PluginLogger) EnableDebugLogging()         { l.debug.Store(true) }
func (l *PluginLogger) DisableDebugLogging()        { l.debug.Store(false) }
func (l *PluginLogger) IsDebugLoggingEnabled() bool { return l.debug.Load() }

// ServiceVersion implements service.Versioned.
func (l *PluginLogger) ServiceVersion() string { return Version }
