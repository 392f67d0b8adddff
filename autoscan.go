package vectorium

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/go-lynx/vectorium/loader"
	"github.com/go-lynx/vectorium/log"
)

// autoScanner runs Scan on an interval, and on library file events when
// the folder watcher is enabled.
type autoScanner struct {
	m *PluginManager

	mu     sync.Mutex
	parent context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// StartAutoScan starts the background scan task bound to ctx. It is a no-op
// when the task is already running or auto-scan is disabled in the config.
func (m *PluginManager) StartAutoScan(ctx context.Context) {
	m.scan.mu.Lock()
	defer m.scan.mu.Unlock()
	m.scan.parent = ctx
	if !m.Config().AutoScan {
		log.Debugf("auto-scan disabled")
		return
	}
	m.scan.startLocked()
}

// StopAutoScan stops the background task and waits for it to exit.
func (m *PluginManager) StopAutoScan() {
	m.scan.mu.Lock()
	defer m.scan.mu.Unlock()
	m.scan.stopLocked()
}

// AutoScanRunning reports whether the background task is running.
func (m *PluginManager) AutoScanRunning() bool {
	m.scan.mu.Lock()
	defer m.scan.mu.Unlock()
	return m.scan.cancel != nil
}

// SetAutoScan toggles auto-scan, starting or stopping the task.
func (m *PluginManager) SetAutoScan(enabled bool) {
	m.cfgMu.Lock()
	m.cfg.AutoScan = enabled
	m.cfgMu.Unlock()

	m.scan.mu.Lock()
	defer m.scan.mu.Unlock()
	if enabled {
		m.scan.startLocked()
	} else {
		m.scan.stopLocked()
	}
}

// SetScanInterval changes the scan interval, restarting a running task.
// Intervals are whole seconds, at least one.
func (m *PluginManager) SetScanInterval(d time.Duration) {
	secs := int(d / time.Second)
	if secs < 1 {
		secs = 1
	}
	m.cfgMu.Lock()
	m.cfg.ScanIntervalSeconds = secs
	m.cfgMu.Unlock()
	m.scan.restart()
}

// SetWatchPluginFolder toggles the folder watcher, restarting a running task.
func (m *PluginManager) SetWatchPluginFolder(enabled bool) {
	m.cfgMu.Lock()
	m.cfg.WatchPluginFolder = enabled
	m.cfgMu.Unlock()
	m.scan.restart()
}

func (s *autoScanner) restart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return
	}
	s.stopLocked()
	s.startLocked()
}

func (s *autoScanner) startLocked() {
	if s.cancel != nil {
		return
	}
	parent := s.parent
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done

	cfg := s.m.Config()
	go s.run(ctx, done, cfg.ScanInterval(), cfg.PluginDirectory, cfg.WatchPluginFolder)
}

func (s *autoScanner) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel, s.done = nil, nil
}

func (s *autoScanner) run(ctx context.Context, done chan struct{}, interval time.Duration, dir string, watch bool) {
	defer close(done)

	var events <-chan fsnotify.Event
	var errs <-chan error
	if watch {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			log.Warnf("plugin folder watcher unavailable: %v", err)
		} else {
			defer w.Close()
			if err := w.Add(dir); err != nil {
				log.Warnf("cannot watch plugin folder %s: %v", dir, err)
			} else {
				events, errs = w.Events, w.Errors
			}
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Debugf("auto-scan started: dir=%s interval=%v watch=%v", dir, interval, watch)

	for {
		select {
		case <-ctx.Done():
			log.Debugf("auto-scan stopped")
			return
		case <-ticker.C:
			s.scan(dir)
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if (ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)) && loader.HasExt(ev.Name) {
				s.scan(dir)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Warnf("plugin folder watcher: %v", err)
		}
	}
}

func (s *autoScanner) scan(dir string) {
	if _, err := s.m.Scan(dir); err != nil {
		log.Warnf("auto-scan of %s failed: %v", dir, err)
	}
}
