// This file (lifecycle.go) contains the guarded calls into plugin code:
//   - OnPluginLoad with timeout and panic protection
//   - OnPluginUnload, Tick, OnRender and OnEngineEvent with panic protection
//
// A panic inside a plugin never unwinds into the host. It is logged with
// the plugin name and stack, counted, and returned as an ErrPluginPanic.

package vectorium

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-lynx/vectorium/events"
	"github.com/go-lynx/vectorium/log"
	"github.com/go-lynx/vectorium/observability/metrics"
	"github.com/go-lynx/vectorium/plugins"
	"github.com/go-lynx/vectorium/ui"
)

// DefaultLoadTimeout bounds OnPluginLoad.
const DefaultLoadTimeout = 5 * time.Second

// recovered converts a recovered panic value into a PluginError and logs it.
func recovered(name, hook string, r any) error {
	stackTrace := make([]byte, 4096)
	stackLen := runtime.Stack(stackTrace, false)
	log.Errorf("Panic in %s of %s: %v\nStack trace:\n%s", hook, name, r, stackTrace[:stackLen])
	metrics.PluginPanics.WithLabelValues(name, hook).Inc()
	return plugins.NewPluginError(name, hook, fmt.Sprint(r), plugins.ErrPluginPanic)
}

const (
	hookRunning int32 = iota
	hookReturned
	hookAbandoned
)

// safeLoad calls OnPluginLoad with timeout and panic protection. On timeout
// the hook may still be running: safeLoad returns at once and late, if not
// nil, runs on the hook's goroutine after the hook returns.
func safeLoad(name string, p plugins.Plugin, ctx plugins.Context, timeout time.Duration, late func()) error {
	if timeout <= 0 {
		timeout = DefaultLoadTimeout
	}
	t0 := time.Now()
	cctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var state atomic.Int32
	// Use buffered channel to prevent goroutine blocking
	done := make(chan error, 1)
	go func() {
		err := callLoad(name, p, ctx)
		if state.CompareAndSwap(hookRunning, hookReturned) {
			done <- err
			return
		}
		log.Warnf("plugin %s OnPluginLoad returned after its timeout: %v", name, err)
		if late != nil {
			late()
		}
	}()

	select {
	case err := <-done:
		if d := time.Since(t0); d > timeout/2 {
			log.Warnf("Plugin %s OnPluginLoad took %v (50%% of timeout %v)", name, d, timeout)
		}
		return err
	case <-cctx.Done():
		if !state.CompareAndSwap(hookRunning, hookAbandoned) {
			return <-done
		}
		log.Warnf("plugin %s OnPluginLoad timed out after %v; plugin may still be running", name, timeout)
		return plugins.NewPluginError(name, "OnPluginLoad", "timeout after "+timeout.String(), plugins.ErrPluginOperationTimeout)
	}
}

func callLoad(name string, p plugins.Plugin, ctx plugins.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(name, "OnPluginLoad", r)
		}
	}()
	if err := p.OnPluginLoad(ctx); err != nil {
		return plugins.NewPluginError(name, "OnPluginLoad", err.Error(), fmt.Errorf("%w: %w", plugins.ErrLoadRejected, err))
	}
	return nil
}

func safeUnload(name string, p plugins.Plugin) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(name, "OnPluginUnload", r)
		}
	}()
	p.OnPluginUnload()
	return nil
}

func safeTick(name string, p plugins.Plugin) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(name, "Tick", r)
		}
	}()
	p.Tick()
	return nil
}

func safeRender(name string, w plugins.UIWindow, s ui.Surface) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(name, "OnRender", r)
		}
	}()
	w.OnRender(s)
	return nil
}

func safeEngineEvent(name string, h plugins.EngineEventHandler, ev events.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(name, "OnEngineEvent", r)
		}
	}()
	h.OnEngineEvent(ev)
	return nil
}

func safeHealth(name string, h plugins.HealthReporter) (rep plugins.HealthReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(name, "Health", r)
		}
	}()
	return h.Health(), nil
}
