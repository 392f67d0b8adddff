// Package vectorium is a native plugin host. It discovers plugin libraries
// on disk, loads them into the running process, hands each one a runtime
// context for reaching shared services and the data packet bus, ticks them
// once per frame, and tears them down again.
//
// # Architecture
//
// The host is organized around the following pieces:
//
//   - Engine: owns the shared services, the packet registry, the engine event
//     bus, the UI handle and the plugin manager
//   - PluginManager: discovery, load, unload, tick and auto-scan
//   - PluginInstance: one loaded library with its plugin and runtime context
//   - plugins.RuntimeContext: the per-plugin gateway to services and packets
//   - service.Container: type-keyed shared services with null-object fallbacks
//   - packet.Registry: typed and wildcard packet handlers
//
// # File Organization
//
// The root package contains the following files:
//
//   - engine.go: Engine composition and the default services
//   - manager.go: PluginManager state, scan and load/unload
//   - instance.go: PluginInstance and its teardown order
//   - lifecycle.go: guarded calls into plugin hooks
//   - recovery.go: the per-plugin tick breaker
//   - autoscan.go: periodic and file-watch triggered scanning
//   - ops.go: bulk operations and configuration persistence
//   - tracing.go: spans around manager operations
//
// # Quick Start
//
//	cfg, err := conf.Load(conf.DefaultPath())
//	if err != nil {
//	    panic(err)
//	}
//	engine := vectorium.NewEngine(vectorium.EngineOptions{Config: cfg})
//	if err := engine.Init(ctx); err != nil {
//	    panic(err)
//	}
//	defer engine.Shutdown()
//
//	ticker := time.NewTicker(cfg.TickInterval())
//	for range ticker.C {
//	    engine.Tick()
//	}
//
// # Plugin Development
//
// A plugin library is a main package built with -buildmode=plugin that
// exports two functions:
//
//	func GetPluginDescriptor() *plugins.Descriptor {
//	    return &plugins.Descriptor{Name: "NumberGen", Version: "1.0.0"}
//	}
//
//	func LoadPlugin() plugins.Plugin { return numbergen.New() }
//
// Plugins register packet handlers and fetch services from the context they
// receive in OnPluginLoad:
//
//	func (p *Plugin) OnPluginLoad(ctx plugins.Context) error {
//	    p.rest = plugins.GetService[service.RestClient](ctx)
//	    plugins.RegisterTypedHandler(ctx, p.onNumber)
//	    return nil
//	}
package vectorium
