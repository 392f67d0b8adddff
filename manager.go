package vectorium

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	klog "github.com/go-kratos/kratos/v2/log"

	"github.com/go-lynx/vectorium/conf"
	"github.com/go-lynx/vectorium/events"
	"github.com/go-lynx/vectorium/loader"
	"github.com/go-lynx/vectorium/log"
	"github.com/go-lynx/vectorium/observability/metrics"
	"github.com/go-lynx/vectorium/packet"
	"github.com/go-lynx/vectorium/plugins"
	"github.com/go-lynx/vectorium/service"
	"github.com/go-lynx/vectorium/service/logging"
)

// PluginInfo is what the manager knows about a plugin name, loaded or not.
type PluginInfo struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Loaded bool   `json:"loaded"`
	// Error holds the message of the most recent failed load.
	Error string `json:"error,omitempty"`
}

// ManagerOptions configures a PluginManager. Zero fields get defaults.
type ManagerOptions struct {
	// Loader opens libraries; defaults to loader.NativeLoader.
	Loader loader.Loader
	// Container holds the shared services handed to plugin contexts.
	Container *service.Container
	// Registry is the shared packet registry.
	Registry *packet.Registry
	// Bus receives engine events. When nil the manager owns a private bus
	// and closes it on Shutdown.
	Bus *events.Bus
	// Config is the starting configuration; defaults to conf.Default().
	Config *conf.Config
	// ConfigPath is where SaveConfig and ReloadConfig read and write;
	// defaults to conf.DefaultPath().
	ConfigPath string
	// LoadTimeout bounds each OnPluginLoad call.
	LoadTimeout time.Duration
	// UI is lent to every plugin context.
	UI plugins.UIAccessors
	// BaseLogger backs each plugin's scoped logger; defaults to log.Raw().
	BaseLogger klog.Logger
	// TickFailureThreshold and TickCooldown tune the per-plugin tick breaker.
	TickFailureThreshold int
	TickCooldown         time.Duration
}

// PluginManager discovers, loads, ticks and unloads plugins. All methods are
// safe for concurrent use; Tick is expected to be called from one goroutine.
type PluginManager struct {
	loader      loader.Loader
	catalog     loader.Catalog
	container   *service.Container
	registry    *packet.Registry
	bus         *events.Bus
	ownsBus     bool
	uiAccess    plugins.UIAccessors
	baseLogger  klog.Logger
	loadTimeout time.Duration

	breakerThreshold int
	breakerCooldown  time.Duration

	// mu guards discovered, loaded, order, loading and breakers.
	mu         sync.RWMutex
	discovered map[string]*PluginInfo
	loaded     map[string]*PluginInstance
	order      []string
	loading    map[string]struct{}
	breakers   map[string]*tickBreaker

	cfgMu   sync.RWMutex
	cfg     *conf.Config
	cfgPath string

	scan autoScanner

	unsubscribe context.CancelFunc
	detachOnce  sync.Once
}

// NewPluginManager builds a manager. It subscribes to the event bus so that
// plugins implementing plugins.EngineEventHandler receive engine events.
func NewPluginManager(opts ManagerOptions) *PluginManager {
	if opts.Loader == nil {
		opts.Loader = loader.NativeLoader{}
	}
	if opts.Container == nil {
		opts.Container = service.NewContainer()
	}
	if opts.Registry == nil {
		opts.Registry = packet.NewRegistry()
	}
	ownsBus := false
	if opts.Bus == nil {
		opts.Bus = events.NewBus(events.DefaultOptions())
		ownsBus = true
	}
	if opts.Config == nil {
		opts.Config = conf.Default()
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = conf.DefaultPath()
	}
	if opts.BaseLogger == nil {
		opts.BaseLogger = log.Raw()
	}
	cfg := *opts.Config
	cfg.EnabledPlugins = append([]string(nil), opts.Config.EnabledPlugins...)

	m := &PluginManager{
		loader:           opts.Loader,
		catalog:          loader.CatalogOf(opts.Loader),
		container:        opts.Container,
		registry:         opts.Registry,
		bus:              opts.Bus,
		ownsBus:          ownsBus,
		uiAccess:         opts.UI,
		baseLogger:       opts.BaseLogger,
		loadTimeout:      opts.LoadTimeout,
		breakerThreshold: opts.TickFailureThreshold,
		breakerCooldown:  opts.TickCooldown,
		discovered:       make(map[string]*PluginInfo),
		loaded:           make(map[string]*PluginInstance),
		loading:          make(map[string]struct{}),
		breakers:         make(map[string]*tickBreaker),
		cfg:              &cfg,
		cfgPath:          opts.ConfigPath,
	}
	m.scan.m = m
	m.unsubscribe = m.bus.SubscribeAll(m.deliverEngineEvent)
	for _, name := range cfg.EnabledPlugins {
		m.reference(name)
	}
	return m
}

// Bus returns the engine event bus the manager publishes to.
func (m *PluginManager) Bus() *events.Bus { return m.bus }

// Registry returns the packet registry handed to plugin contexts.
func (m *PluginManager) Registry() *packet.Registry { return m.registry }

// Container returns the shared service container.
func (m *PluginManager) Container() *service.Container { return m.container }

// Config returns a copy of the current configuration.
func (m *PluginManager) Config() conf.Config {
	m.cfgMu.RLock()
	defer m.cfgMu.RUnlock()
	c := *m.cfg
	c.EnabledPlugins = append([]string(nil), m.cfg.EnabledPlugins...)
	return c
}

// ConfigPath returns the file SaveConfig writes to.
func (m *PluginManager) ConfigPath() string {
	m.cfgMu.RLock()
	defer m.cfgMu.RUnlock()
	return m.cfgPath
}

// PluginDirectory returns the configured plugin directory.
func (m *PluginManager) PluginDirectory() string {
	m.cfgMu.RLock()
	defer m.cfgMu.RUnlock()
	return m.cfg.PluginDirectory
}

// PathFor returns the library path name would have in the plugin directory.
func (m *PluginManager) PathFor(name string) string {
	if info, ok := m.Info(name); ok && info.Path != "" {
		return info.Path
	}
	return libraryPath(m.PluginDirectory(), name)
}

func libraryPath(dir, name string) string {
	return filepath.Join(dir, name+loader.Ext)
}

// Scan lists dir, or the configured plugin directory when dir is empty, and
// records every library not seen before. Entries for files that vanished
// are kept. It returns the newly discovered names.
func (m *PluginManager) Scan(dir string) (added []string, err error) {
	if dir == "" {
		dir = m.PluginDirectory()
	}
	_, span := startSpan("plugin.scan", "")
	defer func() { endSpan(span, err) }()

	t0 := time.Now()
	defer func() { metrics.ScanDuration.Observe(time.Since(t0).Seconds()) }()

	paths, err := m.catalog.List(dir)
	if err != nil {
		if loader.IsNotExist(err) {
			log.Infof("Could not find plugin directory '%s'", dir)
			return nil, nil
		}
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	m.mu.Lock()
	for _, p := range paths {
		name := loader.Stem(p)
		if info, ok := m.discovered[name]; ok {
			if info.Path == "" {
				info.Path = p
			}
			continue
		}
		m.discovered[name] = &PluginInfo{Name: name, Path: p}
		added = append(added, name)
	}
	metrics.PluginsDiscovered.Set(float64(len(m.discovered)))
	m.mu.Unlock()

	if len(added) > 0 {
		log.Infof("[PluginManager] - Discovered %d new plugin(s): %s", len(added), strings.Join(added, ", "))
		m.publish(events.New(events.PluginsDiscovered, "", fmt.Sprintf("%d new", len(added))).With("names", added))
	}
	return added, nil
}

// Load opens the library at path and brings its plugin up under name, which
// defaults to the file stem. Loading a name that is already loaded is a
// no-op and opens no second library handle.
func (m *PluginManager) Load(path, name string) (err error) {
	if name == "" {
		name = loader.Stem(path)
	}
	_, span := startSpan("plugin.load", name)
	defer func() { endSpan(span, err) }()

	if !m.catalog.Exists(path) {
		log.Errorf("Could not find plugin at '%s'", path)
		return plugins.NewPluginError(name, "load", "could not find plugin at "+path, plugins.ErrPluginNotFound)
	}

	m.mu.Lock()
	if _, ok := m.loaded[name]; ok {
		m.mu.Unlock()
		log.Infof("[PluginManager] - Plugin '%s' is already loaded", name)
		return nil
	}
	if _, ok := m.loading[name]; ok {
		m.mu.Unlock()
		log.Infof("[PluginManager] - Plugin '%s' is already being loaded", name)
		return plugins.NewPluginError(name, "load", "load already in progress", plugins.ErrPluginOperationInProgress)
	}
	m.loading[name] = struct{}{}
	m.infoLocked(name).Path = path
	m.mu.Unlock()

	inst, err := m.open(path, name)

	m.mu.Lock()
	delete(m.loading, name)
	info := m.infoLocked(name)
	if err != nil {
		info.Loaded = false
		info.Error = err.Error()
		m.mu.Unlock()
		m.loadFailed(name, err)
		return err
	}
	info.Loaded = true
	info.Error = ""
	m.loaded[name] = inst
	m.order = append(m.order, name)
	m.breakers[name] = newTickBreaker(m.breakerThreshold, m.breakerCooldown)
	metrics.PluginsLoaded.Set(float64(len(m.loaded)))
	metrics.PluginsDiscovered.Set(float64(len(m.discovered)))
	m.mu.Unlock()

	metrics.PluginLoads.WithLabelValues(name, metrics.ResultOK).Inc()
	log.Infof("[PluginManager] - Loaded plugin '%s' (%s)", name, inst.desc)
	m.publish(events.New(events.PluginLoaded, name, "loaded").With("version", inst.desc.Version))
	return nil
}

// open performs every step of a load that touches plugin code. Anything it
// acquired is released again when it fails.
func (m *PluginManager) open(path, name string) (*PluginInstance, error) {
	lib, err := m.loader.Open(path)
	if err != nil {
		return nil, plugins.NewPluginError(name, "open library", err.Error(), err)
	}
	fail := func(op string, err error) (*PluginInstance, error) {
		if cerr := lib.Close(); cerr != nil {
			log.Warnf("closing library of %s: %v", name, cerr)
		}
		var pe *plugins.PluginError
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, plugins.NewPluginError(name, op, err.Error(), err)
	}

	desc, err := describe(name, lib)
	if err != nil {
		return fail("resolve descriptor", err)
	}
	if desc.Name != name {
		log.Debugf("plugin %s exports descriptor name %q", name, desc.Name)
	}
	factory, err := loader.Factory(lib)
	if err != nil {
		return fail("resolve factory", err)
	}
	if err := m.checkServices(name, desc); err != nil {
		return fail("check services", err)
	}
	p, err := instantiate(name, factory)
	if err != nil {
		return fail("instantiate", err)
	}

	logger := logging.New(m.baseLogger, name)
	ctx := plugins.NewRuntimeContext(name, m.container, m.registry, logger)
	ctx.PopulateServices()
	if m.uiAccess.Get != nil || m.uiAccess.Set != nil {
		ctx.SetUIAccessors(m.uiAccess)
	}

	// A hook that outlives its timeout is unloaded only once it returns.
	// Closing the context first keeps anything it registers meanwhile out
	// of the registry.
	late := func() {
		if uerr := safeUnload(name, p); uerr != nil {
			log.Warnf("OnPluginUnload of %s after timed out load: %v", name, uerr)
		}
		ctx.Close()
	}
	if err := safeLoad(name, p, ctx, m.loadTimeout, late); err != nil {
		ctx.Close()
		if !errors.Is(err, plugins.ErrPluginOperationTimeout) {
			if uerr := safeUnload(name, p); uerr != nil {
				log.Warnf("OnPluginUnload of %s after failed load: %v", name, uerr)
			}
		}
		return fail("OnPluginLoad", err)
	}

	inst, err := newPluginInstance(lib, p, ctx, name)
	if err != nil {
		return fail("instantiate", err)
	}
	inst.desc = desc
	if r, ok := p.(plugins.PacketReceiver); ok {
		ctx.RegisterWildcardHandler(inst.receive(r))
	}
	return inst, nil
}

// describe calls the library's descriptor accessor behind a recover.
func describe(name string, lib loader.Library) (d *plugins.Descriptor, err error) {
	defer func() {
		if r := recover(); r != nil {
			d, err = nil, recovered(name, "GetPluginDescriptor", r)
		}
	}()
	return loader.Descriptor(lib)
}

func instantiate(name string, factory loader.FactoryFunc) (p plugins.Plugin, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(name, "LoadPlugin", r)
		}
	}()
	p = factory()
	if p == nil {
		return nil, plugins.NewPluginError(name, "instantiate", "factory returned nil", plugins.ErrNilInstancePart)
	}
	return p, nil
}

// checkServices verifies the descriptor's required services. A service
// whose advertised version fails the constraint counts as missing.
func (m *PluginManager) checkServices(name string, desc *plugins.Descriptor) error {
	var missing []string
	for _, id := range desc.Required() {
		svc, ok := m.container.Lookup(id.Type)
		if ok {
			if sat, err := id.Satisfies(svc); err != nil || !sat {
				log.Warnf("plugin %s: service %s does not satisfy %q (%v)", name, id, id.MinVersion, err)
				ok = false
			}
		}
		if !ok {
			missing = append(missing, id.String())
		}
	}
	if len(missing) == 0 {
		return nil
	}
	m.cfgMu.RLock()
	enforce := m.cfg.EnforceRequiredServices
	m.cfgMu.RUnlock()
	if enforce {
		return plugins.NewPluginError(name, "check services", "missing "+strings.Join(missing, ", "), plugins.ErrMissingRequiredService)
	}
	for _, s := range missing {
		log.Warnf("plugin %s requires service %s which is not available", name, s)
	}
	return nil
}

func (m *PluginManager) loadFailed(name string, err error) {
	result := metrics.ResultFailed
	switch {
	case errors.Is(err, plugins.ErrPluginPanic):
		result = metrics.ResultPanic
	case errors.Is(err, plugins.ErrLoadRejected):
		result = metrics.ResultRejected
	}
	metrics.PluginLoads.WithLabelValues(name, result).Inc()
	log.Errorf("Failed to load plugin '%s' - (%v)", name, err)
	m.publish(events.New(events.PluginLoadFailed, name, "load failed").WithError(err))
}

// Unload tears down the plugin loaded under name.
func (m *PluginManager) Unload(name string) (err error) {
	_, span := startSpan("plugin.unload", name)
	defer func() { endSpan(span, err) }()

	m.mu.Lock()
	inst, ok := m.loaded[name]
	if !ok {
		m.mu.Unlock()
		log.Errorf("[PluginManager] - Error unloading plugin '%s'", name)
		return plugins.NewPluginError(name, "unload", "not loaded", plugins.ErrPluginNotLoaded)
	}
	delete(m.loaded, name)
	delete(m.breakers, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.infoLocked(name).Loaded = false
	metrics.PluginsLoaded.Set(float64(len(m.loaded)))
	m.mu.Unlock()

	err = inst.Close()
	metrics.PluginUnloads.WithLabelValues(name).Inc()
	log.Infof("[PluginManager] - Unloaded plugin '%s'", name)
	m.publish(events.New(events.PluginUnloaded, name, "unloaded"))
	return err
}

// Tick calls every loaded plugin's Tick in load order. A panicking plugin
// is logged and skipped; the others still tick.
func (m *PluginManager) Tick() {
	type target struct {
		inst    *PluginInstance
		breaker *tickBreaker
	}
	m.mu.RLock()
	targets := make([]target, 0, len(m.order))
	for _, name := range m.order {
		targets = append(targets, target{m.loaded[name], m.breakers[name]})
	}
	m.mu.RUnlock()

	for _, t := range targets {
		if !t.breaker.allow() {
			metrics.TickSkipped.WithLabelValues(t.inst.name).Inc()
			continue
		}
		err := t.inst.tick()
		t.breaker.record(err)
		if err != nil && t.breaker.State() == CircuitStateOpen {
			log.Warnf("plugin %s ticks suspended for %v after repeated failures", t.inst.name, t.breaker.cooldown)
		}
	}
}

// TickState returns the tick breaker state of a loaded plugin.
func (m *PluginManager) TickState(name string) (CircuitState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.breakers[name]
	if !ok {
		return CircuitStateClosed, false
	}
	return b.State(), true
}

func (m *PluginManager) deliverEngineEvent(ev events.Event) {
	for _, inst := range m.Instances() {
		h, ok := inst.plugin.(plugins.EngineEventHandler)
		if !ok {
			continue
		}
		inst.mu.Lock()
		if !inst.closed {
			if err := safeEngineEvent(inst.name, h, ev); err != nil {
				log.Warnf("plugin %s failed handling %s: %v", inst.name, ev.Kind, err)
			}
		}
		inst.mu.Unlock()
	}
}

func (m *PluginManager) publish(ev events.Event) {
	if m.bus != nil {
		m.bus.Publish(ev)
	}
}

// infoLocked returns the record for name, creating it. m.mu must be held.
func (m *PluginManager) infoLocked(name string) *PluginInfo {
	info, ok := m.discovered[name]
	if !ok {
		info = &PluginInfo{Name: name}
		m.discovered[name] = info
	}
	return info
}

// reference records name as known without a library path.
func (m *PluginManager) reference(name string) {
	m.mu.Lock()
	m.infoLocked(name)
	metrics.PluginsDiscovered.Set(float64(len(m.discovered)))
	m.mu.Unlock()
}

// Forget drops name from the discovered set, unloading it first when loaded.
func (m *PluginManager) Forget(name string) error {
	if m.IsLoaded(name) {
		if err := m.Unload(name); err != nil {
			log.Warnf("forgetting %s: %v", name, err)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.discovered[name]; !ok {
		return plugins.NewPluginError(name, "forget", "unknown plugin", plugins.ErrPluginNotFound)
	}
	delete(m.discovered, name)
	metrics.PluginsDiscovered.Set(float64(len(m.discovered)))
	return nil
}

// IsLoaded reports whether name is loaded.
func (m *PluginManager) IsLoaded(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.loaded[name]
	return ok
}

// LoadedNames returns the loaded plugin names, sorted.
func (m *PluginManager) LoadedNames() []string {
	m.mu.RLock()
	names := make([]string, 0, len(m.loaded))
	for n := range m.loaded {
		names = append(names, n)
	}
	m.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Discovered returns a snapshot of every known plugin, sorted by name.
func (m *PluginManager) Discovered() []PluginInfo {
	m.mu.RLock()
	out := make([]PluginInfo, 0, len(m.discovered))
	for _, info := range m.discovered {
		out = append(out, *info)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Info returns the record for name.
func (m *PluginManager) Info(name string) (PluginInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.discovered[name]
	if !ok {
		return PluginInfo{}, false
	}
	return *info, true
}

// Instance returns the loaded instance for name.
func (m *PluginManager) Instance(name string) (*PluginInstance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.loaded[name]
	return inst, ok
}

// Instances returns the loaded instances in load order.
func (m *PluginManager) Instances() []*PluginInstance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*PluginInstance, 0, len(m.order))
	for _, n := range m.order {
		out = append(out, m.loaded[n])
	}
	return out
}

func (m *PluginManager) EnableDebugLogging(name string) error {
	inst, ok := m.Instance(name)
	if !ok {
		return plugins.NewPluginError(name, "enable debug logging", "not loaded", plugins.ErrPluginNotLoaded)
	}
	inst.EnableDebugLogging()
	return nil
}

func (m *PluginManager) DisableDebugLogging(name string) error {
	inst, ok := m.Instance(name)
	if !ok {
		return plugins.NewPluginError(name, "disable debug logging", "not loaded", plugins.ErrPluginNotLoaded)
	}
	inst.DisableDebugLogging()
	return nil
}

func (m *PluginManager) IsDebugLogging(name string) bool {
	inst, ok := m.Instance(name)
	return ok && inst.IsDebugLogging()
}

// Health reports on a loaded plugin. A tick breaker that is not closed
// downgrades a healthy report to degraded.
func (m *PluginManager) Health(name string) (plugins.HealthReport, error) {
	inst, ok := m.Instance(name)
	if !ok {
		return plugins.HealthReport{}, plugins.NewPluginError(name, "health", "not loaded", plugins.ErrPluginNotLoaded)
	}
	rep := inst.Health()
	if st, ok := m.TickState(name); ok && st != CircuitStateClosed && rep.Status == plugins.HealthHealthy {
		rep.Status = plugins.HealthDegraded
		rep.Message = "tick breaker " + st.String()
	}
	return rep, nil
}
