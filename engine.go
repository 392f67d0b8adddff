package vectorium

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	klog "github.com/go-kratos/kratos/v2/log"
	"github.com/hashicorp/go-multierror"

	"github.com/go-lynx/vectorium/conf"
	"github.com/go-lynx/vectorium/events"
	"github.com/go-lynx/vectorium/loader"
	"github.com/go-lynx/vectorium/log"
	"github.com/go-lynx/vectorium/packet"
	"github.com/go-lynx/vectorium/plugins"
	"github.com/go-lynx/vectorium/service"
	"github.com/go-lynx/vectorium/service/logging"
	"github.com/go-lynx/vectorium/service/rest"
	"github.com/go-lynx/vectorium/ui"
)

// EngineOptions configures an Engine.
type EngineOptions struct {
	Config      *conf.Config
	ConfigPath  string
	Loader      loader.Loader
	Events      events.Options
	LoadTimeout time.Duration
	// BaseLogger backs the engine's and the plugins' loggers; defaults to log.Raw().
	BaseLogger klog.Logger
}

// Engine composes the host: shared services, the packet registry, the
// engine event bus, the UI handle and the plugin manager.
type Engine struct {
	container *service.Container
	registry  *packet.Registry
	bus       *events.Bus
	uiService *ui.Service
	uiHandle  atomic.Pointer[ui.Handle]
	logger    *logging.PluginLogger
	manager   *PluginManager

	rest *rest.Client

	frame        atomic.Uint64
	initOnce     sync.Once
	initErr      error
	shutdownOnce sync.Once
	shutdownErr  error
}

// NewEngine builds an Engine. Nothing is loaded until Init.
func NewEngine(opts EngineOptions) *Engine {
	if opts.Config == nil {
		opts.Config = conf.Default()
	}
	if opts.BaseLogger == nil {
		opts.BaseLogger = log.Raw()
	}
	if opts.Events == (events.Options{}) {
		opts.Events = events.DefaultOptions()
	}

	e := &Engine{
		container: service.NewContainer(),
		registry:  packet.NewRegistry(),
		bus:       events.NewBus(opts.Events),
		logger:    logging.New(opts.BaseLogger, "engine"),
	}
	h := ui.NewHandle("main", ui.DefaultStyles())
	e.uiHandle.Store(h)
	e.uiService = ui.NewService(h)

	e.manager = NewPluginManager(ManagerOptions{
		Loader:      opts.Loader,
		Container:   e.container,
		Registry:    e.registry,
		Bus:         e.bus,
		Config:      opts.Config,
		ConfigPath:  opts.ConfigPath,
		LoadTimeout: opts.LoadTimeout,
		BaseLogger:  opts.BaseLogger,
		UI: plugins.UIAccessors{
			Get: e.UIContext,
			Set: e.SetUIContext,
		},
	})
	return e
}

// Init registers the default services, scans the plugin directory, loads
// the enabled plugins and starts auto-scan bound to ctx. Load failures of
// individual plugins are logged, not returned.
func (e *Engine) Init(ctx context.Context) error {
	e.initOnce.Do(func() {
		e.initErr = e.init(ctx)
	})
	return e.initErr
}

func (e *Engine) init(ctx context.Context) error {
	service.Register[service.Logger](e.container, e.logger)
	service.Register[service.UI](e.container, e.uiService)

	rc, err := rest.New(ctx)
	if err != nil {
		log.Warnf("REST client unavailable, plugins get the null client: %v", err)
	} else {
		e.rest = rc
		service.Register[service.RestClient](e.container, rc)
	}

	if _, err := e.manager.Scan(""); err != nil {
		return err
	}
	if err := e.manager.LoadEnabled(); err != nil {
		log.Warnf("some enabled plugins failed to load: %v", err)
	}
	e.manager.StartAutoScan(ctx)
	log.Infof("engine initialised with %d plugin(s) loaded", len(e.manager.LoadedNames()))
	return nil
}

// Tick advances one frame.
func (e *Engine) Tick() {
	e.frame.Add(1)
	if h := e.uiHandle.Load(); h != nil {
		h.BeginFrame()
	}
	e.manager.Tick()
}

// Frame returns the number of ticks so far.
func (e *Engine) Frame() uint64 { return e.frame.Load() }

// Shutdown unloads every plugin, closes the event bus and releases the
// default services. Later calls return the first result.
func (e *Engine) Shutdown() error {
	e.shutdownOnce.Do(func() {
		var result *multierror.Error
		if err := e.manager.Shutdown(); err != nil {
			result = multierror.Append(result, err)
		}
		if err := e.bus.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		if e.rest != nil {
			if err := e.rest.Close(); err != nil {
				result = multierror.Append(result, err)
			}
		}
		e.container.Clear()
		e.shutdownErr = result.ErrorOrNil()
	})
	return e.shutdownErr
}

// UIContext returns the UI handle lent to plugins.
func (e *Engine) UIContext() *ui.Handle { return e.uiHandle.Load() }

// SetUIContext replaces the UI handle. A nil handle is refused.
func (e *Engine) SetUIContext(h *ui.Handle) bool {
	if h == nil {
		return false
	}
	e.uiHandle.Store(h)
	e.uiService.SetContext(h)
	return true
}

func (e *Engine) Manager() *PluginManager { return e.manager }

func (e *Engine) Container() *service.Container { return e.container }

func (e *Engine) Registry() *packet.Registry { return e.registry }

func (e *Engine) Bus() *events.Bus { return e.bus }

func (e *Engine) UIService() *ui.Service { return e.uiService }

// Logger returns the engine's own scoped logger.
func (e *Engine) Logger() *logging.PluginLogger { return e.logger }
