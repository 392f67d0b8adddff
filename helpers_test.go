package vectorium

import (
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-lynx/vectorium/conf"
	"github.com/go-lynx/vectorium/events"
	"github.com/go-lynx/vectorium/loader"
	"github.com/go-lynx/vectorium/plugins"
	"github.com/go-lynx/vectorium/service"
)

// testPlugin records every hook call and can be told to misbehave.
type testPlugin struct {
	name        string
	loadErr     error
	panicOnLoad bool
	panicOnTick bool
	blockLoad   time.Duration
	onLoad      func(ctx plugins.Context) error
	onUnload    func(name string)

	loads   atomic.Int32
	unloads atomic.Int32
	ticks   atomic.Int32

	mu  sync.Mutex
	ctx plugins.Context
}

func (p *testPlugin) OnPluginLoad(ctx plugins.Context) error {
	p.loads.Add(1)
	p.mu.Lock()
	p.ctx = ctx
	p.mu.Unlock()
	if p.blockLoad > 0 {
		time.Sleep(p.blockLoad)
	}
	if p.panicOnLoad {
		panic("boom on load")
	}
	if p.onLoad != nil {
		if err := p.onLoad(ctx); err != nil {
			return err
		}
	}
	return p.loadErr
}

func (p *testPlugin) OnPluginUnload() {
	p.unloads.Add(1)
	if p.onUnload != nil {
		p.onUnload(p.name)
	}
}

func (p *testPlugin) Tick() {
	p.ticks.Add(1)
	if p.panicOnTick {
		panic("boom on tick")
	}
}

func (p *testPlugin) Type() reflect.Type { return plugins.TypeOf[*testPlugin]() }

func (p *testPlugin) context() plugins.Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ctx
}

// eventPlugin additionally observes engine events.
type eventPlugin struct {
	testPlugin
	seen chan events.Event
}

func (p *eventPlugin) OnEngineEvent(ev events.Event) {
	select {
	case p.seen <- ev:
	default:
	}
}

const testDir = "plugins"

// addPlugin registers p under testDir with a well-formed descriptor.
func addPlugin(s *loader.StaticLoader, name string, p plugins.Plugin, services ...service.ID) string {
	d := &plugins.Descriptor{Name: name, Version: "1.0.0", Services: services}
	return s.AddPlugin(testDir, d, func() plugins.Plugin { return p })
}

type testManager struct {
	*PluginManager
	loader *loader.StaticLoader
	cfg    string
}

func newTestManager(t *testing.T, mutate ...func(o *ManagerOptions)) *testManager {
	t.Helper()
	s := loader.NewStaticLoader()
	cfg := conf.Default()
	cfg.PluginDirectory = testDir
	opts := ManagerOptions{
		Loader:       s,
		Config:       cfg,
		ConfigPath:   filepath.Join(t.TempDir(), conf.FileName),
		LoadTimeout:  time.Second,
		TickCooldown: time.Hour,
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	m := NewPluginManager(opts)
	t.Cleanup(func() { _ = m.Shutdown() })
	return &testManager{PluginManager: m, loader: s, cfg: opts.ConfigPath}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

var errNope = errors.New("nope")
