package vectorium

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-lynx/vectorium/conf"
	"github.com/go-lynx/vectorium/loader"
	"github.com/go-lynx/vectorium/plugins"
	"github.com/go-lynx/vectorium/service"
	"github.com/go-lynx/vectorium/ui"
)

func newTestEngine(t *testing.T, enabled ...string) (*Engine, *loader.StaticLoader) {
	t.Helper()
	s := loader.NewStaticLoader()
	cfg := conf.Default()
	cfg.PluginDirectory = testDir
	cfg.AutoScan = false
	cfg.EnabledPlugins = enabled
	e := NewEngine(EngineOptions{
		Config:      cfg,
		ConfigPath:  filepath.Join(t.TempDir(), conf.FileName),
		Loader:      s,
		LoadTimeout: time.Second,
	})
	t.Cleanup(func() { _ = e.Shutdown() })
	return e, s
}

func TestEngineInitRegistersDefaultServices(t *testing.T) {
	e, s := newTestEngine(t, "Alpha")
	p := &testPlugin{}
	addPlugin(s, "Alpha", p)
	addPlugin(s, "Beta", &testPlugin{})

	require.NoError(t, e.Init(context.Background()))
	require.NoError(t, e.Init(context.Background()), "Init is idempotent")

	c := e.Container()
	assert.True(t, c.Has(plugins.TypeOf[service.Logger]()))
	assert.True(t, c.Has(plugins.TypeOf[service.RestClient]()))
	assert.True(t, c.Has(plugins.TypeOf[service.UI]()))

	assert.Equal(t, []string{"Alpha"}, e.Manager().LoadedNames(), "only enabled plugins load at startup")
	_, known := e.Manager().Info("Beta")
	assert.True(t, known, "the startup scan discovers every library")

	ctx := p.context()
	require.NotNil(t, ctx)
	assert.True(t, plugins.HasService[service.RestClient](ctx))
	assert.Same(t, e.UIContext(), ctx.UIContext(), "plugins reach the engine's UI handle")
}

func TestEngineTickAdvancesFrames(t *testing.T) {
	e, s := newTestEngine(t, "Alpha")
	p := &testPlugin{}
	addPlugin(s, "Alpha", p)
	require.NoError(t, e.Init(context.Background()))

	for i := 0; i < 5; i++ {
		e.Tick()
	}
	assert.Equal(t, uint64(5), e.Frame())
	assert.Equal(t, uint64(5), e.UIContext().Frame())
	assert.Equal(t, int32(5), p.ticks.Load())
}

func TestEngineUIContextSwap(t *testing.T) {
	e, _ := newTestEngine(t)
	assert.False(t, e.SetUIContext(nil))

	h := ui.NewHandle("secondary", ui.DefaultStyles())
	assert.True(t, e.SetUIContext(h))
	assert.Same(t, h, e.UIContext())
	assert.Same(t, h, e.UIService().Context())
}

func TestEngineShutdown(t *testing.T) {
	e, s := newTestEngine(t, "Alpha")
	p := &testPlugin{}
	addPlugin(s, "Alpha", p)
	require.NoError(t, e.Init(context.Background()))

	require.NoError(t, e.Shutdown())
	require.NoError(t, e.Shutdown())
	assert.Equal(t, int32(1), p.unloads.Load())
	assert.Empty(t, e.Manager().LoadedNames())
	assert.Empty(t, e.Container().Types(), "default services are released")
}
