package vectorium

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-lynx/vectorium/events"
	"github.com/go-lynx/vectorium/loader"
	"github.com/go-lynx/vectorium/packet"
	"github.com/go-lynx/vectorium/plugins"
	"github.com/go-lynx/vectorium/service"
)

func TestLoadUnloadRoundTrip(t *testing.T) {
	m := newTestManager(t)
	var got []int
	p := &testPlugin{onLoad: func(ctx plugins.Context) error {
		plugins.RegisterTypedHandler(ctx, func(n int) error {
			got = append(got, n)
			return nil
		})
		return nil
	}}
	path := addPlugin(m.loader, "Alpha", p)

	if err := m.Load(path, ""); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !m.IsLoaded("Alpha") || p.loads.Load() != 1 {
		t.Fatal("Alpha should be loaded exactly once")
	}
	info, ok := m.Info("Alpha")
	if !ok || !info.Loaded || info.Path != path || info.Error != "" {
		t.Fatalf("unexpected info %+v", info)
	}

	m.Registry().Dispatch(packet.New(7))
	if len(got) != 1 || got[0] != 7 {
		t.Fatalf("handler registered during load should receive packets, got %v", got)
	}

	if err := m.Unload("Alpha"); err != nil {
		t.Fatalf("Unload: %v", err)
	}
	if m.IsLoaded("Alpha") || p.unloads.Load() != 1 {
		t.Fatal("Alpha should be unloaded exactly once")
	}
	if n := m.Registry().OwnerCount("Alpha"); n != 0 {
		t.Fatalf("expected no handlers left for Alpha, got %d", n)
	}
	if m.loader.Opens(path) != 1 || m.loader.Closes(path) != 1 {
		t.Fatalf("library opened %d and closed %d times", m.loader.Opens(path), m.loader.Closes(path))
	}
	info, _ = m.Info("Alpha")
	if info.Loaded {
		t.Fatal("info should report not loaded")
	}

	// A fresh load after unload opens the library again.
	if err := m.Load(path, ""); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if p.loads.Load() != 2 {
		t.Fatalf("expected second OnPluginLoad, got %d", p.loads.Load())
	}
}

func TestDoubleLoadOpensOneLibrary(t *testing.T) {
	m := newTestManager(t)
	p := &testPlugin{}
	path := addPlugin(m.loader, "Alpha", p)

	for i := 0; i < 3; i++ {
		if err := m.Load(path, ""); err != nil {
			t.Fatalf("Load #%d: %v", i, err)
		}
	}
	if m.loader.Opens(path) != 1 || p.loads.Load() != 1 {
		t.Fatalf("expected one open and one OnPluginLoad, got %d and %d", m.loader.Opens(path), p.loads.Load())
	}
	if names := m.LoadedNames(); len(names) != 1 {
		t.Fatalf("expected one loaded plugin, got %v", names)
	}
}

func TestConcurrentLoadOfSameName(t *testing.T) {
	m := newTestManager(t)
	p := &testPlugin{blockLoad: 50 * time.Millisecond}
	path := addPlugin(m.loader, "Alpha", p)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Load(path, "")
		}()
	}
	wg.Wait()
	if m.loader.Opens(path) != 1 || p.loads.Load() != 1 {
		t.Fatalf("expected a single load, got %d opens and %d loads", m.loader.Opens(path), p.loads.Load())
	}
}

func TestLoadMissingFileChangesNothing(t *testing.T) {
	m := newTestManager(t)
	err := m.Load(filepath.Join(testDir, "Ghost"+loader.Ext), "")
	if !errors.Is(err, plugins.ErrPluginNotFound) {
		t.Fatalf("Expected ErrPluginNotFound, got %v", err)
	}
	if len(m.Discovered()) != 0 {
		t.Fatalf("a missing file must not create records, got %v", m.Discovered())
	}
}

func TestLoadMissingSymbols(t *testing.T) {
	m := newTestManager(t)
	noFactory := filepath.Join(testDir, "NoFactory"+loader.Ext)
	m.loader.Add(noFactory, loader.Entry{
		Descriptor: func() *plugins.Descriptor { return &plugins.Descriptor{Name: "NoFactory", Version: "1.0.0"} },
	})
	noDescriptor := filepath.Join(testDir, "NoDescriptor"+loader.Ext)
	m.loader.Add(noDescriptor, loader.Entry{Factory: func() plugins.Plugin { return &testPlugin{} }})

	for _, path := range []string{noFactory, noDescriptor} {
		name := loader.Stem(path)
		err := m.Load(path, "")
		if !errors.Is(err, plugins.ErrSymbolNotFound) {
			t.Fatalf("%s: expected ErrSymbolNotFound, got %v", name, err)
		}
		if m.IsLoaded(name) {
			t.Fatalf("%s must not be loaded", name)
		}
		info, ok := m.Info(name)
		if !ok || info.Error == "" || info.Loaded {
			t.Fatalf("%s: expected a recorded error, got %+v", name, info)
		}
		if m.loader.Closes(path) != 1 {
			t.Fatalf("%s: library should be closed after a failed load", name)
		}
	}
}

func TestLoadRejectedIsTornDown(t *testing.T) {
	m := newTestManager(t)
	p := &testPlugin{onLoad: func(ctx plugins.Context) error {
		plugins.RegisterTypedHandler(ctx, func(int) error { return nil })
		return errNope
	}}
	path := addPlugin(m.loader, "Rejects", p)

	err := m.Load(path, "")
	if !errors.Is(err, plugins.ErrLoadRejected) {
		t.Fatalf("Expected ErrLoadRejected, got %v", err)
	}
	if m.IsLoaded("Rejects") {
		t.Fatal("a rejecting plugin must never enter the loaded set")
	}
	if p.unloads.Load() != 1 {
		t.Fatalf("OnPluginUnload should be called after a rejected load, got %d", p.unloads.Load())
	}
	if m.Registry().OwnerCount("Rejects") != 0 {
		t.Fatal("handlers registered before rejection must be removed")
	}
	if m.loader.Closes(path) != 1 {
		t.Fatal("library should be closed")
	}
}

func TestLoadPanicIsContained(t *testing.T) {
	m := newTestManager(t)
	err := m.Load(addPlugin(m.loader, "Panics", &testPlugin{panicOnLoad: true}), "")
	if !errors.Is(err, plugins.ErrPluginPanic) {
		t.Fatalf("Expected ErrPluginPanic, got %v", err)
	}
	if m.IsLoaded("Panics") {
		t.Fatal("a panicking plugin must not be loaded")
	}
}

func TestUnloadNotLoaded(t *testing.T) {
	m := newTestManager(t)
	if err := m.Unload("Nobody"); !errors.Is(err, plugins.ErrPluginNotLoaded) {
		t.Fatalf("Expected ErrPluginNotLoaded, got %v", err)
	}
}

func TestScanRecordsOnlyNewNames(t *testing.T) {
	m := newTestManager(t)
	addPlugin(m.loader, "Beta", &testPlugin{})
	addPlugin(m.loader, "Alpha", &testPlugin{})

	added, err := m.Scan("")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(added, ",") != "Alpha,Beta" {
		t.Fatalf("unexpected first scan %v", added)
	}

	gammaPath := addPlugin(m.loader, "Gamma", &testPlugin{})
	m.loader.Remove(filepath.Join(testDir, "Alpha"+loader.Ext))
	added, err = m.Scan(testDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(added) != 1 || added[0] != "Gamma" {
		t.Fatalf("second scan should only report Gamma, got %v", added)
	}

	names := make([]string, 0)
	for _, info := range m.Discovered() {
		names = append(names, info.Name)
		if info.Loaded {
			t.Fatalf("scan must not load anything: %+v", info)
		}
	}
	if strings.Join(names, ",") != "Alpha,Beta,Gamma" {
		t.Fatalf("vanished files stay discovered, got %v", names)
	}
	if m.PathFor("Gamma") != gammaPath {
		t.Fatalf("PathFor = %s", m.PathFor("Gamma"))
	}
}

func TestScanMissingDirectory(t *testing.T) {
	m := newTestManager(t, func(o *ManagerOptions) { o.Loader = loader.NativeLoader{} })
	added, err := m.Scan(filepath.Join(t.TempDir(), "absent"))
	if err != nil || len(added) != 0 {
		t.Fatalf("a missing directory is not an error, got %v %v", added, err)
	}
}

func TestScanFileSystem(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"One" + loader.Ext, "readme.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	m := newTestManager(t, func(o *ManagerOptions) { o.Loader = loader.NativeLoader{} })
	added, err := m.Scan(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(added) != 1 || added[0] != "One" {
		t.Fatalf("expected only One, got %v", added)
	}
}

func TestTickIsolatesPanickingPlugin(t *testing.T) {
	m := newTestManager(t)
	bad := &testPlugin{panicOnTick: true}
	good := &testPlugin{}
	if err := m.Load(addPlugin(m.loader, "Bad", bad), ""); err != nil {
		t.Fatal(err)
	}
	if err := m.Load(addPlugin(m.loader, "Good", good), ""); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 10; i++ {
		m.Tick()
	}
	if good.ticks.Load() != 10 {
		t.Fatalf("healthy plugin should tick every frame, got %d", good.ticks.Load())
	}
	if bad.ticks.Load() != defaultTickFailureThreshold {
		t.Fatalf("panicking plugin should be suspended after %d failures, got %d ticks", defaultTickFailureThreshold, bad.ticks.Load())
	}
	if st, _ := m.TickState("Bad"); st != CircuitStateOpen {
		t.Fatalf("expected open breaker, got %s", st)
	}
	if st, _ := m.TickState("Good"); st != CircuitStateClosed {
		t.Fatalf("expected closed breaker, got %s", st)
	}
}

type fixedVersionRest struct {
	service.NullRestClient
	version string
}

func (r fixedVersionRest) ServiceVersion() string { return r.version }

func TestRequiredServices(t *testing.T) {
	required := service.IDFor[service.RestClient]("rest", ">=1.0.0", true)

	t.Run("warn only by default", func(t *testing.T) {
		m := newTestManager(t)
		p := &testPlugin{}
		if err := m.Load(addPlugin(m.loader, "Needy", p, required), ""); err != nil {
			t.Fatalf("missing services must not fail the load by default: %v", err)
		}
	})

	t.Run("enforced", func(t *testing.T) {
		m := newTestManager(t, func(o *ManagerOptions) { o.Config.EnforceRequiredServices = true })
		p := &testPlugin{}
		err := m.Load(addPlugin(m.loader, "Needy", p, required), "")
		if !errors.Is(err, plugins.ErrMissingRequiredService) {
			t.Fatalf("Expected ErrMissingRequiredService, got %v", err)
		}
		if p.loads.Load() != 0 {
			t.Fatal("OnPluginLoad must not run when a required service is missing")
		}
	})

	t.Run("old version counts as missing", func(t *testing.T) {
		m := newTestManager(t, func(o *ManagerOptions) { o.Config.EnforceRequiredServices = true })
		service.Register[service.RestClient](m.Container(), fixedVersionRest{version: "0.9.0"})
		err := m.Load(addPlugin(m.loader, "Needy", &testPlugin{}, required), "")
		if !errors.Is(err, plugins.ErrMissingRequiredService) {
			t.Fatalf("Expected ErrMissingRequiredService, got %v", err)
		}

		service.Register[service.RestClient](m.Container(), fixedVersionRest{version: "1.2.0"})
		if err := m.Load(m.PathFor("Needy"), "Needy"); err != nil {
			t.Fatalf("satisfying version should load: %v", err)
		}
	})
}

func TestContextIsPopulatedFromContainer(t *testing.T) {
	m := newTestManager(t)
	service.Register[service.Logger](m.Container(), service.NullLogger{})
	p := &testPlugin{onLoad: func(ctx plugins.Context) error {
		if !plugins.HasService[service.Logger](ctx) {
			return errors.New("logger missing")
		}
		if ctx.Name() != "Alpha" {
			return errors.New("wrong name " + ctx.Name())
		}
		return nil
	}}
	if err := m.Load(addPlugin(m.loader, "Alpha", p), ""); err != nil {
		t.Fatal(err)
	}
	if got := plugins.GetService[service.Logger](p.context()).Get(); got != p.context().Logger() {
		t.Fatal("the populated logger should be the plugin's scoped logger")
	}
}

type receiverPlugin struct {
	testPlugin
	mu  sync.Mutex
	got []any
}

func (r *receiverPlugin) OnDataPacket(p *packet.Packet) error {
	r.mu.Lock()
	r.got = append(r.got, p.Payload())
	r.mu.Unlock()
	return nil
}

func TestPacketReceiverGetsEveryPacket(t *testing.T) {
	m := newTestManager(t)
	recv := &receiverPlugin{}
	sender := &testPlugin{}
	if err := m.Load(addPlugin(m.loader, "Recv", recv), ""); err != nil {
		t.Fatal(err)
	}
	if err := m.Load(addPlugin(m.loader, "Send", sender), ""); err != nil {
		t.Fatal(err)
	}

	plugins.Dispatch(sender.context(), 42)
	plugins.Dispatch(sender.context(), "hello")
	if len(recv.got) != 2 || recv.got[0] != 42 || recv.got[1] != "hello" {
		t.Fatalf("unexpected packets %v", recv.got)
	}

	if err := m.Unload("Recv"); err != nil {
		t.Fatal(err)
	}
	plugins.Dispatch(sender.context(), 1)
	if len(recv.got) != 2 {
		t.Fatal("an unloaded receiver must not get packets")
	}
}

func TestEngineEventsReachPlugins(t *testing.T) {
	m := newTestManager(t)
	watcher := &eventPlugin{seen: make(chan events.Event, 16)}
	if err := m.Load(addPlugin(m.loader, "Watcher", watcher), ""); err != nil {
		t.Fatal(err)
	}
	if err := m.Load(addPlugin(m.loader, "Other", &testPlugin{}), ""); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-watcher.seen:
			if ev.Kind == events.PluginLoaded && ev.Plugin == "Other" {
				return
			}
		case <-deadline:
			t.Fatal("PluginLoaded for Other was not delivered")
		}
	}
}

func TestForgetAndDebugToggles(t *testing.T) {
	m := newTestManager(t)
	p := &testPlugin{}
	if err := m.Load(addPlugin(m.loader, "Alpha", p), ""); err != nil {
		t.Fatal(err)
	}

	if m.IsDebugLogging("Alpha") {
		t.Fatal("debug logging starts off")
	}
	if err := m.EnableDebugLogging("Alpha"); err != nil || !m.IsDebugLogging("Alpha") {
		t.Fatalf("enable failed: %v", err)
	}
	if err := m.DisableDebugLogging("Alpha"); err != nil || m.IsDebugLogging("Alpha") {
		t.Fatalf("disable failed: %v", err)
	}
	if err := m.EnableDebugLogging("Nobody"); !errors.Is(err, plugins.ErrPluginNotLoaded) {
		t.Fatalf("Expected ErrPluginNotLoaded, got %v", err)
	}

	if err := m.Forget("Alpha"); err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Info("Alpha"); ok || m.IsLoaded("Alpha") || p.unloads.Load() != 1 {
		t.Fatal("Forget should unload and drop the record")
	}
	if err := m.Forget("Alpha"); !errors.Is(err, plugins.ErrPluginNotFound) {
		t.Fatalf("Expected ErrPluginNotFound, got %v", err)
	}
}

func TestLoadedNamesSortedAndUnloadAllReversed(t *testing.T) {
	m := newTestManager(t)
	var mu sync.Mutex
	var unloaded []string
	record := func(name string) {
		mu.Lock()
		unloaded = append(unloaded, name)
		mu.Unlock()
	}
	for _, name := range []string{"Charlie", "Alpha", "Bravo"} {
		if err := m.Load(addPlugin(m.loader, name, &testPlugin{name: name, onUnload: record}), ""); err != nil {
			t.Fatal(err)
		}
	}
	if got := strings.Join(m.LoadedNames(), ","); got != "Alpha,Bravo,Charlie" {
		t.Fatalf("LoadedNames = %s", got)
	}
	if err := m.UnloadAll(); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(unloaded, ","); got != "Bravo,Alpha,Charlie" {
		t.Fatalf("expected reverse load order, got %s", got)
	}
}

func TestLoadEnabledCollectsFailures(t *testing.T) {
	m := newTestManager(t, func(o *ManagerOptions) { o.Config.EnabledPlugins = []string{"Alpha", "Missing"} })
	addPlugin(m.loader, "Alpha", &testPlugin{})

	if _, ok := m.Info("Missing"); !ok {
		t.Fatal("enabled plugins should be known before any scan")
	}
	err := m.LoadEnabled()
	if err == nil || !errors.Is(err, plugins.ErrPluginNotFound) {
		t.Fatalf("expected an aggregated not-found error, got %v", err)
	}
	if !m.IsLoaded("Alpha") {
		t.Fatal("Alpha should load despite Missing failing")
	}
}

func TestPluginTypeIdentity(t *testing.T) {
	p := &testPlugin{}
	if p.Type() != reflect.TypeFor[*testPlugin]() {
		t.Fatal("Type should identify the concrete plugin type")
	}
}

type reportingPlugin struct {
	testPlugin
	report plugins.HealthReport
	panics bool
}

func (p *reportingPlugin) Health() plugins.HealthReport {
	if p.panics {
		panic("health probe")
	}
	return p.report
}

func TestHealth(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Health("Ghost"); !errors.Is(err, plugins.ErrPluginNotLoaded) {
		t.Fatalf("expected ErrPluginNotLoaded, got %v", err)
	}

	plain := &testPlugin{}
	if err := m.Load(addPlugin(m.loader, "Plain", plain), ""); err != nil {
		t.Fatal(err)
	}
	rep, err := m.Health("Plain")
	if err != nil || rep.Status != plugins.HealthHealthy || rep.Timestamp.IsZero() {
		t.Fatalf("plugin without a reporter should be healthy, got %+v %v", rep, err)
	}

	deg := &reportingPlugin{report: plugins.HealthReport{Status: plugins.HealthDegraded, Message: "slow"}}
	if err := m.Load(addPlugin(m.loader, "Slow", deg), ""); err != nil {
		t.Fatal(err)
	}
	if rep, _ := m.Health("Slow"); rep.Status != plugins.HealthDegraded || rep.Message != "slow" {
		t.Fatalf("reporter result should pass through, got %+v", rep)
	}

	boom := &reportingPlugin{panics: true}
	if err := m.Load(addPlugin(m.loader, "Boom", boom), ""); err != nil {
		t.Fatal(err)
	}
	if rep, _ := m.Health("Boom"); rep.Status != plugins.HealthUnhealthy {
		t.Fatalf("panicking reporter should be unhealthy, got %+v", rep)
	}

	bad := &reportingPlugin{testPlugin: testPlugin{panicOnTick: true}, report: plugins.HealthReport{Status: plugins.HealthHealthy}}
	if err := m.Load(addPlugin(m.loader, "Bad", bad), ""); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < defaultTickFailureThreshold; i++ {
		m.Tick()
	}
	if rep, _ := m.Health("Bad"); rep.Status != plugins.HealthDegraded {
		t.Fatalf("open tick breaker should degrade a healthy report, got %+v", rep)
	}
}

func TestDescriptorPanicIsContained(t *testing.T) {
	m := newTestManager(t)
	path := filepath.Join(testDir, "Broken"+loader.Ext)
	m.loader.Add(path, loader.Entry{
		Descriptor: func() *plugins.Descriptor { panic("descriptor accessor") },
		Factory:    func() plugins.Plugin { return &testPlugin{} },
	})

	err := m.Load(path, "")
	if !errors.Is(err, plugins.ErrPluginPanic) {
		t.Fatalf("expected ErrPluginPanic, got %v", err)
	}
	if m.IsLoaded("Broken") {
		t.Fatal("a plugin whose descriptor panics must not be loaded")
	}
	if info, ok := m.Info("Broken"); !ok || info.Error == "" {
		t.Fatalf("the failure should be recorded, got %+v", info)
	}
	if m.loader.Closes(path) != 1 {
		t.Fatalf("library should be closed once, got %d", m.loader.Closes(path))
	}
}

func TestTimedOutLoadIsTornDownAfterHookReturns(t *testing.T) {
	m := newTestManager(t, func(o *ManagerOptions) { o.LoadTimeout = 50 * time.Millisecond })

	returned := make(chan struct{})
	unloadedAfterReturn := make(chan bool, 1)
	var delivered []int
	p := &testPlugin{
		onLoad: func(ctx plugins.Context) error {
			time.Sleep(150 * time.Millisecond)
			plugins.RegisterTypedHandler(ctx, func(n int) error {
				delivered = append(delivered, n)
				return nil
			})
			close(returned)
			return nil
		},
	}
	p.onUnload = func(string) {
		select {
		case <-returned:
			unloadedAfterReturn <- true
		default:
			unloadedAfterReturn <- false
		}
	}

	err := m.Load(addPlugin(m.loader, "Slow", p), "")
	if !errors.Is(err, plugins.ErrPluginOperationTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if m.IsLoaded("Slow") {
		t.Fatal("a timed out plugin must not be loaded")
	}

	select {
	case after := <-unloadedAfterReturn:
		if !after {
			t.Fatal("OnPluginUnload ran while OnPluginLoad was still running")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnPluginUnload was never called for the timed out plugin")
	}
	if n := m.Registry().OwnerCount("Slow"); n != 0 {
		t.Fatalf("late registrations must not survive teardown, %d handlers left", n)
	}
	m.Registry().Dispatch(packet.New(42))
	if len(delivered) != 0 {
		t.Fatalf("torn down plugin received %v", delivered)
	}
}

func TestLoadInProgressIsReported(t *testing.T) {
	m := newTestManager(t)
	started := make(chan struct{})
	release := make(chan struct{})
	p := &testPlugin{onLoad: func(plugins.Context) error {
		close(started)
		<-release
		return nil
	}}
	path := addPlugin(m.loader, "Busy", p)

	first := make(chan error, 1)
	go func() { first <- m.Load(path, "") }()
	<-started

	if err := m.Load(path, ""); !errors.Is(err, plugins.ErrPluginOperationInProgress) {
		t.Fatalf("expected ErrPluginOperationInProgress, got %v", err)
	}
	close(release)
	if err := <-first; err != nil {
		t.Fatalf("first load failed: %v", err)
	}
	if !m.IsLoaded("Busy") {
		t.Fatal("first load should have completed")
	}
}

func TestReceiverQuietOnceCloseBegins(t *testing.T) {
	m := newTestManager(t)
	recv := &receiverPlugin{}
	if err := m.Load(addPlugin(m.loader, "Recv", recv), ""); err != nil {
		t.Fatal(err)
	}
	inst, _ := m.Instance("Recv")
	h := inst.receive(recv)

	if err := m.Unload("Recv"); err != nil {
		t.Fatal(err)
	}
	// A dispatch that snapshotted the handler before the unload.
	if err := h.Handle(packet.New(7)); err != nil {
		t.Fatal(err)
	}
	if len(recv.got) != 0 {
		t.Fatalf("OnDataPacket ran after unload: %v", recv.got)
	}
}
