package events

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestBusDeliversByKind(t *testing.T) {
	bus := NewBus(DefaultOptions())
	defer bus.Close()

	var mu sync.Mutex
	var loaded, all []Event
	cancelLoaded := bus.Subscribe(PluginLoaded, func(ev Event) {
		mu.Lock()
		loaded = append(loaded, ev)
		mu.Unlock()
	})
	defer cancelLoaded()
	cancelAll := bus.SubscribeAll(func(ev Event) {
		mu.Lock()
		all = append(all, ev)
		mu.Unlock()
	})
	defer cancelAll()

	bus.Publish(New(PluginLoaded, "numbergen", "loaded"))
	bus.Publish(New(PluginUnloaded, "numbergen", "unloaded"))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(loaded) == 1 && len(all) == 2
	})
	if loaded[0].Plugin != "numbergen" || loaded[0].ID == "" {
		t.Fatalf("unexpected event %+v", loaded[0])
	}
	if got := bus.History().Len(); got != 2 {
		t.Fatalf("history should hold 2 events, got %d", got)
	}
}

func TestBusSubscriberPanicIsContained(t *testing.T) {
	bus := NewBus(DefaultOptions())
	defer bus.Close()

	var mu sync.Mutex
	count := 0
	bus.Subscribe(Shutdown, func(Event) { panic("subscriber bug") })
	bus.Subscribe(Shutdown, func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	bus.Publish(New(Shutdown, "", "bye"))
	bus.Publish(New(Shutdown, "", "bye again"))
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 2
	})
}

func TestBusClosedIgnoresPublish(t *testing.T) {
	bus := NewBus(Options{Workers: 1, HistorySize: 4})
	if err := bus.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("second close should be a no-op: %v", err)
	}
	bus.Publish(New(PluginLoaded, "x", ""))
	if bus.History().Len() != 0 {
		t.Fatal("closed bus must not record events")
	}
	cancel := bus.Subscribe(PluginLoaded, func(Event) {})
	cancel()
}

func TestEventData(t *testing.T) {
	base := New(PluginLoadFailed, "gps", "failed")
	ev := base.With("path", "/plugins/gps.so").WithError(errors.New("no symbol"))
	if _, ok := base.Get("path"); ok {
		t.Fatal("With must not mutate the original event")
	}
	path, ok := GetAs[string](ev, "path")
	if !ok || path != "/plugins/gps.so" {
		t.Fatalf("GetAs = %q, %v", path, ok)
	}
	if _, ok := GetAs[int](ev, "path"); ok {
		t.Fatal("GetAs with the wrong type should fail")
	}
	if ev.Err == nil || ev.Type() != uint32(PluginLoadFailed) {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestHistoryEviction(t *testing.T) {
	h := NewHistory(2)
	h.Add(New(PluginLoaded, "a", ""))
	h.Add(New(PluginLoaded, "b", ""))
	h.Add(New(PluginLoaded, "a", "again"))
	recent := h.Recent(0)
	if len(recent) != 2 || recent[0].Plugin != "b" || recent[1].Message != "again" {
		t.Fatalf("unexpected history %v", recent)
	}
	if got := len(h.ByPlugin("a")); got != 1 {
		t.Fatalf("expected 1 event for a, got %d", got)
	}
	if got := len(h.Recent(1)); got != 1 {
		t.Fatalf("Recent(1) returned %d", got)
	}
}
