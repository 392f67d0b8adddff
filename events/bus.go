package events

import (
	"context"
	"sync"

	kelindarEvent "github.com/kelindar/event"
	ants "github.com/panjf2000/ants/v2"

	"github.com/go-lynx/vectorium/log"
	"github.com/go-lynx/vectorium/observability/metrics"
)

// Options configures a Bus.
type Options struct {
	// Workers bounds the goroutines publishing on the caller's behalf.
	Workers int
	// MaxBlocking bounds publishers waiting for a free worker.
	MaxBlocking int
	HistorySize int
}

// DefaultOptions returns the stock bus sizing.
func DefaultOptions() Options {
	return Options{Workers: 4, MaxBlocking: 1024, HistorySize: 256}
}

// Bus delivers engine events. Publish never runs subscribers on the
// caller's goroutine, so it is safe to call while holding host locks.
type Bus struct {
	dispatcher *kelindarEvent.Dispatcher
	workerPool *ants.Pool
	history    *History

	mu       sync.RWMutex
	closed   bool
	inflight sync.WaitGroup
}

// NewBus builds a Bus. When the worker pool cannot be created publishing
// falls back to the dispatcher directly.
func NewBus(opts Options) *Bus {
	if opts.Workers <= 0 {
		opts.Workers = DefaultOptions().Workers
	}
	if opts.MaxBlocking <= 0 {
		opts.MaxBlocking = DefaultOptions().MaxBlocking
	}
	b := &Bus{
		dispatcher: kelindarEvent.NewDispatcher(),
		history:    NewHistory(opts.HistorySize),
	}
	if p, err := ants.NewPool(opts.Workers, ants.WithNonblocking(false), ants.WithMaxBlockingTasks(opts.MaxBlocking)); err == nil {
		b.workerPool = p
	} else {
		log.Warnf("[events] worker pool unavailable, publishing inline: %v", err)
	}
	return b
}

// Publish records ev and hands it to the dispatcher.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	b.inflight.Add(1)
	b.mu.RUnlock()

	b.history.Add(ev)
	metrics.EngineEvents.WithLabelValues(ev.Kind.String()).Inc()

	publish := func() {
		defer b.inflight.Done()
		kelindarEvent.Publish(b.dispatcher, ev)
	}
	if b.workerPool != nil {
		if err := b.workerPool.Submit(publish); err == nil {
			return
		}
	}
	publish()
}

// Subscribe registers fn for one kind. The handler runs on the dispatcher's
// goroutine for this subscription; panics are logged and swallowed.
func (b *Bus) Subscribe(kind Kind, fn func(Event)) context.CancelFunc {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed || fn == nil {
		return func() {}
	}
	return kelindarEvent.SubscribeTo(b.dispatcher, uint32(kind), guard(fn))
}

// SubscribeAll registers fn for every kind.
func (b *Bus) SubscribeAll(fn func(Event)) context.CancelFunc {
	cancels := make([]context.CancelFunc, 0, len(AllKinds))
	for _, k := range AllKinds {
		cancels = append(cancels, b.Subscribe(k, fn))
	}
	return func() {
		for _, c := range cancels {
			c()
		}
	}
}

// History returns the bus's event history.
func (b *Bus) History() *History { return b.history }

// Close waits for queued publishes, then stops the dispatcher.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.inflight.Wait()
	if b.workerPool != nil {
		b.workerPool.Release()
	}
	return b.dispatcher.Close()
}

func guard(fn func(Event)) func(Event) {
	return func(ev Event) {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("[events] subscriber panicked on %s: %v", ev, r)
			}
		}()
		fn(ev)
	}
}
