package log

import (
	"io"
	"sync"
	"time"
)

// batchWriter buffers writes to a slow sink and flushes them when the
// buffer passes limit bytes, every interval, and on Close.
type batchWriter struct {
	mu     sync.Mutex
	w      io.Writer
	buf    []byte
	limit  int
	closed bool

	stop chan struct{}
	done chan struct{}
}

func newBatchWriter(w io.Writer, limit int, interval time.Duration) *batchWriter {
	if limit <= 0 {
		limit = 64 << 10
	}
	b := &batchWriter{
		w:     w,
		buf:   make([]byte, 0, limit),
		limit: limit,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go b.loop(interval)
	return b
}

func (b *batchWriter) loop(interval time.Duration) {
	defer close(b.done)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-b.stop:
			return
		case <-t.C:
			_ = b.Flush()
		}
	}
}

// Write copies p into the buffer; p may be reused by the caller.
func (b *batchWriter) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, io.ErrClosedPipe
	}
	b.buf = append(b.buf, p...)
	if len(b.buf) >= b.limit {
		if err := b.flushLocked(); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (b *batchWriter) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushLocked()
}

func (b *batchWriter) flushLocked() error {
	if len(b.buf) == 0 {
		return nil
	}
	_, err := b.w.Write(b.buf)
	b.buf = b.buf[:0]
	return err
}

// Close stops the flush loop and writes what is left.
func (b *batchWriter) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	close(b.stop)
	<-b.done

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushLocked()
}
