package log

import (
	"bytes"
	"sync"
	"testing"
	"time"
)

type lockedBuffer struct {
	mu     sync.Mutex
	b      bytes.Buffer
	writes int
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writes++
	return l.b.Write(p)
}

func (l *lockedBuffer) snapshot() (string, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String(), l.writes
}

func TestBatchWriterCoalescesUntilClose(t *testing.T) {
	sink := &lockedBuffer{}
	bw := newBatchWriter(sink, 1024, time.Hour)

	scratch := []byte("one\n")
	if _, err := bw.Write(scratch); err != nil {
		t.Fatal(err)
	}
	copy(scratch, "XXX\n") // callers may reuse their buffer
	if _, err := bw.Write([]byte("two\n")); err != nil {
		t.Fatal(err)
	}
	if got, _ := sink.snapshot(); got != "" {
		t.Fatalf("nothing should reach the sink before a flush, got %q", got)
	}

	if err := bw.Close(); err != nil {
		t.Fatal(err)
	}
	got, writes := sink.snapshot()
	if got != "one\ntwo\n" || writes != 1 {
		t.Fatalf("expected one coalesced write, got %q in %d writes", got, writes)
	}
	if _, err := bw.Write([]byte("late\n")); err == nil {
		t.Fatal("expected an error writing after Close")
	}
	if err := bw.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got %v", err)
	}
}

func TestBatchWriterFlushesOnLimitAndInterval(t *testing.T) {
	sink := &lockedBuffer{}
	bw := newBatchWriter(sink, 8, 20*time.Millisecond)
	defer bw.Close()

	_, _ = bw.Write([]byte("0123456789"))
	if got, _ := sink.snapshot(); got != "0123456789" {
		t.Fatalf("a full buffer should flush immediately, got %q", got)
	}

	_, _ = bw.Write([]byte("tail"))
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if got, _ := sink.snapshot(); got == "0123456789tail" {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	got, _ := sink.snapshot()
	t.Fatalf("interval flush did not happen, sink has %q", got)
}
