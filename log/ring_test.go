package log

import (
	"bytes"
	"strings"
	"testing"

	klog "github.com/go-kratos/kratos/v2/log"
)

func TestRingKeepsNewestLines(t *testing.T) {
	r := NewRing(3)
	for _, s := range []string{"a\n", "b\n", "c\nd\n"} {
		if _, err := r.Write([]byte(s)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	got := strings.Join(r.Lines(), ",")
	if got != "b,c,d" {
		t.Fatalf("expected b,c,d got %q", got)
	}

	r.Clear()
	if n := len(r.Lines()); n != 0 {
		t.Fatalf("expected empty ring after Clear, got %d lines", n)
	}
}

func TestRingPartialFill(t *testing.T) {
	r := NewRing(10)
	_, _ = r.Write([]byte("one\n"))
	_, _ = r.Write([]byte("\n"))
	if got := r.Lines(); len(got) != 1 || got[0] != "one" {
		t.Fatalf("unexpected lines %v", got)
	}
}

func TestInitWritesToRingAndFiltersLevel(t *testing.T) {
	ring := NewRing(16)
	var console bytes.Buffer
	closer, err := Init(Options{Level: "info", Console: true, ConsoleOut: &console, NoColor: true, Ring: ring})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	defer func() { _ = closer() }()

	Debugf("hidden %d", 1)
	Infof("visible %d", 2)

	joined := strings.Join(ring.Lines(), "\n")
	if strings.Contains(joined, "hidden") {
		t.Errorf("debug line should be filtered at info level: %q", joined)
	}
	if !strings.Contains(joined, "visible 2") {
		t.Errorf("info line missing from ring: %q", joined)
	}
	if !strings.Contains(console.String(), "visible 2") {
		t.Errorf("info line missing from console: %q", console.String())
	}

	// Raw bypasses the global filter so scoped loggers can decide themselves.
	_ = Raw().Log(klog.LevelDebug, "msg", "raw debug")
	if !strings.Contains(strings.Join(ring.Lines(), "\n"), "raw debug") {
		t.Errorf("raw logger should not be level filtered")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{"debug": DebugLevel, "warn": WarnLevel, "error": ErrorLevel, "": InfoLevel, "bogus": InfoLevel}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
