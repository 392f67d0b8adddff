package log

import (
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
)

// stackCfg holds runtime-configurable stack trace settings.
type stackCfg struct {
	enabled        bool
	skip           int
	maxFrames      int
	filterPrefixes []string
}

var stconf atomic.Pointer[stackCfg]

func init() {
	stconf.Store(&stackCfg{
		enabled:   false,
		skip:      6,
		maxFrames: 32,
		filterPrefixes: []string{
			"github.com/go-kratos/kratos",
			"github.com/rs/zerolog",
			"github.com/go-lynx/vectorium/log",
		},
	})
}

// EnableErrorStacks toggles stack capture on error-level log lines.
func EnableErrorStacks(enabled bool) {
	old := stconf.Load()
	next := *old
	next.enabled = enabled
	stconf.Store(&next)
}

// captureStack collects up to maxFrames frames, skipping logging internals.
func captureStack() string {
	cfg := stconf.Load()
	if cfg == nil || !cfg.enabled {
		return ""
	}
	pcs := make([]uintptr, cfg.maxFrames)
	n := runtime.Callers(cfg.skip, pcs)
	if n == 0 {
		return ""
	}
	return formatFrames(runtime.CallersFrames(pcs[:n]), cfg.filterPrefixes)
}

// Stack returns the current goroutine's stack, used when logging recovered panics.
func Stack() string {
	buf := make([]byte, 16<<10)
	return string(buf[:runtime.Stack(buf, false)])
}

func formatFrames(frames *runtime.Frames, filter []string) string {
	var b strings.Builder
	for {
		fr, more := frames.Next()
		if fr.Function != "" || fr.File != "" {
			if !hasAnyPrefix(fr.Function, filter) && !hasAnyPrefix(fr.File, filter) {
				fmt.Fprintf(&b, "%s %s:%d\n", fr.Function, fr.File, fr.Line)
			}
		}
		if !more {
			break
		}
	}
	return b.String()
}

// hasAnyPrefix reports whether s starts with any prefix in the list.
func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
