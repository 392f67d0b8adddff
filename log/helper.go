// Package log provides the host-wide logging facade for vectorium.
// It wraps the Kratos logging system and exposes leveled helpers that are
// safe to call before Init, falling back to plain stderr output.
package log

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

// Level represents the logging level.
type Level int32

const (
	// DebugLevel logs are voluminous and usually only enabled per plugin.
	DebugLevel Level = iota
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel logs are more important than Info, but don't need individual human review.
	WarnLevel
	// ErrorLevel logs are high-priority.
	ErrorLevel
)

// String returns the lower-case level name.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int32(l))
	}
}

// ParseLevel maps a config string to a Level, defaulting to InfoLevel.
func ParseLevel(s string) Level {
	switch s {
	case "debug", "DEBUG":
		return DebugLevel
	case "warn", "WARN", "warning":
		return WarnLevel
	case "error", "ERROR":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Kratos converts the level to its Kratos counterpart.
func (l Level) Kratos() log.Level {
	switch l {
	case DebugLevel:
		return log.LevelDebug
	case WarnLevel:
		return log.LevelWarn
	case ErrorLevel:
		return log.LevelError
	default:
		return log.LevelInfo
	}
}

var (
	// loggerStore holds the root log.Logger installed by Init.
	loggerStore atomic.Value // of log.Logger

	// helperStore stores *log.Helper atomically for safe re-initialisation.
	helperStore atomic.Value // of *log.Helper

	minLevel atomic.Int32
)

func init() {
	minLevel.Store(int32(InfoLevel))
}

// SetLevel sets the global logging level and rebuilds the helper.
func SetLevel(level Level) {
	minLevel.Store(int32(level))
	if l := Logger(); l != nil {
		install(rawLogger())
	}
}

// GetLevel returns the current global logging level.
func GetLevel() Level {
	return Level(minLevel.Load())
}

// Logger returns the root logger, or nil before Init.
func Logger() log.Logger {
	if v := loggerStore.Load(); v != nil {
		if l, ok := v.(loggerBox); ok {
			return l.filtered
		}
	}
	return nil
}

// rawLogger returns the unfiltered root logger.
func rawLogger() log.Logger {
	if v := loggerStore.Load(); v != nil {
		if l, ok := v.(loggerBox); ok {
			return l.raw
		}
	}
	return nil
}

// Raw returns the root logger without the global level filter applied.
// Plugin scoped loggers filter on their own debug switch.
func Raw() log.Logger {
	if l := rawLogger(); l != nil {
		return l
	}
	return log.NewStdLogger(os.Stderr)
}

type loggerBox struct {
	raw      log.Logger
	filtered log.Logger
}

// install wires raw as the root logger and rebuilds the filtered helper.
func install(raw log.Logger) {
	filtered := log.NewFilter(raw, log.FilterLevel(GetLevel().Kratos()))
	loggerStore.Store(loggerBox{raw: raw, filtered: filtered})
	helperStore.Store(log.NewHelper(filtered))
}

// SetLogger installs an already built logger, used by tests and embedders.
func SetLogger(l log.Logger) {
	if l == nil {
		return
	}
	install(l)
}

// fallbackLogger writes plain lines to stderr when Init was never called.
type fallbackLogger struct{}

func (fallbackLogger) logFormat(level, format string, args ...any) {
	ts := time.Now().Format("2006-01-02 15:04:05.000")
	_, _ = fmt.Fprintf(os.Stderr, "[%s] [%s] [vectorium] %s\n", ts, level, fmt.Sprintf(format, args...))
}

var fallback fallbackLogger

func helper() *log.Helper {
	if v := helperStore.Load(); v != nil {
		if h, ok := v.(*log.Helper); ok && h != nil {
			return h
		}
	}
	return nil
}

func Debugf(format string, a ...any) {
	if h := helper(); h != nil {
		h.Debugf(format, a...)
	} else if GetLevel() <= DebugLevel {
		fallback.logFormat("DEBUG", format, a...)
	}
}

func Debugw(keyvals ...any) {
	if h := helper(); h != nil {
		h.Debugw(keyvals...)
	}
}

func Infof(format string, a ...any) {
	if h := helper(); h != nil {
		h.Infof(format, a...)
	} else {
		fallback.logFormat("INFO", format, a...)
	}
}

func Infow(keyvals ...any) {
	if h := helper(); h != nil {
		h.Infow(keyvals...)
	}
}

func Warnf(format string, a ...any) {
	if h := helper(); h != nil {
		h.Warnf(format, a...)
	} else {
		fallback.logFormat("WARN", format, a...)
	}
}

func Warnw(keyvals ...any) {
	if h := helper(); h != nil {
		h.Warnw(keyvals...)
	}
}

func Errorf(format string, a ...any) {
	if h := helper(); h != nil {
		h.Errorf(format, a...)
	} else {
		fallback.logFormat("ERROR", format, a...)
	}
}

func Errorw(keyvals ...any) {
	if h := helper(); h != nil {
		h.Errorw(keyvals...)
	}
}
