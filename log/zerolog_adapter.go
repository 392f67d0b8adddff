package log

import (
	"fmt"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/rs/zerolog"
)

// zeroLogLogger adapts a zerolog.Logger to the Kratos log.Logger interface.
type zeroLogLogger struct {
	logger zerolog.Logger
}

// Log implements log.Logger.
func (l zeroLogLogger) Log(level log.Level, keyvals ...any) error {
	// Tolerate odd number of keyvals by appending a placeholder value
	if len(keyvals)%2 != 0 {
		keyvals = append(keyvals, "BAD_VALUE")
	}

	var event *zerolog.Event
	switch level {
	case log.LevelDebug:
		event = l.logger.Debug()
	case log.LevelInfo:
		event = l.logger.Info()
	case log.LevelWarn:
		event = l.logger.Warn()
	case log.LevelError:
		event = l.logger.Error()
	case log.LevelFatal:
		// never exit the host from a plugin log line
		event = l.logger.Error().Bool("fatal", true)
	default:
		event = l.logger.Warn().Interface("original_level", level)
	}

	var msg string
	for i := 0; i < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprintf("BAD_KEY_%d", i)
		}
		val := keyvals[i+1]

		switch key {
		case log.DefaultMessageKey:
			if s, ok := val.(string); ok {
				msg = s
			} else {
				msg = fmt.Sprint(val)
			}
			continue
		case "err", "error":
			if e, ok := val.(error); ok {
				event = event.Err(e)
				continue
			}
		}
		event = event.Interface(key, val)
	}

	if level >= log.LevelError {
		if stack := captureStack(); stack != "" {
			event = event.Str("stack", stack)
		}
	}

	event.Msg(msg)
	return nil
}
