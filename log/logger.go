package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures Init.
type Options struct {
	// Name is attached to every line as service.name.
	Name    string
	Version string
	Level   string

	// Console enables human readable output to ConsoleOut (stdout when nil).
	Console    bool
	ConsoleOut io.Writer
	NoColor    bool

	// File enables a rotating file sink when non-empty.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	// FileFlushInterval, when positive, buffers file writes and flushes
	// them at this interval.
	FileFlushInterval time.Duration

	// Ring, when set, receives every line (the UI log window).
	Ring *Ring

	CallerSkip int
}

const defaultCallerSkip = 4

// Init builds the zerolog backed root logger and installs it.
// The returned closer releases the file sink, if any.
func Init(opts Options) (func() error, error) {
	var writers []io.Writer
	closer := func() error { return nil }

	if opts.Console {
		out := opts.ConsoleOut
		if out == nil {
			out = os.Stdout
		}
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    opts.NoColor,
			PartsOrder: []string{
				zerolog.TimestampFieldName,
				zerolog.LevelFieldName,
				zerolog.CallerFieldName,
				zerolog.MessageFieldName,
			},
		})
	}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return closer, fmt.Errorf("failed to create log directory: %w", err)
		}
		fw := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		if opts.FileFlushInterval > 0 {
			bw := newBatchWriter(fw, 0, opts.FileFlushInterval)
			writers = append(writers, bw)
			closer = func() error {
				err := bw.Close()
				if cerr := fw.Close(); err == nil {
					err = cerr
				}
				return err
			}
		} else {
			writers = append(writers, fw)
			closer = fw.Close
		}
	}

	if opts.Ring != nil {
		writers = append(writers, zerolog.ConsoleWriter{Out: opts.Ring, NoColor: true, TimeFormat: time.TimeOnly})
	}

	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	zl = zl.Level(zerolog.DebugLevel)

	skip := opts.CallerSkip
	if skip <= 0 {
		skip = defaultCallerSkip
	}
	name := opts.Name
	if name == "" {
		name = "vectorium"
	}

	SetLevel(ParseLevel(opts.Level))
	install(log.With(zeroLogLogger{logger: zl},
		"caller", log.Caller(skip),
		"service.name", name,
		"service.version", opts.Version,
	))
	return closer, nil
}
