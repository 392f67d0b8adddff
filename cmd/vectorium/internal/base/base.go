// Package base holds what the vectorium subcommands share: configuration
// and logger bootstrap, tracing and engine construction.
package base

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	traceSdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"

	"github.com/go-lynx/vectorium"
	"github.com/go-lynx/vectorium/conf"
	"github.com/go-lynx/vectorium/examples/plugins/marketdata"
	"github.com/go-lynx/vectorium/examples/plugins/numbergen"
	"github.com/go-lynx/vectorium/examples/plugins/numberlogger"
	"github.com/go-lynx/vectorium/loader"
	"github.com/go-lynx/vectorium/log"
)

// Release is the CLI version, set by main.
var Release = "dev"

var (
	// ConfigPath is bound to the global --config flag.
	ConfigPath string
	// LogLevel is bound to the global --log-level flag and overrides the file.
	LogLevel string
)

// ResolveConfigPath returns --config or the default next to the executable.
func ResolveConfigPath() string {
	if ConfigPath != "" {
		return ConfigPath
	}
	return conf.DefaultPath()
}

// LoadConfig loads the configuration, writing a default file when none
// is readable.
func LoadConfig() (*conf.Config, string, error) {
	path := ResolveConfigPath()
	cfg, err := conf.Load(path)
	if err != nil {
		return nil, path, err
	}
	if LogLevel != "" {
		cfg.Log.Level = LogLevel
	}
	return cfg, path, nil
}

// InitLogging installs the root logger. Console output is disabled when
// ring is set, since the console UI owns the terminal.
func InitLogging(cfg *conf.Config, ring *log.Ring) (func() error, error) {
	file := cfg.Log.File
	if file != "" && !filepath.IsAbs(file) {
		file = filepath.Join(filepath.Dir(ResolveConfigPath()), file)
	}
	return log.Init(log.Options{
		Name:       "vectorium",
		Version:    Release,
		Level:      cfg.Log.Level,
		Console:    ring == nil,
		ConsoleOut: os.Stderr,
		File:       file,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
		Ring:       ring,

		FileFlushInterval: time.Second,
	})
}

// SetupTracing exports spans over OTLP/gRPC when endpoint is set. The
// returned func flushes and stops the exporter.
func SetupTracing(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	log.Infof("initializing trace exporter for %s", endpoint)
	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithCompressor("gzip"),
	)
	if err != nil {
		return nil, err
	}
	host, _ := os.Hostname()
	tp := traceSdk.NewTracerProvider(
		traceSdk.WithSampler(traceSdk.ParentBased(traceSdk.AlwaysSample())),
		traceSdk.WithBatcher(exp),
		traceSdk.WithResource(resource.NewSchemaless(
			semconv.ServiceInstanceIDKey.String(host),
			semconv.ServiceNameKey.String("vectorium"),
			semconv.ServiceVersionKey.String(Release),
		)),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// BuiltinLoader serves the sample plugins from memory under dir.
func BuiltinLoader(dir string) *loader.StaticLoader {
	s := loader.NewStaticLoader()
	s.AddPlugin(dir, numbergen.Descriptor(), numbergen.New)
	s.AddPlugin(dir, numberlogger.Descriptor(), numberlogger.New)
	s.AddPlugin(dir, marketdata.Descriptor(), marketdata.New)
	return s
}

// NewEngine builds an engine over cfg. With builtin set, libraries come
// from BuiltinLoader instead of the filesystem.
func NewEngine(cfg *conf.Config, path string, builtin bool) *vectorium.Engine {
	opts := vectorium.EngineOptions{Config: cfg, ConfigPath: path}
	if builtin {
		opts.Loader = BuiltinLoader(cfg.PluginDirectory)
	}
	return vectorium.NewEngine(opts)
}

// LoadNamed loads each name from the plugin directory, logging failures.
func LoadNamed(m *vectorium.PluginManager, names []string) {
	for _, name := range names {
		if err := m.Load(m.PathFor(name), name); err != nil {
			log.Errorf("failed to load %s: %v", name, err)
		}
	}
}
