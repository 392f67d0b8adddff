package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vectorium"

var (
	PluginsLoaded = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "plugins_loaded",
		Help:      "Number of plugins currently loaded",
	})

	PluginsDiscovered = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "plugins_discovered",
		Help:      "Number of plugins known to the manager",
	})

	PluginLoads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "plugin_loads_total",
		Help:      "Plugin load attempts by result",
	}, []string{"plugin", "result"})

	PluginUnloads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "plugin_unloads_total",
		Help:      "Plugin unloads",
	}, []string{"plugin"})

	PluginPanics = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "plugin_panics_total",
		Help:      "Panics recovered at plugin call boundaries",
	}, []string{"plugin", "hook"})

	PacketsDispatched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "packets_dispatched_total",
		Help:      "Packets dispatched on the data bus by payload type",
	}, []string{"type"})

	HandlerCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "packet_handler_calls_total",
		Help:      "Packet handler invocations by owner and result",
	}, []string{"owner", "result"})

	ScanDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "plugin_scan_duration_seconds",
		Help:      "Time spent scanning the plugin directory",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
	})

	EngineEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "engine_events_total",
		Help:      "Engine events published by kind",
	}, []string{"kind"})

	TickSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "plugin_ticks_skipped_total",
		Help:      "Ticks skipped because the plugin's breaker was open",
	}, []string{"plugin"})
)

func init() {
	MustRegister(
		PluginsLoaded,
		PluginsDiscovered,
		PluginLoads,
		PluginUnloads,
		PluginPanics,
		PacketsDispatched,
		HandlerCalls,
		ScanDuration,
		EngineEvents,
		TickSkipped,
	)
}

// Result labels for HandlerCalls and PluginLoads.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultPanic    = "panic"
	ResultFailed   = "failed"
)
