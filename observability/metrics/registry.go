// Package metrics owns the host's Prometheus registry and the collectors
// the plugin manager, packet bus and event bus report into.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Global registry shared by every host component.
	registry = prometheus.NewRegistry()

	gatherMu sync.Mutex
	// Additional aggregation sources, e.g. private registries of plugins.
	extraGatherers []prometheus.Gatherer
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// RegisterGatherer lets plugins that keep their own *prometheus.Registry
// expose it through the host's /metrics endpoint.
func RegisterGatherer(g prometheus.Gatherer) {
	if g == nil {
		return
	}
	gatherMu.Lock()
	extraGatherers = append(extraGatherers, g)
	gatherMu.Unlock()
}

// RegisterCollector registers a Collector to the global registry.
func RegisterCollector(c prometheus.Collector) error {
	return registry.Register(c)
}

// MustRegister registers Collectors in batch (will panic if registration fails).
func MustRegister(cs ...prometheus.Collector) {
	registry.MustRegister(cs...)
}

// Gatherer aggregates the host registry and any registered gatherers.
func Gatherer() prometheus.Gatherer {
	gatherMu.Lock()
	defer gatherMu.Unlock()
	g := prometheus.Gatherers{registry}
	return append(g, extraGatherers...)
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer(), promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
