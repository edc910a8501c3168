package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ldb"

var (
	OpenHandles = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name:      "open_handles",
			Namespace: namespace,
			Subsystem: "lifecycle",
			Help:      "Native resource handles currently registered and not yet released.",
		},
		[]string{"kind"},
	)

	HandleReleases = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "handle_releases_total",
			Namespace: namespace,
			Subsystem: "lifecycle",
			Help:      "Native resource handles released, by kind and outcome.",
		},
		[]string{"kind", "result"},
	)

	Cascades = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:      "cascades_total",
			Namespace: namespace,
			Subsystem: "lifecycle",
			Help:      "Close calls that also released at least one dependent handle.",
		},
	)

	Operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "operations_total",
			Namespace: namespace,
			Subsystem: "db",
			Help:      "Engine operations issued through the adapter.",
		},
		[]string{"op"},
	)

	StorageErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "storage_errors_total",
			Namespace: namespace,
			Subsystem: "db",
			Help:      "Engine-reported failures translated into storage errors.",
		},
		[]string{"op"},
	)
)

var registerOnce sync.Once

// RegisterMetrics registers every collector with reg once; later calls are no-ops.
func RegisterMetrics(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(OpenHandles, HandleReleases, Cascades, Operations, StorageErrors)
	})
}
