package metrics

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry = prometheus.NewRegistry()

	processes = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "warden",
		Name:      "processes",
		Help:      "Number of tracked processes by kind.",
	}, []string{"kind"})

	registrations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "warden",
		Name:      "registrations_total",
		Help:      "Total number of processes registered by kind.",
	}, []string{"kind"})

	kills = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "warden",
		Name:      "kills_total",
		Help:      "Total number of completed kill operations.",
	})

	killDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "warden",
		Name:      "kill_duration_seconds",
		Help:      "Wall-clock duration of kill operations in seconds.",
	})

	cleanupRemoved = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "warden",
		Name:      "cleanup_removed_total",
		Help:      "Total number of exited processes removed by cleanup passes.",
	})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "warden",
		Name:      "build_info",
		Help:      "Build metadata for the running warden binary.",
	}, []string{"go_version", "vcs", "vcs_revision", "vcs_time", "vcs_modified"})

	buildInfoOnce sync.Once
)

func init() {
	registry.MustRegister(processes, registrations, kills, killDuration, cleanupRemoved, buildInfo)
}

// Registry returns the Prometheus registry containing all warden metrics.
func Registry() *prometheus.Registry {
	return registry
}

// SetProcesses records the current number of tracked processes for a kind.
func SetProcesses(kind string, n int) {
	if kind == "" {
		return
	}
	processes.WithLabelValues(kind).Set(float64(n))
}

// IncrementRegistration counts one successful registration for a kind.
func IncrementRegistration(kind string) {
	if kind == "" {
		return
	}
	registrations.WithLabelValues(kind).Inc()
}

// ObserveKill records one completed kill operation and its duration.
func ObserveKill(d time.Duration) {
	kills.Inc()
	killDuration.Observe(d.Seconds())
}

// AddCleanupRemoved counts processes removed by a cleanup pass.
func AddCleanupRemoved(n int) {
	if n <= 0 {
		return
	}
	cleanupRemoved.Add(float64(n))
}

// EmitBuildInfo publishes build metadata about the running binary.
func EmitBuildInfo() {
	buildInfoOnce.Do(func() {
		labels := prometheus.Labels{
			"go_version":   runtime.Version(),
			"vcs":          "",
			"vcs_revision": "",
			"vcs_time":     "",
			"vcs_modified": "",
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.GoVersion != "" {
				labels["go_version"] = info.GoVersion
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs":
					labels["vcs"] = setting.Value
				case "vcs.revision":
					labels["vcs_revision"] = setting.Value
				case "vcs.time":
					labels["vcs_time"] = setting.Value
				case "vcs.modified":
					labels["vcs_modified"] = setting.Value
				}
			}
		}
		buildInfo.With(labels).Set(1)
	})
}
