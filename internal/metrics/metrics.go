// Package metrics exposes the daemon's Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rendersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkframe_renders_total",
		Help: "Completed one-shot renders by plugin and outcome",
	}, []string{"plugin", "outcome"}) // outcome=success|timeout|error|cached

	executionsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkframe_executions_started_total",
		Help: "Plugin executions started by mode",
	}, []string{"plugin", "mode"}) // mode=oneshot|continuous

	activeExecutions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inkframe_active_executions",
		Help: "Number of currently active plugin executions (0 or 1)",
	})

	resolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkframe_resolutions_total",
		Help: "Schedule resolutions by origin",
	}, []string{"origin"}) // origin=scheduled|default|none

	displayWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkframe_display_writes_total",
		Help: "Writes to the output device by outcome",
	}, []string{"outcome"}) // outcome=success|error

	displayWriteSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inkframe_display_write_duration_seconds",
		Help:    "Latency of output device writes",
		Buckets: prometheus.DefBuckets,
	})

	stuckWorkers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkframe_stuck_workers_total",
		Help: "Workers that failed to exit within the join bound and were orphaned",
	})

	pluginsLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inkframe_plugins_loaded",
		Help: "Plugins loaded by the last discovery",
	})
)

func IncRender(pluginID, outcome string) { rendersTotal.WithLabelValues(pluginID, outcome).Inc() }

func IncExecutionStarted(pluginID, mode string) {
	executionsStarted.WithLabelValues(pluginID, mode).Inc()
}

func SetActiveExecutions(n int) { activeExecutions.Set(float64(n)) }

func IncResolution(origin string) { resolutionsTotal.WithLabelValues(origin).Inc() }

func ObserveDisplayWrite(seconds float64, err error) {
	displayWriteSeconds.Observe(seconds)
	if err != nil {
		displayWrites.WithLabelValues("error").Inc()
	} else {
		displayWrites.WithLabelValues("success").Inc()
	}
}

func IncStuckWorker() { stuckWorkers.Inc() }

func SetPluginsLoaded(n int) { pluginsLoaded.Set(float64(n)) }
