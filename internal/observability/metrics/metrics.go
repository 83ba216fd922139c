package metrics

import "github.com/prometheus/client_golang/prometheus"

// EngineMetrics exposes counters/histograms for the nudge pipeline.
type EngineMetrics struct {
	runsTotal     *prometheus.CounterVec
	scorerStage   *prometheus.CounterVec
	selectionMode *prometheus.CounterVec
	runLatency    prometheus.Histogram
	sweepMarked   prometheus.Counter
}

func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nudge",
			Subsystem: "engine",
			Name:      "runs_total",
			Help:      "Pipeline runs by terminal reason",
		}, []string{"reason"}),
		scorerStage: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nudge",
			Subsystem: "engine",
			Name:      "scorer_stage_total",
			Help:      "Which scoring strategy produced the probabilities",
		}, []string{"stage"}),
		selectionMode: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nudge",
			Subsystem: "engine",
			Name:      "selection_mode_total",
			Help:      "Selections by explore/exploit mode",
		}, []string{"mode"}),
		runLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nudge",
			Subsystem: "engine",
			Name:      "run_latency_seconds",
			Help:      "End-to-end pipeline run latency",
			Buckets:   prometheus.DefBuckets,
		}),
		sweepMarked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nudge",
			Subsystem: "engine",
			Name:      "expiry_sweep_marked_total",
			Help:      "Events marked expired by the TTL sweep",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.runsTotal, m.scorerStage, m.selectionMode, m.runLatency, m.sweepMarked)
	return m
}

func (m *EngineMetrics) ObserveRun(reason string, seconds float64) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(reason).Inc()
	m.runLatency.Observe(seconds)
}

func (m *EngineMetrics) ObserveSelection(stage, mode string) {
	if m == nil {
		return
	}
	m.scorerStage.WithLabelValues(stage).Inc()
	m.selectionMode.WithLabelValues(mode).Inc()
}

func (m *EngineMetrics) ObserveSweep(marked int) {
	if m == nil {
		return
	}
	m.sweepMarked.Add(float64(marked))
}
