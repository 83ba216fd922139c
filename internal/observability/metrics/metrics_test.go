package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestEngineMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewEngineMetrics(reg)

	m.ObserveRun("sent", 0.25)
	m.ObserveRun("too_soon", 0.01)
	m.ObserveRun("sent", 0.5)
	m.ObserveSelection("heuristic", "exploit")
	m.ObserveSweep(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("too_soon")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scorerStage.WithLabelValues("heuristic")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.sweepMarked))
}

func TestEngineMetricsNilSafe(t *testing.T) {
	var m *EngineMetrics
	m.ObserveRun("sent", 0.1)
	m.ObserveSelection("remote", "explore")
	m.ObserveSweep(1)
}
