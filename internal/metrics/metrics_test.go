package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findMetric(t *testing.T, name string) *dto.MetricFamily {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestRenderCounterOutcomes(t *testing.T) {
	IncRender("banner", "success")
	IncRender("banner", "success")
	IncRender("banner", "timeout")

	mf := findMetric(t, "inkframe_renders_total")
	require.NotNil(t, mf)

	var success, timeout float64
	for _, m := range mf.GetMetric() {
		labels := map[string]string{}
		for _, l := range m.GetLabel() {
			labels[l.GetName()] = l.GetValue()
		}
		if labels["plugin"] != "banner" {
			continue
		}
		switch labels["outcome"] {
		case "success":
			success = m.GetCounter().GetValue()
		case "timeout":
			timeout = m.GetCounter().GetValue()
		}
	}
	assert.GreaterOrEqual(t, success, 2.0)
	assert.GreaterOrEqual(t, timeout, 1.0)
}

func TestActiveExecutionsGauge(t *testing.T) {
	SetActiveExecutions(1)
	mf := findMetric(t, "inkframe_active_executions")
	require.NotNil(t, mf)
	require.Len(t, mf.GetMetric(), 1)
	assert.Equal(t, 1.0, mf.GetMetric()[0].GetGauge().GetValue())

	SetActiveExecutions(0)
	mf = findMetric(t, "inkframe_active_executions")
	assert.Equal(t, 0.0, mf.GetMetric()[0].GetGauge().GetValue())
}

func TestDisplayWriteObservation(t *testing.T) {
	ObserveDisplayWrite(0.25, nil)
	ObserveDisplayWrite(1.5, errors.New("panel busy"))

	mf := findMetric(t, "inkframe_display_writes_total")
	require.NotNil(t, mf)

	outcomes := map[string]float64{}
	for _, m := range mf.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == "outcome" {
				outcomes[l.GetValue()] = m.GetCounter().GetValue()
			}
		}
	}
	assert.GreaterOrEqual(t, outcomes["success"], 1.0)
	assert.GreaterOrEqual(t, outcomes["error"], 1.0)
}
