package testsupport

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// CounterValue reads the current value of a counter from the default
// gatherer, matching on metric name plus the given label pairs. Histograms
// report their sample count. An unregistered or never-incremented series
// reads as zero, so callers compare deltas rather than absolutes — the
// default registry is shared across every test in the binary.
func CounterValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err, "gathering metrics")

	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			if !hasLabels(m, labels) {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return 0
}

func hasLabels(m *dto.Metric, want map[string]string) bool {
	if len(want) == 0 {
		return true
	}
	got := make(map[string]string, len(m.GetLabel()))
	for _, pair := range m.GetLabel() {
		got[pair.GetName()] = pair.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

// AssertCounterDelta runs fn and asserts the series moved by exactly delta.
func AssertCounterDelta(t *testing.T, name string, labels map[string]string, delta float64, fn func()) {
	t.Helper()

	before := CounterValue(t, name, labels)
	fn()
	after := CounterValue(t, name, labels)
	assert.Equal(t, delta, after-before, "counter %s%v delta", name, labels)
}

// WaitCounterDelta runs fn and waits for the series to move by delta. For
// paths that increment off the caller's goroutine, like the async syncer.
func WaitCounterDelta(t *testing.T, name string, labels map[string]string, delta float64, fn func()) {
	t.Helper()

	before := CounterValue(t, name, labels)
	fn()
	require.Eventually(t, func() bool {
		return CounterValue(t, name, labels) == before+delta
	}, 2*time.Second, 25*time.Millisecond, "counter %s%v never moved by %v", name, labels, delta)
}
