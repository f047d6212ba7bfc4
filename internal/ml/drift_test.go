package ml

import (
	"context"
	"testing"
	"time"

	"arecayield/internal/features"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriftMonitor_FlagsOutliers(t *testing.T) {
	metrics := &MockMetrics{}
	d := NewDriftMonitor(Baseline{
		Columns: []string{"ph", "n"},
		Mean:    []float64{6, 100},
		Scale:   []float64{0.5, 20},
	}, DriftConfig{Threshold: 3}, metrics)

	alerts := d.Observe(features.FeatureRow{
		Columns: []string{"ph", "n", "unknown"},
		Values:  []float64{9, 110, 1e9},
	})

	require.Len(t, alerts, 1)
	assert.Equal(t, "ph", alerts[0].Feature)
	assert.Equal(t, 6.0, alerts[0].ZScore)
	assert.Equal(t, 1, metrics.outliers["ph"])
	assert.Zero(t, metrics.outliers["unknown"])

	status := d.Status()
	assert.Equal(t, 6.0, status["ph"])
	assert.Equal(t, 0.5, status["n"])
	assert.NotContains(t, status, "unknown")
}

func TestDriftMonitor_WindowAndReset(t *testing.T) {
	d := NewDriftMonitor(Baseline{
		Columns: []string{"x"},
		Mean:    []float64{0},
		Scale:   []float64{1},
	}, DriftConfig{Threshold: 10, WindowSize: 2, AlertCooldown: time.Minute}, nil)

	for _, v := range []float64{100, 1, 3} {
		d.Observe(features.FeatureRow{Columns: []string{"x"}, Values: []float64{v}})
	}
	assert.Equal(t, 2.0, d.Status()["x"], "only the last two z-scores count")

	d.Reset()
	assert.Empty(t, d.Status())
}

func TestGateway_DriftMonitorAttachedForNativeBackend(t *testing.T) {
	metrics := &MockMetrics{}
	g, err := Open(context.Background(), Config{
		ModelPath: writeArtifact(t, testArtifact()),
		Drift:     DriftConfig{Threshold: 3},
	}, metrics)
	require.NoError(t, err)

	obs := mangalaObservation()
	obs.SoilPH = 8.5 // z = 5 against mean 6, scale 0.5
	pred, err := g.Predict(context.Background(), obs)
	require.NoError(t, err)

	var flagged []string
	for _, a := range pred.Outliers {
		flagged = append(flagged, a.Feature)
	}
	assert.Contains(t, flagged, features.ColSoilPH)
	assert.NotNil(t, g.DriftStatus())
}

func TestGateway_DriftDisabledByDefault(t *testing.T) {
	g, err := Open(context.Background(), Config{ModelPath: writeArtifact(t, testArtifact())}, nil)
	require.NoError(t, err)

	obs := mangalaObservation()
	obs.SoilPH = 8.5
	pred, err := g.Predict(context.Background(), obs)
	require.NoError(t, err)

	assert.Empty(t, pred.Outliers)
	assert.Nil(t, g.DriftStatus())
}
