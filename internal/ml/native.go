package ml

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/rs/zerolog/log"
)

// NativeModel evaluates a JSON artifact in process.
type NativeModel struct {
	artifact *Artifact
	info     ModelInfo
}

// NewNativeModel loads the artifact at path.
func NewNativeModel(path string) (*NativeModel, error) {
	a, err := LoadArtifact(path)
	if err != nil {
		return nil, err
	}

	info := ModelInfo{
		Backend:   BackendNative,
		Path:      path,
		Version:   a.Version,
		TrainedAt: a.TrainedAt,
		Target:    a.Target,
		Features:  len(a.Scaler.FeatureNames),
	}
	for _, m := range a.Ensemble.Members {
		info.Members = append(info.Members, fmt.Sprintf("%s:%s", m.Kind, m.Name))
	}
	if st, err := os.Stat(path); err == nil {
		info.ModTime = st.ModTime()
	}

	log.Info().
		Str("model_path", path).
		Str("version", a.Version).
		Int("features", info.Features).
		Strs("members", info.Members).
		Msg("model artifact loaded")

	return &NativeModel{artifact: a, info: info}, nil
}

func (m *NativeModel) Columns() []string {
	out := make([]string, len(m.artifact.Scaler.FeatureNames))
	copy(out, m.artifact.Scaler.FeatureNames)
	return out
}

func (m *NativeModel) Predict(_ context.Context, values []float64) (float64, error) {
	if len(values) != len(m.artifact.Scaler.FeatureNames) {
		return 0, fmt.Errorf("expected %d features, got %d", len(m.artifact.Scaler.FeatureNames), len(values))
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("feature %q is not finite", m.artifact.Scaler.FeatureNames[i])
		}
	}

	y := m.artifact.Ensemble.Predict(m.artifact.Scaler.Transform(values))
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return 0, fmt.Errorf("ensemble returned non-finite value %v", y)
	}
	return y, nil
}

// Baseline exposes the scaler statistics as the training distribution.
func (m *NativeModel) Baseline() (Baseline, bool) {
	s := m.artifact.Scaler
	return Baseline{
		Columns: append([]string(nil), s.FeatureNames...),
		Mean:    append([]float64(nil), s.Mean...),
		Scale:   append([]float64(nil), s.Scale...),
	}, true
}

func (m *NativeModel) Info() ModelInfo {
	info := m.info
	info.Members = append([]string(nil), m.info.Members...)
	return info
}

func (m *NativeModel) Close() error {
	return nil
}
