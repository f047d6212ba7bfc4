// Package ml loads the trained yield model and serves predictions from it.
//
// Two backends implement Model: a native evaluator for the JSON export of the
// fitted scaler and ensemble, and a Python sidecar that unpickles the original
// joblib artifact and answers over HTTP. Gateway sits in front of either one,
// aligns every encoded observation against the model's column list and
// records metrics.
package ml

import (
	"context"
	"errors"
	"time"
)

// Model backends.
const (
	BackendNative = "native"
	BackendPython = "python"
)

var (
	ErrArtifactNotFound = errors.New("model artifact not found")
	ErrArtifactInvalid  = errors.New("model artifact invalid")
	ErrSchemaEmpty      = errors.New("model exposes no feature columns")
)

// Model is a loaded yield model. Implementations are safe for concurrent use
// and never modify the artifact they were loaded from.
type Model interface {
	// Columns returns the ordered input columns the model was fitted on.
	Columns() []string
	// Predict scales one row (ordered as Columns) and returns the ensemble
	// output in kg per palm.
	Predict(ctx context.Context, values []float64) (float64, error)
	Info() ModelInfo
	Close() error
}

// ModelInfo describes the loaded artifact.
type ModelInfo struct {
	Backend   string    `json:"backend"`
	Path      string    `json:"path"`
	Version   string    `json:"version"`
	TrainedAt time.Time `json:"trained_at,omitempty"`
	Target    string    `json:"target,omitempty"`
	Members   []string  `json:"members,omitempty"`
	Features  int       `json:"features"`
	ModTime   time.Time `json:"mod_time,omitempty"`
}

// Config selects and configures a backend.
type Config struct {
	Backend   string
	ModelPath string

	// Python backend only.
	PythonPath     string
	SidecarURL     string
	SidecarPort    int
	StartupTimeout time.Duration
	RequestTimeout time.Duration

	// Drift monitoring; zero threshold disables it.
	Drift DriftConfig
}

// MetricsInterface defines metrics methods needed by the gateway.
type MetricsInterface interface {
	PredictionsInc()
	FailuresInc()
	LatencyObserve(float64)
	YieldObserve(float64)
	SchemaMissingAdd(int)
	SchemaExtraAdd(int)
	ModelAgeSet(float64)
	FeatureOutlierInc(feature string)
}
