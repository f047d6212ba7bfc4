package ml

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"arecayield/internal/features"

	"github.com/rs/zerolog/log"
)

// Prediction is the outcome of one observation.
type Prediction struct {
	YieldKg      float64              `json:"yield_kg_per_palm"`
	Features     features.FeatureRow  `json:"features"`
	Alignment    features.AlignReport `json:"alignment"`
	ModelVersion string               `json:"model_version"`
	Outliers     []DriftAlert         `json:"outliers,omitempty"`
	Latency      time.Duration        `json:"-"`
}

// Gateway is the single entry point for predictions. It owns one loaded
// Model; the model is read-only, so a Gateway can be shared by all requests.
type Gateway struct {
	model   Model
	schema  []string
	metrics MetricsInterface
	drift   *DriftMonitor
}

// Open builds the backend selected by cfg. A missing or unreadable artifact
// is returned as an error wrapping ErrArtifactNotFound or ErrArtifactInvalid.
func Open(ctx context.Context, cfg Config, metrics MetricsInterface) (*Gateway, error) {
	var (
		model Model
		err   error
	)

	switch cfg.Backend {
	case "", BackendNative:
		model, err = NewNativeModel(cfg.ModelPath)
	case BackendPython:
		model, err = NewSidecar(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown model backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	g, err := NewGateway(model, metrics)
	if err != nil {
		model.Close()
		return nil, err
	}

	if cfg.Drift.Threshold > 0 {
		if b, ok := model.(Baseliner); ok {
			if baseline, ok := b.Baseline(); ok {
				g.SetDriftMonitor(NewDriftMonitor(baseline, cfg.Drift, metrics))
			}
		} else {
			log.Info().Str("backend", cfg.Backend).Msg("backend has no training baseline; drift monitoring off")
		}
	}
	return g, nil
}

// NewGateway wraps an already loaded model.
func NewGateway(model Model, metrics MetricsInterface) (*Gateway, error) {
	if model == nil {
		return nil, errors.New("model is nil")
	}
	schema := model.Columns()
	if len(schema) == 0 {
		return nil, ErrSchemaEmpty
	}

	g := &Gateway{model: model, schema: schema, metrics: metrics}

	drift := g.EncoderDrift()
	if drift.Drifted() {
		log.Warn().
			Strs("missing_columns", drift.Missing).
			Msg("model expects columns the encoder never produces; they will always be zero")
	}
	if len(drift.Extra) > 0 {
		log.Info().Strs("ignored_columns", drift.Extra).Msg("encoder columns unknown to the model are dropped")
	}

	if metrics != nil {
		if mt := model.Info().ModTime; !mt.IsZero() {
			metrics.ModelAgeSet(time.Since(mt).Seconds())
		}
	}

	return g, nil
}

// Schema returns the model's ordered column list.
func (g *Gateway) Schema() []string {
	out := make([]string, len(g.schema))
	copy(out, g.schema)
	return out
}

// SetDriftMonitor attaches m; every later prediction is checked against it.
func (g *Gateway) SetDriftMonitor(m *DriftMonitor) {
	g.drift = m
}

// DriftStatus returns the recent mean z-score per column, or nil when no
// monitor is attached.
func (g *Gateway) DriftStatus() map[string]float64 {
	if g.drift == nil {
		return nil
	}
	return g.drift.Status()
}

func (g *Gateway) Info() ModelInfo {
	return g.model.Info()
}

// EncoderDrift compares the encoder's column set with the model's.
func (g *Gateway) EncoderDrift() features.AlignReport {
	raw := make(map[string]float64)
	for _, col := range features.Columns() {
		raw[col] = 0
	}
	_, report := features.Align(raw, g.schema)
	return report
}

// Predict encodes obs, aligns it against the model schema and runs the model.
func (g *Gateway) Predict(ctx context.Context, obs features.Observation) (Prediction, error) {
	start := time.Now()

	row, report := features.Build(obs, g.schema)
	if report.Drifted() {
		log.Warn().
			Strs("missing_columns", report.Missing).
			Msg("feature row zero-filled for columns the encoder did not produce")
		if g.metrics != nil {
			g.metrics.SchemaMissingAdd(len(report.Missing))
		}
	}
	if len(report.Extra) > 0 && g.metrics != nil {
		g.metrics.SchemaExtraAdd(len(report.Extra))
	}

	y, err := g.PredictRow(ctx, row)
	if err != nil {
		return Prediction{}, err
	}

	var outliers []DriftAlert
	if g.drift != nil {
		outliers = g.drift.Observe(row)
	}

	latency := time.Since(start)
	if g.metrics != nil {
		g.metrics.LatencyObserve(latency.Seconds())
	}

	log.Debug().
		Str("variety", string(obs.Variety)).
		Float64("yield_kg", y).
		Dur("latency", latency).
		Msg("prediction successful")

	return Prediction{
		YieldKg:      y,
		Features:     row,
		Alignment:    report,
		ModelVersion: g.model.Info().Version,
		Outliers:     outliers,
		Latency:      latency,
	}, nil
}

// PredictRow runs the model on a row that is already aligned to Schema.
func (g *Gateway) PredictRow(ctx context.Context, row features.FeatureRow) (float64, error) {
	if err := row.MatchesSchema(g.schema); err != nil {
		g.fail()
		return 0, fmt.Errorf("feature row not aligned: %w", err)
	}

	y, err := g.model.Predict(ctx, row.Values)
	if err != nil {
		g.fail()
		log.Error().Err(err).Msg("model prediction failed")
		return 0, fmt.Errorf("predict: %w", err)
	}
	if math.IsNaN(y) || math.IsInf(y, 0) {
		g.fail()
		return 0, fmt.Errorf("predict: non-finite yield %v", y)
	}

	if g.metrics != nil {
		g.metrics.PredictionsInc()
		g.metrics.YieldObserve(y)
	}
	return y, nil
}

func (g *Gateway) fail() {
	if g.metrics != nil {
		g.metrics.FailuresInc()
	}
}

func (g *Gateway) Close() error {
	return g.model.Close()
}
