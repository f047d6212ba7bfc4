package ml

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"arecayield/internal/features"
)

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu            sync.Mutex
	predictions   int
	failures      int
	latencySum    float64
	yields        []float64
	schemaMissing int
	schemaExtra   int
	modelAge      float64
	outliers      map[string]int
}

func (m *MockMetrics) PredictionsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions++
}

func (m *MockMetrics) FailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *MockMetrics) LatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySum += v
}

func (m *MockMetrics) YieldObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.yields = append(m.yields, v)
}

func (m *MockMetrics) SchemaMissingAdd(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemaMissing += n
}

func (m *MockMetrics) SchemaExtraAdd(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemaExtra += n
}

func (m *MockMetrics) ModelAgeSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelAge = v
}

func (m *MockMetrics) FeatureOutlierInc(feature string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outliers == nil {
		m.outliers = make(map[string]int)
	}
	m.outliers[feature]++
}

// testArtifact returns a small ensemble over the encoder's full schema.
// For the Mangala observation (pH 6.5, N 100) the members evaluate to
// linear 20, forest 10 and boosting 3; with weights 1/2/1 the ensemble
// yields 10.75.
func testArtifact() Artifact {
	schema := features.Columns()
	n := len(schema)
	idx := make(map[string]int, n)
	for i, c := range schema {
		idx[c] = i
	}

	mean := make([]float64, n)
	scale := make([]float64, n)
	for i := range scale {
		scale[i] = 1
	}
	mean[idx[features.ColSoilPH]] = 6.0
	scale[idx[features.ColSoilPH]] = 0.5

	coef := make([]float64, n)
	coef[idx[features.ColSoilPH]] = 2.0
	coef[idx[features.ColNitrogen]] = 0.05
	coef[idx[features.ColVarietyMangala]] = 3.0

	phSplit := Tree{
		ChildrenLeft:  []int{1, -1, -1},
		ChildrenRight: []int{2, -1, -1},
		Feature:       []int{idx[features.ColSoilPH], -2, -2},
		Threshold:     []float64{0.0, -2, -2},
		Value:         []float64{10, 5, 15},
	}
	leaf := Tree{
		ChildrenLeft:  []int{-1},
		ChildrenRight: []int{-1},
		Feature:       []int{-2},
		Threshold:     []float64{-2},
		Value:         []float64{5},
	}
	varietySplit := Tree{
		ChildrenLeft:  []int{1, -1, -1},
		ChildrenRight: []int{2, -1, -1},
		Feature:       []int{idx[features.ColVarietyMangala], -2, -2},
		Threshold:     []float64{0.5, -2, -2},
		Value:         []float64{2, 0, 4},
	}

	return Artifact{
		Version: "test-1",
		Target:  "yield_kg_per_palm",
		Scaler: Scaler{
			FeatureNames: schema,
			Mean:         mean,
			Scale:        scale,
		},
		Ensemble: Ensemble{Members: []Member{
			{Name: "ridge", Kind: KindLinear, Coef: coef, Intercept: 10},
			{Name: "rf", Kind: KindForest, Weight: 2, Trees: []Tree{phSplit, leaf}},
			{Name: "gbr", Kind: KindBoosting, Weight: 1, Init: 1, LearningRate: 0.5, Trees: []Tree{varietySplit}},
		}},
	}
}

func writeArtifact(t *testing.T, a Artifact) string {
	t.Helper()
	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal artifact: %v", err)
	}
	path := filepath.Join(t.TempDir(), "ensemble_model.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

func mangalaObservation() features.Observation {
	return features.Observation{
		Variety:            features.VarietyMangala,
		SoilPH:             6.5,
		Nitrogen:           100,
		Phosphorus:         50,
		Potassium:          150,
		OrganicMatter:      10.0,
		BeneficialMicrobes: 5.0,
		BeneficialScale:    features.Scale1e7,
		HarmfulScale:       features.HarmfulNone,
		MicrobialBiomass:   330.0,
		SoilOrganicCarbon:  3.0,
		MicrobialActivity:  features.ActivityHigh,
		SoilEnzymeActivity: features.ActivityHigh,
	}
}
