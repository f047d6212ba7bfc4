package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"time"
)

// Member kinds understood by the native evaluator.
const (
	KindLinear   = "linear"
	KindForest   = "forest"
	KindBoosting = "boosting"
)

// Artifact is the JSON export of the fitted pipeline: a standard scaler and
// a weighted-mean ensemble of regressors.
type Artifact struct {
	Version   string    `json:"version"`
	TrainedAt time.Time `json:"trained_at"`
	Target    string    `json:"target"`
	Scaler    Scaler    `json:"scaler"`
	Ensemble  Ensemble  `json:"ensemble"`
}

// Scaler mirrors a fitted StandardScaler. FeatureNames is the authoritative
// column order for every prediction.
type Scaler struct {
	FeatureNames []string  `json:"feature_names_in"`
	Mean         []float64 `json:"mean"`
	Scale        []float64 `json:"scale"`
}

type Ensemble struct {
	Members []Member `json:"members"`
}

// Member is one fitted regressor of the ensemble.
type Member struct {
	Name   string  `json:"name"`
	Kind   string  `json:"kind"`
	Weight float64 `json:"weight"`

	// linear
	Coef      []float64 `json:"coef,omitempty"`
	Intercept float64   `json:"intercept,omitempty"`

	// forest, boosting
	Trees        []Tree  `json:"trees,omitempty"`
	LearningRate float64 `json:"learning_rate,omitempty"`
	Init         float64 `json:"init,omitempty"`
}

// Tree is a regression tree in array form. A node is a leaf when both of its
// children are -1; otherwise samples with x[Feature] <= Threshold go left.
type Tree struct {
	ChildrenLeft  []int     `json:"children_left"`
	ChildrenRight []int     `json:"children_right"`
	Feature       []int     `json:"feature"`
	Threshold     []float64 `json:"threshold"`
	Value         []float64 `json:"value"`
}

// LoadArtifact reads and validates the artifact at path.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
		}
		return nil, fmt.Errorf("read model artifact %s: %w", path, err)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrArtifactInvalid, path, err)
	}
	if err := a.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArtifactInvalid, path, err)
	}
	a.normalize()

	return &a, nil
}

func (a *Artifact) validate() error {
	n := len(a.Scaler.FeatureNames)
	if n == 0 {
		return ErrSchemaEmpty
	}
	seen := make(map[string]struct{}, n)
	for _, name := range a.Scaler.FeatureNames {
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate feature column %q", name)
		}
		seen[name] = struct{}{}
	}
	if len(a.Scaler.Mean) != n || len(a.Scaler.Scale) != n {
		return fmt.Errorf("scaler has %d columns but %d means and %d scales", n, len(a.Scaler.Mean), len(a.Scaler.Scale))
	}
	if len(a.Ensemble.Members) == 0 {
		return errors.New("ensemble has no members")
	}

	var total float64
	for i, m := range a.Ensemble.Members {
		if err := m.validate(n); err != nil {
			return fmt.Errorf("member %d (%s): %w", i, m.Name, err)
		}
		total += m.weight()
	}
	if total <= 0 {
		return errors.New("ensemble weights sum to zero")
	}
	return nil
}

// normalize applies the scaler convention that a zero scale leaves the
// centred value unchanged. Runs once, before the artifact is shared.
func (a *Artifact) normalize() {
	for i, s := range a.Scaler.Scale {
		if s == 0 {
			a.Scaler.Scale[i] = 1
		}
	}
}

// Transform returns the standardized copy of x.
func (s Scaler) Transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = (v - s.Mean[i]) / s.Scale[i]
	}
	return out
}

// Predict returns the weighted mean of the member outputs for a scaled row.
func (e Ensemble) Predict(x []float64) float64 {
	var sum, weights float64
	for _, m := range e.Members {
		w := m.weight()
		sum += w * m.predict(x)
		weights += w
	}
	return sum / weights
}

func (m Member) weight() float64 {
	if m.Weight == 0 {
		return 1
	}
	return m.Weight
}

func (m Member) predict(x []float64) float64 {
	switch m.Kind {
	case KindLinear:
		y := m.Intercept
		for i, c := range m.Coef {
			y += c * x[i]
		}
		return y
	case KindForest:
		var sum float64
		for _, t := range m.Trees {
			sum += t.predict(x)
		}
		return sum / float64(len(m.Trees))
	case KindBoosting:
		y := m.Init
		for _, t := range m.Trees {
			y += m.LearningRate * t.predict(x)
		}
		return y
	}
	return math.NaN()
}

func (m Member) validate(nFeatures int) error {
	if m.Weight < 0 {
		return fmt.Errorf("negative weight %v", m.Weight)
	}
	switch m.Kind {
	case KindLinear:
		if len(m.Coef) != nFeatures {
			return fmt.Errorf("linear member has %d coefficients, expected %d", len(m.Coef), nFeatures)
		}
		return nil
	case KindForest, KindBoosting:
		if len(m.Trees) == 0 {
			return errors.New("no trees")
		}
		if m.Kind == KindBoosting && m.LearningRate <= 0 {
			return fmt.Errorf("learning rate must be positive, got %v", m.LearningRate)
		}
		for i, t := range m.Trees {
			if err := t.validate(nFeatures); err != nil {
				return fmt.Errorf("tree %d: %w", i, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown member kind %q", m.Kind)
	}
}

func (t Tree) predict(x []float64) float64 {
	node := 0
	for t.ChildrenLeft[node] != -1 {
		if x[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return t.Value[node]
}

// validate checks array lengths and that every child index points forward,
// which rules out cycles during traversal.
func (t Tree) validate(nFeatures int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return errors.New("empty tree")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return errors.New("node arrays differ in length")
	}
	for i := 0; i < n; i++ {
		l, r := t.ChildrenLeft[i], t.ChildrenRight[i]
		if l == -1 && r == -1 {
			continue
		}
		if l <= i || r <= i || l >= n || r >= n {
			return fmt.Errorf("node %d has invalid children %d/%d", i, l, r)
		}
		if f := t.Feature[i]; f < 0 || f >= nFeatures {
			return fmt.Errorf("node %d splits on feature %d of %d", i, f, nFeatures)
		}
	}
	return nil
}
