package ml

import (
	"math"
	"sort"
	"sync"
	"time"

	"arecayield/internal/features"

	"github.com/rs/zerolog/log"
)

// Baseline is the training distribution of each column, as captured by the
// fitted scaler.
type Baseline struct {
	Columns []string
	Mean    []float64
	Scale   []float64
}

// Baseliner is implemented by models that know their training distribution.
type Baseliner interface {
	Baseline() (Baseline, bool)
}

// DriftConfig configures input drift monitoring.
type DriftConfig struct {
	Threshold     float64       // |z| above which a value is an outlier
	WindowSize    int           // recent z-scores kept per column
	AlertCooldown time.Duration // minimum gap between log alerts per column
}

// DriftAlert reports one column of one observation far outside the
// training distribution.
type DriftAlert struct {
	Feature   string    `json:"feature"`
	Value     float64   `json:"value"`
	ZScore    float64   `json:"z_score"`
	Threshold float64   `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// DriftMonitor compares incoming rows with the training baseline.
type DriftMonitor struct {
	mu        sync.Mutex
	baseline  Baseline
	index     map[string]int
	cfg       DriftConfig
	recent    map[string][]float64
	lastAlert map[string]time.Time
	metrics   MetricsInterface
}

func NewDriftMonitor(b Baseline, cfg DriftConfig, metrics MetricsInterface) *DriftMonitor {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 4
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 100
	}
	if cfg.AlertCooldown <= 0 {
		cfg.AlertCooldown = time.Hour
	}

	index := make(map[string]int, len(b.Columns))
	for i, c := range b.Columns {
		index[c] = i
	}

	return &DriftMonitor{
		baseline:  b,
		index:     index,
		cfg:       cfg,
		recent:    make(map[string][]float64),
		lastAlert: make(map[string]time.Time),
		metrics:   metrics,
	}
}

// Observe records the row's z-scores and returns the columns beyond the
// threshold, sorted by name. Columns unknown to the baseline are skipped.
func (d *DriftMonitor) Observe(row features.FeatureRow) []DriftAlert {
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	var alerts []DriftAlert
	for i, col := range row.Columns {
		j, ok := d.index[col]
		if !ok {
			continue
		}
		scale := d.baseline.Scale[j]
		if scale == 0 {
			scale = 1
		}
		z := (row.Values[i] - d.baseline.Mean[j]) / scale

		window := append(d.recent[col], z)
		if len(window) > d.cfg.WindowSize {
			window = window[len(window)-d.cfg.WindowSize:]
		}
		d.recent[col] = window

		if math.Abs(z) <= d.cfg.Threshold {
			continue
		}

		alerts = append(alerts, DriftAlert{
			Feature:   col,
			Value:     row.Values[i],
			ZScore:    z,
			Threshold: d.cfg.Threshold,
			Timestamp: now,
		})
		if d.metrics != nil {
			d.metrics.FeatureOutlierInc(col)
		}
		if now.Sub(d.lastAlert[col]) >= d.cfg.AlertCooldown {
			d.lastAlert[col] = now
			log.Warn().
				Str("feature", col).
				Float64("value", row.Values[i]).
				Float64("z_score", z).
				Msg("input far outside training distribution")
		}
	}

	sort.Slice(alerts, func(a, b int) bool { return alerts[a].Feature < alerts[b].Feature })
	return alerts
}

// Status returns the mean z-score of the recent window per observed column.
func (d *DriftMonitor) Status() map[string]float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[string]float64, len(d.recent))
	for col, window := range d.recent {
		if len(window) == 0 {
			continue
		}
		var sum float64
		for _, z := range window {
			sum += z
		}
		out[col] = sum / float64(len(window))
	}
	return out
}

func (d *DriftMonitor) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recent = make(map[string][]float64)
	d.lastAlert = make(map[string]time.Time)
}
