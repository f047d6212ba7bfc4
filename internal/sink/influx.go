// Package sink exports served predictions to InfluxDB as time series.
package sink

import (
	"context"
	"fmt"
	"time"

	"arecayield/internal/common"
	"arecayield/internal/storage"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog/log"
)

type Config struct {
	URL     string
	Token   string
	Org     string
	Bucket  string
	Timeout time.Duration
}

// MetricsInterface defines metrics methods needed by the sink.
type MetricsInterface interface {
	SinkWriteInc()
	SinkErrorInc()
}

// Influx writes one point per prediction with the blocking write API.
type Influx struct {
	client  influxdb2.Client
	writer  api.WriteAPIBlocking
	metrics MetricsInterface
}

func New(cfg Config, metrics MetricsInterface) (*Influx, error) {
	if cfg.URL == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("influx config incomplete")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	opts := influxdb2.DefaultOptions().
		SetHTTPRequestTimeout(uint(cfg.Timeout.Seconds())).
		SetPrecision(time.Millisecond)
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	log.Info().Str("url", cfg.URL).Str("bucket", cfg.Bucket).Msg("influx sink enabled")

	return &Influx{
		client:  client,
		writer:  client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		metrics: metrics,
	}, nil
}

// Point converts a prediction record to a line-protocol point.
func Point(rec storage.PredictionRecord) *write.Point {
	tags := map[string]string{
		"variety":       string(rec.Observation.Variety),
		"model_version": rec.ModelVersion,
	}
	fields := map[string]interface{}{
		"yield_kg": rec.YieldKg,
		"soil_ph":  rec.Observation.SoilPH,
		"n":        rec.Observation.Nitrogen,
		"p":        rec.Observation.Phosphorus,
		"k":        rec.Observation.Potassium,
	}

	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return influxdb2.NewPoint(common.InfluxMeasurement, tags, fields, ts)
}

// Write exports rec. Failures are counted and returned; callers treat the
// sink as best effort.
func (s *Influx) Write(ctx context.Context, rec storage.PredictionRecord) error {
	if err := s.writer.WritePoint(ctx, Point(rec)); err != nil {
		if s.metrics != nil {
			s.metrics.SinkErrorInc()
		}
		return fmt.Errorf("influx write: %w", err)
	}
	if s.metrics != nil {
		s.metrics.SinkWriteInc()
	}
	return nil
}

func (s *Influx) Close() {
	s.client.Close()
}
