// Package web serves the yield prediction form, the informational pages and
// a small JSON API over one gorilla/mux router.
//
// Every prediction, from the form or the API, goes through the same path:
// validate, predict through the gateway, then record the result in the
// history store, the time-series sink and the live feed when those are
// configured. Recording is best effort; a failed write never fails the
// request.
package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"arecayield/internal/common"
	"arecayield/internal/features"
	"arecayield/internal/ml"
	"arecayield/internal/storage"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Predictor is the part of the model gateway the web layer uses.
type Predictor interface {
	Predict(ctx context.Context, obs features.Observation) (ml.Prediction, error)
	Schema() []string
	Info() ml.ModelInfo
	EncoderDrift() features.AlignReport
	DriftStatus() map[string]float64
}

// HistoryStore persists served predictions.
type HistoryStore interface {
	Save(rec storage.PredictionRecord) (storage.PredictionRecord, error)
	Recent(n int) ([]storage.PredictionRecord, error)
}

// Sink exports served predictions.
type Sink interface {
	Write(ctx context.Context, rec storage.PredictionRecord) error
}

// MetricsInterface defines metrics methods needed by the web layer.
type MetricsInterface interface {
	FormRejectionInc(field string)
	HTTPRequest(route string, code int)
	HistoryWriteInc()
	HistoryErrorInc()
}

// Options wires the optional collaborators of a Server.
type Options struct {
	History HistoryStore
	Sink    Sink
	Feed    *Feed
	Metrics MetricsInterface

	// RequestTimeout bounds one prediction; zero means no extra deadline.
	RequestTimeout time.Duration
	// MetricsHandler serves /metrics; defaults to promhttp.Handler().
	MetricsHandler http.Handler
}

const apiPrefix = "/api/v1"

// Server holds the HTTP routes.
type Server struct {
	predictor      Predictor
	history        HistoryStore
	sink           Sink
	feed           *Feed
	metrics        MetricsInterface
	requestTimeout time.Duration
	pages          map[Page]*template.Template
	router         *mux.Router
}

// NewServer parses the page templates and registers every route.
func NewServer(predictor Predictor, opts Options) (*Server, error) {
	if predictor == nil {
		return nil, errors.New("predictor is nil")
	}
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}

	s := &Server{
		predictor:      predictor,
		history:        opts.History,
		sink:           opts.Sink,
		feed:           opts.Feed,
		metrics:        opts.Metrics,
		requestTimeout: opts.RequestTimeout,
		pages:          pages,
	}

	metricsHandler := opts.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	r := mux.NewRouter()
	r.Use(requestIDMiddleware, s.accessLogMiddleware, recoverMiddleware)

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/pages/{page}", s.handlePage).Methods(http.MethodGet)
	r.HandleFunc("/predict", s.handleFormPredict).Methods(http.MethodPost)

	// API routes sit on the root router: a subrouter answers a method
	// mismatch with 404 instead of 405.
	r.HandleFunc(apiPrefix+"/predict", s.handleAPIPredict).Methods(http.MethodPost)
	r.HandleFunc(apiPrefix+"/schema", s.handleSchema).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/model", s.handleModel).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/history", s.handleHistory).Methods(http.MethodGet)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	if s.feed != nil {
		r.HandleFunc("/ws/predictions", s.feed.handleWebSocket).Methods(http.MethodGet)
	}

	s.router = r
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// predict runs one validated observation and records the outcome.
func (s *Server) predict(ctx context.Context, obs features.Observation) (ml.Prediction, storage.PredictionRecord, error) {
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	pred, err := s.predictor.Predict(ctx, obs)
	if err != nil {
		return ml.Prediction{}, storage.PredictionRecord{}, err
	}

	rec := storage.PredictionRecord{
		Timestamp:    time.Now().UTC(),
		RequestID:    RequestID(ctx),
		Observation:  obs,
		Features:     pred.Features,
		YieldKg:      pred.YieldKg,
		ModelVersion: pred.ModelVersion,
	}
	rec = s.record(ctx, rec)

	if s.feed != nil {
		s.feed.Publish(FeedEvent{
			Timestamp:    rec.Timestamp,
			RequestID:    rec.RequestID,
			Variety:      string(obs.Variety),
			YieldKg:      rec.YieldKg,
			ModelVersion: rec.ModelVersion,
			Outliers:     outlierFeatures(pred.Outliers),
		})
	}
	return pred, rec, nil
}

func (s *Server) record(ctx context.Context, rec storage.PredictionRecord) storage.PredictionRecord {
	if s.history != nil {
		saved, err := s.history.Save(rec)
		if err != nil {
			log.Warn().Err(err).Str("request_id", rec.RequestID).Msg("failed to save prediction history")
			if s.metrics != nil {
				s.metrics.HistoryErrorInc()
			}
		} else {
			rec = saved
			if s.metrics != nil {
				s.metrics.HistoryWriteInc()
			}
		}
	}

	if s.sink != nil {
		if err := s.sink.Write(ctx, rec); err != nil {
			log.Warn().Err(err).Str("request_id", rec.RequestID).Msg("failed to export prediction")
		}
	}
	return rec
}

func (s *Server) rejectFields(errs ValidationErrors) {
	if s.metrics == nil {
		return
	}
	for _, field := range errs.Fields() {
		s.metrics.FormRejectionInc(field)
	}
}

func outlierFeatures(alerts []ml.DriftAlert) []string {
	if len(alerts) == 0 {
		return nil
	}
	out := make([]string, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, a.Feature)
	}
	return out
}

// formatYield renders a yield the way the result banner shows it.
func formatYield(y float64) string {
	return fmt.Sprintf(common.YieldResultFormat, y)
}
