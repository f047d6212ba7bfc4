package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"arecayield/internal/common"
	"arecayield/internal/features"
	"arecayield/internal/ml"
	"arecayield/internal/storage"

	"github.com/rs/zerolog/log"
)

// PredictResponse is the JSON answer to POST /api/v1/predict.
type PredictResponse struct {
	YieldKg      float64              `json:"yield_kg_per_palm"`
	Unit         string               `json:"unit"`
	Display      string               `json:"display"`
	ModelVersion string               `json:"model_version"`
	RequestID    string               `json:"request_id,omitempty"`
	RecordID     string               `json:"record_id,omitempty"`
	Alignment    features.AlignReport `json:"alignment"`
	Outliers     []ml.DriftAlert      `json:"outliers,omitempty"`
	Features     features.FeatureRow  `json:"features"`
	LatencyMs    float64              `json:"latency_ms"`
	Timestamp    time.Time            `json:"timestamp"`
}

// ErrorResponse is returned by every failing API call.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// ModelResponse describes the loaded model and how the encoder fits it.
type ModelResponse struct {
	Info        ml.ModelInfo         `json:"info"`
	SchemaDrift features.AlignReport `json:"schema_drift"`
	DriftStatus map[string]float64   `json:"drift_status,omitempty"`
}

type SchemaResponse struct {
	Columns        []string `json:"columns"`
	EncoderColumns []string `json:"encoder_columns"`
}

type HistoryResponse struct {
	Records []storage.PredictionRecord `json:"records"`
	Limit   int                        `json:"limit"`
}

type HealthResponse struct {
	Status       string `json:"status"`
	Backend      string `json:"backend"`
	ModelVersion string `json:"model_version"`
	Features     int    `json:"features"`
	History      bool   `json:"history"`
	Sink         bool   `json:"sink"`
	FeedClients  int    `json:"feed_clients"`
}

const maxRequestBody = 1 << 20

func (s *Server) handleAPIPredict(w http.ResponseWriter, r *http.Request) {
	var obs features.Observation
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&obs); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + err.Error()})
		return
	}

	if errs := ValidateObservation(obs); len(errs) > 0 {
		s.rejectFields(errs)
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: "invalid observation", Fields: errs})
		return
	}

	pred, rec, err := s.predict(r.Context(), obs)
	if err != nil {
		log.Error().Err(err).Str("request_id", RequestID(r.Context())).Msg("api prediction failed")
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		writeJSON(w, status, ErrorResponse{Error: "prediction failed"})
		return
	}

	writeJSON(w, http.StatusOK, PredictResponse{
		YieldKg:      pred.YieldKg,
		Unit:         common.YieldUnit,
		Display:      formatYield(pred.YieldKg),
		ModelVersion: pred.ModelVersion,
		RequestID:    rec.RequestID,
		RecordID:     rec.ID,
		Alignment:    pred.Alignment,
		Outliers:     pred.Outliers,
		Features:     pred.Features,
		LatencyMs:    float64(pred.Latency.Microseconds()) / 1000,
		Timestamp:    rec.Timestamp,
	})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SchemaResponse{
		Columns:        s.predictor.Schema(),
		EncoderColumns: features.Columns(),
	})
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ModelResponse{
		Info:        s.predictor.Info(),
		SchemaDrift: s.predictor.EncoderDrift(),
		DriftStatus: s.predictor.DriftStatus(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "prediction history is disabled"})
		return
	}

	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	records, err := s.history.Recent(limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to read prediction history")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "history unavailable"})
		return
	}
	if records == nil {
		records = []storage.PredictionRecord{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Records: records, Limit: limit})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	info := s.predictor.Info()
	resp := HealthResponse{
		Status:       "ok",
		Backend:      info.Backend,
		ModelVersion: info.Version,
		Features:     len(s.predictor.Schema()),
		History:      s.history != nil,
		Sink:         s.sink != nil,
	}
	if s.feed != nil {
		resp.FeedClients = s.feed.Clients()
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseLimit reads ?limit=, defaulting to DefaultHistoryLimit and capping at
// MaxHistoryLimit.
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return common.DefaultHistoryLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	if n > common.MaxHistoryLimit {
		n = common.MaxHistoryLimit
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
