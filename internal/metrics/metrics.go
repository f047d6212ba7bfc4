// Package metrics provides Prometheus metrics collection for the yield
// predictor. It defines the prediction, schema, form and HTTP metrics that
// are exposed on the /metrics endpoint for monitoring and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Prediction metrics
	Predictions        prometheus.Counter   // Successful predictions
	PredictionFailures prometheus.Counter   // Predictions that returned an error
	PredictionLatency  prometheus.Histogram // End-to-end prediction latency in seconds
	PredictedYield     prometheus.Histogram // Distribution of predicted kg per palm
	ModelAge           prometheus.Gauge     // Age of the loaded artifact in seconds

	// Schema and input metrics
	SchemaMissing   prometheus.Counter     // Model columns zero-filled because the encoder never produced them
	SchemaExtra     prometheus.Counter     // Encoder columns dropped because the model does not know them
	FeatureOutliers *prometheus.CounterVec // Inputs far outside the training distribution, by feature
	FormRejections  *prometheus.CounterVec // Rejected form submissions, by field

	// History and export
	HistoryWrites prometheus.Counter
	HistoryErrors prometheus.Counter
	SinkWrites    prometheus.Counter
	SinkErrors    prometheus.Counter

	// HTTP
	HTTPRequests *prometheus.CounterVec // Requests by route and status code
	FeedClients  prometheus.Gauge       // Connected live-feed WebSocket clients
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Predictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "yield_predictions_total",
			Help: "Total number of successful yield predictions",
		}),
		PredictionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "yield_prediction_failures_total",
			Help: "Total number of failed yield predictions",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "yield_prediction_latency_seconds",
			Help:    "Yield prediction latency in seconds (encode, align and model)",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}),
		PredictedYield: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "yield_predicted_kg_per_palm",
			Help:    "Distribution of predicted yield in kg per palm",
			Buckets: prometheus.LinearBuckets(0, 2.5, 13),
		}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_age_seconds",
			Help: "Age of the loaded model artifact in seconds",
		}),
		SchemaMissing: factory.NewCounter(prometheus.CounterOpts{
			Name: "schema_missing_columns_total",
			Help: "Model columns zero-filled because the encoder did not produce them",
		}),
		SchemaExtra: factory.NewCounter(prometheus.CounterOpts{
			Name: "schema_extra_columns_total",
			Help: "Encoded columns dropped because the model does not expect them",
		}),
		FeatureOutliers: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "feature_outliers_total",
			Help: "Inputs far outside the training distribution",
		}, []string{"feature"}),
		FormRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "form_rejections_total",
			Help: "Rejected form submissions by field",
		}, []string{"field"}),
		HistoryWrites: factory.NewCounter(prometheus.CounterOpts{
			Name: "history_writes_total",
			Help: "Predictions written to the history store",
		}),
		HistoryErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "history_errors_total",
			Help: "Failed writes to the history store",
		}),
		SinkWrites: factory.NewCounter(prometheus.CounterOpts{
			Name: "sink_writes_total",
			Help: "Points written to the time-series sink",
		}),
		SinkErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "sink_errors_total",
			Help: "Failed writes to the time-series sink",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		FeedClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "feed_clients",
			Help: "WebSocket clients subscribed to the prediction feed",
		}),
	}
}
