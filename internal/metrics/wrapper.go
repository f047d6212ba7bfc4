package metrics

import "strconv"

// MetricsWrapper adapts Metrics to the small interfaces the gateway, the web
// layer and the history writers depend on, so those packages never import
// Prometheus types.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) PredictionsInc() {
	w.m.Predictions.Inc()
}

func (w *MetricsWrapper) FailuresInc() {
	w.m.PredictionFailures.Inc()
}

func (w *MetricsWrapper) LatencyObserve(v float64) {
	w.m.PredictionLatency.Observe(v)
}

func (w *MetricsWrapper) YieldObserve(v float64) {
	w.m.PredictedYield.Observe(v)
}

func (w *MetricsWrapper) SchemaMissingAdd(n int) {
	w.m.SchemaMissing.Add(float64(n))
}

func (w *MetricsWrapper) SchemaExtraAdd(n int) {
	w.m.SchemaExtra.Add(float64(n))
}

func (w *MetricsWrapper) ModelAgeSet(v float64) {
	w.m.ModelAge.Set(v)
}

func (w *MetricsWrapper) FeatureOutlierInc(feature string) {
	w.m.FeatureOutliers.WithLabelValues(feature).Inc()
}

func (w *MetricsWrapper) FormRejectionInc(field string) {
	w.m.FormRejections.WithLabelValues(field).Inc()
}

func (w *MetricsWrapper) HTTPRequest(route string, code int) {
	w.m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

func (w *MetricsWrapper) HistoryWriteInc() {
	w.m.HistoryWrites.Inc()
}

func (w *MetricsWrapper) HistoryErrorInc() {
	w.m.HistoryErrors.Inc()
}

func (w *MetricsWrapper) SinkWriteInc() {
	w.m.SinkWrites.Inc()
}

func (w *MetricsWrapper) SinkErrorInc() {
	w.m.SinkErrors.Inc()
}

func (w *MetricsWrapper) FeedClientsSet(n int) {
	w.m.FeedClients.Set(float64(n))
}
