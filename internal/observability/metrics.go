package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "audio_gateway_active_sessions",
		Help: "Number of active ingest sessions",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audio_gateway_sessions_total",
		Help: "Total number of ingest sessions handled",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "audio_gateway_session_duration_seconds",
		Help:    "Duration of ingest sessions in seconds",
		Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600, 7200},
	})

	// Segmentation metrics
	segmentsSaved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audio_gateway_segments_saved_total",
		Help: "Total number of segments persisted, by trigger reason",
	}, []string{"reason"})

	segmentBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "audio_gateway_segment_bytes",
		Help:    "Size of persisted segment WAV files in bytes",
		Buckets: prometheus.ExponentialBuckets(64*1024, 4, 8),
	})

	// STT metrics
	sttResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audio_gateway_stt_results_total",
		Help: "Total number of recognition results received",
	}, []string{"final"})

	// NLP metrics
	nlpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audio_gateway_nlp_requests_total",
		Help: "Total number of realtime NLP computes",
	}, []string{"kind", "status"})

	nlpLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "audio_gateway_nlp_latency_seconds",
		Help:    "Realtime NLP compute latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audio_gateway_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "audio_gateway_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audio_gateway_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	// Audio metrics
	audioBytesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audio_gateway_audio_bytes_total",
		Help: "Total PCM audio bytes received from clients",
	})
)

// SessionMetrics tracks metrics for a single ingest session
type SessionMetrics struct {
	sessionID    string
	startTime    time.Time
	nlpStartTime time.Time
	mu           sync.Mutex
}

// NewSessionMetrics creates a metrics tracker for one session
func NewSessionMetrics(sessionID string) *SessionMetrics {
	return &SessionMetrics{
		sessionID: sessionID,
		startTime: time.Now(),
	}
}

// RecordSessionStart records the start of a session
func (m *SessionMetrics) RecordSessionStart() {
	activeSessions.Inc()
	totalSessions.Inc()
}

// RecordSessionEnd records the end of a session
func (m *SessionMetrics) RecordSessionEnd() {
	activeSessions.Dec()
	sessionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordSegmentSaved records one persisted segment
func (m *SessionMetrics) RecordSegmentSaved(reason string, wavBytes int) {
	segmentsSaved.WithLabelValues(reason).Inc()
	segmentBytes.Observe(float64(wavBytes))
}

// RecordSTTResult records one recognition result
func (m *SessionMetrics) RecordSTTResult(isFinal bool) {
	RecordSTTResult(isFinal)
}

// RecordSTTResult records one recognition result
func RecordSTTResult(isFinal bool) {
	final := "false"
	if isFinal {
		final = "true"
	}
	sttResults.WithLabelValues(final).Inc()
}

// RecordNLPStart records the start of a realtime NLP compute
func (m *SessionMetrics) RecordNLPStart() {
	m.mu.Lock()
	m.nlpStartTime = time.Now()
	m.mu.Unlock()
}

// RecordNLPEnd records the end of a realtime NLP compute
func (m *SessionMetrics) RecordNLPEnd(kind string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.nlpStartTime.IsZero() {
		nlpLatency.Observe(time.Since(m.nlpStartTime).Seconds())
	}

	status := "success"
	if !success {
		status = "error"
	}
	nlpRequests.WithLabelValues(kind, status).Inc()
}

// RecordError records an error
func (m *SessionMetrics) RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordAudioBytes records PCM bytes received from the client
func (m *SessionMetrics) RecordAudioBytes(n int64) {
	audioBytesReceived.Add(float64(n))
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
