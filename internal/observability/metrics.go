package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transcription_gateway_active_sessions",
		Help: "Number of active transcription sessions",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcription_gateway_sessions_total",
		Help: "Total number of transcription sessions started",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "transcription_gateway_session_duration_seconds",
		Help:    "Duration of transcription sessions in seconds",
		Buckets: []float64{10, 30, 60, 300, 600, 1800, 3600, 7200},
	})

	admissionDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcription_gateway_admission_denied_total",
		Help: "Total number of sessions denied by the admission gate",
	}, []string{"plan"})

	// Audio metrics
	audioBytesIn = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcription_gateway_audio_bytes_total",
		Help: "Total audio payload bytes accepted by the ingestion gate",
	})

	framesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcription_gateway_frames_rejected_total",
		Help: "Total audio frames rejected by the ingestion gate",
	}, []string{"reason"}) // reason: "no_session", "too_short", "ended", "backpressure"

	// Transcript metrics
	transcriptLines = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcription_gateway_transcript_lines_total",
		Help: "Total finalized transcript lines emitted",
	})

	transcriptEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcription_gateway_transcript_events_total",
		Help: "Total transcript events published to subscribers",
	}, []string{"kind"}) // kind: "partial" or "final"

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcription_gateway_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})
)

// SessionMetrics tracks metrics for a single session
type SessionMetrics struct {
	sessionID string
	startTime time.Time
}

// NewSessionMetrics creates a metrics tracker for a session and records its start
func NewSessionMetrics(sessionID string) *SessionMetrics {
	activeSessions.Inc()
	totalSessions.Inc()
	return &SessionMetrics{
		sessionID: sessionID,
		startTime: time.Now(),
	}
}

// RecordSessionEnd records the end of a session
func (m *SessionMetrics) RecordSessionEnd() {
	activeSessions.Dec()
	sessionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordAudioBytes records accepted audio payload bytes
func RecordAudioBytes(n int) {
	audioBytesIn.Add(float64(n))
}

// RecordFrameRejected records a rejected ingestion frame
func RecordFrameRejected(reason string) {
	framesRejected.WithLabelValues(reason).Inc()
}

// RecordTranscriptLine records a finalized transcript line
func RecordTranscriptLine() {
	transcriptLines.Inc()
}

// RecordTranscriptEvent records a published transcript event
func RecordTranscriptEvent(kind string) {
	transcriptEvents.WithLabelValues(kind).Inc()
}

// RecordAdmissionDenied records a session denied by the admission gate
func RecordAdmissionDenied(plan string) {
	admissionDenied.WithLabelValues(plan).Inc()
}

// RecordError records an error
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}
