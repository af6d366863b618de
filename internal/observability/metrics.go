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
		Name: "voice_client_active_sessions",
		Help: "Number of active voice sessions",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_client_sessions_total",
		Help: "Total number of voice sessions started",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_client_session_duration_seconds",
		Help:    "Duration of voice sessions in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	// Playback metrics
	chunksScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_client_playback_chunks_scheduled_total",
		Help: "Total number of audio chunks scheduled for playback",
	})

	chunksDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_client_playback_chunks_dropped_total",
		Help: "Total number of audio chunks dropped before playback",
	}, []string{"reason"})

	playbackIdleTransitions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_client_playback_idle_transitions_total",
		Help: "Total number of times playback drained to idle",
	})

	// Transcript metrics
	turnsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_client_turns_completed_total",
		Help: "Total number of completed conversation turns",
	})

	// Audio metrics
	audioBytesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_client_audio_bytes_total",
		Help: "Total audio bytes processed",
	}, []string{"direction"}) // direction: "in" or "out"

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_client_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})
)

// Metrics tracks metrics for a single voice session
type Metrics struct {
	sessionID string
	startTime time.Time
	mu        sync.Mutex
}

// NewSessionMetrics creates a new metrics tracker for a session
func NewSessionMetrics(sessionID string) *Metrics {
	return &Metrics{
		sessionID: sessionID,
		startTime: time.Now(),
	}
}

// RecordSessionStart records the start of a session
func (m *Metrics) RecordSessionStart() {
	activeSessions.Inc()
	totalSessions.Inc()
}

// RecordSessionEnd records the end of a session
func (m *Metrics) RecordSessionEnd() {
	activeSessions.Dec()
	duration := time.Since(m.startTime).Seconds()
	sessionDuration.Observe(duration)
}

// RecordChunkScheduled records one chunk handed to the playback scheduler
func (m *Metrics) RecordChunkScheduled() {
	chunksScheduled.Inc()
}

// RecordChunkDropped records one chunk dropped before playback
func (m *Metrics) RecordChunkDropped(reason string) {
	chunksDropped.WithLabelValues(reason).Inc()
}

// RecordPlaybackIdle records playback draining to idle
func (m *Metrics) RecordPlaybackIdle() {
	playbackIdleTransitions.Inc()
}

// RecordTurnCompleted records a completed conversation turn
func (m *Metrics) RecordTurnCompleted() {
	turnsCompleted.Inc()
}

// RecordAudioBytes records audio bytes processed
func (m *Metrics) RecordAudioBytes(direction string, bytes int64) {
	audioBytesProcessed.WithLabelValues(direction).Add(float64(bytes))
}

// RecordError records an error
func (m *Metrics) RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}
