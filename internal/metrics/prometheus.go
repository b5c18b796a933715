package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the interview audio service
type Metrics struct {
	// Ingest metrics
	FramesReceived prometheus.Counter
	FrameErrors    prometheus.Counter
	ControlErrors  prometheus.Counter

	// Session metrics
	ActiveSessions  prometheus.Gauge
	SessionsCreated prometheus.Counter
	SessionsEnded   prometheus.Counter
	SessionDuration prometheus.Histogram

	// Voice activity metrics
	SpeechStarts    prometheus.Counter
	SpeechStops     prometheus.Counter
	SpeakingSeconds prometheus.Counter

	// Chunk slicing metrics
	ChunksEmitted  prometheus.Counter
	ChunksRejected prometheus.Counter
	ChunkSize      prometheus.Histogram
	ChunkDuration  prometheus.Histogram

	// Transcription metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionDuration  prometheus.Histogram

	// Transcript merge metrics
	FragmentsApplied prometheus.Counter
	FragmentsIgnored prometheus.Counter
	RecordsCreated   prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Ingest metrics
		FramesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "interview_frames_received_total",
			Help: "Total number of audio frames received over WebSocket",
		}),
		FrameErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "interview_frame_errors_total",
			Help: "Total number of audio frames that failed to decode",
		}),
		ControlErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "interview_control_errors_total",
			Help: "Total number of invalid control messages",
		}),

		// Session metrics
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "interview_active_sessions",
			Help: "Current number of active interview sessions",
		}),
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "interview_sessions_created_total",
			Help: "Total number of interview sessions created",
		}),
		SessionsEnded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "interview_sessions_ended_total",
			Help: "Total number of interview sessions ended",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "interview_session_duration_seconds",
			Help:    "Duration of interview sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10s to ~3 hours
		}),

		// Voice activity metrics
		SpeechStarts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "interview_speech_starts_total",
			Help: "Total number of speech intervals opened",
		}),
		SpeechStops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "interview_speech_stops_total",
			Help: "Total number of speech intervals closed",
		}),
		SpeakingSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Name: "interview_speaking_seconds_total",
			Help: "Total accumulated speaking time across all sessions",
		}),

		// Chunk slicing metrics
		ChunksEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "interview_chunks_emitted_total",
			Help: "Total number of audio chunks emitted for transcription",
		}),
		ChunksRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "interview_chunks_rejected_total",
			Help: "Total number of audio segments rejected by capture guards",
		}),
		ChunkSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "interview_chunk_size_bytes",
			Help:    "Size of emitted audio chunks in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to ~4MB
		}),
		ChunkDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "interview_chunk_duration_seconds",
			Help:    "Duration of emitted audio chunks",
			Buckets: prometheus.LinearBuckets(1, 1, 10), // 1s to 10s
		}),

		// Transcription metrics
		TranscriptionRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "interview_transcription_requests_total",
			Help: "Total number of transcription uploads attempted",
		}),
		TranscriptionSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "interview_transcription_successes_total",
			Help: "Total number of successful transcription uploads",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "interview_transcription_failures_total",
			Help: "Total number of failed transcription uploads",
		}),
		TranscriptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "interview_transcription_duration_seconds",
			Help:    "Duration of transcription uploads",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),

		// Transcript merge metrics
		FragmentsApplied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "interview_fragments_applied_total",
			Help: "Total number of transcript fragments folded into records",
		}),
		FragmentsIgnored: promauto.NewCounter(prometheus.CounterOpts{
			Name: "interview_fragments_ignored_total",
			Help: "Total number of empty transcript fragments ignored",
		}),
		RecordsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "interview_records_created_total",
			Help: "Total number of transcript records created",
		}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "interview_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "interview_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// RecordFrameReceived increments the frames received counter
func (m *Metrics) RecordFrameReceived() {
	m.FramesReceived.Inc()
}

// RecordFrameError increments the frame decode error counter
func (m *Metrics) RecordFrameError() {
	m.FrameErrors.Inc()
}

// RecordControlError increments the invalid control message counter
func (m *Metrics) RecordControlError() {
	m.ControlErrors.Inc()
}

// SetActiveSessions sets the current number of active sessions
func (m *Metrics) SetActiveSessions(count int) {
	m.ActiveSessions.Set(float64(count))
}

// RecordSessionCreated increments the sessions created counter
func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreated.Inc()
}

// RecordSessionEnded increments the sessions ended counter and records duration
func (m *Metrics) RecordSessionEnded(durationSeconds float64) {
	m.SessionsEnded.Inc()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordSpeechStart increments the speech starts counter
func (m *Metrics) RecordSpeechStart() {
	m.SpeechStarts.Inc()
}

// RecordSpeechStop increments the speech stops counter and accumulates
// the closed interval's duration
func (m *Metrics) RecordSpeechStop(intervalSeconds float64) {
	m.SpeechStops.Inc()
	m.SpeakingSeconds.Add(intervalSeconds)
}

// RecordChunkEmitted records an emitted audio chunk
func (m *Metrics) RecordChunkEmitted(sizeBytes int, durationSeconds float64) {
	m.ChunksEmitted.Inc()
	m.ChunkSize.Observe(float64(sizeBytes))
	m.ChunkDuration.Observe(durationSeconds)
}

// RecordChunkRejected increments the rejected segments counter
func (m *Metrics) RecordChunkRejected() {
	m.ChunksRejected.Inc()
}

// RecordTranscriptionRequest increments the transcription requests counter
func (m *Metrics) RecordTranscriptionRequest() {
	m.TranscriptionRequests.Inc()
}

// RecordTranscriptionSuccess records a successful transcription upload
func (m *Metrics) RecordTranscriptionSuccess(durationSeconds float64) {
	m.TranscriptionSuccesses.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionFailure records a failed transcription upload
func (m *Metrics) RecordTranscriptionFailure(durationSeconds float64) {
	m.TranscriptionFailures.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordFragmentApplied increments the fragments applied counter
func (m *Metrics) RecordFragmentApplied() {
	m.FragmentsApplied.Inc()
}

// RecordFragmentIgnored increments the ignored fragments counter
func (m *Metrics) RecordFragmentIgnored() {
	m.FragmentsIgnored.Inc()
}

// RecordRecordCreated increments the transcript records counter
func (m *Metrics) RecordRecordCreated() {
	m.RecordsCreated.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}
