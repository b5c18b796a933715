package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Akashpatel2609/PrepWise/internal/capture"
	"github.com/Akashpatel2609/PrepWise/internal/metrics"
	"github.com/Akashpatel2609/PrepWise/internal/protocol"
	"github.com/Akashpatel2609/PrepWise/internal/transcript"
	"github.com/Akashpatel2609/PrepWise/internal/transcription"
	"github.com/Akashpatel2609/PrepWise/internal/vad"
)

// DefaultSessionTimeout is how long a session may sit without frames or
// control traffic before the cleanup routine ends it.
const DefaultSessionTimeout = 5 * time.Minute

// Runtime is one live interview session with its full pipeline attached:
// the frame pipe, the chunk scheduler, the voice activity detector and the
// transcript ledger. All pieces share the session's lifetime.
type Runtime struct {
	Session   *Session
	Pipe      *capture.Pipe
	Scheduler *Scheduler
	Detector  *vad.Detector
	Clock     *transcript.SpeakingClock
	Ledger    *transcript.Ledger

	// Format is the negotiated chunk format, or the WAV fallback when the
	// client supports none of the preferred formats.
	Format string

	lastActivity time.Time

	// Delivery tracking
	chunksDelivered uint64
	chunksFailed    uint64

	manager *Manager
	wg      sync.WaitGroup

	mu sync.RWMutex
}

// ManagerConfig contains configuration for the session manager.
type ManagerConfig struct {
	VADConfig           vad.Config
	TranscriptionConfig transcription.Config
	ChunkInterval       time.Duration
	MergeWindow         time.Duration
	SessionTimeout      time.Duration
	PipeBuffer          int

	// Metrics may be nil, in which case nothing is recorded.
	Metrics *metrics.Metrics
}

// Manager owns all active interview sessions. It wires each new session's
// pipeline together, feeds delivered chunks to the transcription client,
// and folds the resulting fragments into the session's transcript ledger.
type Manager struct {
	sessions map[string]*Runtime
	logger   *slog.Logger
	config   ManagerConfig

	// registry holds server-side chunked encoders. Empty by default: the
	// raw-PCM WAV fallback then carries every session.
	registry *capture.Registry

	transcriptionClient *transcription.Client

	ctx     context.Context
	cancel  context.CancelFunc
	cleanup chan struct{}

	mu sync.RWMutex
}

// NewManager creates a session manager and starts its cleanup routine.
func NewManager(logger *slog.Logger, config ManagerConfig) (*Manager, error) {
	if err := config.VADConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid VAD configuration: %w", err)
	}
	if config.ChunkInterval <= 0 {
		config.ChunkInterval = DefaultChunkInterval
	}
	if config.MergeWindow <= 0 {
		config.MergeWindow = transcript.DefaultMergeWindow
	}
	if config.SessionTimeout <= 0 {
		config.SessionTimeout = DefaultSessionTimeout
	}

	transcriptionClient, err := transcription.NewClient(config.TranscriptionConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcription client: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	mgr := &Manager{
		sessions:            make(map[string]*Runtime),
		logger:              logger,
		config:              config,
		registry:            capture.NewRegistry(),
		transcriptionClient: transcriptionClient,
		ctx:                 ctx,
		cancel:              cancel,
		cleanup:             make(chan struct{}),
	}

	go mgr.startCleanupRoutine()

	return mgr, nil
}

// Registry returns the server-side encoder registry. Deployments with a
// native chunked encoder register it here before accepting sessions.
func (m *Manager) Registry() *capture.Registry {
	return m.registry
}

// CreateSession builds the full pipeline for a new session: negotiate the
// chunk format, open the pipe, attach the VAD tap and start the scheduler.
func (m *Manager) CreateSession(id string, sampleRate int, supportedFormats []string) (*Runtime, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[id]; exists {
		return nil, fmt.Errorf("session %s already exists", id)
	}

	// Negotiation picks the first preferred format the client can produce,
	// but it only matters when a matching server-side encoder is registered.
	// Otherwise the raw-PCM WAV fallback carries the session.
	format := capture.Negotiate(capture.StaticSupport(supportedFormats), capture.DefaultPreferences())
	var factory capture.EncoderFactory
	if format != "" {
		factory = m.registry.Factory(format)
	}
	if factory == nil {
		pcm, err := capture.NewPCMEncoderFactory(sampleRate)
		if err != nil {
			return nil, fmt.Errorf("failed to create PCM fallback encoder: %w", err)
		}
		factory = pcm
		format = capture.MimeTypeWAV
	}

	pipe, err := capture.NewPipe(sampleRate, m.config.PipeBuffer)
	if err != nil {
		return nil, fmt.Errorf("failed to create frame pipe: %w", err)
	}

	detector, err := vad.NewDetector(m.config.VADConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create voice activity detector: %w", err)
	}

	sess := NewSession(id)
	clock := transcript.NewSpeakingClock()
	ledger := transcript.NewLedger(m.config.MergeWindow, sess, clock)

	rt := &Runtime{
		Session:      sess,
		Pipe:         pipe,
		Detector:     detector,
		Clock:        clock,
		Ledger:       ledger,
		Format:       format,
		lastActivity: time.Now(),
		manager:      m,
	}
	rt.Scheduler = NewScheduler(sess, pipe, factory, rt, m.config.ChunkInterval, m.logger, m.config.Metrics)

	// The VAD observes the stream through a tap so it never competes with
	// the scheduler for frames.
	tap := pipe.Tap()
	rt.wg.Add(1)
	go rt.vadLoop(tap)

	if err := rt.Scheduler.Begin(); err != nil {
		pipe.Close()
		rt.wg.Wait()
		return nil, fmt.Errorf("failed to start chunk scheduler: %w", err)
	}

	m.sessions[id] = rt

	m.logger.Info("Created new interview session",
		slog.String("session_id", id),
		slog.Int("sample_rate", sampleRate),
		slog.String("chunk_format", format),
		slog.Duration("chunk_interval", m.config.ChunkInterval),
	)

	return rt, nil
}

// GetSession retrieves an active session.
func (m *Manager) GetSession(id string) (*Runtime, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rt, exists := m.sessions[id]
	return rt, exists
}

// GetActiveSessionCount returns the number of currently active sessions.
func (m *Manager) GetActiveSessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// GetAllSessions returns a snapshot of all active sessions for monitoring.
func (m *Manager) GetAllSessions() []*Runtime {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*Runtime, 0, len(m.sessions))
	for _, rt := range m.sessions {
		sessions = append(sessions, rt)
	}
	return sessions
}

// EndSession tears the session's pipeline down, flushes the final partial
// chunk, and returns the interview summary. The second return is false when
// no such session exists.
func (m *Manager) EndSession(id string) (*Summary, bool) {
	m.mu.Lock()
	rt, exists := m.sessions[id]
	if exists {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !exists {
		return nil, false
	}

	rt.Scheduler.End()
	rt.wg.Wait()

	summary := rt.buildSummary()

	m.logger.Info("Interview session ended",
		slog.String("session_id", id),
		slog.Float64("duration_seconds", summary.DurationSeconds),
		slog.Float64("speaking_seconds", summary.SpeakingSeconds),
		slog.Int("records", len(summary.Records)),
		slog.Int("total_words", summary.TotalWords),
		slog.Int("total_fillers", summary.TotalFillers),
	)

	return summary, true
}

// Stop gracefully stops the manager: every remaining session is ended and
// the transcription client drained.
func (m *Manager) Stop() {
	m.logger.Info("Stopping session manager...")

	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.EndSession(id)
	}

	if err := m.transcriptionClient.Close(); err != nil {
		m.logger.Warn("Error closing transcription client", slog.String("error", err.Error()))
	}

	m.cancel()
	<-m.cleanup

	stats := m.transcriptionClient.GetStats()
	m.logger.Info("Session manager stopped",
		slog.Uint64("total_transcription_requests", stats.TotalRequests),
		slog.Uint64("successful_transcriptions", stats.SuccessRequests),
		slog.Float64("transcription_success_rate", stats.SuccessRate),
	)
}

// GetTranscriptionStats returns current transcription client statistics.
func (m *Manager) GetTranscriptionStats() transcription.ClientStats {
	return m.transcriptionClient.GetStats()
}

// startCleanupRoutine periodically ends sessions that have gone silent.
func (m *Manager) startCleanupRoutine() {
	defer close(m.cleanup)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.cleanupExpiredSessions()
		}
	}
}

// cleanupExpiredSessions ends sessions whose last activity is older than the
// session timeout. Their summaries are logged and discarded.
func (m *Manager) cleanupExpiredSessions() {
	now := time.Now()

	m.mu.RLock()
	expired := make([]string, 0)
	for id, rt := range m.sessions {
		if now.Sub(rt.LastActivity()) > m.config.SessionTimeout {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range expired {
		m.logger.Warn("Ending expired session",
			slog.String("session_id", id),
			slog.Duration("timeout", m.config.SessionTimeout),
		)
		m.EndSession(id)
	}
}

// Ingest feeds one captured frame into the session's pipeline.
func (r *Runtime) Ingest(frame []float32) error {
	r.touch()
	return r.Pipe.Push(frame)
}

// SetQuestion advances the session to a new interview question.
func (r *Runtime) SetQuestion(number int, text string) {
	r.touch()
	r.Session.SetQuestion(number, text)
}

// LastActivity returns the time of the most recent frame or control message.
func (r *Runtime) LastActivity() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastActivity
}

func (r *Runtime) touch() {
	r.mu.Lock()
	r.lastActivity = time.Now()
	r.mu.Unlock()
}

// vadLoop classifies every tapped frame and folds closed speech intervals
// into the speaking clock. It exits when the pipe closes.
func (r *Runtime) vadLoop(tap <-chan []float32) {
	defer r.wg.Done()

	m := r.manager.config.Metrics

	for frame := range tap {
		level := vad.Level(frame)
		event, interval := r.Detector.Sample(level, time.Now())
		switch event {
		case vad.EventStart:
			if m != nil {
				m.RecordSpeechStart()
			}
		case vad.EventStop:
			r.Clock.AddInterval(r.Session.CurrentQuestion(), interval)
			if m != nil {
				m.RecordSpeechStop(interval.Seconds())
			}
		}
	}
}

// Deliver implements Deliverer: upload the chunk, then fold the resulting
// fragment into the ledger. A failed upload costs exactly this fragment.
func (r *Runtime) Deliver(chunk AudioChunk) {
	m := r.manager.config.Metrics
	if m != nil {
		m.RecordTranscriptionRequest()
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.manager.transcriptionClient.GetTimeout())
	defer cancel()

	startTime := time.Now()
	result, err := r.manager.transcriptionClient.Transcribe(ctx, &transcription.Request{
		SessionID:      chunk.SessionID,
		QuestionNumber: chunk.QuestionNumber,
		SequenceIndex:  chunk.SequenceIndex,
		MimeType:       chunk.MimeType,
		Audio:          chunk.Bytes,
		Duration:       chunk.Duration,
	})
	if err != nil {
		r.mu.Lock()
		r.chunksFailed++
		r.mu.Unlock()
		if m != nil {
			m.RecordTranscriptionFailure(time.Since(startTime).Seconds())
		}

		r.manager.logger.Warn("Chunk transcription failed, fragment dropped",
			slog.String("session_id", chunk.SessionID),
			slog.Uint64("sequence_index", chunk.SequenceIndex),
			slog.String("error", err.Error()),
		)
		return
	}

	r.mu.Lock()
	r.chunksDelivered++
	r.mu.Unlock()
	if m != nil {
		m.RecordTranscriptionSuccess(time.Since(startTime).Seconds())
	}

	recordsBefore := r.Ledger.GetStats().Records
	r.Ledger.Apply(transcript.Fragment{
		QuestionNumber: chunk.QuestionNumber,
		Text:           result.Text,
		Confidence:     result.Confidence,
		ArrivedAt:      time.Now(),
	})

	if m != nil {
		stats := r.Ledger.GetStats()
		if stats.Records > recordsBefore {
			m.RecordRecordCreated()
		}
		if strings.TrimSpace(result.Text) == "" {
			m.RecordFragmentIgnored()
		} else {
			m.RecordFragmentApplied()
		}
	}
}

// Status returns the live status push for the UI sink.
func (r *Runtime) Status() protocol.StatusMessage {
	return protocol.StatusMessage{
		Type:            protocol.StatusType,
		Listening:       r.Detector.Status(),
		FillerCount:     r.Ledger.TotalFillers(),
		SpeakingSeconds: r.Clock.TotalSeconds(),
	}
}

// Info represents session information for monitoring and APIs.
type Info struct {
	SessionID       string    `json:"session_id"`
	StartTime       time.Time `json:"start_time"`
	LastActivity    time.Time `json:"last_activity"`
	DurationSeconds float64   `json:"duration_seconds"`
	Active          bool      `json:"active"`
	Format          string    `json:"format"`
	CurrentQuestion int       `json:"current_question"`
	Speaking        bool      `json:"speaking"`
	SpeakingSeconds float64   `json:"speaking_seconds"`
	TotalWords      int       `json:"total_words"`
	TotalFillers    int       `json:"total_fillers"`
	Records         int       `json:"records"`
	ChunksDelivered uint64    `json:"chunks_delivered"`
	ChunksFailed    uint64    `json:"chunks_failed"`

	Pipe      capture.PipeStats `json:"pipe"`
	Scheduler SchedulerStats    `json:"scheduler"`
	VAD       vad.Stats         `json:"vad"`
}

// GetInfo returns a monitoring snapshot of the session.
func (r *Runtime) GetInfo() Info {
	r.mu.RLock()
	delivered := r.chunksDelivered
	failed := r.chunksFailed
	lastActivity := r.lastActivity
	r.mu.RUnlock()

	ledgerStats := r.Ledger.GetStats()

	return Info{
		SessionID:       r.Session.ID,
		StartTime:       r.Session.StartTime,
		LastActivity:    lastActivity,
		DurationSeconds: time.Since(r.Session.StartTime).Seconds(),
		Active:          r.Session.Active(),
		Format:          r.Format,
		CurrentQuestion: r.Session.CurrentQuestion(),
		Speaking:        r.Detector.Speaking(),
		SpeakingSeconds: r.Clock.TotalSeconds(),
		TotalWords:      ledgerStats.TotalWords,
		TotalFillers:    ledgerStats.TotalFillers,
		Records:         ledgerStats.Records,
		ChunksDelivered: delivered,
		ChunksFailed:    failed,
		Pipe:            r.Pipe.GetStats(),
		Scheduler:       r.Scheduler.GetStats(),
		VAD:             r.Detector.GetStats(),
	}
}

// Summary is the interview hand-off produced when a session ends.
type Summary struct {
	SessionID           string                     `json:"session_id"`
	StartTime           time.Time                  `json:"start_time"`
	DurationSeconds     float64                    `json:"duration_seconds"`
	Records             []transcript.Record        `json:"records"`
	TotalWords          int                        `json:"total_words"`
	TotalFillers        int                        `json:"total_fillers"`
	FillerBreakdown     transcript.FillerBreakdown `json:"filler_breakdown"`
	SpeakingSeconds     float64                    `json:"speaking_seconds"`
	PerQuestionSpeaking map[int]float64            `json:"per_question_speaking"`
	ChunksEmitted       uint64                     `json:"chunks_emitted"`
	ChunksRejected      uint64                     `json:"chunks_rejected"`
	ChunksDelivered     uint64                     `json:"chunks_delivered"`
	ChunksFailed        uint64                     `json:"chunks_failed"`
}

// buildSummary snapshots the session's accumulated state. Fragments still in
// flight when the session ends are not waited for.
func (r *Runtime) buildSummary() *Summary {
	r.mu.RLock()
	delivered := r.chunksDelivered
	failed := r.chunksFailed
	r.mu.RUnlock()

	ledgerStats := r.Ledger.GetStats()
	schedStats := r.Scheduler.GetStats()

	return &Summary{
		SessionID:           r.Session.ID,
		StartTime:           r.Session.StartTime,
		DurationSeconds:     time.Since(r.Session.StartTime).Seconds(),
		Records:             r.Ledger.Records(),
		TotalWords:          ledgerStats.TotalWords,
		TotalFillers:        ledgerStats.TotalFillers,
		FillerBreakdown:     ledgerStats.FillerBreakdown,
		SpeakingSeconds:     r.Clock.TotalSeconds(),
		PerQuestionSpeaking: r.Clock.PerQuestionSeconds(),
		ChunksEmitted:       schedStats.ChunksEmitted,
		ChunksRejected:      schedStats.ChunksRejected,
		ChunksDelivered:     delivered,
		ChunksFailed:        failed,
	}
}
