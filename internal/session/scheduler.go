package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Akashpatel2609/PrepWise/internal/audio"
	"github.com/Akashpatel2609/PrepWise/internal/capture"
	"github.com/Akashpatel2609/PrepWise/internal/metrics"
)

// DefaultChunkInterval is the slicing period: how often the active encoder
// is stopped, its segment shipped, and a fresh encoder started.
const DefaultChunkInterval = 8 * time.Second

// AudioChunk is one bounded, self-contained encoded segment ready for
// delivery. Consumed exactly once by the deliverer and not retained.
type AudioChunk struct {
	SessionID      string
	Bytes          []byte
	MimeType       string
	QuestionNumber int
	SequenceIndex  uint64
	Duration       float64 // seconds covered by the segment, approximate
}

// Deliverer ships finalized chunks to the transcription backend. Calls are
// fire-and-forget from the scheduler's point of view: implementations run
// their own timeouts and never report back.
type Deliverer interface {
	Deliver(chunk AudioChunk)
}

// SchedulerStats reports slicing activity.
type SchedulerStats struct {
	ChunksEmitted  uint64 `json:"chunks_emitted"`
	ChunksRejected uint64 `json:"chunks_rejected"` // guard failures, recoverable
	EncoderErrors  uint64 `json:"encoder_errors"`
}

// Scheduler produces a steady stream of bounded chunks for one active
// session by cycling a chunk encoder: stop to flush a segment, then
// immediately start a fresh instance. Chunk boundaries are not aligned to
// question boundaries; each chunk is tagged with the question current at
// flush time.
type Scheduler struct {
	session   *Session
	pipe      *capture.Pipe
	factory   capture.EncoderFactory
	deliverer Deliverer
	interval  time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics // may be nil

	enc        capture.ChunkEncoder
	encStarted time.Time
	seq        uint64

	stats SchedulerStats

	// tick overrides the interval timer when set. Tests drive slicing
	// deterministically through it.
	tick <-chan time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	ended   bool

	mu sync.Mutex
}

// NewScheduler creates a scheduler for one session. The factory may be nil:
// the scheduler then runs without chunked audio delivery (degraded mode)
// but still drains the pipe so taps stay live.
func NewScheduler(sess *Session, pipe *capture.Pipe, factory capture.EncoderFactory,
	deliverer Deliverer, interval time.Duration, logger *slog.Logger, m *metrics.Metrics) *Scheduler {

	if interval <= 0 {
		interval = DefaultChunkInterval
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		session:   sess,
		pipe:      pipe,
		factory:   factory,
		deliverer: deliverer,
		interval:  interval,
		logger:    logger,
		metrics:   m,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Begin starts the slicing loop. It returns immediately; chunks flow until
// End is called or the pipe closes.
func (s *Scheduler) Begin() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("scheduler already started")
	}
	if s.ended {
		s.mu.Unlock()
		return errors.New("scheduler already ended")
	}
	s.started = true
	s.mu.Unlock()

	s.startEncoder()

	s.wg.Add(1)
	go s.run()
	return nil
}

// End stops the slicing loop, flushes the final partial segment, and closes
// the pipe, releasing all capture resources in bounded time. Idempotent,
// and safe even if no encoder was ever constructed.
func (s *Scheduler) End() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	started := s.started
	s.mu.Unlock()

	s.session.Deactivate()
	s.cancel()
	if started {
		s.wg.Wait()
	}
	s.pipe.Close()
}

// GetStats returns a snapshot of slicing activity.
func (s *Scheduler) GetStats() SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// run is the slicing loop: feed frames to the active encoder, cut a chunk
// on every interval tick, and cut the final partial chunk on shutdown.
func (s *Scheduler) run() {
	defer s.wg.Done()

	tick := s.tick
	if tick == nil {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-s.ctx.Done():
			s.flushEncoder()
			return

		case frame, ok := <-s.pipe.Frames():
			if !ok {
				s.flushEncoder()
				return
			}
			s.writeFrame(frame)

		case <-tick:
			s.flushEncoder()
			if s.ctx.Err() == nil {
				s.startEncoder()
			}
		}
	}
}

// writeFrame feeds one frame to the active encoder, if any.
func (s *Scheduler) writeFrame(frame []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.enc == nil {
		return
	}
	if err := s.enc.Write(frame); err != nil {
		s.stats.EncoderErrors++
		s.logger.Warn("Encoder rejected frame",
			slog.String("session_id", s.session.ID),
			slog.String("error", err.Error()),
		)
	}
}

// startEncoder constructs and starts a fresh encoder instance. Failure is
// non-fatal: the session continues without chunked audio delivery.
func (s *Scheduler) startEncoder() {
	if s.factory == nil {
		return
	}

	enc, err := s.factory.New()
	if err == nil {
		err = enc.Start()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.stats.EncoderErrors++
		s.enc = nil
		s.logger.Warn("Failed to start chunk encoder, continuing without chunked audio delivery",
			slog.String("session_id", s.session.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	s.enc = enc
	s.encStarted = time.Now()
}

// flushEncoder stops the active encoder and hands the finalized chunk to
// the deliverer. Guard failures are recoverable: the segment is skipped and
// slicing continues with the next encoder instance.
func (s *Scheduler) flushEncoder() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.enc == nil {
		return
	}
	enc := s.enc
	started := s.encStarted
	s.enc = nil

	payload, err := enc.Stop()
	if err != nil {
		if errors.Is(err, audio.ErrCaptureTooShort) || errors.Is(err, audio.ErrPayloadTooSmall) {
			s.stats.ChunksRejected++
			if s.metrics != nil {
				s.metrics.RecordChunkRejected()
			}
			s.logger.Debug("Segment below capture guards, skipped",
				slog.String("session_id", s.session.ID),
				slog.String("error", err.Error()),
			)
		} else {
			s.stats.EncoderErrors++
			s.logger.Warn("Encoder flush failed",
				slog.String("session_id", s.session.ID),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	s.seq++
	chunk := AudioChunk{
		SessionID:      s.session.ID,
		Bytes:          payload,
		MimeType:       enc.MimeType(),
		QuestionNumber: s.session.CurrentQuestion(),
		SequenceIndex:  s.seq,
		Duration:       time.Since(started).Seconds(),
	}
	s.stats.ChunksEmitted++
	if s.metrics != nil {
		s.metrics.RecordChunkEmitted(len(chunk.Bytes), chunk.Duration)
	}

	s.logger.Debug("Audio chunk finalized",
		slog.String("session_id", chunk.SessionID),
		slog.Uint64("sequence_index", chunk.SequenceIndex),
		slog.Int("question_number", chunk.QuestionNumber),
		slog.Int("bytes", len(chunk.Bytes)),
	)

	if s.deliverer != nil {
		go s.deliverer.Deliver(chunk)
	}
}
