package audio

import (
	"errors"
	"fmt"
	"sync"
)

// Guard thresholds for the encoded clip. Captures shorter than MinDuration
// or payloads smaller than MinPayloadBytes are rejected so the transcription
// backend never receives empty or near-silent blobs.
const (
	MinDuration     = 0.25 // seconds
	MinPayloadBytes = 800
)

// Sentinel errors for the capture guards. Both are recoverable: the caller
// may start a new recording without tearing down the session.
var (
	ErrCaptureTooShort  = errors.New("captured audio shorter than minimum duration")
	ErrPayloadTooSmall  = errors.New("encoded payload smaller than minimum size")
	ErrRecorderFinished = errors.New("recorder already finished")
)

// Recorder accumulates mono float32 frames at the capture device's native
// sample rate and encodes them into a 16 kHz mono WAV clip on demand.
// It performs no I/O; every step is a pure transformation over the
// accumulated samples.
type Recorder struct {
	inRate   int
	frames   [][]float32
	total    int
	finished bool

	mu sync.Mutex
}

// RecorderStats reports the current accumulation state.
type RecorderStats struct {
	SampleRate      int     `json:"sample_rate"`
	FramesAppended  int     `json:"frames_appended"`
	SamplesBuffered int     `json:"samples_buffered"`
	Seconds         float64 `json:"seconds"`
}

// NewRecorder creates a recorder for frames captured at inRate Hz.
func NewRecorder(inRate int) (*Recorder, error) {
	if inRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", inRate)
	}
	return &Recorder{inRate: inRate}, nil
}

// AppendFrame appends one capture frame. The frame is copied, so the caller
// may reuse its buffer.
func (r *Recorder) AppendFrame(frame []float32) error {
	if len(frame) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished {
		return ErrRecorderFinished
	}

	buf := make([]float32, len(frame))
	copy(buf, frame)
	r.frames = append(r.frames, buf)
	r.total += len(frame)
	return nil
}

// Duration returns the accumulated capture length in seconds.
func (r *Recorder) Duration() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return float64(r.total) / float64(r.inRate)
}

// Stats returns a snapshot of the accumulation state.
func (r *Recorder) Stats() RecorderStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RecorderStats{
		SampleRate:      r.inRate,
		FramesAppended:  len(r.frames),
		SamplesBuffered: r.total,
		Seconds:         float64(r.total) / float64(r.inRate),
	}
}

// Encode concatenates all accumulated frames, resamples to the target rate,
// quantizes to 16-bit PCM and builds the WAV container. The duration and
// payload-size guards are independent checks; either failure leaves the
// recorder finished but is recoverable by starting a fresh recording.
// Encode releases the accumulated frames on every path.
func (r *Recorder) Encode() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished {
		return nil, ErrRecorderFinished
	}
	r.finished = true

	pcm := make([]float32, 0, r.total)
	for _, frame := range r.frames {
		pcm = append(pcm, frame...)
	}
	duration := float64(r.total) / float64(r.inRate)
	r.frames = nil

	if err := guardDuration(duration); err != nil {
		return nil, err
	}

	resampled := Resample(pcm, r.inRate, TargetSampleRate)
	wav, err := EncodeWAV(Quantize(resampled), TargetSampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to encode WAV clip: %w", err)
	}

	if err := guardPayload(len(wav)); err != nil {
		return nil, err
	}

	return wav, nil
}

// guardDuration rejects captures shorter than MinDuration seconds.
func guardDuration(seconds float64) error {
	if seconds < MinDuration {
		return fmt.Errorf("%w: %.3fs < %.2fs", ErrCaptureTooShort, seconds, MinDuration)
	}
	return nil
}

// guardPayload rejects encoded clips smaller than MinPayloadBytes.
func guardPayload(n int) error {
	if n < MinPayloadBytes {
		return fmt.Errorf("%w: %d bytes < %d bytes", ErrPayloadTooSmall, n, MinPayloadBytes)
	}
	return nil
}
