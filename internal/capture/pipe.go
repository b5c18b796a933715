package capture

import (
	"fmt"
	"sync"
)

// DefaultPipeBuffer is the per-reader frame buffer depth. At typical frame
// sizes this covers several seconds of audio before frames are shed.
const DefaultPipeBuffer = 256

// Pipe is the live frame stream owned by one capture session. A single
// writer pushes frames; the primary reader (the chunk scheduler or the
// fallback recorder) consumes them, and any number of read-only taps (the
// VAD) observe the same frames without mutating the stream. Pushes never
// block: when a reader falls behind its oldest frames are shed, keeping the
// stream live.
type Pipe struct {
	sampleRate int
	primary    chan []float32
	taps       []chan []float32
	closed     bool

	framesPushed uint64
	framesShed   uint64

	mu sync.Mutex
}

// PipeStats reports pipe throughput.
type PipeStats struct {
	SampleRate   int    `json:"sample_rate"`
	FramesPushed uint64 `json:"frames_pushed"`
	FramesShed   uint64 `json:"frames_shed"`
	Taps         int    `json:"taps"`
}

// NewPipe creates a pipe for mono frames at sampleRate Hz.
func NewPipe(sampleRate, buffer int) (*Pipe, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if buffer <= 0 {
		buffer = DefaultPipeBuffer
	}
	return &Pipe{
		sampleRate: sampleRate,
		primary:    make(chan []float32, buffer),
	}, nil
}

// SampleRate returns the native capture rate of the stream.
func (p *Pipe) SampleRate() int { return p.sampleRate }

// Push delivers one frame to the primary reader and every tap. The frame is
// copied once; slow readers shed their oldest frame instead of blocking the
// writer.
func (p *Pipe) Push(frame []float32) error {
	if len(frame) == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("pipe is closed")
	}

	buf := make([]float32, len(frame))
	copy(buf, frame)

	p.framesPushed++
	p.offer(p.primary, buf)
	for _, tap := range p.taps {
		p.offer(tap, buf)
	}
	return nil
}

// offer performs a non-blocking send, shedding the oldest buffered frame
// when the channel is full. Caller holds the lock.
func (p *Pipe) offer(ch chan []float32, frame []float32) {
	select {
	case ch <- frame:
		return
	default:
	}

	select {
	case <-ch:
		p.framesShed++
	default:
	}
	select {
	case ch <- frame:
	default:
		p.framesShed++
	}
}

// Frames returns the primary reader's channel. It is closed when the pipe
// closes.
func (p *Pipe) Frames() <-chan []float32 {
	return p.primary
}

// Tap registers a new read-only observer of the stream. Taps receive every
// frame the writer pushes after registration and never affect the primary
// reader.
func (p *Pipe) Tap() <-chan []float32 {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan []float32, cap(p.primary))
	if p.closed {
		close(ch)
		return ch
	}
	p.taps = append(p.taps, ch)
	return ch
}

// Close releases the pipe, unblocking every reader. It is idempotent.
func (p *Pipe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	close(p.primary)
	for _, tap := range p.taps {
		close(tap)
	}
	return nil
}

// GetStats returns a snapshot of pipe throughput.
func (p *Pipe) GetStats() PipeStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return PipeStats{
		SampleRate:   p.sampleRate,
		FramesPushed: p.framesPushed,
		FramesShed:   p.framesShed,
		Taps:         len(p.taps),
	}
}
