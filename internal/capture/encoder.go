package capture

import (
	"fmt"

	"github.com/Akashpatel2609/PrepWise/internal/audio"
)

// MimeTypeWAV identifies clips produced by the raw-PCM fallback encoder.
const MimeTypeWAV = "audio/wav"

// ChunkEncoder produces one bounded, independently decodable audio segment
// per start/stop cycle. The scheduler stops an encoder to flush its segment
// and immediately starts a fresh instance, so implementations only ever
// encode a single segment.
type ChunkEncoder interface {
	// Start arms the encoder. Write before Start is an error.
	Start() error
	// Write feeds one mono float32 frame at the factory's native rate.
	Write(frame []float32) error
	// Stop flushes and returns the encoded segment. The encoder is spent
	// afterwards.
	Stop() ([]byte, error)
	// MimeType identifies the produced container/codec.
	MimeType() string
}

// EncoderFactory constructs fresh encoder instances for the scheduler's
// stop-then-restart slicing cycle.
type EncoderFactory interface {
	New() (ChunkEncoder, error)
	MimeType() string
}

// PCMEncoderFactory builds raw-PCM fallback encoders: frames are
// accumulated and encoded to a 16 kHz mono WAV clip on Stop. Used whenever
// format negotiation yields no native chunked encoder.
type PCMEncoderFactory struct {
	inRate int
}

// NewPCMEncoderFactory creates a factory for frames at inRate Hz.
func NewPCMEncoderFactory(inRate int) (*PCMEncoderFactory, error) {
	if inRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", inRate)
	}
	return &PCMEncoderFactory{inRate: inRate}, nil
}

// New returns a fresh PCM encoder.
func (f *PCMEncoderFactory) New() (ChunkEncoder, error) {
	return &pcmEncoder{inRate: f.inRate}, nil
}

// MimeType returns the WAV mime type.
func (f *PCMEncoderFactory) MimeType() string { return MimeTypeWAV }

// pcmEncoder adapts audio.Recorder to the ChunkEncoder contract.
type pcmEncoder struct {
	inRate   int
	recorder *audio.Recorder
}

func (e *pcmEncoder) Start() error {
	if e.recorder != nil {
		return fmt.Errorf("encoder already started")
	}
	rec, err := audio.NewRecorder(e.inRate)
	if err != nil {
		return err
	}
	e.recorder = rec
	return nil
}

func (e *pcmEncoder) Write(frame []float32) error {
	if e.recorder == nil {
		return fmt.Errorf("encoder not started")
	}
	return e.recorder.AppendFrame(frame)
}

func (e *pcmEncoder) Stop() ([]byte, error) {
	if e.recorder == nil {
		return nil, fmt.Errorf("encoder not started")
	}
	return e.recorder.Encode()
}

func (e *pcmEncoder) MimeType() string { return MimeTypeWAV }
