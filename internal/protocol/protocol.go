package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Control message types sent by the client as JSON text frames.
const (
	MessageStart    = "start"
	MessageQuestion = "question"
	MessageStop     = "stop"
)

// Sample-rate bounds accepted at the handshake. Capture devices commonly
// run at 44.1 or 48 kHz; anything outside this range is a client bug.
const (
	MinSampleRate = 8000
	MaxSampleRate = 96000
)

// Validation errors.
var (
	ErrEmptyMessage      = errors.New("empty control message")
	ErrUnknownType       = errors.New("unknown control message type")
	ErrMissingSessionID  = errors.New("start message missing session_id")
	ErrInvalidSampleRate = errors.New("sample rate out of range")
	ErrInvalidQuestion   = errors.New("question number must be positive")
	ErrEmptyFrame        = errors.New("empty audio frame")
	ErrMisalignedFrame   = errors.New("audio frame length not a multiple of 4")
)

// ControlMessage is the JSON envelope for all client control traffic.
type ControlMessage struct {
	Type string `json:"type"`

	// start fields
	SessionID        string   `json:"session_id,omitempty"`
	SampleRate       int      `json:"sample_rate,omitempty"`
	SupportedFormats []string `json:"supported_formats,omitempty"`
	PermissionDenied bool     `json:"permission_denied,omitempty"`

	// question fields
	QuestionNumber int    `json:"question_number,omitempty"`
	QuestionText   string `json:"question_text,omitempty"`
}

// StatusMessage is the JSON envelope the server pushes for the UI status
// sink: the live listening state and the running filler count.
type StatusMessage struct {
	Type            string  `json:"type"`
	Listening       string  `json:"listening"`
	FillerCount     int     `json:"filler_count"`
	SpeakingSeconds float64 `json:"speaking_seconds"`
}

// StatusType is the type field of server status pushes.
const StatusType = "status"

// Server push message types.
const (
	ReadyType   = "ready"
	ErrorType   = "error"
	SummaryType = "summary"
)

// ReadyMessage acknowledges a start message: the session exists and the
// chunk format has been negotiated.
type ReadyMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Format    string `json:"format"`
}

// ErrorMessage reports a refused or failed operation to the client.
type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// ParseControl decodes and validates one JSON control message.
func ParseControl(data []byte) (*ControlMessage, error) {
	if len(data) == 0 {
		return nil, ErrEmptyMessage
	}

	var msg ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse control message: %w", err)
	}

	switch msg.Type {
	case MessageStart:
		if msg.SessionID == "" {
			return nil, ErrMissingSessionID
		}
		if msg.SampleRate < MinSampleRate || msg.SampleRate > MaxSampleRate {
			return nil, fmt.Errorf("%w: %d", ErrInvalidSampleRate, msg.SampleRate)
		}
	case MessageQuestion:
		if msg.QuestionNumber < 1 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidQuestion, msg.QuestionNumber)
		}
	case MessageStop:
		// No payload.
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}

	return &msg, nil
}

// DecodeFrame converts a binary frame of little-endian float32 samples into
// a sample slice.
func DecodeFrame(data []byte) ([]float32, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrMisalignedFrame, len(data))
	}

	samples := make([]float32, len(data)/4)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		samples[i] = math.Float32frombits(bits)
	}
	return samples, nil
}

// EncodeFrame converts samples into the binary wire representation. Used by
// test clients and tooling.
func EncodeFrame(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}
