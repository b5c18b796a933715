package protocol

import (
	"errors"
	"testing"
)

func TestParseControlStart(t *testing.T) {
	msg, err := ParseControl([]byte(`{"type":"start","session_id":"abc","sample_rate":44100,"supported_formats":["audio/webm"]}`))
	if err != nil {
		t.Fatalf("ParseControl failed: %v", err)
	}

	if msg.Type != MessageStart || msg.SessionID != "abc" || msg.SampleRate != 44100 {
		t.Errorf("Unexpected message: %+v", msg)
	}
	if len(msg.SupportedFormats) != 1 || msg.SupportedFormats[0] != "audio/webm" {
		t.Errorf("Supported formats not parsed: %v", msg.SupportedFormats)
	}
}

func TestParseControlStartValidation(t *testing.T) {
	if _, err := ParseControl([]byte(`{"type":"start","sample_rate":44100}`)); !errors.Is(err, ErrMissingSessionID) {
		t.Errorf("Expected ErrMissingSessionID, got %v", err)
	}
	if _, err := ParseControl([]byte(`{"type":"start","session_id":"abc","sample_rate":100}`)); !errors.Is(err, ErrInvalidSampleRate) {
		t.Errorf("Expected ErrInvalidSampleRate, got %v", err)
	}
}

func TestParseControlQuestion(t *testing.T) {
	msg, err := ParseControl([]byte(`{"type":"question","question_number":2,"question_text":"Why Go?"}`))
	if err != nil {
		t.Fatalf("ParseControl failed: %v", err)
	}
	if msg.QuestionNumber != 2 || msg.QuestionText != "Why Go?" {
		t.Errorf("Unexpected message: %+v", msg)
	}

	if _, err := ParseControl([]byte(`{"type":"question","question_number":0}`)); !errors.Is(err, ErrInvalidQuestion) {
		t.Errorf("Expected ErrInvalidQuestion, got %v", err)
	}
}

func TestParseControlRejectsGarbage(t *testing.T) {
	if _, err := ParseControl(nil); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("Expected ErrEmptyMessage, got %v", err)
	}
	if _, err := ParseControl([]byte(`{"type":"selfdestruct"}`)); !errors.Is(err, ErrUnknownType) {
		t.Errorf("Expected ErrUnknownType, got %v", err)
	}
	if _, err := ParseControl([]byte(`not json`)); err == nil {
		t.Error("Expected error for malformed JSON")
	}
}

func TestFrameRoundTrip(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 1, -1, 0.123}

	out, err := DecodeFrame(EncodeFrame(in))
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("Expected %d samples, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("Sample %d: expected %f, got %f", i, in[i], out[i])
		}
	}
}

func TestDecodeFrameValidation(t *testing.T) {
	if _, err := DecodeFrame(nil); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("Expected ErrEmptyFrame, got %v", err)
	}
	if _, err := DecodeFrame([]byte{1, 2, 3}); !errors.Is(err, ErrMisalignedFrame) {
		t.Errorf("Expected ErrMisalignedFrame, got %v", err)
	}
}
