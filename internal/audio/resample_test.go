package audio

import (
	"math"
	"testing"
)

func TestResampleRatePreserving(t *testing.T) {
	rates := []int{8000, 16000, 22050, 44100, 48000}
	seconds := 1.5

	for _, inRate := range rates {
		in := make([]float32, int(float64(inRate)*seconds))
		out := Resample(in, inRate, TargetSampleRate)

		expected := int(math.Round(seconds * float64(TargetSampleRate)))
		diff := len(out) - expected
		if diff < -1 || diff > 1 {
			t.Errorf("inRate=%d: expected %d±1 output samples, got %d", inRate, expected, len(out))
		}
	}
}

func TestResampleIdentity(t *testing.T) {
	in := []float32{0.1, -0.2, 0.3, -0.4, 0.5}

	out := Resample(in, TargetSampleRate, TargetSampleRate)
	if len(out) != len(in) {
		t.Fatalf("Expected %d samples, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("Sample %d: expected %f, got %f", i, in[i], out[i])
		}
	}

	// Identity path must copy, not alias.
	out[0] = 9
	if in[0] == 9 {
		t.Error("Resample aliased the input slice")
	}
}

func TestResampleInterpolates(t *testing.T) {
	// Downsampling a ramp by 2x should land halfway between neighbours.
	in := []float32{0, 1, 2, 3, 4, 5, 6, 7}

	out := Resample(in, 4, 2)
	if len(out) != 4 {
		t.Fatalf("Expected 4 output samples, got %d", len(out))
	}
	for i, want := range []float32{0, 2, 4, 6} {
		if math.Abs(float64(out[i]-want)) > 1e-6 {
			t.Errorf("Sample %d: expected %f, got %f", i, want, out[i])
		}
	}
}

func TestResampleEmpty(t *testing.T) {
	out := Resample(nil, 44100, TargetSampleRate)
	if len(out) != 0 {
		t.Errorf("Expected no output samples, got %d", len(out))
	}
}

func TestQuantizeClampsAndScales(t *testing.T) {
	cases := []struct {
		in   float32
		want int16
	}{
		{0, 0},
		{1, 32767},
		{-1, -32768},
		{2.5, 32767},
		{-2.5, -32768},
		{0.5, 16383},
		{-0.5, -16384},
	}

	for _, c := range cases {
		got := Quantize([]float32{c.in})[0]
		if got != c.want {
			t.Errorf("Quantize(%f): expected %d, got %d", c.in, c.want, got)
		}
	}
}
