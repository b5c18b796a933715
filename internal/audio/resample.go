package audio

// Resample converts float32 samples from inRate to outRate using linear
// interpolation. For output index i the source position is i*inRate/outRate;
// the result interpolates between the two neighbouring input samples, with
// the read index clamped to the valid input range.
func Resample(samples []float32, inRate, outRate int) []float32 {
	if inRate == outRate || len(samples) == 0 {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}

	ratio := float64(inRate) / float64(outRate)
	outLen := int(float64(len(samples)) / ratio)
	out := make([]float32, outLen)

	for i := 0; i < outLen; i++ {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := float32(pos - float64(idx))

		if idx+1 < len(samples) {
			out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
		} else if idx < len(samples) {
			out[i] = samples[idx]
		}
	}

	return out
}

// Quantize converts float32 samples in [-1, 1] to signed 16-bit PCM.
// Values are clamped first; negative values scale by 32768 and non-negative
// by 32767 so both extremes map onto the int16 range without overflow.
func Quantize(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		if s < -1 {
			s = -1
		} else if s > 1 {
			s = 1
		}
		if s < 0 {
			out[i] = int16(s * 32768)
		} else {
			out[i] = int16(s * 32767)
		}
	}
	return out
}
